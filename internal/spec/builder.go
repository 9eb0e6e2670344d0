package spec

import (
	"fmt"
	"log/slog"

	"github.com/mark3labs/oasassemble/internal/jsonv"
)

const (
	mimeJSON = "application/json"
	mimeText = "text/plain"
)

// statusCodeProps are the response-model properties searched, in order, for
// a constant status code.
var statusCodeProps = []string{"statusCode", "status_code"}

// OperationBuilder derives OpenAPI operation objects from endpoint metadata
// and the shared model registry.
type OperationBuilder struct {
	registry *jsonv.Obj
	log      *slog.Logger
	warnings []Warning
}

// NewOperationBuilder returns a builder resolving response models in
// registry. registry is only read.
func NewOperationBuilder(registry *jsonv.Obj, log *slog.Logger) *OperationBuilder {
	if log == nil {
		log = discardLogger()
	}
	return &OperationBuilder{registry: registry, log: log}
}

// Warnings returns the soft failures recorded so far.
func (b *OperationBuilder) Warnings() []Warning { return b.warnings }

// Build returns the operation object for route. ok is false, with a nil
// error, when meta is nil: routes whose handler has no metadata are skipped.
func (b *OperationBuilder) Build(route Route, meta *EndpointMetadata) (op *jsonv.Obj, ok bool, err error) {
	if meta == nil {
		return nil, false, nil
	}

	responses, err := b.responses(route, meta)
	if err != nil {
		return nil, false, err
	}

	params := b.parameters(meta.PathParams, "path", route, meta.OperationID)
	params = append(params, b.parameters(meta.QueryParams, "query", route, meta.OperationID)...)

	op = jsonv.NewObject().
		SetString("description", meta.Description).
		SetString("summary", meta.Summary).
		SetString("operationId", meta.OperationID).
		Set("responses", jsonv.ObjectValue(responses)).
		Set("security", securityRequirement(route.Authorizer)).
		Set("requestBody", requestBody(meta.Body)).
		Set("parameters", jsonv.ArrayValue(params...)).
		Set("tags", stringArray(mergeTags(meta.Tags, route.Tags)))
	return op, true, nil
}

func (b *OperationBuilder) responses(route Route, meta *EndpointMetadata) (*jsonv.Obj, error) {
	out := jsonv.NewObject()
	owner := make(map[string]string, len(meta.ResponseNames))
	for _, name := range meta.ResponseNames {
		schema := b.registry.Object(name)
		if schema == nil {
			return nil, &MissingModelError{Handler: route.Handler, Model: name}
		}
		code, err := StatusCode(name, schema)
		if err != nil {
			return nil, err
		}
		if prev, dup := owner[code]; dup {
			return nil, &DuplicateStatusCodeError{Handler: route.Handler, Code: code, Models: [2]string{prev, name}}
		}
		owner[code] = name
		out.Set(code, jsonv.ObjectValue(responseObject(name, schema)))
	}
	return out, nil
}

// StatusCode reads the HTTP status code declared by a response model: the
// const of its statusCode (or else status_code) property.
func StatusCode(name string, schema *jsonv.Obj) (string, error) {
	props := schema.Object("properties")
	for _, prop := range statusCodeProps {
		if c := props.Object(prop).Value("const"); !c.IsNull() {
			return c.Text(), nil
		}
	}
	title, ok := schema.String("title")
	if !ok {
		title = name
	}
	return "", &UndeterminedStatusCodeError{Model: name, Title: title}
}

// responseObject describes a response model. Only bodies declared as a
// reference are served as JSON; anything inline is treated as plain text.
func responseObject(name string, schema *jsonv.Obj) *jsonv.Obj {
	body := schema.Object("properties").Object("body")

	desc := ""
	if d := body.Value("description"); !d.IsNull() {
		desc = d.Text()
	} else if d := body.Value("default"); !d.IsNull() {
		desc = d.Text()
	} else if title, ok := schema.String("title"); ok {
		desc = title
	}

	var media *jsonv.Obj
	if body != nil && body.Has(RefKey) {
		media = jsonv.NewObject().Set(mimeJSON, jsonv.ObjectValue(
			jsonv.NewObject().Set("schema", jsonv.ObjectValue(
				jsonv.NewObject().Set(RefKey, jsonv.StringValue(SchemaRef(name)))))))
	} else {
		media = jsonv.NewObject().Set(mimeText, jsonv.ObjectValue(
			jsonv.NewObject().Set("schema", jsonv.ObjectValue(
				jsonv.NewObject().Set("type", jsonv.StringValue("string"))))))
	}

	return jsonv.NewObject().
		Set("description", jsonv.StringValue(desc)).
		Set("content", jsonv.ObjectValue(media))
}

// parameters turns each property of an object schema into a parameter
// located at in ("path" or "query"). Structured (array/object) properties
// cannot be expressed as parameters; they are dropped with a warning.
func (b *OperationBuilder) parameters(source jsonv.Value, in string, route Route, operationID string) []jsonv.Value {
	schema := source.Obj()
	if schema == nil {
		return nil
	}
	required := make(map[string]bool)
	if items, ok := schema.Value("required").Items(); ok {
		for _, item := range items {
			if s, ok := item.Str(); ok {
				required[s] = true
			}
		}
	}

	var out []jsonv.Value
	schema.Object("properties").Range(func(name string, prop jsonv.Value) bool {
		def := prop.Obj()
		if t, bad := structuredType(def); bad {
			w := Warning{
				Category: WarnUnsupportedParameter,
				Pointer:  fmt.Sprintf("#/paths/%s/%s", jsonv.EscapePointer(route.Path), route.Method.Key()),
				Message:  fmt.Sprintf("Invalid endpoint parameter type %q for %s (%s) in %s", t, name, in, operationLabel(operationID, route)),
			}
			b.warnings = append(b.warnings, w)
			b.log.Warn("skipping unsupported parameter", "param", name, "in", in, "type", t, "route", route.ID())
			return true
		}

		p := jsonv.NewObject().
			Set("in", jsonv.StringValue(in)).
			Set("name", jsonv.StringValue(name)).
			Set("required", jsonv.BoolValue(required[name])).
			Set("allowEmptyValue", jsonv.BoolValue(false))
		if d := def.Value("description"); d.IsDefined() {
			p.Set("description", d.Clone())
		}
		p.Set("schema", prop.Clone())
		out = append(out, jsonv.ObjectValue(p))
		return true
	})
	return out
}

// structuredType reports whether a property schema declares an array or
// object type. A type list counts when any of its members does.
func structuredType(def *jsonv.Obj) (string, bool) {
	t := def.Value("type")
	if s, ok := t.Str(); ok {
		return s, s == "array" || s == "object"
	}
	if items, ok := t.Items(); ok {
		for _, item := range items {
			if s, _ := item.Str(); s == "array" || s == "object" {
				return s, true
			}
		}
	}
	return "", false
}

func operationLabel(operationID string, route Route) string {
	if operationID != "" {
		return operationID
	}
	return route.ID()
}

// securityRequirement is the single requirement keyed by the authorizer. The
// name is not checked against the declared schemes.
func securityRequirement(authorizer string) jsonv.Value {
	if authorizer == "" {
		return jsonv.ArrayValue()
	}
	req := jsonv.NewObject().Set(authorizer, jsonv.ArrayValue())
	return jsonv.ArrayValue(jsonv.ObjectValue(req))
}

func requestBody(body jsonv.Value) jsonv.Value {
	if body.IsNull() {
		return jsonv.Value{}
	}
	media := jsonv.NewObject().Set("schema", body.Clone())
	content := jsonv.NewObject().Set(mimeJSON, jsonv.ObjectValue(media))
	return jsonv.ObjectValue(jsonv.NewObject().Set("content", jsonv.ObjectValue(content)))
}

func mergeTags(primary, extra []string) []string {
	seen := make(map[string]struct{}, len(primary)+len(extra))
	out := make([]string, 0, len(primary)+len(extra))
	for _, list := range [][]string{primary, extra} {
		for _, t := range list {
			if t == "" {
				continue
			}
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

func stringArray(items []string) jsonv.Value {
	vals := make([]jsonv.Value, len(items))
	for i, s := range items {
		vals[i] = jsonv.StringValue(s)
	}
	return jsonv.ArrayValue(vals...)
}
