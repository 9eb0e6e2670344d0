// Package routes discovers the HTTP routes a deployment exposes, either from
// a serverless-style service config or from a plain routes file.
package routes

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/oasassemble/internal/spec"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("httpmethod", func(fl validator.FieldLevel) bool {
		switch spec.HttpMethod(fl.Field().String()) {
		case spec.GET, spec.POST, spec.PUT, spec.DELETE, spec.PATCH, spec.HEAD, spec.OPTIONS, spec.TRACE:
			return true
		}
		return false
	})
	return v
}

// Service is what a deployment config tells us about the API.
type Service struct {
	Routes []spec.Route
	// Info is taken from custom.openapi.info when present.
	Info openapi3.Info
	// Servers holds https://<domainName> when a custom domain is configured.
	Servers openapi3.Servers
}

// InvalidRouteError reports every rule a route failed.
type InvalidRouteError struct {
	Index    int
	Route    spec.Route
	Problems []string
}

func (e *InvalidRouteError) Error() string {
	return fmt.Sprintf("route %d (%s %s, handler %q): %s", e.Index, e.Route.Method, e.Route.Path, e.Route.Handler, strings.Join(e.Problems, "; "))
}

// Validate checks every route and rejects duplicate method+path pairs.
func Validate(routes []spec.Route) error {
	seen := make(map[string]int, len(routes))
	for i, r := range routes {
		if err := validate.Struct(r); err != nil {
			var valErrs validator.ValidationErrors
			if !errors.As(err, &valErrs) {
				return err
			}
			problems := make([]string, 0, len(valErrs))
			for _, ve := range valErrs {
				problems = append(problems, strings.ToLower(ve.Field())+": "+formatValidationError(ve))
			}
			return &InvalidRouteError{Index: i, Route: r, Problems: problems}
		}
		if prev, ok := seen[r.ID()]; ok {
			return &InvalidRouteError{Index: i, Route: r, Problems: []string{fmt.Sprintf("duplicates route %d", prev)}}
		}
		seen[r.ID()] = i
	}
	return nil
}

func formatValidationError(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		return "required"
	case "startswith":
		return fmt.Sprintf("must start with %q", ve.Param())
	case "httpmethod":
		return fmt.Sprintf("unsupported HTTP method %q", ve.Value())
	default:
		if ve.Param() != "" {
			return fmt.Sprintf("failed %s=%s validation", ve.Tag(), ve.Param())
		}
		return fmt.Sprintf("failed %s validation", ve.Tag())
	}
}

// Load reads path as a serverless config when it has a top-level "functions"
// mapping and as a routes file otherwise.
func Load(path string) (*Service, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	var probe struct {
		Functions yaml.Node `yaml:"functions"`
	}
	// A list-shaped routes file fails to decode into a struct; that is fine.
	if err := yaml.Unmarshal(data, &probe); err == nil && probe.Functions.Kind != 0 {
		svc, err := ParseServerless(data)
		if err != nil {
			return nil, fmt.Errorf("serverless config %q: %w", path, err)
		}
		return svc, nil
	}
	rs, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return &Service{Routes: rs}, nil
}

// LoadFile reads a YAML or JSON routes file: either a bare list of routes or
// an object with a "routes" list.
func LoadFile(path string) ([]spec.Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routes file %q: %w", path, err)
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse routes file %q: %w", path, err)
	}
	node := &root
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}

	var out []spec.Route
	switch node.Kind {
	case yaml.SequenceNode:
		err = node.Decode(&out)
	case yaml.MappingNode:
		var wrapped struct {
			Routes []spec.Route `yaml:"routes"`
		}
		err = node.Decode(&wrapped)
		out = wrapped.Routes
	case 0:
		// empty file
	default:
		err = errors.New("expected a list of routes or an object with \"routes\"")
	}
	if err != nil {
		return nil, fmt.Errorf("parse routes file %q: %w", path, err)
	}
	for i := range out {
		out[i].Method = normalizeMethod(string(out[i].Method))
		out[i].Path = strings.TrimSpace(out[i].Path)
		out[i].Handler = strings.TrimSpace(out[i].Handler)
		out[i].Authorizer = strings.TrimSpace(out[i].Authorizer)
	}
	if err := Validate(out); err != nil {
		return nil, fmt.Errorf("routes file %q: %w", path, err)
	}
	return out, nil
}

func normalizeMethod(m string) spec.HttpMethod {
	return spec.HttpMethod(strings.ToUpper(strings.TrimSpace(m)))
}
