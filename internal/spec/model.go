package spec

import (
	"strings"

	"github.com/mark3labs/oasassemble/internal/jsonv"
)

// Inputs consumed by the assembler and the shapes it emits.

type HttpMethod string

const (
	GET     HttpMethod = "GET"
	POST    HttpMethod = "POST"
	PUT     HttpMethod = "PUT"
	DELETE  HttpMethod = "DELETE"
	PATCH   HttpMethod = "PATCH"
	HEAD    HttpMethod = "HEAD"
	OPTIONS HttpMethod = "OPTIONS"
	TRACE   HttpMethod = "TRACE"
)

// Key returns the path item key for the method (lower case).
func (m HttpMethod) Key() string { return strings.ToLower(strings.TrimSpace(string(m))) }

// Route describes one HTTP route exposed by the deployed service.
type Route struct {
	Path       string     `json:"path" yaml:"path" validate:"required,startswith=/"`
	Method     HttpMethod `json:"method" yaml:"method" validate:"required,httpmethod"`
	Handler    string     `json:"handler" yaml:"handler" validate:"required"`
	Authorizer string     `json:"authorizer,omitempty" yaml:"authorizer,omitempty"`
	Tags       []string   `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// ID is method+path, matching how operations are addressed in the document.
func (r Route) ID() string { return r.Method.Key() + " " + r.Path }

// EndpointMetadata is what the extractor reports for one handler.
type EndpointMetadata struct {
	ResponseNames []string    `json:"responseNames"`
	Body          jsonv.Value `json:"body"`
	QueryParams   jsonv.Value `json:"queryParams"`
	PathParams    jsonv.Value `json:"pathParams"`
	OperationID   string      `json:"operationId"`
	Description   string      `json:"description"`
	Summary       string      `json:"summary"`
	Tags          []string    `json:"tags"`
}

// TagInfo is a document level tag description.
type TagInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Extraction is the full payload returned by one metadata fetch.
type Extraction struct {
	// Endpoints maps handler id to its metadata. A nil entry means the
	// handler produced no metadata.
	Endpoints map[string]*EndpointMetadata `json:"endpoints"`
	// Models is either a {"$defs": {...}} envelope or a plain name to
	// schema object.
	Models jsonv.Value `json:"models"`
	Tags   []TagInfo   `json:"tags"`
}

// Registry returns a copy of the model definitions as an ordered object,
// unwrapping the "$defs" envelope when present.
func (e *Extraction) Registry() *jsonv.Obj {
	if e == nil {
		return jsonv.NewObject()
	}
	models := e.Models.Obj()
	if models == nil {
		return jsonv.NewObject()
	}
	if defs := models.Object(DefsKey); defs != nil {
		return defs.Clone()
	}
	return models.Clone()
}

// DistinctHandlers returns each handler id once, in first-seen order.
func DistinctHandlers(routes []Route) []string {
	seen := make(map[string]struct{}, len(routes))
	out := make([]string, 0, len(routes))
	for _, r := range routes {
		if _, ok := seen[r.Handler]; ok {
			continue
		}
		seen[r.Handler] = struct{}{}
		out = append(out, r.Handler)
	}
	return out
}
