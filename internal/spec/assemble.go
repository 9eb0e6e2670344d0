package spec

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/mark3labs/oasassemble/internal/jsonv"
)

// DefaultOpenAPIVersion is written to the document's "openapi" field.
const DefaultOpenAPIVersion = "3.1.0"

// Config carries the document level settings that are not derived from
// routes or metadata.
type Config struct {
	OpenAPI string
	Info    openapi3.Info
	Servers openapi3.Servers
}

// Validate checks the info block and server list.
func (c Config) Validate(ctx context.Context) error {
	if err := c.Info.Validate(ctx); err != nil {
		return fmt.Errorf("info: %w", err)
	}
	if err := c.Servers.Validate(ctx); err != nil {
		return fmt.Errorf("servers: %w", err)
	}
	return nil
}

// MetadataSource fetches endpoint metadata for a set of handlers. It is the
// only blocking collaborator of the assembler.
type MetadataSource interface {
	Fetch(ctx context.Context, handlers []string) (*Extraction, error)
}

// Settings configures assembler behavior.
type Settings struct {
	Logger *slog.Logger
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
	return Settings{Logger: discardLogger()}
}

// Option mutates Settings.
type Option func(*Settings)

// WithLogger routes warnings and progress through l.
func WithLogger(l *slog.Logger) Option {
	return func(s *Settings) {
		if l != nil {
			s.Logger = l
		}
	}
}

// Result is an assembled document and what happened while building it.
type Result struct {
	Document jsonv.Value
	Warnings []Warning
	// Skipped lists routes whose handler produced no metadata.
	Skipped []Route
}

// Assembler turns routes and endpoint metadata into one OpenAPI document.
type Assembler struct {
	cfg      Config
	settings Settings
}

// New returns an Assembler for cfg.
func New(cfg Config, opts ...Option) *Assembler {
	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}
	if cfg.OpenAPI == "" {
		cfg.OpenAPI = DefaultOpenAPIVersion
	}
	return &Assembler{cfg: cfg, settings: settings}
}

// Assemble fetches the metadata for every distinct handler in routes, then
// builds the document. A failed fetch aborts before anything is built.
func (a *Assembler) Assemble(ctx context.Context, routes []Route, src MetadataSource) (*Result, error) {
	if err := a.cfg.Validate(ctx); err != nil {
		return nil, err
	}
	handlers := DistinctHandlers(routes)
	a.settings.Logger.Debug("fetching endpoint metadata", "handlers", len(handlers))
	ext, err := src.Fetch(ctx, handlers)
	if err != nil {
		return nil, &FetchError{Handlers: len(handlers), Cause: err}
	}
	return a.Build(routes, ext)
}

// Build assembles the document from already fetched metadata. It performs
// no I/O. Any hard failure aborts the whole build and no document is
// returned.
func (a *Assembler) Build(routes []Route, ext *Extraction) (*Result, error) {
	log := a.settings.Logger
	if ext == nil {
		ext = &Extraction{}
	}

	registry := ext.Registry()
	builder := NewOperationBuilder(registry, log)
	res := &Result{}

	paths := jsonv.NewObject()
	for _, route := range routes {
		op, ok, err := builder.Build(route, ext.Endpoints[route.Handler])
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", route.ID(), err)
		}
		if !ok {
			log.Debug("no metadata for handler; skipping route", "route", route.ID(), "handler", route.Handler)
			res.Skipped = append(res.Skipped, route)
			continue
		}
		item := paths.Object(route.Path)
		if item == nil {
			item = jsonv.NewObject()
			paths.Set(route.Path, jsonv.ObjectValue(item))
		}
		item.Set(route.Method.Key(), jsonv.ObjectValue(op))
	}

	schemes, err := securitySchemes(routes)
	if err != nil {
		return nil, err
	}
	info, err := jsonv.FromGo(&a.cfg.Info)
	if err != nil {
		return nil, fmt.Errorf("encode info: %w", err)
	}
	tags, err := documentTags(ext.Tags)
	if err != nil {
		return nil, err
	}

	components := jsonv.NewObject().
		Set("schemas", jsonv.ObjectValue(registry)).
		Set("securitySchemes", jsonv.ObjectValue(schemes))
	root := jsonv.NewObject().
		Set("openapi", jsonv.StringValue(a.cfg.OpenAPI)).
		Set("info", info)
	if len(a.cfg.Servers) > 0 {
		servers, err := jsonv.FromGo(a.cfg.Servers)
		if err != nil {
			return nil, fmt.Errorf("encode servers: %w", err)
		}
		root.Set("servers", servers)
	}
	root.Set("paths", jsonv.ObjectValue(paths)).
		Set("tags", tags).
		Set("components", jsonv.ObjectValue(components))
	doc := jsonv.ObjectValue(root)

	// Every merge pass removes the blocks it lifts and adds none, so the loop
	// ends once a normalized tree has no blocks left.
	merger := NewMerger(log)
	for {
		if err := NormalizeRefs(doc); err != nil {
			return nil, err
		}
		lifted, err := merger.Merge(doc, registry)
		if err != nil {
			return nil, err
		}
		if lifted == 0 {
			break
		}
		log.Debug("lifted local definition blocks", "count", lifted)
	}

	res.Document = doc
	res.Warnings = append(res.Warnings, builder.Warnings()...)
	res.Warnings = append(res.Warnings, merger.Warnings()...)
	log.Info("assembled OpenAPI document",
		"operations", len(routes)-len(res.Skipped),
		"skipped", len(res.Skipped),
		"schemas", registry.Len(),
		"warnings", len(res.Warnings))
	return res, nil
}

// securitySchemes declares one placeholder scheme per distinct authorizer
// name. The placeholder is always an Authorization header API key; the real
// authorizer mechanism is not inspected.
func securitySchemes(routes []Route) (*jsonv.Obj, error) {
	out := jsonv.NewObject()
	for _, r := range routes {
		if r.Authorizer == "" || out.Has(r.Authorizer) {
			continue
		}
		scheme := &openapi3.SecurityScheme{Type: "apiKey", Name: "Authorization", In: "header"}
		v, err := jsonv.FromGo(scheme)
		if err != nil {
			return nil, fmt.Errorf("encode security scheme %q: %w", r.Authorizer, err)
		}
		out.Set(r.Authorizer, v)
	}
	return out, nil
}

func documentTags(tags []TagInfo) (jsonv.Value, error) {
	list := make(openapi3.Tags, 0, len(tags))
	for _, t := range tags {
		list = append(list, &openapi3.Tag{Name: t.Name, Description: t.Description})
	}
	v, err := jsonv.FromGo(list)
	if err != nil {
		return jsonv.Value{}, fmt.Errorf("encode tags: %w", err)
	}
	return v, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
