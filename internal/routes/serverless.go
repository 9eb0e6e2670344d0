package routes

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/oasassemble/internal/spec"
)

type serverlessConfig struct {
	// Functions stays a node so declaration order survives decoding.
	Functions yaml.Node        `yaml:"functions"`
	Custom    serverlessCustom `yaml:"custom"`
}

type serverlessCustom struct {
	OpenAPI struct {
		Info struct {
			Title       string `yaml:"title"`
			Version     string `yaml:"version"`
			Description string `yaml:"description"`
		} `yaml:"info"`
	} `yaml:"openapi"`
	CustomDomain struct {
		DomainName string `yaml:"domainName"`
	} `yaml:"customDomain"`
}

type serverlessFunction struct {
	Handler string            `yaml:"handler"`
	Events  []serverlessEvent `yaml:"events"`
}

type serverlessEvent struct {
	HTTPAPI *httpAPIEvent `yaml:"httpApi"`
}

// httpAPIEvent accepts both the "METHOD /path" shorthand and the long form.
type httpAPIEvent struct {
	Method     string             `yaml:"method"`
	Path       string             `yaml:"path"`
	Authorizer *httpAPIAuthorizer `yaml:"authorizer"`
}

type httpAPIAuthorizer struct {
	Name string    `yaml:"name"`
	ID   yaml.Node `yaml:"id"`
}

func (e *httpAPIEvent) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		value := strings.TrimSpace(node.Value)
		if value == "*" {
			e.Method, e.Path = "*", "*"
			return nil
		}
		method, path, ok := strings.Cut(value, " ")
		if !ok {
			return fmt.Errorf("line %d: httpApi %q is not of the form \"METHOD /path\"", node.Line, node.Value)
		}
		e.Method, e.Path = method, strings.TrimSpace(path)
		return nil
	}
	type plain httpAPIEvent
	return node.Decode((*plain)(e))
}

// name prefers id.Ref over name, which is how CloudFormation-backed
// authorizers are referenced.
func (a *httpAPIAuthorizer) name() string {
	if a == nil {
		return ""
	}
	switch a.ID.Kind {
	case yaml.MappingNode:
		var ref struct {
			Ref string `yaml:"Ref"`
		}
		if err := a.ID.Decode(&ref); err == nil && strings.TrimSpace(ref.Ref) != "" {
			return strings.TrimSpace(ref.Ref)
		}
	case yaml.ScalarNode:
		if v := strings.TrimSpace(a.ID.Value); v != "" {
			return v
		}
	}
	return strings.TrimSpace(a.Name)
}

// LoadServerless reads a serverless service config and returns its httpApi
// routes in declaration order, plus document info and servers from the
// custom section.
func LoadServerless(path string) (*Service, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read serverless config %q: %w", path, err)
	}
	svc, err := ParseServerless(data)
	if err != nil {
		return nil, fmt.Errorf("serverless config %q: %w", path, err)
	}
	return svc, nil
}

// ParseServerless is LoadServerless over in-memory YAML.
func ParseServerless(data []byte) (*Service, error) {
	var cfg serverlessConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	var out []spec.Route
	fns := &cfg.Functions
	switch fns.Kind {
	case 0:
	case yaml.MappingNode:
		for i := 0; i+1 < len(fns.Content); i += 2 {
			name := fns.Content[i].Value
			var fn serverlessFunction
			if err := fns.Content[i+1].Decode(&fn); err != nil {
				return nil, fmt.Errorf("function %q: %w", name, err)
			}
			for _, evt := range fn.Events {
				if evt.HTTPAPI == nil {
					continue
				}
				if strings.TrimSpace(evt.HTTPAPI.Method) == "*" {
					return nil, fmt.Errorf("function %q: catch-all method \"*\" cannot be described as a single operation", name)
				}
				out = append(out, spec.Route{
					Path:       strings.TrimSpace(evt.HTTPAPI.Path),
					Method:     normalizeMethod(evt.HTTPAPI.Method),
					Handler:    strings.TrimSpace(fn.Handler),
					Authorizer: evt.HTTPAPI.Authorizer.name(),
				})
			}
		}
	default:
		return nil, errors.New("functions must be a mapping of function name to definition")
	}
	if err := Validate(out); err != nil {
		return nil, err
	}

	svc := &Service{
		Routes: out,
		Info: openapi3.Info{
			Title:       strings.TrimSpace(cfg.Custom.OpenAPI.Info.Title),
			Version:     strings.TrimSpace(cfg.Custom.OpenAPI.Info.Version),
			Description: strings.TrimSpace(cfg.Custom.OpenAPI.Info.Description),
		},
	}
	if domain := strings.TrimSpace(cfg.Custom.CustomDomain.DomainName); domain != "" {
		svc.Servers = openapi3.Servers{{URL: "https://" + domain}}
	}
	return svc, nil
}
