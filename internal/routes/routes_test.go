package routes

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mark3labs/oasassemble/internal/spec"
)

const serverlessYAML = `service: recipes
custom:
  customDomain:
    domainName: api.example.com
  openapi:
    info:
      title: Recipes API
      version: 1.2.0
      description: Recipe storage
functions:
  getRecipe:
    handler: functions/get_recipe/handler.handler
    events:
      - httpApi:
          method: get
          path: /recipes/{id}
          authorizer:
            id:
              Ref: CognitoAuthorizer
  listRecipes:
    handler: functions/list_recipes/handler.handler
    events:
      - httpApi: 'GET /recipes'
      - schedule: rate(1 hour)
  createRecipe:
    handler: functions/create_recipe/handler.handler
    events:
      - httpApi:
          method: POST
          path: /recipes
          authorizer:
            name: jwtAuth
  worker:
    handler: functions/worker/handler.handler
    events:
      - sqs: arn:aws:sqs:region:1:queue
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadServerless(t *testing.T) {
	t.Parallel()
	svc, err := LoadServerless(writeFile(t, "serverless.yml", serverlessYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []spec.Route{
		{Path: "/recipes/{id}", Method: spec.GET, Handler: "functions/get_recipe/handler.handler", Authorizer: "CognitoAuthorizer"},
		{Path: "/recipes", Method: spec.GET, Handler: "functions/list_recipes/handler.handler"},
		{Path: "/recipes", Method: spec.POST, Handler: "functions/create_recipe/handler.handler", Authorizer: "jwtAuth"},
	}
	if diff := cmp.Diff(want, svc.Routes); diff != "" {
		t.Fatalf("routes mismatch (-want +got):\n%s", diff)
	}
	if svc.Info.Title != "Recipes API" || svc.Info.Version != "1.2.0" || svc.Info.Description != "Recipe storage" {
		t.Fatalf("unexpected info %+v", svc.Info)
	}
	if len(svc.Servers) != 1 || svc.Servers[0].URL != "https://api.example.com" {
		t.Fatalf("unexpected servers %+v", svc.Servers)
	}
}

func TestParseServerless_NoCustomSection(t *testing.T) {
	t.Parallel()
	svc, err := ParseServerless([]byte("functions:\n  a:\n    handler: a.handler\n    events:\n      - httpApi: 'DELETE /a'\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(svc.Servers) != 0 || svc.Info.Title != "" {
		t.Fatalf("expected no servers or info, got %+v", svc)
	}
	if len(svc.Routes) != 1 || svc.Routes[0].Method != spec.DELETE {
		t.Fatalf("unexpected routes %+v", svc.Routes)
	}
}

func TestParseServerless_Rejects(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"catch-all":       "functions:\n  a:\n    handler: a.h\n    events:\n      - httpApi: '*'\n",
		"bad shorthand":   "functions:\n  a:\n    handler: a.h\n    events:\n      - httpApi: 'GET'\n",
		"missing handler": "functions:\n  a:\n    events:\n      - httpApi: 'GET /a'\n",
		"relative path":   "functions:\n  a:\n    handler: a.h\n    events:\n      - httpApi: 'GET a'\n",
		"duplicate":       "functions:\n  a:\n    handler: a.h\n    events:\n      - httpApi: 'GET /a'\n  b:\n    handler: b.h\n    events:\n      - httpApi: 'get /a'\n",
		"functions list":  "functions:\n  - a\n",
	}
	for name, doc := range cases {
		if _, err := ParseServerless([]byte(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestValidate_ReportsProblems(t *testing.T) {
	t.Parallel()
	err := Validate([]spec.Route{
		{Path: "/ok", Method: spec.GET, Handler: "h"},
		{Path: "nope", Method: "FETCH", Handler: ""},
	})
	var ire *InvalidRouteError
	if !errors.As(err, &ire) {
		t.Fatalf("expected InvalidRouteError, got %v", err)
	}
	if ire.Index != 1 || len(ire.Problems) != 3 {
		t.Fatalf("unexpected error %+v", ire)
	}
	msg := err.Error()
	for _, want := range []string{`path: must start with "/"`, `unsupported HTTP method "FETCH"`, "handler: required"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %q", want, msg)
		}
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()
	list := `- path: /a
  method: get
  handler: a.handler
  tags: [alpha]
- path: /b
  method: POST
  handler: b.handler
  authorizer: jwt
`
	wrapped := `{"routes": [{"path": "/a", "method": "GET", "handler": "a.handler", "tags": ["alpha"]},
  {"path": "/b", "method": "post", "handler": "b.handler", "authorizer": "jwt"}]}`
	want := []spec.Route{
		{Path: "/a", Method: spec.GET, Handler: "a.handler", Tags: []string{"alpha"}},
		{Path: "/b", Method: spec.POST, Handler: "b.handler", Authorizer: "jwt"},
	}
	for name, content := range map[string]string{"routes.yaml": list, "routes.json": wrapped} {
		got, err := LoadFile(writeFile(t, name, content))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", name, diff)
		}
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	t.Parallel()
	if _, err := LoadFile(writeFile(t, "r.yaml", "- path: /a\n  method: GET\n")); err == nil {
		t.Fatalf("expected validation error for missing handler")
	}
	if _, err := LoadFile(writeFile(t, "r.yaml", "just a string\n")); err == nil {
		t.Fatalf("expected shape error")
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestLoad_DetectsShape(t *testing.T) {
	t.Parallel()
	svc, err := Load(writeFile(t, "serverless.yml", serverlessYAML))
	if err != nil {
		t.Fatalf("load serverless: %v", err)
	}
	if len(svc.Routes) != 3 || svc.Info.Title != "Recipes API" {
		t.Fatalf("expected serverless routes and info, got %+v", svc)
	}

	svc, err = Load(writeFile(t, "routes.yaml", "- path: /a\n  method: GET\n  handler: a.handler\n"))
	if err != nil {
		t.Fatalf("load routes: %v", err)
	}
	if len(svc.Routes) != 1 || svc.Info.Title != "" || svc.Servers != nil {
		t.Fatalf("unexpected service %+v", svc)
	}
}
