package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const payloadJSON = `{
  "endpoints": {
    "functions/get_recipe/handler.handler": {
      "responseNames": ["Ok"],
      "body": null,
      "queryParams": null,
      "pathParams": null,
      "operationId": "getRecipe",
      "description": null,
      "summary": null,
      "tags": ["recipes"]
    },
    "functions/other/handler.handler": null
  },
  "models": {"$defs": {"Ok": {"title": "Ok"}}},
  "tags": [{"name": "recipes", "description": null}]
}`

const payloadYAML = `endpoints:
  h1:
    responseNames: [Ok]
    operationId: listThings
    tags: [things]
models:
  $defs:
    Ok:
      title: Ok
      properties:
        statusCode: {const: 200}
tags:
  - name: things
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestFileSource_JSON(t *testing.T) {
	t.Parallel()
	src := NewFileSource(writeTemp(t, "meta.json", payloadJSON))
	ext, err := src.Fetch(context.Background(), nil)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	meta := ext.Endpoints["functions/get_recipe/handler.handler"]
	if meta == nil || meta.OperationID != "getRecipe" || !meta.Body.IsNull() {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	if ext.Endpoints["functions/other/handler.handler"] != nil {
		t.Fatalf("null endpoint must decode as nil")
	}
	if got := ext.Registry().Keys(); !cmp.Equal(got, []string{"Ok"}) {
		t.Fatalf("unexpected registry %v", got)
	}
}

func TestFileSource_YAML(t *testing.T) {
	t.Parallel()
	src := NewFileSource(writeTemp(t, "meta.yaml", payloadYAML))
	ext, err := src.Fetch(context.Background(), nil)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got := ext.Endpoints["h1"].ResponseNames; !cmp.Equal(got, []string{"Ok"}) {
		t.Fatalf("unexpected response names %v", got)
	}
	code := ext.Registry().Object("Ok").Object("properties").Object("statusCode").Value("const").Text()
	if code != "200" {
		t.Fatalf("expected numeric const to survive YAML decoding, got %q", code)
	}
}

func TestFileSource_Errors(t *testing.T) {
	t.Parallel()
	cases := map[string]struct {
		path string
		code ErrorCode
	}{
		"missing file":      {path: filepath.Join(t.TempDir(), "nope.json"), code: InputError},
		"invalid json":      {path: writeTemp(t, "bad.json", `{"endpoints":`), code: ParseError},
		"missing endpoints": {path: writeTemp(t, "empty.json", `{"models":{}}`), code: ParseError},
	}
	for name, tc := range cases {
		_, err := NewFileSource(tc.path).Fetch(context.Background(), nil)
		var se *SourceError
		if !errors.As(err, &se) || se.Code != tc.code {
			t.Errorf("%s: expected %s, got %v", name, tc.code, err)
		}
	}
}

func TestCommandSource(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	t.Parallel()
	payload := writeTemp(t, "out.json", payloadJSON)

	// Handler ids arrive as positional parameters and are ignored by the script.
	src := &CommandSource{Name: "sh", Args: []string{"-c", "cat " + payload}}
	ext, err := src.Fetch(context.Background(), []string{"functions/get_recipe/handler.handler"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(ext.Endpoints) != 2 {
		t.Fatalf("unexpected endpoints %v", ext.Endpoints)
	}
}

func TestCommandSource_NonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	t.Parallel()
	src := &CommandSource{Name: "sh", Args: []string{"-c", "echo 'ModuleNotFoundError: pydantic' >&2; exit 3"}}
	_, err := src.Fetch(context.Background(), []string{"h1"})
	var se *SourceError
	if !errors.As(err, &se) || se.Code != ProcessError {
		t.Fatalf("expected process error, got %v", err)
	}
	if !strings.Contains(se.Message, "ModuleNotFoundError") {
		t.Fatalf("expected stderr in message, got %q", se.Message)
	}
}

func TestNewCommandSource_Splits(t *testing.T) {
	t.Parallel()
	src, err := NewCommandSource("uv run get_function_openapi_metadata.py")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if src.Name != "uv" || !cmp.Equal(src.Args, []string{"run", "get_function_openapi_metadata.py"}) {
		t.Fatalf("unexpected split %q %q", src.Name, src.Args)
	}
	if _, err := NewCommandSource("   "); err == nil {
		t.Fatalf("expected error for empty command")
	}
}

func TestHTTPSource_RetriesTransientFailures(t *testing.T) {
	t.Parallel()
	var calls int32
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req struct {
			Handlers []string `json:"handlers"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		got = req.Handlers
		_, _ = w.Write([]byte(payloadJSON))
	}))
	defer srv.Close()

	src, err := Open(srv.URL, WithBackoffBase(time.Millisecond))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ext, err := src.Fetch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected one retry, got %d calls", calls)
	}
	if !cmp.Equal(got, []string{"a", "b"}) {
		t.Fatalf("server saw handlers %v", got)
	}
	if ext.Endpoints["functions/get_recipe/handler.handler"] == nil {
		t.Fatalf("payload not decoded")
	}
}

func TestHTTPSource_ClientErrorIsNotRetried(t *testing.T) {
	t.Parallel()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unknown handler", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewHTTPSource(srv.URL, WithBackoffBase(time.Millisecond)).Fetch(context.Background(), []string{"x"})
	var se *SourceError
	if !errors.As(err, &se) || se.Code != NetworkError {
		t.Fatalf("expected network error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("4xx must not be retried, got %d calls", calls)
	}
}

func TestOpen_Classifies(t *testing.T) {
	t.Parallel()
	if src, err := Open("./meta.json"); err != nil {
		t.Fatalf("open file: %v", err)
	} else if _, ok := src.(*FileSource); !ok {
		t.Fatalf("expected FileSource, got %T", src)
	}
	if _, err := Open("ftp://example.com/meta.json"); err == nil {
		t.Fatalf("expected unsupported scheme error")
	}
	if _, err := Open(""); err == nil {
		t.Fatalf("expected empty input error")
	}
}
