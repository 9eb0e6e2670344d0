package cli

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestInit_WritesSampleConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"init", "--out", path})

	if err := root.Execute(); err != nil {
		t.Fatalf("init execute: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, "oasassemble configuration") {
		t.Fatalf("unexpected config contents: %s", s)
	}
	// Everything is commented out, so the sample must parse to nothing.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil || len(raw) != 0 {
		t.Fatalf("sample should be an empty YAML document, got %v (err %v)", raw, err)
	}
}

func TestInit_SampleKeysAreAccepted(t *testing.T) {
	t.Parallel()
	var lines []string
	for _, line := range strings.Split(sampleConfigYAML, "\n") {
		if strings.HasPrefix(line, "# ") && strings.Contains(line, ": ") {
			key := strings.TrimPrefix(line, "# ")
			if i := strings.Index(key, ":"); i > 0 && !strings.Contains(key[:i], " ") {
				lines = append(lines, strings.SplitN(key, "   ", 2)[0])
			}
		}
	}
	if len(lines) == 0 {
		t.Fatalf("no keys found in sample")
	}
	path := filepath.Join(t.TempDir(), "uncommented.yaml")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := defaultAssembleConfig()
	if err := applyAssembleConfigFromFile(&cfg, path); err != nil {
		t.Fatalf("sample keys rejected: %v", err)
	}
}

func TestInit_ExistingWithoutForce(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("prewrite: %v", err)
	}

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"init", "--out", path})

	err := root.Execute()
	if err == nil {
		t.Fatalf("expected error for existing file without --force")
	}
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error, got %T: %v", err, err)
	}
}
