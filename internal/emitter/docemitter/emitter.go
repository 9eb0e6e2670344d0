// Package docemitter writes an assembled OpenAPI document to disk.
package docemitter

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mark3labs/oasassemble/internal/jsonv"
)

// Format selects the output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DefaultIndent is the JSON indent width used when Options.Indent is zero.
const DefaultIndent = 4

// Options controls how the document is rendered and written.
type Options struct {
	Path   string // required; target file
	Format Format // derived from the Path extension when empty
	Indent int    // JSON indent width; DefaultIndent when zero
	Force  bool   // overwrite an existing file
	DryRun bool   // don't write, only plan
}

// PlannedFile describes the file the emitter intends to write.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
}

// Result returns the resolved target and the planned write.
type Result struct {
	Path    string
	Format  Format
	Planned []PlannedFile
}

// ParseFormat accepts "json", "yaml" or "yml" in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported format %q (allowed: json, yaml)", s)
	}
}

// FormatFor infers the format from a file extension, defaulting to JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Emit renders doc and writes it to opts.Path unless DryRun is set.
func Emit(ctx context.Context, doc jsonv.Value, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !doc.IsDefined() {
		return nil, fmt.Errorf("docemitter: nil document")
	}
	if strings.TrimSpace(opts.Path) == "" {
		return nil, fmt.Errorf("docemitter: Path is required")
	}
	format := opts.Format
	if format == "" {
		format = FormatFor(opts.Path)
	}
	content, err := Render(doc, format, opts.Indent)
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve output path: %w", err)
	}
	res := &Result{
		Path:    abs,
		Format:  format,
		Planned: []PlannedFile{{RelPath: filepath.Base(abs), Size: len(content), Mode: 0o644}},
	}
	if opts.DryRun {
		return res, nil
	}
	if err := writeFile(abs, content, opts.Force); err != nil {
		return nil, err
	}
	return res, nil
}

// Render encodes doc with key order preserved.
func Render(doc jsonv.Value, format Format, indent int) ([]byte, error) {
	if indent <= 0 {
		indent = DefaultIndent
	}
	var buf bytes.Buffer
	switch format {
	case FormatJSON:
		if err := jsonv.Encode(&buf, doc, strings.Repeat(" ", indent)); err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("docemitter: unsupported format %q", format)
	}
	return buf.Bytes(), nil
}

func writeFile(abs string, content []byte, force bool) error {
	if st, err := os.Stat(abs); err == nil {
		if st.IsDir() {
			return fmt.Errorf("docemitter: output path %q is a directory", abs)
		}
		if !force {
			return fmt.Errorf("docemitter: output file %q already exists (use --force to overwrite)", abs)
		}
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	// atomic write via temp file + rename
	tmp := abs + ".tmp-" + time.Now().Format("20060102150405")
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("write temp %s: %w", filepath.Base(abs), err)
	}
	if err := os.Rename(tmp, abs); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", filepath.Base(abs), err)
	}
	return nil
}
