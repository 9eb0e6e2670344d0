package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/oasassemble/internal/emitter/docemitter"
	"github.com/mark3labs/oasassemble/internal/extract"
	"github.com/mark3labs/oasassemble/internal/routes"
	"github.com/mark3labs/oasassemble/internal/spec"
)

const defaultOut = "openapi.json"

// AssembleConfig captures all inputs that influence the assemble command
// after merging defaults, config file values, and CLI overrides.
type AssembleConfig struct {
	Routes       string
	Metadata     string
	Extractor    string
	ExtractorDir string
	Out          string
	Format       string
	Indent       int
	OpenAPI      string
	Title        string
	Version      string
	Description  string
	Servers      []string
	Timeout      time.Duration
	ConfigPath   string
	DryRun       bool
	Force        bool
	Verbose      bool

	// pinned records document fields set on the command line, which take
	// precedence over the serverless custom section.
	pinned map[string]bool
}

func defaultAssembleConfig() AssembleConfig {
	return AssembleConfig{Out: defaultOut, OpenAPI: spec.DefaultOpenAPIVersion}
}

var assembleRunner = runAssemble

func newAssembleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assemble",
		Short: "Assemble an OpenAPI document from routes and handler metadata",
		Long: "Assemble an OpenAPI document from a serverless config (or routes file) and the metadata " +
			"the extractor reports for each handler. Options can be provided via flags, config files, or defaults.",
		Example: strings.TrimSpace(`  oasassemble assemble --routes serverless.yml --extractor "uv run get_function_openapi_metadata.py"
  oasassemble assemble --routes routes.yaml --metadata meta.json --out openapi.yaml
  oasassemble --config oasassemble.yaml assemble --force --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveAssembleConfig(cmd)
			if err != nil {
				return err
			}
			return assembleRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("routes", "", "Serverless config or routes file (YAML/JSON)")
	flags.String("metadata", "", "Path or http/https URL of the extractor output")
	flags.String("extractor", "", "Extractor command; handler ids are appended as arguments")
	flags.String("extractor-dir", "", "Working directory for the extractor command")
	flags.String("out", "", "Output file; defaults to openapi.json")
	flags.String("format", "", "Output format (json|yaml); derived from --out when omitted")
	flags.Int("indent", 0, "JSON indent width; defaults to 4")
	flags.String("openapi", "", "Value of the document's openapi field; defaults to 3.1.0")
	flags.String("title", "", "API title (overrides custom.openapi.info.title)")
	flags.String("version", "", "API version (overrides custom.openapi.info.version)")
	flags.String("description", "", "API description (overrides custom.openapi.info.description)")
	flags.StringSlice("server", nil, "Server URL; repeatable (overrides the custom domain)")
	flags.Duration("timeout", 0, "Timeout for each HTTP metadata request")
	flags.Bool("dry-run", false, "Preview the planned output without writing it")
	flags.Bool("force", false, "Overwrite the output file when it exists")

	return cmd
}

func resolveAssembleConfig(cmd *cobra.Command) (*AssembleConfig, error) {
	cfg := defaultAssembleConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyAssembleConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := applyAssembleFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyAssembleFlagOverrides(flags *pflag.FlagSet, cfg *AssembleConfig) error {
	strs := []struct {
		flag string
		dst  *string
	}{
		{"routes", &cfg.Routes},
		{"metadata", &cfg.Metadata},
		{"extractor", &cfg.Extractor},
		{"extractor-dir", &cfg.ExtractorDir},
		{"out", &cfg.Out},
		{"format", &cfg.Format},
		{"openapi", &cfg.OpenAPI},
		{"title", &cfg.Title},
		{"version", &cfg.Version},
		{"description", &cfg.Description},
	}
	for _, s := range strs {
		if !flags.Changed(s.flag) {
			continue
		}
		value, err := flags.GetString(s.flag)
		if err != nil {
			return err
		}
		*s.dst = strings.TrimSpace(value)
		cfg.pin(s.flag)
	}
	if flags.Changed("server") {
		value, err := flags.GetStringSlice("server")
		if err != nil {
			return err
		}
		cfg.Servers = sanitizeList(value)
		cfg.pin("server")
	}
	if flags.Changed("indent") {
		value, err := flags.GetInt("indent")
		if err != nil {
			return err
		}
		cfg.Indent = value
	}
	if flags.Changed("timeout") {
		value, err := flags.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = value
	}
	if flags.Changed("dry-run") {
		value, err := flags.GetBool("dry-run")
		if err != nil {
			return err
		}
		cfg.DryRun = value
	}
	if flags.Changed("force") {
		value, err := flags.GetBool("force")
		if err != nil {
			return err
		}
		cfg.Force = value
	}
	if flags.Changed("verbose") {
		value, err := flags.GetBool("verbose")
		if err != nil {
			return err
		}
		cfg.Verbose = value
	}

	return nil
}

func (c *AssembleConfig) pin(field string) {
	if c.pinned == nil {
		c.pinned = map[string]bool{}
	}
	c.pinned[field] = true
}

func (c *AssembleConfig) normalize() {
	c.Routes = strings.TrimSpace(c.Routes)
	c.Metadata = strings.TrimSpace(c.Metadata)
	c.Extractor = strings.TrimSpace(c.Extractor)
	c.ExtractorDir = strings.TrimSpace(c.ExtractorDir)
	c.Out = strings.TrimSpace(c.Out)
	if c.Out == "" {
		c.Out = defaultOut
	}
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	c.OpenAPI = strings.TrimSpace(c.OpenAPI)
	if c.OpenAPI == "" {
		c.OpenAPI = spec.DefaultOpenAPIVersion
	}
	c.Title = strings.TrimSpace(c.Title)
	c.Version = strings.TrimSpace(c.Version)
	c.Description = strings.TrimSpace(c.Description)
	c.Servers = sanitizeList(c.Servers)
}

func (c *AssembleConfig) validate() error {
	if c.Routes == "" {
		return newUsageError("assemble: --routes is required (set via flag or config file)")
	}
	switch {
	case c.Metadata == "" && c.Extractor == "":
		return newUsageError("assemble: one of --metadata or --extractor is required")
	case c.Metadata != "" && c.Extractor != "":
		return newUsageError("assemble: --metadata and --extractor are mutually exclusive")
	}
	if c.Format != "" {
		if _, err := docemitter.ParseFormat(c.Format); err != nil {
			return usageErrorf("assemble: %v", err)
		}
	}
	if c.Indent < 0 {
		return usageErrorf("assemble: --indent must not be negative (got %d)", c.Indent)
	}
	if c.Timeout < 0 {
		return usageErrorf("assemble: --timeout must not be negative (got %s)", c.Timeout)
	}
	return nil
}

// documentConfig layers the serverless custom section over the config file
// values, then lets command line values win.
func (c *AssembleConfig) documentConfig(svc *routes.Service) spec.Config {
	pick := func(field, current, discovered string) string {
		if c.pinned[field] || discovered == "" {
			return current
		}
		return discovered
	}
	out := spec.Config{OpenAPI: c.OpenAPI}
	out.Info = openapi3.Info{
		Title:       pick("title", c.Title, svc.Info.Title),
		Version:     pick("version", c.Version, svc.Info.Version),
		Description: pick("description", c.Description, svc.Info.Description),
	}
	if len(svc.Servers) > 0 && !c.pinned["server"] {
		out.Servers = svc.Servers
		return out
	}
	for _, u := range c.Servers {
		out.Servers = append(out.Servers, &openapi3.Server{URL: u})
	}
	return out
}

func (c *AssembleConfig) metadataSource() (spec.MetadataSource, error) {
	var opts []extract.Option
	if c.Timeout > 0 {
		opts = append(opts, extract.WithHTTPTimeout(c.Timeout))
	}
	if c.Extractor != "" {
		if c.ExtractorDir != "" {
			opts = append(opts, extract.WithDir(c.ExtractorDir))
		}
		return extract.NewCommandSource(c.Extractor, opts...)
	}
	return extract.Open(c.Metadata, opts...)
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func runAssemble(ctx context.Context, cfg *AssembleConfig) error {
	logger := newLogger(os.Stderr, cfg.Verbose)

	// 1) Discover routes
	svc, err := routes.Load(cfg.Routes)
	if err != nil {
		return usageErrorf("routes: %v", err)
	}
	logger.Debug("discovered routes", "count", len(svc.Routes), "source", cfg.Routes)

	// 2) Resolve document settings
	docCfg := cfg.documentConfig(svc)
	if err := docCfg.Validate(ctx); err != nil {
		return usageErrorf("document settings: %v\nHint: set --title/--version, the config file, or custom.openapi.info in the serverless config.", err)
	}

	// 3) Fetch metadata and assemble
	src, err := cfg.metadataSource()
	if err != nil {
		return sourceError(err)
	}
	res, err := spec.New(docCfg, spec.WithLogger(logger)).Assemble(ctx, svc.Routes, src)
	if err != nil {
		return sourceError(err)
	}

	// 4) Emit
	format := docemitter.FormatFor(cfg.Out)
	if cfg.Format != "" {
		format, _ = docemitter.ParseFormat(cfg.Format)
	}
	absOut := cfg.Out
	if ap, err := filepath.Abs(cfg.Out); err == nil {
		absOut = ap
	}
	emitted, err := docemitter.Emit(ctx, res.Document, docemitter.Options{
		Path:   cfg.Out,
		Format: format,
		Indent: cfg.Indent,
		Force:  cfg.Force,
		DryRun: cfg.DryRun,
	})
	if err != nil {
		return wrapOutputError(err, absOut)
	}
	if cfg.DryRun {
		paths := make([]string, 0, len(emitted.Planned))
		for _, p := range emitted.Planned {
			paths = append(paths, p.RelPath)
		}
		printPlan(filepath.Dir(emitted.Path), len(emitted.Planned), paths)
		return nil
	}
	fmt.Fprintf(os.Stdout, "Wrote OpenAPI document to %s (%d paths, %d skipped routes, %d warnings)\n",
		emitted.Path, res.Document.Obj().Object("paths").Len(), len(res.Skipped), len(res.Warnings))
	return nil
}

// sourceError turns extractor failures into friendly messages; assembly
// failures pass through wrapped.
func sourceError(err error) error {
	var se *extract.SourceError
	if errors.As(err, &se) {
		msg := fmt.Sprintf("metadata: %s", se.Message)
		if se.Location != "" && !strings.Contains(se.Message, se.Location) {
			msg = fmt.Sprintf("%s\nLocation: %s", msg, se.Location)
		}
		return newUsageError(msg)
	}
	return fmt.Errorf("assemble: %w", err)
}

func printPlan(outDir string, count int, relPaths []string) {
	fmt.Fprintf(os.Stdout, "Planned writes to %s (%d files):\n", outDir, count)
	for _, p := range relPaths {
		fmt.Fprintf(os.Stdout, "- %s\n", p)
	}
}

func wrapOutputError(err error, out string) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") || strings.Contains(lower, "rename") || strings.Contains(lower, "already exists") || strings.Contains(lower, "is a directory") {
		return usageErrorf("output error for %s: %s\nHint: choose a different --out or use --force when appropriate.", out, msg)
	}
	return err
}

func sanitizeList(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func applyAssembleConfigFromFile(cfg *AssembleConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return usageErrorf("read config file %q: %v", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return usageErrorf("parse config file %q: %v", path, err)
	}

	strs := map[string]*string{
		"routes":       &cfg.Routes,
		"metadata":     &cfg.Metadata,
		"extractor":    &cfg.Extractor,
		"extractordir": &cfg.ExtractorDir,
		"out":          &cfg.Out,
		"format":       &cfg.Format,
		"openapi":      &cfg.OpenAPI,
		"title":        &cfg.Title,
		"version":      &cfg.Version,
		"description":  &cfg.Description,
	}
	bools := map[string]*bool{
		"dryrun":  &cfg.DryRun,
		"force":   &cfg.Force,
		"verbose": &cfg.Verbose,
	}

	for key, value := range raw {
		normalized := normalizeKey(key)
		if dst, ok := strs[normalized]; ok {
			str, err := valueAsString(value)
			if err != nil {
				return usageErrorf("config field %q: %v", key, err)
			}
			*dst = str
			continue
		}
		if dst, ok := bools[normalized]; ok {
			val, err := valueAsBool(value)
			if err != nil {
				return usageErrorf("config field %q: %v", key, err)
			}
			*dst = val
			continue
		}
		switch normalized {
		case "servers", "server":
			list, err := valueAsStringSlice(value)
			if err != nil {
				return usageErrorf("config field %q: %v", key, err)
			}
			cfg.Servers = sanitizeList(list)
		case "indent":
			n, err := valueAsInt(value)
			if err != nil {
				return usageErrorf("config field %q: %v", key, err)
			}
			cfg.Indent = n
		case "timeout":
			d, err := valueAsDuration(value)
			if err != nil {
				return usageErrorf("config field %q: %v", key, err)
			}
			cfg.Timeout = d
		default:
			return usageErrorf("config file %q: unknown field %q", path, key)
		}
	}

	return nil
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		trimmed := strings.ToLower(strings.TrimSpace(val))
		switch trimmed {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n", "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func valueAsInt(v any) (int, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("invalid integer value %q", val)
		}
		return n, nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

// valueAsDuration accepts Go duration strings ("30s") or a number of seconds.
func valueAsDuration(v any) (time.Duration, error) {
	switch val := v.(type) {
	case int:
		return time.Duration(val) * time.Second, nil
	case string:
		d, err := time.ParseDuration(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", val)
		}
		return d, nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("expected duration, got %T", v)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
