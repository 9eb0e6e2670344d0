package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const defaultInitPath = "oasassemble.yaml"

// InitConfig captures the options for the init command.
type InitConfig struct {
	OutputPath string
	Force      bool
	Verbose    bool
}

var initRunner = runInit

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a sample oasassemble configuration file",
		Long:  "Scaffold a commented oasassemble configuration file that documents available options.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				return err
			}
			return initRunner(cmd.Context(), &InitConfig{
				OutputPath: out,
				Force:      force,
				Verbose:    verbose,
			})
		},
	}

	cmd.Flags().String("out", defaultInitPath, "Where to write the sample config file")
	cmd.Flags().Bool("force", false, "Overwrite the target file if it already exists")

	return cmd
}

func runInit(ctx context.Context, cfg *InitConfig) error {
	_ = ctx

	out := strings.TrimSpace(cfg.OutputPath)
	if out == "" {
		out = defaultInitPath
	}
	absPath, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("init: resolve output path: %w", err)
	}

	if st, err := os.Stat(absPath); err == nil && !cfg.Force && st.Mode().IsRegular() {
		return usageErrorf("init: %q already exists (use --force to overwrite)", absPath)
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return usageErrorf("init: cannot create parent directory: %v", err)
	}

	content := strings.TrimSpace(sampleConfigYAML) + "\n"

	tmp := absPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return usageErrorf("init: cannot write temp file: %v\nHint: choose a different --out or check directory permissions.", err)
	}
	if err := os.Rename(tmp, absPath); err != nil {
		_ = os.Remove(tmp)
		return usageErrorf("init: cannot place file at %s: %v", absPath, err)
	}
	fmt.Fprintf(os.Stdout, "Wrote sample config to %s\n", absPath)
	return nil
}

// sampleConfigYAML documents every key the assemble command reads.
const sampleConfigYAML = `# oasassemble configuration (YAML)
# All fields are optional. Values from the serverless config's custom.openapi
# section override title/version/description here; command-line flags
# override both.

# Serverless config (functions with httpApi events) or a plain routes file.
# routes: ./serverless.yml

# Where endpoint metadata comes from. Set exactly one.
# metadata: ./.serverless/metadata.json      # file path or http/https URL
# extractor: uv run get_function_openapi_metadata.py

# Working directory for the extractor command.
# extractorDir: .

# Timeout for each HTTP metadata request (Go duration or seconds).
# timeout: 30s

# Output file; .yaml/.yml selects YAML, anything else JSON.
# out: .serverless/openapi.json

# Force the output format (json|yaml).
# format: json

# JSON indent width.
# indent: 4

# Document settings.
# openapi: 3.1.0
# title: My API
# version: 1.0.0
# description: Public API
# servers: [https://api.example.com]

# Preview the planned output without writing it.
# dryRun: false

# Overwrite an existing output file.
# force: false

# Enable verbose logging.
# verbose: false
`
