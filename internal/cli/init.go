package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// InitConfig captures the options for the init command.
type InitConfig struct {
	OutputPath string
	// Spec, when set, is written as an active spec entry.
	Spec    string
	Force   bool
	Verbose bool
	Stdout  io.Writer
}

var initRunner = runInit

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a sample swaggerclient configuration file",
		Long:  "Scaffold a commented swaggerclient configuration file that documents available options.",
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
			specInput, err := cmd.Flags().GetString("spec")
			if err != nil {
				return err
			}
			cfg := &InitConfig{
				OutputPath: out,
				Spec:       specInput,
				Force:      force,
				Verbose:    verbose,
				Stdout:     cmd.OutOrStdout(),
			}
			return initRunner(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("out", "swaggerclient.yaml", "Where to write the sample config file")
	cmd.Flags().Bool("force", false, "Overwrite the target file if it already exists")
	cmd.Flags().String("spec", "", "Spec path or URL to write into the sample config")

	return cmd
}

func runInit(ctx context.Context, cfg *InitConfig) error {
	_ = ctx

	out := strings.TrimSpace(cfg.OutputPath)
	if out == "" {
		out = "swaggerclient.yaml"
	}
	absPath, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("init: resolve output path: %w", err)
	}

	if st, err := os.Stat(absPath); err == nil && !cfg.Force {
		if st.Mode().IsRegular() {
			return newUsageError(fmt.Sprintf("init: %q already exists (use --force to overwrite)", absPath))
		}
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return newUsageError(fmt.Sprintf("init: cannot create parent directory: %v", err))
	}

	content := strings.TrimSpace(sampleConfigYAML) + "\n"
	if spec := strings.TrimSpace(cfg.Spec); spec != "" {
		content = strings.Replace(content, "# spec: ./petstore.yaml", "spec: "+strconv.Quote(spec), 1)
	}

	// Atomic write via temp + rename
	tmp := absPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return newUsageError(fmt.Sprintf("init: cannot write temp file: %v\nHint: choose a different --out or check directory permissions.", err))
	}
	if err := os.Rename(tmp, absPath); err != nil {
		_ = os.Remove(tmp)
		return newUsageError(fmt.Sprintf("init: cannot place file at %s: %v", absPath, err))
	}
	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	fmt.Fprintf(stdout, "Wrote sample config to %s\n", absPath)
	return nil
}

// sampleConfigYAML is a commented example config documenting available options.
const sampleConfigYAML = `# swaggerclient configuration (YAML)
# All fields are optional. Command-line flags override config values.

# Path or URL to the Swagger 2.0 document (http/https or local file).
# spec: ./petstore.yaml

# Base URL requests are sent to. Derived from schemes/host/basePath when omitted.
# baseURL: https://petstore.example.com/v2

# HTTP transport (resty|std). Defaults to resty.
# transport: resty

# Per-request timeout as a Go duration or a number of seconds.
# timeout: 30s

# Headers added to every request.
# headers:
#   Authorization: Bearer <token>

# Header carrying the generated per-call request id. Empty disables it.
# requestIDHeader: X-Request-ID

# Enable verbose logging.
# verbose: false
`
