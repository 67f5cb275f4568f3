package cli

import (
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/swaggerclient/internal/client"
	"github.com/mark3labs/swaggerclient/internal/spec"
)

// OpsConfig captures the inputs of the ops command.
type OpsConfig struct {
	ClientConfig
	Tags        []string
	ExcludeTags []string
	Methods     []string
	Paths       []string
}

var opsRunner = runOps

func newOpsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ops",
		Short: "List the operations a Swagger 2.0 document defines",
		Example: strings.TrimSpace(`  swaggerclient ops --spec petstore.yaml
  swaggerclient ops --spec https://petstore.swagger.io/v2/swagger.json --tag pet`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := resolveClientConfig(cmd)
			if err != nil {
				return err
			}
			cfg := &OpsConfig{ClientConfig: *base}
			for flag, dst := range map[string]*[]string{
				"tag":         &cfg.Tags,
				"exclude-tag": &cfg.ExcludeTags,
				"method":      &cfg.Methods,
				"path":        &cfg.Paths,
			} {
				values, err := cmd.Flags().GetStringSlice(flag)
				if err != nil {
					return err
				}
				*dst = sanitizeTags(values)
			}
			if err := cfg.validate(); err != nil {
				return err
			}
			return opsRunner(cmd, cfg)
		},
	}
	addClientFlags(cmd.Flags())
	cmd.Flags().StringSlice("tag", nil, "Only list operations with these tags")
	cmd.Flags().StringSlice("exclude-tag", nil, "Skip operations with any of these tags")
	cmd.Flags().StringSlice("method", nil, "Only list operations using these HTTP methods")
	cmd.Flags().StringSlice("path", nil, "Only list operations whose path matches one of these regular expressions")
	return cmd
}

func (c *OpsConfig) validate() error {
	for _, m := range c.Methods {
		if !slices.Contains(spec.Methods, spec.HttpMethod(strings.ToLower(m))) {
			return newUsageError(fmt.Sprintf("unsupported --method %q", m))
		}
	}
	for _, p := range c.Paths {
		if _, err := regexp.Compile(p); err != nil {
			return newUsageError(fmt.Sprintf("invalid --path pattern %q: %v", p, err))
		}
	}
	return nil
}

func (c *OpsConfig) filters() []spec.FilterOption {
	methods := make([]spec.HttpMethod, 0, len(c.Methods))
	for _, m := range c.Methods {
		methods = append(methods, spec.HttpMethod(m))
	}
	return []spec.FilterOption{
		spec.WithIncludeTags(c.Tags),
		spec.WithExcludeTags(c.ExcludeTags),
		spec.WithMethods(methods),
		spec.WithPathPatterns(c.Paths),
	}
}

func runOps(cmd *cobra.Command, cfg *OpsConfig) error {
	logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
	c, err := buildClient(cmd, &cfg.ClientConfig, logger, client.WithOperationFilters(cfg.filters()...))
	if err != nil {
		return err
	}
	return printOperations(cmd.OutOrStdout(), c)
}

func printOperations(w io.Writer, c *client.Client) error {
	for _, op := range c.Operations() {
		if _, err := fmt.Fprintf(w, "%s\t%s %s\n", op.OperationID(), strings.ToUpper(op.HTTPMethod), op.PathName); err != nil {
			return err
		}
	}
	return nil
}

func sanitizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
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
