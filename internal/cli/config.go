package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/swaggerclient/internal/client"
	"github.com/mark3labs/swaggerclient/internal/mapping"
	"github.com/mark3labs/swaggerclient/internal/spec"
	"github.com/mark3labs/swaggerclient/internal/transport"
)

// ClientConfig captures all inputs that influence how a spec is loaded and
// invoked after merging defaults, config file values, and CLI overrides.
type ClientConfig struct {
	Spec            string
	BaseURL         string
	Transport       string
	Timeout         time.Duration
	Headers         map[string]string
	RequestIDHeader string
	ConfigPath      string
	Verbose         bool
}

func defaultClientConfig() ClientConfig {
	return ClientConfig{
		Transport:       "resty",
		Timeout:         30 * time.Second,
		RequestIDHeader: client.DefaultRequestIDHeader,
	}
}

// addClientFlags registers the flags shared by every command that loads a spec.
func addClientFlags(flags *pflag.FlagSet) {
	flags.String("spec", "", "Path or URL to the Swagger 2.0 document")
	flags.String("base-url", "", "Override the API base URL derived from the spec")
	flags.String("transport", "", "HTTP transport to use (resty|std); defaults to resty")
	flags.Duration("timeout", 0, "Per-request timeout (e.g. 10s); defaults to 30s")
	flags.StringArrayP("header", "H", nil, "Extra request header as 'Name: value' (repeatable)")
	flags.String("request-id-header", "", "Header carrying the per-call request id; defaults to X-Request-ID")
}

func resolveClientConfig(cmd *cobra.Command) (*ClientConfig, error) {
	cfg := defaultClientConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyClientConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := applyClientFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyClientFlagOverrides(flags *pflag.FlagSet, cfg *ClientConfig) error {
	if flags.Changed("spec") {
		value, err := flags.GetString("spec")
		if err != nil {
			return err
		}
		cfg.Spec = strings.TrimSpace(value)
	}
	if flags.Changed("base-url") {
		value, err := flags.GetString("base-url")
		if err != nil {
			return err
		}
		cfg.BaseURL = strings.TrimSpace(value)
	}
	if flags.Changed("transport") {
		value, err := flags.GetString("transport")
		if err != nil {
			return err
		}
		cfg.Transport = strings.TrimSpace(value)
	}
	if flags.Changed("timeout") {
		value, err := flags.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = value
	}
	if flags.Changed("header") {
		values, err := flags.GetStringArray("header")
		if err != nil {
			return err
		}
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string, len(values))
		}
		for _, raw := range values {
			name, value, err := parseHeader(raw)
			if err != nil {
				return newUsageError(fmt.Sprintf("--header %q: %v", raw, err))
			}
			cfg.Headers[name] = value
		}
	}
	if flags.Changed("request-id-header") {
		value, err := flags.GetString("request-id-header")
		if err != nil {
			return err
		}
		cfg.RequestIDHeader = strings.TrimSpace(value)
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

func (c *ClientConfig) normalize() {
	c.Spec = strings.TrimSpace(c.Spec)
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	c.Transport = strings.ToLower(strings.TrimSpace(c.Transport))
	c.RequestIDHeader = strings.TrimSpace(c.RequestIDHeader)
}

func (c *ClientConfig) validate() error {
	if c.Spec == "" {
		return newUsageError("--spec is required (set via flag or config file)")
	}
	switch c.Transport {
	case "", "resty", "std":
		if c.Transport == "" {
			c.Transport = "resty"
		}
	default:
		return newUsageError(fmt.Sprintf("unsupported --transport %q (allowed: resty, std)", c.Transport))
	}
	if c.Timeout < 0 {
		return newUsageError(fmt.Sprintf("--timeout must not be negative, got %s", c.Timeout))
	}
	return nil
}

// RequestOptions returns the per-call options carrying the configured
// headers and timeout.
func (c *ClientConfig) RequestOptions() mapping.RequestOptions {
	headers := make(map[string]string, len(c.Headers))
	for k, v := range c.Headers {
		headers[k] = v
	}
	return mapping.RequestOptions{Headers: headers, Timeout: c.Timeout}
}

func applyClientConfigFromFile(cfg *ClientConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}

	for key, value := range raw {
		switch normalizeKey(key) {
		case "spec":
			str, err := valueAsString(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Spec = str
		case "baseurl":
			str, err := valueAsString(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.BaseURL = str
		case "transport":
			str, err := valueAsString(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Transport = str
		case "timeout":
			d, err := valueAsDuration(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Timeout = d
		case "headers":
			headers, err := valueAsStringMap(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Headers = headers
		case "requestidheader":
			str, err := valueAsString(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.RequestIDHeader = str
		case "verbose":
			val, err := valueAsBool(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.Verbose = val
		default:
			return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
		}
	}
	return nil
}

// newLogger writes text logs to w; verbose lowers the level to debug.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// buildClient loads the spec and wires the configured transport.
func buildClient(cmd *cobra.Command, cfg *ClientConfig, logger *slog.Logger, opts ...client.Option) (*client.Client, error) {
	var specOpts []spec.Option
	if cfg.BaseURL != "" {
		specOpts = append(specOpts, spec.WithBaseURL(cfg.BaseURL))
	}
	s, err := spec.Load(cmd.Context(), cfg.Spec, specOpts...)
	if err != nil {
		return nil, specUsageError(err)
	}

	var hc mapping.HTTPClient
	switch cfg.Transport {
	case "std":
		hc = transport.NewStdClient(&http.Client{Timeout: cfg.Timeout})
	default:
		hc = transport.NewRestyClient(transport.WithTimeout(cfg.Timeout), transport.WithRestyLogger(logger))
	}

	opts = append([]client.Option{
		client.WithHTTPClient(hc),
		client.WithLogger(logger),
		client.WithRequestIDHeader(cfg.RequestIDHeader),
	}, opts...)
	c, err := client.New(s, opts...)
	if err != nil {
		return nil, newUsageError(fmt.Sprintf("spec: %v", err))
	}
	return c, nil
}

// specUsageError maps structured spec errors into friendly messages.
func specUsageError(err error) error {
	var se *spec.SpecError
	if !errors.As(err, &se) {
		return err
	}
	msg := se.Message
	if !strings.HasPrefix(msg, "spec:") {
		msg = "spec: " + msg
	}
	if se.Location != "" {
		msg = fmt.Sprintf("%s\nLocation: %s", msg, se.Location)
	}
	if se.JSONPointer != "" {
		msg = fmt.Sprintf("%s\nPointer: %s", msg, se.JSONPointer)
	}
	return newUsageError(msg)
}

func parseHeader(raw string) (string, string, error) {
	name, value, ok := strings.Cut(raw, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("expected 'Name: value'")
	}
	return name, strings.TrimSpace(value), nil
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

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		trimmed := strings.ToLower(strings.TrimSpace(val))
		switch trimmed {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n":
			return false, nil
		case "":
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

// valueAsDuration accepts Go duration strings or a number of seconds.
func valueAsDuration(v any) (time.Duration, error) {
	switch val := v.(type) {
	case nil:
		return 0, nil
	case string:
		d, err := time.ParseDuration(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", val)
		}
		return d, nil
	case int:
		return time.Duration(val) * time.Second, nil
	case float64:
		return time.Duration(val * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("expected duration, got %T", v)
	}
}

func valueAsStringMap(v any) (map[string]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		out := make(map[string]string, len(val))
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			switch elem := val[k].(type) {
			case string:
				out[k] = elem
			case int, float64, bool:
				out[k] = fmt.Sprint(elem)
			default:
				return nil, fmt.Errorf("header %q: expected scalar, got %T", k, elem)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected mapping, got %T", v)
	}
}
