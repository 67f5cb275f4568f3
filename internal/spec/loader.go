package spec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	openapi2 "github.com/getkin/kin-openapi/openapi2"
	"gopkg.in/yaml.v3"
)

// ErrorCode categorizes loader errors for clearer handling and messaging.
type ErrorCode string

const (
	InputError      ErrorCode = "InputError"
	NetworkError    ErrorCode = "NetworkError"
	ParseError      ErrorCode = "ParseError"
	ValidationError ErrorCode = "ValidationError"
)

// SpecError is a structured error with optional location and JSON Pointer.
type SpecError struct {
	Code        ErrorCode
	Message     string
	Location    string // file path or URL
	JSONPointer string // e.g. "#/definitions/Pet"
	Cause       error
}

func (e *SpecError) Error() string { return e.Message }
func (e *SpecError) Unwrap() error { return e.Cause }

// Settings configures loader behavior.
type Settings struct {
	// HTTPTimeout bounds each HTTP request.
	HTTPTimeout time.Duration
	// MaxRetries for transient HTTP failures (>=500, 429, or network errors).
	MaxRetries int
	// BackoffBase is the base delay for exponential backoff.
	BackoffBase time.Duration
	// BaseURL overrides the API URL derived from schemes/host/basePath.
	BaseURL string
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
	return Settings{
		HTTPTimeout: 10 * time.Second,
		MaxRetries:  3,
		BackoffBase: 200 * time.Millisecond,
	}
}

// Option mutates Settings.
type Option func(*Settings)

func WithHTTPTimeout(d time.Duration) Option { return func(s *Settings) { s.HTTPTimeout = d } }
func WithMaxRetries(n int) Option            { return func(s *Settings) { s.MaxRetries = n } }
func WithBackoffBase(d time.Duration) Option { return func(s *Settings) { s.BackoffBase = d } }
func WithBaseURL(u string) Option            { return func(s *Settings) { s.BaseURL = strings.TrimSpace(u) } }

// Load reads a Swagger 2.0 document from a filesystem path or an http/https
// URL, inlines its local references and returns the resolved Spec.
//
// file:// URLs are blocked; pass the plain path instead.
func Load(ctx context.Context, input string, opts ...Option) (*Spec, error) {
	if strings.TrimSpace(input) == "" {
		return nil, &SpecError{Code: InputError, Message: "spec: input is empty"}
	}

	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}

	// Classify input as URL or file path.
	u, uerr := url.Parse(input)
	isURL := uerr == nil && u.Scheme != "" && u.Host != ""

	if isURL {
		scheme := strings.ToLower(u.Scheme)
		if scheme == "file" {
			return nil, &SpecError{Code: InputError, Message: "spec: file:// URLs are blocked by default", Location: input}
		}
		if scheme != "http" && scheme != "https" {
			return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("spec: unsupported URL scheme %q (only http/https allowed)", scheme), Location: input}
		}

		raw, fetchErr := fetchWithRetry(ctx, input, settings)
		if fetchErr != nil {
			return nil, &SpecError{Code: NetworkError, Message: fmt.Sprintf("fetch %s: %v", input, fetchErr), Location: input, Cause: fetchErr}
		}
		return build(raw, input, u, settings)
	}

	// Treat as local filesystem path.
	abs, err := filepath.Abs(input)
	if err != nil {
		return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: input, Cause: err}
	}
	raw, rerr := os.ReadFile(abs)
	if rerr != nil {
		return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("read file %s: %v", abs, rerr), Location: abs, Cause: rerr}
	}
	return build(raw, abs, nil, settings)
}

// FromBytes builds a Spec from an in-memory YAML or JSON document.
func FromBytes(data []byte, origin string, opts ...Option) (*Spec, error) {
	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}
	var originURL *url.URL
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		originURL = u
	}
	return build(data, origin, originURL, settings)
}

// FromMap builds a Spec from an already decoded document tree.
func FromMap(doc map[string]any, opts ...Option) (*Spec, error) {
	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}
	norm, err := normalizeNode(doc)
	if err != nil {
		return nil, &SpecError{Code: ParseError, Message: fmt.Sprintf("spec: %v", err), Cause: err}
	}
	return fromTree(Map(norm), "", nil, settings)
}

func build(raw []byte, location string, originURL *url.URL, settings Settings) (*Spec, error) {
	var decoded any
	if err := yaml.Unmarshal(raw, &decoded); err != nil {
		return nil, &SpecError{Code: ParseError, Message: fmt.Sprintf("parse spec: %v", err), Location: location, Cause: err}
	}
	norm, err := normalizeNode(decoded)
	if err != nil {
		return nil, &SpecError{Code: ParseError, Message: fmt.Sprintf("parse spec: %v", err), Location: location, Cause: err}
	}
	root := Map(norm)
	if root == nil {
		return nil, &SpecError{Code: ParseError, Message: "spec: document root must be a mapping", Location: location}
	}
	return fromTree(root, location, originURL, settings)
}

func fromTree(root map[string]any, location string, originURL *url.URL, settings Settings) (*Spec, error) {
	if err := detectSpecVersion(root); err != nil {
		return nil, &SpecError{Code: ParseError, Message: err.Error(), Location: location, Cause: err}
	}

	// Structural check through kin-openapi; also yields host/basePath/schemes.
	v2, err := decodeV2(root)
	if err != nil {
		return nil, mapDecodeErr(err, location)
	}

	resolved, defs, err := resolveDocument(root)
	if err != nil {
		var se *SpecError
		if errors.As(err, &se) && se.Location == "" {
			se.Location = location
		}
		return nil, err
	}

	apiURL := settings.BaseURL
	if apiURL == "" {
		apiURL = deriveAPIURL(v2, originURL)
	}

	return &Spec{
		Doc:         resolved,
		APIURL:      strings.TrimRight(apiURL, "/"),
		Origin:      location,
		definitions: defs,
	}, nil
}

// detectSpecVersion accepts only Swagger 2.0 documents.
func detectSpecVersion(root map[string]any) error {
	if v, ok := root["swagger"]; ok {
		if s, _ := v.(string); strings.HasPrefix(strings.TrimSpace(s), "2.") {
			return nil
		}
	}
	if _, ok := root["openapi"]; ok {
		return fmt.Errorf("spec: OpenAPI 3 documents are not supported (expected 'swagger: 2.0')")
	}
	return fmt.Errorf("spec: missing or unknown version (expected 'swagger: 2.0')")
}

func decodeV2(root map[string]any) (*openapi2.T, error) {
	data, err := json.Marshal(root)
	if err != nil {
		return nil, err
	}
	var v2 openapi2.T
	if err := json.Unmarshal(data, &v2); err != nil {
		return nil, err
	}
	return &v2, nil
}

// deriveAPIURL builds scheme://host/basePath. A missing host falls back to the
// host the document was served from.
func deriveAPIURL(v2 *openapi2.T, originURL *url.URL) string {
	scheme := "http"
	for _, s := range v2.Schemes {
		if strings.EqualFold(s, "https") {
			scheme = "https"
			break
		}
	}
	if len(v2.Schemes) > 0 && scheme != "https" {
		scheme = strings.ToLower(v2.Schemes[0])
	}
	host := strings.TrimSpace(v2.Host)
	if host == "" && originURL != nil {
		host = originURL.Host
		if len(v2.Schemes) == 0 {
			scheme = originURL.Scheme
		}
	}
	if host == "" {
		return strings.TrimRight(v2.BasePath, "/")
	}
	return joinURL(scheme+"://"+host, v2.BasePath)
}

func fetchWithRetry(ctx context.Context, rawURL string, settings Settings) ([]byte, error) {
	client := &http.Client{Timeout: settings.HTTPTimeout}
	var lastErr error
	backoff := settings.BackoffBase
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	attempts := settings.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err == nil && resp != nil && resp.StatusCode < 300 {
			defer resp.Body.Close()
			return io.ReadAll(resp.Body)
		}
		if err != nil {
			lastErr = err
		} else {
			// HTTP error
			defer resp.Body.Close()
			if resp.StatusCode >= 500 || resp.StatusCode == 429 {
				lastErr = fmt.Errorf("transient http error %d", resp.StatusCode)
			} else {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
				return nil, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			}
		}
		// Backoff before next attempt
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if lastErr == nil {
		lastErr = errors.New("fetch failed")
	}
	return nil, lastErr
}

func mapDecodeErr(err error, location string) error {
	pointer := ""
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) && te.Field != "" {
		pointer = "#/" + strings.ReplaceAll(te.Field, ".", "/")
	}
	return &SpecError{Code: ValidationError, Message: fmt.Sprintf("spec: invalid swagger document: %v", err), Location: location, JSONPointer: pointer, Cause: err}
}
