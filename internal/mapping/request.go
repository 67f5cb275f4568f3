package mapping

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RequestOptionsKey is the reserved argument carrying per-call RequestOptions.
// It is never matched against the operation's parameters.
const RequestOptionsKey = "_request_options"

// Args are the named call-time values of one invocation.
type Args map[string]any

// RequestOptions are out-of-band settings for a single call.
type RequestOptions struct {
	// Headers are added to the request before parameters are marshaled.
	Headers map[string]string
	// Timeout bounds the transport call; zero means no per-call limit.
	Timeout time.Duration
}

// File is a formData value of type file.
type File struct {
	Name   string
	Reader io.Reader
}

// Request is the transport-neutral form of one HTTP call. It is built fresh
// for every invocation.
type Request struct {
	Method  string
	URL     string
	Params  url.Values
	Headers http.Header
	// Body is a JSON-ready value for a body parameter, nil when absent.
	Body  any
	Form  url.Values
	Files map[string]File
	// Timeout is copied from RequestOptions.
	Timeout time.Duration
}

func newRequest(method, rawURL string) *Request {
	return &Request{
		Method:  strings.ToUpper(method),
		URL:     rawURL,
		Params:  url.Values{},
		Headers: http.Header{},
		Form:    url.Values{},
		Files:   map[string]File{},
	}
}

// HasForm reports whether the request carries form fields or files.
func (r *Request) HasForm() bool { return len(r.Form) > 0 || len(r.Files) > 0 }

func (r *Request) clone() *Request {
	out := *r
	out.Params = cloneValues(r.Params)
	out.Form = cloneValues(r.Form)
	out.Headers = r.Headers.Clone()
	if out.Headers == nil {
		out.Headers = http.Header{}
	}
	out.Files = make(map[string]File, len(r.Files))
	for k, v := range r.Files {
		out.Files[k] = v
	}
	return &out
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

// SplitRequestOptions separates the reserved options entry from the domain
// arguments. The caller's map is not modified.
func SplitRequestOptions(args Args) (RequestOptions, Args, error) {
	raw, ok := args[RequestOptionsKey]
	if !ok {
		return RequestOptions{}, args, nil
	}
	rest := make(Args, len(args)-1)
	for k, v := range args {
		if k != RequestOptionsKey {
			rest[k] = v
		}
	}

	switch o := raw.(type) {
	case nil:
		return RequestOptions{}, rest, nil
	case RequestOptions:
		return o, rest, nil
	case *RequestOptions:
		if o == nil {
			return RequestOptions{}, rest, nil
		}
		return *o, rest, nil
	case map[string]any:
		var opts RequestOptions
		if h, ok := o["headers"]; ok {
			headers, err := headerMap(h)
			if err != nil {
				return RequestOptions{}, nil, err
			}
			opts.Headers = headers
		}
		if t, ok := o["timeout"]; ok {
			d, ok := t.(time.Duration)
			if !ok {
				return RequestOptions{}, nil, fmt.Errorf("timeout must be a time.Duration, got %T", t)
			}
			opts.Timeout = d
		}
		return opts, rest, nil
	default:
		return RequestOptions{}, nil, fmt.Errorf("expected RequestOptions, got %T", raw)
	}
}

func headerMap(v any) (map[string]string, error) {
	switch h := v.(type) {
	case map[string]string:
		return h, nil
	case map[string]any:
		out := make(map[string]string, len(h))
		for k, val := range h {
			out[k] = fmt.Sprint(val)
		}
		return out, nil
	case http.Header:
		out := make(map[string]string, len(h))
		for k := range h {
			out[k] = h.Get(k)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("headers must be a map, got %T", v)
	}
}
