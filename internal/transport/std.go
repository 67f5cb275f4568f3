package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/mark3labs/swaggerclient/internal/mapping"
)

// StdClient sends mapping requests with net/http.
type StdClient struct {
	client *http.Client
}

// NewStdClient wraps hc; nil means http.DefaultClient.
func NewStdClient(hc *http.Client) *StdClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &StdClient{client: hc}
}

// Request implements mapping.HTTPClient.
func (c *StdClient) Request(ctx context.Context, req *mapping.Request) (mapping.Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	target, err := url.Parse(req.URL)
	if err != nil {
		return nil, &Error{Method: req.Method, URL: req.URL, Err: err}
	}
	if len(req.Params) > 0 {
		q := target.Query()
		for k, vs := range req.Params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		target.RawQuery = q.Encode()
	}

	payload, contentType, err := encodeBody(req)
	if err != nil {
		return nil, &Error{Method: req.Method, URL: req.URL, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), payload)
	if err != nil {
		return nil, &Error{Method: req.Method, URL: req.URL, Err: err}
	}
	for name, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}
	if contentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Method: req.Method, URL: req.URL, Err: err}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Method: req.Method, URL: req.URL, Err: err}
	}
	return &StdResponse{raw: resp, body: &body{data: data}}, nil
}

// encodeBody picks multipart when files are present, urlencoded for plain
// form fields and JSON for a body parameter.
func encodeBody(req *mapping.Request) (io.Reader, string, error) {
	switch {
	case len(req.Files) > 0:
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		for _, k := range sortedKeys(req.Form) {
			for _, v := range req.Form[k] {
				if err := w.WriteField(k, v); err != nil {
					return nil, "", err
				}
			}
		}
		names := make([]string, 0, len(req.Files))
		for name := range req.Files {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			f := req.Files[name]
			part, err := w.CreateFormFile(name, f.Name)
			if err != nil {
				return nil, "", err
			}
			if f.Reader != nil {
				if _, err := io.Copy(part, f.Reader); err != nil {
					return nil, "", err
				}
			}
		}
		if err := w.Close(); err != nil {
			return nil, "", err
		}
		return &buf, w.FormDataContentType(), nil
	case len(req.Form) > 0:
		return strings.NewReader(req.Form.Encode()), "application/x-www-form-urlencoded", nil
	case req.Body != nil:
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}
	return nil, "", nil
}

func sortedKeys(v url.Values) []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// StdResponse adapts *http.Response to mapping.Response. The body has
// already been read and closed.
type StdResponse struct {
	raw *http.Response
	*body
}

func (r *StdResponse) StatusCode() int { return r.raw.StatusCode }

func (r *StdResponse) Header(name string) string { return headerValue(r.raw.Header, name) }

// Raw returns the underlying response; its Body is drained.
func (r *StdResponse) Raw() *http.Response { return r.raw }

var _ mapping.HTTPClient = (*StdClient)(nil)
var _ mapping.Response = (*StdResponse)(nil)
