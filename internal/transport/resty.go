package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mark3labs/swaggerclient/internal/mapping"
)

// RestyClient sends mapping requests through a resty client.
type RestyClient struct {
	client *resty.Client
}

// RestyOption configures a RestyClient.
type RestyOption func(*resty.Client)

// WithTimeout bounds every request; per-call timeouts still apply on top.
func WithTimeout(d time.Duration) RestyOption {
	return func(c *resty.Client) {
		if d > 0 {
			c.SetTimeout(d)
		}
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(name, value string) RestyOption {
	return func(c *resty.Client) { c.SetHeader(name, value) }
}

// WithRetries enables resty's retry loop for transport failures.
func WithRetries(n int) RestyOption {
	return func(c *resty.Client) {
		if n > 0 {
			c.SetRetryCount(n)
		}
	}
}

// WithRestyLogger routes resty's internal logging to l.
func WithRestyLogger(l *slog.Logger) RestyOption {
	return func(c *resty.Client) {
		if l != nil {
			c.SetLogger(slogAdapter{l})
		}
	}
}

// NewRestyClient returns a RestyClient over a fresh resty client.
func NewRestyClient(opts ...RestyOption) *RestyClient {
	return NewRestyClientFrom(resty.New(), opts...)
}

// NewRestyClientFrom wraps an existing resty client.
func NewRestyClientFrom(c *resty.Client, opts ...RestyOption) *RestyClient {
	for _, opt := range opts {
		opt(c)
	}
	return &RestyClient{client: c}
}

// Request implements mapping.HTTPClient.
func (c *RestyClient) Request(ctx context.Context, req *mapping.Request) (mapping.Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	r := c.client.R().SetContext(ctx)
	for name, values := range req.Headers {
		for _, v := range values {
			r.Header.Add(name, v)
		}
	}
	if len(req.Params) > 0 {
		r.SetQueryParamsFromValues(req.Params)
	}
	switch {
	case req.HasForm():
		r.SetFormDataFromValues(req.Form)
		for name, f := range req.Files {
			r.SetFileReader(name, f.Name, f.Reader)
		}
	case req.Body != nil:
		if r.Header.Get("Content-Type") == "" {
			r.SetHeader("Content-Type", "application/json")
		}
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, &Error{Method: req.Method, URL: req.URL, Err: err}
		}
		r.SetBody(data)
	}

	resp, err := r.Execute(req.Method, req.URL)
	if err != nil {
		return nil, &Error{Method: req.Method, URL: req.URL, Err: err}
	}
	return &RestyResponse{raw: resp, body: &body{data: resp.Body()}}, nil
}

// RestyResponse adapts *resty.Response to mapping.Response.
type RestyResponse struct {
	raw *resty.Response
	*body
}

func (r *RestyResponse) StatusCode() int { return r.raw.StatusCode() }

func (r *RestyResponse) Header(name string) string { return headerValue(r.raw.Header(), name) }

// Raw returns the underlying resty response.
func (r *RestyResponse) Raw() *resty.Response { return r.raw }

// Duration is the time the round trip took.
func (r *RestyResponse) Duration() time.Duration { return r.raw.Time() }

type slogAdapter struct{ l *slog.Logger }

func (a slogAdapter) Errorf(format string, v ...any) { a.l.Error(fmt.Sprintf(format, v...)) }
func (a slogAdapter) Warnf(format string, v ...any)  { a.l.Warn(fmt.Sprintf(format, v...)) }
func (a slogAdapter) Debugf(format string, v ...any) { a.l.Debug(fmt.Sprintf(format, v...)) }

var _ mapping.HTTPClient = (*RestyClient)(nil)
var _ mapping.Response = (*RestyResponse)(nil)
