// Package transport adapts concrete HTTP clients to the mapping.HTTPClient
// and mapping.Response interfaces.
package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Error wraps a failure raised below the mapping layer: connection errors,
// timeouts and unreadable bodies.
type Error struct {
	Method string
	URL    string
	Err    error
}

func (e *Error) Error() string { return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// body holds a read response payload and decodes it once on demand.
type body struct {
	data []byte

	once    sync.Once
	decoded any
	err     error
}

// JSON decodes the payload, keeping numbers as json.Number. An empty or
// whitespace-only payload decodes to nil.
func (b *body) JSON() (any, error) {
	b.once.Do(func() {
		b.decoded, b.err = decodeJSON(b.data)
	})
	return b.decoded, b.err
}

// Bytes returns the raw payload.
func (b *body) Bytes() []byte { return b.data }

func decodeJSON(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after top-level JSON value")
	}
	return v, nil
}

// headerValue reads one header from a possibly nil header map.
func headerValue(h http.Header, name string) string {
	if h == nil {
		return ""
	}
	return h.Get(name)
}
