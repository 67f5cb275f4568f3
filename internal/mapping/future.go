package mapping

import (
	"context"
	"fmt"
)

// HTTPClient sends a constructed Request. Implementations own timeouts,
// connection reuse and retries; the core performs none of them.
type HTTPClient interface {
	Request(ctx context.Context, req *Request) (Response, error)
}

// ResponseHandler turns a transport response into (status code, value).
type ResponseHandler func(resp Response) (int, any, error)

// Future is the deferred result of one invocation. The transport call and
// the response handling run on their own goroutine.
type Future struct {
	done   chan struct{}
	status int
	value  any
	err    error
}

// NewFuture starts req on client and returns immediately.
func NewFuture(ctx context.Context, client HTTPClient, req *Request, handle ResponseHandler) *Future {
	f := &Future{done: make(chan struct{})}
	go f.run(ctx, client, req, handle)
	return f
}

func (f *Future) run(ctx context.Context, client HTTPClient, req *Request, handle ResponseHandler) {
	defer close(f.done)
	defer func() {
		if r := recover(); r != nil {
			f.err = fmt.Errorf("response handling panicked: %v", r)
		}
	}()
	resp, err := client.Request(ctx, req)
	if err != nil {
		f.err = err
		return
	}
	f.status, f.value, f.err = handle(resp)
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// Result waits for the invocation to finish or ctx to end. A cancelled ctx
// only stops the wait; the transport call keeps its own context.
func (f *Future) Result(ctx context.Context) (int, any, error) {
	select {
	case <-f.done:
		return f.status, f.value, f.err
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

// Wait blocks until the invocation finishes.
func (f *Future) Wait() (int, any, error) {
	<-f.done
	return f.status, f.value, f.err
}
