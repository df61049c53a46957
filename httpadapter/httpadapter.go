// Package httpadapter is a minimal net/http implementation of
// types.RequestAdapter, used only to make the demo in main.go runnable.
// Concrete framework adapters are explicitly out of scope for the core
// (spec.md §1) — this one exists purely so main.go has something to hand
// the dispatcher.
package httpadapter

import (
	"context"
	"io"
	"net/http"

	"github.com/foldset/gateway-core/types"
)

// Adapter wraps an *http.Request (and the body bytes already read from it,
// since the dispatcher may need to read the body more than once across the
// MCP branch and any later handler).
type Adapter struct {
	req  *http.Request
	body []byte
}

// New reads req.Body once, buffering it, and builds an Adapter over it. The
// caller must replace req.Body if it intends to read the body again
// downstream (e.g. to proxy it upstream).
func New(req *http.Request) (*Adapter, error) {
	var body []byte
	if req.Body != nil {
		read, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		body = read
	}
	return &Adapter{req: req, body: body}, nil
}

func (a *Adapter) Method() string { return a.req.Method }
func (a *Adapter) Path() string   { return a.req.URL.Path }
func (a *Adapter) URL() string    { return a.req.URL.String() }
func (a *Adapter) Host() string   { return a.req.Host }

func (a *Adapter) Header(name string) string { return a.req.Header.Get(name) }
func (a *Adapter) UserAgent() string         { return a.req.UserAgent() }

func (a *Adapter) IPAddress() string {
	if fwd := a.req.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return a.req.RemoteAddr
}

func (a *Adapter) QueryParams() map[string][]string {
	return map[string][]string(a.req.URL.Query())
}

// Body returns the buffered raw request body bytes.
func (a *Adapter) Body(context.Context) (any, error) {
	return a.body, nil
}

var _ types.RequestAdapter = (*Adapter)(nil)
