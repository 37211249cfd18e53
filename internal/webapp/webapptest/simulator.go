// Package webapptest drives webapp handlers in-process, without a server.
package webapptest

import (
	"bytes"
	"net/http"
	"net/url"
	"strconv"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/titan-stats/internal/webapp"
)

// Result is what a simulated request produced. Err is the error the handler
// returned (or panicked with) after it was routed through HandleError; the
// response then holds the rendered error.
type Result struct {
	Request  *webapp.Request
	Response *webapp.Response
	Err      error
}

// Handled reports whether the handler failed and its error path produced the
// response.
func (r *Result) Handled() bool {
	return r.Err != nil
}

// CreateRequestHandler builds a handler bound to a request derived from env and
// a fresh response. A nil factory yields a BaseHandler and a nil env the
// default environment.
func CreateRequestHandler(factory webapp.HandlerFactory, env webapp.Environ) (webapp.Handler, error) {
	return createRequestHandler(factory, env, nil)
}

func createRequestHandler(factory webapp.HandlerFactory, env webapp.Environ, payload []byte) (webapp.Handler, error) {
	if factory == nil {
		factory = webapp.NewBaseHandler
	}
	if env == nil {
		env = webapp.DefaultEnvironment()
	}
	req, err := webapp.NewRequest(env, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	h := factory()
	h.Initialize(req, webapp.NewResponse())
	return h, nil
}

// Get issues a simulated GET. Non-empty params replace the default query
// string.
func Get(t testing.TB, factory webapp.HandlerFactory, params url.Values, args ...string) *Result {
	t.Helper()
	env := webapp.DefaultEnvironment()
	env["REQUEST_METHOD"] = http.MethodGet
	if len(params) > 0 {
		env["QUERY_STRING"] = params.Encode()
	}
	return run(t, factory, env, nil, http.MethodGet, args)
}

// Post issues a simulated POST. When params are given they are form-encoded
// and sent as the body in place of payload.
func Post(t testing.TB, factory webapp.HandlerFactory, payload []byte, params url.Values, args ...string) *Result {
	t.Helper()
	env := webapp.DefaultEnvironment()
	env["REQUEST_METHOD"] = http.MethodPost
	if len(params) > 0 {
		payload = []byte(params.Encode())
	}
	if len(payload) > 0 {
		env["CONTENT_LENGTH"] = strconv.Itoa(len(payload))
	}
	return run(t, factory, env, payload, http.MethodPost, args)
}

func run(t testing.TB, factory webapp.HandlerFactory, env webapp.Environ, payload []byte, method string, args []string) *Result {
	t.Helper()
	h, err := createRequestHandler(factory, env, payload)
	if err != nil {
		t.Fatalf("creating %s handler: %v", method, err)
	}

	result := &Result{Request: h.Request()}
	if err := webapp.Dispatch(h, method, args...); err != nil {
		_ = h.HandleError(err, false)
		result.Err = err
	}
	result.Response = h.Response()
	return result
}
