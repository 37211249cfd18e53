package webapp

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cgi"
	"strconv"
	"strings"
)

// maxPayloadBytes caps how much of a request body is buffered.
const maxPayloadBytes = 10 << 20

// Request is an inbound request together with the environment it was built
// from. Query and urlencoded form values are parsed eagerly.
type Request struct {
	*http.Request
	env     Environ
	payload []byte
}

// NewRequest builds a Request from a CGI environment and an optional body.
// env is copied, so later changes to the caller's map are not observed.
func NewRequest(env Environ, body io.Reader) (*Request, error) {
	env = env.Clone()
	httpReq, err := cgi.RequestFromMap(env)
	if err != nil {
		return nil, fmt.Errorf("building request from environment: %w", err)
	}
	return newRequest(httpReq, env, body)
}

// FromHTTP adapts a live server request, deriving the equivalent environment.
func FromHTTP(r *http.Request) (*Request, error) {
	return newRequest(r, environFromHTTP(r), r.Body)
}

func newRequest(httpReq *http.Request, env Environ, body io.Reader) (*Request, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = io.ReadAll(io.LimitReader(body, maxPayloadBytes+1))
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}
		if len(payload) > maxPayloadBytes {
			return nil, fmt.Errorf("request body exceeds %d bytes", maxPayloadBytes)
		}
	}

	// Malformed pairs are dropped and the rest kept; the raw payload stays
	// available through Payload.
	httpReq.Body = bodyReader(payload)
	_ = httpReq.ParseForm()
	httpReq.Body = bodyReader(payload)

	return &Request{Request: httpReq, env: env, payload: payload}, nil
}

func bodyReader(payload []byte) io.ReadCloser {
	if len(payload) == 0 {
		return http.NoBody
	}
	return io.NopCloser(bytes.NewReader(payload))
}

func environFromHTTP(r *http.Request) Environ {
	env := Environ{
		"REQUEST_METHOD":    r.Method,
		"SERVER_PROTOCOL":   r.Proto,
		"SERVER_SOFTWARE":   "titan-stats",
		"GATEWAY_INTERFACE": "CGI/1.1",
		"HTTP_HOST":         r.Host,
		"SCRIPT_NAME":       "",
		"PATH_INFO":         r.URL.Path,
		"QUERY_STRING":      r.URL.RawQuery,
		"CONTENT_TYPE":      r.Header.Get("Content-Type"),
		"CONTENT_LENGTH":    "",
	}
	if r.ContentLength > 0 {
		env["CONTENT_LENGTH"] = strconv.FormatInt(r.ContentLength, 10)
	}
	if host, port, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		env["REMOTE_ADDR"] = host
		env["REMOTE_PORT"] = port
	} else {
		env["REMOTE_ADDR"] = r.RemoteAddr
	}
	for name, values := range r.Header {
		if name == "Content-Type" || name == "Content-Length" || len(values) == 0 {
			continue
		}
		key := "HTTP_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		env[key] = strings.Join(values, ", ")
	}
	return env
}

// Environ returns a copy of the environment the request was built from.
func (r *Request) Environ() Environ {
	return r.env.Clone()
}

// Payload returns the raw request body.
func (r *Request) Payload() []byte {
	return r.payload
}

// User returns the identity carried in the environment, if any.
func (r *Request) User() (User, bool) {
	return r.env.User()
}

// Single returns the first value for name from the query string or form.
func (r *Request) Single(name string) (string, bool) {
	values := r.Form[name]
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// Repeated returns every value for name in the order received. The result is
// empty, never nil.
func (r *Request) Repeated(name string) []string {
	values := r.Form[name]
	out := make([]string, len(values))
	copy(out, values)
	return out
}

// Get returns the first value for name, or fallback when name is absent.
func (r *Request) Get(name, fallback string) string {
	if v, ok := r.Single(name); ok {
		return v
	}
	return fallback
}

// GetAll is Repeated under the name handlers conventionally use.
func (r *Request) GetAll(name string) []string {
	return r.Repeated(name)
}
