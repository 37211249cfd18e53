package webapp

import (
	"bytes"
	"net/http"
)

// Response buffers a handler's status, headers and body. Nothing reaches the
// client until Send.
type Response struct {
	status int
	header http.Header
	body   bytes.Buffer
}

// NewResponse returns an empty 200 response with an HTML content type.
func NewResponse() *Response {
	resp := &Response{
		status: http.StatusOK,
		header: make(http.Header),
	}
	resp.header.Set("Content-Type", "text/html; charset=utf-8")
	return resp
}

func (r *Response) Status() int {
	return r.status
}

func (r *Response) SetStatus(code int) {
	r.status = code
}

func (r *Response) Header() http.Header {
	return r.header
}

func (r *Response) Write(p []byte) (int, error) {
	return r.body.Write(p)
}

func (r *Response) WriteString(s string) (int, error) {
	return r.body.WriteString(s)
}

// Body returns the buffered body.
func (r *Response) Body() []byte {
	return r.body.Bytes()
}

// Clear discards anything written to the body so far.
func (r *Response) Clear() {
	r.body.Reset()
}

// Send copies the buffered response to w.
func (r *Response) Send(w http.ResponseWriter) error {
	for name, values := range r.header {
		w.Header()[name] = append([]string(nil), values...)
	}
	w.WriteHeader(r.status)
	_, err := w.Write(r.body.Bytes())
	return err
}
