package webapp

import (
	"context"
	"fmt"
	"net/http"

	apperrors "github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/logger"
)

// Handler serves one request. Initialize binds it to a request/response pair
// before Get or Post runs; any error they return goes to HandleError.
type Handler interface {
	Initialize(req *Request, resp *Response)
	Request() *Request
	Response() *Response
	Get(args ...string) error
	Post(args ...string) error
	HandleError(err error, reraise bool) error
}

// HandlerFactory constructs a fresh Handler for each request.
type HandlerFactory func() Handler

// BaseHandler answers every method with 405 and renders errors as plain
// status text. Concrete handlers embed it and override what they serve.
type BaseHandler struct {
	req  *Request
	resp *Response
}

// NewBaseHandler is the default HandlerFactory.
func NewBaseHandler() Handler {
	return &BaseHandler{}
}

func (b *BaseHandler) Initialize(req *Request, resp *Response) {
	b.req = req
	b.resp = resp
}

func (b *BaseHandler) Request() *Request {
	return b.req
}

func (b *BaseHandler) Response() *Response {
	return b.resp
}

func (b *BaseHandler) Get(args ...string) error {
	return apperrors.New(apperrors.ErrMethodNotAllowed, http.StatusMethodNotAllowed, "GET not supported")
}

func (b *BaseHandler) Post(args ...string) error {
	return apperrors.New(apperrors.ErrMethodNotAllowed, http.StatusMethodNotAllowed, "POST not supported")
}

// HandleError replaces the response with the status err maps to. It returns
// err only when reraise is set.
func (b *BaseHandler) HandleError(err error, reraise bool) error {
	status := apperrors.HTTPStatusCode(err)

	ctx := context.Background()
	path := ""
	if b.req != nil {
		ctx = b.req.Context()
		path = b.req.URL.Path
	}
	log := logger.FromContext(ctx)
	if status >= http.StatusInternalServerError {
		log.Error("handler failed", "path", path, "status", status, "error", err)
	} else {
		log.Warn("request rejected", "path", path, "status", status, "error", err)
	}

	if b.resp == nil {
		b.resp = NewResponse()
	}
	b.resp.Clear()
	b.resp.SetStatus(status)
	b.resp.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(b.resp, http.StatusText(status))

	if reraise {
		return err
	}
	return nil
}

// Dispatch invokes the entry point for method. A panic inside the handler is
// returned as an internal error instead of unwinding the caller.
func Dispatch(h Handler, method string, args ...string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: handler panic: %v", apperrors.ErrInternal, r)
		}
	}()

	switch method {
	case http.MethodGet:
		return h.Get(args...)
	case http.MethodPost:
		return h.Post(args...)
	default:
		return apperrors.Newf(apperrors.ErrMethodNotAllowed, http.StatusMethodNotAllowed, "method %s not supported", method)
	}
}
