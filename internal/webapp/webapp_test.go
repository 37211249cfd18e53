package webapp

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultEnvironmentIsFresh(t *testing.T) {
	a := DefaultEnvironment()
	b := DefaultEnvironment()
	a["REQUEST_METHOD"] = "POST"

	assert.Equal(t, "GET", b["REQUEST_METHOD"])
	assert.Len(t, b, 20)
	assert.Equal(t, "/dir/subdir/myhandler", b["PATH_INFO"])
	assert.Equal(t, "127.0.0.1", b["REMOTE_ADDR"])
	assert.Equal(t, "Development/1.0", b["SERVER_SOFTWARE"])
	assert.Equal(t, "foo=bar&foo=baz&foo2=123", b["QUERY_STRING"])
}

func TestNewRequestFromDefaultEnvironment(t *testing.T) {
	req, err := NewRequest(DefaultEnvironment(), nil)
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/dir/subdir/myhandler", req.URL.Path)
	assert.Equal(t, "localhost:8080", req.Host)
	assert.Equal(t, "FakeUserAgent/1.0", req.UserAgent())
	assert.Equal(t, []string{"bar", "baz"}, req.Repeated("foo"))
	assert.Equal(t, "123", req.Get("foo2", ""))
	assert.Equal(t, "fallback", req.Get("missing", "fallback"))

	v, ok := req.Single("foo")
	assert.True(t, ok)
	assert.Equal(t, "bar", v)

	user, ok := req.User()
	require.True(t, ok)
	assert.Equal(t, User{ID: "123", Email: "test@example.com"}, user)
}

func TestNewRequestCopiesEnvironment(t *testing.T) {
	env := DefaultEnvironment()
	req, err := NewRequest(env, nil)
	require.NoError(t, err)

	env["PATH_INFO"] = "/changed"
	assert.Equal(t, "/dir/subdir/myhandler", req.Environ()["PATH_INFO"])
}

func TestNewRequestRepeatedAbsentIsEmpty(t *testing.T) {
	req, err := NewRequest(DefaultEnvironment(), nil)
	require.NoError(t, err)

	got := req.Repeated("counter_name")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestNewRequestPostForm(t *testing.T) {
	env := DefaultEnvironment()
	env["REQUEST_METHOD"] = "POST"
	env["QUERY_STRING"] = ""
	env["CONTENT_LENGTH"] = "7"

	req, err := NewRequest(env, strings.NewReader("a=1&b=2"))
	require.NoError(t, err)

	assert.Equal(t, "a=1&b=2", string(req.Payload()))
	assert.Equal(t, int64(7), req.ContentLength)
	assert.Equal(t, "1", req.Get("a", ""))
	assert.Equal(t, "2", req.Get("b", ""))
}

func TestNewRequestBadContentLength(t *testing.T) {
	env := DefaultEnvironment()
	env["CONTENT_LENGTH"] = "abc"
	_, err := NewRequest(env, nil)
	assert.Error(t, err)
}

func TestNewRequestMissingMethod(t *testing.T) {
	env := DefaultEnvironment()
	delete(env, "REQUEST_METHOD")
	_, err := NewRequest(env, nil)
	assert.Error(t, err)
}

func TestFromHTTP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/_titan/stats/counterdata?counter_name=a&counter_name=b", nil)
	r.Header.Set("Accept-Language", "en")

	req, err := FromHTTP(r)
	require.NoError(t, err)

	env := req.Environ()
	assert.Equal(t, "GET", env["REQUEST_METHOD"])
	assert.Equal(t, "/_titan/stats/counterdata", env["PATH_INFO"])
	assert.Equal(t, "counter_name=a&counter_name=b", env["QUERY_STRING"])
	assert.Equal(t, "en", env["HTTP_ACCEPT_LANGUAGE"])
	assert.Equal(t, "192.0.2.1", env["REMOTE_ADDR"])
	assert.Equal(t, []string{"a", "b"}, req.Repeated("counter_name"))

	_, ok := req.User()
	assert.False(t, ok)
}

func TestBaseHandlerRejectsMethods(t *testing.T) {
	h := NewBaseHandler()
	assert.ErrorIs(t, h.Get(), apperrors.ErrMethodNotAllowed)
	assert.ErrorIs(t, h.Post(), apperrors.ErrMethodNotAllowed)
}

func TestHandleError(t *testing.T) {
	req, err := NewRequest(DefaultEnvironment(), nil)
	require.NoError(t, err)
	resp := NewResponse()
	h := NewBaseHandler()
	h.Initialize(req, resp)
	_, _ = resp.WriteString("partial output")

	cause := errors.New("boom")
	assert.NoError(t, h.HandleError(cause, false))
	assert.Equal(t, http.StatusInternalServerError, resp.Status())
	assert.Equal(t, "Internal Server Error\n", string(resp.Body()))

	notFound := apperrors.New(apperrors.ErrNotFound, http.StatusNotFound, "no such counter")
	assert.Equal(t, notFound, h.HandleError(notFound, true))
	assert.Equal(t, http.StatusNotFound, resp.Status())
	assert.Equal(t, "Not Found\n", string(resp.Body()))
}

type panicHandler struct {
	BaseHandler
}

func (p *panicHandler) Get(args ...string) error {
	panic("exploded")
}

func TestDispatch(t *testing.T) {
	err := Dispatch(&panicHandler{}, http.MethodGet)
	assert.ErrorIs(t, err, apperrors.ErrInternal)
	assert.Contains(t, err.Error(), "exploded")

	err = Dispatch(NewBaseHandler(), http.MethodDelete)
	assert.ErrorIs(t, err, apperrors.ErrMethodNotAllowed)
}

type echoHandler struct {
	BaseHandler
}

func (e *echoHandler) Get(args ...string) error {
	e.Response().Header().Set("Content-Type", "text/plain")
	_, err := e.Response().WriteString("hello " + e.Request().Get("name", "world"))
	return err
}

func TestApplicationServeHTTP(t *testing.T) {
	app := NewApplication(
		Route{Path: "/echo", Factory: func() Handler { return &echoHandler{} }},
		Route{Path: "/panic", Factory: func() Handler { return &panicHandler{} }},
	)
	assert.ElementsMatch(t, []string{"/echo", "/panic"}, app.Paths())

	tests := []struct {
		name       string
		method     string
		target     string
		wantStatus int
		wantBody   string
	}{
		{"get", http.MethodGet, "/echo?name=titan", http.StatusOK, "hello titan"},
		{"post not allowed", http.MethodPost, "/echo", http.StatusMethodNotAllowed, "Method Not Allowed\n"},
		{"panic recovered", http.MethodGet, "/panic", http.StatusInternalServerError, "Internal Server Error\n"},
		{"unknown path", http.MethodGet, "/nope", http.StatusNotFound, "404 page not found\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			app.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.String())
		})
	}
}
