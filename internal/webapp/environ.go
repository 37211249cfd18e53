// Package webapp is the small handler framework the stats endpoints run on.
// A request is described by a CGI-style environment, handlers expose per-method
// entry points plus a shared error path, and responses are buffered in memory
// until the Application flushes them to the client.
package webapp

import "maps"

// Environ is a CGI-style request environment: REQUEST_METHOD, PATH_INFO,
// QUERY_STRING, HTTP_* headers and so on.
type Environ map[string]string

// DefaultEnvironment returns a fresh environment describing a GET from
// 127.0.0.1 to /dir/subdir/myhandler on a development server. Callers own the
// returned map and may override any key.
func DefaultEnvironment() Environ {
	return Environ{
		"CONTENT_LENGTH":       "",
		"SERVER_PORT":          "8080",
		"CURRENT_VERSION_ID":   "1.1",
		"SERVER_SOFTWARE":      "Development/1.0",
		"SCRIPT_NAME":          "",
		"REQUEST_METHOD":       "GET",
		"HTTP_HOST":            "localhost:8080",
		"PATH_INFO":            "/dir/subdir/myhandler",
		"SERVER_PROTOCOL":      "HTTP/1.0",
		"QUERY_STRING":         "foo=bar&foo=baz&foo2=123",
		"USER_ID":              "123",
		"USER_EMAIL":           "test@example.com",
		"HTTP_USER_AGENT":      "FakeUserAgent/1.0",
		"SERVER_NAME":          "localhost",
		"REMOTE_ADDR":          "127.0.0.1",
		"GATEWAY_INTERFACE":    "CGI/1.1",
		"HTTP_ACCEPT_LANGUAGE": "en",
		"APPLICATION_ID":       "dev~testapp",
		"CONTENT_TYPE":         "application/x-www-form-urlencoded",
		"PATH_TRANSLATED":      "/tmp/fake-file.py",
	}
}

// Clone returns an independent copy of e.
func (e Environ) Clone() Environ {
	if e == nil {
		return Environ{}
	}
	return maps.Clone(e)
}

// User is the identity a fronting proxy or the test harness put in the
// environment.
type User struct {
	ID    string
	Email string
}

// User returns the identity from USER_ID and USER_EMAIL. ok is false when no
// USER_ID is set.
func (e Environ) User() (u User, ok bool) {
	id := e["USER_ID"]
	if id == "" {
		return User{}, false
	}
	return User{ID: id, Email: e["USER_EMAIL"]}, true
}
