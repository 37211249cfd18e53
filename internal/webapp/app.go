package webapp

import (
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/logger"
)

// Route binds an exact request path to the handler serving it.
type Route struct {
	Path    string
	Factory HandlerFactory
}

// Application routes requests to handlers by exact path.
type Application struct {
	routes map[string]HandlerFactory
	logger *slog.Logger
}

func NewApplication(routes ...Route) *Application {
	app := &Application{
		routes: make(map[string]HandlerFactory, len(routes)),
		logger: slog.Default().With("component", "webapp"),
	}
	for _, route := range routes {
		app.routes[route.Path] = route.Factory
	}
	return app
}

// Paths lists the registered paths so callers can mount the application.
func (a *Application) Paths() []string {
	paths := make([]string, 0, len(a.routes))
	for path := range a.routes {
		paths = append(paths, path)
	}
	return paths
}

func (a *Application) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	factory, ok := a.routes[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}

	req, err := FromHTTP(r)
	if err != nil {
		logger.FromContext(r.Context()).Warn("unreadable request", "path", r.URL.Path, "error", err)
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	resp := NewResponse()
	h := factory()
	h.Initialize(req, resp)
	if err := Dispatch(h, r.Method); err != nil {
		_ = h.HandleError(err, false)
	}

	if err := h.Response().Send(w); err != nil {
		a.logger.Error("failed to write response", "path", r.URL.Path, "error", err)
	}
}
