package server

import (
	"net/http"
	"sync/atomic"

	"github.com/agent-matrix/matrixhub-admin/pkg/hubproxy"
	"github.com/agent-matrix/matrixhub-admin/pkg/shared/logging"
)

// Guard wraps the API routes with login and access rules.
type Guard interface {
	Wrap(next http.Handler) http.Handler
}

// App assembles the health endpoints, the guard and the proxy routes into one handler.
type App struct {
	proxy    *hubproxy.Proxy
	guard    Guard
	draining atomic.Bool
	logger   logging.Logger
}

// NewApp creates an App
func NewApp(proxy *hubproxy.Proxy, guard Guard, logger logging.Logger) *App {
	return &App{
		proxy:  proxy,
		guard:  guard,
		logger: logger.WithModule("app"),
	}
}

// SetDraining makes /health answer 503 so load balancers stop routing here.
func (a *App) SetDraining() {
	a.draining.Store(true)
	a.logger.Info("Draining, health checks now fail")
}

// Handler returns the root handler. /health and /ready bypass the guard.
func (a *App) Handler() http.Handler {
	api := http.NewServeMux()
	a.proxy.Register(api)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.handleHealth)
	mux.HandleFunc("/ready", a.handleReady)
	mux.Handle("/", a.guard.Wrap(api))
	return mux
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.draining.Load() {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("DRAINING"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (a *App) handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("READY"))
}
