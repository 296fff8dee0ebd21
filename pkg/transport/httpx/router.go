// Package httpx fronts the dispatcher with a chi router.
package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimd "github.com/go-chi/chi/v5/middleware"
)

// Router is the minimal HTTP router contract the server depends on.
// NewChi implements it.
type Router interface {
	Handle(method, path string, h http.Handler)
	Get(path string, h http.Handler)
	Mount(pattern string, h http.Handler)
	Mux() http.Handler
	Use(mw ...func(http.Handler) http.Handler)
}

// chiRouter is the default Router backed by github.com/go-chi/chi/v5.
type chiRouter struct{ r *chi.Mux }

// NewChi returns a Chi-backed Router.
func NewChi() Router { return &chiRouter{r: chi.NewRouter()} }

func (c *chiRouter) Handle(method, path string, h http.Handler) { c.r.Method(method, path, h) }
func (c *chiRouter) Get(path string, h http.Handler)            { c.r.Method(http.MethodGet, path, h) }
func (c *chiRouter) Mount(pattern string, h http.Handler)       { c.r.Mount(pattern, h) }
func (c *chiRouter) Mux() http.Handler                          { return c.r }
func (c *chiRouter) Use(mw ...func(http.Handler) http.Handler)  { c.r.Use(mw...) }

// Frontend describes what New mounts.
type Frontend struct {
	// App receives every request no other route claims.
	App http.Handler
	// Metrics is served at MetricsPath when both are set.
	Metrics     http.Handler
	MetricsPath string
	// HeartbeatPath answers "." for liveness probes; empty disables it.
	HeartbeatPath string
}

// New builds the front router: request ids, panic recovery, the heartbeat,
// the scrape endpoint, then the app as catch-all for every method and path.
func New(r Router, f Frontend) http.Handler {
	mws := []func(http.Handler) http.Handler{chimd.RequestID, chimd.Recoverer}
	if f.HeartbeatPath != "" {
		mws = append(mws, chimd.Heartbeat(f.HeartbeatPath))
	}
	r.Use(mws...)

	if f.Metrics != nil && f.MetricsPath != "" {
		r.Get(f.MetricsPath, f.Metrics)
	}
	if f.App != nil {
		r.Mount("/", f.App)
	}
	return r.Mux()
}
