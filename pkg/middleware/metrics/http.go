package metrics

import (
	"net/http"

	"github.com/joeydtaylor/layman/pkg/middleware/auth"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

// NewPromHttpHandler returns the /metrics handler.
func NewPromHttpHandler() http.Handler { return promhttp.Handler() }

// ProvideMetrics is the Fx provider for the scrape endpoint.
func ProvideMetrics() http.Handler { return NewPromHttpHandler() }

func ProvideCollector(ca *auth.Middleware) *Collector { return New(ca) }

var Module = fx.Options(
	fx.Provide(ProvideMetrics),
	fx.Provide(ProvideCollector),
)
