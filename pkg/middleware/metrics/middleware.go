package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/joeydtaylor/layman/pkg/layman"
	"github.com/joeydtaylor/layman/pkg/middleware/auth"
)

// Collector records request counters when each response ends.
type Collector struct {
	auth  *auth.Middleware
	rules *pathRules
}

func New(ca *auth.Middleware) *Collector {
	return &Collector{auth: ca, rules: newPathRules()}
}

// Layer records the counters and histogram once the response is finalized.
func (c *Collector) Layer() layman.Handler {
	return layman.HandlerFunc(func(w layman.ResponseWriter, r *http.Request, _ *layman.Next) layman.Result {
		if c.skipped(r) {
			return layman.Continue
		}
		start := time.Now()
		w.OnEnd(func() {
			role := ""
			if c.auth != nil {
				role = c.auth.GetUser(r.Context()).Role.Name
			}
			code := strconv.Itoa(w.Status())
			totalHttpRequestsFromRole.WithLabelValues(role).Inc()
			totalHttpRequestsToUri.WithLabelValues(code, c.uri(r), r.Method).Inc()
			totalHttpRequests.WithLabelValues(code, r.Method).Inc()
			responseTime.Observe(time.Since(start).Seconds())
		})
		return layman.Continue
	})
}
