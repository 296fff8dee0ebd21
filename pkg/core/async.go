package core

import (
	"net/http"

	"github.com/joeydtaylor/layman/pkg/layman"
)

// settle lets a layer that reports its outcome by return value run
// connect-style. The dispatcher ignores the result of an async layer, so
// the result is applied through the continuation instead. Suspend leaves
// the chain to whoever holds next.
func settle(h layman.Handler) layman.Handler {
	return layman.HandlerFunc(func(w layman.ResponseWriter, r *http.Request, next *layman.Next) layman.Result {
		res := h.ServeLayer(w, r, next)
		switch res {
		case layman.Continue:
			next.Resume()
		case layman.Stop:
			next.Stop()
		}
		return res
	})
}

// runsAsync reports whether d will invoke a layer registered with opts
// connect-style.
func runsAsync(d *layman.Dispatcher, opts []layman.LayerOption) bool {
	if d.AutoAsync() {
		return true
	}
	var l layman.Layer
	for _, o := range opts {
		o(&l)
	}
	return l.Async
}
