package core

import (
	"context"
	"net/http"
	"time"

	"github.com/joeydtaylor/layman/pkg/layman"
)

// withTimeout bounds the context the layer and everything after it sees.
// The context is released when the response ends.
func withTimeout(next layman.Handler, ms int) layman.Handler {
	d := time.Duration(ms) * time.Millisecond
	return layman.HandlerFunc(func(w layman.ResponseWriter, r *http.Request, n *layman.Next) layman.Result {
		ctx, cancel := context.WithTimeout(r.Context(), d)
		w.OnEnd(cancel)
		r = r.WithContext(ctx)
		n.SetRequest(r)
		return next.ServeLayer(w, r, n)
	})
}
