package core

import (
	"net/http"
	"slices"

	"github.com/joeydtaylor/layman/pkg/layman"
	manifest "github.com/joeydtaylor/layman/pkg/manifest"
	"github.com/joeydtaylor/layman/pkg/middleware/auth"
)

// withGuard rejects callers the guard does not admit. A rejection ends the
// response directly so it also holds for connect-style layers, whose return
// value the dispatcher ignores.
func withGuard(next layman.Handler, a *auth.Middleware, g manifest.Guard) layman.Handler {
	if !g.Active() {
		return next
	}
	return layman.HandlerFunc(func(w layman.ResponseWriter, r *http.Request, n *layman.Next) layman.Result {
		if status := admit(a, g, r); status != 0 {
			http.Error(w, http.StatusText(status), status)
			w.End()
			return layman.Stop
		}
		return next.ServeLayer(w, r, n)
	})
}

// admit returns 0 when the request passes, else the status to answer with.
func admit(a *auth.Middleware, g manifest.Guard, r *http.Request) int {
	// without auth wired, guarded layers are closed
	if a == nil {
		return http.StatusUnauthorized
	}
	ctx := r.Context()
	if !a.IsAuthenticated(ctx) {
		return http.StatusUnauthorized
	}
	u := a.GetUser(ctx)
	if len(g.Users) > 0 && !slices.Contains(g.Users, u.Username) && !a.IsAdmin(ctx) {
		return http.StatusForbidden
	}
	if len(g.Roles) > 0 && !slices.ContainsFunc(g.Roles, func(role string) bool {
		return a.IsRole(ctx, auth.Role{Name: role})
	}) {
		return http.StatusForbidden
	}
	return 0
}
