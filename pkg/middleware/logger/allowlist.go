package logger

import (
	"net/http"
	"strings"
	"sync"
)

const maxLoggedBody = 1 << 16 // 64 KiB

type bodyAllowlist struct {
	mu    sync.RWMutex
	paths map[string]struct{}
}

func newBodyAllowlist(paths ...string) *bodyAllowlist {
	a := &bodyAllowlist{paths: map[string]struct{}{}}
	a.add(paths...)
	return a
}

func (a *bodyAllowlist) add(paths ...string) {
	a.mu.Lock()
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p != "" {
			a.paths["/"+strings.TrimPrefix(p, "/")] = struct{}{}
		}
	}
	a.mu.Unlock()
}

// allows reports whether a small JSON body on an allowlisted route may be logged.
func (a *bodyAllowlist) allows(r *http.Request, body []byte) bool {
	if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
		return false
	}
	if len(body) == 0 || len(body) > maxLoggedBody {
		return false
	}
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return false
	}
	a.mu.RLock()
	_, ok := a.paths[r.URL.Path]
	a.mu.RUnlock()
	return ok
}
