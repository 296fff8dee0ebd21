package metrics

import (
	"net/http"
	"strings"
	"sync"
)

type pathRules struct {
	mu        sync.RWMutex
	skip      map[string]struct{}
	normalize func(*http.Request) string
}

func newPathRules() *pathRules {
	return &pathRules{
		skip:      map[string]struct{}{"/metrics": {}},
		normalize: func(r *http.Request) string { return r.URL.Path },
	}
}

// AddSkipPaths extends the skip list (default keeps only "/metrics").
func (c *Collector) AddSkipPaths(paths ...string) {
	c.rules.mu.Lock()
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p != "" {
			c.rules.skip["/"+strings.TrimPrefix(p, "/")] = struct{}{}
		}
	}
	c.rules.mu.Unlock()
}

// SetPathNormalizer replaces the uri label function (e.g., collapse IDs).
// By default it returns r.URL.Path unchanged.
func (c *Collector) SetPathNormalizer(fn func(*http.Request) string) {
	if fn == nil {
		return
	}
	c.rules.mu.Lock()
	c.rules.normalize = fn
	c.rules.mu.Unlock()
}

func (c *Collector) skipped(r *http.Request) bool {
	c.rules.mu.RLock()
	_, ok := c.rules.skip[r.URL.Path]
	c.rules.mu.RUnlock()
	return ok
}

func (c *Collector) uri(r *http.Request) string {
	c.rules.mu.RLock()
	fn := c.rules.normalize
	c.rules.mu.RUnlock()
	return fn(r)
}
