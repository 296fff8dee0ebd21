package layman

import (
	"net/http"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// call is the state of one request travelling through one dispatcher.
type call struct {
	d      *Dispatcher
	w      ResponseWriter
	target target
	depth  int

	mu sync.Mutex
	r  *http.Request

	abandoned  *atomic.Bool
	finishOnce sync.Once
	onFinish   func()
}

func (d *Dispatcher) newCall(w ResponseWriter, r *http.Request) *call {
	return &call{
		d:         d,
		w:         w,
		r:         r,
		target:    deriveTarget(r, d.HostPattern()),
		abandoned: new(atomic.Bool),
	}
}

func (c *call) request() *http.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.r
}

func (c *call) setRequest(r *http.Request) {
	c.mu.Lock()
	c.r = r
	c.mu.Unlock()
}

func (c *call) abandon() { c.abandoned.Store(true) }

// run scans the store from start. It returns when the chain finishes or a
// layer suspends it.
func (c *call) run(start int) {
	layers := c.d.store.Layers()
	for i := start; i < len(layers); i++ {
		if c.abandoned.Load() {
			return
		}
		l := layers[i]
		if !l.matches(c.target) {
			continue
		}

		next := &Next{c: c, index: i + 1}
		async := l.Async || c.d.AutoAsync()
		c.d.observer.LayerInvoked(l, async)

		if async {
			l.Handler.ServeLayer(c.w, c.request(), next)
			c.suspended(i, next)
			return
		}

		switch l.Handler.ServeLayer(c.w, c.request(), next) {
		case Stop:
			// the layer may already have resumed the chain itself
			if !next.claim() {
				return
			}
			c.finish(true)
			return
		case Suspend:
			c.suspended(i, next)
			return
		default:
			if !next.claim() {
				return
			}
		}
	}
	c.finish(false)
}

func (c *call) suspended(i int, next *Next) {
	if next.used.Load() {
		return
	}
	c.d.observer.Suspended()
	if ce := c.d.log.Check(zap.DebugLevel, "dispatch suspended"); ce != nil {
		ce.Write(
			zap.Int("layer", i),
			zap.String("path", c.target.path),
			zap.String("method", c.target.method),
			zap.Int("depth", c.depth),
		)
	}
}

func (c *call) finish(stopped bool) {
	c.finishOnce.Do(func() {
		c.d.observer.Finished(stopped)
		if ce := c.d.log.Check(zap.DebugLevel, "dispatch finished"); ce != nil {
			ce.Write(
				zap.Bool("stopped", stopped),
				zap.String("path", c.target.path),
				zap.String("method", c.target.method),
				zap.Int("depth", c.depth),
			)
		}
		if c.onFinish != nil {
			c.onFinish()
		}
	})
}
