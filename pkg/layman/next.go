package layman

import (
	"net/http"
	"sync/atomic"
)

// Next is the continuation handed to a layer. It remembers where the chain
// stopped and which request/response it belongs to, so any number of
// requests can be suspended on one Dispatcher at the same time.
type Next struct {
	c     *call
	index int
	used  atomic.Bool
}

// Resume continues the chain at the layer after the one that received n.
// Only the first call has an effect, and it is ignored once the layer has
// already returned Continue or Stop.
func (n *Next) Resume() {
	if n == nil || n.c == nil || !n.claim() {
		return
	}
	n.c.run(n.index)
}

// Stop ends the chain as if the layer had returned Stop. It shares the
// one-shot rule with Resume: whichever is called first wins.
func (n *Next) Stop() {
	if n == nil || n.c == nil || !n.claim() {
		return
	}
	n.c.finish(true)
}

func (n *Next) claim() bool { return n.used.CompareAndSwap(false, true) }

// Nested reports whether the chain runs inside an enclosing Dispatcher.
func (n *Next) Nested() bool { return n.Depth() > 0 }

// Depth is the number of dispatchers enclosing the current one.
func (n *Next) Depth() int {
	if n == nil || n.c == nil {
		return 0
	}
	return n.c.depth
}

// Index is the position the chain resumes at.
func (n *Next) Index() int {
	if n == nil {
		return 0
	}
	return n.index
}

// SetRequest replaces the request passed to the layers that run after the
// current one. Matching still uses the values derived when dispatch began.
func (n *Next) SetRequest(r *http.Request) {
	if n == nil || n.c == nil || r == nil {
		return
	}
	n.c.setRequest(r)
}
