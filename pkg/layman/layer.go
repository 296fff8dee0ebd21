package layman

import (
	"net/http"
	"strings"
)

// Result tells the dispatch loop what to do after a layer returns.
type Result int

const (
	// Continue moves on to the next matching layer.
	Continue Result = iota
	// Stop ends the chain; remaining layers are skipped.
	Stop
	// Suspend parks the chain until the layer calls next.Resume().
	Suspend
)

func (r Result) String() string {
	switch r {
	case Continue:
		return "continue"
	case Stop:
		return "stop"
	case Suspend:
		return "suspend"
	default:
		return "unknown"
	}
}

// Handler is a single layer callback.
type Handler interface {
	ServeLayer(w ResponseWriter, r *http.Request, next *Next) Result
}

// HandlerFunc adapts an ordinary function to a Handler.
type HandlerFunc func(w ResponseWriter, r *http.Request, next *Next) Result

func (f HandlerFunc) ServeLayer(w ResponseWriter, r *http.Request, next *Next) Result {
	return f(w, r, next)
}

// ConnectFunc is a connect-style callback: it owns the continuation and
// must call next.Resume() when it is done.
type ConnectFunc func(w ResponseWriter, r *http.Request, next *Next)

func (f ConnectFunc) ServeLayer(w ResponseWriter, r *http.Request, next *Next) Result {
	f(w, r, next)
	return Suspend
}

var noop = HandlerFunc(func(ResponseWriter, *http.Request, *Next) Result { return Continue })

// Constraint is an optional exact-match value. The zero Constraint matches
// anything.
type Constraint struct {
	Value string
	Set   bool
}

// Is returns a Constraint that only matches v.
func Is(v string) Constraint { return Constraint{Value: v, Set: true} }

// Allows reports whether a derived request value satisfies c. ok is false
// when the request carries no value at all.
func (c Constraint) Allows(v string, ok bool) bool {
	if !c.Set {
		return true
	}
	return ok && c.Value == v
}

func (c Constraint) String() string {
	if !c.Set {
		return "*"
	}
	return c.Value
}

// Layer is a registered matcher plus its callback. Layers are immutable once
// added to a Store.
type Layer struct {
	Route   Constraint
	Method  Constraint
	Host    Constraint
	Async   bool
	Handler Handler
}

// LayerOption customizes a layer at registration time.
type LayerOption func(*Layer)

// Route restricts the layer to one path. A single leading "/" is dropped so
// Route("/a") and Route("a") are the same constraint; Route("/") matches the
// root path only. The request path is compared in its escaped form, so
// Route("a/b") does not match "/a%2Fb" and a route with reserved or
// non-ASCII characters must be given percent-encoded.
func Route(path string) LayerOption {
	return func(l *Layer) { l.Route = Is(trimSlash(path)) }
}

// Method restricts the layer to one HTTP method. An empty method leaves the
// layer open to any method.
func Method(m string) LayerOption {
	return func(l *Layer) {
		if m == "" {
			l.Method = Constraint{}
			return
		}
		l.Method = Is(m)
	}
}

// OnHost restricts the layer to one host name (without port).
func OnHost(host string) LayerOption {
	return func(l *Layer) {
		if host == "" {
			l.Host = Constraint{}
			return
		}
		l.Host = Is(host)
	}
}

// Async marks the layer connect-style: it always suspends the chain no
// matter what it returns.
func Async() LayerOption {
	return func(l *Layer) { l.Async = true }
}

func trimSlash(p string) string {
	return strings.TrimPrefix(p, "/")
}
