package layman

import (
	"net/http"
	"regexp"
	"sync/atomic"

	"go.uber.org/zap"
)

// Config is a snapshot of a dispatcher's settings.
type Config struct {
	// AutoEnd finalizes the response when the chain exhausts or a layer
	// returns Stop.
	AutoEnd bool
	// AutoAsync treats every layer as connect-style.
	AutoAsync bool
	// HostPattern extracts the host name from the Host header; its first
	// capture group is compared against host constraints.
	HostPattern *regexp.Regexp
}

// DefaultConfig returns the settings a new Dispatcher starts with.
func DefaultConfig() Config {
	return Config{
		AutoEnd:     true,
		AutoAsync:   false,
		HostPattern: DefaultHostPattern,
	}
}

// Option configures a Dispatcher at construction time.
type Option func(*Dispatcher)

func WithAutoEnd(on bool) Option   { return func(d *Dispatcher) { d.autoEnd.Store(on) } }
func WithAutoAsync(on bool) Option { return func(d *Dispatcher) { d.autoAsync.Store(on) } }
func WithHostPattern(re *regexp.Regexp) Option {
	return func(d *Dispatcher) { d.SetHostPattern(re) }
}
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		if o != nil {
			d.observer = o
		}
	}
}

// Dispatcher runs an ordered list of layers against each request. It is an
// http.Handler for the host server and a Handler so it can be nested inside
// another Dispatcher.
type Dispatcher struct {
	store Store

	autoEnd     atomic.Bool
	autoAsync   atomic.Bool
	hostPattern atomic.Pointer[regexp.Regexp]

	log      *zap.Logger
	observer Observer
}

var (
	_ http.Handler = (*Dispatcher)(nil)
	_ Handler      = (*Dispatcher)(nil)
)

// New returns a Dispatcher with DefaultConfig applied before opts.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		log:      zap.NewNop(),
		observer: nopObserver{},
	}
	def := DefaultConfig()
	d.autoEnd.Store(def.AutoEnd)
	d.autoAsync.Store(def.AutoAsync)
	d.hostPattern.Store(def.HostPattern)
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Dispatcher) Config() Config {
	return Config{
		AutoEnd:     d.AutoEnd(),
		AutoAsync:   d.AutoAsync(),
		HostPattern: d.HostPattern(),
	}
}

func (d *Dispatcher) AutoEnd() bool               { return d.autoEnd.Load() }
func (d *Dispatcher) AutoAsync() bool             { return d.autoAsync.Load() }
func (d *Dispatcher) HostPattern() *regexp.Regexp { return d.hostPattern.Load() }
func (d *Dispatcher) SetAutoEnd(on bool)          { d.autoEnd.Store(on) }
func (d *Dispatcher) SetAutoAsync(on bool)        { d.autoAsync.Store(on) }

// SetHostPattern swaps the host extraction pattern; nil restores the default.
func (d *Dispatcher) SetHostPattern(re *regexp.Regexp) {
	if re == nil {
		re = DefaultHostPattern
	}
	d.hostPattern.Store(re)
}

// Layers returns the registered layers in order.
func (d *Dispatcher) Layers() []Layer { return d.store.Layers() }

// ---------- registration ----------

func (d *Dispatcher) register(h Handler, opts []LayerOption, fixed ...LayerOption) {
	if h == nil {
		d.log.Debug("layer ignored: nil handler")
		return
	}
	l := Layer{Handler: h}
	for _, o := range opts {
		o(&l)
	}
	for _, o := range fixed {
		o(&l)
	}
	d.store.Add(l)
}

// Use registers h for any method; opts may narrow route, host or mark it async.
func (d *Dispatcher) Use(h Handler, opts ...LayerOption) { d.register(h, opts) }

// Get registers h for GET requests.
func (d *Dispatcher) Get(h Handler, opts ...LayerOption) {
	d.register(h, opts, Method(http.MethodGet))
}

// Post registers h for POST requests.
func (d *Dispatcher) Post(h Handler, opts ...LayerOption) {
	d.register(h, opts, Method(http.MethodPost))
}

// Handle registers h for one method.
func (d *Dispatcher) Handle(method string, h Handler, opts ...LayerOption) {
	d.register(h, opts, Method(method))
}

// Host registers h for requests addressed to host.
func (d *Dispatcher) Host(host string, h Handler, opts ...LayerOption) {
	d.register(h, opts, OnHost(host))
}

// Connect registers a connect-style layer that always suspends the chain
// until it calls next.Resume().
func (d *Dispatcher) Connect(fn ConnectFunc, opts ...LayerOption) {
	if fn == nil {
		d.log.Debug("layer ignored: nil handler")
		return
	}
	d.register(fn, opts, Async())
}

// ---------- dispatch entry points ----------

// Dispatch starts running the chain for r and returns without waiting for
// suspended layers. The returned writer's Done channel closes once the
// response is finalized.
func (d *Dispatcher) Dispatch(w http.ResponseWriter, r *http.Request) ResponseWriter {
	return d.start(w, r).w
}

func (d *Dispatcher) start(w http.ResponseWriter, r *http.Request) *call {
	rw := WrapResponseWriter(w, r)
	c := d.newCall(rw, r)
	c.onFinish = func() {
		if d.AutoEnd() {
			rw.End()
		}
	}
	c.run(0)
	return c
}

// ServeHTTP dispatches r and blocks until the response is finalized or the
// client goes away. A chain that never resumes keeps the request open. When
// the client goes away the call is abandoned and the response ended.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c := d.start(w, r)
	select {
	case <-c.w.Done():
	case <-r.Context().Done():
		c.abandon()
		// the host writer is invalid once we return; late writes must fail
		c.w.End()
		d.log.Debug("dispatch abandoned",
			zap.String("path", c.target.path),
			zap.Error(r.Context().Err()),
		)
	}
}

// ServeLayer runs d as a layer of an enclosing dispatcher. The nested chain
// never finalizes the response; when it finishes the enclosing chain resumes.
func (d *Dispatcher) ServeLayer(w ResponseWriter, r *http.Request, next *Next) Result {
	c := d.newCall(w, r)
	c.depth = 1
	if next != nil && next.c != nil {
		c.depth = next.c.depth + 1
		c.abandoned = next.c.abandoned
	}
	if next == nil {
		c.run(0)
		return Continue
	}
	c.onFinish = next.Resume
	c.run(0)
	return Suspend
}
