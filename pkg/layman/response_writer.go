package layman

import (
	"errors"
	"net/http"
	"sync"

	chimd "github.com/go-chi/chi/v5/middleware"
)

// ErrResponseEnded is returned by Write once the response was finalized.
var ErrResponseEnded = errors.New("layman: write after end")

// ResponseWriter is the writer handed to every layer. On top of chi's
// status/size tracking it carries the finalize operation: End marks the
// response complete, runs the OnEnd hooks and releases the host handler.
type ResponseWriter interface {
	chimd.WrapResponseWriter

	// End finalizes the response. Calls after the first are ignored.
	End()
	// Ended reports whether End has been called.
	Ended() bool
	// Done is closed once End has run.
	Done() <-chan struct{}
	// OnEnd registers fn to run when the response is finalized. If the
	// response has already ended fn runs immediately.
	OnEnd(fn func())
}

type responseWriter struct {
	chimd.WrapResponseWriter

	once sync.Once
	done chan struct{}

	// wmu serializes writes to the host writer with End
	wmu    sync.Mutex
	closed bool

	mu     sync.Mutex
	hooks  []func()
	ending bool
}

// Compile-time interface checks
var (
	_ ResponseWriter = (*responseWriter)(nil)
	_ http.Flusher   = (*responseWriter)(nil)
)

// WrapResponseWriter returns w as a ResponseWriter, wrapping it unless it
// already is one.
func WrapResponseWriter(w http.ResponseWriter, r *http.Request) ResponseWriter {
	if rw, ok := w.(ResponseWriter); ok {
		return rw
	}
	proto := 1
	if r != nil {
		proto = r.ProtoMajor
	}
	return &responseWriter{
		WrapResponseWriter: chimd.NewWrapResponseWriter(w, proto),
		done:               make(chan struct{}),
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wmu.Lock()
	defer rw.wmu.Unlock()
	if rw.closed {
		return 0, ErrResponseEnded
	}
	return rw.WrapResponseWriter.Write(b)
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.wmu.Lock()
	defer rw.wmu.Unlock()
	if rw.closed {
		return
	}
	rw.WrapResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	rw.wmu.Lock()
	defer rw.wmu.Unlock()
	if rw.closed {
		return
	}
	if f, ok := rw.WrapResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// End waits for an in-flight write; no write reaches the host writer after
// it returns.
func (rw *responseWriter) End() {
	rw.once.Do(func() {
		rw.wmu.Lock()
		// an untouched response still goes out as 200 with no body
		if rw.Status() == 0 {
			rw.WrapResponseWriter.WriteHeader(http.StatusOK)
		}
		rw.closed = true
		rw.wmu.Unlock()

		rw.mu.Lock()
		hooks := rw.hooks
		rw.hooks = nil
		rw.ending = true
		rw.mu.Unlock()
		for _, fn := range hooks {
			fn()
		}
		close(rw.done)
	})
}

func (rw *responseWriter) Ended() bool {
	select {
	case <-rw.done:
		return true
	default:
		return false
	}
}

func (rw *responseWriter) Done() <-chan struct{} { return rw.done }

func (rw *responseWriter) OnEnd(fn func()) {
	if fn == nil {
		return
	}
	rw.mu.Lock()
	if !rw.ending {
		rw.hooks = append(rw.hooks, fn)
		rw.mu.Unlock()
		return
	}
	rw.mu.Unlock()
	fn()
}
