package logger

import (
	"bytes"
	"io"
	"net/http"
	"time"

	chimd "github.com/go-chi/chi/v5/middleware"
	"github.com/joeydtaylor/layman/pkg/layman"
	"github.com/joeydtaylor/layman/pkg/middleware/auth"
	"go.uber.org/zap"
)

// Middleware writes one access log line per finalized response.
type Middleware struct {
	access *zap.Logger
	auth   *auth.Middleware
	bodies *bodyAllowlist
	pretty *Pretty
}

type Option func(*Middleware)

// WithAuth adds the authenticated user to each line.
func WithAuth(ca *auth.Middleware) Option { return func(m *Middleware) { m.auth = ca } }

// WithBodyPaths allowlists routes whose small JSON request bodies are logged.
func WithBodyPaths(paths ...string) Option { return func(m *Middleware) { m.bodies.add(paths...) } }

// WithPretty also prints a colored summary line for each request.
func WithPretty(p *Pretty) Option { return func(m *Middleware) { m.pretty = p } }

func New(access *zap.Logger, opts ...Option) *Middleware {
	if access == nil {
		access = zap.NewNop()
	}
	m := &Middleware{access: access, bodies: newBodyAllowlist()}
	for _, o := range opts {
		o(m)
	}
	return m
}

// SetPretty swaps the console printer; nil disables it. Call before serving.
func (m *Middleware) SetPretty(p *Pretty) { m.pretty = p }

// AddBodyLogPaths extends the body allowlist at runtime.
func (m *Middleware) AddBodyLogPaths(paths ...string) { m.bodies.add(paths...) }

// Layer reads and restores the request body, then logs when the response
// ends. Register it after the auth layer so the user is visible.
func (m *Middleware) Layer() layman.Handler {
	return layman.HandlerFunc(func(w layman.ResponseWriter, r *http.Request, _ *layman.Next) layman.Result {
		var body []byte
		if r.Body != nil && r.Body != http.NoBody {
			if b, err := io.ReadAll(r.Body); err == nil {
				body = b
			}
			r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		start := time.Now()
		w.OnEnd(func() { m.write(w, r, body, start) })
		return layman.Continue
	})
}

func (m *Middleware) write(w layman.ResponseWriter, r *http.Request, body []byte, start time.Time) {
	lat := time.Since(start)

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	var (
		isAuth bool
		u      auth.User
	)
	if m.auth != nil {
		isAuth = m.auth.IsAuthenticated(r.Context())
		u = m.auth.GetUser(r.Context())
	}

	fields := []zap.Field{
		zap.String("dateTime", start.UTC().Format(time.RFC1123)),
		zap.String("requestId", chimd.GetReqID(r.Context())),
		zap.String("httpScheme", scheme),
		zap.Bool("isAuthenticated", isAuth),
		zap.String("username", u.Username),
		zap.String("role", u.Role.Name),
		zap.String("authenticationProvider", u.AuthenticationSource.Provider),
		zap.String("httpProto", r.Proto),
		zap.String("httpMethod", r.Method),
		zap.String("host", r.Host),
		zap.String("remoteAddr", r.RemoteAddr),
		zap.String("uri", r.URL.Path),
		zap.Duration("lat", lat),
		zap.Int("responseSize", w.BytesWritten()),
		zap.Int("status", w.Status()),
	}
	// Redact by default; allowlist small JSON bodies only.
	if m.bodies.allows(r, body) {
		fields = append(fields, zap.ByteString("requestData", body))
	}
	m.access.Info("", fields...)

	if m.pretty != nil {
		m.pretty.Print(r.Method, r.URL.Path, w.Status(), lat)
	}
}
