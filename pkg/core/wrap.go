package core

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	chimd "github.com/go-chi/chi/v5/middleware"
	"github.com/joeydtaylor/layman/pkg/codec"
	"github.com/joeydtaylor/layman/pkg/electrician"
	"github.com/joeydtaylor/layman/pkg/layman"
	manifest "github.com/joeydtaylor/layman/pkg/manifest"
	"go.uber.org/zap"
)

// handler builds the callback for one manifest layer.
func (b *builder) handler(l manifest.Layer) (layman.Handler, error) {
	switch l.Handler.Type {
	case manifest.HandlerInproc:
		return b.inproc(l), nil
	case manifest.HandlerRespond:
		return respond(l.Handler.Respond)
	case manifest.HandlerRelay:
		return b.relay(l), nil
	case manifest.HandlerProxy:
		return b.proxy(l)
	case manifest.HandlerGroup:
		return b.group(l.Handler.Name)
	default:
		return nil, fmt.Errorf("unknown handler type %q", l.Handler.Type)
	}
}

// inproc answers with a registered handler and ends the chain. An unknown
// name is resolved per request so handlers registered after the build still
// work.
func (b *builder) inproc(l manifest.Layer) layman.Handler {
	name := l.Handler.Name
	return layman.HandlerFunc(func(w layman.ResponseWriter, r *http.Request, _ *layman.Next) layman.Result {
		h, ok := Lookup(name)
		if !ok {
			b.deps.Log.Error("inproc handler not registered", zap.String("name", name))
			http.Error(w, "handler not found", http.StatusInternalServerError)
			return layman.Stop
		}
		body, _ := io.ReadAll(r.Body)
		out, status, err := h(r.Context(), body)
		if err != nil {
			http.Error(w, err.Error(), statusIf(status, http.StatusInternalServerError))
			return layman.Stop
		}
		writeJSON(w, out, statusIf(status, http.StatusOK))
		return layman.Stop
	})
}

func respond(rs *manifest.RespondSpec) (layman.Handler, error) {
	if rs == nil {
		rs = &manifest.RespondSpec{}
	}
	status := statusIf(rs.Status, http.StatusOK)
	result := layman.Continue
	if rs.Stop {
		result = layman.Stop
	}

	var payload []byte
	ct := rs.ContentType
	if rs.JSON != nil {
		b, err := codec.JSONStrict.Marshal(rs.JSON)
		if err != nil {
			return nil, fmt.Errorf("respond json: %w", err)
		}
		payload = b
		if ct == "" {
			ct = codec.JSONStrict.ContentType()
		}
	} else {
		payload = []byte(rs.Body)
		if ct == "" && len(payload) > 0 {
			ct = "text/plain; charset=utf-8"
		}
	}

	// a respond layer with neither status nor body only sets headers
	writes := rs.Status != 0 || len(payload) > 0

	return layman.HandlerFunc(func(w layman.ResponseWriter, _ *http.Request, _ *layman.Next) layman.Result {
		for k, v := range rs.Headers {
			w.Header().Set(k, v)
		}
		if !writes {
			return result
		}
		if ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		w.WriteHeader(status)
		if len(payload) > 0 {
			_, _ = w.Write(payload)
		}
		return result
	}), nil
}

// relay publishes the request body off the request goroutine. Success
// answers 202 and resumes the chain; failure answers 502 and ends the
// response.
func (b *builder) relay(l manifest.Layer) layman.Handler {
	spec := *l.Handler.Relay
	return layman.ConnectFunc(func(w layman.ResponseWriter, r *http.Request, next *layman.Next) {
		body, _ := io.ReadAll(r.Body)
		hdrs := b.forwardHeaders(r, l)
		if ct := r.Header.Get("Content-Type"); ct != "" {
			hdrs["Content-Type"] = ct
		}

		go func() {
			ctx := r.Context()
			if spec.DeadlineMS > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, time.Duration(spec.DeadlineMS)*time.Millisecond)
				defer cancel()
			}
			err := electrician.ErrNoRelay
			if b.deps.Relay != nil {
				err = b.deps.Relay.Publish(ctx, electrician.RelayRequest{
					Topic:   spec.Topic,
					Body:    body,
					Headers: hdrs,
				})
			}
			if err != nil {
				b.deps.Log.Warn("relay publish failed", zap.String("topic", spec.Topic), zap.Error(err))
				http.Error(w, err.Error(), http.StatusBadGateway)
				w.End()
				return
			}
			_ = codec.Write(w, codec.JSONStrict, http.StatusAccepted, map[string]string{"status": "accepted", "topic": spec.Topic})
			next.Resume()
		}()
	})
}

// proxy forwards the request to the configured upstream off the request
// goroutine, then resumes the chain.
func (b *builder) proxy(l manifest.Layer) (layman.Handler, error) {
	spec := *l.Handler.Proxy
	target, err := url.Parse(spec.URL)
	if err != nil {
		return nil, fmt.Errorf("proxy url: %w", err)
	}

	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			if len(spec.PassHeaders) > 0 {
				keep := pr.Out.Header.Clone()
				pr.Out.Header = http.Header{}
				for _, h := range spec.PassHeaders {
					if v := keep.Values(h); len(v) > 0 {
						pr.Out.Header[http.CanonicalHeaderKey(h)] = v
					}
				}
				for _, h := range []string{"X-Forwarded-For", "X-Forwarded-Host", "X-Forwarded-Proto"} {
					if v := keep.Get(h); v != "" {
						pr.Out.Header.Set(h, v)
					}
				}
			}
			for k, v := range b.forwardHeaders(pr.In, l) {
				pr.Out.Header.Set(k, v)
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			b.deps.Log.Warn("proxy upstream failed", zap.String("upstream", spec.URL), zap.Error(err))
			w.WriteHeader(http.StatusBadGateway)
			proxyFailed(r)
		},
	}

	return layman.ConnectFunc(func(w layman.ResponseWriter, r *http.Request, next *layman.Next) {
		failed := false
		r = r.WithContext(context.WithValue(r.Context(), proxyFailKey{}, &failed))
		go func() {
			defer func() {
				// ReverseProxy aborts a half-copied body with this panic
				if rec := recover(); rec != nil {
					if rec != http.ErrAbortHandler {
						panic(rec)
					}
					w.End()
				}
			}()
			rp.ServeHTTP(w, r)
			if failed {
				w.End()
				return
			}
			next.Resume()
		}()
	}), nil
}

type proxyFailKey struct{}

func proxyFailed(r *http.Request) {
	if p, ok := r.Context().Value(proxyFailKey{}).(*bool); ok {
		*p = true
	}
}

// forwardHeaders carries the request id and downstream credentials.
func (b *builder) forwardHeaders(r *http.Request, l manifest.Layer) map[string]string {
	hdrs := map[string]string{}
	if rid := chimd.GetReqID(r.Context()); rid != "" {
		hdrs["X-Request-Id"] = rid
	}
	creds, err := b.deps.Creds.Issue(r.Context(), r, l)
	if err != nil {
		b.deps.Log.Warn("downstream credentials", zap.Error(err))
		return hdrs
	}
	creds.apply(hdrs)
	return hdrs
}

func writeJSON(w http.ResponseWriter, payload []byte, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if len(payload) > 0 {
		_, _ = w.Write(payload)
		return
	}
	_, _ = w.Write([]byte(`{}`))
}

func statusIf(s, def int) int {
	if s > 0 {
		return s
	}
	return def
}
