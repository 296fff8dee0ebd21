package logger

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/joeydtaylor/layman/pkg/layman"
	"github.com/joeydtaylor/layman/pkg/middleware/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func dispatch(t *testing.T, d *layman.Dispatcher, r *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	rw := d.Dispatch(rec, r)
	select {
	case <-rw.Done():
	case <-time.After(time.Second):
		t.Fatal("response not finalized")
	}
	return rec
}

func TestAccessLine(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := New(zap.New(core), WithBodyPaths("echo"))

	var downstream []byte
	d := layman.New()
	d.Use(m.Layer())
	d.Use(layman.HandlerFunc(func(w layman.ResponseWriter, r *http.Request, _ *layman.Next) layman.Result {
		downstream, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
		return layman.Continue
	}), layman.Route("/echo"))

	r := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"a":1}`))
	r.Header.Set("Content-Type", "application/json")
	dispatch(t, d, r)

	assert.Equal(t, `{"a":1}`, string(downstream), "body restored for later layers")
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, int64(http.StatusCreated), fields["status"])
	assert.Equal(t, int64(2), fields["responseSize"])
	assert.Equal(t, "/echo", fields["uri"])
	assert.Equal(t, "POST", fields["httpMethod"])
	assert.Equal(t, `{"a":1}`, fields["requestData"])
	assert.Equal(t, false, fields["isAuthenticated"])
}

func TestBodyRedactedOffAllowlist(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := New(zap.New(core))
	d := layman.New()
	d.Use(m.Layer())

	r := httptest.NewRequest(http.MethodPost, "/secret", strings.NewReader(`{"pw":"x"}`))
	r.Header.Set("Content-Type", "application/json")
	dispatch(t, d, r)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.NotContains(t, fields, "requestData")
	assert.Equal(t, int64(http.StatusOK), fields["status"])

	m.AddBodyLogPaths("/secret")
	r = httptest.NewRequest(http.MethodPost, "/secret", strings.NewReader(`{"pw":"x"}`))
	r.Header.Set("Content-Type", "application/json")
	dispatch(t, d, r)
	assert.Contains(t, logs.All()[1].ContextMap(), "requestData")
}

func TestBodyAllowlistRules(t *testing.T) {
	a := newBodyAllowlist("/echo")
	req := func(method, ct string) *http.Request {
		r := httptest.NewRequest(method, "/echo", nil)
		r.Header.Set("Content-Type", ct)
		return r
	}
	small := []byte(`{}`)

	assert.True(t, a.allows(req(http.MethodPost, "application/json"), small))
	assert.True(t, a.allows(req(http.MethodPatch, "application/json; charset=utf-8"), small))
	assert.False(t, a.allows(req(http.MethodGet, "application/json"), small))
	assert.False(t, a.allows(req(http.MethodPost, "text/plain"), small))
	assert.False(t, a.allows(req(http.MethodPost, "application/json"), nil))
	assert.False(t, a.allows(req(http.MethodPost, "application/json"), make([]byte, maxLoggedBody+1)))
}

func TestAccessLineIncludesUser(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ca := auth.New(auth.Options{DevBypass: true}, nil, nil)
	m := New(zap.New(core), WithAuth(ca))

	d := layman.New()
	d.Use(ca.Layer())
	d.Use(m.Layer())

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Dev-User", "ada")
	r.Header.Set("X-Dev-Role", "ops")
	dispatch(t, d, r)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, true, fields["isAuthenticated"])
	assert.Equal(t, "ada", fields["username"])
	assert.Equal(t, "ops", fields["role"])
}

func TestPretty(t *testing.T) {
	var buf bytes.Buffer
	core, _ := observer.New(zap.InfoLevel)
	m := New(zap.New(core), WithPretty(NewPretty(&buf)))
	d := layman.New()
	d.Use(m.Layer())
	dispatch(t, d, httptest.NewRequest(http.MethodDelete, "/thing", nil))

	out := buf.String()
	assert.Contains(t, out, "DELETE")
	assert.Contains(t, out, "/thing")
	assert.Contains(t, out, "200")
	assert.Contains(t, Line("GET", "/x", 503, time.Millisecond), "503")
}

func TestNewLogWritesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LAYMAN_LOG_DIR", dir)
	t.Setenv("LOG_LEVEL", "debug")

	l := NewLog("test.log")
	assert.True(t, l.Core().Enabled(zap.DebugLevel))
	l.Info("", zap.String("k", "v"))
	_ = l.Sync()
	assert.FileExists(t, dir+"/test.log")
}
