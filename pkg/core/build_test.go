package core

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joeydtaylor/layman/pkg/electrician"
	"github.com/joeydtaylor/layman/pkg/layman"
	"github.com/joeydtaylor/layman/pkg/middleware/auth"
	"github.com/joeydtaylor/layman/pkg/middleware/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func build(t *testing.T, doc string, deps BuildDeps) *httptest.Server {
	t.Helper()
	cfg, err := ParseConfig([]byte(doc))
	require.NoError(t, err)
	d, err := BuildDispatcher(cfg, deps)
	require.NoError(t, err)
	srv := httptest.NewServer(d)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, req *http.Request) (int, string, http.Header) {
	t.Helper()
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, string(b), res.Header
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	code, body, _ := do(t, req)
	return code, body
}

func TestInprocLayer(t *testing.T) {
	Register("test.hello", func(_ context.Context, _ []byte) ([]byte, int, error) {
		return []byte(`{"msg":"hi"}`), 0, nil
	})
	Register("test.fail", func(_ context.Context, _ []byte) ([]byte, int, error) {
		return nil, http.StatusConflict, errors.New("taken")
	})

	srv := build(t, `
[[layer]]
route = "/hello"
method = "GET"
handler = { type = "inproc", name = "test.hello" }

[[layer]]
route = "/fail"
handler = { type = "inproc", name = "test.fail" }

[[layer]]
route = "/missing"
handler = { type = "inproc", name = "test.nobody" }
`, BuildDeps{})

	code, body := get(t, srv.URL+"/hello")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"msg":"hi"}`, body)

	code, body = get(t, srv.URL+"/fail")
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, body, "taken")

	code, _ = get(t, srv.URL+"/missing")
	assert.Equal(t, http.StatusInternalServerError, code)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/hello", nil)
	code, body, _ = do(t, req)
	assert.Equal(t, http.StatusOK, code, "unmatched requests exhaust the chain")
	assert.Empty(t, body)
}

func TestRespondLayers(t *testing.T) {
	srv := build(t, `
[[layer]]
handler = { type = "respond", respond = { headers = { X-Layer = "first" } } }

[[layer]]
route = "/teapot"
handler = { type = "respond", respond = { status = 418, body = "short and stout", stop = true } }

[[layer]]
route = "/teapot"
handler = { type = "respond", respond = { body = "never" } }

[[layer]]
route = "/json"
handler = { type = "respond", respond = { status = 201, json = { ok = true } } }
`, BuildDeps{})

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/teapot", nil)
	code, body, hdr := do(t, req)
	assert.Equal(t, http.StatusTeapot, code)
	assert.Equal(t, "short and stout", body)
	assert.Equal(t, "first", hdr.Get("X-Layer"))

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/json", nil)
	code, body, hdr = do(t, req)
	assert.Equal(t, http.StatusCreated, code)
	assert.JSONEq(t, `{"ok":true}`, body)
	assert.Equal(t, "application/json", hdr.Get("Content-Type"))
}

func TestGuard(t *testing.T) {
	Register("test.secret", func(context.Context, []byte) ([]byte, int, error) {
		return []byte(`{"secret":1}`), 0, nil
	})
	doc := `
[auth]
enabled = true

[[layer]]
route = "/admin"
guard = { roles = ["ops"] }
handler = { type = "inproc", name = "test.secret" }

[[layer]]
route = "/mine"
guard = { users = ["ada"] }
handler = { type = "inproc", name = "test.secret" }
`
	srv := build(t, doc, BuildDeps{Auth: auth.New(auth.Options{DevBypass: true, AdminRole: "root"}, nil, nil)})

	as := func(path, user, role string) int {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+path, nil)
		if user != "" {
			req.Header.Set("X-Dev-User", user)
			req.Header.Set("X-Dev-Role", role)
		}
		code, _, _ := do(t, req)
		return code
	}

	assert.Equal(t, http.StatusUnauthorized, as("/admin", "", ""))
	assert.Equal(t, http.StatusForbidden, as("/admin", "bob", "dev"))
	assert.Equal(t, http.StatusOK, as("/admin", "bob", "ops"))
	assert.Equal(t, http.StatusOK, as("/admin", "eve", "root"))
	assert.Equal(t, http.StatusForbidden, as("/mine", "bob", "ops"))
	assert.Equal(t, http.StatusOK, as("/mine", "ada", ""))

	closed := build(t, doc, BuildDeps{})
	code, _ := get(t, closed.URL+"/admin")
	assert.Equal(t, http.StatusUnauthorized, code, "guarded layers are closed without auth")
}

func TestRelayLayer(t *testing.T) {
	t.Setenv("ELECTRICIAN_STATIC_BEARER", "tok")
	mem := &electrician.Memory{}
	srv := build(t, `
[[layer]]
route = "/events"
method = "POST"
policy = { down_auth = { type = "static-bearer" } }
handler = { type = "relay", relay = { topic = "events", deadline_ms = 500 } }
`, BuildDeps{Relay: mem})

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/events", strings.NewReader(`{"n":1}`))
	req.Header.Set("Content-Type", "application/json")
	code, body, _ := do(t, req)
	assert.Equal(t, http.StatusAccepted, code)
	assert.JSONEq(t, `{"status":"accepted","topic":"events"}`, body)

	got := mem.Published()
	require.Len(t, got, 1)
	assert.Equal(t, "events", got[0].Topic)
	assert.Equal(t, `{"n":1}`, string(got[0].Body))
	assert.Equal(t, "Bearer tok", got[0].Headers["Authorization"])
	assert.Equal(t, "application/json", got[0].Headers["Content-Type"])
}

func TestRelayLayerWithoutClient(t *testing.T) {
	srv := build(t, `
[[layer]]
route = "/events"
handler = { type = "relay", relay = { topic = "events" } }
`, BuildDeps{})

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/events", strings.NewReader("x"))
	code, body, _ := do(t, req)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Contains(t, body, electrician.ErrNoRelay.Error())
}

func TestProxyLayer(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream", "yes")
		w.Header().Set("X-Saw-Secret", r.Header.Get("X-Secret"))
		w.Header().Set("X-Saw-Keep", r.Header.Get("X-Keep"))
		_, _ = io.WriteString(w, "upstream "+r.URL.Path)
	}))
	defer upstream.Close()

	srv := build(t, `
[[layer]]
route = "/users"
handler = { type = "proxy", proxy = { url = "`+upstream.URL+`", pass_headers = ["X-Keep"] } }
`, BuildDeps{})

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/users", nil)
	req.Header.Set("X-Keep", "1")
	req.Header.Set("X-Secret", "2")
	code, body, hdr := do(t, req)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "upstream /users", body)
	assert.Equal(t, "yes", hdr.Get("X-Upstream"))
	assert.Equal(t, "1", hdr.Get("X-Saw-Keep"))
	assert.Empty(t, hdr.Get("X-Saw-Secret"))
}

func TestProxyLayerUpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	url := upstream.URL
	upstream.Close()

	srv := build(t, `
[[layer]]
route = "/down"
handler = { type = "proxy", proxy = { url = "`+url+`" } }

[[layer]]
route = "/down"
handler = { type = "respond", respond = { body = "not reached" } }
`, BuildDeps{})

	code, body := get(t, srv.URL+"/down")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.NotContains(t, body, "not reached")
}

func TestGroupOnHost(t *testing.T) {
	srv := build(t, `
[[layer]]
host = "127.0.0.1"
handler = { type = "group", name = "api" }

[[layer]]
handler = { type = "respond", respond = { headers = { X-Outer = "after" } } }

[[group]]
name = "api"

  [[group.layer]]
  route = "/v1"
  handler = { type = "respond", respond = { status = 202, body = "v1" } }
`, BuildDeps{})

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1", nil)
	code, body, hdr := do(t, req)
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "v1", body)
	// headers set after the body was written never reach the client
	assert.Empty(t, hdr.Get("X-Outer"))
}

func TestGroupCycle(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
[[layer]]
handler = { type = "group", name = "a" }

[[group]]
name = "a"
  [[group.layer]]
  handler = { type = "group", name = "b" }

[[group]]
name = "b"
  [[group.layer]]
  handler = { type = "group", name = "a" }
`))
	require.NoError(t, err)
	_, err = BuildDispatcher(cfg, BuildDeps{})
	assert.ErrorContains(t, err, "includes itself")
}

func TestTimeoutPolicy(t *testing.T) {
	Register("test.deadline", func(ctx context.Context, _ []byte) ([]byte, int, error) {
		dl, ok := ctx.Deadline()
		if !ok || time.Until(dl) > time.Second {
			return nil, http.StatusInternalServerError, errors.New("no deadline")
		}
		return nil, http.StatusNoContent, nil
	})
	srv := build(t, `
[[layer]]
policy = { timeout_ms = 250 }
handler = { type = "inproc", name = "test.deadline" }
`, BuildDeps{})

	code, _ := get(t, srv.URL+"/")
	assert.Equal(t, http.StatusNoContent, code)
}

func TestAmbientLayers(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	srv := build(t, `
[dispatcher]
auto_end = true

[logging]
access_log = true

[[layer]]
route = "/ok"
handler = { type = "respond", respond = { status = 204, stop = true } }
`, BuildDeps{LogMW: logger.New(zap.New(core))})

	code, _ := get(t, srv.URL+"/ok")
	assert.Equal(t, http.StatusNoContent, code)
	require.Eventually(t, func() bool { return logs.Len() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(http.StatusNoContent), logs.All()[0].ContextMap()["status"])
}

func TestBuildAppliesDispatcherSettings(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
[dispatcher]
auto_end = false
auto_async = true
host_pattern = '^([a-z]+)'
`))
	require.NoError(t, err)
	d, err := BuildDispatcher(cfg, BuildDeps{})
	require.NoError(t, err)
	assert.False(t, d.AutoEnd())
	assert.True(t, d.AutoAsync())
	assert.Equal(t, "^([a-z]+)", d.HostPattern().String())
	assert.Equal(t, layman.DefaultConfig().HostPattern, layman.New().HostPattern())
}

func TestParseConfigErrors(t *testing.T) {
	_, err := ParseConfig([]byte("[[layer]]\nrout = \"/x\"\nhandler = { type = \"respond\" }\n"))
	assert.ErrorContains(t, err, "rout")

	_, err = ParseConfig([]byte("[[layer]]\nhandler = { type = \"inproc\" }\n"))
	assert.ErrorContains(t, err, "layer 0")

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[layer]]
route = "ping"
handler = { type = "respond", respond = { body = "pong" } }
`), 0o600))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Layers, 1)
	assert.Equal(t, "/ping", cfg.Layers[0].Route)
}

func TestAutoAsyncManifestAnswers(t *testing.T) {
	Register("test.async", func(context.Context, []byte) ([]byte, int, error) {
		return []byte(`{"async":true}`), 0, nil
	})
	core, logs := observer.New(zap.InfoLevel)
	srv := build(t, `
[dispatcher]
auto_async = true

[auth]
enabled = true

[logging]
access_log = true

[[layer]]
handler = { type = "respond", respond = { headers = { X-First = "1" } } }

[[layer]]
route = "/ok"
handler = { type = "respond", respond = { status = 200, body = "ok", stop = true } }

[[layer]]
route = "/inproc"
guard = { require_auth = true }
policy = { timeout_ms = 500 }
handler = { type = "inproc", name = "test.async" }

[[layer]]
route = "/grouped"
handler = { type = "group", name = "inner" }

[[layer]]
route = "/grouped"
handler = { type = "respond", respond = { body = " outer" } }

[[group]]
name = "inner"
dispatcher = { auto_async = true }

  [[group.layer]]
  handler = { type = "respond", respond = { status = 200, body = "inner" } }
`, BuildDeps{
		Auth:  auth.New(auth.Options{DevBypass: true}, nil, nil),
		LogMW: logger.New(zap.New(core)),
	})

	client := &http.Client{Timeout: 2 * time.Second}
	send := func(path, user string) (int, string, http.Header) {
		req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
		require.NoError(t, err)
		if user != "" {
			req.Header.Set("X-Dev-User", user)
		}
		res, err := client.Do(req)
		require.NoError(t, err)
		defer res.Body.Close()
		b, err := io.ReadAll(res.Body)
		require.NoError(t, err)
		return res.StatusCode, string(b), res.Header
	}

	code, body, hdr := send("/ok", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)
	assert.Equal(t, "1", hdr.Get("X-First"))

	code, _, _ = send("/inproc", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	code, body, _ = send("/inproc", "ada")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"async":true}`, body)

	code, body, _ = send("/grouped", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "inner outer", body)

	code, body, _ = send("/nothing", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, body)

	require.Eventually(t, func() bool { return logs.Len() == 5 }, time.Second, 10*time.Millisecond)
}

func TestAsyncFlagOnSyncKind(t *testing.T) {
	srv := build(t, `
[[layer]]
route = "/x"
async = true
handler = { type = "respond", respond = { body = "first" } }

[[layer]]
route = "/x"
handler = { type = "respond", respond = { body = " second", stop = true } }

[[layer]]
route = "/x"
handler = { type = "respond", respond = { body = " never" } }
`, BuildDeps{})

	client := &http.Client{Timeout: 2 * time.Second}
	res, err := client.Get(srv.URL + "/x")
	require.NoError(t, err)
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, "first second", string(b))
}
