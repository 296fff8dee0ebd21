package serverfx

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/joeydtaylor/layman/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

func TestModuleGraph(t *testing.T) {
	require.NoError(t, fx.ValidateApp(Module()))
}

func TestOptions(t *testing.T) {
	o := defaultOptions()
	for _, fn := range []Option{
		WithService("edge"),
		WithManifestEnv("EDGE_MANIFEST"),
		WithDefaultManifest("edge.toml"),
		WithListenEnv("EDGE_LISTEN"),
		WithDefaultListen(":9000"),
		WithTLSCertKeyEnv("EDGE_CRT", "EDGE_KEY"),
	} {
		fn(&o)
	}
	assert.Equal(t, "edge", o.Service)
	assert.Equal(t, "edge.toml", o.manifestPath())
	assert.Equal(t, ":9000", o.listenAddr())

	t.Setenv("EDGE_MANIFEST", "/etc/edge.toml")
	t.Setenv("EDGE_LISTEN", "127.0.0.1:1")
	assert.Equal(t, "/etc/edge.toml", o.manifestPath())
	assert.Equal(t, "127.0.0.1:1", o.listenAddr())
	assert.Equal(t, "EDGE_CRT", o.TLSCertEnv)
	assert.False(t, fileExists(""))
}

func TestAppServesManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[metrics]
enabled = true

[logging]
access_log = true

[[layer]]
route = "/hello"
handler = { type = "inproc", name = "serverfx.hello" }
`), 0o600))

	core.Register("serverfx.hello", func(_ context.Context, _ []byte) ([]byte, int, error) {
		return []byte(`{"hello":"world"}`), 0, nil
	})

	t.Setenv("LAYMAN_MANIFEST", path)
	t.Setenv("LAYMAN_LOG_DIR", dir)
	t.Setenv("SERVER_LISTEN_ADDRESS", "127.0.0.1:0")

	var h http.Handler
	app := fxtest.New(t,
		Module(),
		fx.Invoke(fx.Annotate(func(app http.Handler) { h = app }, fx.ParamTags(`name:"app"`))),
	)
	app.RequireStart()
	defer app.RequireStop()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hello", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"hello":"world"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, ".", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "layman_layers_invoked_total")
}
