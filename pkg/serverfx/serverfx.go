package serverfx

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/joeydtaylor/layman/pkg/bundlefx"
	"github.com/joeydtaylor/layman/pkg/core"
	"github.com/joeydtaylor/layman/pkg/electrician"
	"github.com/joeydtaylor/layman/pkg/layman"
	"github.com/joeydtaylor/layman/pkg/manifest"
	"github.com/joeydtaylor/layman/pkg/middleware/auth"
	"github.com/joeydtaylor/layman/pkg/middleware/logger"
	"github.com/joeydtaylor/layman/pkg/middleware/metrics"
	"github.com/joeydtaylor/layman/pkg/transport/httpx"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ---------- Manifest ----------

func provideManifest(opts Options, zl *zap.Logger) manifest.Config {
	path := opts.manifestPath()
	cfg, err := core.LoadConfig(path)
	if err != nil {
		zl.Fatal("manifest load failed", zap.Error(err), zap.String("path", path))
	}
	return cfg
}

// ---------- Relay ----------

func provideRelay(lc fx.Lifecycle, cfg manifest.Config, zl *zap.Logger) (electrician.RelayClient, error) {
	rc, err := electrician.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	if len(rc.Targets) == 0 {
		for _, l := range cfg.Layers {
			if l.Handler.Type == manifest.HandlerRelay {
				zl.Warn("relay layer configured but ELECTRICIAN_TARGET unset; publishes are dropped",
					zap.String("topic", l.Handler.Relay.Topic),
				)
				break
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.StopHook(cancel))
	client, err := electrician.NewRelay(ctx, rc, zl)
	if err != nil {
		cancel()
		return nil, err
	}
	return client, nil
}

// ---------- Dispatcher + front router ----------

type dispatcherDeps struct {
	fx.In

	Config  manifest.Config
	Auth    *auth.Middleware
	LogMW   *logger.Middleware
	Metrics *metrics.Collector
	Relay   electrician.RelayClient
	Log     *zap.Logger
}

func provideDispatcher(d dispatcherDeps) (*layman.Dispatcher, error) {
	return core.BuildDispatcher(d.Config, core.BuildDeps{
		Auth:     d.Auth,
		LogMW:    d.LogMW,
		Metrics:  d.Metrics,
		Relay:    d.Relay,
		Log:      d.Log,
		Observer: metrics.DispatchObserver{},
	})
}

type appDeps struct {
	fx.In

	Config     manifest.Config
	Dispatcher *layman.Dispatcher
	Router     httpx.Router
	Metrics    http.Handler
}

func provideApp(d appDeps) http.Handler {
	f := httpx.Frontend{App: d.Dispatcher, HeartbeatPath: "/ping"}
	if d.Config.Metrics.Enabled {
		f.Metrics, f.MetricsPath = d.Metrics, d.Config.Metrics.Path
	}
	return httpx.New(d.Router, f)
}

// ---------- Server lifecycle ----------

type serverDeps struct {
	fx.In
	Opts   Options
	Logger *zap.Logger
	App    http.Handler `name:"app"`
}

func newServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		TLSConfig:    &tls.Config{MinVersion: tls.VersionTLS13, MaxVersion: tls.VersionTLS13},
	}
}

func registerHooks(lc fx.Lifecycle, d serverDeps) {
	addr := d.Opts.listenAddr()
	cert := os.Getenv(d.Opts.TLSCertEnv)
	key := os.Getenv(d.Opts.TLSKeyEnv)
	useTLS := fileExists(cert) && fileExists(key)
	srv := newServer(addr, d.App)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			mode := "PLAINTEXT"
			if useTLS {
				mode = "TLS"
			}
			d.Logger.Info("server starting ("+mode+")",
				zap.String("service", d.Opts.Service),
				zap.String("addr", ln.Addr().String()),
			)
			go func() {
				var err error
				if useTLS {
					err = srv.ServeTLS(ln, cert, key)
				} else {
					srv.TLSConfig = nil
					err = srv.Serve(ln)
				}
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					d.Logger.Fatal("server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			d.Logger.Info("server stopping", zap.String("service", d.Opts.Service))
			return srv.Shutdown(ctx)
		},
	})
}

// ---------- Public Fx module ----------

// Module returns a complete Fx option set; add app-specific fx.Invoke(...) alongside.
func Module(opts ...Option) fx.Option {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return fx.Options(
		fx.Supply(o),

		// auth, logging, metrics
		bundlefx.Module,

		fx.Provide(httpx.NewChi),
		fx.Provide(provideManifest),
		fx.Provide(provideRelay),
		fx.Provide(provideDispatcher),
		fx.Provide(fx.Annotate(provideApp, fx.ResultTags(`name:"app"`))),

		fx.Invoke(registerHooks),
	)
}
