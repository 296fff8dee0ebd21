package auth

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ProvideAuthentication wires env config and ties the key refresher to the
// app lifecycle. A failed initial key fetch is logged, not fatal.
func ProvideAuthentication(lc fx.Lifecycle, log *zap.Logger) *Middleware {
	m := New(OptionsFromEnv(), nil, log)
	if m.opts.KeyURL == "" {
		return m
	}

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(start context.Context) error {
			if err := m.RefreshKey(start); err != nil {
				log.Warn("assertion key fetch failed", zap.String("url", m.opts.KeyURL), zap.Error(err))
			}
			go m.refreshLoop(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
	return m
}

var Module = fx.Options(
	fx.Provide(ProvideAuthentication),
)
