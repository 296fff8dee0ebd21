package electrician

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/joeydtaylor/electrician/pkg/builder"
	"go.uber.org/zap"
)

const preflightTimeout = 10 * time.Second

// builderClient submits encoded frames into a wire feeding a ForwardRelay.
type builderClient struct {
	submit func(context.Context, []byte) error
}

func (c *builderClient) Publish(ctx context.Context, rr RelayRequest) error {
	b, err := Encode(rr)
	if err != nil {
		return err
	}
	if rr.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rr.Timeout)
		defer cancel()
	}
	return c.submit(ctx, b)
}

// NewRelay starts a publish-only RelayClient powered by Electrician's
// ForwardRelay[[]byte]. With no targets it returns Noop. The relay runs
// until ctx is cancelled.
func NewRelay(ctx context.Context, cfg Config, log *zap.Logger) (RelayClient, error) {
	if len(cfg.Targets) == 0 {
		return Noop(), nil
	}
	if log == nil {
		log = zap.NewNop()
	}

	logger := builder.NewLogger(builder.LoggerWithDevelopment(true))
	wire := builder.NewWire[[]byte](ctx, builder.WireWithLogger[[]byte](logger))

	perf := builder.NewPerformanceOptions(cfg.Snappy, builder.COMPRESS_SNAPPY)
	sec := builder.NewSecurityOptions(cfg.AESKey != "", builder.ENCRYPTION_AES_GCM)
	tlsCfg := builder.NewTlsClientConfig(
		cfg.TLS,
		cfg.TLSCert, cfg.TLSKey, cfg.TLSCA,
		tls.VersionTLS13, tls.VersionTLS13,
	)

	var relayStart func(context.Context) error
	if cfg.OAuth.Enabled() {
		authOpts := builder.NewForwardRelayAuthenticationOptionsOAuth2(nil)
		if cfg.OAuth.JWKSURL != "" {
			authOpts = builder.NewForwardRelayAuthenticationOptionsOAuth2(
				builder.NewForwardRelayOAuth2JWTOptions(cfg.OAuth.Issuer, cfg.OAuth.JWKSURL, []string{}, cfg.OAuth.Scopes, 300),
			)
		}
		authHTTP := &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion:         tls.VersionTLS13,
					MaxVersion:         tls.VersionTLS13,
					InsecureSkipVerify: cfg.TLSInsecure, // dev only
				},
			},
		}
		if err := preflightOAuthToken(ctx, authHTTP, cfg.OAuth, preflightTimeout); err != nil {
			log.Warn("relay oauth preflight failed", zap.String("issuer", cfg.OAuth.Issuer), zap.Error(err))
		}
		ts := builder.NewForwardRelayRefreshingClientCredentialsSource(
			cfg.OAuth.Issuer, cfg.OAuth.ClientID, cfg.OAuth.ClientSecret, cfg.OAuth.Scopes, cfg.OAuth.Leeway, authHTTP,
		)
		relay := builder.NewForwardRelay[[]byte](
			ctx,
			builder.ForwardRelayWithLogger[[]byte](logger),
			builder.ForwardRelayWithTarget[[]byte](cfg.Targets...),
			builder.ForwardRelayWithPerformanceOptions[[]byte](perf),
			builder.ForwardRelayWithSecurityOptions[[]byte](sec, cfg.AESKey),
			builder.ForwardRelayWithTLSConfig[[]byte](tlsCfg),
			builder.ForwardRelayWithStaticHeaders[[]byte](cfg.StaticHeaders),
			builder.ForwardRelayWithAuthenticationOptions[[]byte](authOpts),
			builder.ForwardRelayWithOAuthBearer[[]byte](ts),
			builder.ForwardRelayWithInput(wire),
		)
		relayStart = relay.Start
	} else {
		relay := builder.NewForwardRelay[[]byte](
			ctx,
			builder.ForwardRelayWithLogger[[]byte](logger),
			builder.ForwardRelayWithTarget[[]byte](cfg.Targets...),
			builder.ForwardRelayWithPerformanceOptions[[]byte](perf),
			builder.ForwardRelayWithSecurityOptions[[]byte](sec, cfg.AESKey),
			builder.ForwardRelayWithTLSConfig[[]byte](tlsCfg),
			builder.ForwardRelayWithStaticHeaders[[]byte](cfg.StaticHeaders),
			builder.ForwardRelayWithInput(wire),
		)
		relayStart = relay.Start
	}

	if err := wire.Start(ctx); err != nil {
		return nil, fmt.Errorf("builder wire start: %w", err)
	}
	if err := relayStart(ctx); err != nil {
		return nil, fmt.Errorf("builder relay start: %w", err)
	}
	log.Info("relay started", zap.Strings("targets", cfg.Targets), zap.Bool("tls", cfg.TLS), zap.Bool("oauth", cfg.OAuth.Enabled()))

	return &builderClient{
		submit: func(ctx context.Context, b []byte) error { return wire.Submit(ctx, b) },
	}, nil
}
