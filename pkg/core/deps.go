package core

import (
	"github.com/joeydtaylor/layman/pkg/electrician"
	"github.com/joeydtaylor/layman/pkg/layman"
	"github.com/joeydtaylor/layman/pkg/middleware/auth"
	"github.com/joeydtaylor/layman/pkg/middleware/logger"
	"github.com/joeydtaylor/layman/pkg/middleware/metrics"
	"go.uber.org/zap"
)

// BuildDeps are the collaborators a manifest can switch on. Nil members
// disable the matching feature.
type BuildDeps struct {
	Auth     *auth.Middleware
	LogMW    *logger.Middleware
	Metrics  *metrics.Collector
	Relay    electrician.RelayClient
	Creds    CredentialsProvider
	Log      *zap.Logger
	Observer layman.Observer
}
