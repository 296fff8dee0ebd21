// Package bundlefx groups the middleware layer modules.
package bundlefx

import (
	"github.com/joeydtaylor/layman/pkg/middleware/auth"
	"github.com/joeydtaylor/layman/pkg/middleware/logger"
	"github.com/joeydtaylor/layman/pkg/middleware/metrics"
	"go.uber.org/fx"
)

// Module provided to fx
var Module = fx.Options(
	auth.Module,
	logger.Module,
	metrics.Module,
)
