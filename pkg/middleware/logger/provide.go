package logger

import (
	"os"

	"github.com/joeydtaylor/layman/pkg/middleware/auth"
	"go.uber.org/zap"
)

// AccessLogger is the logger the access layer writes to. It is a distinct
// type so fx can tell it apart from the system *zap.Logger.
type AccessLogger struct{ *zap.Logger }

func ProvideLogger() *zap.Logger { return NewLog("system.log") }

func ProvideAccessLogger() AccessLogger { return AccessLogger{NewLog("http-access.log")} }

// ProvideLoggerMiddleware builds the access layer. LOG_PRETTY=true adds the
// colored console line.
func ProvideLoggerMiddleware(access AccessLogger, ca *auth.Middleware) *Middleware {
	opts := []Option{WithAuth(ca)}
	if os.Getenv("LOG_PRETTY") == "true" {
		opts = append(opts, WithPretty(NewPretty(nil)))
	}
	return New(access.Logger, opts...)
}
