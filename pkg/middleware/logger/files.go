package logger

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogDir is where NewLog writes its rotating files; LAYMAN_LOG_DIR overrides it.
func LogDir() string {
	if d := strings.TrimSpace(os.Getenv("LAYMAN_LOG_DIR")); d != "" {
		return d
	}
	return "log"
}

func level() zapcore.Level {
	lvl := zap.InfoLevel
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		if l, err := zapcore.ParseLevel(v); err == nil {
			lvl = l
		}
	}
	return lvl
}

// NewLog builds a JSON logger teed to a rotating file named n and stdout.
func NewLog(n string) *zap.Logger {
	dir := LogDir()
	_ = os.MkdirAll(dir, 0o755)

	cfg := zap.NewProductionEncoderConfig()
	cfg.MessageKey = zapcore.OmitKey

	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(dir, n),
		MaxSize:    50, // MB
		MaxBackups: 3,
		MaxAge:     7, // days
	})

	lvl := level()
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(cfg), w, lvl),
		zapcore.NewCore(zapcore.NewJSONEncoder(cfg), zapcore.Lock(os.Stdout), lvl),
	)
	return zap.New(core)
}
