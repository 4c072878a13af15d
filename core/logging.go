package core

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// SetupLogging builds a zap logger writing human-readable lines to stdout and,
// when cfg.LogDir is set, JSON lines to cfg.LogDir/filename.
// Caller should close the returned io.Closer on shutdown.
func SetupLogging(cfg Config, filename string) (*zap.Logger, io.Closer, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level.SetLevel(zapcore.InfoLevel)
	}

	consoleEnc := zap.NewDevelopmentEncoderConfig()
	consoleEnc.EncodeTime = zapcore.ISO8601TimeEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEnc), zapcore.Lock(os.Stdout), level),
	}

	var closer io.Closer = nopCloser{}
	if cfg.LogDir != "" {
		if filename == "" {
			filename = "app.log"
		}
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log dir %s: %w", cfg.LogDir, err)
		}
		path := filepath.Join(cfg.LogDir, filename)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", path, err)
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(f), level))
		closer = f
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	if level.Level() > zapcore.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	return logger, closer, nil
}

// RequestLogger logs one line per request through zap instead of gin's default writer.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			logger.Error("request", fields...)
		case status >= 400:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}
