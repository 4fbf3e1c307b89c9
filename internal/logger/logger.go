// Package logger owns the process-wide structured logger built on the Uber
// zap library. It exposes a sugared global logger, request-scoped loggers
// that carry the request identifier, and an HTTP access-log middleware.
//
// The global logger is a no-op until Init is called, so packages can log
// freely in tests without any setup.
package logger

import (
	"context"
	"errors"
	"net/http"
	"os"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mapmyfamily/familyapi/internal/requestid"
)

// Log is the global SugaredLogger. It offers the key-value (Infow, Errorw)
// and printf-style APIs of zap with a single shared configuration.
// Replace it only through Init, or directly in tests with an observer core.
var Log = zap.NewNop().Sugar()

// accessRecorder wraps a ResponseWriter to capture the status code and the
// number of body bytes sent to the client.
type accessRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

// Write forwards b to the client. A body written without an explicit
// WriteHeader counts as 200, matching net/http.
func (r *accessRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	size, err := r.ResponseWriter.Write(b)
	r.size += size

	return size, err
}

// WriteHeader records statusCode and sends it to the client.
func (r *accessRecorder) WriteHeader(statusCode int) {
	if r.status == 0 {
		r.status = statusCode
	}
	r.ResponseWriter.WriteHeader(statusCode)
}

// Init replaces the global logger with a JSON production logger writing at
// level ("debug", "info", "warn", "error", "dpanic", "panic", "fatal").
// Timestamps are ISO8601 so they line up with the access logs of proxies.
func Init(level string) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zl, err := cfg.Build()
	if err != nil {
		return err
	}
	Log = zl.Sugar()

	return nil
}

// FromContext returns the global logger annotated with the request
// identifier stored in ctx, or the global logger itself outside a request.
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if id := requestid.FromContext(ctx); id != "" {
		return Log.With("request_id", id)
	}

	return Log
}

// Sync flushes any buffered log entries to the output.
// It should be called when shutting down to ensure all logs are written.
// Errors from syncing a terminal or a pipe are not reported.
func Sync() error {
	err := Log.Sync()
	if err != nil && !errors.Is(err, os.ErrInvalid) && !errors.Is(err, syscall.ENOTTY) {
		return err
	}

	return nil
}

// WithLoggingHTTPMiddleware writes one access-log entry per request with
// uri, method, status, duration, response size and request ID.
// Server errors are logged at warn level, everything else at info.
func WithLoggingHTTPMiddleware(h http.Handler) http.Handler {
	logFn := func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := &accessRecorder{ResponseWriter: w}
		h.ServeHTTP(rec, r)

		write := Log.Infow
		if rec.status >= http.StatusInternalServerError {
			write = Log.Warnw
		}

		write(
			"request served",
			"uri", r.RequestURI,
			"method", r.Method,
			"status", rec.status,
			"duration", time.Since(start),
			"size", rec.size,
			"request_id", requestid.FromContext(r.Context()),
		)
	}

	return http.HandlerFunc(logFn)
}
