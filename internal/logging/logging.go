// Package logging wires opkg's diagnostic logging onto a logr.Logger backed
// by zap, the way ConfigButler-gitops-reverser and the aro-hcp-intelhub
// tooling both use go.uber.org/zap under github.com/go-logr/zapr. This is
// distinct from internal/printer: logging carries structured diagnostics
// (cache cleanup, conflict arbitration, flow skips) for operators, while
// printer carries the command's user-facing progress output.
package logging

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

// NewZap builds the production logger: console-encoded, info level by
// default, debug when verbose is set.
func NewZap(verbose bool) logr.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = !verbose
	zl, err := cfg.Build()
	if err != nil {
		// Fall back to a no-op logger rather than fail the command over
		// a logging misconfiguration.
		return logr.Discard()
	}
	return zapr.NewLogger(zl)
}

// WithLogger returns a context carrying the given logger.
func WithLogger(ctx context.Context, l logr.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored on ctx, or a discard logger if
// none was set.
func FromContext(ctx context.Context) logr.Logger {
	if l, ok := ctx.Value(ctxKey{}).(logr.Logger); ok {
		return l
	}
	return logr.Discard()
}
