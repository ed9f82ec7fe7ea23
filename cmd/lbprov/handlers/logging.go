package handlers

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
)

// NewLogger returns a zap-backed logr.Logger. Verbose selects the development
// encoder with debug output; otherwise JSON production logging is used.
// The returned function flushes buffered entries.
func NewLogger(verbose bool) (logr.Logger, func(), error) {
	var (
		zl  *zap.Logger
		err error
	)
	if verbose {
		zl, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.DisableStacktrace = true
		zl, err = cfg.Build()
	}
	if err != nil {
		return logr.Discard(), func() {}, err
	}
	return zapr.NewLogger(zl), func() { _ = zl.Sync() }, nil
}
