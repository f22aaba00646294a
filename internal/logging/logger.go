// Package logging provides zap logger helpers.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// invalidSIdMessage marks the per-identifier SBML warnings that repeat for
// most metabolites of some models.
const invalidSIdMessage = "is not a valid SBML 'SId'"

// New builds a zap.Logger configured for development or production. Both
// drop the invalid SId warnings emitted while reading SBML.
func New(development bool) (*zap.Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.DisableStacktrace = false
	}
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build(zap.WrapCore(FilterSIdWarnings))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// FilterSIdWarnings wraps core so entries about invalid SBML identifiers are
// discarded.
func FilterSIdWarnings(core zapcore.Core) zapcore.Core {
	return &filterCore{Core: core, drop: func(ent zapcore.Entry) bool {
		return strings.Contains(ent.Message, invalidSIdMessage)
	}}
}

type filterCore struct {
	zapcore.Core
	drop func(zapcore.Entry) bool
}

func (c *filterCore) With(fields []zapcore.Field) zapcore.Core {
	return &filterCore{Core: c.Core.With(fields), drop: c.drop}
}

func (c *filterCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.drop(ent) {
		return ce
	}
	return c.Core.Check(ent, ce)
}
