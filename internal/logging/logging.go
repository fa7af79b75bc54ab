// Package logging builds the process logger.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"roguecloud.ai/internal/sim/tuning"
)

// New returns a JSON production logger for format "json" and a colourised console logger
// otherwise. An unknown level falls back to info.
func New(cfg tuning.Logging) (*zap.Logger, error) {
	zcfg := Config(cfg)
	return zcfg.Build()
}

func Config(cfg tuning.Logging) zap.Config {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(cfg.Level))); err != nil {
		level = zapcore.InfoLevel
	}

	var zcfg zap.Config
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "json") {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zcfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zcfg.EncoderConfig.ConsoleSeparator = "  "
		zcfg.DisableCaller = true
		zcfg.DisableStacktrace = true
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg
}
