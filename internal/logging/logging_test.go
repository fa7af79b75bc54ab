package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"roguecloud.ai/internal/sim/tuning"
)

func TestConfig_LevelAndFormat(t *testing.T) {
	tests := []struct {
		name     string
		in       tuning.Logging
		level    zapcore.Level
		encoding string
	}{
		{"defaults", tuning.Logging{}, zapcore.InfoLevel, "console"},
		{"debug console", tuning.Logging{Level: "debug", Format: "console"}, zapcore.DebugLevel, "console"},
		{"warn json", tuning.Logging{Level: "WARN", Format: "JSON"}, zapcore.WarnLevel, "json"},
		{"bad level", tuning.Logging{Level: "loud"}, zapcore.InfoLevel, "console"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config(tt.in)
			if got := cfg.Level.Level(); got != tt.level {
				t.Fatalf("level: got %v want %v", got, tt.level)
			}
			if cfg.Encoding != tt.encoding {
				t.Fatalf("encoding: got %q want %q", cfg.Encoding, tt.encoding)
			}
		})
	}
}

func TestNew_Builds(t *testing.T) {
	l, err := New(tuning.Logging{Level: "error", Format: "json"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if l.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("info should be disabled at error level")
	}
	_ = l.Sync()
}
