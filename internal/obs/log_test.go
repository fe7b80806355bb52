package obs

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLoggerLevels(t *testing.T) {
	cases := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"WARN", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tc := range cases {
		logger, err := NewLogger(tc.level)
		if err != nil {
			t.Fatalf("NewLogger(%q): %v", tc.level, err)
		}
		if !logger.Core().Enabled(tc.want) {
			t.Fatalf("NewLogger(%q): level %s disabled", tc.level, tc.want)
		}
		if tc.want > zapcore.DebugLevel && logger.Core().Enabled(tc.want-1) {
			t.Fatalf("NewLogger(%q): level below %s unexpectedly enabled", tc.level, tc.want)
		}
		_ = logger.Sync()
	}
}
