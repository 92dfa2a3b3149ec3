package process

import (
	"testing"

	"github.com/deno-lib/oned/internal/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestIsBlockedEnv(t *testing.T) {
	tests := []struct {
		key     string
		blocked bool
	}{
		{"LD_PRELOAD", true},
		{"LD_LIBRARY_PATH", true},
		{"ld_audit", true},
		{"DYLD_INSERT_LIBRARIES", true},
		{"IFS", true},
		{"LOCPATH", true},
		{"BASH_ENV", true},
		{"ENV", true},
		{"TERM", false},
		{"PATH", false},
		{"HOME", false},
		{"ENVIRONMENT", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.blocked, IsBlockedEnv(tt.key))
		})
	}
}

func TestSanitizeEnv(t *testing.T) {
	logger, logs := testutil.NewObservedLogger(zapcore.WarnLevel)

	got := SanitizeEnv([]string{"A=1", "LD_PRELOAD=x.so", "BROKEN", "=nokey", "B=two=parts"}, logger)

	assert.Equal(t, []string{"A=1", "B=two=parts"}, got)
	assert.Equal(t, 1, logs.FilterMessage("blocked environment variable").Len())
	assert.Equal(t, 2, logs.FilterMessage("malformed environment variable skipped").Len())
}

func TestSanitizeEnv_Empty(t *testing.T) {
	assert.Nil(t, SanitizeEnv(nil, zap.NewNop()))
}
