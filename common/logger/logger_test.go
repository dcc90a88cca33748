package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLogTypeFromString(t *testing.T) {
	tests := []struct {
		input   string
		want    LogType
		wantErr bool
	}{
		{"stderr", StdErr, false},
		{"STDOUT", StdOut, false},
		{" logfile ", LogFile, false},
		{"", StdErr, false},
		{"syslog", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := LogTypeFromString(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevelFromInt(t *testing.T) {
	assert.Equal(t, zapcore.FatalLevel, levelFromInt(-1))
	assert.Equal(t, zapcore.FatalLevel, levelFromInt(0))
	assert.Equal(t, zapcore.ErrorLevel, levelFromInt(1))
	assert.Equal(t, zapcore.WarnLevel, levelFromInt(2))
	assert.Equal(t, zapcore.InfoLevel, levelFromInt(3))
	assert.Equal(t, zapcore.DebugLevel, levelFromInt(4))
	assert.Equal(t, zapcore.DebugLevel, levelFromInt(5))
}

func TestNewLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ibackup.log")
	l, err := New(Config{Type: "logfile", File: path, Level: 3, MaxSize: 1, NumRotatedFiles: 1})
	require.NoError(t, err)

	l.Info("device selected", zap.String("device", "abc"))
	l.Debug("filtered out")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"device selected"`)
	assert.Contains(t, string(data), `"device":"abc"`)
	assert.NotContains(t, string(data), "filtered out")
}

func TestNewInvalid(t *testing.T) {
	_, err := New(Config{Type: "logfile"})
	assert.Error(t, err)
	_, err = New(Config{Type: "carrier-pigeon"})
	assert.Error(t, err)

	l, err := New(Config{Developer: true, Type: "carrier-pigeon"})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}
