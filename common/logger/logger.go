package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogType string

const (
	StdErr  LogType = "stderr"
	StdOut  LogType = "stdout"
	LogFile LogType = "logfile"
)

func LogTypeFromString(s string) (LogType, error) {
	switch t := LogType(strings.ToLower(strings.TrimSpace(s))); t {
	case StdErr, StdOut, LogFile:
		return t, nil
	case "":
		return StdErr, nil
	default:
		return "", fmt.Errorf("unsupported log type %q (valid types: %s, %s, %s)", s, StdErr, StdOut, LogFile)
	}
}

// Config is embedded into application configuration. Levels follow the convention used across all
// tools: 0=Fatal, 1=Error, 2=Warn, 3=Info, 4+5=Debug.
type Config struct {
	Type            string `mapstructure:"type"`
	File            string `mapstructure:"file"`
	Level           int8   `mapstructure:"level"`
	MaxSize         int    `mapstructure:"max-size"`
	NumRotatedFiles int    `mapstructure:"num-rotated-files"`
	// Developer mode logs everything to stdout in a human friendly format with stack traces at warn
	// and above. All other settings are ignored.
	Developer bool `mapstructure:"developer"`
}

// Logger wraps a zap.Logger together with whatever resources need to be released on exit.
type Logger struct {
	*zap.Logger
	rotator *lumberjack.Logger
}

func New(cfg Config) (*Logger, error) {
	if cfg.Developer {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("unable to initialize developer logger: %w", err)
		}
		return &Logger{Logger: l}, nil
	}

	logType, err := LogTypeFromString(cfg.Type)
	if err != nil {
		return nil, err
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var ws zapcore.WriteSyncer
	var encoder zapcore.Encoder
	l := &Logger{}
	switch logType {
	case StdOut:
		ws = zapcore.Lock(os.Stdout)
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	case LogFile:
		if cfg.File == "" {
			return nil, fmt.Errorf("log type is %q but no log file was specified", LogFile)
		}
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("unable to create log directory: %w", err)
		}
		l.rotator = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.NumRotatedFiles,
		}
		ws = zapcore.AddSync(l.rotator)
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	default:
		ws = zapcore.Lock(os.Stderr)
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	l.Logger = zap.New(zapcore.NewCore(encoder, ws, levelFromInt(cfg.Level)), zap.AddCaller())
	return l, nil
}

func levelFromInt(level int8) zapcore.Level {
	switch {
	case level <= 0:
		return zapcore.FatalLevel
	case level == 1:
		return zapcore.ErrorLevel
	case level == 2:
		return zapcore.WarnLevel
	case level == 3:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// Sync flushes buffered log entries and closes the log file if there is one.
func (l *Logger) Sync() error {
	// Syncing stderr/stdout returns EINVAL on some platforms, which is not actionable.
	_ = l.Logger.Sync()
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}
