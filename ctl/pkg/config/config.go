package config

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/viper"
	"github.com/thinkparq/ibackup-go/common/backup"
	"github.com/thinkparq/ibackup-go/common/logger"
	"go.uber.org/zap"
)

// This package is the backend side of the global configuration. The frontend (ctl/internal/config)
// defines the flags and binds them to viper, everything here only reads viper. This means the
// backend can also be configured directly using viper when used as a library.

// Viper keys for the global configuration.
const (
	BackupRootKey    = "backup-root"
	DeviceKey        = "device"
	VerifyKeysKey    = "verify-keys"
	ConfigFileKey    = "config"
	DebugKey         = "debug"
	RawKey           = "raw"
	NumWorkersKey    = "num-workers"
	LogLevelKey      = "log-level"
	LogFileKey       = "log-file"
	LogDeveloperKey  = "log-developer"
	ColumnsKey       = "columns"
	PageSizeKey      = "page-size"
	OutputKey        = "output"
	DisableEmojisKey = "disable-emojis"
)

type OutputType string

const (
	OutputTable      OutputType = "table"
	OutputJSON       OutputType = "json"
	OutputJSONPretty OutputType = "json-pretty"
	OutputNDJSON     OutputType = "ndjson"
)

func (o OutputType) String() string {
	return string(o)
}

func OutputTypes() []OutputType {
	return []OutputType{OutputTable, OutputJSON, OutputJSONPretty, OutputNDJSON}
}

var (
	mu      sync.Mutex
	log     *logger.Logger
	session *backup.Session
)

// GetLogger returns the global logger, initializing it from the configuration on first use. If the
// logger cannot be initialized a no-op logger is returned along with the error so callers that do
// not care can ignore it.
func GetLogger() (*zap.Logger, error) {
	mu.Lock()
	defer mu.Unlock()
	if log != nil {
		return log.Logger, nil
	}
	cfg := logger.Config{
		Type:      string(logger.StdErr),
		Level:     int8(viper.GetInt(LogLevelKey)),
		Developer: viper.GetBool(LogDeveloperKey),
	}
	if file := viper.GetString(LogFileKey); file != "" {
		cfg.Type = string(logger.LogFile)
		cfg.File = file
		cfg.MaxSize = 100
		cfg.NumRotatedFiles = 3
	}
	l, err := logger.New(cfg)
	if err != nil {
		return zap.NewNop(), fmt.Errorf("unable to initialize logger: %w", err)
	}
	log = l
	return log.Logger, nil
}

// KeyPolicy returns the key policy selected by the configuration.
func KeyPolicy() backup.KeyPolicy {
	if viper.GetBool(VerifyKeysKey) {
		return backup.KeyPolicyVerify
	}
	return backup.KeyPolicyTrustManifest
}

// BackupRoot returns an unselected session on the configured backup root. It is not cached, use it
// for commands that only enumerate devices.
func BackupRoot() (*backup.Session, error) {
	l, _ := GetLogger()
	return backup.NewSession(viper.GetString(BackupRootKey),
		backup.WithLogger(l),
		backup.WithSessionKeyPolicy(KeyPolicy()),
	)
}

// BackupSession returns the global session with a device selected. The configured device is used
// if set, otherwise the device with the most recent backup. The session is initialized once and
// shared by subsequent calls.
func BackupSession(ctx context.Context) (*backup.Session, error) {
	mu.Lock()
	if session != nil {
		defer mu.Unlock()
		return session, nil
	}
	mu.Unlock()

	s, err := BackupRoot()
	if err != nil {
		return nil, err
	}
	if id := viper.GetString(DeviceKey); id != "" {
		_, err = s.SelectDevice(ctx, id)
	} else {
		_, err = s.SelectLatest(ctx)
		if errors.Is(err, backup.ErrNoDeviceSelected) {
			err = fmt.Errorf("no device backups found in %q: %w", s.Root(), err)
		}
	}
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	if session == nil {
		session = s
	}
	return session, nil
}

// Cleanup releases global resources and resets the cached session. It should be called before the
// application exits.
func Cleanup() {
	mu.Lock()
	defer mu.Unlock()
	session = nil
	if log != nil {
		_ = log.Sync()
		log = nil
	}
}
