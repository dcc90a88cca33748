package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/thinkparq/ibackup-go/ctl/pkg/config"
)

// This package handles the global command line tool config - the global flags, environment
// variable bindings and config file handling.

const envPrefix = "ibackup"

// Defines all the global flags and binds them to the backends config singleton
func InitGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String(config.BackupRootKey, "", `The directory containing one subdirectory per device backup.
	Environment variables ($VAR or %VAR%) and a leading "~" are expanded.
	Defaults to the location used by iTunes/Finder on this platform.`)

	cmd.PersistentFlags().String(config.DeviceKey, "", "The identifier (UDID) of the device backup to use. Defaults to the device with the most recent backup.")

	cmd.PersistentFlags().Bool(config.VerifyKeysKey, false, `Recompute the storage key of every manifest record instead of trusting the key the manifest declares.
	Loading fails if any declared key does not match its recomputed value.`)

	cmd.PersistentFlags().String(config.ConfigFileKey, "", "Read configuration from this file (any format supported by viper, for example YAML or TOML). Flags and environment variables take precedence.")

	cmd.PersistentFlags().Bool(config.DebugKey, false, "Print additional details that are normally hidden.")

	cmd.PersistentFlags().Bool(config.RawKey, false, "Print raw values without SI or IEC prefixes (except durations).")

	cmd.PersistentFlags().Bool(config.DisableEmojisKey, false, "If emojis should be omitted throughout various output.")

	cmd.PersistentFlags().Int(config.NumWorkersKey, runtime.GOMAXPROCS(0), "The maximum number of workers to use when a command can complete work in parallel (default: number of CPUs).")

	cmd.PersistentFlags().Int8(config.LogLevelKey, 0, fmt.Sprintf(`By default all logging is disabled except for fatal errors.
	Optionally additional logging to stderr can be enabled to assist with debugging (0=Fatal, 1=Error, 2=Warn, 3=Info, 4+5=Debug).
	When enabling logging you may wish to set --%s=0 to ensure output and log messages are synchronized.`, config.PageSizeKey))

	cmd.PersistentFlags().String(config.LogFileKey, "", "Write log messages to this file instead of stderr. The file is rotated once it grows beyond 100MB.")

	cmd.PersistentFlags().Bool(config.LogDeveloperKey, false, "Enable logging at DebugLevel and above and print stack traces at WarnLevel and above.")
	cmd.PersistentFlags().MarkHidden(config.LogDeveloperKey)

	cmd.PersistentFlags().StringSlice(config.ColumnsKey, []string{}, `When printing structured data, the columns/fields to include (use 'all' to include everything).`)
	cmd.PersistentFlags().Uint(config.PageSizeKey, 100, `The number of rows/elements to print before output is flushed to stdout.
	When printing using a table, the header will be repeated after printing this many rows (no headers are printed when set to 0).
	If set to 0, rows are written immediately and table columns may not be aligned.`)

	outputTypes := []string{}
	for _, o := range config.OutputTypes() {
		outputTypes = append(outputTypes, o.String())
	}
	cmd.PersistentFlags().String(config.OutputKey, config.OutputTable.String(), fmt.Sprintf(`How output normally rendered using a table should be printed (%s).
	If the number of elements to print is greater than %s multiple JSON lists separated by newlines will be printed (increase %s if needed).
	Alternatively to stream an unknown or large number of elements use %s to print Newline-Delimited JSON.`,
		strings.Join(outputTypes, ", "), config.PageSizeKey, config.PageSizeKey, config.OutputNDJSON))

	// Environment variables should start with IBACKUP_
	viper.SetEnvPrefix(envPrefix)
	// Environment variables cannot use "-", replace with "_"
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// Bind all persistent pflags to viper
	cmd.PersistentFlags().VisitAll(func(flag *pflag.Flag) {
		viper.BindEnv(flag.Name)
		viper.BindPFlag(flag.Name, flag)
	})
}

// ReadConfigFile merges the file set using the config flag (if any) into the configuration.
// Values from the file have lower precedence than flags and environment variables.
func ReadConfigFile() error {
	path := viper.GetString(config.ConfigFileKey)
	if path == "" {
		return nil
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("unable to read configuration file: %w", err)
	}
	return nil
}

// ValidateGlobalFlags checks values that cannot be validated by pflag itself.
func ValidateGlobalFlags() error {
	output := config.OutputType(viper.GetString(config.OutputKey))
	for _, o := range config.OutputTypes() {
		if o == output {
			return nil
		}
	}
	return fmt.Errorf("unsupported output type %q", output)
}

func Cleanup() {
	config.Cleanup()
}
