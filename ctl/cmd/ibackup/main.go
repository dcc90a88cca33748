package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/thinkparq/ibackup-go/ctl/internal/cmd/app"
	"github.com/thinkparq/ibackup-go/ctl/internal/cmd/blob"
	"github.com/thinkparq/ibackup-go/ctl/internal/cmd/device"
	"github.com/thinkparq/ibackup-go/ctl/internal/cmd/file"
	"github.com/thinkparq/ibackup-go/ctl/internal/cmd/stats"
	"github.com/thinkparq/ibackup-go/ctl/internal/config"
	"github.com/thinkparq/ibackup-go/ctl/internal/util"
)

// Set by the build process using ldflags.
var (
	binaryName = "ibackup"
	version    = "unknown"
	commit     = "unknown"
	buildTime  = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	root := newRootCmd()
	err := root.ExecuteContext(ctx)
	config.Cleanup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	cancel()
	os.Exit(int(util.ExitCode(err)))
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   binaryName,
		Short: "Read iTunes and Finder device backups",
		Long: `Read iTunes and Finder device backups.

Device backups are located below the backup root, one directory per device. Files are looked up
through the manifest of the selected device and read from the blob store of the backup without
ever modifying it.

Configuration is merged using the following precedence order (highest->lowest): (1) flags
(2) environment variables prefixed with IBACKUP_ (3) the file set using --config (4) defaults.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ReadConfigFile(); err != nil {
				return err
			}
			return config.ValidateGlobalFlags()
		},
	}
	config.InitGlobalFlags(cmd)
	cmd.AddCommand(
		device.NewCmd(),
		app.NewCmd(),
		file.NewCmd(),
		blob.NewCmd(),
		stats.NewCmd(),
	)
	return cmd
}
