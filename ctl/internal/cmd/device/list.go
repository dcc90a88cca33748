package device

import (
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/thinkparq/ibackup-go/ctl/internal/cmdfmt"
	"github.com/thinkparq/ibackup-go/ctl/pkg/config"
	"github.com/thinkparq/ibackup-go/ctl/pkg/ctl/device"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all device backups",
		Long: `List all device backups below the backup root.

A directory is considered a device backup if it contains a Manifest.db, Manifest.mbdb or
Manifest.plist. The most recent backup is used by other commands unless --device is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListCmd(cmd)
		},
	}
	return cmd
}

func runListCmd(cmd *cobra.Command) error {
	devices, err := device.List(cmd.Context())
	if err != nil {
		return err
	}

	allColumns := []string{"id", "name", "product", "version", "last_backup", "encrypted", "apps", "path"}
	defaultColumns := []string{"id", "name", "product", "version", "last_backup"}
	if viper.GetBool(config.DebugKey) {
		defaultColumns = allColumns
	}
	tbl := cmdfmt.NewPrintomatic(allColumns, defaultColumns)
	for _, d := range devices {
		tbl.AddItem(
			d.ID,
			d.Info.Name,
			d.Info.ProductType,
			d.Info.ProductVersion,
			cmdfmt.FormatTime(d.BackupTime()),
			strconv.FormatBool(d.Info.Encrypted),
			len(d.Info.Apps),
			d.Path(),
		)
	}
	tbl.PrintRemaining()
	if len(devices) == 0 {
		cmdfmt.Printf("No device backups found.\n")
	}
	return nil
}
