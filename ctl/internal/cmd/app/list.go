package app

import (
	"strconv"

	"github.com/spf13/cobra"
	"github.com/thinkparq/ibackup-go/ctl/internal/cmdfmt"
	"github.com/thinkparq/ibackup-go/ctl/pkg/ctl/app"
)

func newListCmd() *cobra.Command {
	cfg := app.ListCfg{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List applications with data in the backup",
		Long: `List applications with data in the backup.

Applications are identified by their bundle identifier (for example com.apple.Pages). Their files
are stored in the AppDomain-<bundle identifier> domain. An application that is not marked as
installed was removed from the device but its data is still part of the backup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListCmd(cmd, cfg)
		},
	}
	cmd.Flags().BoolVar(&cfg.WithoutData, "all", false, "Also list installed applications without any files in the backup.")
	return cmd
}

func runListCmd(cmd *cobra.Command, cfg app.ListCfg) error {
	apps, err := app.List(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	tbl := cmdfmt.NewPrintomatic(
		[]string{"app", "installed", "files", "size", "domain"},
		[]string{"app", "installed", "files", "size"},
	)
	for _, a := range apps {
		tbl.AddItem(a.AppID, strconv.FormatBool(a.Installed), a.Files, cmdfmt.FormatBytes(a.Bytes), a.Domain)
	}
	tbl.PrintRemaining()
	return nil
}
