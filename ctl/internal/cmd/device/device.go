package device

import (
	"github.com/spf13/cobra"
)

func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Query the device backups below the backup root",
		Args:  cobra.NoArgs,
	}
	cmd.AddCommand(newListCmd(), newInfoCmd())
	return cmd
}
