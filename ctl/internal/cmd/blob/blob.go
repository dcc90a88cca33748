package blob

import (
	"github.com/spf13/cobra"
)

func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blob",
		Short: "Check the blobs of the selected device backup",
		Args:  cobra.NoArgs,
	}
	cmd.AddCommand(newVerifyCmd())
	return cmd
}
