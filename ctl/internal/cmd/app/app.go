package app

import (
	"github.com/spf13/cobra"
)

func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "app",
		Short: "Query applications with data in the selected device backup",
		Args:  cobra.NoArgs,
	}
	cmd.AddCommand(newListCmd(), newTreeCmd())
	return cmd
}
