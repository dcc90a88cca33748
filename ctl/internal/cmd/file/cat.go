package file

import (
	"github.com/spf13/cobra"
	"github.com/thinkparq/ibackup-go/ctl/pkg/config"
	"github.com/thinkparq/ibackup-go/ctl/pkg/ctl/file"
	"go.uber.org/zap"
)

func newCatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cat <app> <relative-path>",
		Short: "Write the contents of a file to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatCmd(cmd, args[0], args[1])
		},
	}
	return cmd
}

func runCatCmd(cmd *cobra.Command, appID string, relativePath string) error {
	log, _ := config.GetLogger()
	n, err := file.Cat(cmd.Context(), appID, relativePath, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	log.Debug("wrote file contents", zap.String("app", appID), zap.String("path", relativePath), zap.Int64("bytes", n))
	return nil
}
