package file

import (
	"github.com/spf13/cobra"
	"github.com/thinkparq/ibackup-go/common/filesystem"
	"github.com/thinkparq/ibackup-go/ctl/pkg/ctl/file"
)

func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file",
		Short: "Find, read and export files of the selected device backup",
		Args:  cobra.NoArgs,
	}
	cmd.AddCommand(newFindCmd(), newLocateCmd(), newCatCmd(), newExportCmd())
	return cmd
}

// addQueryFlags adds the flags used to select entries. Only files are selected by default.
func addQueryFlags(cmd *cobra.Command, cfg *file.QueryCfg, withKind bool) {
	cmd.Flags().StringVar(&cfg.App, "app", "", "Only select files of this application (bundle identifier or domain).")
	cmd.Flags().StringVar(&cfg.Domain, "domain", "", "Only select entries whose domain contains this string.")
	cmd.Flags().StringVar(&cfg.Path, "path", "", "Only select entries whose relative path contains this string.")
	cmd.Flags().StringVar(&cfg.Glob, "glob", "", "Only select entries whose relative path matches this pattern ('**' matches any number of directories).")
	cmd.Flags().StringVar(&cfg.Filter, "filter", "", filesystem.FilterEntriesHelp)
	if withKind {
		cmd.Flags().StringVar(&cfg.Kind, "kind", "file", "Only select entries of this kind (file, directory, symlink, any).")
	}
}
