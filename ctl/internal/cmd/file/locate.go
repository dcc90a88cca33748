package file

import (
	"github.com/spf13/cobra"
	"github.com/thinkparq/ibackup-go/ctl/internal/cmdfmt"
	"github.com/thinkparq/ibackup-go/ctl/pkg/ctl/file"
)

func newLocateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locate <app> <relative-path>",
		Short: "Print the storage key and blob location of a file",
		Long: `Print the storage key and blob location of a file.

The application can be given as a bundle identifier (com.apple.Pages) or as a domain
(AppDomain-com.apple.Pages, HomeDomain, ...). The relative path is matched exactly and is case
sensitive.`,
		Example: `  ibackup file locate com.apple.Pages Documents/notes.txt`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocateCmd(cmd, args[0], args[1])
		},
	}
	return cmd
}

func runLocateCmd(cmd *cobra.Command, appID string, relativePath string) error {
	result, err := file.Locate(cmd.Context(), appID, relativePath)
	if err != nil {
		return err
	}
	tbl := cmdfmt.NewPrintomatic([]string{"domain", "path", "key", "blob"}, []string{"key", "blob"})
	tbl.AddItem(result.Entry.Domain, result.Entry.RelativePath, result.Entry.Key.String(), result.Path.String())
	tbl.PrintRemaining()
	return nil
}
