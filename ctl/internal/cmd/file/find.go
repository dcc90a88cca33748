package file

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/thinkparq/ibackup-go/ctl/internal/cmdfmt"
	"github.com/thinkparq/ibackup-go/ctl/pkg/config"
	"github.com/thinkparq/ibackup-go/ctl/pkg/ctl/file"
)

func newFindCmd() *cobra.Command {
	cfg := file.FindCfg{}
	cmd := &cobra.Command{
		Use:   "find",
		Short: "Find entries in the manifest of the selected device",
		Long: `Find entries in the manifest of the selected device.

All conditions must match for an entry to be printed. Results are sorted by domain then relative
path. With --resolve the location of each file's blob is printed as well. Resolving fails on the
first file whose blob is missing, use "blob verify" to list all of them.`,
		Example: `  ibackup file find --app com.apple.Pages --glob 'Documents/**'
  ibackup file find --domain CameraRoll --filter "size > 10MiB and mtime < 30d"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFindCmd(cmd, cfg)
		},
	}
	addQueryFlags(cmd, &cfg.QueryCfg, true)
	cmd.Flags().BoolVar(&cfg.Resolve, "resolve", false, "Print the path each file is stored at (only files can be resolved).")
	return cmd
}

func runFindCmd(cmd *cobra.Command, cfg file.FindCfg) error {
	results, err := file.Find(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	allColumns := []string{"domain", "path", "kind", "size", "mtime", "key", "mode", "uid", "gid", "blob"}
	defaultColumns := []string{"domain", "path", "kind", "size", "mtime"}
	if cfg.Resolve {
		defaultColumns = append(defaultColumns, "blob")
	}
	if viper.GetBool(config.DebugKey) {
		defaultColumns = allColumns
	}
	tbl := cmdfmt.NewPrintomatic(allColumns, defaultColumns)
	for _, r := range results {
		e := r.Entry
		tbl.AddItem(
			e.Domain,
			e.RelativePath,
			e.Kind.String(),
			cmdfmt.FormatBytes(e.Size),
			cmdfmt.FormatTime(e.Modified),
			e.Key.String(),
			fmt.Sprintf("%#o", e.Mode),
			e.UserID,
			e.GroupID,
			r.Path.String(),
		)
	}
	tbl.PrintRemaining()
	if len(results) == 0 {
		cmdfmt.Printf("No matching entries found.\n")
	}
	return nil
}
