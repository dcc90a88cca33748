package stats

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/thinkparq/ibackup-go/ctl/internal/cmdfmt"
	"github.com/thinkparq/ibackup-go/ctl/pkg/ctl/stats"
)

func NewCmd() *cobra.Command {
	cfg := stats.UsageCfg{}
	var sortBy string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show how the files of the selected device are distributed over domains",
		Long: `Show how the files of the selected device are distributed over domains.

Sizes are the sizes recorded by the manifest and include files whose blob is missing from the
backup. Use --raw to print exact byte counts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch s := stats.SortBy(sortBy); s {
			case stats.SortByDomain, stats.SortBySize, stats.SortByFiles:
				cfg.SortBy = s
			default:
				return fmt.Errorf("unable to sort by %q (valid values: %s, %s, %s)", sortBy, stats.SortByDomain, stats.SortBySize, stats.SortByFiles)
			}
			return runStatsCmd(cmd, cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.Domain, "domain", "", "Only include domains containing this string.")
	cmd.Flags().StringVar(&sortBy, "sort", string(stats.SortByDomain), "Sort domains by domain, size or files.")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, cfg stats.UsageCfg) error {
	result, err := stats.Usage(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	tbl := cmdfmt.NewPrintomatic(
		[]string{"domain", "files", "directories", "symlinks", "size"},
		[]string{"domain", "files", "directories", "size"},
	)
	for _, u := range result.Domains {
		tbl.AddItem(u.Domain, u.Files, u.Directories, u.Symlinks, cmdfmt.FormatBytes(u.Bytes))
	}
	tbl.PrintRemaining()
	cmdfmt.Printf("Summary: device %s | %d domains | %d files | %d directories | %s\n",
		result.Device.ID, len(result.Domains), result.Total.Files, result.Total.Directories, cmdfmt.FormatBytes(result.Total.Bytes))
	return nil
}
