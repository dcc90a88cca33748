package blob

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/thinkparq/ibackup-go/common/backup"
	"github.com/thinkparq/ibackup-go/ctl/internal/cmdfmt"
	"github.com/thinkparq/ibackup-go/ctl/internal/util"
	"github.com/thinkparq/ibackup-go/ctl/pkg/ctl/blob"
)

func newVerifyCmd() *cobra.Command {
	cfg := blob.VerifyCfg{}
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check every file recorded by the manifest has a blob",
		Long: `Check every file recorded by the manifest has a blob.

Files whose blob is missing are always reported. Optionally the device directory is also walked to
find blobs that no manifest entry refers to (--orphans) and blobs whose size differs from the size
recorded by the manifest (--sizes). The backup is never modified.

The command exits with a partial success exit code if any blob is missing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerifyCmd(cmd, cfg)
		},
	}
	cmd.Flags().BoolVar(&cfg.Orphans, "orphans", false, "Also report blobs that are not referenced by the manifest.")
	cmd.Flags().BoolVar(&cfg.Sizes, "sizes", false, "Also report blobs whose size does not match the manifest.")
	return cmd
}

func runVerifyCmd(cmd *cobra.Command, cfg blob.VerifyCfg) error {
	results, wait, err := blob.Verify(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	counts := map[blob.Problem]int{}
	tbl := cmdfmt.NewPrintomatic(
		[]string{"problem", "key", "blob", "size", "entries"},
		[]string{"problem", "blob", "size", "entries"},
	)
	for res := range results {
		counts[res.Problem]++
		tbl.AddItem(res.Problem, res.Key.String(), res.Path, cmdfmt.FormatBytes(res.Size), entryNames(res.Entries))
	}
	tbl.PrintRemaining()

	if err := wait(); err != nil {
		return err
	}
	cmdfmt.Printf("Summary: %d missing | %d orphaned | %d size mismatches\n",
		counts[blob.Missing], counts[blob.Orphaned], counts[blob.SizeMismatch])
	if counts[blob.Missing] != 0 {
		return util.NewCtlError(fmt.Errorf("%d blobs are missing", counts[blob.Missing]), util.PartialSuccess)
	}
	return nil
}

func entryNames(entries []backup.Entry) string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, backup.Identity(e.Domain, e.RelativePath))
	}
	return strings.Join(names, ",")
}
