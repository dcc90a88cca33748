package file

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/thinkparq/ibackup-go/ctl/internal/cmdfmt"
	"github.com/thinkparq/ibackup-go/ctl/internal/util"
	"github.com/thinkparq/ibackup-go/ctl/pkg/config"
	"github.com/thinkparq/ibackup-go/ctl/pkg/ctl/file"
)

type exportConfig struct {
	verbose bool
}

func newExportCmd() *cobra.Command {
	frontendCfg := exportConfig{}
	backendCfg := file.ExportCfg{}

	cmd := &cobra.Command{
		Use:   "export <dest>",
		Short: "Copy files out of the selected device backup",
		Long: `Copy files out of the selected device backup.

Each selected file is written to <dest>/<domain>/<relative path>. Files are copied in parallel using
up to --num-workers workers. The backup itself is never modified. Files already present below
<dest> are skipped unless --overwrite is set.

Files whose blob is missing from the backup are reported and the command exits with a partial
success exit code once all other files were exported.`,
		Example: `  ibackup file export ./pages --app com.apple.Pages
  ibackup file export ./photos --domain CameraRollDomain --glob 'Media/DCIM/**'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backendCfg.Dest = args[0]
			frontendCfg.verbose = frontendCfg.verbose || viper.GetBool(config.DebugKey)
			return runExportCmd(cmd, frontendCfg, backendCfg)
		},
	}
	addQueryFlags(cmd, &backendCfg.QueryCfg, false)
	cmd.Flags().BoolVar(&backendCfg.Overwrite, "overwrite", false, "Replace files that already exist below the destination.")
	cmd.Flags().BoolVar(&backendCfg.PreserveTimes, "preserve-times", true, "Set the modification time of exported files to the one recorded by the backup.")
	cmd.Flags().BoolVar(&backendCfg.DryRun, "dry-run", false, "Print what would be exported without writing anything.")
	cmd.Flags().BoolVar(&frontendCfg.verbose, "verbose", false, "Print a result for each exported or skipped file (errors are always printed).")
	return cmd
}

func runExportCmd(cmd *cobra.Command, frontendCfg exportConfig, backendCfg file.ExportCfg) error {
	results, wait, err := file.Export(cmd.Context(), backendCfg)
	if err != nil {
		return err
	}

	var total, exported, skipped, missing, errs int
	var bytes int64

	tbl := cmdfmt.NewPrintomatic(
		[]string{"result", "domain", "path", "size", "dest", "message"},
		[]string{"result", "domain", "path", "message"},
	)
	for res := range results {
		total++
		e := res.Entry
		switch {
		case res.Missing():
			missing++
			tbl.AddItem("missing", e.Domain, e.RelativePath, cmdfmt.FormatBytes(e.Size), res.Dest, res.Err.Error())
		case res.Err != nil:
			errs++
			tbl.AddItem("error", e.Domain, e.RelativePath, cmdfmt.FormatBytes(e.Size), res.Dest, res.Err.Error())
		case res.Skipped:
			skipped++
			if frontendCfg.verbose {
				tbl.AddItem("skipped", e.Domain, e.RelativePath, cmdfmt.FormatBytes(e.Size), res.Dest, "destination exists")
			}
		default:
			exported++
			bytes += res.Bytes
			if frontendCfg.verbose || backendCfg.DryRun {
				action := "exported"
				if backendCfg.DryRun {
					action = "would export"
				}
				tbl.AddItem(action, e.Domain, e.RelativePath, cmdfmt.FormatBytes(e.Size), res.Dest, "")
			}
		}
	}
	tbl.PrintRemaining()

	if err := wait(); err != nil {
		return err
	}
	cmdfmt.Printf("Summary: %d files | %d exported (%s) | %d skipped | %d missing | %d errors\n",
		total, exported, cmdfmt.FormatBytes(bytes), skipped, missing, errs)
	if total == 0 {
		cmdfmt.Printf("No matching files found.\n")
	}
	if missing+errs != 0 {
		return util.NewCtlError(fmt.Errorf("%d of %d files could not be exported", missing+errs, total), util.PartialSuccess)
	}
	return nil
}
