package device

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/thinkparq/ibackup-go/common/backup"
	"github.com/thinkparq/ibackup-go/ctl/pkg/config"
	"github.com/thinkparq/ibackup-go/ctl/pkg/ctl/device"
	"gopkg.in/yaml.v3"
)

type infoView struct {
	ID       string            `yaml:"id" json:"id"`
	Path     string            `yaml:"path" json:"path"`
	Info     backup.DeviceInfo `yaml:",inline" json:"info"`
	Manifest manifestView      `yaml:"manifest" json:"manifest"`
}

type manifestView struct {
	Path       string `yaml:"path" json:"path"`
	Schema     string `yaml:"schema" json:"schema"`
	Entries    int    `yaml:"entries" json:"entries"`
	Domains    int    `yaml:"domains" json:"domains"`
	AppDomains int    `yaml:"appDomains" json:"appDomains"`
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info [<udid>]",
		Short: "Print details about a device backup",
		Long: `Print details about a device backup and its manifest.

If no device is specified the device selected by --device is used, or the device with the most
recent backup. The manifest is loaded completely, so this also checks it can be read.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return runInfoCmd(cmd, id)
		},
	}
	return cmd
}

func runInfoCmd(cmd *cobra.Command, id string) error {
	details, err := device.Info(cmd.Context(), id)
	if err != nil {
		return err
	}
	view := infoView{
		ID:   details.Device.ID,
		Path: details.Device.Path(),
		Info: details.Device.Info,
		Manifest: manifestView{
			Path:       details.ManifestPath,
			Schema:     details.Schema.String(),
			Entries:    details.Entries,
			Domains:    details.Domains,
			AppDomains: details.AppDomains,
		},
	}

	var out []byte
	switch config.OutputType(viper.GetString(config.OutputKey)) {
	case config.OutputJSON, config.OutputNDJSON:
		out, err = json.Marshal(view)
	case config.OutputJSONPretty:
		out, err = json.MarshalIndent(view, "", "  ")
	default:
		out, err = yaml.Marshal(view)
	}
	if err != nil {
		return fmt.Errorf("unable to marshal device info: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
