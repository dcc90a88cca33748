package stats

import (
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thinkparq/ibackup-go/common/backup"
	"github.com/thinkparq/ibackup-go/common/backup/backuptest"
	"github.com/thinkparq/ibackup-go/ctl/pkg/config"
)

func TestUsage(t *testing.T) {
	root := t.TempDir()
	b := backuptest.Pages("aaaa")
	b.Files = append(b.Files,
		backuptest.File{Domain: "CameraRollDomain", RelativePath: "Media/DCIM/IMG_0001.HEIC", Content: make([]byte, 100)},
		backuptest.File{Domain: "CameraRollDomain", RelativePath: "Media/DCIM/IMG_0002.HEIC", Content: make([]byte, 50)},
	)
	backuptest.Write(t, root, b)
	viper.Set(config.BackupRootKey, root)
	t.Cleanup(func() {
		config.Cleanup()
		viper.Reset()
	})

	tests := []struct {
		name    string
		cfg     UsageCfg
		domains []string
		total   backup.DomainUsage
	}{
		{
			name:    "by domain",
			cfg:     UsageCfg{},
			domains: []string{"AppDomain-com.apple.Pages", "CameraRollDomain", "HomeDomain"},
			total:   backup.DomainUsage{Files: 6, Directories: 1, Bytes: 35 + 150 + 11},
		},
		{
			name:    "by size",
			cfg:     UsageCfg{SortBy: SortBySize},
			domains: []string{"CameraRollDomain", "AppDomain-com.apple.Pages", "HomeDomain"},
			total:   backup.DomainUsage{Files: 6, Directories: 1, Bytes: 196},
		},
		{
			name:    "by files",
			cfg:     UsageCfg{SortBy: SortByFiles},
			domains: []string{"AppDomain-com.apple.Pages", "CameraRollDomain", "HomeDomain"},
			total:   backup.DomainUsage{Files: 6, Directories: 1, Bytes: 196},
		},
		{
			name:    "filtered",
			cfg:     UsageCfg{Domain: "Camera"},
			domains: []string{"CameraRollDomain"},
			total:   backup.DomainUsage{Files: 2, Bytes: 150},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Usage(context.Background(), tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, "aaaa", result.Device.ID)
			var domains []string
			for _, d := range result.Domains {
				domains = append(domains, d.Domain)
			}
			assert.Equal(t, tt.domains, domains)
			assert.Equal(t, tt.total, result.Total)
		})
	}
}
