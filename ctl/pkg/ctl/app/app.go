package app

import (
	"context"
	"slices"
	"strings"

	"github.com/thinkparq/ibackup-go/common/backup"
	"github.com/thinkparq/ibackup-go/ctl/pkg/config"
)

const appDomainPrefix = "AppDomain-"

type AppInfo struct {
	AppID  string
	Domain string
	// Installed is set if the device listed the application as installed when the backup was
	// taken. Data of removed applications may still be present.
	Installed bool
	Files     int
	Bytes     int64
}

type ListCfg struct {
	// Include installed applications that have no files in the backup.
	WithoutData bool
}

// List returns the applications of the selected device sorted by application ID.
func List(ctx context.Context, cfg ListCfg) ([]AppInfo, error) {
	s, err := config.BackupSession(ctx)
	if err != nil {
		return nil, err
	}
	m, err := s.Manifest()
	if err != nil {
		return nil, err
	}
	installed := m.Device().Info.Apps

	apps := []AppInfo{}
	seen := map[string]struct{}{}
	for _, u := range m.Usage() {
		if !strings.HasPrefix(u.Domain, appDomainPrefix) {
			continue
		}
		id := backup.AppID(u.Domain)
		seen[id] = struct{}{}
		apps = append(apps, AppInfo{
			AppID:     id,
			Domain:    u.Domain,
			Installed: slices.Contains(installed, id),
			Files:     u.Files,
			Bytes:     u.Bytes,
		})
	}
	if cfg.WithoutData {
		for _, id := range installed {
			if _, ok := seen[id]; ok {
				continue
			}
			apps = append(apps, AppInfo{AppID: id, Domain: backup.AppDomain(id), Installed: true})
		}
	}
	slices.SortFunc(apps, func(a, b AppInfo) int {
		return strings.Compare(a.AppID, b.AppID)
	})
	return apps, nil
}

// Tree returns the file hierarchy of an application or any other domain.
func Tree(ctx context.Context, appID string) (*backup.TreeNode, error) {
	s, err := config.BackupSession(ctx)
	if err != nil {
		return nil, err
	}
	m, err := s.Manifest()
	if err != nil {
		return nil, err
	}
	return m.Tree(appID)
}
