package device

import (
	"context"
	"fmt"

	"github.com/thinkparq/ibackup-go/common/backup"
	"github.com/thinkparq/ibackup-go/ctl/pkg/config"
)

// List returns all device backups below the configured backup root.
func List(ctx context.Context) ([]backup.Device, error) {
	s, err := config.BackupRoot()
	if err != nil {
		return nil, err
	}
	return s.ListDevices(ctx)
}

type Details struct {
	Device       backup.Device
	Schema       backup.SchemaVersion
	ManifestPath string
	Entries      int
	Domains      int
	// Number of domains belonging to applications.
	AppDomains int
}

// Info loads the manifest of a device and summarizes it. If id is empty the configured or latest
// device is used.
func Info(ctx context.Context, id string) (Details, error) {
	var (
		s   *backup.Session
		err error
	)
	if id == "" {
		s, err = config.BackupSession(ctx)
	} else {
		s, err = config.BackupRoot()
		if err == nil {
			_, err = s.SelectDevice(ctx, id)
		}
	}
	if err != nil {
		return Details{}, err
	}

	m, err := s.Manifest()
	if err != nil {
		return Details{}, fmt.Errorf("unable to get manifest: %w", err)
	}
	details := Details{
		Device:       m.Device(),
		Schema:       m.Schema(),
		ManifestPath: m.Path(),
		Entries:      m.Len(),
	}
	for _, d := range m.Domains() {
		details.Domains++
		if backup.AppID(d) != d {
			details.AppDomains++
		}
	}
	return details, nil
}
