package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/thinkparq/ibackup-go/common/filesystem"
	"go.uber.org/zap"
)

const (
	manifestDBName   = "Manifest.db"
	manifestMBDBName = "Manifest.mbdb"
)

// Device is one backup instance found under a backup root.
type Device struct {
	// The device identifier (UDID), also the name of the backup directory.
	ID string `yaml:"id"`
	// The backup root the device directory lives in.
	Root string     `yaml:"root"`
	Info DeviceInfo `yaml:"info"`
	// Modification time of the newest manifest file, used when the plists carry no backup date.
	manifestModTime time.Time
}

// Path is the device backup directory.
func (d Device) Path() string {
	return filepath.Join(d.Root, d.ID)
}

// BackupTime is the best known time the backup was last updated.
func (d Device) BackupTime() time.Time {
	if !d.Info.LastBackup.IsZero() {
		return d.Info.LastBackup
	}
	return d.manifestModTime
}

// ListDevices enumerates the device backups under root on the host filesystem.
func ListDevices(ctx context.Context, root string) ([]Device, error) {
	return listDevices(ctx, filesystem.OsFs(), root, zap.NewNop())
}

// listDevices returns every subdirectory of root that contains a manifest, in the order the
// filesystem lists them. Callers must not rely on that order being stable across platforms.
func listDevices(ctx context.Context, fsys afero.Fs, root string, log *zap.Logger) ([]Device, error) {
	if err := checkRoot(fsys, root); err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(fsys, root)
	if err != nil {
		return nil, &NotFoundError{Path: root, Err: err}
	}

	devices := make([]Device, 0, len(infos))
	for _, fi := range infos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := fi.Name()
		if !fi.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		device, ok, err := inspectDevice(fsys, root, name, log)
		if err != nil {
			return nil, err
		}
		if !ok {
			log.Debug("skipping directory without a manifest", zap.String("path", filepath.Join(root, name)))
			continue
		}
		devices = append(devices, device)
	}
	return devices, nil
}

// inspectDevice returns ok=false if the directory does not look like a device backup.
func inspectDevice(fsys afero.Fs, root string, id string, log *zap.Logger) (Device, bool, error) {
	device := Device{ID: id, Root: root}
	found := false
	for _, name := range []string{manifestDBName, manifestMBDBName, manifestPlistName} {
		fi, err := fsys.Stat(filepath.Join(device.Path(), name))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return device, false, fmt.Errorf("unable to examine %q: %w", device.Path(), err)
		}
		found = true
		if fi.ModTime().After(device.manifestModTime) {
			device.manifestModTime = fi.ModTime()
		}
	}
	if !found {
		return device, false, nil
	}

	info, errs := readDeviceInfo(fsys, device.Path())
	for _, err := range errs {
		log.Warn("unable to read device info", zap.String("device", id), zap.Error(err))
	}
	device.Info = info
	return device, true, nil
}

func checkRoot(fsys afero.Fs, root string) error {
	if root == "" {
		return &NotFoundError{Path: root, Err: errors.New("backup root must not be empty")}
	}
	fi, err := fsys.Stat(root)
	if err != nil {
		return &NotFoundError{Path: root, Err: err}
	}
	if !fi.IsDir() {
		return &NotFoundError{Path: root, Err: errors.New("not a directory")}
	}
	return nil
}

// findDevice enumerates root and returns the device with the given ID.
func findDevice(ctx context.Context, fsys afero.Fs, root string, id string, log *zap.Logger) (Device, error) {
	devices, err := listDevices(ctx, fsys, root, log)
	if err != nil {
		return Device{}, err
	}
	for _, d := range devices {
		if d.ID == id {
			return d, nil
		}
	}
	return Device{}, &DeviceNotFoundError{DeviceID: id, Root: root}
}

// latestDevice returns the device with the most recent backup.
func latestDevice(devices []Device) (Device, bool) {
	if len(devices) == 0 {
		return Device{}, false
	}
	latest := devices[0]
	for _, d := range devices[1:] {
		if d.BackupTime().After(latest.BackupTime()) {
			latest = d
		}
	}
	return latest, true
}

var metadataFiles = map[string]struct{}{
	manifestDBName:              {},
	manifestDBName + "-wal":     {},
	manifestDBName + "-shm":     {},
	manifestDBName + "-journal": {},
	manifestMBDBName:            {},
	manifestPlistName:           {},
	infoPlistName:               {},
	statusPlistName:             {},
}

// IsMetadataFile reports whether name is one of the files at the top of a device directory that
// describe the backup rather than hold file contents.
func IsMetadataFile(name string) bool {
	_, ok := metadataFiles[name]
	return ok
}
