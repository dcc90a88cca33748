package backup

import (
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/afero"
	"howett.net/plist"
)

const (
	manifestPlistName = "Manifest.plist"
	infoPlistName     = "Info.plist"
	statusPlistName   = "Status.plist"
)

// manifestPlist is the subset of Manifest.plist this package uses.
type manifestPlist struct {
	Lockdown struct {
		DeviceName     string `plist:"DeviceName"`
		ProductVersion string `plist:"ProductVersion"`
		ProductType    string `plist:"ProductType"`
		SerialNumber   string `plist:"SerialNumber"`
		UniqueDeviceID string `plist:"UniqueDeviceID"`
	} `plist:"Lockdown"`
	IsEncrypted    bool                      `plist:"IsEncrypted"`
	WasPasscodeSet bool                      `plist:"WasPasscodeSet"`
	Date           time.Time                 `plist:"Date"`
	Applications   map[string]map[string]any `plist:"Applications"`
}

// infoPlist is the subset of Info.plist this package uses.
type infoPlist struct {
	DeviceName            string    `plist:"Device Name"`
	ProductVersion        string    `plist:"Product Version"`
	ProductType           string    `plist:"Product Type"`
	SerialNumber          string    `plist:"Serial Number"`
	LastBackupDate        time.Time `plist:"Last Backup Date"`
	InstalledApplications []string  `plist:"Installed Applications"`
}

// statusPlist is the subset of Status.plist this package uses.
type statusPlist struct {
	IsFullBackup  bool      `plist:"IsFullBackup"`
	Version       string    `plist:"Version"`
	SnapshotState string    `plist:"SnapshotState"`
	Date          time.Time `plist:"Date"`
}

func readPlist(fsys afero.Fs, path string, v any) error {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return err
	}
	if _, err := plist.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unable to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// DeviceInfo describes a device backup. All fields are best effort and may be empty if the
// corresponding property lists are missing or unreadable.
type DeviceInfo struct {
	Name           string    `yaml:"name"`
	ProductType    string    `yaml:"productType"`
	ProductVersion string    `yaml:"productVersion"`
	SerialNumber   string    `yaml:"serialNumber"`
	Encrypted      bool      `yaml:"encrypted"`
	PasscodeSet    bool      `yaml:"passcodeSet"`
	FullBackup     bool      `yaml:"fullBackup"`
	BackupVersion  string    `yaml:"backupVersion,omitempty"`
	SnapshotState  string    `yaml:"snapshotState,omitempty"`
	LastBackup     time.Time `yaml:"lastBackup"`
	// Bundle identifiers of the applications installed when the backup was taken.
	Apps []string `yaml:"apps"`
}

// readDeviceInfo merges Manifest.plist, Info.plist and Status.plist. The returned errors are one per
// plist that could not be read; callers decide whether they matter.
func readDeviceInfo(fsys afero.Fs, deviceDir string) (DeviceInfo, []error) {
	var info DeviceInfo
	var errs []error

	var mp manifestPlist
	if err := readPlist(fsys, filepath.Join(deviceDir, manifestPlistName), &mp); err != nil {
		errs = append(errs, err)
	} else {
		info.Name = mp.Lockdown.DeviceName
		info.ProductType = mp.Lockdown.ProductType
		info.ProductVersion = mp.Lockdown.ProductVersion
		info.SerialNumber = mp.Lockdown.SerialNumber
		info.Encrypted = mp.IsEncrypted
		info.PasscodeSet = mp.WasPasscodeSet
		info.LastBackup = mp.Date
	}

	var ip infoPlist
	if err := readPlist(fsys, filepath.Join(deviceDir, infoPlistName), &ip); err != nil {
		errs = append(errs, err)
	} else {
		info.Name = firstNonEmpty(info.Name, ip.DeviceName)
		info.ProductType = firstNonEmpty(info.ProductType, ip.ProductType)
		info.ProductVersion = firstNonEmpty(info.ProductVersion, ip.ProductVersion)
		info.SerialNumber = firstNonEmpty(info.SerialNumber, ip.SerialNumber)
		if !ip.LastBackupDate.IsZero() {
			info.LastBackup = ip.LastBackupDate
		}
		info.Apps = append(info.Apps, ip.InstalledApplications...)
	}

	// Manifest.plist lists applications that may have been uninstalled since but still have data
	// in the backup.
	for app := range mp.Applications {
		if !slices.Contains(info.Apps, app) {
			info.Apps = append(info.Apps, app)
		}
	}
	slices.Sort(info.Apps)

	var sp statusPlist
	if err := readPlist(fsys, filepath.Join(deviceDir, statusPlistName), &sp); err != nil {
		errs = append(errs, err)
	} else {
		info.FullBackup = sp.IsFullBackup
		info.BackupVersion = sp.Version
		info.SnapshotState = sp.SnapshotState
		if info.LastBackup.IsZero() {
			info.LastBackup = sp.Date
		}
	}
	return info, errs
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
