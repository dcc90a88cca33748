package backup

import (
	"errors"
	"fmt"
)

var (
	ErrEncryptedBackup   = errors.New("backup is encrypted (decryption is not supported)")
	ErrKeyMismatch       = errors.New("storage key recorded in the manifest does not match the recomputed key")
	ErrInvalidStorageKey = errors.New("invalid storage key")
	ErrNoDeviceSelected  = errors.New("no device selected")
)

// NotFoundError is returned when the backup root or a device directory is absent or unreadable.
type NotFoundError struct {
	Path string
	Err  error
}

func (e *NotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backup directory %q not found: %s", e.Path, e.Err)
	}
	return fmt.Sprintf("backup directory %q not found", e.Path)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// DeviceNotFoundError is returned when a requested device ID is not among the devices found under
// the backup root.
type DeviceNotFoundError struct {
	DeviceID string
	Root     string
}

func (e *DeviceNotFoundError) Error() string {
	return fmt.Sprintf("device %q not found in backup root %q", e.DeviceID, e.Root)
}

// CorruptManifestError is returned when a device manifest cannot be read or parsed. Record is the
// zero based index of the offending record, or -1 if the failure is not tied to a record.
type CorruptManifestError struct {
	DeviceID string
	Path     string
	Record   int
	Err      error
}

func (e *CorruptManifestError) Error() string {
	if e.Record >= 0 {
		return fmt.Sprintf("corrupt manifest %q for device %q (record %d): %s", e.Path, e.DeviceID, e.Record, e.Err)
	}
	return fmt.Sprintf("corrupt manifest %q for device %q: %s", e.Path, e.DeviceID, e.Err)
}

func (e *CorruptManifestError) Unwrap() error {
	return e.Err
}

// EntryNotFoundError is returned when no manifest entry exists for a logical file.
type EntryNotFoundError struct {
	DeviceID     string
	Domain       string
	RelativePath string
}

func (e *EntryNotFoundError) Error() string {
	return fmt.Sprintf("no entry for %q in domain %q of device %q", e.RelativePath, e.Domain, e.DeviceID)
}

// BlobMissingError is returned when the manifest references a blob that does not exist in storage.
// Some backups legitimately contain such entries (files never transferred or pruned), they are
// surfaced to the caller rather than skipped.
type BlobMissingError struct {
	DeviceID string
	Key      StorageKey
	Path     PhysicalPath
}

func (e *BlobMissingError) Error() string {
	return fmt.Sprintf("blob %s of device %q is missing from storage (expected at %q)", e.Key, e.DeviceID, e.Path)
}

func corruptManifest(device Device, path string, record int, err error) *CorruptManifestError {
	return &CorruptManifestError{
		DeviceID: device.ID,
		Path:     path,
		Record:   record,
		Err:      err,
	}
}
