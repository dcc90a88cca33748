// Package backuptest writes small device backups for tests of packages built on top of backup.
package backuptest

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/thinkparq/ibackup-go/common/backup"
	"howett.net/plist"
)

const (
	modeFile = 0o100644
	modeDir  = 0o040755
)

// ModTime is recorded for every entry written.
var ModTime = time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

type File struct {
	Domain       string
	RelativePath string
	Content      []byte
	Dir          bool
	// NoBlob skips writing the blob so the entry is missing on disk.
	NoBlob bool
}

func (f File) Key() backup.StorageKey {
	return backup.ComputeStorageKey(f.Domain, f.RelativePath)
}

type Backup struct {
	ID    string
	Name  string
	Apps  []string
	Date  time.Time
	Files []File
}

// Pages returns a backup of an iPhone with Pages documents, a home domain preference and one
// file whose blob is missing.
func Pages(id string) Backup {
	return Backup{
		ID:   id,
		Name: "Test iPhone",
		Apps: []string{"com.apple.Pages", "com.example.Game"},
		Date: ModTime,
		Files: []File{
			{Domain: "AppDomain-com.apple.Pages", RelativePath: "Documents", Dir: true},
			{Domain: "AppDomain-com.apple.Pages", RelativePath: "Documents/notes.txt", Content: []byte("some notes")},
			{Domain: "AppDomain-com.apple.Pages", RelativePath: "Documents/missing.txt", Content: []byte("gone"), NoBlob: true},
			{Domain: "AppDomain-com.apple.Pages", RelativePath: "xx/xx.dat", Content: []byte("pages fixture content")},
			{Domain: "HomeDomain", RelativePath: "Library/Preferences/com.apple.springboard.plist", Content: []byte("springboard")},
		},
	}
}

// Write creates the backup below root on the host filesystem using a Manifest.mbdb manifest.
func Write(t testing.TB, root string, b Backup) backup.Device {
	t.Helper()
	dir := filepath.Join(root, b.ID)

	manifest := []byte{'m', 'b', 'd', 'b', 0x05, 0x00}
	for _, f := range b.Files {
		manifest = appendRecord(manifest, f)
		if f.Dir || f.NoBlob {
			continue
		}
		key := f.Key()
		writeFile(t, filepath.Join(dir, key.Shard(), key.String()), f.Content)
	}
	writeFile(t, filepath.Join(dir, "Manifest.mbdb"), manifest)

	apps := []string{}
	if b.Apps != nil {
		apps = b.Apps
	}
	info := map[string]any{
		"Device Name":            b.Name,
		"Product Type":           "iPhone12,1",
		"Product Version":        "17.4",
		"Installed Applications": apps,
	}
	if !b.Date.IsZero() {
		info["Last Backup Date"] = b.Date
	}
	writePlist(t, filepath.Join(dir, "Info.plist"), info)
	writePlist(t, filepath.Join(dir, "Manifest.plist"), map[string]any{
		"Lockdown":    map[string]any{"DeviceName": b.Name},
		"IsEncrypted": false,
	})
	return backup.Device{ID: b.ID, Root: root}
}

func writeFile(t testing.TB, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func writePlist(t testing.TB, path string, v any) {
	t.Helper()
	data, err := plist.Marshal(v, plist.XMLFormat)
	require.NoError(t, err)
	writeFile(t, path, data)
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

func appendRecord(buf []byte, f File) []byte {
	buf = appendString(buf, f.Domain)
	buf = appendString(buf, f.RelativePath)
	// Link target, data hash and encryption key are null.
	for range 3 {
		buf = binary.BigEndian.AppendUint16(buf, 0xffff)
	}
	mode := uint16(modeFile)
	if f.Dir {
		mode = modeDir
	}
	buf = binary.BigEndian.AppendUint16(buf, mode)
	buf = binary.BigEndian.AppendUint64(buf, 1)
	buf = binary.BigEndian.AppendUint32(buf, 501)
	buf = binary.BigEndian.AppendUint32(buf, 501)
	for range 3 {
		buf = binary.BigEndian.AppendUint32(buf, uint32(ModTime.Unix()))
	}
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(f.Content)))
	// Protection class and no extended attributes.
	return append(buf, 4, 0)
}
