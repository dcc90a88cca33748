package backup

import (
	"database/sql"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"howett.net/plist"
)

const (
	testDeviceID  = "00008030-001A2C3E0C12802E"
	testDevice2ID = "d1f2c3b4a5968778695a4b3c2d1e0f1a2b3c4d5e"

	pagesApp       = "com.apple.Pages"
	pagesDomain    = "AppDomain-com.apple.Pages"
	pagesXXKey     = StorageKey("e8b02cbd546ab5aec20a422cd5afef0f6f9c45a6")
	pagesNotesKey  = StorageKey("1219ee6cd5d04d3be33174dffa91204f26823585")
	pagesDocsKey   = StorageKey("1c51e123c56498de232720d931b4a257d3cf9e67")
	pagesMissKey   = StorageKey("6ddccfbe71f1fca8e06d6d97c72ea4707056d1ab")
	springboardKey = StorageKey("662bc19b13aecef58a7e855d0316e4cf61e2642b")
	legacySaveKey  = StorageKey("8581e7274b55554ffd1270448912cc34ac316329")
)

var testModTime = time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

// fixtureEntry describes one manifest record of a generated backup.
type fixtureEntry struct {
	Domain       string
	RelativePath string
	Kind         EntryKind
	Content      []byte
	// StoredKey overrides the fileID written to Manifest.db.
	StoredKey StorageKey
	// NoBlob skips writing the blob of a file entry.
	NoBlob bool
	// Flat stores the blob without a shard directory.
	Flat       bool
	LinkTarget string
}

func (e fixtureEntry) key() StorageKey {
	if e.StoredKey != "" {
		return e.StoredKey
	}
	return ComputeStorageKey(e.Domain, e.RelativePath)
}

func (e fixtureEntry) mode() uint32 {
	switch e.Kind {
	case KindDirectory:
		return modeDir | 0o755
	case KindSymlink:
		return modeSymlink | 0o777
	default:
		return modeFile | 0o644
	}
}

// pagesEntries is the default content of a generated backup.
func pagesEntries() []fixtureEntry {
	return []fixtureEntry{
		{Domain: pagesDomain, RelativePath: "Documents", Kind: KindDirectory},
		{Domain: pagesDomain, RelativePath: "Documents/notes.txt", Kind: KindFile, Content: []byte("some notes")},
		{Domain: pagesDomain, RelativePath: "Documents/missing.txt", Kind: KindFile, Content: []byte("gone"), NoBlob: true},
		{Domain: pagesDomain, RelativePath: "xx/xx.dat", Kind: KindFile, Content: []byte("pages fixture content")},
		{Domain: "HomeDomain", RelativePath: "Library/Preferences/com.apple.springboard.plist", Kind: KindFile, Content: []byte("springboard")},
		{Domain: "HomeDomain", RelativePath: "Library/Preferences/link", Kind: KindSymlink, LinkTarget: "com.apple.springboard.plist"},
	}
}

type fixtureInfo struct {
	Name      string
	Encrypted bool
	Apps      []string
	Date      time.Time
}

func writeFile(t *testing.T, fsys afero.Fs, path string, data []byte) {
	t.Helper()
	require.NoError(t, fsys.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fsys, path, data, 0o644))
}

func writePlist(t *testing.T, fsys afero.Fs, path string, v any) {
	t.Helper()
	data, err := plist.Marshal(v, plist.BinaryFormat)
	require.NoError(t, err)
	writeFile(t, fsys, path, data)
}

func writeDeviceInfo(t *testing.T, fsys afero.Fs, dir string, info fixtureInfo) {
	t.Helper()
	if info.Apps == nil {
		info.Apps = []string{}
	}
	apps := map[string]any{}
	for _, app := range info.Apps {
		apps[app] = map[string]any{"CFBundleIdentifier": app}
	}
	writePlist(t, fsys, filepath.Join(dir, manifestPlistName), map[string]any{
		"Lockdown": map[string]any{
			"DeviceName":     info.Name,
			"ProductType":    "iPhone12,1",
			"ProductVersion": "17.4",
			"SerialNumber":   "F2LXK0ABCDEF",
		},
		"IsEncrypted":    info.Encrypted,
		"WasPasscodeSet": true,
		"Applications":   apps,
	})
	infoPlist := map[string]any{
		"Device Name":            info.Name,
		"Installed Applications": info.Apps,
	}
	if !info.Date.IsZero() {
		infoPlist["Last Backup Date"] = info.Date
	}
	writePlist(t, fsys, filepath.Join(dir, infoPlistName), infoPlist)
	writePlist(t, fsys, filepath.Join(dir, statusPlistName), map[string]any{
		"IsFullBackup":  true,
		"Version":       "3.3",
		"SnapshotState": "finished",
	})
}

func writeBlobs(t *testing.T, fsys afero.Fs, dir string, entries []fixtureEntry) {
	t.Helper()
	for _, e := range entries {
		if e.Kind != KindFile || e.NoBlob {
			continue
		}
		key := e.key()
		path := filepath.Join(dir, key.Shard(), key.String())
		if e.Flat {
			path = filepath.Join(dir, key.String())
		}
		writeFile(t, fsys, path, e.Content)
	}
}

// encodeMBFile archives file metadata the way Manifest.db stores it.
func encodeMBFile(t *testing.T, e fixtureEntry) []byte {
	t.Helper()
	root := map[string]any{
		"$class":           plist.UID(2),
		"Size":             int64(len(e.Content)),
		"Mode":             e.mode(),
		"UserID":           501,
		"GroupID":          501,
		"InodeNumber":      int64(123456),
		"LastModified":     testModTime.Unix(),
		"LastStatusChange": testModTime.Unix(),
		"Birth":            testModTime.Unix(),
		"ProtectionClass":  3,
		"RelativePath":     plist.UID(3),
	}
	objects := []any{
		"$null",
		root,
		map[string]any{"$classname": "MBFile", "$classes": []string{"MBFile", "NSObject"}},
		e.RelativePath,
	}
	if e.LinkTarget != "" {
		root["Target"] = plist.UID(4)
		objects = append(objects, e.LinkTarget)
	}
	data, err := plist.Marshal(map[string]any{
		"$version":  100000,
		"$archiver": "NSKeyedArchiver",
		"$top":      map[string]any{"root": plist.UID(1)},
		"$objects":  objects,
	}, plist.BinaryFormat)
	require.NoError(t, err)
	return data
}

// createManifestDB writes a Manifest.db on the host filesystem.
func createManifestDB(t *testing.T, path string, entries []fixtureEntry) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE Files (fileID TEXT PRIMARY KEY, domain TEXT, relativePath TEXT, flags INTEGER, file BLOB)`)
	require.NoError(t, err)
	for _, e := range entries {
		_, err = db.Exec(`INSERT INTO Files (fileID, domain, relativePath, flags, file) VALUES (?, ?, ?, ?, ?)`,
			e.key().String(), e.Domain, e.RelativePath, int(e.Kind), encodeMBFile(t, e))
		require.NoError(t, err)
	}
}

// writeSQLiteBackup creates a device backup with a Manifest.db below root on the host filesystem.
func writeSQLiteBackup(t *testing.T, root string, id string, info fixtureInfo, entries []fixtureEntry) Device {
	t.Helper()
	fsys := afero.NewOsFs()
	dir := filepath.Join(root, id)
	createManifestDB(t, filepath.Join(dir, manifestDBName), entries)
	writeDeviceInfo(t, fsys, dir, info)
	writeBlobs(t, fsys, dir, entries)
	return Device{ID: id, Root: root}
}

func putString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

func putNull(buf []byte) []byte {
	return binary.BigEndian.AppendUint16(buf, mbdbNullString)
}

func encodeMBDBRecord(e fixtureEntry) []byte {
	var buf []byte
	buf = putString(buf, e.Domain)
	buf = putString(buf, e.RelativePath)
	if e.LinkTarget != "" {
		buf = putString(buf, e.LinkTarget)
	} else {
		buf = putNull(buf)
	}
	buf = putNull(buf)
	buf = putNull(buf)
	buf = binary.BigEndian.AppendUint16(buf, uint16(e.mode()))
	buf = binary.BigEndian.AppendUint64(buf, 42)
	buf = binary.BigEndian.AppendUint32(buf, 501)
	buf = binary.BigEndian.AppendUint32(buf, 501)
	for range 3 {
		buf = binary.BigEndian.AppendUint32(buf, uint32(testModTime.Unix()))
	}
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(e.Content)))
	buf = append(buf, 4)
	// One extended attribute.
	buf = append(buf, 1)
	buf = putString(buf, "com.apple.test")
	buf = putString(buf, "value")
	return buf
}

func encodeMBDB(entries []fixtureEntry) []byte {
	buf := append([]byte{}, mbdbMagic...)
	for _, e := range entries {
		buf = append(buf, encodeMBDBRecord(e)...)
	}
	return buf
}

// writeMBDBBackup creates a legacy device backup with a Manifest.mbdb below root on fsys.
func writeMBDBBackup(t *testing.T, fsys afero.Fs, root string, id string, info fixtureInfo, entries []fixtureEntry) Device {
	t.Helper()
	dir := filepath.Join(root, id)
	writeFile(t, fsys, filepath.Join(dir, manifestMBDBName), encodeMBDB(entries))
	writeDeviceInfo(t, fsys, dir, info)
	writeBlobs(t, fsys, dir, entries)
	return Device{ID: id, Root: root}
}
