package backup

import (
	"context"
	"database/sql"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thinkparq/ibackup-go/common/filesystem"
)

func loadSQLiteFixture(t *testing.T, entries []fixtureEntry, opts ...LoadOpt) (*Manifest, error) {
	t.Helper()
	device := writeSQLiteBackup(t, t.TempDir(), testDeviceID, fixtureInfo{Name: "Phone"}, entries)
	return LoadManifest(context.Background(), afero.NewOsFs(), device, opts...)
}

func TestLoadManifestSQLite(t *testing.T) {
	m, err := loadSQLiteFixture(t, pagesEntries())
	require.NoError(t, err)
	assert.Equal(t, SchemaSQLite, m.Schema())
	assert.Equal(t, KeyPolicyTrustManifest, m.KeyPolicy())
	assert.Equal(t, len(pagesEntries()), m.Len())
	assert.Equal(t, manifestDBName, filepath.Base(m.Path()))

	key, err := m.Lookup(pagesApp, "xx/xx.dat")
	require.NoError(t, err)
	assert.Equal(t, pagesXXKey, key)

	// A full domain name is accepted as well as a bundle identifier.
	key, err = m.Lookup(pagesDomain, "Documents/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, pagesNotesKey, key)

	e, err := m.Entry(pagesApp, "xx/xx.dat")
	require.NoError(t, err)
	assert.Equal(t, KindFile, e.Kind)
	assert.Equal(t, int64(len("pages fixture content")), e.Size)
	assert.Equal(t, uint32(modeFile|0o644), e.Mode)
	assert.Equal(t, uint32(501), e.UserID)
	assert.Equal(t, uint64(123456), e.Inode)
	assert.Equal(t, uint8(3), e.ProtectionClass)
	assert.True(t, testModTime.Equal(e.Modified))
	assert.True(t, testModTime.Equal(e.Born))
	assert.Equal(t, pagesApp, e.AppID())
	assert.Equal(t, "xx.dat", e.Name())

	link, err := m.Entry("HomeDomain", "Library/Preferences/link")
	require.NoError(t, err)
	assert.Equal(t, KindSymlink, link.Kind)
	assert.Equal(t, "com.apple.springboard.plist", link.LinkTarget)

	_, err = m.Lookup(pagesApp, "Documents/absent.txt")
	var notFound *EntryNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, testDeviceID, notFound.DeviceID)
	assert.Equal(t, pagesDomain, notFound.Domain)
	assert.Equal(t, "Documents/absent.txt", notFound.RelativePath)
}

func TestLookupReconcilesByRecomputedKey(t *testing.T) {
	// The record is stored under a differently cased path but holds the key of the requested
	// identity.
	entries := []fixtureEntry{
		{Domain: pagesDomain, RelativePath: "Documents/Notes.txt", Kind: KindFile, Content: []byte("x"), StoredKey: pagesNotesKey},
	}
	m, err := loadSQLiteFixture(t, entries)
	require.NoError(t, err)

	key, err := m.Lookup(pagesApp, "Documents/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, pagesNotesKey, key)

	key, err = m.Lookup(pagesApp, "Documents/Notes.txt")
	require.NoError(t, err)
	assert.Equal(t, pagesNotesKey, key)
	assert.True(t, m.HasKey(pagesNotesKey))
	assert.Len(t, m.EntriesByKey(pagesNotesKey), 1)
}

func TestKeyPolicy(t *testing.T) {
	mismatched := append(pagesEntries(), fixtureEntry{
		Domain: pagesDomain, RelativePath: "Documents/other.txt", Kind: KindFile, Content: []byte("x"), StoredKey: pagesXXKey + "0",
	})

	t.Run("trust", func(t *testing.T) {
		m, err := loadSQLiteFixture(t, mismatched)
		require.NoError(t, err)
		key, err := m.Lookup(pagesApp, "Documents/other.txt")
		require.NoError(t, err)
		assert.Equal(t, pagesXXKey+"0", key)
	})

	t.Run("verify", func(t *testing.T) {
		_, err := loadSQLiteFixture(t, mismatched, WithKeyPolicy(KeyPolicyVerify))
		var corrupt *CorruptManifestError
		require.ErrorAs(t, err, &corrupt)
		assert.ErrorIs(t, err, ErrKeyMismatch)
		assert.GreaterOrEqual(t, corrupt.Record, 0)
		assert.Equal(t, testDeviceID, corrupt.DeviceID)
	})

	t.Run("verify consistent manifest", func(t *testing.T) {
		m, err := loadSQLiteFixture(t, pagesEntries(), WithKeyPolicy(KeyPolicyVerify))
		require.NoError(t, err)
		key, err := m.Lookup(pagesApp, "xx/xx.dat")
		require.NoError(t, err)
		assert.Equal(t, pagesXXKey, key)
	})
}

func TestLoadManifestMBDB(t *testing.T) {
	fsys := afero.NewMemMapFs()
	root := filepath.FromSlash("/backups")
	entries := append(pagesEntries(), fixtureEntry{
		Domain: "AppDomain-com.example.Legacy", RelativePath: "Documents/save.dat", Kind: KindFile, Content: []byte("save"),
	}, fixtureEntry{
		Domain: "AppDomain-com.acme.DomainManager", RelativePath: "Documents/a.txt", Kind: KindFile, Content: []byte("a"),
	})
	device := writeMBDBBackup(t, fsys, root, testDeviceID, fixtureInfo{}, entries)

	m, err := LoadManifest(context.Background(), fsys, device, WithKeyPolicy(KeyPolicyVerify))
	require.NoError(t, err)
	assert.Equal(t, SchemaMBDB, m.Schema())
	assert.Equal(t, len(entries), m.Len())

	for _, tt := range []struct {
		app  string
		path string
		want StorageKey
	}{
		{pagesApp, "xx/xx.dat", pagesXXKey},
		{pagesApp, "Documents", pagesDocsKey},
		{"HomeDomain", "Library/Preferences/com.apple.springboard.plist", springboardKey},
		{"com.example.Legacy", "Documents/save.dat", legacySaveKey},
		{"com.acme.DomainManager", "Documents/a.txt", ComputeStorageKey("AppDomain-com.acme.DomainManager", "Documents/a.txt")},
	} {
		key, err := m.Lookup(tt.app, tt.path)
		require.NoError(t, err)
		assert.Equal(t, tt.want, key)
	}

	e, err := m.Entry(pagesApp, "Documents")
	require.NoError(t, err)
	assert.Equal(t, KindDirectory, e.Kind)
	e, err = m.Entry(pagesApp, "xx/xx.dat")
	require.NoError(t, err)
	assert.Equal(t, int64(len("pages fixture content")), e.Size)
	assert.Equal(t, uint8(4), e.ProtectionClass)
	assert.True(t, testModTime.Equal(e.Modified))
	link, err := m.Entry("HomeDomain", "Library/Preferences/link")
	require.NoError(t, err)
	assert.Equal(t, "com.apple.springboard.plist", link.LinkTarget)
}

func TestLoadManifestCorrupt(t *testing.T) {
	root := filepath.FromSlash("/backups")
	dir := filepath.Join(root, testDeviceID)
	device := Device{ID: testDeviceID, Root: root}

	twoRecords := encodeMBDB(pagesEntries()[:2])
	first := len(encodeMBDB(pagesEntries()[:1]))

	tmpDB := filepath.Join(t.TempDir(), manifestDBName)
	createManifestDB(t, tmpDB, pagesEntries())
	database, err := os.ReadFile(tmpDB)
	require.NoError(t, err)
	// Keep only the first page, which holds the schema but not the Files table.
	pageSize := int(binary.BigEndian.Uint16(database[16:18]))
	require.Greater(t, len(database), pageSize)

	tests := []struct {
		name       string
		setup      func(t *testing.T, fsys afero.Fs)
		wantRecord int
	}{
		{
			name: "no manifest",
			setup: func(t *testing.T, fsys afero.Fs) {
				writeDeviceInfo(t, fsys, dir, fixtureInfo{})
			},
			wantRecord: -1,
		},
		{
			name: "bad magic",
			setup: func(t *testing.T, fsys afero.Fs) {
				writeFile(t, fsys, filepath.Join(dir, manifestMBDBName), []byte("mbdx\x05\x00"))
			},
			wantRecord: -1,
		},
		{
			name: "truncated second record",
			setup: func(t *testing.T, fsys afero.Fs) {
				writeFile(t, fsys, filepath.Join(dir, manifestMBDBName), twoRecords[:first+10])
			},
			wantRecord: 1,
		},
		{
			name: "truncated first record",
			setup: func(t *testing.T, fsys afero.Fs) {
				writeFile(t, fsys, filepath.Join(dir, manifestMBDBName), twoRecords[:len(mbdbMagic)+3])
			},
			wantRecord: 0,
		},
		{
			name: "duplicate identity",
			setup: func(t *testing.T, fsys afero.Fs) {
				e := pagesEntries()[1]
				writeFile(t, fsys, filepath.Join(dir, manifestMBDBName), encodeMBDB([]fixtureEntry{e, e}))
			},
			wantRecord: 1,
		},
		{
			name: "not a database",
			setup: func(t *testing.T, fsys afero.Fs) {
				writeFile(t, fsys, filepath.Join(dir, manifestDBName), []byte("this is not an sqlite database at all, just text"))
			},
			wantRecord: -1,
		},
		{
			name: "truncated database",
			setup: func(t *testing.T, fsys afero.Fs) {
				writeFile(t, fsys, filepath.Join(dir, manifestDBName), database[:pageSize])
			},
			wantRecord: -1,
		},
		{
			name: "truncated database header",
			setup: func(t *testing.T, fsys afero.Fs) {
				writeFile(t, fsys, filepath.Join(dir, manifestDBName), database[:50])
			},
			wantRecord: -1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			tt.setup(t, fsys)
			m, err := LoadManifest(context.Background(), fsys, device)
			assert.Nil(t, m)
			var corrupt *CorruptManifestError
			require.ErrorAs(t, err, &corrupt)
			assert.Equal(t, tt.wantRecord, corrupt.Record)
			assert.Equal(t, testDeviceID, corrupt.DeviceID)
		})
	}
}

func TestManifestDatabaseOpenedReadOnly(t *testing.T) {
	device := writeSQLiteBackup(t, t.TempDir(), testDeviceID, fixtureInfo{}, pagesEntries())
	path := filepath.Join(device.Path(), manifestDBName)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = LoadManifest(context.Background(), afero.NewOsFs(), device)
	require.NoError(t, err)
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	db, err := sql.Open("sqlite", manifestDSN(path))
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM Files`).Scan(&n))
	assert.Equal(t, len(pagesEntries()), n)
	_, err = db.Exec(`DELETE FROM Files`)
	assert.Error(t, err)
}

func TestLoadManifestEncrypted(t *testing.T) {
	fsys := afero.NewMemMapFs()
	root := filepath.FromSlash("/backups")
	device := writeMBDBBackup(t, fsys, root, testDeviceID, fixtureInfo{Encrypted: true}, pagesEntries())

	_, err := LoadManifest(context.Background(), fsys, device)
	var corrupt *CorruptManifestError
	require.ErrorAs(t, err, &corrupt)
	assert.ErrorIs(t, err, ErrEncryptedBackup)
}

func TestLoadManifestMissingDevice(t *testing.T) {
	_, err := LoadManifest(context.Background(), afero.NewMemMapFs(), Device{ID: testDeviceID, Root: "/nowhere"})
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestLoadManifestStagesDatabase(t *testing.T) {
	// Manifest.db is built on disk and then moved to an in-memory filesystem.
	tmp := filepath.Join(t.TempDir(), manifestDBName)
	createManifestDB(t, tmp, pagesEntries())
	data, err := os.ReadFile(tmp)
	require.NoError(t, err)

	fsys := afero.NewMemMapFs()
	root := filepath.FromSlash("/backups")
	writeFile(t, fsys, filepath.Join(root, testDeviceID, manifestDBName), data)
	// Manifest.db takes precedence over Manifest.mbdb.
	writeFile(t, fsys, filepath.Join(root, testDeviceID, manifestMBDBName), []byte("garbage"))

	m, err := LoadManifest(context.Background(), fsys, Device{ID: testDeviceID, Root: root})
	require.NoError(t, err)
	assert.Equal(t, SchemaSQLite, m.Schema())
	key, err := m.Lookup(pagesApp, "xx/xx.dat")
	require.NoError(t, err)
	assert.Equal(t, pagesXXKey, key)
}

func TestLoadManifestCancelled(t *testing.T) {
	fsys := afero.NewMemMapFs()
	device := writeMBDBBackup(t, fsys, filepath.FromSlash("/backups"), testDeviceID, fixtureInfo{}, pagesEntries())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := LoadManifest(ctx, fsys, device)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestManifestFind(t *testing.T) {
	fsys := afero.NewMemMapFs()
	entries := append(pagesEntries(),
		fixtureEntry{Domain: "AppDomainGroup-group.com.apple.Pages", RelativePath: "Library/shared.db", Kind: KindFile, Content: []byte("shared")},
		fixtureEntry{Domain: pagesDomain, RelativePath: "Documents/big.key", Kind: KindFile, Content: make([]byte, 4096)},
	)
	device := writeMBDBBackup(t, fsys, filepath.FromSlash("/backups"), testDeviceID, fixtureInfo{}, entries)
	m, err := LoadManifest(context.Background(), fsys, device)
	require.NoError(t, err)

	bigFiles, err := filesystem.CompileFilter("size > 1KiB")
	require.NoError(t, err)

	type result struct{ domain, path string }
	tests := []struct {
		name  string
		query Query
		want  []result
	}{
		{
			name:  "app files",
			query: Query{App: pagesApp},
			want: []result{
				{pagesDomain, "Documents/big.key"},
				{pagesDomain, "Documents/missing.txt"},
				{pagesDomain, "Documents/notes.txt"},
				{pagesDomain, "xx/xx.dat"},
			},
		},
		{
			name:  "domain substring",
			query: Query{Domain: "com.apple.Pages", RelativePath: "Library"},
			want: []result{
				{"AppDomainGroup-group.com.apple.Pages", "Library/shared.db"},
			},
		},
		{
			name:  "glob",
			query: Query{App: pagesApp, Glob: "Documents/*.txt"},
			want: []result{
				{pagesDomain, "Documents/missing.txt"},
				{pagesDomain, "Documents/notes.txt"},
			},
		},
		{
			name:  "directories",
			query: Query{Kind: KindDirectory},
			want: []result{
				{pagesDomain, "Documents"},
			},
		},
		{
			name:  "any kind",
			query: Query{Domain: "HomeDomain", Kind: KindAny},
			want: []result{
				{"HomeDomain", "Library/Preferences/com.apple.springboard.plist"},
				{"HomeDomain", "Library/Preferences/link"},
			},
		},
		{
			name:  "filter",
			query: Query{Filter: bigFiles},
			want: []result{
				{pagesDomain, "Documents/big.key"},
			},
		},
		{
			name:  "no match",
			query: Query{App: "com.example.none"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Find(tt.query)
			require.NoError(t, err)
			var results []result
			for _, e := range got {
				results = append(results, result{e.Domain, e.RelativePath})
			}
			assert.Equal(t, tt.want, results)
		})
	}

	_, err = m.Find(Query{Glob: "["})
	assert.Error(t, err)
	_, err = m.Find(Query{Kind: EntryKind(3)})
	assert.Error(t, err)
}

func TestManifestDomainsAndUsage(t *testing.T) {
	fsys := afero.NewMemMapFs()
	device := writeMBDBBackup(t, fsys, filepath.FromSlash("/backups"), testDeviceID, fixtureInfo{}, pagesEntries())
	m, err := LoadManifest(context.Background(), fsys, device)
	require.NoError(t, err)

	assert.Equal(t, []string{pagesDomain, "HomeDomain"}, m.Domains())

	usage := m.Usage()
	require.Len(t, usage, 2)
	assert.Equal(t, DomainUsage{
		Domain:      pagesDomain,
		Files:       3,
		Directories: 1,
		Bytes:       int64(len("some notes") + len("gone") + len("pages fixture content")),
	}, usage[0])
	assert.Equal(t, DomainUsage{
		Domain:   "HomeDomain",
		Files:    1,
		Symlinks: 1,
		Bytes:    int64(len("springboard")),
	}, usage[1])

	all := m.Entries()
	require.Len(t, all, m.Len())
	all[0].Domain = "changed"
	assert.NotEqual(t, "changed", m.Entries()[0].Domain)
}

func TestManifestTree(t *testing.T) {
	fsys := afero.NewMemMapFs()
	device := writeMBDBBackup(t, fsys, filepath.FromSlash("/backups"), testDeviceID, fixtureInfo{}, pagesEntries())
	m, err := LoadManifest(context.Background(), fsys, device)
	require.NoError(t, err)

	tree, err := m.Tree(pagesApp)
	require.NoError(t, err)
	assert.Equal(t, pagesDomain, tree.Name)
	require.Len(t, tree.Children, 2)

	docs := tree.Children[0]
	assert.Equal(t, "Documents", docs.Name)
	require.NotNil(t, docs.Entry)
	assert.Equal(t, KindDirectory, docs.Entry.Kind)
	require.Len(t, docs.Children, 2)
	assert.Equal(t, "missing.txt", docs.Children[0].Name)
	assert.Equal(t, "notes.txt", docs.Children[1].Name)

	xx := tree.Children[1]
	assert.Equal(t, "xx", xx.Name)
	// Not recorded by the manifest, only implied by its child.
	assert.Nil(t, xx.Entry)
	require.Len(t, xx.Children, 1)
	assert.Equal(t, "xx/xx.dat", xx.Children[0].Path)
	assert.Equal(t, pagesXXKey, xx.Children[0].Entry.Key)

	_, err = m.Tree("com.example.none")
	var notFound *EntryNotFoundError
	assert.ErrorAs(t, err, &notFound)
}
