package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

type loadConfig struct {
	policy KeyPolicy
	log    *zap.Logger
}

type LoadOpt func(*loadConfig)

// WithKeyPolicy sets how storage keys declared by the manifest are treated. The default is
// KeyPolicyTrustManifest.
func WithKeyPolicy(policy KeyPolicy) LoadOpt {
	return func(cfg *loadConfig) {
		cfg.policy = policy
	}
}

func WithLoadLogger(log *zap.Logger) LoadOpt {
	return func(cfg *loadConfig) {
		if log != nil {
			cfg.log = log
		}
	}
}

// Manifest indexes every entry recorded for one device. It is immutable once LoadManifest returns
// and safe for concurrent use.
type Manifest struct {
	device Device
	path   string
	schema SchemaVersion
	policy KeyPolicy
	// Sorted by domain then relative path.
	entries    []Entry
	byIdentity map[identity]int
	byKey      map[StorageKey][]int
}

// DetectSchema reports the manifest format of a device backup and the path of the manifest file.
// Manifest.db takes precedence when a backup contains both formats.
func DetectSchema(fsys afero.Fs, device Device) (SchemaVersion, string, error) {
	for _, candidate := range []struct {
		name   string
		schema SchemaVersion
	}{
		{manifestDBName, SchemaSQLite},
		{manifestMBDBName, SchemaMBDB},
	} {
		path := filepath.Join(device.Path(), candidate.name)
		fi, err := fsys.Stat(path)
		if err == nil && !fi.IsDir() {
			return candidate.schema, path, nil
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return SchemaUnknown, path, err
		}
	}
	return SchemaUnknown, "", errors.New("no Manifest.db or Manifest.mbdb found")
}

// LoadManifest parses the manifest of device. Any read or parse failure is returned as a
// *CorruptManifestError and no partially populated manifest is returned.
func LoadManifest(ctx context.Context, fsys afero.Fs, device Device, opts ...LoadOpt) (*Manifest, error) {
	cfg := &loadConfig{
		policy: KeyPolicyTrustManifest,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	log := cfg.log.With(zap.String("device", device.ID))

	if fi, err := fsys.Stat(device.Path()); err != nil {
		return nil, &NotFoundError{Path: device.Path(), Err: err}
	} else if !fi.IsDir() {
		return nil, &NotFoundError{Path: device.Path(), Err: errors.New("not a directory")}
	}

	var mp manifestPlist
	plistPath := filepath.Join(device.Path(), manifestPlistName)
	if err := readPlist(fsys, plistPath, &mp); err == nil && mp.IsEncrypted {
		return nil, corruptManifest(device, plistPath, -1, ErrEncryptedBackup)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("unable to check if backup is encrypted", zap.Error(err))
	}

	schema, path, err := DetectSchema(fsys, device)
	if err != nil {
		return nil, corruptManifest(device, path, -1, err)
	}
	log.Debug("loading manifest", zap.String("path", path), zap.Stringer("schema", schema), zap.Stringer("keyPolicy", cfg.policy))

	var records []parsedRecord
	switch schema {
	case SchemaSQLite:
		records, err = readSQLiteManifest(ctx, fsys, path, log)
	case SchemaMBDB:
		var data []byte
		if data, err = afero.ReadFile(fsys, path); err == nil {
			records, err = parseMBDB(ctx, data)
		}
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var recErr *recordError
		if errors.As(err, &recErr) {
			return nil, corruptManifest(device, path, recErr.Index, recErr.Err)
		}
		return nil, corruptManifest(device, path, -1, err)
	}

	m, err := buildManifest(device, path, schema, cfg.policy, records)
	if err != nil {
		var recErr *recordError
		if errors.As(err, &recErr) {
			return nil, corruptManifest(device, path, recErr.Index, recErr.Err)
		}
		return nil, corruptManifest(device, path, -1, err)
	}
	log.Debug("loaded manifest", zap.Int("entries", len(m.entries)))
	return m, nil
}

func buildManifest(device Device, path string, schema SchemaVersion, policy KeyPolicy, records []parsedRecord) (*Manifest, error) {
	derivation := schema.KeyDerivation()
	// Keys are only worth re-verifying if they were read from the manifest.
	verify := policy == KeyPolicyVerify && schema == SchemaSQLite

	entries := make([]Entry, 0, len(records))
	seen := make(map[identity]struct{}, len(records))
	for i, rec := range records {
		key, err := derivation.DeriveKey(rec.raw)
		if err != nil {
			return nil, &recordError{Index: i, Err: err}
		}
		if verify {
			if err := verifyKey(rec.raw, key); err != nil {
				return nil, &recordError{Index: i, Err: err}
			}
		}
		id := identity{domain: rec.raw.Domain, relativePath: rec.raw.RelativePath}
		if _, ok := seen[id]; ok {
			return nil, &recordError{Index: i, Err: fmt.Errorf("duplicate entry %q", Identity(id.domain, id.relativePath))}
		}
		seen[id] = struct{}{}
		e := rec.entry
		e.Key = key
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		return lessEntry(entries[i], entries[j])
	})

	m := &Manifest{
		device:     device,
		path:       path,
		schema:     schema,
		policy:     policy,
		entries:    entries,
		byIdentity: make(map[identity]int, len(entries)),
		byKey:      make(map[StorageKey][]int, len(entries)),
	}
	for i, e := range entries {
		m.byIdentity[identity{domain: e.Domain, relativePath: e.RelativePath}] = i
		m.byKey[e.Key] = append(m.byKey[e.Key], i)
	}
	return m, nil
}

func lessEntry(a, b Entry) bool {
	if a.Domain != b.Domain {
		return a.Domain < b.Domain
	}
	return a.RelativePath < b.RelativePath
}

func (m *Manifest) Device() Device {
	return m.device
}

// Path is the manifest file the index was loaded from.
func (m *Manifest) Path() string {
	return m.path
}

func (m *Manifest) Schema() SchemaVersion {
	return m.schema
}

func (m *Manifest) KeyPolicy() KeyPolicy {
	return m.policy
}

func (m *Manifest) Len() int {
	return len(m.entries)
}

// Entries returns a copy of all entries sorted by domain then relative path.
func (m *Manifest) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Lookup returns the storage key of the file identified by appID and relativePath. appID may be a
// bare bundle identifier or a full domain name (see AppDomain).
//
// The record with the given identity is authoritative. If there is none, the key is recomputed from
// the identity and accepted only if some record holds it. A key no record holds is never returned.
func (m *Manifest) Lookup(appID string, relativePath string) (StorageKey, error) {
	e, err := m.Entry(appID, relativePath)
	if err != nil {
		return "", err
	}
	return e.Key, nil
}

// Entry is like Lookup but returns the whole entry.
func (m *Manifest) Entry(appID string, relativePath string) (Entry, error) {
	domain := AppDomain(appID)
	if i, ok := m.byIdentity[identity{domain: domain, relativePath: relativePath}]; ok {
		e := m.entries[i]
		if m.policy == KeyPolicyVerify {
			if err := verifyKey(rawRecord{Domain: domain, RelativePath: relativePath}, e.Key); err != nil {
				return Entry{}, err
			}
		}
		return e, nil
	}

	key := ComputeStorageKey(domain, relativePath)
	if idx := m.byKey[key]; len(idx) > 0 {
		return m.entries[idx[0]], nil
	}
	return Entry{}, &EntryNotFoundError{
		DeviceID:     m.device.ID,
		Domain:       domain,
		RelativePath: relativePath,
	}
}

// EntriesByKey returns all entries that share key. More than one entry is only possible when the
// backup deduplicated identical files.
func (m *Manifest) EntriesByKey(key StorageKey) []Entry {
	idx := m.byKey[key]
	out := make([]Entry, 0, len(idx))
	for _, i := range idx {
		out = append(out, m.entries[i])
	}
	return out
}

// HasKey reports whether any entry references key.
func (m *Manifest) HasKey(key StorageKey) bool {
	return len(m.byKey[key]) > 0
}

// Domains returns every domain with at least one entry in sorted order.
func (m *Manifest) Domains() []string {
	var domains []string
	for _, e := range m.entries {
		if len(domains) == 0 || domains[len(domains)-1] != e.Domain {
			domains = append(domains, e.Domain)
		}
	}
	return domains
}

// DomainUsage aggregates the entries of one domain.
type DomainUsage struct {
	Domain      string
	Files       int
	Directories int
	Symlinks    int
	// Total size of all regular files in bytes.
	Bytes int64
}

// Usage returns one DomainUsage per domain sorted by domain.
func (m *Manifest) Usage() []DomainUsage {
	var usage []DomainUsage
	for _, e := range m.entries {
		if len(usage) == 0 || usage[len(usage)-1].Domain != e.Domain {
			usage = append(usage, DomainUsage{Domain: e.Domain})
		}
		u := &usage[len(usage)-1]
		switch e.Kind {
		case KindFile:
			u.Files++
			u.Bytes += e.Size
		case KindDirectory:
			u.Directories++
		case KindSymlink:
			u.Symlinks++
		}
	}
	return usage
}
