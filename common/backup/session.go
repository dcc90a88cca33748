package backup

import (
	"context"

	"github.com/spf13/afero"
	"github.com/thinkparq/ibackup-go/common/filesystem"
	"go.uber.org/zap"
)

// Session holds the device selected by a caller together with its manifest. Selection methods must
// not be called concurrently with other methods. Read methods are safe for concurrent use.
type Session struct {
	root     string
	fs       afero.Fs
	log      *zap.Logger
	policy   KeyPolicy
	resolver *Resolver
	// Replaced together on successful selection only.
	device   *Device
	manifest *Manifest
}

type SessionOpt func(*Session)

// WithFs sets the filesystem backups are read from. Defaults to the host filesystem.
func WithFs(fsys afero.Fs) SessionOpt {
	return func(s *Session) {
		s.fs = fsys
	}
}

func WithLogger(log *zap.Logger) SessionOpt {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// WithSessionKeyPolicy sets the KeyPolicy manifests are loaded with.
func WithSessionKeyPolicy(policy KeyPolicy) SessionOpt {
	return func(s *Session) {
		s.policy = policy
	}
}

// NewSession opens the backup root. An empty root selects the platform default location. No device
// is selected initially.
func NewSession(root string, opts ...SessionOpt) (*Session, error) {
	s := &Session{
		fs:     filesystem.OsFs(),
		log:    zap.NewNop(),
		policy: KeyPolicyTrustManifest,
	}
	for _, opt := range opts {
		opt(s)
	}
	resolved, err := ResolveRoot(s.fs, root)
	if err != nil {
		return nil, err
	}
	s.root = resolved
	s.resolver = NewResolver(s.fs)
	s.log = s.log.With(zap.String("backupRoot", resolved))
	return s, nil
}

func (s *Session) Root() string {
	return s.root
}

func (s *Session) Fs() afero.Fs {
	return s.fs
}

func (s *Session) Resolver() *Resolver {
	return s.resolver
}

func (s *Session) ListDevices(ctx context.Context) ([]Device, error) {
	return listDevices(ctx, s.fs, s.root, s.log)
}

// SelectDevice makes the device with the given ID current and loads its manifest. If the device
// does not exist or its manifest cannot be loaded the previous selection is kept.
func (s *Session) SelectDevice(ctx context.Context, id string) (Device, error) {
	device, err := findDevice(ctx, s.fs, s.root, id, s.log)
	if err != nil {
		return Device{}, err
	}
	return s.selectDevice(ctx, device)
}

// SelectLatest selects the device with the most recent backup.
func (s *Session) SelectLatest(ctx context.Context) (Device, error) {
	devices, err := s.ListDevices(ctx)
	if err != nil {
		return Device{}, err
	}
	device, ok := latestDevice(devices)
	if !ok {
		return Device{}, &NotFoundError{Path: s.root, Err: ErrNoDeviceSelected}
	}
	return s.selectDevice(ctx, device)
}

func (s *Session) selectDevice(ctx context.Context, device Device) (Device, error) {
	manifest, err := LoadManifest(ctx, s.fs, device, WithKeyPolicy(s.policy), WithLoadLogger(s.log))
	if err != nil {
		return Device{}, err
	}
	s.device = &device
	s.manifest = manifest
	s.log.Debug("selected device", zap.String("device", device.ID), zap.Int("entries", manifest.Len()))
	return device, nil
}

// Device returns the selected device or ErrNoDeviceSelected.
func (s *Session) Device() (Device, error) {
	if s.device == nil {
		return Device{}, ErrNoDeviceSelected
	}
	return *s.device, nil
}

// Manifest returns the manifest of the selected device or ErrNoDeviceSelected.
func (s *Session) Manifest() (*Manifest, error) {
	if s.manifest == nil {
		return nil, ErrNoDeviceSelected
	}
	return s.manifest, nil
}

// Lookup returns the storage key of a file of the selected device.
func (s *Session) Lookup(appID string, relativePath string) (StorageKey, error) {
	m, err := s.Manifest()
	if err != nil {
		return "", err
	}
	return m.Lookup(appID, relativePath)
}

// Locate returns the entry of a file of the selected device and the path its blob is stored at.
func (s *Session) Locate(appID string, relativePath string) (Entry, PhysicalPath, error) {
	m, err := s.Manifest()
	if err != nil {
		return Entry{}, "", err
	}
	e, err := m.Entry(appID, relativePath)
	if err != nil {
		return Entry{}, "", err
	}
	p, err := s.resolver.Locate(m.Device(), e.Key)
	if err != nil {
		return e, "", err
	}
	return e, p, nil
}

// ReadFile returns the contents of a file of the selected device.
func (s *Session) ReadFile(appID string, relativePath string) (Contents, error) {
	m, err := s.Manifest()
	if err != nil {
		return nil, err
	}
	key, err := m.Lookup(appID, relativePath)
	if err != nil {
		return nil, err
	}
	return s.resolver.ReadFile(m.Device(), key)
}

// File is a manifest entry together with its resolved blob.
type File struct {
	Entry
	Blob Blob
}

// GetFiles resolves every entry of the selected device matching q. Depending on kind each Blob is
// the PhysicalPath or the Contents of the file. Only entries with a blob (regular files) can be
// resolved, so q.Kind is forced to KindFile. The first missing blob aborts the call with a
// *BlobMissingError.
func (s *Session) GetFiles(ctx context.Context, q Query, kind ResultKind) ([]File, error) {
	m, err := s.Manifest()
	if err != nil {
		return nil, err
	}
	q.Kind = KindFile
	entries, err := m.Find(q)
	if err != nil {
		return nil, err
	}

	files := make([]File, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var blob Blob
		switch kind {
		case ResultBytes:
			blob, err = s.resolver.ReadFile(m.Device(), e.Key)
		default:
			blob, err = s.resolver.Locate(m.Device(), e.Key)
		}
		if err != nil {
			return nil, err
		}
		files = append(files, File{Entry: e, Blob: blob})
	}
	return files, nil
}
