package backup

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// PhysicalPath is the location of a blob on the host filesystem.
type PhysicalPath string

func (p PhysicalPath) String() string {
	return string(p)
}

// Contents are the bytes of a blob.
type Contents []byte

// Blob is the resolved form of a file returned by queries. It is either a PhysicalPath or Contents,
// depending on the requested ResultKind.
type Blob interface {
	isBlob()
}

func (PhysicalPath) isBlob() {}
func (Contents) isBlob()     {}

// ResultKind selects the Blob variant returned by Session.GetFiles.
type ResultKind int

const (
	ResultPath ResultKind = iota
	ResultBytes
)

func (k ResultKind) String() string {
	switch k {
	case ResultBytes:
		return "bytes"
	default:
		return "path"
	}
}

// ResolvePath maps a storage key to the sharded blob location <root>/<device>/<key[:2]>/<key>. It
// does not touch the filesystem.
func ResolvePath(device Device, key StorageKey) (PhysicalPath, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}
	return PhysicalPath(filepath.Join(device.Path(), key.Shard(), key.String())), nil
}

// flatPath is the blob location used by backups predating shard directories.
func flatPath(device Device, key StorageKey) PhysicalPath {
	return PhysicalPath(filepath.Join(device.Path(), key.String()))
}

// Resolver reads blobs of device backups. It never modifies the backup.
type Resolver struct {
	fs afero.Fs
}

func NewResolver(fsys afero.Fs) *Resolver {
	return &Resolver{fs: fsys}
}

// Locate returns the path the blob actually exists at. The sharded layout is tried first, then the
// flat layout. If neither exists a *BlobMissingError naming the sharded path is returned.
func (r *Resolver) Locate(device Device, key StorageKey) (PhysicalPath, error) {
	sharded, err := ResolvePath(device, key)
	if err != nil {
		return "", err
	}
	for _, p := range []PhysicalPath{sharded, flatPath(device, key)} {
		fi, err := r.fs.Stat(p.String())
		if err == nil {
			if fi.IsDir() {
				continue
			}
			return p, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("unable to stat blob %s: %w", key, err)
		}
	}
	return "", &BlobMissingError{DeviceID: device.ID, Key: key, Path: sharded}
}

// ReadFile returns the contents of the blob.
func (r *Resolver) ReadFile(device Device, key StorageKey) (Contents, error) {
	p, err := r.Locate(device, key)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(r.fs, p.String())
	if err != nil {
		return nil, fmt.Errorf("unable to read blob %s: %w", key, err)
	}
	return data, nil
}

// CopyTo streams the contents of the blob to w and returns the number of bytes written.
func (r *Resolver) CopyTo(device Device, key StorageKey, w io.Writer) (int64, error) {
	p, err := r.Locate(device, key)
	if err != nil {
		return 0, err
	}
	f, err := r.fs.Open(p.String())
	if err != nil {
		return 0, fmt.Errorf("unable to open blob %s: %w", key, err)
	}
	defer f.Close()
	n, err := io.Copy(w, f)
	if err != nil {
		return n, fmt.Errorf("unable to copy blob %s: %w", key, err)
	}
	return n, nil
}

type copyConfig struct {
	dstFs   afero.Fs
	modTime time.Time
	perm    os.FileMode
}

type CopyOpt func(*copyConfig)

// WithDestFs writes the copy to fsys instead of the filesystem the blob is read from.
func WithDestFs(fsys afero.Fs) CopyOpt {
	return func(cfg *copyConfig) {
		cfg.dstFs = fsys
	}
}

// WithModTime sets the modification time of the copy. A zero time leaves it at the current time.
func WithModTime(t time.Time) CopyOpt {
	return func(cfg *copyConfig) {
		cfg.modTime = t
	}
}

// CopyFile copies the blob to dest, creating missing parent directories, and returns the number of
// bytes written. An existing file at dest is overwritten. A partially written dest is removed.
func (r *Resolver) CopyFile(device Device, key StorageKey, dest string, opts ...CopyOpt) (int64, error) {
	cfg := &copyConfig{dstFs: r.fs, perm: 0o644}
	for _, opt := range opts {
		opt(cfg)
	}
	p, err := r.Locate(device, key)
	if err != nil {
		return 0, err
	}
	src, err := r.fs.Open(p.String())
	if err != nil {
		return 0, fmt.Errorf("unable to open blob %s: %w", key, err)
	}
	defer src.Close()

	if err := cfg.dstFs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("unable to create destination directory: %w", err)
	}
	dst, err := cfg.dstFs.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, cfg.perm)
	if err != nil {
		return 0, fmt.Errorf("unable to create %q: %w", dest, err)
	}
	n, err := io.Copy(dst, src)
	if err != nil {
		dst.Close()
		cfg.dstFs.Remove(dest)
		return n, fmt.Errorf("unable to copy blob %s to %q: %w", key, dest, err)
	}
	if err := dst.Close(); err != nil {
		cfg.dstFs.Remove(dest)
		return n, fmt.Errorf("unable to write %q: %w", dest, err)
	}
	if !cfg.modTime.IsZero() {
		if err := cfg.dstFs.Chtimes(dest, cfg.modTime, cfg.modTime); err != nil {
			return n, fmt.Errorf("unable to set modification time of %q: %w", dest, err)
		}
	}
	return n, nil
}
