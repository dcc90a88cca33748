package blob

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"

	"github.com/spf13/viper"
	"github.com/thinkparq/ibackup-go/common/backup"
	"github.com/thinkparq/ibackup-go/common/filesystem"
	"github.com/thinkparq/ibackup-go/ctl/pkg/config"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Problem int

const (
	// A file entry whose blob does not exist.
	Missing Problem = iota + 1
	// A blob no entry refers to.
	Orphaned
	// A blob whose size differs from the size recorded by the manifest.
	SizeMismatch
)

func (p Problem) String() string {
	if viper.GetBool(config.DisableEmojisKey) {
		switch p {
		case Missing:
			return "Missing (" + strconv.Itoa(int(p)) + ")"
		case Orphaned:
			return "Orphaned (" + strconv.Itoa(int(p)) + ")"
		case SizeMismatch:
			return "Size Mismatch (" + strconv.Itoa(int(p)) + ")"
		default:
			return "Unknown (" + strconv.Itoa(int(p)) + ")"
		}
	}
	switch p {
	case Missing:
		return "🚫"
	case Orphaned:
		return "⭕"
	case SizeMismatch:
		// Zero-Width Non-Joiner keeps the warning sign from merging with table padding.
		return "\u26A0\ufe0f\u200C"
	default:
		return "❓"
	}
}

type VerifyCfg struct {
	// Also report blobs that are not referenced by the manifest.
	Orphans bool
	// Compare blob sizes with the manifest.
	Sizes bool
}

type VerifyResult struct {
	Problem Problem
	Key     backup.StorageKey
	// Path of the blob relative to the device directory. For missing blobs this is where the blob
	// was expected.
	Path string
	// Entries referencing the blob. Empty for orphaned blobs.
	Entries []backup.Entry
	Size    int64
}

// Verify compares the manifest of the selected device with the blobs on disk and streams every
// problem found. Missing blobs are reported in manifest order first, then the device directory is
// walked in lexicographical order to find orphaned blobs and size mismatches.
func Verify(ctx context.Context, cfg VerifyCfg) (<-chan *VerifyResult, func() error, error) {
	s, err := config.BackupSession(ctx)
	if err != nil {
		return nil, nil, err
	}
	m, err := s.Manifest()
	if err != nil {
		return nil, nil, err
	}
	device := m.Device()
	log, _ := config.GetLogger()
	log = log.With(zap.String("device", device.ID))

	walkCtx, cancelWalk := context.WithCancel(ctx)
	var walk <-chan *filesystem.StreamPathResult
	if cfg.Orphans || cfg.Sizes {
		walk, err = filesystem.StreamPathsLexicographically(walkCtx, s.Fs(), device.Path(), "", 1024)
		if err != nil {
			cancelWalk()
			return nil, nil, err
		}
	}

	results := make(chan *VerifyResult, 1024)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		send := func(r *VerifyResult) error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			case results <- r:
				return nil
			}
		}

		seen := map[backup.StorageKey]struct{}{}
		for _, e := range m.Entries() {
			if err := gCtx.Err(); err != nil {
				return err
			}
			if e.Kind != backup.KindFile {
				continue
			}
			if _, ok := seen[e.Key]; ok {
				continue
			}
			seen[e.Key] = struct{}{}
			_, err := s.Resolver().Locate(device, e.Key)
			if err == nil {
				continue
			}
			if !isMissing(err) {
				return err
			}
			if err := send(&VerifyResult{
				Problem: Missing,
				Key:     e.Key,
				Path:    path.Join(e.Key.Shard(), e.Key.String()),
				Entries: m.EntriesByKey(e.Key),
				Size:    e.Size,
			}); err != nil {
				return err
			}
		}

		if walk == nil {
			return nil
		}
		for r := range walk {
			if r.Err != nil {
				return r.Err
			}
			key, ok := blobKey(r.Path)
			if !ok {
				log.Debug("ignoring file that is not a blob", zap.String("path", r.Path))
				continue
			}
			entries := m.EntriesByKey(key)
			if len(entries) == 0 {
				if cfg.Orphans {
					if err := send(&VerifyResult{Problem: Orphaned, Key: key, Path: r.Path, Size: r.Size}); err != nil {
						return err
					}
				}
				continue
			}
			if cfg.Sizes && entries[0].Kind == backup.KindFile && entries[0].Size != r.Size {
				if err := send(&VerifyResult{Problem: SizeMismatch, Key: key, Path: r.Path, Entries: entries, Size: r.Size}); err != nil {
					return err
				}
			}
		}
		return nil
	})

	errChan := make(chan error, 1)
	go func() {
		err := g.Wait()
		close(results)
		cancelWalk()
		if walk != nil {
			for range walk {
			}
		}
		if err != nil {
			err = fmt.Errorf("unable to verify blobs of device %s: %w", device.ID, err)
		}
		errChan <- err
	}()

	wait := func() error {
		return <-errChan
	}
	return results, wait, nil
}

// blobKey returns the storage key of a file in the device directory if it is stored in the sharded
// or flat layout.
func blobKey(rel string) (backup.StorageKey, bool) {
	dir, name := path.Split(rel)
	if dir == "" && backup.IsMetadataFile(name) {
		return "", false
	}
	key := backup.StorageKey(name)
	if !key.WellFormed() {
		return "", false
	}
	switch dir {
	case "", key.Shard() + "/":
		return key, true
	}
	return "", false
}

func isMissing(err error) bool {
	var missing *backup.BlobMissingError
	return errors.As(err, &missing)
}
