package file

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/thinkparq/ibackup-go/common/backup"
	"github.com/thinkparq/ibackup-go/common/filesystem"
	"github.com/thinkparq/ibackup-go/ctl/pkg/config"
	"github.com/thinkparq/ibackup-go/ctl/pkg/util"
	"go.uber.org/zap"
)

type ExportCfg struct {
	QueryCfg
	Dest string
	// Replace files that already exist below Dest. Otherwise they are skipped.
	Overwrite bool
	// Set the modification time of each copy to the one recorded by the backup.
	PreserveTimes bool
	// Report what would be exported without writing anything.
	DryRun bool
}

type ExportResult struct {
	Entry backup.Entry
	// Where the file was or would have been exported to.
	Dest    string
	Bytes   int64
	Skipped bool
	Err     error
}

// Missing reports if the result failed because the blob of the file is not part of the backup.
func (r *ExportResult) Missing() bool {
	var missing *backup.BlobMissingError
	return errors.As(r.Err, &missing)
}

// Export copies every file of the selected device matching the query to <dest>/<domain>/<path>.
// Files are copied in parallel. Failures to export individual files are reported as part of their
// result and do not stop the export.
func Export(ctx context.Context, cfg ExportCfg) (<-chan *ExportResult, func() error, error) {
	if cfg.Dest == "" {
		return nil, nil, fmt.Errorf("missing export destination")
	}
	q, err := cfg.Query()
	if err != nil {
		return nil, nil, err
	}
	// Only regular files have a blob to export.
	q.Kind = backup.KindFile

	s, err := config.BackupSession(ctx)
	if err != nil {
		return nil, nil, err
	}
	m, err := s.Manifest()
	if err != nil {
		return nil, nil, err
	}
	entries, err := m.Find(q)
	if err != nil {
		return nil, nil, err
	}
	dest, err := filepath.Abs(cfg.Dest)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid export destination %q: %w", cfg.Dest, err)
	}

	log, _ := config.GetLogger()
	log = log.With(zap.String("device", m.Device().ID), zap.String("dest", dest))
	log.Debug("exporting files", zap.Int("count", len(entries)))

	results, wait := util.ProcessEntries(ctx, entries, false, func(ctx context.Context, e backup.Entry) (*ExportResult, error) {
		return exportEntry(s, m.Device(), dest, cfg, e, log), nil
	})
	return results, wait, nil
}

// ExportPath is the location below dest a file is exported to. Every domain gets its own directory
// and recorded paths that would leave it are rejected.
func ExportPath(dest string, e backup.Entry) (string, error) {
	domain := filepath.FromSlash(e.Domain)
	rel := filepath.FromSlash(e.RelativePath)
	if !filepath.IsLocal(domain) || domain == "." || filepath.Base(domain) != domain || (rel != "" && !filepath.IsLocal(rel)) {
		return "", fmt.Errorf("refusing to export %q outside of the destination", backup.Identity(e.Domain, e.RelativePath))
	}
	return filepath.Join(dest, domain, rel), nil
}

func exportEntry(s *backup.Session, device backup.Device, dest string, cfg ExportCfg, e backup.Entry, log *zap.Logger) *ExportResult {
	result := &ExportResult{Entry: e}
	result.Dest, result.Err = ExportPath(dest, e)
	if result.Err != nil {
		return result
	}

	if !cfg.Overwrite {
		exists, err := filesystem.Exists(s.Fs(), result.Dest)
		if err != nil {
			result.Err = err
			return result
		}
		if exists {
			result.Skipped = true
			return result
		}
	}

	if cfg.DryRun {
		if _, err := s.Resolver().Locate(device, e.Key); err != nil {
			result.Err = err
			return result
		}
		result.Bytes = e.Size
		return result
	}

	var opts []backup.CopyOpt
	if cfg.PreserveTimes {
		opts = append(opts, backup.WithModTime(e.Modified))
	}
	result.Bytes, result.Err = s.Resolver().CopyFile(device, e.Key, result.Dest, opts...)
	if result.Err != nil {
		return result
	}
	log.Debug("exported file", zap.String("key", e.Key.String()), zap.String("path", result.Dest))
	return result
}
