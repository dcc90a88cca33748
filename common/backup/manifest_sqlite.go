package backup

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/thinkparq/ibackup-go/common/filesystem"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const selectFiles = `SELECT fileID, domain, relativePath, flags, file FROM Files`

// manifestDSN is the data source name for opening the database at path read-only. Recovering a hot
// journal or checkpointing a WAL would otherwise write to the backup.
func manifestDSN(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path), RawQuery: "mode=ro"}
	return u.String()
}

// readSQLiteManifest reads every row of the Files table. The SQLite driver needs a real file, so
// manifests on other afero filesystems are first staged to a temporary file.
func readSQLiteManifest(ctx context.Context, fsys afero.Fs, path string, log *zap.Logger) ([]parsedRecord, error) {
	dbPath := path
	if !filesystem.IsOsFs(fsys) {
		staged, err := stageFile(fsys, path)
		if err != nil {
			return nil, err
		}
		defer os.Remove(staged)
		dbPath = staged
		log.Debug("staged manifest database", zap.String("manifest", path), zap.String("staged", staged))
	}

	db, err := sql.Open("sqlite", manifestDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("unable to open manifest database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, selectFiles)
	if err != nil {
		return nil, fmt.Errorf("unable to query manifest database: %w", err)
	}
	defer rows.Close()

	var records []parsedRecord
	for i := 0; rows.Next(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var (
			fileID, domain, relativePath string
			flags                        sql.NullInt64
			blob                         []byte
		)
		if err := rows.Scan(&fileID, &domain, &relativePath, &flags, &blob); err != nil {
			return nil, &recordError{Index: i, Err: err}
		}
		e := Entry{
			Domain:       domain,
			RelativePath: relativePath,
			Kind:         EntryKind(flags.Int64),
		}
		if len(blob) > 0 {
			meta, err := decodeMBFile(blob)
			if err != nil {
				return nil, &recordError{Index: i, Err: err}
			}
			e.Size = meta.Size
			e.Mode = meta.Mode
			e.UserID = meta.UserID
			e.GroupID = meta.GroupID
			e.Inode = meta.Inode
			e.ProtectionClass = meta.ProtectionClass
			e.LinkTarget = meta.LinkTarget
			e.Modified = meta.Modified
			e.Changed = meta.Changed
			e.Born = meta.Born
		}
		if e.Kind == KindUnknown {
			e.Kind = entryKindFromMode(e.Mode)
		}
		records = append(records, parsedRecord{
			raw: rawRecord{
				Domain:       domain,
				RelativePath: relativePath,
				StoredKey:    StorageKey(fileID),
			},
			entry: e,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("unable to read manifest database: %w", err)
	}
	return records, nil
}

// stageFile copies path from fsys into a temporary file on the host and returns its name.
func stageFile(fsys afero.Fs, path string) (string, error) {
	src, err := fsys.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "ibackup-manifest-*.db")
	if err != nil {
		return "", fmt.Errorf("unable to stage manifest: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("unable to stage manifest: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("unable to stage manifest: %w", err)
	}
	return dst.Name(), nil
}
