package file

import (
	"context"
	"fmt"
	"io"

	"github.com/thinkparq/ibackup-go/common/backup"
	"github.com/thinkparq/ibackup-go/common/filesystem"
	"github.com/thinkparq/ibackup-go/ctl/pkg/config"
)

// QueryCfg is the user facing form of a backup.Query.
type QueryCfg struct {
	App    string
	Domain string
	Path   string
	Glob   string
	// One of file, directory, symlink or any. Empty selects files.
	Kind string
	// Filter expression, see filesystem.FilterEntriesHelp.
	Filter string
}

func (c QueryCfg) Query() (backup.Query, error) {
	q := backup.Query{
		App:          c.App,
		Domain:       c.Domain,
		RelativePath: c.Path,
		Glob:         c.Glob,
	}
	if c.Kind != "" {
		q.Kind = backup.EntryKindFromString(c.Kind)
		if q.Kind == backup.KindUnknown {
			return backup.Query{}, fmt.Errorf("unknown entry kind %q (valid kinds: file, directory, symlink, any)", c.Kind)
		}
	}
	if c.Filter != "" {
		filter, err := filesystem.CompileFilter(c.Filter)
		if err != nil {
			return backup.Query{}, fmt.Errorf("invalid filter %q: %w", c.Filter, err)
		}
		q.Filter = filter
	}
	return q, q.Validate()
}

type FindCfg struct {
	QueryCfg
	// Resolve the physical path of each file. Only files can be resolved and a missing blob fails
	// the request.
	Resolve bool
}

type FindResult struct {
	Entry backup.Entry
	// Empty unless the entry was resolved.
	Path backup.PhysicalPath
}

// Find returns the entries of the selected device matching the query.
func Find(ctx context.Context, cfg FindCfg) ([]FindResult, error) {
	q, err := cfg.Query()
	if err != nil {
		return nil, err
	}
	s, err := config.BackupSession(ctx)
	if err != nil {
		return nil, err
	}

	if cfg.Resolve {
		files, err := s.GetFiles(ctx, q, backup.ResultPath)
		if err != nil {
			return nil, err
		}
		results := make([]FindResult, 0, len(files))
		for _, f := range files {
			p, _ := f.Blob.(backup.PhysicalPath)
			results = append(results, FindResult{Entry: f.Entry, Path: p})
		}
		return results, nil
	}

	m, err := s.Manifest()
	if err != nil {
		return nil, err
	}
	entries, err := m.Find(q)
	if err != nil {
		return nil, err
	}
	results := make([]FindResult, 0, len(entries))
	for _, e := range entries {
		results = append(results, FindResult{Entry: e})
	}
	return results, nil
}

type LocateResult struct {
	Entry backup.Entry
	Path  backup.PhysicalPath
}

// Locate resolves one file of an application to the blob it is stored in.
func Locate(ctx context.Context, appID string, relativePath string) (LocateResult, error) {
	s, err := config.BackupSession(ctx)
	if err != nil {
		return LocateResult{}, err
	}
	e, p, err := s.Locate(appID, relativePath)
	if err != nil {
		return LocateResult{Entry: e}, err
	}
	return LocateResult{Entry: e, Path: p}, nil
}

// Cat writes the contents of one file of an application to w.
func Cat(ctx context.Context, appID string, relativePath string, w io.Writer) (int64, error) {
	s, err := config.BackupSession(ctx)
	if err != nil {
		return 0, err
	}
	m, err := s.Manifest()
	if err != nil {
		return 0, err
	}
	e, err := m.Entry(appID, relativePath)
	if err != nil {
		return 0, err
	}
	if e.Kind != backup.KindFile {
		return 0, fmt.Errorf("%s is a %s, only files have contents", backup.Identity(e.Domain, e.RelativePath), e.Kind)
	}
	return s.Resolver().CopyTo(m.Device(), e.Key, w)
}
