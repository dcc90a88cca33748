// Adapted from the Go standard library's filepath.WalkDir implementation:
// https://cs.opensource.google/go/go/+/refs/tags/go1.23.5:src/path/filepath/path.go;l=395
//
// Original implementation Copyright 2009 The Go Authors. Use of this source code is governed by a
// BSD-style license that can be found in the LICENSE file distributed with the original source.
//
// Modifications include walking an afero.Fs and sorting directory entries lexicographically by
// appending "/" to directory names.
package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	doublestar "github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
)

// WalkDirLexicographically works the same as filepath.WalkDir except that it walks an afero.Fs and
// appends a slash to directories when sorting entries so that paths are walked in lexicographical
// order. For example the built in filepath.WalkDir returns
//
//	/a1/b  <<< Directory!
//	/a1/b/c
//	/a1/b.plist
//
// while this function returns
//
//	/a1/b.plist
//	/a1/b
//	/a1/b/c
func WalkDirLexicographically(fsys afero.Fs, root string, fn fs.WalkDirFunc) error {
	info, err := fsys.Stat(root)
	if err != nil {
		err = fn(root, nil, err)
	} else {
		err = walkDirLexicographically(fsys, root, fs.FileInfoToDirEntry(info), fn)
	}
	if err == filepath.SkipDir || err == filepath.SkipAll {
		return nil
	}
	return err
}

func walkDirLexicographically(fsys afero.Fs, path string, d fs.DirEntry, walkDirFn fs.WalkDirFunc) error {
	if err := walkDirFn(path, d, nil); err != nil || !d.IsDir() {
		if err == filepath.SkipDir && d.IsDir() {
			err = nil
		}
		return err
	}

	dirs, err := readDir(fsys, path)
	if err != nil {
		// Second call, to report the ReadDir error.
		err = walkDirFn(path, d, err)
		if err != nil {
			if err == filepath.SkipDir && d.IsDir() {
				err = nil
			}
			return err
		}
	}

	for _, d1 := range dirs {
		path1 := filepath.Join(path, d1.Name())
		if err := walkDirLexicographically(fsys, path1, d1, walkDirFn); err != nil {
			if err == fs.SkipDir {
				break
			}
			return err
		}
	}
	return nil
}

// readDir returns a lexically sorted directory listing. Directories receive a trailing '/' so they
// sort distinctly from files with the same prefix.
func readDir(fsys afero.Fs, directory string) ([]fs.DirEntry, error) {
	infos, err := afero.ReadDir(fsys, directory)
	if err != nil {
		return nil, err
	}
	entries := make([]fs.DirEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, fs.FileInfoToDirEntry(info))
	}
	sortName := func(entry fs.DirEntry) string {
		if entry.IsDir() {
			return entry.Name() + "/"
		}
		return entry.Name()
	}
	sort.Slice(entries, func(i, j int) bool {
		return sortName(entries[i]) < sortName(entries[j])
	})
	return entries, nil
}

type StreamPathResult struct {
	// Path relative to the walked root using forward slashes.
	Path string
	Size int64
	Err  error
}

// StreamPathsLexicographically walks root and streams every regular file whose root relative path
// matches pattern (a doublestar pattern, empty matches everything) in lexicographically increasing
// order. The channel is closed once the walk completes, after an error was sent, or when ctx is
// cancelled.
func StreamPathsLexicographically(ctx context.Context, fsys afero.Fs, root string, pattern string, chanSize int) (<-chan *StreamPathResult, error) {
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}
	if stat, err := fsys.Stat(root); err != nil {
		return nil, fmt.Errorf("unable to walk path: %w", err)
	} else if !stat.IsDir() {
		return nil, fmt.Errorf("unable to walk path: %q is not a directory", root)
	}

	walkChan := make(chan *StreamPathResult, chanSize)
	go func() {
		defer close(walkChan)
		send := func(result *StreamPathResult) bool {
			select {
			case <-ctx.Done():
				select {
				case walkChan <- &StreamPathResult{Err: ctx.Err()}:
				default:
				}
				return false
			case walkChan <- result:
				return true
			}
		}

		err := WalkDirLexicographically(fsys, root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return ctx.Err()
			}
			if !d.Type().IsRegular() {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if pattern != "" {
				if match, err := doublestar.Match(pattern, rel); err != nil {
					return fmt.Errorf("failed to match path %q with pattern %q: %w", rel, pattern, err)
				} else if !match {
					return nil
				}
			}
			var size int64
			if info, err := d.Info(); err == nil {
				size = info.Size()
			}
			if !send(&StreamPathResult{Path: rel, Size: size}) {
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil {
			send(&StreamPathResult{Err: fmt.Errorf("unable to walk %q: %w", root, err)})
		}
	}()
	return walkChan, nil
}

// osFs is shared by callers that do not inject a filesystem.
var osFs afero.Fs = afero.NewOsFs()

// OsFs returns the filesystem backed by the host operating system.
func OsFs() afero.Fs {
	return osFs
}

// IsOsFs reports whether fsys is backed directly by the host operating system, meaning its paths
// can be handed to code that does not speak afero (such as an SQLite driver).
func IsOsFs(fsys afero.Fs) bool {
	_, ok := fsys.(*afero.OsFs)
	return ok
}

// Exists reports whether path exists on fsys. Errors other than fs.ErrNotExist are returned.
func Exists(fsys afero.Fs, path string) (bool, error) {
	_, err := fsys.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
