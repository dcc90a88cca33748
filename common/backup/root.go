package backup

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/thinkparq/ibackup-go/common/filesystem"
)

// ResolveRoot returns the backup root to use. A non-empty path has environment variables ($VAR,
// %VAR% on Windows) and a leading "~" expanded. An empty path selects the platform default.
func ResolveRoot(fsys afero.Fs, path string) (string, error) {
	if path == "" {
		return defaultBackupRoot(fsys)
	}
	path = expandPath(path)
	if err := checkRoot(fsys, path); err != nil {
		return "", err
	}
	return path, nil
}

// DefaultBackupRoot returns the standard backup location of this platform on the host filesystem.
func DefaultBackupRoot() (string, error) {
	return defaultBackupRoot(filesystem.OsFs())
}

func defaultBackupRoot(fsys afero.Fs) (string, error) {
	candidates := defaultRootCandidates()
	if len(candidates) == 0 {
		return "", &NotFoundError{Path: "", Err: errors.New("unable to determine a default backup location for this platform")}
	}
	for _, c := range candidates {
		if fi, err := fsys.Stat(c); err == nil && fi.IsDir() {
			return c, nil
		}
	}
	return "", &NotFoundError{Path: candidates[0], Err: os.ErrNotExist}
}

func expandPath(path string) string {
	path = os.ExpandEnv(expandWindowsEnv(path))
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return path
}

// expandWindowsEnv expands %VAR% references. Unknown variables are left untouched.
func expandWindowsEnv(path string) string {
	var b strings.Builder
	for {
		start := strings.IndexByte(path, '%')
		if start < 0 {
			break
		}
		end := strings.IndexByte(path[start+1:], '%')
		if end < 0 {
			break
		}
		end += start + 1
		name := path[start+1 : end]
		if value, ok := os.LookupEnv(name); ok && name != "" {
			b.WriteString(path[:start])
			b.WriteString(value)
		} else {
			b.WriteString(path[:end+1])
		}
		path = path[end+1:]
	}
	b.WriteString(path)
	return b.String()
}
