package backup

import (
	"path"
	"strings"
	"time"

	"github.com/thinkparq/ibackup-go/common/filesystem"
)

// EntryKind mirrors the "flags" column of Manifest.db.
type EntryKind int

const (
	KindUnknown   EntryKind = 0
	KindFile      EntryKind = 1
	KindDirectory EntryKind = 2
	KindSymlink   EntryKind = 4
	// KindAny only appears in queries and matches every kind.
	KindAny EntryKind = -1
)

// Mode type bits as stored by the backup.
const (
	modeTypeMask = 0o170000
	modeFile     = 0o100000
	modeDir      = 0o040000
	modeSymlink  = 0o120000
)

func EntryKindFromString(input string) EntryKind {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return KindUnknown
	}
	if strings.HasPrefix("file", input) {
		return KindFile
	} else if strings.HasPrefix("directory", input) {
		return KindDirectory
	} else if strings.HasPrefix("symlink", input) || strings.HasPrefix("link", input) {
		return KindSymlink
	} else if input == "any" || input == "all" {
		return KindAny
	}
	return KindUnknown
}

func entryKindFromMode(mode uint32) EntryKind {
	switch mode & modeTypeMask {
	case modeFile:
		return KindFile
	case modeDir:
		return KindDirectory
	case modeSymlink:
		return KindSymlink
	}
	return KindUnknown
}

func (k EntryKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	case KindAny:
		return "any"
	default:
		return "unknown"
	}
}

// Entry is one logical file recorded in a device's manifest.
type Entry struct {
	Domain       string
	RelativePath string
	Key          StorageKey
	Kind         EntryKind
	// Metadata is optional. Fields are left at their zero value if the manifest does not record
	// them.
	Size            int64
	Mode            uint32
	UserID          uint32
	GroupID         uint32
	Inode           uint64
	ProtectionClass uint8
	LinkTarget      string
	Modified        time.Time
	Changed         time.Time
	Born            time.Time
}

// AppID returns the bundle identifier for application domains and the domain otherwise.
func (e Entry) AppID() string {
	return AppID(e.Domain)
}

// Name is the last element of the relative path.
func (e Entry) Name() string {
	return path.Base(e.RelativePath)
}

// info adapts the entry for evaluation by a filesystem.EntryFilter.
func (e Entry) info() filesystem.EntryInfo {
	mode := e.Mode
	if mode&modeTypeMask == 0 {
		switch e.Kind {
		case KindFile:
			mode |= modeFile
		case KindDirectory:
			mode |= modeDir
		case KindSymlink:
			mode |= modeSymlink
		}
	}
	return filesystem.EntryInfo{
		Domain: e.Domain,
		Path:   e.RelativePath,
		Name:   e.Name(),
		Key:    string(e.Key),
		Size:   e.Size,
		Mode:   mode,
		Perm:   mode & 0o7777,
		Mtime:  e.Modified,
		Ctime:  e.Changed,
		Btime:  e.Born,
		Uid:    e.UserID,
		Gid:    e.GroupID,
	}
}

type identity struct {
	domain       string
	relativePath string
}
