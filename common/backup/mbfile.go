package backup

import (
	"errors"
	"fmt"
	"time"

	"howett.net/plist"
)

// keyedArchive is the top level structure of an NSKeyedArchiver property list. The "file" column of
// Manifest.db holds one of these with an MBFile object as root.
type keyedArchive struct {
	Archiver string               `plist:"$archiver"`
	Objects  []any                `plist:"$objects"`
	Top      map[string]plist.UID `plist:"$top"`
}

// mbFile holds the metadata decoded from an archived MBFile object.
type mbFile struct {
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

func decodeMBFile(data []byte) (mbFile, error) {
	var archive keyedArchive
	if _, err := plist.Unmarshal(data, &archive); err != nil {
		return mbFile{}, fmt.Errorf("unable to decode file metadata: %w", err)
	}
	rootUID, ok := archive.Top["root"]
	if !ok {
		return mbFile{}, errors.New("unable to decode file metadata: archive has no root object")
	}
	root, ok := archive.object(rootUID).(map[string]any)
	if !ok {
		return mbFile{}, errors.New("unable to decode file metadata: root object is not a dictionary")
	}

	var f mbFile
	f.Size = toInt64(root["Size"])
	f.Mode = uint32(toInt64(root["Mode"]))
	f.UserID = uint32(toInt64(root["UserID"]))
	f.GroupID = uint32(toInt64(root["GroupID"]))
	f.Inode = uint64(toInt64(root["InodeNumber"]))
	f.ProtectionClass = uint8(toInt64(root["ProtectionClass"]))
	f.Modified = unixTime(toInt64(root["LastModified"]))
	f.Changed = unixTime(toInt64(root["LastStatusChange"]))
	f.Born = unixTime(toInt64(root["Birth"]))
	if uid, ok := root["Target"].(plist.UID); ok {
		if target, ok := archive.object(uid).(string); ok {
			f.LinkTarget = target
		}
	}
	return f, nil
}

// object dereferences uid. Out of range references resolve to nil.
func (a *keyedArchive) object(uid plist.UID) any {
	if uint64(uid) >= uint64(len(a.Objects)) {
		return nil
	}
	return a.Objects[uid]
}

// toInt64 converts the numeric types a plist decoder may produce. Anything else is zero.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case uint64:
		return int64(n)
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case uint32:
		return int64(n)
	case float64:
		return int64(n)
	case float32:
		return int64(n)
	}
	return 0
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
