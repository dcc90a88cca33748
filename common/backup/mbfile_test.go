package backup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"howett.net/plist"
)

func TestDecodeMBFile(t *testing.T) {
	f, err := decodeMBFile(encodeMBFile(t, fixtureEntry{
		RelativePath: "Library/link",
		Kind:         KindSymlink,
		LinkTarget:   "../target",
	}))
	require.NoError(t, err)
	assert.Equal(t, uint32(modeSymlink|0o777), f.Mode)
	assert.Equal(t, uint32(501), f.UserID)
	assert.Equal(t, uint32(501), f.GroupID)
	assert.Equal(t, uint64(123456), f.Inode)
	assert.Equal(t, "../target", f.LinkTarget)
	assert.True(t, testModTime.Equal(f.Changed))
}

func TestDecodeMBFileInvalid(t *testing.T) {
	noRoot, err := plist.Marshal(map[string]any{
		"$archiver": "NSKeyedArchiver",
		"$top":      map[string]any{},
		"$objects":  []any{"$null"},
	}, plist.BinaryFormat)
	require.NoError(t, err)

	rootNotDict, err := plist.Marshal(map[string]any{
		"$archiver": "NSKeyedArchiver",
		"$top":      map[string]any{"root": plist.UID(1)},
		"$objects":  []any{"$null", "string"},
	}, plist.BinaryFormat)
	require.NoError(t, err)

	danglingRoot, err := plist.Marshal(map[string]any{
		"$archiver": "NSKeyedArchiver",
		"$top":      map[string]any{"root": plist.UID(7)},
		"$objects":  []any{"$null"},
	}, plist.BinaryFormat)
	require.NoError(t, err)

	for name, data := range map[string][]byte{
		"garbage":       []byte("definitely not a plist"),
		"no root":       noRoot,
		"root not dict": rootNotDict,
		"dangling root": danglingRoot,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := decodeMBFile(data)
			assert.Error(t, err)
		})
	}
}

func TestToInt64(t *testing.T) {
	assert.Equal(t, int64(5), toInt64(uint64(5)))
	assert.Equal(t, int64(-5), toInt64(int64(-5)))
	assert.Equal(t, int64(5), toInt64(5.9))
	assert.Equal(t, int64(0), toInt64("5"))
	assert.Equal(t, int64(0), toInt64(nil))
}
