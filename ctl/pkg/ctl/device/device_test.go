package device

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thinkparq/ibackup-go/common/backup"
	"github.com/thinkparq/ibackup-go/common/backup/backuptest"
	"github.com/thinkparq/ibackup-go/ctl/pkg/config"
)

func setup(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	viper.Set(config.BackupRootKey, root)
	t.Cleanup(func() {
		config.Cleanup()
		viper.Reset()
	})
	return root
}

func TestList(t *testing.T) {
	root := setup(t)
	backuptest.Write(t, root, backuptest.Pages("bbbb"))
	older := backuptest.Pages("aaaa")
	older.Date = backuptest.ModTime.Add(-time.Hour)
	backuptest.Write(t, root, older)

	devices, err := List(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "aaaa", devices[0].ID)
	assert.Equal(t, "bbbb", devices[1].ID)
	assert.Equal(t, "Test iPhone", devices[1].Info.Name)
}

func TestInfo(t *testing.T) {
	root := setup(t)
	backuptest.Write(t, root, backuptest.Pages("bbbb"))
	older := backuptest.Pages("aaaa")
	older.Date = backuptest.ModTime.Add(-time.Hour)
	older.Files = older.Files[:2]
	backuptest.Write(t, root, older)

	// Without an ID the latest backup is used.
	details, err := Info(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "bbbb", details.Device.ID)
	assert.Equal(t, backup.SchemaMBDB, details.Schema)
	assert.Equal(t, 5, details.Entries)
	assert.Equal(t, 2, details.Domains)
	assert.Equal(t, 1, details.AppDomains)

	details, err = Info(context.Background(), "aaaa")
	require.NoError(t, err)
	assert.Equal(t, "aaaa", details.Device.ID)
	assert.Equal(t, 2, details.Entries)

	_, err = Info(context.Background(), "cccc")
	var notFound *backup.DeviceNotFoundError
	assert.ErrorAs(t, err, &notFound)
}
