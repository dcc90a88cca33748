package util

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/thinkparq/ibackup-go/common/backup"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want CtlExitCode
	}{
		{"nil", nil, Success},
		{"plain", errors.New("boom"), GeneralError},
		{"partial", NewCtlError(errors.New("some failed"), PartialSuccess), PartialSuccess},
		{"wrapped partial", fmt.Errorf("export: %w", NewCtlError(errors.New("x"), PartialSuccess)), PartialSuccess},
		{"root", &backup.NotFoundError{Path: "/x"}, NotFound},
		{"device", &backup.DeviceNotFoundError{DeviceID: "abc"}, NotFound},
		{"entry", fmt.Errorf("lookup: %w", &backup.EntryNotFoundError{Domain: "HomeDomain"}), NotFound},
		{"blob", &backup.BlobMissingError{Key: "ab"}, NotFound},
		{"corrupt", &backup.CorruptManifestError{Record: -1, Err: backup.ErrEncryptedBackup}, CorruptBackup},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestCtlError(t *testing.T) {
	inner := errors.New("inner")
	err := NewCtlError(inner, PartialSuccess)
	assert.Equal(t, "inner", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, PartialSuccess, err.GetExitCode())
}
