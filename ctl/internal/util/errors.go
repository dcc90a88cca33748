package util

import (
	"errors"

	"github.com/thinkparq/ibackup-go/common/backup"
)

type CtlExitCode int

const (
	Success CtlExitCode = iota
	GeneralError
	// Some but not all of the requested work completed.
	PartialSuccess
	// The backup root, a device, an entry or a blob does not exist.
	NotFound
	// The manifest is unreadable, malformed or encrypted.
	CorruptBackup
)

// CtlError allows commands to control the exit code of the application.
type CtlError struct {
	err  error
	code CtlExitCode
}

func NewCtlError(err error, code CtlExitCode) *CtlError {
	return &CtlError{err: err, code: code}
}

func (e *CtlError) Error() string {
	return e.err.Error()
}

func (e *CtlError) Unwrap() error {
	return e.err
}

func (e *CtlError) GetExitCode() CtlExitCode {
	return e.code
}

// ExitCode determines the exit code for an error returned by a command. An explicit CtlError takes
// precedence, otherwise well known backup errors are mapped to their own codes.
func ExitCode(err error) CtlExitCode {
	if err == nil {
		return Success
	}
	var ctlErr *CtlError
	if errors.As(err, &ctlErr) {
		return ctlErr.GetExitCode()
	}
	var (
		notFound       *backup.NotFoundError
		deviceNotFound *backup.DeviceNotFoundError
		entryNotFound  *backup.EntryNotFoundError
		blobMissing    *backup.BlobMissingError
		corrupt        *backup.CorruptManifestError
	)
	switch {
	case errors.As(err, &corrupt):
		return CorruptBackup
	case errors.As(err, &notFound), errors.As(err, &deviceNotFound), errors.As(err, &entryNotFound), errors.As(err, &blobMissing):
		return NotFound
	}
	return GeneralError
}
