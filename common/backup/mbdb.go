package backup

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// mbdbMagic starts every Manifest.mbdb file: "mbdb" followed by the format version 5.0.
var mbdbMagic = []byte{'m', 'b', 'd', 'b', 0x05, 0x00}

const mbdbNullString = 0xffff

// parsedRecord is a manifest record as read from disk, before its storage key is derived.
type parsedRecord struct {
	raw   rawRecord
	entry Entry
}

// recordError ties a parse failure to the zero based index of the record it occurred in.
type recordError struct {
	Index int
	Err   error
}

func (e *recordError) Error() string {
	return fmt.Sprintf("record %d: %s", e.Index, e.Err)
}

func (e *recordError) Unwrap() error {
	return e.Err
}

// mbdbReader decodes the big endian primitives records are built from.
type mbdbReader struct {
	buf []byte
	off int
}

func (r *mbdbReader) next(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *mbdbReader) uint8() (uint8, error) {
	b, err := r.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *mbdbReader) uint16() (uint16, error) {
	b, err := r.next(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *mbdbReader) uint32() (uint32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *mbdbReader) uint64() (uint64, error) {
	b, err := r.next(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// string reads a length prefixed string. The length 0xffff marks an absent value.
func (r *mbdbReader) string() (string, error) {
	n, err := r.uint16()
	if err != nil {
		return "", err
	}
	if n == mbdbNullString {
		return "", nil
	}
	b, err := r.next(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *mbdbReader) done() bool {
	return r.off >= len(r.buf)
}

// parseMBDB decodes a complete Manifest.mbdb file. Failures inside a record are returned as a
// *recordError.
func parseMBDB(ctx context.Context, data []byte) ([]parsedRecord, error) {
	if !bytes.HasPrefix(data, mbdbMagic) {
		return nil, errors.New("missing mbdb header")
	}
	r := &mbdbReader{buf: data, off: len(mbdbMagic)}

	var records []parsedRecord
	for i := 0; !r.done(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := readMBDBRecord(r)
		if err != nil {
			return nil, &recordError{Index: i, Err: err}
		}
		records = append(records, rec)
	}
	return records, nil
}

func readMBDBRecord(r *mbdbReader) (parsedRecord, error) {
	var e Entry
	var err error
	if e.Domain, err = r.string(); err != nil {
		return parsedRecord{}, err
	}
	if e.RelativePath, err = r.string(); err != nil {
		return parsedRecord{}, err
	}
	if e.LinkTarget, err = r.string(); err != nil {
		return parsedRecord{}, err
	}
	// Data hash and encryption key. Neither is needed to locate a blob.
	for range 2 {
		if _, err = r.string(); err != nil {
			return parsedRecord{}, err
		}
	}

	mode, err := r.uint16()
	if err != nil {
		return parsedRecord{}, err
	}
	e.Mode = uint32(mode)
	e.Kind = entryKindFromMode(e.Mode)
	if e.Inode, err = r.uint64(); err != nil {
		return parsedRecord{}, err
	}
	if e.UserID, err = r.uint32(); err != nil {
		return parsedRecord{}, err
	}
	if e.GroupID, err = r.uint32(); err != nil {
		return parsedRecord{}, err
	}

	var times [3]uint32
	for i := range times {
		if times[i], err = r.uint32(); err != nil {
			return parsedRecord{}, err
		}
	}
	// mtime, atime, ctime. Access time is not tracked.
	e.Modified = unixTime(int64(times[0]))
	e.Changed = unixTime(int64(times[2]))

	size, err := r.uint64()
	if err != nil {
		return parsedRecord{}, err
	}
	e.Size = int64(size)
	if e.ProtectionClass, err = r.uint8(); err != nil {
		return parsedRecord{}, err
	}

	props, err := r.uint8()
	if err != nil {
		return parsedRecord{}, err
	}
	for range props {
		if _, err = r.string(); err != nil {
			return parsedRecord{}, err
		}
		if _, err = r.string(); err != nil {
			return parsedRecord{}, err
		}
	}

	return parsedRecord{
		raw:   rawRecord{Domain: e.Domain, RelativePath: e.RelativePath},
		entry: e,
	}, nil
}
