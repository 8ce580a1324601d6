package jarkeep

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
	"unicode/utf8"
)

// Archive wire format, version 1:
//
//	[1]  version byte (0x01)
//	[uv] record count
//	per record:
//	  [uv+n] name   [uv+n] value   [uv+n] domain   [uv+n] path
//	  [1]    flags  (bit0: has expiry, bit1: session-only)
//	  [8]    expiry as big-endian unix seconds, only when bit0 is set
//
// uv is an unsigned varint. Strings are raw UTF-8. The format is deliberately
// self-contained so the persisted blob never depends on a platform's native
// object archiver.
const archiveVersion = 0x01

const (
	archiveFlagHasExpiry   = 0x01
	archiveFlagSessionOnly = 0x02
)

var errArchiveTruncated = errors.New("jarkeep: archive truncated")

// EncodeArchive serializes records into the portable archive form. An empty
// record set returns ErrNoCookies: "nothing worth persisting" must never
// overwrite a previously stored session.
func EncodeArchive(records []Cookie) ([]byte, error) {
	if len(records) == 0 {
		return nil, ErrNoCookies
	}

	var buf bytes.Buffer
	buf.WriteByte(archiveVersion)
	writeUvarint(&buf, uint64(len(records)))
	for _, c := range records {
		writeArchiveString(&buf, c.Name)
		writeArchiveString(&buf, c.Value)
		writeArchiveString(&buf, c.Domain)
		writeArchiveString(&buf, c.Path)

		var flags byte
		if c.Expires != nil {
			flags |= archiveFlagHasExpiry
		}
		if c.SessionOnly {
			flags |= archiveFlagSessionOnly
		}
		buf.WriteByte(flags)
		if c.Expires != nil {
			var sec [8]byte
			binary.BigEndian.PutUint64(sec[:], uint64(c.Expires.Unix()))
			buf.Write(sec[:])
		}
	}
	return buf.Bytes(), nil
}

// DecodeArchive parses an archive blob back into cookie records.
// DecodeArchive(EncodeArchive(x)) is field-wise equal to x; expiry times come
// back in UTC at second precision.
func DecodeArchive(blob []byte) ([]Cookie, error) {
	r := bytes.NewReader(blob)

	version, err := r.ReadByte()
	if err != nil {
		return nil, errArchiveTruncated
	}
	if version != archiveVersion {
		return nil, fmt.Errorf("jarkeep: unsupported archive version %d", version)
	}

	count, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, errArchiveTruncated
	}
	if count > uint64(r.Len()) {
		// Each record needs at least one byte; a larger count is garbage.
		return nil, fmt.Errorf("jarkeep: archive record count %d exceeds payload", count)
	}

	out := make([]Cookie, 0, count)
	for i := uint64(0); i < count; i++ {
		var c Cookie
		if c.Name, err = readArchiveString(r); err != nil {
			return nil, err
		}
		if c.Value, err = readArchiveString(r); err != nil {
			return nil, err
		}
		if c.Domain, err = readArchiveString(r); err != nil {
			return nil, err
		}
		if c.Path, err = readArchiveString(r); err != nil {
			return nil, err
		}

		flags, err := r.ReadByte()
		if err != nil {
			return nil, errArchiveTruncated
		}
		if flags&archiveFlagHasExpiry != 0 {
			var sec [8]byte
			if _, err := io.ReadFull(r, sec[:]); err != nil {
				return nil, errArchiveTruncated
			}
			t := time.Unix(int64(binary.BigEndian.Uint64(sec[:])), 0).UTC()
			c.Expires = &t
		}
		c.SessionOnly = flags&archiveFlagSessionOnly != 0
		out = append(out, c)
	}

	if r.Len() != 0 {
		return nil, errors.New("jarkeep: trailing bytes after archive records")
	}
	return out, nil
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func writeArchiveString(buf *bytes.Buffer, s string) {
	writeUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

func readArchiveString(r *bytes.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", errArchiveTruncated
	}
	if n > uint64(r.Len()) {
		return "", errArchiveTruncated
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", errArchiveTruncated
	}
	if !utf8.Valid(b) {
		return "", errors.New("jarkeep: archive string is not valid UTF-8")
	}
	return string(b), nil
}
