package pd0

import (
	"encoding/binary"
	"fmt"

	"github.com/c360/adcpstream/errors"
)

// NewRecord returns a data-type record: the little-endian id followed by body.
func NewRecord(id uint16, body []byte) []byte {
	rec := make([]byte, 2+len(body))
	binary.LittleEndian.PutUint16(rec, id)
	copy(rec[2:], body)
	return rec
}

// Encode assembles records into a complete ensemble frame with a valid
// offset table and checksum.
func Encode(records ...[]byte) ([]byte, error) {
	d := len(records)
	if d < 1 || d > MaxDataTypes {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %d records", errors.ErrInvalidFrame, d), "pd0", "Encode", "count records")
	}

	n := fixedHeaderLen + 2*d
	for i, rec := range records {
		if len(rec) < 2 {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: record %d shorter than its id", errors.ErrInvalidFrame, i), "pd0", "Encode", "check record")
		}
		n += len(rec)
	}
	if n > 0xFFFF {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %d bytes", errors.ErrInvalidFrame, n), "pd0", "Encode", "check length")
	}

	frame := make([]byte, n+ChecksumLen)
	frame[0], frame[1] = HeaderID, HeaderID
	binary.LittleEndian.PutUint16(frame[2:], uint16(n))
	frame[5] = byte(d)

	pos := fixedHeaderLen + 2*d
	for i, rec := range records {
		binary.LittleEndian.PutUint16(frame[fixedHeaderLen+2*i:], uint16(pos))
		pos += copy(frame[pos:], rec)
	}
	binary.LittleEndian.PutUint16(frame[n:], checksum(frame[:n]))

	return frame, nil
}
