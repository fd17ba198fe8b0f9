package pd0

import (
	"bytes"
	"fmt"

	"github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"

	"github.com/c360/adcpstream/errors"
)

// Result is the outcome of a single Scan.
//
// Exactly one of Pending, Rest or neither is set. Text and Rest alias the
// scanned buffer.
type Result struct {
	// Text precedes any signature and can be released downstream.
	Text []byte

	// Ensemble is set when a complete, valid frame was found.
	Ensemble *Ensemble

	// Rest follows the consumed span and must be scanned again.
	Rest []byte

	// Pending may still become (part of) an ensemble and must be held
	// until more bytes arrive.
	Pending []byte

	// Rejected carries the reason a frame was discarded.
	Rejected error
}

// Scan looks for the first ensemble in buf.
//
//   - no signature: everything is Text, except a trailing lone 0x7F which is
//     Pending since it may be the first half of a signature
//   - signature with too few bytes to decide: text before it, rest Pending
//   - invalid header or checksum: text before it, the two signature bytes
//     dropped, Rest is everything after them
//   - valid: text before it, the Ensemble, and Rest after it
func Scan(buf []byte) Result {
	idx := bytes.Index(buf, signature)
	if idx < 0 {
		if n := len(buf); n > 0 && buf[n-1] == HeaderID {
			return Result{Text: buf[:n-1], Pending: buf[n-1:]}
		}
		return Result{Text: buf}
	}

	text, frame := buf[:idx], buf[idx:]

	hdr, complete, err := readHeader(frame)
	if err != nil {
		return Result{Text: text, Rest: frame[len(signature):], Rejected: err}
	}
	if !complete {
		return Result{Text: text, Pending: frame}
	}

	total := int(hdr.NumBytes) + ChecksumLen
	if len(frame) < total {
		return Result{Text: text, Pending: frame}
	}

	want := le16(frame[hdr.NumBytes:total])
	if got := checksum(frame[:hdr.NumBytes]); got != want {
		err := errors.WrapInvalid(
			fmt.Errorf("%w: computed 0x%04X, frame carries 0x%04X", errors.ErrChecksumFailed, got, want),
			"pd0", "Scan", "verify checksum")
		return Result{Text: text, Rest: frame[len(signature):], Rejected: err}
	}

	raw := make([]byte, total)
	copy(raw, frame[:total])

	return Result{
		Text: text,
		Ensemble: &Ensemble{
			Header:    hdr,
			DataTypes: dataTypes(hdr, raw),
			Checksum:  want,
			Raw:       raw,
		},
		Rest: frame[total:],
	}
}

// readHeader decodes as much of the header as frame holds. It rejects a
// header as soon as the available bytes prove it invalid, so a corrupt
// length field never stalls the stream waiting for bytes that will not come.
// complete is false when more bytes are needed to decide.
func readHeader(frame []byte) (hdr Header, complete bool, err error) {
	if len(frame) < fixedHeaderLen {
		return hdr, false, nil
	}

	stream := kaitai.NewStream(bytes.NewReader(frame))
	if hdr.ID, err = stream.ReadU1(); err != nil {
		return hdr, false, nil
	}
	if hdr.DataSource, err = stream.ReadU1(); err != nil {
		return hdr, false, nil
	}
	if hdr.NumBytes, err = stream.ReadU2le(); err != nil {
		return hdr, false, nil
	}
	if hdr.Spare, err = stream.ReadU1(); err != nil {
		return hdr, false, nil
	}
	if hdr.NumDataTypes, err = stream.ReadU1(); err != nil {
		return hdr, false, nil
	}

	d := int(hdr.NumDataTypes)
	tableEnd := fixedHeaderLen + 2*d
	if d < 1 || d > MaxDataTypes {
		return hdr, false, invalidHeader("data type count %d out of range", d)
	}
	// Every record needs at least its 2-byte ID after the table.
	if int(hdr.NumBytes) < tableEnd+2*d {
		return hdr, false, invalidHeader("length %d too short for %d data types", hdr.NumBytes, d)
	}
	if len(frame) < tableEnd {
		return hdr, false, nil
	}

	hdr.Offsets = make([]uint16, d)
	prev := tableEnd - 2
	for i := range hdr.Offsets {
		off, rerr := stream.ReadU2le()
		if rerr != nil {
			return hdr, false, nil
		}
		if int(off) < prev+2 || int(off)+2 > int(hdr.NumBytes) {
			return hdr, false, invalidHeader("offset %d of data type %d out of order or range", off, i)
		}
		hdr.Offsets[i] = off
		prev = int(off)
	}

	return hdr, true, nil
}

func invalidHeader(format string, args ...any) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: "+format, append([]any{errors.ErrInvalidFrame}, args...)...),
		"pd0", "Scan", "validate header")
}

func dataTypes(hdr Header, raw []byte) []DataType {
	out := make([]DataType, len(hdr.Offsets))
	for i, off := range hdr.Offsets {
		end := int(hdr.NumBytes)
		if i+1 < len(hdr.Offsets) {
			end = int(hdr.Offsets[i+1])
		}
		out[i] = DataType{
			ID:     le16(raw[off:]),
			Offset: int(off),
			Length: end - int(off),
		}
	}
	return out
}
