package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/c360/adcpstream/pd0"
)

// BuildEnsemble encodes a valid PD0 frame. Without records it builds a small
// fixed leader, variable leader and velocity frame.
func BuildEnsemble(t testing.TB, records ...[]byte) []byte {
	t.Helper()

	if len(records) == 0 {
		records = [][]byte{
			pd0.NewRecord(pd0.IDFixedLeader, []byte{0x32, 0x05, 0x00, 0x10}),
			pd0.NewRecord(pd0.IDVariableLeader, []byte{0x01, 0x00, 0x18, 0x0A}),
			pd0.NewRecord(pd0.IDVelocity, []byte{0x00, 0x80, 0x00, 0x80, 0x00, 0x80, 0x00, 0x80}),
		}
	}

	frame, err := pd0.Encode(records...)
	require.NoError(t, err)
	return frame
}

// EnsembleEndingWith encodes a valid PD0 frame whose final checksum byte is
// last. It pads the velocity record until the checksum lands there.
func EnsembleEndingWith(t testing.TB, last byte) []byte {
	t.Helper()

	body := []byte{0x00, 0x80, 0x00, 0x80, 0x00, 0x80, 0x00, 0x80}
	for i := 0; i < 1024; i++ {
		frame, err := pd0.Encode(
			pd0.NewRecord(pd0.IDFixedLeader, []byte{0x32, 0x05, 0x00, 0x10}),
			pd0.NewRecord(pd0.IDVariableLeader, []byte{0x01, 0x00, 0x18, 0x0A}),
			pd0.NewRecord(pd0.IDVelocity, body),
		)
		require.NoError(t, err)
		if frame[len(frame)-1] == last {
			return frame
		}
		body = append(body, 0xFF)
	}
	require.FailNow(t, "no frame ends with the requested byte", "0x%02X", last)
	return nil
}

// CorruptChecksum returns a copy of frame with its checksum altered.
func CorruptChecksum(frame []byte) []byte {
	out := append([]byte(nil), frame...)
	out[len(out)-1] ^= 0xFF
	return out
}

// Marker renders a timestamp marker followed by CRLF.
func Marker(seconds string) []byte {
	return []byte(fmt.Sprintf("<OOI-TS %s TS>\r\n", seconds))
}

// Lines renders lines first..last, one number per line, each terminated
// by '\n'.
func Lines(first, last int) []byte {
	var sb strings.Builder
	for i := first; i <= last; i++ {
		fmt.Fprintf(&sb, "%d\n", i)
	}
	return []byte(sb.String())
}

// Split cuts data into chunks of at most size bytes.
func Split(data []byte, size int) [][]byte {
	var out [][]byte
	for len(data) > size {
		out = append(out, data[:size])
		data = data[size:]
	}
	if len(data) > 0 {
		out = append(out, data)
	}
	return out
}
