// Package tsmark extracts timestamp markers inserted into an instrument
// stream by the serial-to-network bridge.
//
// A marker has the form
//
//	<OOI-TS 1700000000.125 TS>
//
// with seconds since the Unix epoch and an optional fraction. A "\r\n" or
// "\n" directly after the marker belongs to the marker and is removed with
// it, even when it arrives in a later read.
package tsmark

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/c360/adcpstream/errors"
	"github.com/c360/adcpstream/pkg/timestamp"
)

// DefaultMaxMarkerLen bounds how long a started marker may stay open before
// its opening bytes are released as text.
const DefaultMaxMarkerLen = 64

var (
	openTag  = []byte("<OOI-TS ")
	closeTag = []byte(" TS>")
	bodyRe   = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
)

// Marker is one decoded timestamp.
type Marker struct {
	Seconds float64
	Raw     string
}

// Parse decodes a complete marker such as "<OOI-TS 1700000000.5 TS>".
func Parse(raw string) (*Marker, error) {
	b := []byte(raw)
	if !bytes.HasPrefix(b, openTag) || !bytes.HasSuffix(b, closeTag) || len(b) < len(openTag)+len(closeTag) {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrInvalidMarker, raw), "tsmark", "Parse", "match delimiters")
	}
	return parseBody(b[len(openTag) : len(b)-len(closeTag)])
}

func parseBody(body []byte) (*Marker, error) {
	if !bodyRe.Match(body) {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: body %q", errors.ErrInvalidMarker, body), "tsmark", "Parse", "match body")
	}
	sec, err := strconv.ParseFloat(string(body), 64)
	if err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrInvalidMarker, err), "tsmark", "Parse", "parse seconds")
	}
	raw := make([]byte, 0, len(openTag)+len(body)+len(closeTag))
	raw = append(append(append(raw, openTag...), body...), closeTag...)
	return &Marker{Seconds: sec, Raw: string(raw)}, nil
}

// UnixMilli returns the marker time in Unix milliseconds.
func (m *Marker) UnixMilli() int64 {
	return timestamp.FromEpochSeconds(m.Seconds)
}

// Time returns the marker time.
func (m *Marker) Time() time.Time {
	return timestamp.FromUnixMs(m.UnixMilli())
}

func (m *Marker) String() string {
	return timestamp.Format(m.UnixMilli())
}
