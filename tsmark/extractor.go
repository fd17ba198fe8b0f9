package tsmark

import (
	"bytes"
)

type scanStatus int

const (
	statusIncomplete scanStatus = iota
	statusMalformed
	statusComplete
)

// Extractor removes markers from a byte stream split across reads. It holds
// any bytes that may still turn out to be part of a marker. Not safe for
// concurrent use.
type Extractor struct {
	maxLen      int
	pending     []byte
	afterMarker bool
}

// NewExtractor creates an extractor. maxLen <= 0 selects DefaultMaxMarkerLen.
func NewExtractor(maxLen int) *Extractor {
	if maxLen <= 0 {
		maxLen = DefaultMaxMarkerLen
	}
	return &Extractor{maxLen: maxLen}
}

// Extract appends buf to the held bytes and removes at most one marker.
//
// It returns the marker, if any, and the text that precedes it. Bytes after
// a marker are held, so callers drain a buffer by calling Extract(nil) until
// it returns a nil marker. The returned text is never aliased by the
// extractor.
func (x *Extractor) Extract(buf []byte) (*Marker, []byte) {
	data := buf
	if len(x.pending) > 0 {
		data = append(x.pending, buf...)
		x.pending = nil
	}

	if x.afterMarker {
		switch {
		case len(data) == 0:
			return nil, nil
		case data[0] == '\n':
			data = data[1:]
		case data[0] == '\r' && len(data) == 1:
			x.hold(data)
			return nil, nil
		case data[0] == '\r' && data[1] == '\n':
			data = data[2:]
		}
		x.afterMarker = false
	}

	var text []byte
	from := 0
	for {
		idx := bytes.Index(data[from:], openTag)
		if idx < 0 {
			keep := partialOpen(data[from:])
			text = append(text, data[from:len(data)-keep]...)
			x.hold(data[len(data)-keep:])
			return nil, text
		}

		start := from + idx
		marker, end, status := x.scan(data[start:])
		switch status {
		case statusIncomplete:
			text = append(text, data[from:start]...)
			x.hold(data[start:])
			return nil, text
		case statusMalformed:
			// Release the '<' and look again after it.
			text = append(text, data[from:start+1]...)
			from = start + 1
		case statusComplete:
			text = append(text, data[from:start]...)
			x.hold(data[start+end:])
			x.afterMarker = true
			return marker, text
		}
	}
}

// Pending reports how many bytes are held.
func (x *Extractor) Pending() int {
	return len(x.pending)
}

// ReleasePartial returns the held bytes when they are only a proper prefix
// of the open tag, such as a lone '<'. A held marker that has begun past the
// open tag stays held.
func (x *Extractor) ReleasePartial() []byte {
	if x.afterMarker || len(x.pending) == 0 || len(x.pending) >= len(openTag) {
		return nil
	}
	if !bytes.HasPrefix(openTag, x.pending) {
		return nil
	}
	out := x.pending
	x.pending = nil
	return out
}

// Flush returns held bytes as text and resets the extractor.
func (x *Extractor) Flush() []byte {
	out := x.pending
	x.pending = nil
	x.afterMarker = false
	return out
}

func (x *Extractor) hold(b []byte) {
	if len(b) == 0 {
		x.pending = nil
		return
	}
	x.pending = append([]byte(nil), b...)
}

// scan inspects b, which starts with the open tag. end is the marker length
// when complete.
func (x *Extractor) scan(b []byte) (*Marker, int, scanStatus) {
	body := b[len(openTag):]
	j := 0
	for j < len(body) && (body[j] == '.' || (body[j] >= '0' && body[j] <= '9')) {
		j++
	}

	rest := body[j:]
	if len(rest) < len(closeTag) {
		if !bytes.HasPrefix(closeTag, rest) || len(b) >= x.maxLen {
			return nil, 0, statusMalformed
		}
		return nil, 0, statusIncomplete
	}
	if !bytes.HasPrefix(rest, closeTag) {
		return nil, 0, statusMalformed
	}

	end := len(openTag) + j + len(closeTag)
	if end > x.maxLen {
		return nil, 0, statusMalformed
	}
	marker, err := parseBody(body[:j])
	if err != nil {
		return nil, 0, statusMalformed
	}
	return marker, end, statusComplete
}

// partialOpen returns the length of the longest suffix of b that is a proper
// prefix of the open tag.
func partialOpen(b []byte) int {
	n := len(openTag) - 1
	if n > len(b) {
		n = len(b)
	}
	for ; n > 0; n-- {
		if bytes.HasPrefix(openTag, b[len(b)-n:]) {
			return n
		}
	}
	return 0
}
