package tsmark

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/adcpstream/errors"
)

// drain feeds chunks and collects every marker and all released text.
func drain(x *Extractor, chunks ...[]byte) ([]*Marker, []byte) {
	var markers []*Marker
	var text []byte
	for _, c := range chunks {
		m, t := x.Extract(c)
		for {
			text = append(text, t...)
			if m == nil {
				break
			}
			markers = append(markers, m)
			m, t = x.Extract(nil)
		}
	}
	return markers, text
}

func TestParse(t *testing.T) {
	m, err := Parse("<OOI-TS 1700000000.125 TS>")
	require.NoError(t, err)
	assert.Equal(t, 1700000000.125, m.Seconds)
	assert.Equal(t, int64(1700000000125), m.UnixMilli())
	assert.Equal(t, time.UnixMilli(1700000000125), m.Time())
	assert.Equal(t, "2023-11-14T22:13:20.125Z", m.String())

	m, err = Parse("<OOI-TS 42 TS>")
	require.NoError(t, err)
	assert.Equal(t, 42.0, m.Seconds)

	for _, bad := range []string{"<OOI-TS TS>", "<OOI-TS 1.2.3 TS>", "<OOI-TS 12x TS>", "OOI-TS 1 TS>", "<OOI-TS 1."} {
		_, err := Parse(bad)
		assert.ErrorIs(t, err, errors.ErrInvalidMarker, bad)
		assert.True(t, errors.IsInvalid(err), bad)
	}
}

func TestExtract_Single(t *testing.T) {
	x := NewExtractor(0)

	m, text := x.Extract([]byte("before<OOI-TS 1700000000.5 TS>\r\nafter"))
	require.NotNil(t, m)
	assert.Equal(t, 1700000000.5, m.Seconds)
	assert.Equal(t, "<OOI-TS 1700000000.5 TS>", m.Raw)
	assert.Equal(t, []byte("before"), text)

	m, text = x.Extract(nil)
	assert.Nil(t, m)
	assert.Equal(t, []byte("after"), text)
	assert.Equal(t, 0, x.Pending())
}

func TestExtract_NoMarker(t *testing.T) {
	x := NewExtractor(0)
	m, text := x.Extract([]byte("CS\r\n>"))
	assert.Nil(t, m)
	assert.Equal(t, []byte("CS\r\n>"), text)
}

func TestExtract_MultipleMarkers(t *testing.T) {
	input := "a<OOI-TS 1 TS>\nb<OOI-TS 2.5 TS>c<OOI-TS 3 TS>"
	markers, text := drain(NewExtractor(0), []byte(input))

	require.Len(t, markers, 3)
	assert.Equal(t, 1.0, markers[0].Seconds)
	assert.Equal(t, 2.5, markers[1].Seconds)
	assert.Equal(t, 3.0, markers[2].Seconds)
	assert.Equal(t, []byte("abc"), text)
}

func TestExtract_HoldsPartialPrefix(t *testing.T) {
	x := NewExtractor(0)

	m, text := x.Extract([]byte("data <OOI"))
	assert.Nil(t, m)
	assert.Equal(t, []byte("data "), text)
	assert.Equal(t, 4, x.Pending())

	m, text = x.Extract([]byte("-TS 99 TS>"))
	require.NotNil(t, m)
	assert.Equal(t, 99.0, m.Seconds)
	assert.Empty(t, text)
}

func TestExtract_NewlineAcrossReads(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		text   string
	}{
		{"lf next read", []string{"<OOI-TS 1 TS>", "\nnext"}, "next"},
		{"crlf next read", []string{"<OOI-TS 1 TS>", "\r\nnext"}, "next"},
		{"crlf split", []string{"<OOI-TS 1 TS>\r", "\nnext"}, "next"},
		{"cr alone", []string{"<OOI-TS 1 TS>\r", "next"}, "\rnext"},
		{"empty read between", []string{"<OOI-TS 1 TS>", "", "\nnext"}, "next"},
		{"no newline", []string{"<OOI-TS 1 TS>", "next\n"}, "next\n"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			chunks := make([][]byte, len(test.chunks))
			for i, c := range test.chunks {
				chunks[i] = []byte(c)
			}
			markers, text := drain(NewExtractor(0), chunks...)
			require.Len(t, markers, 1)
			assert.Equal(t, test.text, string(text))
		})
	}
}

func TestExtract_MalformedReleasedAsText(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"bad body", "x<OOI-TS 12ab TS>y"},
		{"bad close", "x<OOI-TS 12 XX>y"},
		{"two dots", "x<OOI-TS 1.2.3 TS>y"},
		{"empty body", "x<OOI-TS  TS>y"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			markers, text := drain(NewExtractor(0), []byte(test.input))
			assert.Empty(t, markers)
			assert.Equal(t, test.input, string(text))
		})
	}
}

func TestExtract_OverlongMarkerReleased(t *testing.T) {
	x := NewExtractor(20)
	input := "<OOI-TS 12345678901234567890"

	m, text := x.Extract([]byte(input))
	assert.Nil(t, m)
	assert.Equal(t, input, string(text))
	assert.Equal(t, 0, x.Pending())
}

func TestExtract_SplitInvariance(t *testing.T) {
	stream := []byte("CS\r\n<OOI-TS 1700000000.25 TS>\r\n\x7f\x7f<bin>>\n<OOI-TS 1700000001 TS>\n>\r\n<OOI-T")
	wantMarkers, wantText := drain(NewExtractor(0), stream)
	require.Len(t, wantMarkers, 2)

	for i := 0; i <= len(stream); i++ {
		for j := i; j <= len(stream); j++ {
			x := NewExtractor(0)
			markers, text := drain(x, stream[:i], stream[i:j], stream[j:])
			text = append(text, x.Flush()...)

			require.Len(t, markers, 2, "split %d/%d", i, j)
			assert.Equal(t, wantMarkers[0].Seconds, markers[0].Seconds)
			assert.Equal(t, wantMarkers[1].Seconds, markers[1].Seconds)

			full := append(append([]byte{}, wantText...), []byte("<OOI-T")...)
			assert.Equal(t, string(full), string(text), "split %d/%d", i, j)
		}
	}
}

func TestExtract_Flush(t *testing.T) {
	x := NewExtractor(0)
	_, text := x.Extract([]byte("tail <OOI-TS 12"))
	assert.Equal(t, "tail ", string(text))
	assert.Equal(t, "<OOI-TS 12", string(x.Flush()))
	assert.Nil(t, x.Flush())
}

func TestExtract_ReleasePartial(t *testing.T) {
	x := NewExtractor(0)

	_, text := x.Extract([]byte("frame<OO"))
	assert.Equal(t, "frame", string(text))
	assert.Equal(t, "<OO", string(x.ReleasePartial()))
	assert.Zero(t, x.Pending())

	_, text = x.Extract([]byte("tail <OOI-TS 12"))
	assert.Equal(t, "tail ", string(text))
	assert.Nil(t, x.ReleasePartial(), "a marker past the open tag stays held")
	assert.Equal(t, "<OOI-TS 12", string(x.Flush()))
}
