package transcript

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/adcpstream/errors"
)

type closingBuffer struct {
	bytes.Buffer
	closes int
}

func (c *closingBuffer) Close() error {
	c.closes++
	return nil
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, fmt.Errorf("disk full")
}

func TestPrefix(t *testing.T) {
	p := Prefix("PROMPT")
	assert.Equal(t, "\n              PROMPT| ", p)
	assert.Len(t, p, 1+stateWidth+2)
}

func TestWriter_MirrorWithPrefix(t *testing.T) {
	var out bytes.Buffer
	w := New(&out, true)

	require.NoError(t, w.Mirror([]byte("CS\r\n"), "PROMPT"))
	require.NoError(t, w.Mirror([]byte("abc"), "NONE"))
	require.NoError(t, w.Mirror([]byte("\n\n"), "TBD"))

	want := "CS\r" + Prefix("PROMPT") + "abc" + Prefix("TBD") + Prefix("TBD")
	assert.Equal(t, want, out.String())
	assert.Equal(t, int64(len(want)), w.BytesWritten())
}

func TestWriter_MirrorWithoutPrefix(t *testing.T) {
	var out bytes.Buffer
	w := New(&out, false)

	require.NoError(t, w.Mirror([]byte("line one\nline two\n"), "PROMPT"))
	assert.Equal(t, "line one\nline two\n", out.String())
}

func TestWriter_EndOnce(t *testing.T) {
	out := &closingBuffer{}
	w := New(out, true)

	require.NoError(t, w.Mirror([]byte(">"), "PROMPT"))
	require.NoError(t, w.End())
	require.NoError(t, w.End())
	require.NoError(t, w.Mirror([]byte("late"), "PROMPT"))

	assert.True(t, w.Ended())
	assert.Equal(t, ">"+EndMarker, out.String())
	assert.Equal(t, 1, strings.Count(out.String(), "<Receiver ended.>"))

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.Equal(t, 1, out.closes)
}

func TestWriter_EndAfterCloseIsNoop(t *testing.T) {
	out := &closingBuffer{}
	w := New(out, false)

	require.NoError(t, w.Close())
	require.NoError(t, w.End())
	assert.Empty(t, out.String())
}

func TestWriter_FlushesBufferedOutput(t *testing.T) {
	var out bytes.Buffer
	w := New(bufio.NewWriterSize(&out, 4096), false)

	require.NoError(t, w.Mirror([]byte("hello"), "TBD"))
	assert.Equal(t, "hello", out.String())
}

func TestWriter_WriteErrorIsTransient(t *testing.T) {
	w := New(failingWriter{}, false)

	err := w.Mirror([]byte("x"), "TBD")
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, int64(1), w.WriteErrors())

	// A failed write does not stop later ones from being attempted.
	require.Error(t, w.End())
	assert.Equal(t, int64(2), w.WriteErrors())
}

func TestOpenRotating(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "transcript.log")

	w, err := OpenRotating(RotateConfig{Filename: path, MaxSizeMB: 1, MaxBackups: 2}, true)
	require.NoError(t, err)

	require.NoError(t, w.Mirror([]byte("Workhorse\n>"), "TBD"))
	require.NoError(t, w.End())
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Workhorse"+Prefix("TBD")+">"+EndMarker, string(data))
}

func TestOpenRotating_RequiresFilename(t *testing.T) {
	_, err := OpenRotating(RotateConfig{}, true)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}
