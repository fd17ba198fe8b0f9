package transcript

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/c360/adcpstream/errors"
)

// EndMarker is appended once when the receiver ends.
const EndMarker = "\n\n<Receiver ended.>\n\n"

// stateWidth is the field width of the state prefix.
const stateWidth = 20

type flusher interface {
	Flush() error
}

// Writer is an append-only transcript. It is safe for concurrent use, though
// in practice only the receiver loop writes to it.
type Writer struct {
	mu          sync.Mutex
	out         io.Writer
	prefixState bool
	ended       bool
	closed      bool

	bytesWritten atomic.Int64
	writeErrors  atomic.Int64
}

// New wraps out. When out also implements io.Closer, Close closes it; when it
// implements Flush() error, every write is flushed.
func New(out io.Writer, prefixState bool) *Writer {
	return &Writer{out: out, prefixState: prefixState}
}

// Prefix returns the annotation inserted after each newline for state.
func Prefix(state string) string {
	return fmt.Sprintf("\n%*s| ", stateWidth, state)
}

// Mirror appends data, prefixing every newline with state when enabled.
// Writes after End are dropped.
func (w *Writer) Mirror(data []byte, state string) error {
	if len(data) == 0 {
		return nil
	}

	if w.prefixState {
		data = bytes.ReplaceAll(data, []byte{'\n'}, []byte(Prefix(state)))
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ended || w.closed {
		return nil
	}
	return w.write(data, "Mirror")
}

// End appends EndMarker. Only the first call writes.
func (w *Writer) End() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ended || w.closed {
		return nil
	}
	w.ended = true
	return w.write([]byte(EndMarker), "End")
}

// Close releases the underlying writer if it is closable. Only the first
// call has an effect.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if c, ok := w.out.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return errors.Wrap(err, "Transcript", "Close", "close output")
		}
	}
	return nil
}

// Ended reports whether the end marker has been written.
func (w *Writer) Ended() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ended
}

// BytesWritten returns the number of bytes accepted by the output.
func (w *Writer) BytesWritten() int64 {
	return w.bytesWritten.Load()
}

// WriteErrors returns the number of failed writes.
func (w *Writer) WriteErrors() int64 {
	return w.writeErrors.Load()
}

// write must be called with mu held.
func (w *Writer) write(data []byte, method string) error {
	n, err := w.out.Write(data)
	w.bytesWritten.Add(int64(n))
	if err == nil {
		if f, ok := w.out.(flusher); ok {
			err = f.Flush()
		}
	}
	if err != nil {
		w.writeErrors.Add(1)
		return errors.WrapTransient(err, "Transcript", method, "write transcript")
	}
	return nil
}

// RotateConfig configures a size-rotated transcript file.
type RotateConfig struct {
	Filename   string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// OpenRotating opens a rotating transcript file, creating its directory.
func OpenRotating(cfg RotateConfig, prefixState bool) (*Writer, error) {
	if cfg.Filename == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Transcript", "OpenRotating", "check filename")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Filename), 0o755); err != nil {
		return nil, errors.WrapFatal(err, "Transcript", "OpenRotating", "create transcript directory")
	}

	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 100
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    maxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return New(rotator, prefixState), nil
}
