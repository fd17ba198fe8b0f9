package source

import (
	"context"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/adcpstream/errors"
)

// WebSocket adapts a websocket connection carrying instrument bytes to a
// byte stream. Each binary or text message is appended to the stream.
//
// gorilla/websocket connections are unusable after a read deadline expires,
// so messages are read on a background goroutine and deadlines are applied
// to the wait for the next message instead. Read must not be called
// concurrently.
type WebSocket struct {
	conn   *websocket.Conn
	frames chan []byte
	closed chan struct{}

	errOnce sync.Once
	errDone chan struct{}
	readErr error

	deadlineMu sync.Mutex
	deadline   time.Time

	pending   []byte
	closeOnce sync.Once
}

// DialWebSocket connects to a ws:// or wss:// URL.
func DialWebSocket(ctx context.Context, url string, handshakeTimeout time.Duration) (*WebSocket, error) {
	if handshakeTimeout <= 0 {
		handshakeTimeout = DefaultDialTimeout
	}
	dialer := &websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
		Proxy:            websocket.DefaultDialer.Proxy,
	}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.WrapTransient(err, "source", "DialWebSocket", "dial websocket")
	}
	return NewWebSocket(conn), nil
}

// NewWebSocket wraps an established connection and starts reading it.
func NewWebSocket(conn *websocket.Conn) *WebSocket {
	ws := &WebSocket{
		conn:    conn,
		frames:  make(chan []byte, 16),
		closed:  make(chan struct{}),
		errDone: make(chan struct{}),
	}
	go ws.readLoop()
	return ws
}

func (ws *WebSocket) readLoop() {
	for {
		_, data, err := ws.conn.ReadMessage()
		if err != nil {
			ws.fail(err)
			return
		}
		if len(data) == 0 {
			continue
		}
		select {
		case ws.frames <- data:
		case <-ws.closed:
			return
		}
	}
}

func (ws *WebSocket) fail(err error) {
	ws.errOnce.Do(func() {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			err = io.EOF
		}
		ws.readErr = err
		close(ws.errDone)
	})
}

// Read returns buffered stream bytes, waiting for the next message until the
// read deadline. An expired deadline yields os.ErrDeadlineExceeded and leaves
// the connection usable. A normal close from the peer yields io.EOF once all
// received messages have been consumed.
func (ws *WebSocket) Read(p []byte) (int, error) {
	if len(ws.pending) > 0 {
		return ws.drain(p), nil
	}

	select {
	case <-ws.closed:
		return 0, net.ErrClosed
	default:
	}

	var timeout <-chan time.Time
	if d := ws.readDeadline(); !d.IsZero() {
		wait := time.Until(d)
		if wait <= 0 {
			return 0, os.ErrDeadlineExceeded
		}
		timer := time.NewTimer(wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case data := <-ws.frames:
		ws.pending = data
		return ws.drain(p), nil
	case <-ws.errDone:
		// Deliver messages that arrived before the error first.
		select {
		case data := <-ws.frames:
			ws.pending = data
			return ws.drain(p), nil
		default:
		}
		return 0, ws.readErr
	case <-ws.closed:
		return 0, net.ErrClosed
	case <-timeout:
		return 0, os.ErrDeadlineExceeded
	}
}

func (ws *WebSocket) drain(p []byte) int {
	n := copy(p, ws.pending)
	ws.pending = ws.pending[n:]
	return n
}

// SetReadDeadline sets the deadline for Read. A zero time waits forever.
func (ws *WebSocket) SetReadDeadline(t time.Time) error {
	ws.deadlineMu.Lock()
	defer ws.deadlineMu.Unlock()
	ws.deadline = t
	return nil
}

func (ws *WebSocket) readDeadline() time.Time {
	ws.deadlineMu.Lock()
	defer ws.deadlineMu.Unlock()
	return ws.deadline
}

// Close sends a close message and closes the connection. Pending reads
// return net.ErrClosed.
func (ws *WebSocket) Close() error {
	var err error
	ws.closeOnce.Do(func() {
		close(ws.closed)
		_ = ws.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = ws.conn.Close()
	})
	return err
}
