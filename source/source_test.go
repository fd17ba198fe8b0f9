package source

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/adcpstream/errors"
	"github.com/c360/adcpstream/pkg/retry"
)

func fastRetry(attempts int) retry.Config {
	return retry.Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

// closedAddr returns an address nothing listens on.
func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		addr    string
		scheme  string
		target  string
		wantErr bool
	}{
		{"tcp://10.0.0.12:4001", "tcp", "10.0.0.12:4001", false},
		{"10.0.0.12:4001", "tcp", "10.0.0.12:4001", false},
		{"localhost:4001", "tcp", "localhost:4001", false},
		{"ws://relay:8080/adcp", "ws", "ws://relay:8080/adcp", false},
		{"wss://relay/adcp", "wss", "wss://relay/adcp", false},
		{"udp://10.0.0.12:4001", "", "", true},
		{"not an address", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			scheme, target, err := parseAddress(tt.addr)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsInvalid(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.scheme, scheme)
			assert.Equal(t, tt.target, target)
		})
	}
}

func TestDial_MissingAddress(t *testing.T) {
	_, err := Dial(context.Background(), Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingConfig)
}

func TestDialTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		_, _ = c.Write([]byte(">\n"))
		time.Sleep(100 * time.Millisecond)
	}()

	conn, err := Dial(context.Background(), Config{Address: "tcp://" + ln.Addr().String(), Retry: fastRetry(1)})
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	buf := make([]byte, 16)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, ">\n", string(buf[:n]))
}

func TestDialTCP_RetriesThenFails(t *testing.T) {
	var retries atomic.Int32
	rc := fastRetry(3)
	rc.OnRetry = func(int, error, time.Duration) { retries.Add(1) }

	_, err := Dial(context.Background(), Config{
		Address:     closedAddr(t),
		DialTimeout: 200 * time.Millisecond,
		Retry:       rc,
	})
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, int32(2), retries.Load())
}

func TestDialTCP_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DialTCP(ctx, closedAddr(t), time.Second, fastRetry(5))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

// wsServer upgrades one connection and hands it to serve.
func wsServer(t *testing.T, serve func(*websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		serve(c)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocket_StreamsMessages(t *testing.T) {
	url := wsServer(t, func(c *websocket.Conn) {
		_ = c.WriteMessage(websocket.TextMessage, []byte("abc\n"))
		_ = c.WriteMessage(websocket.BinaryMessage, []byte{0x7F, 0x7F, 0x01})
		_ = c.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		time.Sleep(50 * time.Millisecond)
	})

	conn, err := Dial(context.Background(), Config{Address: url, Retry: fastRetry(1)})
	require.NoError(t, err)
	defer conn.Close()

	var got []byte
	buf := make([]byte, 2)
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		n, err := conn.Read(buf)
		got = append(got, buf[:n]...)
		if err != nil {
			assert.ErrorIs(t, err, io.EOF)
			break
		}
	}
	assert.Equal(t, append([]byte("abc\n"), 0x7F, 0x7F, 0x01), got)
}

func TestWebSocket_DeadlineKeepsConnectionUsable(t *testing.T) {
	release := make(chan struct{})
	url := wsServer(t, func(c *websocket.Conn) {
		<-release
		_ = c.WriteMessage(websocket.TextMessage, []byte(">\n"))
		time.Sleep(50 * time.Millisecond)
	})

	ws, err := DialWebSocket(context.Background(), url, time.Second)
	require.NoError(t, err)
	defer ws.Close()

	buf := make([]byte, 8)
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(20*time.Millisecond)))
	_, err = ws.Read(buf)
	require.Error(t, err)
	assert.True(t, errors.IsTimeout(err))

	close(release)
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, err := ws.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, ">\n", string(buf[:n]))
}

func TestWebSocket_ExpiredDeadline(t *testing.T) {
	url := wsServer(t, func(c *websocket.Conn) { time.Sleep(50 * time.Millisecond) })

	ws, err := DialWebSocket(context.Background(), url, time.Second)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(-time.Second)))
	_, err = ws.Read(make([]byte, 1))
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
}

func TestWebSocket_ReadAfterClose(t *testing.T) {
	url := wsServer(t, func(c *websocket.Conn) {
		_, _, _ = c.ReadMessage()
	})

	ws, err := DialWebSocket(context.Background(), url, time.Second)
	require.NoError(t, err)

	require.NoError(t, ws.Close())
	assert.NoError(t, ws.Close(), "second Close is a no-op")

	_, err = ws.Read(make([]byte, 1))
	assert.ErrorIs(t, err, net.ErrClosed)
}

func TestDialWebSocket_Refused(t *testing.T) {
	_, err := DialWebSocket(context.Background(), "ws://"+closedAddr(t)+"/adcp", 200*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}
