//go:build integration

package publish

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/adcpstream/natsclient"
	"github.com/c360/adcpstream/receiver"
	"github.com/c360/adcpstream/testutil"
)

func TestIntegration_ReceiverToJetStream(t *testing.T) {
	tc := natsclient.NewTestClient(t, natsclient.WithStream("ADCP", "adcp.>"))

	received := make(chan *nats.Msg, 4)
	sub, err := tc.GetNativeConnection().ChanSubscribe(DefaultSubject, received)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	cfg := DefaultConfig()
	cfg.JetStream = true
	pub, err := New(tc.Client, cfg)
	require.NoError(t, err)
	require.NoError(t, pub.Start(context.Background()))

	frame := testutil.BuildEnsemble(t)
	conn := testutil.NewScriptedConn(
		testutil.Data(testutil.Marker("1700000000")),
		testutil.Data(frame),
	)
	conn.EOFAtEnd = true

	rcfg := receiver.DefaultConfig()
	rcfg.Name = "it"
	rcfg.ReadTimeout = 50 * time.Millisecond
	rcfg.Listener = pub.Listener()

	r, err := receiver.NewBuilder(receiver.ModeGoroutine).Build(conn, rcfg)
	require.NoError(t, err)
	pub.Bind(r)
	require.NoError(t, r.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, r.Wait(ctx))
	require.NoError(t, pub.Stop(5*time.Second))

	select {
	case m := <-received:
		var msg Message
		require.NoError(t, json.Unmarshal(m.Data, &msg))
		assert.Equal(t, r.ID(), msg.Session)
		assert.Equal(t, "it", msg.Receiver)
		assert.Equal(t, "2023-11-14T22:13:20.000Z", msg.InstrumentTime)
		assert.Equal(t, frame, msg.Raw)
	case <-ctx.Done():
		t.Fatal("no ensemble published")
	}
	assert.Equal(t, int64(1), pub.Stats().Published)
}
