package receiver

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/adcpstream/errors"
	"github.com/c360/adcpstream/testutil"
	"github.com/c360/adcpstream/tracker"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"", ModeGoroutine, false},
		{"goroutine", ModeGoroutine, false},
		{" Cooperative ", ModeCooperative, false},
		{"thread", 0, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			got, err := ParseMode(test.input)
			if test.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, errors.ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "goroutine", ModeGoroutine.String())
	assert.Equal(t, "cooperative", ModeCooperative.String())
	assert.Equal(t, "Mode(7)", Mode(7).String())
}

func TestBuilder_Goroutine(t *testing.T) {
	conn := testutil.NewScriptedConn(testutil.Data([]byte(">\n")))
	conn.EOFAtEnd = true

	r, err := NewBuilder(ModeGoroutine).Build(conn, testConfig(nil))
	require.NoError(t, err)
	require.NoError(t, r.Start())

	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("receiver did not end")
	}
	assert.Equal(t, tracker.StatePrompt, r.State())
}

func TestBuilder_CooperativeRunsOnCaller(t *testing.T) {
	conn := testutil.NewScriptedConn(testutil.Data([]byte(">\n")))
	conn.EOFAtEnd = true

	b := NewBuilder(ModeCooperative)
	r, err := b.Build(conn, testConfig(nil))
	require.NoError(t, err)
	require.NoError(t, r.Start())

	// Nothing runs until the owner steps the executor.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, conn.Reads())
	assert.Equal(t, LifecycleRunning, r.Lifecycle())

	exec := b.Executor.(*CooperativeExecutor)
	assert.Equal(t, 1, exec.Pending())
	exec.RunPending()

	assert.Equal(t, LifecycleEnded, r.Lifecycle())
	assert.Equal(t, tracker.StatePrompt, r.State())
}

func TestBuilder_SharesExecutor(t *testing.T) {
	b := NewBuilder(ModeCooperative)

	cfg := testConfig(nil)
	cfg.Name = "a"
	_, err := b.Build(testutil.NewScriptedConn(), cfg)
	require.NoError(t, err)
	first := b.Executor

	cfg.Name = "b"
	_, err = b.Build(testutil.NewScriptedConn(), cfg)
	require.NoError(t, err)
	assert.Same(t, first, b.Executor)
}

func TestBuilder_ExplicitExecutor(t *testing.T) {
	exec := NewCooperativeExecutor()
	b := &Builder{Mode: ModeGoroutine, Executor: exec}

	r, err := b.Build(testutil.NewScriptedConn(), testConfig(nil))
	require.NoError(t, err)
	require.NoError(t, r.Start())
	assert.Equal(t, 1, exec.Pending())
}

func TestBuilder_InvalidMode(t *testing.T) {
	_, err := NewBuilder(Mode(42)).Build(testutil.NewScriptedConn(), testConfig(nil))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestCooperativeExecutor_Order(t *testing.T) {
	exec := NewCooperativeExecutor()
	var order []int

	exec.Execute(func() {
		order = append(order, 1)
		exec.Execute(func() { order = append(order, 3) })
	})
	exec.Execute(func() { order = append(order, 2) })

	assert.Equal(t, 3, exec.RunPending())
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, 0, exec.RunPending())
}

func TestGoExecutor(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	GoExecutor{}.Execute(wg.Done)
	wg.Wait()
}
