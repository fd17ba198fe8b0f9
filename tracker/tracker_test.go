package tracker

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/adcpstream/pd0"
	"github.com/c360/adcpstream/tsmark"
)

func newTracker(t *testing.T, onTransition func(Transition)) *Tracker {
	t.Helper()
	tr, err := New(Options{OnTransition: onTransition})
	require.NoError(t, err)
	return tr
}

func ensemble(t *testing.T) *pd0.Ensemble {
	t.Helper()
	frame, err := pd0.Encode(pd0.NewRecord(pd0.IDFixedLeader, []byte{1}))
	require.NoError(t, err)
	r := pd0.Scan(frame)
	require.NotNil(t, r.Ensemble)
	return r.Ensemble
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "TBD", StateUnknown.String())
	assert.Equal(t, "PROMPT", StatePrompt.String())
	assert.Equal(t, "COLLECTING_DATA", StateCollectingData.String())
	assert.Equal(t, "NONE", StateUnset.String())
	assert.Equal(t, "INVALID", State(99).String())
}

func TestTracker_InitialState(t *testing.T) {
	tr := newTracker(t, nil)
	assert.Equal(t, StateUnknown, tr.State())
	assert.Empty(t, tr.Lines())
	assert.Equal(t, "", tr.LastLine())
	assert.Nil(t, tr.LatestEnsemble())
	assert.Nil(t, tr.LatestTimestamp())
}

func TestTracker_PromptThenText(t *testing.T) {
	var transitions []Transition
	tr := newTracker(t, func(tr Transition) { transitions = append(transitions, tr) })

	tr.OnText([]byte("abc\n" + DefaultPrompt + "\n"))

	require.Len(t, transitions, 2)
	assert.Equal(t, Transition{From: StateUnknown, To: StateUnset, Line: "abc"}, transitions[0])
	assert.Equal(t, Transition{From: StateUnset, To: StatePrompt, Line: ">"}, transitions[1])
	assert.Equal(t, StatePrompt, tr.State())

	tr.OnText([]byte("Workhorse Broadband ADCP\r\n"))
	assert.Equal(t, StateUnknown, tr.State())
	assert.Equal(t, StateUnset, tr.RawState())
	assert.Len(t, transitions, 3)
}

func TestTracker_PromptTrimming(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  State
	}{
		{"bare", ">\n", StatePrompt},
		{"crlf", ">\r\n", StatePrompt},
		{"trailing spaces", ">  \t\n", StatePrompt},
		{"leading space", " >\n", StateUnknown},
		{"prompt with text", ">CS\n", StateUnknown},
		{"no newline", ">", StateUnknown},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tr := newTracker(t, nil)
			tr.OnText([]byte(test.input))
			assert.Equal(t, test.want, tr.State())
		})
	}
}

func TestTracker_CustomPrompt(t *testing.T) {
	tr, err := New(Options{Prompt: "VADCP>"})
	require.NoError(t, err)

	tr.OnText([]byte(">\n"))
	assert.Equal(t, StateUnknown, tr.State())
	tr.OnText([]byte("VADCP>\r\n"))
	assert.Equal(t, StatePrompt, tr.State())
}

func TestTracker_EnsembleSetsCollecting(t *testing.T) {
	for _, prior := range []string{"", ">\n", "text\n"} {
		t.Run(fmt.Sprintf("after %q", prior), func(t *testing.T) {
			tr := newTracker(t, nil)
			tr.OnText([]byte(prior))
			before := len(tr.Lines())

			e := ensemble(t)
			tr.OnEnsemble(e)

			assert.Equal(t, StateCollectingData, tr.State())
			assert.Same(t, e, tr.LatestEnsemble())
			assert.Len(t, tr.Lines(), before)
		})
	}
}

func TestTracker_NoOpTransitionsAreSilent(t *testing.T) {
	count := 0
	tr := newTracker(t, func(Transition) { count++ })

	tr.OnEnsemble(ensemble(t))
	tr.OnEnsemble(ensemble(t))
	tr.OnText([]byte(">\n>\n"))
	tr.OnText([]byte("a\nb\nc\n"))

	assert.Equal(t, 3, count)
	assert.Equal(t, int64(3), tr.Transitions())
}

func TestTracker_PartialLinesAcrossCalls(t *testing.T) {
	tr := newTracker(t, nil)

	tr.OnText([]byte("Sys"))
	tr.OnText([]byte("tem "))
	assert.Empty(t, tr.Lines())

	tr.OnText([]byte("ready\n>"))
	tr.OnText([]byte("\n"))
	assert.Equal(t, []string{"System ready", ">"}, tr.Lines())
	assert.Equal(t, ">", tr.LastLine())
	assert.Equal(t, StatePrompt, tr.State())
}

func TestTracker_LineHistoryBound(t *testing.T) {
	tests := []struct {
		lines int
		first int
	}{
		{1100, 77},
		{2000, 977},
	}

	for _, test := range tests {
		t.Run(fmt.Sprintf("%d lines", test.lines), func(t *testing.T) {
			tr := newTracker(t, nil)
			var sb strings.Builder
			for i := 1; i <= test.lines; i++ {
				fmt.Fprintf(&sb, "%d\n", i)
			}
			tr.OnText([]byte(sb.String()))

			lines := tr.Lines()
			require.Len(t, lines, MaxLines)
			assert.Equal(t, fmt.Sprint(test.first), lines[0])
			assert.Equal(t, fmt.Sprint(test.lines), lines[MaxLines-1])
			assert.Equal(t, int64(test.lines), tr.LinesTotal())
		})
	}
}

func TestTracker_Timestamp(t *testing.T) {
	tr := newTracker(t, nil)
	m, err := tsmark.Parse("<OOI-TS 1700000000 TS>")
	require.NoError(t, err)

	tr.OnTimestamp(m)
	assert.Same(t, m, tr.LatestTimestamp())
	assert.Equal(t, StateUnknown, tr.State())
	assert.Empty(t, tr.Lines())
}

func TestTracker_ConcurrentReaders(t *testing.T) {
	tr := newTracker(t, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = tr.State()
			_ = tr.Lines()
			_ = tr.LastLine()
			_ = tr.LatestEnsemble()
		}
	}()

	e := ensemble(t)
	for i := 0; i < 600; i++ {
		tr.OnText([]byte(">\nline\n"))
		tr.OnEnsemble(e)
	}
	wg.Wait()

	assert.Equal(t, StateCollectingData, tr.State())
	assert.Len(t, tr.Lines(), MaxLines)
}

func TestTracker_OverlongLineCompleted(t *testing.T) {
	tr := newTracker(t, nil)

	tr.OnText(bytes.Repeat([]byte{0x7F}, MaxLineLen+10))
	require.Len(t, tr.Lines(), 1)
	assert.Len(t, tr.LastLine(), MaxLineLen)
	assert.Equal(t, StateUnset, tr.State())

	tr.OnText([]byte(">\n"))
	lines := tr.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Repeat("\x7f", 10)+">", lines[1])
}
