package timestamp

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEpochSeconds(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected int64
	}{
		{"whole seconds", 1700000000, 1700000000000},
		{"fraction", 1700000000.25, 1700000000250},
		{"rounds", 1700000000.0006, 1700000000001},
		{"zero", 0, 0},
		{"negative", -5, 0},
		{"nan", math.NaN(), 0},
		{"inf", math.Inf(1), 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, FromEpochSeconds(test.input))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	now := time.Now()
	ms := ToUnixMs(now)
	assert.Equal(t, now.UnixMilli(), FromUnixMs(ms).UnixMilli())

	assert.Equal(t, int64(0), ToUnixMs(time.Time{}))
	assert.True(t, FromUnixMs(0).IsZero())
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "", Format(0))
	assert.Equal(t, "2023-11-14T22:13:20.250Z", Format(1700000000250))
}

func TestSince(t *testing.T) {
	assert.Equal(t, time.Duration(0), Since(0))

	past := Now() - 1500
	since := Since(past)
	assert.GreaterOrEqual(t, since, 1500*time.Millisecond)
	assert.Less(t, since, 10*time.Second)
}
