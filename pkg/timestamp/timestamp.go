// Package timestamp provides Unix millisecond timestamp helpers.
//
// int64 milliseconds since the Unix epoch (UTC) is the canonical timestamp
// format in adcpstream: receive times, marker times and health activity are
// all stored this way. A value of 0 means "not set".
package timestamp

import (
	"math"
	"time"
)

// Now returns the current time as Unix milliseconds.
func Now() int64 {
	return time.Now().UnixMilli()
}

// ToUnixMs converts a time.Time to Unix milliseconds. The zero time maps to 0.
func ToUnixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromUnixMs converts Unix milliseconds to time.Time.
// Returns zero time if timestamp is 0.
func FromUnixMs(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// FromEpochSeconds converts fractional seconds since the Unix epoch to
// milliseconds, rounding to the nearest millisecond. NaN, infinities and
// negative values map to 0.
func FromEpochSeconds(sec float64) int64 {
	if math.IsNaN(sec) || math.IsInf(sec, 0) || sec <= 0 {
		return 0
	}
	return int64(math.Round(sec * 1000))
}

// Format converts Unix milliseconds to an RFC3339 string with millisecond
// precision. Returns empty string if timestamp is 0.
func Format(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// Since returns the duration since the given timestamp.
// Returns 0 if timestamp is zero.
func Since(ms int64) time.Duration {
	if ms == 0 {
		return 0
	}
	return time.Since(time.UnixMilli(ms))
}
