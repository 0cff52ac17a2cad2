// Package series turns raw plant telemetry into display-ready series: minute
// normalization in the plant's civil timezone, reconciliation of the
// production and grid streams, and calendar strips of daily yield.
//
// Everything in this package is a pure function of its inputs. Nothing here
// reads the wall clock; callers pass the evaluation instant in.
package series

import (
	"errors"
	"fmt"
	"strings"
	"time"

	// minimal images ship without a zone database
	_ "time/tzdata"

	"github.com/plantwatch/plantwatch/pkg/types"
)

var (
	// ErrInvalidTimestamp is returned when a sample's timestamp cannot be
	// parsed as an instant.
	ErrInvalidTimestamp = errors.New("invalid timestamp")

	// ErrInvalidDate is returned when a civil date is not in YYYY-MM-DD form.
	ErrInvalidDate = errors.New("invalid date")
)

var civilLocation = func() *time.Location {
	loc, err := time.LoadLocation(types.CivilZone)
	if err != nil {
		panic(fmt.Errorf("failed to load civil time location: %w", err))
	}
	return loc
}()

// Location returns the civil timezone all series are bucketed in.
func Location() *time.Location {
	return civilLocation
}

// layouts that carry an explicit offset
var offsetLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04Z07:00",
}

// layouts without an offset, read as UTC
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// ParseInstant parses an ISO-8601 timestamp. Timestamps without an offset
// are UTC. Fractional seconds of any precision are accepted.
func ParseInstant(ts string) (time.Time, error) {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidTimestamp)
	}
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, ts, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, ts)
}

// Normalize converts a source timestamp into the epoch millisecond of the
// civil minute it belongs to. Seconds >= 30 round up to the next minute,
// anything less is truncated. The same rule applies to every stream.
func Normalize(ts string) (int64, error) {
	t, err := ParseInstant(ts)
	if err != nil {
		return 0, err
	}
	return MinuteOf(t), nil
}

// MinuteOf returns the normalized civil minute of t in epoch milliseconds.
func MinuteOf(t time.Time) int64 {
	c := t.In(civilLocation)
	if c.Second() >= 30 {
		c = c.Add(time.Minute)
	}
	// the zone's offsets are whole minutes so truncating the instant is the
	// same as zeroing the civil seconds, and stays unambiguous across DST
	return c.Truncate(time.Minute).UnixMilli()
}

// CivilTime returns the civil wall-clock time of an epoch millisecond.
func CivilTime(ms int64) time.Time {
	return time.UnixMilli(ms).In(civilLocation)
}

// ParseDate parses a civil YYYY-MM-DD date as midnight in the civil zone.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(types.DateLayout, strings.TrimSpace(s), civilLocation)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

// FormatDate formats t as the civil date it falls on.
func FormatDate(t time.Time) string {
	return t.In(civilLocation).Format(types.DateLayout)
}
