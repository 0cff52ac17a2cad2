package series

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	utcMinute := func(s string) int64 {
		tm, err := time.Parse(time.RFC3339, s)
		require.NoError(t, err)
		return tm.UnixMilli()
	}

	tests := []struct {
		name     string
		input    string
		expected int64
	}{
		{
			name:     "Seconds At 30 Round Up",
			input:    "2024-06-01T10:00:30Z",
			expected: utcMinute("2024-06-01T10:01:00Z"),
		},
		{
			name:     "Seconds Below 30 Truncate",
			input:    "2024-06-01T10:00:29.999Z",
			expected: utcMinute("2024-06-01T10:00:00Z"),
		},
		{
			name:     "Naive Is UTC",
			input:    "2024-06-01T10:00:30",
			expected: utcMinute("2024-06-01T10:01:00Z"),
		},
		{
			name:     "Naive With Microseconds",
			input:    "2024-06-01T10:00:29.999999",
			expected: utcMinute("2024-06-01T10:00:00Z"),
		},
		{
			name:     "Naive Without Seconds",
			input:    "2024-06-01T10:00",
			expected: utcMinute("2024-06-01T10:00:00Z"),
		},
		{
			name:     "Minutes With Offset",
			input:    "2024-06-01T12:05+02:00",
			expected: utcMinute("2024-06-01T10:05:00Z"),
		},
		{
			name:     "Space Separator",
			input:    "2024-06-01 10:00:45",
			expected: utcMinute("2024-06-01T10:01:00Z"),
		},
		{
			name:     "Explicit Offset",
			input:    "2024-06-01T12:00:10+02:00",
			expected: utcMinute("2024-06-01T10:00:00Z"),
		},
		{
			name:     "Python Offset Format",
			input:    "2024-06-01 10:00:10+00:00",
			expected: utcMinute("2024-06-01T10:00:00Z"),
		},
		{
			name:     "Rounds Across Civil Midnight",
			input:    "2024-06-01T21:59:45Z",
			expected: utcMinute("2024-06-01T22:00:00Z"),
		},
		{
			name:     "DST Fall Back",
			input:    "2024-10-27T00:59:40Z",
			expected: utcMinute("2024-10-27T01:00:00Z"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	t.Run("Civil Representation", func(t *testing.T) {
		got, err := Normalize("2024-06-01T10:00:30Z")
		require.NoError(t, err)
		assert.Equal(t, "2024-06-01T12:01:00+02:00", CivilTime(got).Format(time.RFC3339))

		got, err = Normalize("2024-01-15T10:00:00Z")
		require.NoError(t, err)
		assert.Equal(t, "2024-01-15T11:00:00+01:00", CivilTime(got).Format(time.RFC3339))
	})

	t.Run("Invalid", func(t *testing.T) {
		for _, input := range []string{"", "   ", "garbage", "2024-13-01T00:00:00Z", "2024-06-01"} {
			_, err := Normalize(input)
			assert.ErrorIs(t, err, ErrInvalidTimestamp, "input %q", input)
		}
	})
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-03-31")
	require.NoError(t, err)
	assert.Equal(t, Location(), d.Location())
	assert.Equal(t, 0, d.Hour())
	assert.Equal(t, "2024-03-31", FormatDate(d))

	_, err = ParseDate("2024/03/31")
	assert.ErrorIs(t, err, ErrInvalidDate)
}
