package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseThreshold(t *testing.T) {
	tests := []struct {
		in       string
		expected Threshold
	}{
		{"", ThresholdNone},
		{"null", ThresholdNone},
		{"2.5", Threshold2_5},
		{"5", Threshold5},
		{"10", Threshold10},
		{"low", ThresholdLow},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseThreshold(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	for _, bad := range []string{"2", "LOW", "10%", "high"} {
		_, err := ParseThreshold(bad)
		assert.Error(t, err, bad)
	}
}
