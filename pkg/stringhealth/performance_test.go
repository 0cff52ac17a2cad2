package stringhealth

import (
	"math"
	"testing"

	"github.com/plantwatch/plantwatch/pkg/types"
	"github.com/stretchr/testify/assert"
)

func ptr(f float64) *float64 { return &f }

func TestPerformance(t *testing.T) {
	tests := []struct {
		name     string
		input    types.InverterReading
		expected types.InverterPerformance
	}{
		{
			name:     "Rated",
			input:    types.InverterReading{InverterID: 1, Name: "INV-1", MaxPower: ptr(50000), ActivePower: ptr(12.5)},
			expected: types.InverterPerformance{InverterID: 1, Name: "INV-1", ActivePower: 12.5, PowerKWh: 12.5, Percent: 25},
		},
		{
			name:     "Rounding",
			input:    types.InverterReading{InverterID: 2, MaxPower: ptr(30000), ActivePower: ptr(10.006)},
			expected: types.InverterPerformance{InverterID: 2, ActivePower: 10.01, PowerKWh: 10.01, Percent: 33.35},
		},
		{
			name:     "Missing Rating Is One Watt",
			input:    types.InverterReading{InverterID: 3, ActivePower: ptr(0.5)},
			expected: types.InverterPerformance{InverterID: 3, ActivePower: 0.5, PowerKWh: 0.5, Percent: 50000},
		},
		{
			name:     "Zero Rating Is One Watt",
			input:    types.InverterReading{InverterID: 4, MaxPower: ptr(0), ActivePower: ptr(0.001)},
			expected: types.InverterPerformance{InverterID: 4, Percent: 100},
		},
		{
			name:     "Missing Output",
			input:    types.InverterReading{InverterID: 5, MaxPower: ptr(50000)},
			expected: types.InverterPerformance{InverterID: 5},
		},
		{
			name:     "Non Finite Output",
			input:    types.InverterReading{InverterID: 6, MaxPower: ptr(50000), ActivePower: ptr(math.Inf(1))},
			expected: types.InverterPerformance{InverterID: 6},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Performance([]types.InverterReading{tt.input})
			assert.Equal(t, []types.InverterPerformance{tt.expected}, got)
		})
	}

	t.Run("Empty", func(t *testing.T) {
		got := Performance(nil)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}
