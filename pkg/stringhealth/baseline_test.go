package stringhealth

import (
	"testing"
	"time"

	"github.com/plantwatch/plantwatch/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeBaselines(t *testing.T) {
	now := time.Date(2024, 6, 8, 12, 0, 0, 0, time.UTC)
	samples := []types.StringSample{
		{
			InverterID: 1,
			Timestamp:  now.Add(-time.Hour),
			Strings: []types.StringReading{
				{Number: 2, Voltage: 100, Current: 2},
				{Number: 1, Voltage: 100, Current: 1},
			},
		},
		{
			InverterID: 1,
			Timestamp:  now.Add(-48 * time.Hour),
			Strings: []types.StringReading{
				{Number: 1, Voltage: 300, Current: 1},
				{Number: 2, Voltage: sentinelVoltage, Current: 1},
				{Number: 3, Voltage: 100, Current: sentinelCurrent},
			},
		},
		{
			// outside the window
			InverterID: 1,
			Timestamp:  now.Add(-8 * 24 * time.Hour),
			Strings:    []types.StringReading{{Number: 1, Voltage: 10000, Current: 1}},
		},
		{
			// in the future
			InverterID: 1,
			Timestamp:  now.Add(time.Minute),
			Strings:    []types.StringReading{{Number: 1, Voltage: 10000, Current: 1}},
		},
	}

	got := ComputeBaselines(now, samples)
	assert.Equal(t, []types.StringBaseline{
		{StringNumber: 1, WeeklyAvgPower: 200},
		{StringNumber: 2, WeeklyAvgPower: 200},
	}, got)

	assert.Empty(t, ComputeBaselines(now, nil))
}

func TestComputeHourlyBaselines(t *testing.T) {
	now := time.Date(2024, 6, 8, 12, 0, 0, 0, time.UTC)
	samples := []types.StringSample{
		{Timestamp: time.Date(2024, 6, 7, 8, 15, 0, 0, time.UTC), Strings: []types.StringReading{{Number: 1, Voltage: 100, Current: 1}}},
		{Timestamp: time.Date(2024, 6, 6, 8, 45, 0, 0, time.UTC), Strings: []types.StringReading{{Number: 1, Voltage: 300, Current: 1}}},
		{Timestamp: time.Date(2024, 6, 6, 9, 0, 0, 0, time.UTC), Strings: []types.StringReading{{Number: 1, Voltage: 50, Current: 1}}},
	}

	got := ComputeHourlyBaselines(now, samples)
	require.Len(t, got, 2)
	// 08:xx UTC is 10:xx in Budapest during summer time
	assert.Equal(t, []types.StringBaseline{{StringNumber: 1, WeeklyAvgPower: 200}}, got[10])
	assert.Equal(t, []types.StringBaseline{{StringNumber: 1, WeeklyAvgPower: 50}}, got[11])
}

func TestComputeSet(t *testing.T) {
	now := time.Date(2024, 6, 8, 12, 0, 0, 0, time.FixedZone("", 2*3600))
	samples := []types.StringSample{
		{InverterID: 1, Timestamp: now.Add(-time.Hour), Strings: []types.StringReading{{Number: 1, Voltage: 100, Current: 1}}},
		{InverterID: 2, Timestamp: now.Add(-time.Hour), Strings: []types.StringReading{{Number: 1, Voltage: 300, Current: 1}}},
		{InverterID: 3, Timestamp: now.Add(-30 * 24 * time.Hour), Strings: []types.StringReading{{Number: 1, Voltage: 300, Current: 1}}},
	}

	set := ComputeSet(42, now, samples)
	assert.Equal(t, 42, set.PlantID)
	assert.Equal(t, time.UTC, set.CalculatedAt.Location())
	assert.True(t, now.Equal(set.CalculatedAt))
	assert.Equal(t, []types.StringBaseline{{StringNumber: 1, WeeklyAvgPower: 200}}, set.Baselines)
	assert.Equal(t, []types.StringBaseline{{StringNumber: 1, WeeklyAvgPower: 100}}, set.Inverters[1])
	assert.Equal(t, []types.StringBaseline{{StringNumber: 1, WeeklyAvgPower: 300}}, set.Inverters[2])
	assert.NotContains(t, set.Inverters, 3)
	assert.Len(t, set.Hourly, 1)
}
