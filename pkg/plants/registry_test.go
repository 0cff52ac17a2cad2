package plants

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/plantwatch/plantwatch/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
defaults:
  threshold: "5"
plants:
  - id: 1
    name: Kecskemét PV
    threshold: "10"
  - id: 2
    name: Renamed
    price_control:
      enabled: true
      price_threshold: -10.5
      min_power_limit: 40
  - id: 3
    hidden: true
`

func TestRegistry(t *testing.T) {
	r, err := Parse([]byte(testYAML))
	require.NoError(t, err)

	t.Run("Threshold", func(t *testing.T) {
		assert.Equal(t, types.Threshold10, r.Threshold(1))
		assert.Equal(t, types.Threshold5, r.Threshold(2), "no override falls back to default")
		assert.Equal(t, types.Threshold5, r.Threshold(99), "unknown plant gets default")
	})

	t.Run("Merge", func(t *testing.T) {
		got := r.Merge([]types.Plant{
			{ID: 2, Name: "Backend Two"},
			{ID: 1, Name: "Backend One"},
			{ID: 3, Name: "Backend Three"},
			{ID: 4, Name: "Backend Four"},
		})
		assert.Equal(t, []types.Plant{
			{ID: 2, Name: "Renamed"},
			{ID: 1, Name: "Kecskemét PV"},
			{ID: 4, Name: "Backend Four"},
		}, got)
		assert.True(t, r.Hidden(3))
		assert.False(t, r.Hidden(4))
	})

	t.Run("Settings", func(t *testing.T) {
		assert.Equal(t, types.PlantSettings{PriceControlEnabled: true, PriceThreshold: -10.5, MinPowerLimit: 40}, r.Settings(2))
		assert.Equal(t, types.PlantSettings{}, r.Settings(1))
		assert.Equal(t, types.PlantSettings{}, r.Settings(99))
	})

	t.Run("Nil Registry", func(t *testing.T) {
		var nilR *Registry
		assert.Equal(t, types.ThresholdNone, nilR.Threshold(1))
		assert.Equal(t, types.PlantSettings{}, nilR.Settings(1))
		assert.Equal(t, []types.Plant{{ID: 1, Name: "a"}}, nilR.Merge([]types.Plant{{ID: 1, Name: "a"}}))
	})
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		err  string
	}{
		{"Bad Default", "defaults:\n  threshold: \"7\"\n", "defaults"},
		{"Bad Plant Threshold", "plants:\n  - id: 1\n    threshold: high\n", "plant 1"},
		{"Missing ID", "plants:\n  - name: x\n", "invalid id"},
		{"Duplicate", "plants:\n  - id: 1\n  - id: 1\n", "listed twice"},
		{"Negative Power Limit", "plants:\n  - id: 1\n    price_control:\n      min_power_limit: -5\n", "price_control"},
		{"Not YAML", "plants: [", "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorContains(t, err, tt.err)
		})
	}
}

func TestLoad(t *testing.T) {
	r, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, types.ThresholdNone, r.Threshold(1))

	r, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, types.ThresholdNone, r.Threshold(1))

	path := filepath.Join(t.TempDir(), "plants.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testYAML), 0o600))
	r, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, types.Threshold10, r.Threshold(1))
}
