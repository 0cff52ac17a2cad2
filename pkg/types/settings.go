package types

import (
	"errors"
	"math"
)

// CurrentSettingsVersion is the current version of the stored settings.
// Settings stored under an older version are replaced by the configured
// defaults when read.
const CurrentSettingsVersion = 1

// PlantSettings are the price-driven power adjustment settings of a plant.
// They can be changed at runtime without redeploying.
type PlantSettings struct {
	// Whether the plant curtails output when the market price drops
	PriceControlEnabled bool `json:"price_control_enabled" yaml:"enabled"`
	// Market price (EUR/MWh) below which output is curtailed
	PriceThreshold float64 `json:"price_threshold" yaml:"price_threshold"`
	// Output (kW) the plant never gets curtailed below
	MinPowerLimit float64 `json:"min_power_limit" yaml:"min_power_limit"`
}

// Validate reports settings that cannot be applied. Negative prices are
// allowed since day-ahead markets clear below zero.
func (s PlantSettings) Validate() error {
	if math.IsNaN(s.PriceThreshold) || math.IsInf(s.PriceThreshold, 0) {
		return errors.New("price threshold must be a finite number")
	}
	if math.IsNaN(s.MinPowerLimit) || math.IsInf(s.MinPowerLimit, 0) {
		return errors.New("minimum power limit must be a finite number")
	}
	if s.MinPowerLimit < 0 {
		return errors.New("minimum power limit cannot be negative")
	}
	return nil
}
