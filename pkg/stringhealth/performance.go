package stringhealth

import (
	"math"

	"github.com/plantwatch/plantwatch/pkg/types"
)

// Performance reports each inverter's latest active power (kW) as a
// percentage of its rated power (W). A missing or zero rating counts as 1 W
// and missing output as 0 kW. Values are rounded to two decimals.
func Performance(inverters []types.InverterReading) []types.InverterPerformance {
	out := make([]types.InverterPerformance, 0, len(inverters))
	for _, inv := range inverters {
		maxKW := 1.0 / 1000
		if inv.MaxPower != nil && *inv.MaxPower != 0 {
			maxKW = *inv.MaxPower / 1000
		}
		var active float64
		if inv.ActivePower != nil {
			active = *inv.ActivePower
		}
		out = append(out, types.InverterPerformance{
			InverterID:  inv.InverterID,
			Name:        inv.Name,
			ActivePower: round2(active),
			PowerKWh:    round2(active),
			Percent:     round2(active / maxKW * 100),
		})
	}
	return out
}

// round2 rounds half away from zero to two decimals. Non-finite values
// become 0 so the result always encodes as JSON.
func round2(v float64) float64 {
	r := math.Round(v*100) / 100
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}
