// Package stringhealth classifies live inverter string readings against their
// trailing weekly baseline and computes those baselines from history.
package stringhealth

import (
	"math"

	"github.com/plantwatch/plantwatch/pkg/series"
	"github.com/plantwatch/plantwatch/pkg/types"
)

// Classify buckets how far a string's live power (voltage*current) sits from
// its weekly baseline, for the chosen threshold.
//
// The bands partition the deviation exactly rather than cumulatively: 2.5
// only flags [2.5, 5), 5 only flags [5, 10), 10 flags [10, inf) and low
// flags anything under 2.5 with exactly zero told apart. A missing
// threshold, a missing baseline row or a zero baseline gives BandNone.
func Classify(threshold types.Threshold, stringID int, voltage, current float64, baselines []types.StringBaseline) types.DeviationBand {
	if threshold == types.ThresholdNone {
		return types.BandNone
	}
	baseline, ok := FindBaseline(baselines, stringID)
	if !ok {
		return types.BandNone
	}
	deviation, ok := Deviation(voltage*current, baseline.WeeklyAvgPower)
	if !ok {
		return types.BandNone
	}
	return Band(threshold, deviation)
}

// FindBaseline returns the first baseline row for stringID.
func FindBaseline(baselines []types.StringBaseline, stringID int) (types.StringBaseline, bool) {
	for _, b := range baselines {
		if b.StringNumber == stringID {
			return b, true
		}
	}
	return types.StringBaseline{}, false
}

// Deviation returns |power-avg|/avg as a percentage. The second return is
// false when the deviation is undefined (zero or non-finite average).
func Deviation(power, avg float64) (float64, bool) {
	if avg == 0 || math.IsNaN(avg) || math.IsInf(avg, 0) {
		return 0, false
	}
	d := math.Abs((power - avg) / avg * 100)
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, false
	}
	return d, true
}

// Band maps a deviation percentage onto the band selected by threshold.
func Band(threshold types.Threshold, deviation float64) types.DeviationBand {
	switch threshold {
	case types.Threshold2_5:
		if deviation >= 2.5 && deviation < 5 {
			return types.BandWarnLow
		}
	case types.Threshold5:
		if deviation >= 5 && deviation < 10 {
			return types.BandWarn5
		}
	case types.Threshold10:
		if deviation >= 10 {
			return types.BandWarn10
		}
	case types.ThresholdLow:
		if deviation == 0 {
			return types.BandOKZero
		}
		if deviation < 2.5 {
			return types.BandOKLow
		}
	}
	return types.BandNone
}

// selectBaselines picks the baselines an inverter's reading is compared
// against: the civil hour the reading was taken in, then the inverter's own
// weekly means, then the plant-wide ones.
func selectBaselines(set types.BaselineSet, inv types.InverterReading) []types.StringBaseline {
	if !inv.Timestamp.IsZero() {
		if b := set.Hourly[inv.Timestamp.In(series.Location()).Hour()]; len(b) > 0 {
			return b
		}
	}
	if b := set.Inverters[inv.InverterID]; len(b) > 0 {
		return b
	}
	return set.Baselines
}

// ClassifyInverters classifies every string of every inverter against the
// most specific baselines the set has for it.
func ClassifyInverters(threshold types.Threshold, inverters []types.InverterReading, set types.BaselineSet) []types.ClassifiedInverter {
	out := make([]types.ClassifiedInverter, 0, len(inverters))
	for _, inv := range inverters {
		baselines := selectBaselines(set, inv)
		ci := types.ClassifiedInverter{
			InverterID: inv.InverterID,
			Name:       inv.Name,
			SlaveID:    inv.SlaveID,
			Timestamp:  inv.Timestamp,
			Strings:    make([]types.ClassifiedString, 0, len(inv.Strings)),
		}
		for _, s := range inv.Strings {
			ci.Strings = append(ci.Strings, types.ClassifiedString{
				StringReading: s,
				Band:          Classify(threshold, s.Number, s.Voltage, s.Current, baselines),
			})
		}
		out = append(out, ci)
	}
	return out
}
