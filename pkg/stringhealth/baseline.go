package stringhealth

import (
	"math"
	"slices"
	"time"

	"github.com/plantwatch/plantwatch/pkg/series"
	"github.com/plantwatch/plantwatch/pkg/types"
)

const (
	// BaselineWindow is how far back samples count towards a baseline.
	BaselineWindow = 7 * 24 * time.Hour

	// loggers report these when a register could not be read
	sentinelVoltage = 6553.5
	sentinelCurrent = 655.35
)

type mean struct {
	sum float64
	n   int
}

// accumulator keys running means by string number.
type accumulator map[int]*mean

func (a accumulator) add(r types.StringReading) {
	v, ok := a[r.Number]
	if !ok {
		v = &mean{}
		a[r.Number] = v
	}
	v.sum += r.Voltage * r.Current
	v.n++
}

func (a accumulator) baselines() []types.StringBaseline {
	out := make([]types.StringBaseline, 0, len(a))
	for number, v := range a {
		out = append(out, types.StringBaseline{
			StringNumber:   number,
			WeeklyAvgPower: v.sum / float64(v.n),
		})
	}
	slices.SortFunc(out, func(x, y types.StringBaseline) int {
		return x.StringNumber - y.StringNumber
	})
	return out
}

func usable(r types.StringReading) bool {
	if r.Voltage == sentinelVoltage || r.Current == sentinelCurrent {
		return false
	}
	return !math.IsNaN(r.Voltage) && !math.IsInf(r.Voltage, 0) &&
		!math.IsNaN(r.Current) && !math.IsInf(r.Current, 0)
}

func inWindow(now, ts time.Time) bool {
	return !ts.Before(now.Add(-BaselineWindow)) && !ts.After(now)
}

// ComputeBaselines averages voltage*current per string number over the
// BaselineWindow ending at now. Sentinel and non-finite readings are skipped
// and the result is sorted by string number.
func ComputeBaselines(now time.Time, samples []types.StringSample) []types.StringBaseline {
	acc := accumulator{}
	for _, s := range samples {
		if !inWindow(now, s.Timestamp) {
			continue
		}
		for _, r := range s.Strings {
			if usable(r) {
				acc.add(r)
			}
		}
	}
	return acc.baselines()
}

// ComputeHourlyBaselines is ComputeBaselines bucketed by the civil hour of
// day of each sample.
func ComputeHourlyBaselines(now time.Time, samples []types.StringSample) map[int][]types.StringBaseline {
	hours := map[int]accumulator{}
	for _, s := range samples {
		if !inWindow(now, s.Timestamp) {
			continue
		}
		hour := s.Timestamp.In(series.Location()).Hour()
		for _, r := range s.Strings {
			if !usable(r) {
				continue
			}
			if hours[hour] == nil {
				hours[hour] = accumulator{}
			}
			hours[hour].add(r)
		}
	}
	out := make(map[int][]types.StringBaseline, len(hours))
	for hour, acc := range hours {
		out[hour] = acc.baselines()
	}
	return out
}

// ComputeSet builds the full baseline set for a plant: plant-wide, per
// inverter and per civil hour.
func ComputeSet(plantID int, now time.Time, samples []types.StringSample) types.BaselineSet {
	byInverter := map[int][]types.StringSample{}
	for _, s := range samples {
		byInverter[s.InverterID] = append(byInverter[s.InverterID], s)
	}
	inverters := make(map[int][]types.StringBaseline, len(byInverter))
	for id, ss := range byInverter {
		if b := ComputeBaselines(now, ss); len(b) > 0 {
			inverters[id] = b
		}
	}
	return types.BaselineSet{
		PlantID:      plantID,
		CalculatedAt: now.UTC(),
		Baselines:    ComputeBaselines(now, samples),
		Inverters:    inverters,
		Hourly:       ComputeHourlyBaselines(now, samples),
	}
}
