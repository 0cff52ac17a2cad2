package series

import (
	"math"
	"slices"
	"time"

	"github.com/plantwatch/plantwatch/pkg/types"
)

// neighborStep is how far a missing minute may borrow a value from. Only one
// step in either direction is tried; wider gaps stay gaps.
const neighborStep = int64(time.Minute / time.Millisecond)

// minuteSeries is an ordered map from normalized minute to power value for a
// single stream.
type minuteSeries struct {
	values map[int64]float64
	keys   []int64
}

func newMinuteSeries(size int) *minuteSeries {
	return &minuteSeries{
		values: make(map[int64]float64, size),
		keys:   make([]int64, 0, size),
	}
}

// set stores v for minute. A later write to the same minute replaces the
// earlier one.
func (s *minuteSeries) set(minute int64, v float64) {
	if _, ok := s.values[minute]; !ok {
		s.keys = append(s.keys, minute)
	}
	s.values[minute] = v
}

func (s *minuteSeries) get(minute int64) (float64, bool) {
	v, ok := s.values[minute]
	return v, ok
}

// resolve looks up minute, then the minute before, then the minute after.
// The second return is false when none of them has a value. The third is
// true when the value came from a neighbor.
func (s *minuteSeries) resolve(minute int64) (float64, bool, bool) {
	if v, ok := s.get(minute); ok {
		return v, true, false
	}
	if v, ok := s.get(minute - neighborStep); ok {
		return v, true, true
	}
	if v, ok := s.get(minute + neighborStep); ok {
		return v, true, true
	}
	return 0, false, false
}

func (s *minuteSeries) len() int {
	return len(s.keys)
}

// Stats describes what reconciliation did with its input.
type Stats struct {
	// DroppedProduction and DroppedConsumption count samples whose timestamp
	// could not be parsed.
	DroppedProduction  int `json:"droppedProduction"`
	DroppedConsumption int `json:"droppedConsumption"`

	// NeighborFills counts values borrowed from an adjacent minute.
	NeighborFills int `json:"neighborFills"`

	// ProductionGaps and ConsumptionGaps count minutes where that stream had
	// no value even after the neighbor lookup.
	ProductionGaps  int `json:"productionGaps"`
	ConsumptionGaps int `json:"consumptionGaps"`
}

// Dropped returns the total number of samples discarded.
func (s Stats) Dropped() int {
	return s.DroppedProduction + s.DroppedConsumption
}

// ingest normalizes samples into a minuteSeries. Samples with a bad
// timestamp are skipped and counted. Non-finite power reads as 0. When clamp
// is set negative values become 0.
func ingest(samples []types.RawSample, clamp bool) (*minuteSeries, int) {
	ms := newMinuteSeries(len(samples))
	var dropped int
	for _, sample := range samples {
		minute, err := Normalize(sample.Timestamp)
		if err != nil {
			dropped++
			continue
		}
		v := sample.ActivePower
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		if clamp {
			v = max(0, v)
		}
		ms.set(minute, v)
	}
	return ms, dropped
}

// Reconcile merges the production and grid streams onto a shared per-minute
// timeline. See ReconcileWithStats.
func Reconcile(production, consumption []types.RawSample) []types.AlignedPoint {
	points, _ := ReconcileWithStats(production, consumption)
	return points
}

// ReconcileWithStats merges the production and grid streams onto a shared
// per-minute timeline and derives the net load.
//
// Production is clamped at zero, grid power keeps its sign (import positive,
// export negative). Every minute present in either stream produces exactly
// one point, ordered ascending. A stream missing a minute borrows from the
// minute before or after it. Consumption is max(0, production+grid) with an
// unresolved side counted as zero, and is nil only when neither side
// resolves.
func ReconcileWithStats(production, consumption []types.RawSample) ([]types.AlignedPoint, Stats) {
	var stats Stats
	prod, droppedProd := ingest(production, true)
	grid, droppedGrid := ingest(consumption, false)
	stats.DroppedProduction = droppedProd
	stats.DroppedConsumption = droppedGrid

	minutes := unionMinutes(prod, grid)
	points := make([]types.AlignedPoint, 0, len(minutes))
	for _, minute := range minutes {
		prodKW, hasProd, prodBorrowed := prod.resolve(minute)
		gridKW, hasGrid, gridBorrowed := grid.resolve(minute)
		if prodBorrowed {
			stats.NeighborFills++
		}
		if gridBorrowed {
			stats.NeighborFills++
		}
		if !hasProd {
			stats.ProductionGaps++
		}
		if !hasGrid {
			stats.ConsumptionGaps++
		}
		points = append(points, alignedPoint(minute, prodKW, hasProd, gridKW, hasGrid))
	}
	return points, stats
}

// unionMinutes returns the sorted, de-duplicated minutes of both series.
func unionMinutes(a, b *minuteSeries) []int64 {
	minutes := make([]int64, 0, a.len()+b.len())
	minutes = append(minutes, a.keys...)
	for _, k := range b.keys {
		if _, ok := a.values[k]; !ok {
			minutes = append(minutes, k)
		}
	}
	slices.Sort(minutes)
	return minutes
}

func alignedPoint(minute int64, prodKW float64, hasProd bool, gridKW float64, hasGrid bool) types.AlignedPoint {
	p := types.AlignedPoint{TimestampRaw: minute}
	if hasProd {
		p.ActivePower = &prodKW
	}
	if !hasProd && !hasGrid {
		return p
	}
	if !hasProd {
		prodKW = 0
	}
	if !hasGrid {
		gridKW = 0
	}
	consumption := max(0, prodKW+gridKW)
	neg := -consumption
	if consumption == 0 {
		// avoid a negative zero in the output
		neg = 0
	}
	p.Consumption = &consumption
	p.ConsumptionNeg = &neg
	return p
}

// LastUpdated returns the most recent timestamp found in either stream,
// formatted for display in the civil zone. It returns an empty string when
// no sample carries a parseable timestamp.
func LastUpdated(production, consumption []types.RawSample) string {
	var latest time.Time
	for _, stream := range [][]types.RawSample{production, consumption} {
		for _, sample := range stream {
			t, err := ParseInstant(sample.Timestamp)
			if err != nil {
				continue
			}
			if t.After(latest) {
				latest = t
			}
		}
	}
	if latest.IsZero() {
		return ""
	}
	return CivilTime(latest.UnixMilli()).Format(types.DisplayLayout)
}
