package series

import (
	"math"
	"time"

	"github.com/plantwatch/plantwatch/pkg/types"
)

// minAxisMax is the smallest y-axis extent, in kW.
const minAxisMax = 100

// Window is the x/y extent of a day chart.
type Window struct {
	DayStart int64   `json:"dayStart"`
	DayEnd   int64   `json:"dayEnd"`
	Ticks    []int64 `json:"ticks"`
	AxisMax  float64 `json:"axisMax"`
}

// DayWindow returns the first and last millisecond of a civil day.
func DayWindow(date string) (int64, int64, error) {
	start, err := ParseDate(date)
	if err != nil {
		return 0, 0, err
	}
	end := start.AddDate(0, 0, 1)
	return start.UnixMilli(), end.UnixMilli() - 1, nil
}

// HourlyTicks returns 25 ticks one hour apart starting at dayStart.
func HourlyTicks(dayStart int64) []int64 {
	ticks := make([]int64, 25)
	for i := range ticks {
		ticks[i] = dayStart + int64(i)*time.Hour.Milliseconds()
	}
	return ticks
}

// AxisMax returns the y-axis extent for points: the largest absolute
// production or consumption value rounded up to the next 100, but never less
// than 100.
func AxisMax(points []types.AlignedPoint) float64 {
	var maxAbs float64
	for _, p := range points {
		if p.ActivePower != nil {
			maxAbs = max(maxAbs, math.Abs(*p.ActivePower))
		}
		if p.Consumption != nil {
			maxAbs = max(maxAbs, math.Abs(*p.Consumption))
		}
	}
	return max(minAxisMax, math.Ceil(maxAbs/100)*100)
}
