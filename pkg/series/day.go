package series

import "github.com/plantwatch/plantwatch/pkg/types"

// Day is a reconciled civil day, ready for the production chart.
type Day struct {
	Date        string               `json:"date"`
	Points      []types.AlignedPoint `json:"points"`
	LastUpdated string               `json:"lastUpdated"`
	Stats       Stats                `json:"stats"`
	Window      Window               `json:"window"`
}

// ReconcileDay reconciles data for the civil date and attaches the chart
// window. Only a malformed date is an error; bad samples are dropped and
// counted in Stats.
func ReconcileDay(date string, data types.ProductionData) (Day, error) {
	start, end, err := DayWindow(date)
	if err != nil {
		return Day{}, err
	}
	points, stats := ReconcileWithStats(data.Production, data.Consumption)
	return Day{
		Date:        date,
		Points:      points,
		LastUpdated: LastUpdated(data.Production, data.Consumption),
		Stats:       stats,
		Window: Window{
			DayStart: start,
			DayEnd:   end,
			Ticks:    HourlyTicks(start),
			AxisMax:  AxisMax(points),
		},
	}, nil
}
