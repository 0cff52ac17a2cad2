package series

import (
	"time"

	"github.com/plantwatch/plantwatch/pkg/types"
)

// FillMonth returns one DailyYield per civil day from startDate to endDate
// inclusive. Days missing from sparse are zero. If sparse holds the same
// date more than once the first entry wins. An end before the start gives an
// empty strip.
func FillMonth(startDate, endDate string, sparse []types.DailyYield) ([]types.DailyYield, error) {
	start, err := ParseDate(startDate)
	if err != nil {
		return nil, err
	}
	end, err := ParseDate(endDate)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]float64, len(sparse))
	for _, d := range sparse {
		if _, ok := byDate[d.Date]; !ok {
			byDate[d.Date] = d.Yield
		}
	}

	days := make([]types.DailyYield, 0, DayCount(start, end))
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		date := d.Format(types.DateLayout)
		days = append(days, types.DailyYield{
			Date:  date,
			Yield: byDate[date],
		})
	}
	return days, nil
}

// DayCount returns the number of civil days from start to end inclusive, or
// 0 when end is before start.
func DayCount(start, end time.Time) int {
	start = start.In(civilLocation)
	end = end.In(civilLocation)
	// compare as UTC dates so DST days don't skew the division
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	if e.Before(s) {
		return 0
	}
	return int(e.Sub(s)/(24*time.Hour)) + 1
}

// MonthSpan is a civil calendar month.
type MonthSpan struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Label     string `json:"label"`
}

// MonthRange returns the civil month offset months away from the month now
// falls in. Offset 0 is the current month, -1 the previous one.
func MonthRange(now time.Time, offset int) MonthSpan {
	c := now.In(civilLocation)
	first := time.Date(c.Year(), c.Month()+time.Month(offset), 1, 0, 0, 0, 0, civilLocation)
	last := first.AddDate(0, 1, -1)
	return MonthSpan{
		StartDate: first.Format(types.DateLayout),
		EndDate:   last.Format(types.DateLayout),
		Label:     first.Format("2006 January"),
	}
}

// CanNavigateForward reports whether the month after span starts no later
// than the month now falls in.
func CanNavigateForward(now time.Time, span MonthSpan) bool {
	start, err := ParseDate(span.StartDate)
	if err != nil {
		return false
	}
	c := now.In(civilLocation)
	current := time.Date(c.Year(), c.Month(), 1, 0, 0, 0, 0, civilLocation)
	return start.Before(current)
}
