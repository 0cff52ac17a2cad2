package types

import "time"

const (
	// CivilZone is the timezone every plant reports and is displayed in.
	CivilZone = "Europe/Budapest"

	// DateLayout is the layout used for civil calendar dates (YYYY-MM-DD).
	DateLayout = "2006-01-02"

	// DisplayLayout is the layout of the "last updated" marker.
	DisplayLayout = "2006-01-02 15:04"
)

// Plant represents a monitored solar power plant.
type Plant struct {
	ID   int    `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// RawSample is a single power reading as delivered by the data source. The
// timestamp is an ISO-8601 instant that is implicitly UTC when it carries no
// offset. ActivePower is in kW and signed.
type RawSample struct {
	Timestamp   string  `json:"timestamp"`
	ActivePower float64 `json:"active_power"`
}

// ProductionData holds both telemetry streams for one civil day. Production
// comes from the data logger, Consumption from the grid meter (import
// positive, export negative).
type ProductionData struct {
	Production  []RawSample `json:"production"`
	Consumption []RawSample `json:"consumption"`
}

// AlignedPoint is one minute of the reconciled series. Nil values are gaps
// and must stay distinguishable from zero.
type AlignedPoint struct {
	TimestampRaw   int64    `json:"timestampRaw"`
	ActivePower    *float64 `json:"activePower"`
	Consumption    *float64 `json:"consumption"`
	ConsumptionNeg *float64 `json:"consumptionNeg"`
}

// DailyYield is the energy produced on one civil day in kWh.
type DailyYield struct {
	Date  string  `json:"date"`
	Yield float64 `json:"yield"`
}

// Snapshot is the most recent raw sample set fetched for a plant and day. It
// is replaced wholesale on every successful fetch.
type Snapshot struct {
	PlantID   int            `json:"plantID"`
	Date      string         `json:"date"`
	FetchedAt time.Time      `json:"fetchedAt"`
	Data      ProductionData `json:"data"`
}
