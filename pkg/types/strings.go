package types

import (
	"fmt"
	"time"
)

// Threshold selects which deviation band is highlighted. The empty value
// means no threshold was chosen.
type Threshold string

const (
	ThresholdNone Threshold = ""
	Threshold2_5  Threshold = "2.5"
	Threshold5    Threshold = "5"
	Threshold10   Threshold = "10"
	ThresholdLow  Threshold = "low"
)

// ParseThreshold validates a threshold coming from a query string or config.
func ParseThreshold(s string) (Threshold, error) {
	switch t := Threshold(s); t {
	case ThresholdNone, Threshold2_5, Threshold5, Threshold10, ThresholdLow:
		return t, nil
	case "null":
		return ThresholdNone, nil
	default:
		return ThresholdNone, fmt.Errorf("invalid threshold: %q", s)
	}
}

// DeviationBand is the display classification of a string's deviation from
// its baseline.
type DeviationBand string

const (
	BandNone    DeviationBand = "none"
	BandWarnLow DeviationBand = "warn-low-2_5"
	BandWarn5   DeviationBand = "warn-5"
	BandWarn10  DeviationBand = "warn-10"
	BandOKZero  DeviationBand = "ok-zero"
	BandOKLow   DeviationBand = "ok-low"
)

// StringBaseline is the trailing weekly average power of one physical string.
type StringBaseline struct {
	StringNumber   int     `json:"string_number"`
	WeeklyAvgPower float64 `json:"weekly_avg_power"`
}

// BaselineSet is the stored result of a baseline calculation for a plant.
// Baselines is plant-wide, Inverters is keyed by inverter ID and Hourly by
// civil hour of day.
type BaselineSet struct {
	PlantID      int                      `json:"plantID"`
	CalculatedAt time.Time                `json:"calculatedAt"`
	Baselines    []StringBaseline         `json:"baselines"`
	Inverters    map[int][]StringBaseline `json:"inverters,omitempty"`
	Hourly       map[int][]StringBaseline `json:"hourly,omitempty"`
}

// StringReading is a single string's voltage (V) and current (A).
type StringReading struct {
	Number  int     `json:"string_number"`
	Voltage float64 `json:"v"`
	Current float64 `json:"a"`
}

// InverterReading is the latest reading of an inverter's strings.
// MaxPower is the rated power in W and ActivePower the output in kW; either
// is nil when the source did not report it.
type InverterReading struct {
	InverterID     int             `json:"inverter_id"`
	Name           string          `json:"inverter_name"`
	SlaveID        int             `json:"slave_id"`
	MaxStringCount int             `json:"max_string_count"`
	MaxPower       *float64        `json:"max_power,omitempty"`
	ActivePower    *float64        `json:"active_power,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
	Strings        []StringReading `json:"strings"`
}

// InverterPerformance is an inverter's latest output relative to its rating.
// PowerKWh repeats ActivePower for clients that chart it as energy.
type InverterPerformance struct {
	InverterID  int     `json:"inverter_id"`
	Name        string  `json:"inverter_name"`
	ActivePower float64 `json:"active_power"`
	PowerKWh    float64 `json:"power_kwh"`
	Percent     float64 `json:"percent"`
}

// StringSample is a historical reading of an inverter's strings, used to
// recompute baselines.
type StringSample struct {
	InverterID int             `json:"inverter_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Strings    []StringReading `json:"strings"`
}

// ClassifiedString is a string reading together with its band.
type ClassifiedString struct {
	StringReading
	Band DeviationBand `json:"band"`
}

// ClassifiedInverter is an inverter whose strings have been classified.
type ClassifiedInverter struct {
	InverterID int                `json:"inverter_id"`
	Name       string             `json:"inverter_name"`
	SlaveID    int                `json:"slave_id"`
	Timestamp  time.Time          `json:"timestamp"`
	Strings    []ClassifiedString `json:"strings"`
}
