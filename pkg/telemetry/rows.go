package telemetry

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/plantwatch/plantwatch/pkg/series"
	"github.com/plantwatch/plantwatch/pkg/types"
)

// naiveLayout matches the backend's timezone-less ISO timestamps, which are
// UTC wall clock.
const naiveLayout = "2006-01-02T15:04:05.999999"

func formatNaive(t time.Time) string {
	return t.UTC().Format(naiveLayout)
}

func voltageColumn(i int) string { return fmt.Sprintf("string_%d_v", i) }
func currentColumn(i int) string { return fmt.Sprintf("string_%d_a", i) }

// stringReading returns the reading for string number n, skipping strings
// where either register was not recorded.
func stringReading(n int, v, a *float64) (types.StringReading, bool) {
	if v == nil || a == nil {
		return types.StringReading{}, false
	}
	return types.StringReading{Number: n, Voltage: *v, Current: *a}, true
}

func numberField(row map[string]any, key string) (*float64, error) {
	raw, ok := row[key]
	if !ok || raw == nil {
		return nil, nil
	}
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		var err error
		if f, err = v.Float64(); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
	case string:
		var err error
		if f, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
	default:
		return nil, fmt.Errorf("%s: unexpected type %T", key, raw)
	}
	return &f, nil
}

func intField(row map[string]any, key string) (int, error) {
	f, err := numberField(row, key)
	if err != nil || f == nil {
		return 0, err
	}
	return int(*f), nil
}

// inverterFromRow decodes one flat inverter-data row as served by the
// backend: inverter columns, the data row's active_power plus
// string_{i}_v / string_{i}_a pairs.
func inverterFromRow(row map[string]any) (types.InverterReading, error) {
	var inv types.InverterReading
	var err error
	if inv.InverterID, err = intField(row, "inverter_id"); err != nil {
		return inv, err
	}
	if inv.SlaveID, err = intField(row, "slave_id"); err != nil {
		return inv, err
	}
	if inv.MaxStringCount, err = intField(row, "max_string_count"); err != nil {
		return inv, err
	}
	if inv.MaxPower, err = numberField(row, "max_power"); err != nil {
		return inv, err
	}
	if inv.ActivePower, err = numberField(row, "active_power"); err != nil {
		return inv, err
	}
	if name, ok := row["inverter_name"].(string); ok {
		inv.Name = name
	}
	if ts, ok := row["timestamp"].(string); ok && ts != "" {
		if inv.Timestamp, err = series.ParseInstant(ts); err != nil {
			return inv, err
		}
	}
	for i := 1; i <= inv.MaxStringCount; i++ {
		v, err := numberField(row, voltageColumn(i))
		if err != nil {
			return inv, err
		}
		a, err := numberField(row, currentColumn(i))
		if err != nil {
			return inv, err
		}
		if r, ok := stringReading(i, v, a); ok {
			inv.Strings = append(inv.Strings, r)
		}
	}
	return inv, nil
}
