// Package telemetry reads plant measurements from the plant backend, either
// over its HTTP API or straight from its Postgres database.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/plantwatch/plantwatch/pkg/types"
)

var ErrPlantNotFound = errors.New("plant not found")

// Source is the read side of the plant backend.
type Source interface {
	Plants(ctx context.Context) ([]types.Plant, error)

	// ProductionData returns the raw production and grid samples for one
	// civil day (YYYY-MM-DD).
	ProductionData(ctx context.Context, plantID int, date string) (types.ProductionData, error)
	// DailyYieldRange returns the sparse per-day maximum of the cumulative
	// daily yield counter between two civil dates, inclusive.
	DailyYieldRange(ctx context.Context, plantID int, startDate, endDate string) ([]types.DailyYield, error)

	WeeklyAverages(ctx context.Context, plantID int) ([]types.StringBaseline, error)
	InverterData(ctx context.Context, plantID int) ([]types.InverterReading, error)
	StringSamples(ctx context.Context, plantID int, since time.Time) ([]types.StringSample, error)

	Close() error
}

// Configured sets up the telemetry source based on flags.
func Configured() Source {
	provider := lflag.String("telemetry-provider", "api", "Telemetry source to use (available: api, postgres)")

	var s struct{ Source }

	api := configuredAPI()
	pg := configuredPostgres()

	lflag.Do(func() {
		switch *provider {
		case "api":
			if err := api.Validate(); err != nil {
				panic(fmt.Sprintf("telemetry api validation failed: %v", err))
			}
			s.Source = api
		case "postgres":
			if err := pg.Validate(); err != nil {
				panic(fmt.Sprintf("telemetry postgres validation failed: %v", err))
			}
			if err := pg.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("telemetry postgres init failed: %v", err))
			}
			s.Source = pg
		default:
			panic(fmt.Sprintf("unknown telemetry provider: %s", *provider))
		}
	})

	return &s
}
