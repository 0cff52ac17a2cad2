package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/plantwatch/plantwatch/pkg/log"
	"github.com/plantwatch/plantwatch/pkg/series"
	"github.com/plantwatch/plantwatch/pkg/storage"
	"github.com/plantwatch/plantwatch/pkg/stringhealth"
	"github.com/plantwatch/plantwatch/pkg/types"
)

const (
	PeakKW       = 250.0
	BaseLoadKW   = 40.0
	Inverters    = 3
	StringsPerMP = 6
	StringVolts  = 620.0
	StringAmps   = 9.5
)

func main() {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	}
	s := storage.Configured()
	plantList := lflag.String("seed-plants", "1", "comma-delimited plant IDs to seed")
	span := lflag.Duration("seed-span", 72*time.Hour, "how far back to seed snapshots")
	lflag.Configure()

	ctx := context.Background()
	defer s.Close()

	var ids []int
	for _, raw := range strings.Split(*plantList, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || id <= 0 {
			log.Ctx(ctx).ErrorContext(ctx, "invalid plant id", "id", raw)
			os.Exit(1)
		}
		ids = append(ids, id)
	}

	log.Ctx(ctx).InfoContext(ctx, "seeding mock data", "plants", ids)

	// Use a new random source
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	now := time.Now()

	for _, id := range ids {
		pctx := log.WithPlant(ctx, id)

		// one snapshot per civil day, today included
		for d := now.Add(-*span); series.FormatDate(d) <= series.FormatDate(now); d = d.Add(24 * time.Hour) {
			date := series.FormatDate(d)
			snap := types.Snapshot{
				PlantID:   id,
				Date:      date,
				FetchedAt: now.UTC(),
				Data:      mockDay(rng, date, now),
			}
			if err := s.PutSnapshot(pctx, snap); err != nil {
				log.Ctx(pctx).ErrorContext(pctx, "failed to seed snapshot", "error", err)
				os.Exit(1)
			}
			fmt.Printf("Seeded plant %d %s: %d production, %d grid samples\n",
				id, date, len(snap.Data.Production), len(snap.Data.Consumption))
		}

		set := stringhealth.ComputeSet(id, now, mockStringSamples(rng, now))
		if err := s.PutBaselines(pctx, set); err != nil {
			log.Ctx(pctx).ErrorContext(pctx, "failed to seed baselines", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Seeded plant %d baselines for %d strings\n", id, len(set.Baselines))

		// curtail below zero prices but keep covering the base load
		settings := types.PlantSettings{PriceControlEnabled: true, MinPowerLimit: BaseLoadKW}
		if err := s.SetSettings(pctx, id, settings, types.CurrentSettingsVersion); err != nil {
			log.Ctx(pctx).ErrorContext(pctx, "failed to seed settings", "error", err)
			os.Exit(1)
		}
	}

	log.Ctx(ctx).InfoContext(ctx, "seeded mock data successfully")
}

// solar is a bell curve over the civil day peaking at 13:00.
func solar(t time.Time) float64 {
	c := t.In(series.Location())
	hour := float64(c.Hour()) + float64(c.Minute())/60
	if hour < 6 || hour > 20 {
		return 0
	}
	dist := hour - 13
	return math.Exp(-(dist * dist) / 8)
}

// mockDay generates minute samples for a civil day up to now. Production
// comes from the logger every minute, the grid meter reports every other
// minute with some jitter so the reconciler has gaps to fill.
func mockDay(rng *rand.Rand, date string, now time.Time) types.ProductionData {
	start, _ := series.ParseDate(date)
	end := start.AddDate(0, 0, 1)
	if end.After(now) {
		end = now
	}
	var data types.ProductionData
	for t := start; t.Before(end); t = t.Add(time.Minute) {
		prodKW := PeakKW * solar(t) * (0.9 + rng.Float64()*0.1)
		data.Production = append(data.Production, types.RawSample{
			Timestamp:   t.UTC().Format("2006-01-02T15:04:05"),
			ActivePower: prodKW,
		})
		if t.Minute()%2 == 1 {
			continue
		}
		loadKW := BaseLoadKW + rng.Float64()*20
		jitter := time.Duration(rng.Intn(20)) * time.Second
		data.Consumption = append(data.Consumption, types.RawSample{
			Timestamp:   t.Add(jitter).UTC().Format(time.RFC3339),
			ActivePower: loadKW - prodKW,
		})
	}
	return data
}

// mockStringSamples generates a week of quarter-hourly string readings. The
// last string of every inverter underperforms so the classifier has
// something to flag.
func mockStringSamples(rng *rand.Rand, now time.Time) []types.StringSample {
	var samples []types.StringSample
	for t := now.Add(-stringhealth.BaselineWindow); !t.After(now); t = t.Add(15 * time.Minute) {
		irradiance := solar(t)
		if irradiance == 0 {
			continue
		}
		for inv := 1; inv <= Inverters; inv++ {
			sample := types.StringSample{InverterID: inv, Timestamp: t}
			for n := 1; n <= StringsPerMP; n++ {
				amps := StringAmps * irradiance * (0.95 + rng.Float64()*0.05)
				if n == StringsPerMP {
					amps *= 0.8
				}
				sample.Strings = append(sample.Strings, types.StringReading{
					Number:  n,
					Voltage: StringVolts + rng.Float64()*10,
					Current: amps,
				})
			}
			samples = append(samples, sample)
		}
	}
	return samples
}
