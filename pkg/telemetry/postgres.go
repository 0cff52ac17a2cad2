package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/levenlabs/go-lflag"
	"github.com/plantwatch/plantwatch/pkg/log"
	"github.com/plantwatch/plantwatch/pkg/series"
	"github.com/plantwatch/plantwatch/pkg/types"
)

// Postgres implements Source by querying the plant database directly.
// Timestamp columns are "timestamp without time zone" holding UTC.
type Postgres struct {
	pool           *pgxpool.Pool
	url            string
	connectTimeout time.Duration
	closeOnce      sync.Once
}

var _ Source = (*Postgres)(nil)

func configuredPostgres() *Postgres {
	connURL := lflag.String("postgres-url", "", "Postgres connection URL of the plant database (pool_max_conns etc. are accepted as URL parameters)")
	connectTimeout := lflag.Duration("postgres-connect-timeout", 10*time.Second, "Timeout for connecting to the plant database")

	p := &Postgres{}
	lflag.Do(func() {
		p.url = *connURL
		p.connectTimeout = *connectTimeout
	})
	return p
}

// Validate checks if the provider is properly configured.
func (p *Postgres) Validate() error {
	if p.url == "" {
		return errors.New("postgres-url is required")
	}
	return nil
}

// Init creates the connection pool and pings the database. This must be
// called before using the provider methods.
func (p *Postgres) Init(ctx context.Context) error {
	cfg, err := pgxpool.ParseConfig(p.url)
	if err != nil {
		return fmt.Errorf("invalid postgres config: %w", err)
	}
	if p.connectTimeout > 0 {
		cfg.ConnConfig.ConnectTimeout = p.connectTimeout
	}
	return p.initWithConfig(ctx, cfg)
}

func (p *Postgres) initWithConfig(ctx context.Context, cfg *pgxpool.Config) error {
	if p.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.connectTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	log.Ctx(ctx).InfoContext(
		ctx,
		"postgres pool initialized",
		slog.String("host", cfg.ConnConfig.Host),
		slog.Int("port", int(cfg.ConnConfig.Port)),
		slog.String("database", cfg.ConnConfig.Database),
		slog.Int("maxConns", int(cfg.MaxConns)),
	)
	p.pool = pool
	return nil
}

// Close closes the pool.
func (p *Postgres) Close() error {
	p.closeOnce.Do(func() {
		if p.pool != nil {
			p.pool.Close()
		}
	})
	return nil
}

// dayBoundsUTC returns the UTC instants of the first and the last
// microsecond of a civil day.
func dayBoundsUTC(date string) (time.Time, time.Time, error) {
	start, err := series.ParseDate(date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end := start.AddDate(0, 0, 1).Add(-time.Microsecond)
	return start.UTC(), end.UTC(), nil
}

// Plants lists every plant ordered by name.
func (p *Postgres) Plants(ctx context.Context) ([]types.Plant, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, name FROM plants ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query plants: %w", err)
	}
	plants, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.Plant, error) {
		var pl types.Plant
		err := row.Scan(&pl.ID, &pl.Name)
		return pl, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan plants: %w", err)
	}
	return plants, nil
}

func (p *Postgres) samples(ctx context.Context, table string, plantID int, start, end time.Time) ([]types.RawSample, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT timestamp, active_power::float8
		FROM `+table+`
		WHERE plant_id = $1
		  AND timestamp BETWEEN $2 AND $3
		ORDER BY timestamp`, plantID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	samples, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.RawSample, error) {
		var ts time.Time
		var power *float64
		if err := row.Scan(&ts, &power); err != nil {
			return types.RawSample{}, err
		}
		s := types.RawSample{Timestamp: formatNaive(ts)}
		if power != nil {
			s.ActivePower = *power
		}
		return s, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", table, err)
	}
	return samples, nil
}

// ProductionData reads logger (production) and meter (grid) samples of one
// civil day.
func (p *Postgres) ProductionData(ctx context.Context, plantID int, date string) (types.ProductionData, error) {
	start, end, err := dayBoundsUTC(date)
	if err != nil {
		return types.ProductionData{}, err
	}
	production, err := p.samples(ctx, "logger_data", plantID, start, end)
	if err != nil {
		return types.ProductionData{}, err
	}
	consumption, err := p.samples(ctx, "meter_data", plantID, start, end)
	if err != nil {
		return types.ProductionData{}, err
	}
	return types.ProductionData{Production: production, Consumption: consumption}, nil
}

// DailyYieldRange returns the maximum of the cumulative daily yield counter
// per civil day that has any data.
func (p *Postgres) DailyYieldRange(ctx context.Context, plantID int, startDate, endDate string) ([]types.DailyYield, error) {
	start, _, err := dayBoundsUTC(startDate)
	if err != nil {
		return nil, err
	}
	_, end, err := dayBoundsUTC(endDate)
	if err != nil {
		return nil, err
	}
	rows, err := p.pool.Query(ctx, `
		SELECT
			to_char(date_trunc('day', timestamp AT TIME ZONE 'UTC' AT TIME ZONE $4), 'YYYY-MM-DD') AS day,
			COALESCE(MAX(today_yield), 0)::float8 AS max_yield
		FROM logger_data
		WHERE plant_id = $1 AND timestamp BETWEEN $2 AND $3
		GROUP BY day
		ORDER BY day`, plantID, start, end, types.CivilZone)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily yield: %w", err)
	}
	days, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.DailyYield, error) {
		var d types.DailyYield
		err := row.Scan(&d.Date, &d.Yield)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan daily yield: %w", err)
	}
	return days, nil
}

// WeeklyAverages returns the most recent stored per-string averages,
// averaged over the hours of the day.
func (p *Postgres) WeeklyAverages(ctx context.Context, plantID int) ([]types.StringBaseline, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT string_number, AVG(hourly_avg_power)::float8
		FROM string_weekly_hourly_avg
		WHERE plant_id = $1
		  AND calculation_date = (SELECT MAX(calculation_date) FROM string_weekly_hourly_avg WHERE plant_id = $1)
		  AND hourly_avg_power IS NOT NULL
		GROUP BY string_number
		ORDER BY string_number`, plantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query weekly averages: %w", err)
	}
	baselines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.StringBaseline, error) {
		var b types.StringBaseline
		err := row.Scan(&b.StringNumber, &b.WeeklyAvgPower)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan weekly averages: %w", err)
	}
	return baselines, nil
}

type inverterRow struct {
	id             int
	name           string
	slaveID        int
	maxStringCount int
	maxPower       *float64
}

func (p *Postgres) inverters(ctx context.Context, plantID int) ([]inverterRow, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, COALESCE(name, ''), COALESCE(slave_id, 0), COALESCE(max_string_count, 0), max_power::float8
		FROM inverters
		WHERE plant_id = $1
		ORDER BY id`, plantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query inverters: %w", err)
	}
	invs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (inverterRow, error) {
		var inv inverterRow
		err := row.Scan(&inv.id, &inv.name, &inv.slaveID, &inv.maxStringCount, &inv.maxPower)
		return inv, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan inverters: %w", err)
	}
	return invs, nil
}

// stringColumns lists the per-string voltage and current columns of an
// inverter, interleaved.
func stringColumns(maxStringCount int) string {
	cols := make([]string, 0, 2*maxStringCount)
	for i := 1; i <= maxStringCount; i++ {
		cols = append(cols, voltageColumn(i)+"::float8", currentColumn(i)+"::float8")
	}
	return strings.Join(cols, ", ")
}

type stringRow struct {
	timestamp   time.Time
	activePower *float64
	readings    []types.StringReading
}

// scanStrings scans a row selected by stringQuery.
func scanStrings(row pgx.Row, maxStringCount int) (stringRow, error) {
	var sr stringRow
	vals := make([]*float64, 2*maxStringCount)
	dest := make([]any, 0, 2+len(vals))
	dest = append(dest, &sr.timestamp, &sr.activePower)
	for i := range vals {
		dest = append(dest, &vals[i])
	}
	if err := row.Scan(dest...); err != nil {
		return stringRow{}, err
	}
	sr.timestamp = sr.timestamp.UTC()
	for i := 0; i < maxStringCount; i++ {
		if r, ok := stringReading(i+1, vals[2*i], vals[2*i+1]); ok {
			sr.readings = append(sr.readings, r)
		}
	}
	return sr, nil
}

func stringQuery(maxStringCount int, where string) string {
	cols := stringColumns(maxStringCount)
	if cols != "" {
		cols = ", " + cols
	}
	return `SELECT timestamp, active_power::float8` + cols + ` FROM inverter_data WHERE ` + where
}

// InverterData returns the latest string readings of every inverter.
// Inverters that never reported are omitted.
func (p *Postgres) InverterData(ctx context.Context, plantID int) ([]types.InverterReading, error) {
	invs, err := p.inverters(ctx, plantID)
	if err != nil {
		return nil, err
	}
	out := make([]types.InverterReading, 0, len(invs))
	for _, inv := range invs {
		row := p.pool.QueryRow(ctx, stringQuery(inv.maxStringCount, `inverter_id = $1 ORDER BY timestamp DESC LIMIT 1`), inv.id)
		sr, err := scanStrings(row, inv.maxStringCount)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read inverter %d: %w", inv.id, err)
		}
		out = append(out, types.InverterReading{
			InverterID:     inv.id,
			Name:           inv.name,
			SlaveID:        inv.slaveID,
			MaxStringCount: inv.maxStringCount,
			MaxPower:       inv.maxPower,
			ActivePower:    sr.activePower,
			Timestamp:      sr.timestamp,
			Strings:        sr.readings,
		})
	}
	return out, nil
}

// StringSamples returns every string reading recorded since the given time.
func (p *Postgres) StringSamples(ctx context.Context, plantID int, since time.Time) ([]types.StringSample, error) {
	invs, err := p.inverters(ctx, plantID)
	if err != nil {
		return nil, err
	}
	var out []types.StringSample
	for _, inv := range invs {
		rows, err := p.pool.Query(ctx, stringQuery(inv.maxStringCount, `inverter_id = $1 AND timestamp >= $2 ORDER BY timestamp`), inv.id, since.UTC())
		if err != nil {
			return nil, fmt.Errorf("failed to query samples of inverter %d: %w", inv.id, err)
		}
		samples, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.StringSample, error) {
			sr, err := scanStrings(row, inv.maxStringCount)
			return types.StringSample{InverterID: inv.id, Timestamp: sr.timestamp, Strings: sr.readings}, err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan samples of inverter %d: %w", inv.id, err)
		}
		out = append(out, samples...)
	}
	return out, nil
}
