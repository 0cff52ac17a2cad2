package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/plantwatch/plantwatch/pkg/common"
	"github.com/plantwatch/plantwatch/pkg/log"
	"github.com/plantwatch/plantwatch/pkg/types"
)

// API implements Source against the plant backend's HTTP API.
type API struct {
	client  *http.Client
	baseURL string
	token   string
}

var _ Source = (*API)(nil)

func configuredAPI() *API {
	baseURL := lflag.String("telemetry-api-url", "", "Base URL of the plant backend API")
	token := lflag.String("telemetry-api-token", "", "Bearer token for the plant backend API")
	timeout := lflag.Duration("telemetry-timeout", 30*time.Second, "Timeout for plant backend requests")

	a := &API{}
	lflag.Do(func() {
		a.baseURL = *baseURL
		a.token = *token
		a.client = common.HTTPClient(*timeout)
	})
	return a
}

// Validate checks if the client is properly configured.
func (a *API) Validate() error {
	if a.baseURL == "" {
		return errors.New("telemetry-api-url is required")
	}
	if _, err := url.Parse(a.baseURL); err != nil {
		return fmt.Errorf("invalid telemetry-api-url: %w", err)
	}
	return nil
}

func (a *API) newGetRequest(ctx context.Context, endpoint string, params url.Values) (*http.Request, error) {
	u, err := url.Parse(a.baseURL)
	if err != nil {
		return nil, err
	}
	u.Path, err = url.JoinPath(u.Path, endpoint)
	if err != nil {
		return nil, err
	}

	u.RawQuery = params.Encode()
	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, err
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (a *API) doRequest(req *http.Request, dest interface{}) error {
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrPlantNotFound, req.URL.Path)
	case resp.StatusCode != http.StatusOK:
		log.Ctx(req.Context()).WarnContext(req.Context(), "plant backend error", slog.Int("status", resp.StatusCode), slog.String("body", string(body)))
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(dest); err != nil {
		log.Ctx(req.Context()).ErrorContext(req.Context(), "failed to decode plant backend response", slog.Any("error", err), slog.String("url", req.URL.String()))
		return fmt.Errorf("failed to decode plant backend response: %w", err)
	}
	return nil
}

func (a *API) get(ctx context.Context, endpoint string, params url.Values, dest interface{}) error {
	req, err := a.newGetRequest(ctx, endpoint, params)
	if err != nil {
		return err
	}
	return a.doRequest(req, dest)
}

func plantPath(plantID int, name string) string {
	return "api/plant/" + strconv.Itoa(plantID) + "/" + name
}

// Plants lists every plant the backend knows about.
func (a *API) Plants(ctx context.Context) ([]types.Plant, error) {
	var plants []types.Plant
	if err := a.get(ctx, "api/plants", nil, &plants); err != nil {
		return nil, fmt.Errorf("failed to get plants: %w", err)
	}
	return plants, nil
}

// ProductionData fetches the raw production and grid samples of one civil day.
func (a *API) ProductionData(ctx context.Context, plantID int, date string) (types.ProductionData, error) {
	var resp struct {
		Production  []apiSample `json:"production"`
		Consumption []apiSample `json:"consumption"`
	}
	if err := a.get(ctx, plantPath(plantID, "production-data"), url.Values{"date": {date}}, &resp); err != nil {
		return types.ProductionData{}, fmt.Errorf("failed to get production data: %w", err)
	}
	return types.ProductionData{
		Production:  samplesFromAPI(resp.Production),
		Consumption: samplesFromAPI(resp.Consumption),
	}, nil
}

// apiSample tolerates null or string encoded power readings.
type apiSample struct {
	Timestamp   string          `json:"timestamp"`
	ActivePower json.RawMessage `json:"active_power"`
}

func samplesFromAPI(in []apiSample) []types.RawSample {
	out := make([]types.RawSample, 0, len(in))
	for _, s := range in {
		out = append(out, types.RawSample{
			Timestamp:   s.Timestamp,
			ActivePower: looseFloat(s.ActivePower),
		})
	}
	return out
}

// looseFloat reads a JSON number or numeric string and falls back to zero.
func looseFloat(raw json.RawMessage) float64 {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
		n = json.Number(s)
	}
	f, err := n.Float64()
	if err != nil {
		return 0
	}
	return f
}

// DailyYieldRange fetches the sparse daily yields between two civil dates.
func (a *API) DailyYieldRange(ctx context.Context, plantID int, startDate, endDate string) ([]types.DailyYield, error) {
	var days []types.DailyYield
	params := url.Values{"start_date": {startDate}, "end_date": {endDate}}
	if err := a.get(ctx, plantPath(plantID, "daily-yield-range"), params, &days); err != nil {
		return nil, fmt.Errorf("failed to get daily yield range: %w", err)
	}
	return days, nil
}

// WeeklyAverages fetches the backend's stored weekly string averages.
func (a *API) WeeklyAverages(ctx context.Context, plantID int) ([]types.StringBaseline, error) {
	var rows []struct {
		StringNumber   int     `json:"string_number"`
		HourlyAvgPower float64 `json:"hourly_avg_power"`
	}
	if err := a.get(ctx, plantPath(plantID, "weekly-avg"), nil, &rows); err != nil {
		return nil, fmt.Errorf("failed to get weekly averages: %w", err)
	}
	baselines := make([]types.StringBaseline, 0, len(rows))
	for _, r := range rows {
		baselines = append(baselines, types.StringBaseline{
			StringNumber:   r.StringNumber,
			WeeklyAvgPower: r.HourlyAvgPower,
		})
	}
	return baselines, nil
}

// InverterData fetches the latest string readings of every inverter.
func (a *API) InverterData(ctx context.Context, plantID int) ([]types.InverterReading, error) {
	var rows []map[string]any
	if err := a.get(ctx, plantPath(plantID, "inverter-data"), nil, &rows); err != nil {
		return nil, fmt.Errorf("failed to get inverter data: %w", err)
	}
	inverters := make([]types.InverterReading, 0, len(rows))
	for _, row := range rows {
		inv, err := inverterFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("failed to decode inverter row: %w", err)
		}
		inverters = append(inverters, inv)
	}
	return inverters, nil
}

// StringSamples fetches every string reading recorded since the given time.
func (a *API) StringSamples(ctx context.Context, plantID int, since time.Time) ([]types.StringSample, error) {
	var samples []types.StringSample
	params := url.Values{"since": {since.UTC().Format(time.RFC3339)}}
	if err := a.get(ctx, plantPath(plantID, "string-samples"), params, &samples); err != nil {
		return nil, fmt.Errorf("failed to get string samples: %w", err)
	}
	return samples, nil
}

// Close is a no-op for the HTTP client.
func (a *API) Close() error {
	return nil
}
