package telemetrymock

import (
	"context"
	"time"

	"github.com/plantwatch/plantwatch/pkg/telemetry"
	"github.com/plantwatch/plantwatch/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockSource struct {
	mock.Mock
}

var _ telemetry.Source = (*MockSource)(nil)

func (m *MockSource) Plants(ctx context.Context) ([]types.Plant, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]types.Plant), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSource) ProductionData(ctx context.Context, plantID int, date string) (types.ProductionData, error) {
	args := m.Called(ctx, plantID, date)
	return args.Get(0).(types.ProductionData), args.Error(1)
}

func (m *MockSource) DailyYieldRange(ctx context.Context, plantID int, startDate, endDate string) ([]types.DailyYield, error) {
	args := m.Called(ctx, plantID, startDate, endDate)
	if v := args.Get(0); v != nil {
		return v.([]types.DailyYield), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSource) WeeklyAverages(ctx context.Context, plantID int) ([]types.StringBaseline, error) {
	args := m.Called(ctx, plantID)
	if v := args.Get(0); v != nil {
		return v.([]types.StringBaseline), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSource) InverterData(ctx context.Context, plantID int) ([]types.InverterReading, error) {
	args := m.Called(ctx, plantID)
	if v := args.Get(0); v != nil {
		return v.([]types.InverterReading), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSource) StringSamples(ctx context.Context, plantID int, since time.Time) ([]types.StringSample, error) {
	args := m.Called(ctx, plantID, since)
	if v := args.Get(0); v != nil {
		return v.([]types.StringSample), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSource) Close() error {
	args := m.Called()
	return args.Error(0)
}
