package storagemock

import (
	"context"

	"github.com/plantwatch/plantwatch/pkg/storage"
	"github.com/plantwatch/plantwatch/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) PutSnapshot(ctx context.Context, snap types.Snapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

func (m *MockDatabase) GetSnapshot(ctx context.Context, plantID int, date string) (types.Snapshot, error) {
	args := m.Called(ctx, plantID, date)
	if len(args) > 0 {
		return args.Get(0).(types.Snapshot), args.Error(1)
	}
	return types.Snapshot{}, storage.ErrSnapshotNotFound
}

func (m *MockDatabase) DeleteSnapshotsBefore(ctx context.Context, plantID int, date string) (int, error) {
	args := m.Called(ctx, plantID, date)
	if len(args) > 0 {
		return args.Int(0), args.Error(1)
	}
	return 0, nil
}

func (m *MockDatabase) PutBaselines(ctx context.Context, set types.BaselineSet) error {
	args := m.Called(ctx, set)
	return args.Error(0)
}

func (m *MockDatabase) GetBaselines(ctx context.Context, plantID int) (types.BaselineSet, error) {
	args := m.Called(ctx, plantID)
	if len(args) > 0 {
		return args.Get(0).(types.BaselineSet), args.Error(1)
	}
	return types.BaselineSet{PlantID: plantID}, nil
}

func (m *MockDatabase) GetSettings(ctx context.Context, plantID int) (types.PlantSettings, int, error) {
	args := m.Called(ctx, plantID)
	if len(args) > 0 {
		return args.Get(0).(types.PlantSettings), args.Int(1), args.Error(2)
	}
	return types.PlantSettings{}, 0, nil
}

func (m *MockDatabase) SetSettings(ctx context.Context, plantID int, settings types.PlantSettings, version int) error {
	args := m.Called(ctx, plantID, settings, version)
	return args.Error(0)
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
