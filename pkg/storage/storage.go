package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/levenlabs/go-lflag"
	"github.com/plantwatch/plantwatch/pkg/types"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// Database persists the last fetched raw telemetry per plant and day, the
// latest computed string baselines and the runtime plant settings.
type Database interface {
	// Snapshots
	// PutSnapshot replaces the stored snapshot for the snapshot's plant and date.
	PutSnapshot(ctx context.Context, snap types.Snapshot) error
	GetSnapshot(ctx context.Context, plantID int, date string) (types.Snapshot, error)
	DeleteSnapshotsBefore(ctx context.Context, plantID int, date string) (int, error)

	// Baselines
	PutBaselines(ctx context.Context, set types.BaselineSet) error
	// GetBaselines returns an empty set when none were calculated yet.
	GetBaselines(ctx context.Context, plantID int) (types.BaselineSet, error)

	// Settings
	// GetSettings returns zero settings and version 0 when none were saved.
	GetSettings(ctx context.Context, plantID int) (types.PlantSettings, int, error)
	SetSettings(ctx context.Context, plantID int, settings types.PlantSettings, version int) error

	// Lifecycle
	Close() error
}

// Configured sets up the Storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "firestore", "Storage provider to use (available: firestore)")

	var p struct{ Database }

	fs := configuredFirestore()

	lflag.Do(func() {
		switch *provider {
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}
