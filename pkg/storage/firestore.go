package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"github.com/plantwatch/plantwatch/pkg/log"
	"github.com/plantwatch/plantwatch/pkg/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreProvider implements the Database interface using Google Cloud Firestore.
// Every document stores its payload as a JSON string in the "json" field.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// Project ID may be empty, it is detected from the environment then.
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) getCollection(plantID int, name string) (*firestore.CollectionRef, error) {
	if plantID <= 0 {
		return nil, fmt.Errorf("invalid plantID: %d", plantID)
	}
	return f.client.Collection("plants").Doc(strconv.Itoa(plantID)).Collection(name), nil
}

// readJSON decodes the "json" field of doc into dest.
func readJSON(ctx context.Context, doc *firestore.DocumentSnapshot, dest interface{}) error {
	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "doc missing json", slog.String("path", doc.Ref.Path), slog.Any("err", err))
		return fmt.Errorf("document %s missing 'json' field: %w", doc.Ref.ID, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "doc json not string", slog.String("path", doc.Ref.Path))
		return fmt.Errorf("document %s 'json' field is not a string", doc.Ref.ID)
	}
	if err := json.Unmarshal([]byte(jsonStr), dest); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal doc json", slog.String("path", doc.Ref.Path), slog.Any("err", err))
		return fmt.Errorf("failed to unmarshal document %s: %w", doc.Ref.ID, err)
	}
	return nil
}

// PutSnapshot stores the snapshot in the "snapshots" collection keyed by
// date, replacing any previous one.
func (f *FirestoreProvider) PutSnapshot(ctx context.Context, snap types.Snapshot) error {
	if snap.Date == "" {
		return fmt.Errorf("snapshot missing date")
	}
	jsonBytes, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	coll, err := f.getCollection(snap.PlantID, "snapshots")
	if err != nil {
		return err
	}
	_, err = coll.Doc(snap.Date).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"fetchedAt": snap.FetchedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns the stored snapshot for the plant and date or
// ErrSnapshotNotFound.
func (f *FirestoreProvider) GetSnapshot(ctx context.Context, plantID int, date string) (types.Snapshot, error) {
	coll, err := f.getCollection(plantID, "snapshots")
	if err != nil {
		return types.Snapshot{}, err
	}
	doc, err := coll.Doc(date).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Snapshot{}, ErrSnapshotNotFound
		}
		return types.Snapshot{}, fmt.Errorf("failed to fetch snapshot doc: %w", err)
	}

	var snap types.Snapshot
	if err := readJSON(ctx, doc, &snap); err != nil {
		return types.Snapshot{}, err
	}
	return snap, nil
}

// DeleteSnapshotsBefore removes every snapshot dated before the given civil
// date and returns how many were removed. Document IDs are YYYY-MM-DD so
// they order chronologically.
func (f *FirestoreProvider) DeleteSnapshotsBefore(ctx context.Context, plantID int, date string) (int, error) {
	coll, err := f.getCollection(plantID, "snapshots")
	if err != nil {
		return 0, err
	}
	iter := coll.
		Where(firestore.DocumentID, "<", coll.Doc(date)).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var deleted int
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return deleted, fmt.Errorf("error iterating snapshots: %w", err)
		}
		if _, err := doc.Ref.Delete(ctx); err != nil {
			return deleted, fmt.Errorf("failed to delete snapshot %s: %w", doc.Ref.ID, err)
		}
		deleted++
	}
	return deleted, nil
}

// PutBaselines saves the baseline set to the "config/baselines" document.
func (f *FirestoreProvider) PutBaselines(ctx context.Context, set types.BaselineSet) error {
	jsonBytes, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to marshal baselines: %w", err)
	}

	coll, err := f.getCollection(set.PlantID, "config")
	if err != nil {
		return err
	}
	_, err = coll.Doc("baselines").Set(ctx, map[string]interface{}{
		"json":         string(jsonBytes),
		"calculatedAt": set.CalculatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to save baselines: %w", err)
	}
	return nil
}

// GetBaselines retrieves the baseline set from the "config/baselines" document.
func (f *FirestoreProvider) GetBaselines(ctx context.Context, plantID int) (types.BaselineSet, error) {
	coll, err := f.getCollection(plantID, "config")
	if err != nil {
		return types.BaselineSet{}, err
	}
	doc, err := coll.Doc("baselines").Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.BaselineSet{PlantID: plantID}, nil
		}
		return types.BaselineSet{}, fmt.Errorf("failed to fetch baselines doc: %w", err)
	}

	var set types.BaselineSet
	if err := readJSON(ctx, doc, &set); err != nil {
		return types.BaselineSet{}, err
	}
	return set, nil
}

// GetSettings retrieves the plant settings from the "config/settings" document.
func (f *FirestoreProvider) GetSettings(ctx context.Context, plantID int) (types.PlantSettings, int, error) {
	coll, err := f.getCollection(plantID, "config")
	if err != nil {
		return types.PlantSettings{}, 0, err
	}
	doc, err := coll.Doc("settings").Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.PlantSettings{}, 0, nil
		}
		return types.PlantSettings{}, 0, fmt.Errorf("failed to fetch settings doc: %w", err)
	}

	// Read version if available (default 0)
	var version int
	if v, err := doc.DataAt("version"); err == nil {
		if vInt, ok := v.(int64); ok {
			version = int(vInt)
		}
	}

	var settings types.PlantSettings
	if err := readJSON(ctx, doc, &settings); err != nil {
		return types.PlantSettings{}, 0, err
	}
	return settings, version, nil
}

// SetSettings saves the plant settings to the "config/settings" document.
func (f *FirestoreProvider) SetSettings(ctx context.Context, plantID int, settings types.PlantSettings, version int) error {
	jsonBytes, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	coll, err := f.getCollection(plantID, "config")
	if err != nil {
		return err
	}
	_, err = coll.Doc("settings").Set(ctx, map[string]interface{}{
		"json":    string(jsonBytes),
		"version": version,
	})
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
