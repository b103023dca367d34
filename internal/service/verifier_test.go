package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"quadsync/internal/models"
	"quadsync/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readOnlyStore is an Adapter stub for verification tests: it serves one
// canned snapshot (or error) and rejects writes
type readOnlyStore struct {
	name     models.StoreID
	snapshot *models.IncidentSnapshot
	readErr  error
	pingErr  error
}

func (r *readOnlyStore) Name() models.StoreID { return r.name }

func (r *readOnlyStore) Write(ctx context.Context, rec models.ChangeRecord) error {
	return errors.New("verification must not write")
}

func (r *readOnlyStore) FetchIncident(ctx context.Context, id string) (*models.IncidentSnapshot, error) {
	if r.readErr != nil {
		return nil, r.readErr
	}
	return r.snapshot, nil
}

func (r *readOnlyStore) Ping(ctx context.Context) error { return r.pingErr }

func snap(status models.Status) *models.IncidentSnapshot {
	return &models.IncidentSnapshot{
		ID:          "inc_1",
		Title:       "Flood",
		Description: "River overflow",
		Status:      status,
	}
}

func verifierWith(t *testing.T, stores map[models.StoreID]*readOnlyStore) *Verifier {
	t.Helper()
	adapters := make([]store.Adapter, 0, len(stores))
	for _, s := range stores {
		adapters = append(adapters, s)
	}
	reg, err := store.NewRegistry(adapters...)
	require.NoError(t, err)
	return NewVerifier(reg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestVerifyAllMatch(t *testing.T) {
	v := verifierWith(t, map[models.StoreID]*readOnlyStore{
		models.StorePostgres:  {name: models.StorePostgres, snapshot: snap(models.StatusOpen)},
		models.StoreMongo:     {name: models.StoreMongo, snapshot: snap(models.StatusOpen)},
		models.StoreFirebird:  {name: models.StoreFirebird, snapshot: snap(models.StatusOpen)},
		models.StoreCassandra: {name: models.StoreCassandra, snapshot: snap(models.StatusOpen)},
	})

	report := v.Verify(context.Background(), "inc_1")
	assert.True(t, report.AllMatch)
	assert.Equal(t, "inc_1", report.IncidentID)
	assert.Len(t, report.Databases, 4)
}

func TestVerifyStatusDivergenceFailsMatch(t *testing.T) {
	v := verifierWith(t, map[models.StoreID]*readOnlyStore{
		models.StorePostgres:  {name: models.StorePostgres, snapshot: snap(models.StatusOpen)},
		models.StoreMongo:     {name: models.StoreMongo, snapshot: snap(models.StatusOpen)},
		models.StoreFirebird:  {name: models.StoreFirebird, snapshot: snap(models.StatusClosed)},
		models.StoreCassandra: {name: models.StoreCassandra, snapshot: snap(models.StatusOpen)},
	})

	report := v.Verify(context.Background(), "inc_1")
	assert.False(t, report.AllMatch)
}

func TestVerifyReadFailureDowngradesToNull(t *testing.T) {
	v := verifierWith(t, map[models.StoreID]*readOnlyStore{
		models.StorePostgres:  {name: models.StorePostgres, snapshot: snap(models.StatusOpen)},
		models.StoreMongo:     {name: models.StoreMongo, readErr: errors.New("connection refused")},
		models.StoreFirebird:  {name: models.StoreFirebird, snapshot: snap(models.StatusOpen)},
		models.StoreCassandra: {name: models.StoreCassandra, snapshot: snap(models.StatusOpen)},
	})

	report := v.Verify(context.Background(), "inc_1")
	// The failed store contributes a null snapshot, not a hard error
	require.Contains(t, report.Databases, models.StoreMongo)
	assert.Nil(t, report.Databases[models.StoreMongo])
	// allMatch is computed only over non-null snapshots
	assert.True(t, report.AllMatch)
}

func TestVerifyZeroSnapshotsIsNotAMatch(t *testing.T) {
	v := verifierWith(t, map[models.StoreID]*readOnlyStore{
		models.StorePostgres:  {name: models.StorePostgres},
		models.StoreMongo:     {name: models.StoreMongo},
		models.StoreFirebird:  {name: models.StoreFirebird, readErr: errors.New("timeout")},
		models.StoreCassandra: {name: models.StoreCassandra},
	})

	report := v.Verify(context.Background(), "inc_missing")
	assert.False(t, report.AllMatch)
}

func TestVerifySingleSnapshotMatches(t *testing.T) {
	v := verifierWith(t, map[models.StoreID]*readOnlyStore{
		models.StorePostgres:  {name: models.StorePostgres, snapshot: snap(models.StatusInProgress)},
		models.StoreMongo:     {name: models.StoreMongo},
		models.StoreFirebird:  {name: models.StoreFirebird},
		models.StoreCassandra: {name: models.StoreCassandra},
	})

	report := v.Verify(context.Background(), "inc_1")
	assert.True(t, report.AllMatch)
}
