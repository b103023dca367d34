package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"quadsync/internal/broker"
	"quadsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBroker struct {
	mu        sync.Mutex
	healthy   bool
	published []models.ChangeRecord
	pubErr    error
}

func (f *fakeBroker) Publish(ctx context.Context, rec models.ChangeRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pubErr != nil {
		return f.pubErr
	}
	f.published = append(f.published, rec)
	return nil
}

func (f *fakeBroker) IsHealthy() bool { return f.healthy }

func (f *fakeBroker) records() []models.ChangeRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ChangeRecord(nil), f.published...)
}

func newTestRecorder(b *fakeBroker) *Recorder {
	return NewRecorder(b, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRecordChangeEnqueuesOneDurableJob(t *testing.T) {
	b := &fakeBroker{healthy: true}
	r := newTestRecorder(b)

	inc := models.Incident{
		ID:        "inc_1",
		Title:     "Flood",
		Status:    models.StatusOpen,
		UpdatedAt: time.Now().UTC(),
	}
	err := r.RecordChange(context.Background(), models.StorePostgres, models.OpInsert, models.KindIncidents, inc)
	require.NoError(t, err)
	r.Drain()

	recs := b.records()
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, models.StorePostgres, rec.Source)
	assert.Equal(t, models.OpInsert, rec.Operation)
	assert.Equal(t, models.KindIncidents, rec.EntityKind)
	assert.NotEmpty(t, rec.CorrelationID)
	assert.False(t, rec.EnqueuedAt.IsZero())

	// The payload must survive the trip unchanged
	var decoded models.Incident
	require.NoError(t, json.Unmarshal(rec.Payload, &decoded))
	assert.Equal(t, inc.ID, decoded.ID)
	assert.Equal(t, inc.Title, decoded.Title)
	assert.Equal(t, inc.Status, decoded.Status)
}

func TestRecordChangeQueueUnavailable(t *testing.T) {
	b := &fakeBroker{healthy: false}
	r := newTestRecorder(b)

	err := r.RecordChange(context.Background(), models.StorePostgres, models.OpInsert, models.KindIncidents,
		models.Incident{ID: "inc_1", Status: models.StatusOpen})
	assert.ErrorIs(t, err, broker.ErrUnavailable)
	assert.Empty(t, b.records())
}

func TestRecordChangeRejectsCallerBugsSynchronously(t *testing.T) {
	b := &fakeBroker{healthy: true}
	r := newTestRecorder(b)

	err := r.RecordChange(context.Background(), "oracle", models.OpInsert, models.KindIncidents,
		models.Incident{ID: "inc_1", Status: models.StatusOpen})
	assert.Error(t, err)

	err = r.RecordChange(context.Background(), models.StorePostgres, "UPSERT", models.KindIncidents,
		models.Incident{ID: "inc_1", Status: models.StatusOpen})
	assert.Error(t, err)

	r.Drain()
	assert.Empty(t, b.records())
}

func TestRecordChangePublishFailureIsSwallowed(t *testing.T) {
	// Enqueue failures after the health check are logged, never
	// propagated; the caller's CRUD transaction already committed
	b := &fakeBroker{healthy: true, pubErr: errors.New("confirm timeout")}
	r := newTestRecorder(b)

	err := r.RecordChange(context.Background(), models.StoreMongo, models.OpDelete, models.KindUsers,
		models.User{ID: "usr_1", Email: "a@b.c"})
	assert.NoError(t, err)
	r.Drain()
}
