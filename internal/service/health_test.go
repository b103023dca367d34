package service

import (
	"context"
	"errors"
	"testing"

	"quadsync/internal/models"
	"quadsync/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedProbe bool

func (p fixedProbe) IsHealthy() bool { return bool(p) }

func checkerWith(t *testing.T, queueUp bool, stores map[models.StoreID]*readOnlyStore) *HealthChecker {
	t.Helper()
	adapters := make([]store.Adapter, 0, len(stores))
	for _, s := range stores {
		adapters = append(adapters, s)
	}
	reg, err := store.NewRegistry(adapters...)
	require.NoError(t, err)
	return NewHealthChecker(reg, fixedProbe(queueUp))
}

func TestHealthAllConnected(t *testing.T) {
	h := checkerWith(t, true, map[models.StoreID]*readOnlyStore{
		models.StorePostgres:  {name: models.StorePostgres},
		models.StoreMongo:     {name: models.StoreMongo},
		models.StoreFirebird:  {name: models.StoreFirebird},
		models.StoreCassandra: {name: models.StoreCassandra},
	})

	report := h.Check(context.Background())
	assert.True(t, report.AllConnected())
	assert.Len(t, report.Databases, 5) // four stores plus the queue backend
	for name, health := range report.Databases {
		assert.True(t, health.Connected, "%s should be connected", name)
		assert.Nil(t, health.Error)
	}
}

func TestHealthReportsFailedStoreWithError(t *testing.T) {
	h := checkerWith(t, true, map[models.StoreID]*readOnlyStore{
		models.StorePostgres:  {name: models.StorePostgres},
		models.StoreMongo:     {name: models.StoreMongo, pingErr: errors.New("connection refused")},
		models.StoreFirebird:  {name: models.StoreFirebird},
		models.StoreCassandra: {name: models.StoreCassandra},
	})

	report := h.Check(context.Background())
	assert.False(t, report.AllConnected())

	mongo := report.Databases[string(models.StoreMongo)]
	assert.False(t, mongo.Connected)
	require.NotNil(t, mongo.Error)
	assert.Contains(t, *mongo.Error, "connection refused")
}

func TestHealthReportsQueueDown(t *testing.T) {
	h := checkerWith(t, false, map[models.StoreID]*readOnlyStore{
		models.StorePostgres: {name: models.StorePostgres},
	})

	report := h.Check(context.Background())
	assert.False(t, report.AllConnected())
	assert.False(t, report.Databases["rabbitmq"].Connected)
}
