package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetsExcludesSource(t *testing.T) {
	for _, source := range AllStores() {
		targets := Targets(source)
		assert.Len(t, targets, 3, "four configured stores minus the source")
		assert.NotContains(t, targets, source)
	}
}

func TestTargetsUnknownSourceHitsAllStores(t *testing.T) {
	// An unvalidated source falls through to all four targets; Validate
	// is what rejects it before dispatch
	targets := Targets(StoreID("oracle"))
	assert.Len(t, targets, 4)
}

func TestChangeRecordValidate(t *testing.T) {
	valid := ChangeRecord{
		CorrelationID: "c-1",
		Source:        StorePostgres,
		Operation:     OpInsert,
		EntityKind:    KindIncidents,
		Payload:       json.RawMessage(`{"id":"inc_1"}`),
		EnqueuedAt:    time.Now(),
	}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*ChangeRecord)
	}{
		{"unknown source", func(r *ChangeRecord) { r.Source = "oracle" }},
		{"unknown operation", func(r *ChangeRecord) { r.Operation = "UPSERT" }},
		{"unknown entity kind", func(r *ChangeRecord) { r.EntityKind = "audits" }},
		{"empty payload", func(r *ChangeRecord) { r.Payload = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := valid
			tc.mutate(&rec)
			assert.Error(t, rec.Validate())
		})
	}
}

func TestChangeRecordPayloadRoundTripsUnchanged(t *testing.T) {
	payload := json.RawMessage(`{"id":"inc_1","title":"Flood","status":"Open","latitude":-12.5}`)
	rec := ChangeRecord{
		CorrelationID: "c-2",
		Source:        StoreMongo,
		Operation:     OpUpdate,
		EntityKind:    KindIncidents,
		Payload:       payload,
		EnqueuedAt:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	wire, err := json.Marshal(rec)
	require.NoError(t, err)

	var decoded ChangeRecord
	require.NoError(t, json.Unmarshal(wire, &decoded))

	assert.Equal(t, rec.Source, decoded.Source)
	assert.Equal(t, rec.Operation, decoded.Operation)
	assert.Equal(t, rec.EntityKind, decoded.EntityKind)
	assert.JSONEq(t, string(payload), string(decoded.Payload))
	assert.True(t, rec.EnqueuedAt.Equal(decoded.EnqueuedAt))
}

func TestNewEntityID(t *testing.T) {
	prefixes := map[EntityKind]string{
		KindIncidents: "inc_",
		KindUsers:     "usr_",
		KindResources: "res_",
	}
	for kind, prefix := range prefixes {
		id, err := NewEntityID(kind)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(id, prefix), "id %q should start with %q", id, prefix)
		assert.Len(t, strings.Split(id, "_"), 3)
	}

	_, err := NewEntityID(EntityKind("audits"))
	assert.Error(t, err)
}

func TestNewEntityIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for range 200 {
		id, err := NewEntityID(KindIncidents)
		require.NoError(t, err)
		assert.False(t, seen[id], "duplicate id %q", id)
		seen[id] = true
	}
}
