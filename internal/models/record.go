package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// StoreID identifies one of the four backing stores
type StoreID string

const (
	StorePostgres  StoreID = "postgresql"
	StoreMongo     StoreID = "mongodb"
	StoreFirebird  StoreID = "firebird"
	StoreCassandra StoreID = "cassandra"
)

// AllStores returns the full deployment set in a stable order
func AllStores() []StoreID {
	return []StoreID{StorePostgres, StoreMongo, StoreFirebird, StoreCassandra}
}

// Targets computes the fan-out set for a change: every store except the
// one that already holds the authoritative write
func Targets(source StoreID) []StoreID {
	targets := make([]StoreID, 0, 3)
	for _, s := range AllStores() {
		if s != source {
			targets = append(targets, s)
		}
	}
	return targets
}

// ValidStore reports whether s names a configured store
func ValidStore(s StoreID) bool {
	switch s {
	case StorePostgres, StoreMongo, StoreFirebird, StoreCassandra:
		return true
	}
	return false
}

// Operation is the kind of write being propagated
type Operation string

const (
	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

func ValidOperation(op Operation) bool {
	return op == OpInsert || op == OpUpdate || op == OpDelete
}

// EntityKind selects which of the three replicated entities the payload holds
type EntityKind string

const (
	KindIncidents EntityKind = "incidents"
	KindUsers     EntityKind = "users"
	KindResources EntityKind = "resources"
)

// EntityRegistry whitelists the replicable kinds and maps each to its
// table/collection name, shared by every store
var EntityRegistry = map[EntityKind]string{
	KindIncidents: "incidents",
	KindUsers:     "users",
	KindResources: "resources",
}

// ChangeRecord is the unit of replication: one authoritative write, queued
// for propagation to every store except Source. The payload travels as raw
// JSON so it round-trips through the broker unchanged.
type ChangeRecord struct {
	CorrelationID string          `json:"correlation_id"`
	Source        StoreID         `json:"source"`
	Operation     Operation       `json:"operation"`
	EntityKind    EntityKind      `json:"entity_kind"`
	Payload       json.RawMessage `json:"payload"`
	EnqueuedAt    time.Time       `json:"enqueued_at"`
}

// Validate rejects records that no adapter could ever process. Failures
// here are fatal, not retryable.
func (r ChangeRecord) Validate() error {
	if !ValidStore(r.Source) {
		return fmt.Errorf("unknown source store %q", r.Source)
	}
	if !ValidOperation(r.Operation) {
		return fmt.Errorf("unknown operation %q", r.Operation)
	}
	if _, ok := EntityRegistry[r.EntityKind]; !ok {
		return fmt.Errorf("entity kind %q is not whitelisted", r.EntityKind)
	}
	if len(r.Payload) == 0 {
		return fmt.Errorf("empty payload")
	}
	return nil
}

// EstimateBytes gives a rough in-memory footprint, used for logging only
func (r ChangeRecord) EstimateBytes() int {
	return len(r.Payload) + len(r.CorrelationID) + 64
}

// Incident is the canonical incident payload. ID is the cross-store join
// key and is identical in every store's representation.
type Incident struct {
	ID                  string    `json:"id"`
	Title               string    `json:"title"`
	ReportedBy          string    `json:"reportedBy"`
	Description         string    `json:"description"`
	Status              Status    `json:"status"`
	DescriptiveLocation string    `json:"descriptiveLocation"`
	Latitude            float64   `json:"latitude"`
	Longitude           float64   `json:"longitude"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// User is the canonical user payload. The password field mirrors the source
// system's schema; this engine only carries it between stores.
type User struct {
	ID        string    `json:"id"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	Password  string    `json:"password"`
	CreatedAt time.Time `json:"createdAt"`
}

// Resource is the canonical response-resource payload
type Resource struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// IncidentSnapshot is the comparable subset of an incident read back from a
// single store during verification
type IncidentSnapshot struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      Status `json:"status"`
}

// Equal compares the fields the verification contract cares about
func (s IncidentSnapshot) Equal(other IncidentSnapshot) bool {
	return s.ID == other.ID &&
		s.Title == other.Title &&
		s.Description == other.Description &&
		s.Status == other.Status
}
