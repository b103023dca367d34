package store

import (
	"context"
	"fmt"
	"strings"

	"quadsync/internal/models"
)

// Adapter is the per-store capability contract. Write opens a fresh
// connection, applies one ChangeRecord and disconnects; there is no pooling
// and no state shared between invocations. Every adapter covers all 3
// entity kinds x 3 operations; an uncovered combination is a programming
// error and surfaces as a fatal error, not a retry.
type Adapter interface {
	Name() models.StoreID
	Write(ctx context.Context, rec models.ChangeRecord) error
	FetchIncident(ctx context.Context, id string) (*models.IncidentSnapshot, error)
	Ping(ctx context.Context) error
}

// Registry holds the adapters selected at startup, keyed by store
type Registry map[models.StoreID]Adapter

// NewRegistry indexes adapters by name and rejects duplicates
func NewRegistry(adapters ...Adapter) (Registry, error) {
	reg := make(Registry, len(adapters))
	for _, a := range adapters {
		if _, dup := reg[a.Name()]; dup {
			return nil, fmt.Errorf("duplicate adapter for store %q", a.Name())
		}
		reg[a.Name()] = a
	}
	return reg, nil
}

// Fatal marks an error as non-retryable: redelivering the job can never
// succeed, so the consumer dead-letters it instead of requeueing
func Fatal(format string, args ...any) error {
	return fmt.Errorf("FATAL: "+format, args...)
}

// IsFatal reports whether err was produced by Fatal
func IsFatal(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "FATAL:")
}

// unsupported builds the fatal error for a kind/operation pair an adapter
// has no write path for
func unsupported(store models.StoreID, op models.Operation, kind models.EntityKind) error {
	return Fatal("store %s has no write path for %s on %s", store, op, kind)
}
