package service

import (
	"context"
	"log/slog"
	"sync"

	"quadsync/internal/models"
	"quadsync/internal/store"
)

// Report is the outcome of one cross-store verification pass
type Report struct {
	IncidentID string                                      `json:"incidentId"`
	Databases  map[models.StoreID]*models.IncidentSnapshot `json:"databases"`
	AllMatch   bool                                        `json:"allMatch"`
	Message    string                                      `json:"message"`
}

// Verifier audits cross-store agreement for a single incident. It performs
// no writes and no repair; a store that cannot be read contributes a null
// snapshot instead of failing the whole call.
type Verifier struct {
	adapters store.Registry
	logger   *slog.Logger
}

func NewVerifier(adapters store.Registry, logger *slog.Logger) *Verifier {
	return &Verifier{
		adapters: adapters,
		logger:   logger,
	}
}

// Verify reads the incident independently and in parallel from every
// configured store and compares id, title, description and status over the
// snapshots that could be read
func (v *Verifier) Verify(ctx context.Context, id string) Report {
	report := Report{
		IncidentID: id,
		Databases:  make(map[models.StoreID]*models.IncidentSnapshot, len(v.adapters)),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, adapter := range v.adapters {
		wg.Add(1)
		go func(name models.StoreID, adapter store.Adapter) {
			defer wg.Done()

			snap, err := adapter.FetchIncident(ctx, id)
			if err != nil {
				// Downgraded to a null snapshot, never fatal
				v.logger.Warn("Verification read failed",
					"store", name,
					"incident_id", id,
					"error", err,
				)
				snap = nil
			}

			mu.Lock()
			report.Databases[name] = snap
			mu.Unlock()
		}(name, adapter)
	}
	wg.Wait()

	report.AllMatch = allMatch(report.Databases)
	if report.AllMatch {
		report.Message = "All stores agree for this incident"
	} else {
		report.Message = "Stores disagree or are missing data for this incident"
	}
	return report
}

// allMatch compares the non-null snapshots; zero snapshots means false
func allMatch(snapshots map[models.StoreID]*models.IncidentSnapshot) bool {
	var first *models.IncidentSnapshot
	for _, snap := range snapshots {
		if snap == nil {
			continue
		}
		if first == nil {
			first = snap
			continue
		}
		if !first.Equal(*snap) {
			return false
		}
	}
	return first != nil
}
