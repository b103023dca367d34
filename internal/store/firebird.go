package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"quadsync/internal/models"
	"quadsync/pkg/encoding"

	_ "github.com/nakagami/firebirdsql"
)

// FirebirdAdapter replicates into the procedural-relational store. Firebird
// does not auto-commit: every statement runs in an explicit transaction
// that is committed before disconnect. Status values are stored as the
// lowercase code set, translated from the canonical labels on write and
// back on read. Legacy databases use the WIN1252 charset, so text columns
// are decoded on the way out.
type FirebirdAdapter struct {
	dsn    string
	logger *slog.Logger
}

func NewFirebirdAdapter(dsn string, logger *slog.Logger) *FirebirdAdapter {
	return &FirebirdAdapter{dsn: dsn, logger: logger}
}

func (a *FirebirdAdapter) Name() models.StoreID {
	return models.StoreFirebird
}

func (a *FirebirdAdapter) Write(ctx context.Context, rec models.ChangeRecord) error {
	query, args, err := firebirdStatement(rec)
	if err != nil {
		return err
	}

	db, err := sql.Open("firebirdsql", a.dsn)
	if err != nil {
		return fmt.Errorf("firebird open failed: %w", err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("firebird begin failed: %w", err)
	}
	// No-op if Commit already ran
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if code, ok := iscErrorCode(err); ok {
			a.logger.Error("Firebird vendor error",
				"isc_code", code,
				"entity_kind", rec.EntityKind,
				"operation", rec.Operation,
			)
		}
		return fmt.Errorf("firebird exec failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("firebird commit failed: %w", err)
	}
	return nil
}

func (a *FirebirdAdapter) FetchIncident(ctx context.Context, id string) (*models.IncidentSnapshot, error) {
	db, err := sql.Open("firebirdsql", a.dsn)
	if err != nil {
		return nil, fmt.Errorf("firebird open failed: %w", err)
	}
	defer db.Close()

	var (
		snapID      string
		title       []byte
		description []byte
		statusCode  string
	)
	query := `SELECT ID, TITLE, DESCRIPTION, STATUS FROM INCIDENTS WHERE ID = ?`
	err = db.QueryRowContext(ctx, query, id).Scan(&snapID, &title, &description, &statusCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("firebird fetch failed: %w", err)
	}

	status, err := models.FromStorageCode(strings.TrimSpace(statusCode))
	if err != nil {
		return nil, fmt.Errorf("firebird row %s holds untranslatable status: %w", id, err)
	}

	return &models.IncidentSnapshot{
		ID:          snapID,
		Title:       encoding.ToUTF8(title),
		Description: encoding.ToUTF8(description),
		Status:      status,
	}, nil
}

func (a *FirebirdAdapter) Ping(ctx context.Context) error {
	db, err := sql.Open("firebirdsql", a.dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(pingCtx)
}

// firebirdStatement builds the single statement for one change. Insert uses
// UPDATE OR INSERT ... MATCHING so a redelivered job converges instead of
// violating the primary key.
func firebirdStatement(rec models.ChangeRecord) (string, []any, error) {
	switch rec.EntityKind {
	case models.KindIncidents:
		var inc models.Incident
		if err := json.Unmarshal(rec.Payload, &inc); err != nil {
			return "", nil, Fatal("incident payload unmarshal: %v", err)
		}
		code, err := models.ToStorageCode(inc.Status)
		if err != nil {
			return "", nil, Fatal("incident %s: %v", inc.ID, err)
		}
		switch rec.Operation {
		case models.OpInsert:
			query := `UPDATE OR INSERT INTO INCIDENTS (ID, TITLE, REPORTED_BY, DESCRIPTION, STATUS, DESCRIPTIVE_LOCATION, LATITUDE, LONGITUDE, UPDATED_AT)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) MATCHING (ID)`
			return query, []any{inc.ID, inc.Title, inc.ReportedBy, inc.Description, code, inc.DescriptiveLocation, inc.Latitude, inc.Longitude, fbTime(inc.UpdatedAt)}, nil
		case models.OpUpdate:
			query := `UPDATE INCIDENTS SET TITLE = ?, REPORTED_BY = ?, DESCRIPTION = ?, STATUS = ?, DESCRIPTIVE_LOCATION = ?, LATITUDE = ?, LONGITUDE = ?, UPDATED_AT = ?
				WHERE ID = ?`
			return query, []any{inc.Title, inc.ReportedBy, inc.Description, code, inc.DescriptiveLocation, inc.Latitude, inc.Longitude, fbTime(inc.UpdatedAt), inc.ID}, nil
		case models.OpDelete:
			return `DELETE FROM INCIDENTS WHERE ID = ?`, []any{inc.ID}, nil
		}

	case models.KindUsers:
		var u models.User
		if err := json.Unmarshal(rec.Payload, &u); err != nil {
			return "", nil, Fatal("user payload unmarshal: %v", err)
		}
		switch rec.Operation {
		case models.OpInsert:
			query := `UPDATE OR INSERT INTO USERS (ID, FULL_NAME, EMAIL, PASSWORD, CREATED_AT)
				VALUES (?, ?, ?, ?, ?) MATCHING (ID)`
			return query, []any{u.ID, u.FullName, u.Email, u.Password, fbTime(u.CreatedAt)}, nil
		case models.OpUpdate:
			return `UPDATE USERS SET FULL_NAME = ?, EMAIL = ?, PASSWORD = ? WHERE ID = ?`,
				[]any{u.FullName, u.Email, u.Password, u.ID}, nil
		case models.OpDelete:
			return `DELETE FROM USERS WHERE ID = ?`, []any{u.ID}, nil
		}

	case models.KindResources:
		var res models.Resource
		if err := json.Unmarshal(rec.Payload, &res); err != nil {
			return "", nil, Fatal("resource payload unmarshal: %v", err)
		}
		switch rec.Operation {
		case models.OpInsert:
			query := `UPDATE OR INSERT INTO RESOURCES (ID, NAME, TYPE, STATUS, CREATED_AT)
				VALUES (?, ?, ?, ?, ?) MATCHING (ID)`
			return query, []any{res.ID, res.Name, res.Type, res.Status, fbTime(res.CreatedAt)}, nil
		case models.OpUpdate:
			return `UPDATE RESOURCES SET NAME = ?, TYPE = ?, STATUS = ? WHERE ID = ?`,
				[]any{res.Name, res.Type, res.Status, res.ID}, nil
		case models.OpDelete:
			return `DELETE FROM RESOURCES WHERE ID = ?`, []any{res.ID}, nil
		}
	}

	return "", nil, unsupported(models.StoreFirebird, rec.Operation, rec.EntityKind)
}

// fbTime renders a timestamp in the literal format dialect 3 accepts
func fbTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

// iscErrorCode pulls the vendor ISC code out of a Firebird driver error.
// The driver flattens codes into the message text, so this scans for a
// number in the ISC range (e.g. 335544665 unique violation, 335544336
// deadlock).
func iscErrorCode(err error) (int, bool) {
	for _, field := range strings.FieldsFunc(err.Error(), func(r rune) bool {
		return r < '0' || r > '9'
	}) {
		if n, convErr := strconv.Atoi(field); convErr == nil && n >= 335544000 && n < 336000000 {
			return n, true
		}
	}
	return 0, false
}
