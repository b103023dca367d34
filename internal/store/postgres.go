package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"quadsync/internal/models"

	"github.com/jackc/pgx/v5"
)

// PostgresAdapter replicates into the primary relational store. Statements
// are literal parameterized DML keyed by the canonical id; Insert is an
// upsert so a redelivered job never trips the primary key.
type PostgresAdapter struct {
	uri string
}

func NewPostgresAdapter(uri string) *PostgresAdapter {
	return &PostgresAdapter{uri: uri}
}

func (a *PostgresAdapter) Name() models.StoreID {
	return models.StorePostgres
}

func (a *PostgresAdapter) Write(ctx context.Context, rec models.ChangeRecord) error {
	query, args, err := postgresStatement(rec)
	if err != nil {
		return err
	}

	conn, err := pgx.Connect(ctx, a.uri)
	if err != nil {
		return fmt.Errorf("postgres connect failed: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("postgres exec failed: %w", err)
	}
	return nil
}

func (a *PostgresAdapter) FetchIncident(ctx context.Context, id string) (*models.IncidentSnapshot, error) {
	conn, err := pgx.Connect(ctx, a.uri)
	if err != nil {
		return nil, fmt.Errorf("postgres connect failed: %w", err)
	}
	defer conn.Close(ctx)

	var snap models.IncidentSnapshot
	query := `SELECT id, title, description, status FROM incidents WHERE id = $1`
	err = conn.QueryRow(ctx, query, id).Scan(&snap.ID, &snap.Title, &snap.Description, &snap.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres fetch failed: %w", err)
	}
	return &snap, nil
}

func (a *PostgresAdapter) Ping(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, a.uri)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	return conn.Ping(ctx)
}

// postgresStatement builds the single DML statement for one change. Kept
// separate from Write so the 9 write paths are testable without a server.
func postgresStatement(rec models.ChangeRecord) (string, []any, error) {
	switch rec.EntityKind {
	case models.KindIncidents:
		var inc models.Incident
		if err := json.Unmarshal(rec.Payload, &inc); err != nil {
			return "", nil, Fatal("incident payload unmarshal: %v", err)
		}
		switch rec.Operation {
		case models.OpInsert:
			query := `INSERT INTO incidents (id, title, reported_by, description, status, descriptive_location, latitude, longitude, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), $9)
				ON CONFLICT (id) DO UPDATE SET
					title = EXCLUDED.title,
					reported_by = EXCLUDED.reported_by,
					description = EXCLUDED.description,
					status = EXCLUDED.status,
					descriptive_location = EXCLUDED.descriptive_location,
					latitude = EXCLUDED.latitude,
					longitude = EXCLUDED.longitude,
					updated_at = EXCLUDED.updated_at`
			return query, []any{inc.ID, inc.Title, inc.ReportedBy, inc.Description, string(inc.Status), inc.DescriptiveLocation, inc.Latitude, inc.Longitude, inc.UpdatedAt}, nil
		case models.OpUpdate:
			query := `UPDATE incidents SET title=$1, reported_by=$2, description=$3, status=$4, descriptive_location=$5, latitude=$6, longitude=$7, updated_at=$8
				WHERE id=$9`
			return query, []any{inc.Title, inc.ReportedBy, inc.Description, string(inc.Status), inc.DescriptiveLocation, inc.Latitude, inc.Longitude, inc.UpdatedAt, inc.ID}, nil
		case models.OpDelete:
			return `DELETE FROM incidents WHERE id=$1`, []any{inc.ID}, nil
		}

	case models.KindUsers:
		var u models.User
		if err := json.Unmarshal(rec.Payload, &u); err != nil {
			return "", nil, Fatal("user payload unmarshal: %v", err)
		}
		switch rec.Operation {
		case models.OpInsert:
			query := `INSERT INTO users (id, full_name, email, password, created_at)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (id) DO UPDATE SET
					full_name = EXCLUDED.full_name,
					email = EXCLUDED.email,
					password = EXCLUDED.password`
			return query, []any{u.ID, u.FullName, u.Email, u.Password, u.CreatedAt}, nil
		case models.OpUpdate:
			return `UPDATE users SET full_name=$1, email=$2, password=$3 WHERE id=$4`,
				[]any{u.FullName, u.Email, u.Password, u.ID}, nil
		case models.OpDelete:
			return `DELETE FROM users WHERE id=$1`, []any{u.ID}, nil
		}

	case models.KindResources:
		var res models.Resource
		if err := json.Unmarshal(rec.Payload, &res); err != nil {
			return "", nil, Fatal("resource payload unmarshal: %v", err)
		}
		switch rec.Operation {
		case models.OpInsert:
			query := `INSERT INTO resources (id, name, type, status, created_at)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (id) DO UPDATE SET
					name = EXCLUDED.name,
					type = EXCLUDED.type,
					status = EXCLUDED.status`
			return query, []any{res.ID, res.Name, res.Type, res.Status, res.CreatedAt}, nil
		case models.OpUpdate:
			return `UPDATE resources SET name=$1, type=$2, status=$3 WHERE id=$4`,
				[]any{res.Name, res.Type, res.Status, res.ID}, nil
		case models.OpDelete:
			return `DELETE FROM resources WHERE id=$1`, []any{res.ID}, nil
		}
	}

	return "", nil, unsupported(models.StorePostgres, rec.Operation, rec.EntityKind)
}
