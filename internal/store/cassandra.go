package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"quadsync/internal/models"

	"github.com/gocql/gocql"
)

// CassandraAdapter replicates into the wide-column store. CQL has no
// update-in-place distinct from insert, so Insert and Update collapse to
// the same upsert INSERT; Delete is its own statement. All statements run
// through the driver's prepared-statement path.
type CassandraAdapter struct {
	hosts    []string
	keyspace string
	username string
	password string
}

func NewCassandraAdapter(hosts []string, keyspace, username, password string) *CassandraAdapter {
	return &CassandraAdapter{
		hosts:    hosts,
		keyspace: keyspace,
		username: username,
		password: password,
	}
}

func (a *CassandraAdapter) Name() models.StoreID {
	return models.StoreCassandra
}

func (a *CassandraAdapter) session() (*gocql.Session, error) {
	cluster := gocql.NewCluster(a.hosts...)
	cluster.Keyspace = a.keyspace
	cluster.Consistency = gocql.Quorum
	if a.username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: a.username,
			Password: a.password,
		}
	}
	return cluster.CreateSession()
}

func (a *CassandraAdapter) Write(ctx context.Context, rec models.ChangeRecord) error {
	stmt, args, err := cassandraStatement(rec)
	if err != nil {
		return err
	}

	session, err := a.session()
	if err != nil {
		return fmt.Errorf("cassandra connect failed: %w", err)
	}
	defer session.Close()

	if err := session.Query(stmt, args...).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("cassandra exec failed: %w", err)
	}
	return nil
}

func (a *CassandraAdapter) FetchIncident(ctx context.Context, id string) (*models.IncidentSnapshot, error) {
	session, err := a.session()
	if err != nil {
		return nil, fmt.Errorf("cassandra connect failed: %w", err)
	}
	defer session.Close()

	var snap models.IncidentSnapshot
	var status string
	query := `SELECT id, title, description, status FROM incidents WHERE id = ?`
	err = session.Query(query, id).WithContext(ctx).Scan(&snap.ID, &snap.Title, &snap.Description, &status)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("cassandra fetch failed: %w", err)
	}

	snap.Status = models.Status(status)
	return &snap, nil
}

func (a *CassandraAdapter) Ping(ctx context.Context) error {
	session, err := a.session()
	if err != nil {
		return err
	}
	defer session.Close()
	return session.Query(`SELECT now() FROM system.local`).WithContext(ctx).Exec()
}

// cassandraStatement builds the single CQL statement for one change
func cassandraStatement(rec models.ChangeRecord) (string, []any, error) {
	switch rec.EntityKind {
	case models.KindIncidents:
		var inc models.Incident
		if err := json.Unmarshal(rec.Payload, &inc); err != nil {
			return "", nil, Fatal("incident payload unmarshal: %v", err)
		}
		switch rec.Operation {
		case models.OpInsert, models.OpUpdate:
			query := `INSERT INTO incidents (id, title, reported_by, description, status, descriptive_location, latitude, longitude, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
			return query, []any{inc.ID, inc.Title, inc.ReportedBy, inc.Description, string(inc.Status), inc.DescriptiveLocation, inc.Latitude, inc.Longitude, inc.UpdatedAt}, nil
		case models.OpDelete:
			return `DELETE FROM incidents WHERE id = ?`, []any{inc.ID}, nil
		}

	case models.KindUsers:
		var u models.User
		if err := json.Unmarshal(rec.Payload, &u); err != nil {
			return "", nil, Fatal("user payload unmarshal: %v", err)
		}
		switch rec.Operation {
		case models.OpInsert, models.OpUpdate:
			return `INSERT INTO users (id, full_name, email, password, created_at) VALUES (?, ?, ?, ?, ?)`,
				[]any{u.ID, u.FullName, u.Email, u.Password, u.CreatedAt}, nil
		case models.OpDelete:
			return `DELETE FROM users WHERE id = ?`, []any{u.ID}, nil
		}

	case models.KindResources:
		var res models.Resource
		if err := json.Unmarshal(rec.Payload, &res); err != nil {
			return "", nil, Fatal("resource payload unmarshal: %v", err)
		}
		switch rec.Operation {
		case models.OpInsert, models.OpUpdate:
			return `INSERT INTO resources (id, name, type, status, created_at) VALUES (?, ?, ?, ?, ?)`,
				[]any{res.ID, res.Name, res.Type, res.Status, res.CreatedAt}, nil
		case models.OpDelete:
			return `DELETE FROM resources WHERE id = ?`, []any{res.ID}, nil
		}
	}

	return "", nil, unsupported(models.StoreCassandra, rec.Operation, rec.EntityKind)
}
