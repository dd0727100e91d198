package pushserver

import (
	"context"
	"database/sql"
	"errors"
	"time"

	errs "storefront-push/internal/common/errors"
	"storefront-push/internal/models"
)

// Store persists subscriptions, addressable by owner and user type for fan-out and by
// endpoint for deletion.
type Store interface {
	Save(ctx context.Context, sub *models.StoredSubscription) error
	// Delete removes the row for endpoint; ownerID restricts it when not empty. It
	// returns the removed row's owner and user type, or nil when nothing matched.
	Delete(ctx context.Context, ownerID, endpoint string) (*models.StoredSubscription, error)
	// Rotate replaces oldEndpoint with sub, keeping the old row's owner and user type.
	Rotate(ctx context.Context, oldEndpoint string, sub *models.StoredSubscription) (*models.StoredSubscription, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.StoredSubscription, error)
	ListByUserType(ctx context.Context, userType string) ([]models.StoredSubscription, error)
}

type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// EnsureSchema creates the table and indexes when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableQuery); err != nil {
		return errs.NewQueryExecutionFailedError("create schema", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, sub *models.StoredSubscription) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = s.now().UTC()
	}
	err := s.db.QueryRowContext(ctx, upsertSubscriptionQuery,
		sub.OwnerID, sub.UserType, sub.Endpoint, sub.P256dh, sub.Auth, sub.CreatedAt,
	).Scan(&sub.CreatedAt)
	if err != nil {
		return errs.NewQueryExecutionFailedError("save subscription", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, ownerID, endpoint string) (*models.StoredSubscription, error) {
	var row *sql.Row
	if ownerID == "" {
		row = s.db.QueryRowContext(ctx, deleteByEndpointQuery, endpoint)
	} else {
		row = s.db.QueryRowContext(ctx, deleteForOwnerQuery, ownerID, endpoint)
	}

	removed := &models.StoredSubscription{Endpoint: endpoint}
	if err := row.Scan(&removed.OwnerID, &removed.UserType); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errs.NewQueryExecutionFailedError("delete subscription", err)
	}
	return removed, nil
}

func (s *PostgresStore) Rotate(ctx context.Context, oldEndpoint string, sub *models.StoredSubscription) (*models.StoredSubscription, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errs.NewDatabaseConnectionFailedError(err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	err = tx.QueryRowContext(ctx, selectByEndpointForUpdateQuery, oldEndpoint).Scan(&sub.OwnerID, &sub.UserType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NewSubscriptionNotFoundError(oldEndpoint)
		}
		return nil, errs.NewQueryExecutionFailedError("load rotated subscription", err)
	}

	if _, err := tx.ExecContext(ctx, deleteByEndpointQuery, oldEndpoint); err != nil {
		return nil, errs.NewQueryExecutionFailedError("delete rotated subscription", err)
	}

	sub.CreatedAt = s.now().UTC()
	err = tx.QueryRowContext(ctx, upsertSubscriptionQuery,
		sub.OwnerID, sub.UserType, sub.Endpoint, sub.P256dh, sub.Auth, sub.CreatedAt,
	).Scan(&sub.CreatedAt)
	if err != nil {
		return nil, errs.NewQueryExecutionFailedError("insert rotated subscription", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, errs.NewQueryExecutionFailedError("commit rotation", err)
	}
	return sub, nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID string) ([]models.StoredSubscription, error) {
	return s.list(ctx, listByOwnerQuery, ownerID)
}

func (s *PostgresStore) ListByUserType(ctx context.Context, userType string) ([]models.StoredSubscription, error) {
	return s.list(ctx, listByUserTypeQuery, userType)
}

func (s *PostgresStore) list(ctx context.Context, query, arg string) ([]models.StoredSubscription, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, errs.NewQueryExecutionFailedError("list subscriptions", err)
	}
	defer rows.Close()

	var out []models.StoredSubscription
	for rows.Next() {
		var sub models.StoredSubscription
		if err := rows.Scan(&sub.OwnerID, &sub.UserType, &sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.CreatedAt); err != nil {
			return nil, errs.NewQueryExecutionFailedError("scan subscription", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewQueryExecutionFailedError("iterate subscriptions", err)
	}
	return out, nil
}

var _ Store = (*PostgresStore)(nil)
