package presigned

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/ridermanager/internal/common"
	"github.com/dmitrijs2005/ridermanager/internal/dbx"
	"github.com/dmitrijs2005/ridermanager/internal/server/models"
)

// PostgresRepository implements presigned-URL storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByRiderID returns the rider's current access descriptor, or
// common.ErrorNotFound when none has been issued yet.
func (r *PostgresRepository) GetByRiderID(ctx context.Context, riderID string) (*models.PresignedURL, error) {
	query := `
		SELECT id, object_name, url, expiry, rider_id
		FROM presigned_urls
		WHERE rider_id = $1
	`
	item := &models.PresignedURL{}
	err := r.db.QueryRowContext(ctx, query, riderID).Scan(
		&item.ID, &item.ObjectName, &item.URL, &item.Expiry, &item.RiderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return item, nil
}

// Upsert replaces the rider's descriptor. One row per rider (unique rider_id);
// a previously issued URL becomes stale but is not revoked.
func (r *PostgresRepository) Upsert(ctx context.Context, url *models.PresignedURL) error {
	query := `
		INSERT INTO presigned_urls (object_name, url, expiry, rider_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (rider_id)
		DO UPDATE SET
			object_name = EXCLUDED.object_name,
			url = EXCLUDED.url,
			expiry = EXCLUDED.expiry
	`
	res, err := r.db.ExecContext(ctx, query, url.ObjectName, url.URL, url.Expiry, url.RiderID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
	return nil
}
