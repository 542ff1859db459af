package riders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/ridermanager/internal/common"
	"github.com/dmitrijs2005/ridermanager/internal/dbx"
	"github.com/dmitrijs2005/ridermanager/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresRepository implements rider storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// uniqueViolation is the SQLSTATE raised by Postgres for unique index
// conflicts (duplicate tax id, license number or external user id).
const uniqueViolation = "23505"

func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return common.ErrorConflict
	}
	return fmt.Errorf("db error: %w", err)
}

// CreateOrUpdate upserts a rider by external_user_id. Attribute columns are
// replaced on conflict; a unique violation on tax_id or license_number
// surfaces as common.ErrorConflict.
func (r *PostgresRepository) CreateOrUpdate(ctx context.Context, rider *models.Rider) (*models.Rider, error) {
	query := `
		INSERT INTO riders (external_user_id, display_name, tax_id, date_of_birth, license_number, license_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (external_user_id)
		DO UPDATE SET
			display_name = EXCLUDED.display_name,
			tax_id = EXCLUDED.tax_id,
			date_of_birth = EXCLUDED.date_of_birth,
			license_number = EXCLUDED.license_number,
			license_type = EXCLUDED.license_type
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		rider.ExternalUserID, rider.DisplayName, rider.TaxID, rider.DateOfBirth,
		rider.LicenseNumber, rider.LicenseType).Scan(&rider.ID)
	if err != nil {
		return nil, mapConflict(err)
	}
	return rider, nil
}

func (r *PostgresRepository) GetByExternalID(ctx context.Context, externalUserID string) (*models.Rider, error) {
	query := `
		SELECT id, external_user_id, display_name, tax_id, date_of_birth, license_number, license_type, created_at
		FROM riders
		WHERE external_user_id = $1
	`
	rider := &models.Rider{}
	err := r.db.QueryRowContext(ctx, query, externalUserID).Scan(
		&rider.ID, &rider.ExternalUserID, &rider.DisplayName, &rider.TaxID,
		&rider.DateOfBirth, &rider.LicenseNumber, &rider.LicenseType, &rider.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rider, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Rider, error) {
	query := `
		SELECT id, external_user_id, display_name, tax_id, date_of_birth, license_number, license_type, created_at
		FROM riders
		WHERE id = $1
	`
	rider := &models.Rider{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rider.ID, &rider.ExternalUserID, &rider.DisplayName, &rider.TaxID,
		&rider.DateOfBirth, &rider.LicenseNumber, &rider.LicenseType, &rider.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rider, nil
}

// List returns all riders ordered by creation time.
func (r *PostgresRepository) List(ctx context.Context) ([]*models.Rider, error) {
	query := `
		SELECT id, external_user_id, display_name, tax_id, date_of_birth, license_number, license_type, created_at
		FROM riders
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Rider
	for rows.Next() {
		var item models.Rider
		if err := rows.Scan(&item.ID, &item.ExternalUserID, &item.DisplayName, &item.TaxID,
			&item.DateOfBirth, &item.LicenseNumber, &item.LicenseType, &item.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes a rider by external user id. The presigned_urls row, if any,
// cascades. Returns common.ErrorNotFound when no row matches.
func (r *PostgresRepository) Delete(ctx context.Context, externalUserID string) error {
	query := `DELETE FROM riders WHERE external_user_id = $1`
	res, err := r.db.ExecContext(ctx, query, externalUserID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
