// Package services contains server-side business logic. This file implements
// RiderService, which provisions rider records from rider-info events and
// backs the administrative HTTP surface.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/ridermanager/internal/common"
	"github.com/dmitrijs2005/ridermanager/internal/server/models"
	"github.com/dmitrijs2005/ridermanager/internal/server/repositories/repomanager"
)

const dateOfBirthLayout = "2006-01-02"

// RiderService provides rider provisioning and lookup:
//   - Provision: create or update a rider from a rider-info event
//   - GetByExternalID / List / Delete: admin operations
//
// Provisioning is not idempotent: a redelivered event that races an earlier
// create surfaces the storage layer's uniqueness violation as
// common.ErrorConflict, which the consumer requeues.
type RiderService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

// NewRiderService constructs a RiderService using repositories.
func NewRiderService(db *sql.DB, m repomanager.RepositoryManager) *RiderService {
	return &RiderService{db: db, repomanager: m}
}

func riderFromEvent(event *models.RiderEvent) (*models.Rider, error) {
	// An absent date of birth is allowed and stays the zero time; only a
	// present but unparseable value rejects the event.
	var dob time.Time
	if event.DateOfBirth != "" {
		parsed, err := time.Parse(dateOfBirthLayout, event.DateOfBirth)
		if err != nil {
			return nil, fmt.Errorf("%w: bad date of birth %q", common.ErrorMalformedMessage, event.DateOfBirth)
		}
		dob = parsed
	}
	return &models.Rider{
		ExternalUserID: event.ExternalUserID,
		DisplayName:    event.DisplayName,
		TaxID:          event.TaxID,
		DateOfBirth:    dob,
		LicenseNumber:  event.LicenseNumber,
		LicenseType:    event.LicenseType,
	}, nil
}

// Provision creates or updates the rider described by the event.
func (s *RiderService) Provision(ctx context.Context, event *models.RiderEvent) (*models.Rider, error) {
	rider, err := riderFromEvent(event)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.Riders(s.db)

	created, err := repo.CreateOrUpdate(ctx, rider)
	if err != nil {
		return nil, fmt.Errorf("error provisioning rider: %w", err)
	}
	return created, nil
}

// Update applies new attributes to an existing rider. Unlike Provision it
// refuses to create a missing rider.
func (s *RiderService) Update(ctx context.Context, externalUserID string, event *models.RiderEvent) (*models.Rider, error) {
	repo := s.repomanager.Riders(s.db)

	if _, err := repo.GetByExternalID(ctx, externalUserID); err != nil {
		return nil, err
	}

	rider, err := riderFromEvent(event)
	if err != nil {
		return nil, err
	}
	rider.ExternalUserID = externalUserID

	updated, err := repo.CreateOrUpdate(ctx, rider)
	if err != nil {
		return nil, fmt.Errorf("error updating rider: %w", err)
	}
	return updated, nil
}

func (s *RiderService) GetByExternalID(ctx context.Context, externalUserID string) (*models.Rider, error) {
	return s.repomanager.Riders(s.db).GetByExternalID(ctx, externalUserID)
}

func (s *RiderService) List(ctx context.Context) ([]*models.Rider, error) {
	return s.repomanager.Riders(s.db).List(ctx)
}

func (s *RiderService) Delete(ctx context.Context, externalUserID string) error {
	return s.repomanager.Riders(s.db).Delete(ctx, externalUserID)
}
