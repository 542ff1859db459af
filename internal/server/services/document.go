package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/ridermanager/internal/common"
	"github.com/dmitrijs2005/ridermanager/internal/dbx"
	"github.com/dmitrijs2005/ridermanager/internal/server/models"
	"github.com/dmitrijs2005/ridermanager/internal/server/objectstore"
	"github.com/dmitrijs2005/ridermanager/internal/server/repositories/repomanager"
)

// DocumentService coordinates object storage and the presigned-URL metadata
// for rider license documents. It owns two decisions:
//   - whether a rider's existing access descriptor can be reused or a new
//     URL must be minted (GetOrCreateAccess);
//   - persisting an assembled document and replacing the rider's descriptor
//     (Store).
type DocumentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       objectstore.Store
}

// NewDocumentService constructs a DocumentService.
func NewDocumentService(db *sql.DB, m repomanager.RepositoryManager, store objectstore.Store) *DocumentService {
	return &DocumentService{db: db, repomanager: m, store: store}
}

// GetOrCreateAccess reports whether a new presigned URL must be minted for
// the rider. The three cases are distinct and callers rely on all of them:
//
//	(true, nil)        no descriptor exists yet
//	(false, desc)      a descriptor exists and is still valid: reuse it
//	(true, stale)      a descriptor exists but expired: mint, stale returned
//	                   for reference
func (s *DocumentService) GetOrCreateAccess(ctx context.Context, riderID string) (bool, *models.PresignedURL, error) {
	repo := s.repomanager.PresignedURLs(s.db)

	desc, err := repo.GetByRiderID(ctx, riderID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return true, nil, nil
		}
		return false, nil, fmt.Errorf("error fetching descriptor: %w", err)
	}

	if desc.Valid(time.Now()) {
		return false, desc, nil
	}
	return true, desc, nil
}

// Store uploads an assembled document to object storage under a fresh unique
// object name, mints a time-bounded download URL for it, and replaces the
// owning rider's descriptor. The previously issued URL, if any, becomes stale
// but is not revoked.
//
// Returns common.ErrorNotFound when the owner has no rider record yet; the
// consumer requeues the message so the store is retried after the rider's
// provisioning event lands.
func (s *DocumentService) Store(ctx context.Context, doc *models.Document) error {
	rider, err := s.repomanager.Riders(s.db).GetByExternalID(ctx, doc.OwnerID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("rider %s: %w", doc.OwnerID, common.ErrorNotFound)
		}
		return fmt.Errorf("error fetching rider: %w", err)
	}

	key := objectstore.ObjectName(doc.FileName)

	if err := s.store.Upload(ctx, key, doc.Bytes); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorUnavailable, err)
	}

	url, expiry, err := s.store.PresignedGetURL(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorUnavailable, err)
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.PresignedURLs(tx).Upsert(ctx, &models.PresignedURL{
			ObjectName: key,
			URL:        url,
			Expiry:     expiry,
			RiderID:    rider.ID,
		})
	})
}

// GetDownloadURL returns a usable download URL for the rider's stored
// document, reusing the current descriptor while it is valid and re-signing
// the stored object when it has expired. A rider without a stored document
// yields common.ErrorNotFound.
func (s *DocumentService) GetDownloadURL(ctx context.Context, externalUserID string) (string, error) {
	rider, err := s.repomanager.Riders(s.db).GetByExternalID(ctx, externalUserID)
	if err != nil {
		return "", err
	}

	createRequired, desc, err := s.GetOrCreateAccess(ctx, rider.ID)
	if err != nil {
		return "", err
	}

	if !createRequired {
		return desc.URL, nil
	}

	// no document has ever been stored for this rider
	if desc == nil {
		return "", common.ErrorNotFound
	}

	// expired: re-sign the existing object and persist the fresh descriptor
	url, expiry, err := s.store.PresignedGetURL(ctx, desc.ObjectName)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrorUnavailable, err)
	}

	err = s.repomanager.PresignedURLs(s.db).Upsert(ctx, &models.PresignedURL{
		ObjectName: desc.ObjectName,
		URL:        url,
		Expiry:     expiry,
		RiderID:    rider.ID,
	})
	if err != nil {
		return "", err
	}

	return url, nil
}
