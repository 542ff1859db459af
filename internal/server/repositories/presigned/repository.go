package presigned

import (
	"context"

	"github.com/dmitrijs2005/ridermanager/internal/server/models"
)

type Repository interface {
	GetByRiderID(ctx context.Context, riderID string) (*models.PresignedURL, error)
	Upsert(ctx context.Context, url *models.PresignedURL) error
}
