package riders

import (
	"context"

	"github.com/dmitrijs2005/ridermanager/internal/server/models"
)

type Repository interface {
	CreateOrUpdate(ctx context.Context, rider *models.Rider) (*models.Rider, error)
	GetByExternalID(ctx context.Context, externalUserID string) (*models.Rider, error)
	GetByID(ctx context.Context, id string) (*models.Rider, error)
	List(ctx context.Context) ([]*models.Rider, error)
	Delete(ctx context.Context, externalUserID string) error
}
