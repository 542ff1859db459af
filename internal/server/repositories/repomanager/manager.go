package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/ridermanager/internal/dbx"
	"github.com/dmitrijs2005/ridermanager/internal/server/repositories/presigned"
	"github.com/dmitrijs2005/ridermanager/internal/server/repositories/riders"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Riders(db dbx.DBTX) riders.Repository
	PresignedURLs(db dbx.DBTX) presigned.Repository
}
