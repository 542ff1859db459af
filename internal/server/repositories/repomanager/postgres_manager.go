package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/ridermanager/internal/dbx"
	"github.com/dmitrijs2005/ridermanager/internal/server/migrations"
	"github.com/dmitrijs2005/ridermanager/internal/server/repositories/presigned"
	"github.com/dmitrijs2005/ridermanager/internal/server/repositories/riders"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresRepositoryManager struct {
}

func (m *PostgresRepositoryManager) Riders(db dbx.DBTX) riders.Repository {
	return riders.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) PresignedURLs(db dbx.DBTX) presigned.Repository {
	return presigned.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetDialect("pgx")

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return err
	}

	return nil
}

func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}
