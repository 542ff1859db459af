// Package server initializes and runs the RiderManager server: the database
// with migrations, the RabbitMQ consumer over the two ingestion queues, and
// the HTTP API. It also handles graceful shutdown on OS signals.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dmitrijs2005/ridermanager/internal/logging"
	"github.com/dmitrijs2005/ridermanager/internal/server/config"
	"github.com/dmitrijs2005/ridermanager/internal/server/httpapi"
	"github.com/dmitrijs2005/ridermanager/internal/server/objectstore"
	"github.com/dmitrijs2005/ridermanager/internal/server/queue"
	"github.com/dmitrijs2005/ridermanager/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/ridermanager/internal/server/services"
)

type App struct {
	config          *config.Config
	logger          logging.Logger
	db              *sql.DB
	riderService    *services.RiderService
	documentService *services.DocumentService
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	store := objectstore.NewS3Store(cfg)

	rs := services.NewRiderService(db, rm)
	ds := services.NewDocumentService(db, rm, store)

	return &App{
		config:          cfg,
		logger:          logger,
		db:              db,
		riderService:    rs,
		documentService: ds,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startConsumer(ctx context.Context, cancelFunc context.CancelFunc) {
	conn, err := amqp.Dial(app.config.AMQPURL)
	if err != nil {
		app.logger.Error(ctx, "broker connection error", "error", err)
		cancelFunc()
		return
	}
	defer conn.Close()

	consumer := queue.NewConsumer(conn, app.logger, app.riderService, app.documentService,
		app.config.RiderInfoQueue, app.config.ImageStreamQueue)

	if err := consumer.StartConsuming(ctx); err != nil {
		app.logger.Error(ctx, "consumer start error", "error", err)
		cancelFunc()
		return
	}

	<-ctx.Done()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.logger, app.riderService, app.documentService, []byte(app.config.SecretKey))

	if err := s.Run(ctx, app.config.EndpointAddrHTTP); err != nil {
		app.logger.Error(ctx, "http server error", "error", err)
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app",
		"http", app.config.EndpointAddrHTTP,
		"rider_info_queue", app.config.RiderInfoQueue,
		"image_stream_queue", app.config.ImageStreamQueue)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startConsumer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}
