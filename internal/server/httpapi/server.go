// Package httpapi exposes the administrative REST surface over rider records
// and the rider-facing document download endpoint.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/ridermanager/internal/logging"
	"github.com/dmitrijs2005/ridermanager/internal/server/models"
)

// RiderDirectory is the slice of the rider service used by the handlers.
type RiderDirectory interface {
	List(ctx context.Context) ([]*models.Rider, error)
	GetByExternalID(ctx context.Context, externalUserID string) (*models.Rider, error)
	Update(ctx context.Context, externalUserID string, event *models.RiderEvent) (*models.Rider, error)
	Delete(ctx context.Context, externalUserID string) error
}

// DocumentAccess resolves a usable download URL for a rider's stored document.
type DocumentAccess interface {
	GetDownloadURL(ctx context.Context, externalUserID string) (string, error)
}

// Server routes the HTTP API. All endpoints require a bearer token; the
// rider management endpoints additionally require the admin role.
type Server struct {
	router    *gin.Engine
	logger    logging.Logger
	riders    RiderDirectory
	documents DocumentAccess
	secretKey []byte
}

func NewServer(l logging.Logger, riders RiderDirectory, documents DocumentAccess, secretKey []byte) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:    router,
		logger:    l.With("module", "httpapi"),
		riders:    riders,
		documents: documents,
		secretKey: secretKey,
	}

	api := router.Group("/api", s.authRequired())
	{
		api.GET("/riders/me/document-url", s.handleDocumentURL)

		admin := api.Group("/riders", s.adminRequired())
		{
			admin.GET("", s.handleListRiders)
			admin.GET("/:id", s.handleGetRider)
			admin.PUT("/:id", s.handleUpdateRider)
			admin.DELETE("/:id", s.handleDeleteRider)
		}
	}

	return s
}

// Handler exposes the router for the http server and for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves the API until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
