package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/ridermanager/internal/common"
	"github.com/dmitrijs2005/ridermanager/internal/server/models"
)

type riderResponse struct {
	ID             string `json:"id"`
	ExternalUserID string `json:"userId"`
	DisplayName    string `json:"name"`
	TaxID          string `json:"taxId"`
	DateOfBirth    string `json:"dateOfBirth"`
	LicenseNumber  string `json:"licenseNumber"`
	LicenseType    string `json:"licenseType"`
}

func toRiderResponse(r *models.Rider) riderResponse {
	return riderResponse{
		ID:             r.ID,
		ExternalUserID: r.ExternalUserID,
		DisplayName:    r.DisplayName,
		TaxID:          r.TaxID,
		DateOfBirth:    r.DateOfBirth.Format(time.DateOnly),
		LicenseNumber:  r.LicenseNumber,
		LicenseType:    r.LicenseType,
	}
}

func (s *Server) handleListRiders(c *gin.Context) {
	riders, err := s.riders.List(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}

	out := make([]riderResponse, 0, len(riders))
	for _, r := range riders {
		out = append(out, toRiderResponse(r))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetRider(c *gin.Context) {
	rider, err := s.riders.GetByExternalID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRiderResponse(rider))
}

func (s *Server) handleUpdateRider(c *gin.Context) {
	var event models.RiderEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
		return
	}

	rider, err := s.riders.Update(c.Request.Context(), c.Param("id"), &event)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRiderResponse(rider))
}

func (s *Server) handleDeleteRider(c *gin.Context) {
	if err := s.riders.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleDocumentURL returns the presigned download URL for the calling
// rider's stored license document.
func (s *Server) handleDocumentURL(c *gin.Context) {
	claims := requestClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	url, err := s.documents.GetDownloadURL(c.Request.Context(), claims.UserID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, common.ErrorConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
	case errors.Is(err, common.ErrorMalformedMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
	case errors.Is(err, common.ErrorUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
	default:
		s.logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
