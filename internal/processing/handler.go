package processing

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docextract-backend/internal/shared/server/middleware"
	"docextract-backend/internal/shared/server/respond"
)

// Handler exposes the processing endpoint.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches the processing route to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/process", h.process)
}

type processRequest struct {
	DocumentID string `json:"documentId"`
	DatabaseID string `json:"databaseId"`
}

type processResponse struct {
	Success bool `json:"success"`
}

func (h *Handler) process(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid request body")
		return
	}

	caller := Caller{
		UserID:    middleware.UserIDFromContext(c),
		Email:     middleware.UserEmailFromContext(c),
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}

	c.Set("documentId", req.DocumentID)

	err := h.Svc.Process(c.Request.Context(), caller, Request{
		DocumentID: req.DocumentID,
		DatabaseID: req.DatabaseID,
	})
	if err != nil {
		var failure *Failure
		if errors.As(err, &failure) {
			respond.Error(c, failure.StatusCode, failure.Message)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "processing failed")
		return
	}

	respond.OK(c, processResponse{Success: true})
}
