package settings

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docextract-backend/internal/audit"
	"docextract-backend/internal/shared/server/middleware"
	"docextract-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc   *Service
	Audit *audit.Sink
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, sink *audit.Sink) *Handler {
	return &Handler{Svc: svc, Audit: sink}
}

// RegisterRoutes attaches settings routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/settings", h.get)
	rg.PUT("/settings", h.save)
}

type saveRequest struct {
	NotionAPIKey     *string `json:"notionApiKey"`
	NotionDatabaseID *string `json:"notionDatabaseId"`
}

// SettingsResponse is the outward representation; the API key is masked.
type SettingsResponse struct {
	NotionAPIKey     string `json:"notionApiKey"`
	NotionDatabaseID string `json:"notionDatabaseId"`
	HasAPIKey        bool   `json:"hasApiKey"`
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	s, err := h.Svc.Get(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.OK(c, SettingsResponse{})
			return
		}
		respond.Error(c, http.StatusInternalServerError, "failed to fetch settings")
		return
	}
	respond.OK(c, toResponse(s))
}

func (h *Handler) save(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid request body")
		return
	}

	s, err := h.Svc.Save(c.Request.Context(), userID, SaveInput{
		NotionAPIKey:     req.NotionAPIKey,
		NotionDatabaseID: req.NotionDatabaseID,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			respond.Error(c, http.StatusBadRequest, err.Error())
			return
		}
		respond.Error(c, http.StatusInternalServerError, "failed to save settings")
		return
	}

	if h.Audit != nil {
		h.Audit.Log(c.Request.Context(), audit.Event{
			UserID:   userID,
			Type:     audit.EventSettingsUpdated,
			Severity: audit.SeverityInfo,
			Status:   audit.StatusSuccess,
			Action:   "settings.save",
			Metadata: map[string]any{
				"apiKeyUpdated":     req.NotionAPIKey != nil,
				"databaseIdUpdated": req.NotionDatabaseID != nil,
			},
		})
	}

	respond.OK(c, toResponse(s))
}

func toResponse(s Settings) SettingsResponse {
	resp := SettingsResponse{}
	if s.NotionAPIKey != nil && *s.NotionAPIKey != "" {
		resp.HasAPIKey = true
		resp.NotionAPIKey = maskKey(*s.NotionAPIKey)
	}
	if s.NotionDatabaseID != nil {
		resp.NotionDatabaseID = *s.NotionDatabaseID
	}
	return resp
}

// maskKey keeps just enough of the tail to let a user recognize which key
// is on file.
func maskKey(stored string) string {
	if len(stored) <= 4 {
		return "****"
	}
	return "****" + stored[len(stored)-4:]
}
