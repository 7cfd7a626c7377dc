package extractions

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docextract-backend/internal/documents"
	"docextract-backend/internal/shared/server/middleware"
	"docextract-backend/internal/shared/server/respond"
	"docextract-backend/internal/validation"
)

// Handler serves extraction results for completed documents.
type Handler struct {
	Repo Repo
	Docs *documents.Service
}

// NewHandler constructs a Handler.
func NewHandler(repo Repo, docs *documents.Service) *Handler {
	return &Handler{Repo: repo, Docs: docs}
}

// RegisterRoutes attaches extraction routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/documents/:id/data", h.get)
	rg.GET("/documents/:id/export.csv", h.exportCSV)
}

// DataResponse is the outward representation of an extraction.
type DataResponse struct {
	DocumentID string         `json:"documentId"`
	Content    map[string]any `json:"content"`
	Markdown   string         `json:"markdown"`
	CSV        string         `json:"csv"`
}

func (h *Handler) get(c *gin.Context) {
	data, ok := h.lookup(c)
	if !ok {
		return
	}
	respond.OK(c, DataResponse{
		DocumentID: data.DocumentID,
		Content:    data.Content,
		Markdown:   data.Markdown,
		CSV:        data.CSV,
	})
}

func (h *Handler) exportCSV(c *gin.Context) {
	data, ok := h.lookup(c)
	if !ok {
		return
	}

	doc, err := h.Docs.Get(c.Request.Context(), middleware.UserIDFromContext(c), data.DocumentID)
	fileName := "export.csv"
	if err == nil {
		fileName = csvFileName(doc.FileName)
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(data.CSV))
}

// lookup resolves the document, enforces ownership, and loads the latest
// extraction. It writes the error response itself on failure.
func (h *Handler) lookup(c *gin.Context) (ExtractedData, bool) {
	userID := middleware.UserIDFromContext(c)
	documentID := c.Param("id")

	if check := validation.UUID(documentID); !check.Valid {
		respond.Error(c, http.StatusBadRequest, "invalid document id")
		return ExtractedData{}, false
	}

	if _, err := h.Docs.Get(c.Request.Context(), userID, documentID); err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "Document not found")
		} else {
			respond.Error(c, http.StatusInternalServerError, "failed to fetch document")
		}
		return ExtractedData{}, false
	}

	data, err := h.Repo.LatestByDocument(c.Request.Context(), documentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "No extracted data for document")
		} else {
			respond.Error(c, http.StatusInternalServerError, "failed to fetch extracted data")
		}
		return ExtractedData{}, false
	}
	return data, true
}

func csvFileName(original string) string {
	base := original
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	if base == "" {
		return "export.csv"
	}
	return base + ".csv"
}
