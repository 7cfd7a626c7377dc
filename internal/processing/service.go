package processing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"docextract-backend/internal/audit"
	"docextract-backend/internal/documents"
	"docextract-backend/internal/extract"
	"docextract-backend/internal/extractions"
	"docextract-backend/internal/llm"
	"docextract-backend/internal/parse"
	"docextract-backend/internal/secrets"
	"docextract-backend/internal/settings"
	"docextract-backend/internal/shared/metrics"
	"docextract-backend/internal/shared/telemetry"
	"docextract-backend/internal/validation"
)

// FileFetcher retrieves file bytes for a stored document URL.
type FileFetcher interface {
	Fetch(ctx context.Context, fileURL string) ([]byte, string, error)
}

// SchemaFetcher returns ordered column names for an external database, or
// nil when the schema could not be fetched.
type SchemaFetcher interface {
	DatabaseHeaders(ctx context.Context, databaseID, apiKey string) []string
}

// Failure is a typed processing error carrying the HTTP status the handler
// should return.
type Failure struct {
	StatusCode int
	Message    string
	Err        error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Message, f.Err)
	}
	return f.Message
}

func (f *Failure) Unwrap() error { return f.Err }

func failf(status int, message string, err error) *Failure {
	return &Failure{StatusCode: status, Message: message, Err: err}
}

// Caller identifies the authenticated requester for audit purposes.
type Caller struct {
	UserID    string
	Email     string
	IPAddress string
	UserAgent string
}

// Request is one processing invocation.
type Request struct {
	DocumentID string
	// DatabaseID optionally overrides the document's stored source id.
	DatabaseID string
}

// Service orchestrates document processing end to end. Each call runs
// sequentially within the request; concurrent calls for the same document
// are not mutually excluded, so two racers can both reach completed and
// both insert an extraction row.
type Service struct {
	Docs        documents.Repo
	Extractions extractions.Repo
	Settings    settings.Repo
	Audit       *audit.Sink
	Retriever   FileFetcher
	Schema      SchemaFetcher
	LLM         llm.Client

	// EncryptionSecret unwraps stored personal API keys. Empty is a fatal
	// configuration error when an encrypted key must be decrypted.
	EncryptionSecret string
	// FallbackAPIKey is the system-wide external database credential used
	// when the caller has no usable personal key.
	FallbackAPIKey string
	MaxFileSizeMB  int
}

const maxStoredErrorLen = 500

// Process runs the full pipeline for one document. On failure after the
// document has been marked processing, the document is transitioned to
// error with a truncated message and a failure audit event is emitted.
func (s *Service) Process(ctx context.Context, caller Caller, req Request) error {
	if check := validation.UUID(req.DocumentID); !check.Valid {
		return failf(http.StatusBadRequest, "Invalid document ID format", nil)
	}

	doc, err := s.Docs.GetByID(ctx, req.DocumentID)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			return failf(http.StatusNotFound, "Document not found", nil)
		}
		return failf(http.StatusInternalServerError, "Failed to load document", err)
	}

	if doc.UserID != caller.UserID {
		s.Audit.Log(ctx, audit.Event{
			Type:       audit.EventUnauthorizedAccess,
			Severity:   audit.SeverityCritical,
			UserID:     caller.UserID,
			UserEmail:  caller.Email,
			IPAddress:  caller.IPAddress,
			UserAgent:  caller.UserAgent,
			ResourceID: doc.ID,
			Action:     "document.process",
			Status:     audit.StatusFailure,
			Metadata:   map[string]any{"owner": doc.UserID},
		})
		return failf(http.StatusUnauthorized, "Unauthorized", nil)
	}

	if check := validation.FileSize(doc.FileSize, s.maxFileSizeMB()); !check.Valid {
		return failf(http.StatusBadRequest, check.Err, nil)
	}
	if check := validation.FileType(doc.FileType); !check.Valid {
		return failf(http.StatusBadRequest, check.Err, nil)
	}

	// From here on failures route through s.fail, which marks the
	// document error before returning.
	started := time.Now()
	metrics.IncProcessingStarted()
	if err := s.Docs.UpdateStatus(ctx, doc.ID, documents.StatusProcessing, nil); err != nil {
		return s.fail(ctx, caller, doc, failf(http.StatusInternalServerError, "Failed to start processing", err))
	}

	databaseID := req.DatabaseID
	if databaseID == "" && doc.SourceID != nil {
		databaseID = *doc.SourceID
	}
	if databaseID != "" {
		check := validation.DatabaseID(databaseID)
		if !check.Valid {
			return s.fail(ctx, caller, doc, failf(http.StatusBadRequest, "Invalid database ID format", nil))
		}
		databaseID = check.Sanitized
	}

	var headers []string
	if databaseID != "" {
		apiKey, ferr := s.resolveAPIKey(ctx, caller)
		if ferr != nil {
			return s.fail(ctx, caller, doc, ferr)
		}
		if apiKey == "" {
			telemetry.Warn("processing.no_api_key", map[string]any{
				"documentId": doc.ID,
				"databaseId": databaseID,
			})
		} else {
			headers = s.Schema.DatabaseHeaders(ctx, databaseID, apiKey)
		}
	}

	fileData, mimeType, err := s.Retriever.Fetch(ctx, doc.FileURL)
	if err != nil {
		return s.fail(ctx, caller, doc, failf(http.StatusInternalServerError, "Failed to retrieve file", err))
	}
	if doc.FileType != "" {
		mimeType = doc.FileType
	}

	text, err := extract.Text(fileData, mimeType)
	if err != nil {
		telemetry.Warn("processing.extract_failed", map[string]any{
			"documentId": doc.ID,
			"mimeType":   mimeType,
			"error":      err.Error(),
		})
		text = ""
	}
	if text == "" && !extract.IsImage(mimeType) {
		return s.fail(ctx, caller, doc, failf(http.StatusBadRequest,
			"Unsupported file type: no text could be extracted and the file is not an image", nil))
	}

	input := llm.Input{
		SystemPrompt: systemPrompt(databaseID, headers),
		UserPrompt:   userPrompt(doc.FileName),
	}
	if text != "" {
		input.DocumentText = text
	} else {
		input.FileData = fileData
		input.MimeType = mimeType
	}

	raw, err := s.LLM.GenerateContent(ctx, input)
	if err != nil {
		return s.fail(ctx, caller, doc, failf(http.StatusInternalServerError, "AI processing failed", err))
	}

	parsed := parse.Response(raw)
	csvText := parsed.CSV
	if len(headers) > 0 {
		csvText = parse.ReconcileCSV(csvText, headers, parsed.Content)
	}

	content := parsed.Content
	if content == nil {
		content = map[string]any{}
	}
	if databaseID != "" {
		content["source_id"] = databaseID
	} else {
		content["source_id"] = nil
	}

	record := extractions.ExtractedData{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		Content:    content,
		Markdown:   parsed.Markdown,
		CSV:        csvText,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.Extractions.Insert(ctx, record); err != nil {
		return s.fail(ctx, caller, doc, failf(http.StatusInternalServerError, "Failed to save extracted data", err))
	}

	if err := s.Docs.UpdateStatus(ctx, doc.ID, documents.StatusCompleted, nil); err != nil {
		return s.fail(ctx, caller, doc, failf(http.StatusInternalServerError, "Failed to complete processing", err))
	}

	metrics.IncProcessingCompleted()
	metrics.ObserveProcessingDurationMs(float64(time.Since(started).Milliseconds()))
	s.Audit.Log(ctx, audit.Event{
		Type:       audit.EventDocumentProcessed,
		Severity:   audit.SeverityInfo,
		UserID:     caller.UserID,
		UserEmail:  caller.Email,
		IPAddress:  caller.IPAddress,
		UserAgent:  caller.UserAgent,
		ResourceID: doc.ID,
		Action:     "document.process",
		Status:     audit.StatusSuccess,
		Metadata: map[string]any{
			"fileName":       doc.FileName,
			"fileType":       doc.FileType,
			"schemaEnriched": len(headers) > 0,
			"columnCount":    len(headers),
		},
	})
	return nil
}

// resolveAPIKey returns the external database credential with priority:
// caller's personal key, then the system-wide fallback. A personal key that
// cannot be decrypted degrades to the fallback with a critical audit event.
// An encrypted key with no configured encryption secret is a fatal
// configuration error.
func (s *Service) resolveAPIKey(ctx context.Context, caller Caller) (string, *Failure) {
	stored, err := s.Settings.Get(ctx, caller.UserID)
	if err != nil && !errors.Is(err, settings.ErrNotFound) {
		return "", failf(http.StatusInternalServerError, "Failed to load settings", err)
	}

	if stored.NotionAPIKey != nil && *stored.NotionAPIKey != "" {
		key := settings.ClassifyKey(*stored.NotionAPIKey)
		switch key.Kind {
		case settings.KeyPlaintext:
			return key.Value, nil
		case settings.KeyEncrypted:
			if s.EncryptionSecret == "" {
				s.Audit.Log(ctx, audit.Event{
					Type:      audit.EventConfigError,
					Severity:  audit.SeverityCritical,
					UserID:    caller.UserID,
					Action:    "settings.decrypt_key",
					Status:    audit.StatusFailure,
					IPAddress: caller.IPAddress,
					Metadata:  map[string]any{"reason": "encryption secret not configured"},
				})
				return "", failf(http.StatusInternalServerError,
					"Server configuration error: encryption secret is not set", nil)
			}
			plaintext, derr := secrets.Decrypt(key.Value, s.EncryptionSecret)
			if derr != nil {
				s.Audit.Log(ctx, audit.Event{
					Type:         audit.EventDecryptFailure,
					Severity:     audit.SeverityCritical,
					UserID:       caller.UserID,
					Action:       "settings.decrypt_key",
					Status:       audit.StatusFailure,
					IPAddress:    caller.IPAddress,
					ErrorMessage: derr.Error(),
				})
				telemetry.Error("processing.decrypt_failed", map[string]any{
					"userId": caller.UserID,
					"error":  derr.Error(),
				})
			} else {
				return plaintext, nil
			}
		}
	}

	return s.FallbackAPIKey, nil
}

// fail marks the document error with a truncated message, emits a failure
// audit event, and returns the original failure for the handler. Its own
// side effects are best effort and never mask the primary error.
func (s *Service) fail(ctx context.Context, caller Caller, doc documents.Document, failure *Failure) *Failure {
	msg := failure.Error()
	if len(msg) > maxStoredErrorLen {
		msg = msg[:maxStoredErrorLen]
	}

	// Status update uses a fresh context so a canceled request still
	// records the error state.
	if err := s.Docs.UpdateStatus(context.Background(), doc.ID, documents.StatusError, &msg); err != nil {
		telemetry.Error("processing.mark_error_failed", map[string]any{
			"documentId": doc.ID,
			"error":      err.Error(),
		})
	}

	s.Audit.Log(ctx, audit.Event{
		Type:         audit.EventDocumentProcessed,
		Severity:     audit.SeverityWarning,
		UserID:       caller.UserID,
		UserEmail:    caller.Email,
		IPAddress:    caller.IPAddress,
		UserAgent:    caller.UserAgent,
		ResourceID:   doc.ID,
		Action:       "document.process",
		Status:       audit.StatusFailure,
		ErrorMessage: msg,
	})

	metrics.IncProcessingFailed()
	return failure
}

func (s *Service) maxFileSizeMB() int {
	if s.MaxFileSizeMB > 0 {
		return s.MaxFileSizeMB
	}
	return 20
}
