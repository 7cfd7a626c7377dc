package documents

import "time"

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	DocumentID   string    `json:"documentId"`
	FileName     string    `json:"fileName"`
	FileType     string    `json:"fileType"`
	FileSize     int64     `json:"fileSize"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	DatabaseID   string    `json:"databaseId,omitempty"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

func toResponse(doc Document) DocumentResponse {
	resp := DocumentResponse{
		DocumentID: doc.ID,
		FileName:   doc.FileName,
		FileType:   doc.FileType,
		FileSize:   doc.FileSize,
		Status:     string(doc.Status),
		UploadedAt: doc.CreatedAt,
	}
	if doc.ErrorMessage != nil {
		resp.ErrorMessage = *doc.ErrorMessage
	}
	if doc.SourceID != nil {
		resp.DatabaseID = *doc.SourceID
	}
	return resp
}
