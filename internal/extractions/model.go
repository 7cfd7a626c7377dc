package extractions

import "time"

// ExtractedData is the structured output of processing one document.
type ExtractedData struct {
	ID         string
	DocumentID string
	Content    map[string]any
	Markdown   string
	CSV        string
	CreatedAt  time.Time
}
