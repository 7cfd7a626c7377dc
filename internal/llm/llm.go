package llm

import (
	"context"
	"errors"
)

// Input carries a system+user prompt plus either extracted document text or
// the raw file bytes for inline upload.
type Input struct {
	SystemPrompt string
	UserPrompt   string
	DocumentText string // extracted text, when local extraction succeeded
	FileData     []byte // raw bytes, when no text is available
	MimeType     string // tags FileData for the provider
}

// Client abstracts generative AI providers for document extraction.
type Client interface {
	GenerateContent(ctx context.Context, input Input) (string, error)
}

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("LLM not implemented")

// PlaceholderClient is a stub implementation until provider wiring is added.
type PlaceholderClient struct{}

// GenerateContent returns ErrNotImplemented.
func (PlaceholderClient) GenerateContent(ctx context.Context, input Input) (string, error) {
	_ = ctx
	_ = input
	return "", ErrNotImplemented
}
