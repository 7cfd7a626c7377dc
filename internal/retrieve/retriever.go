// Package retrieve loads uploaded file bytes back out of object storage,
// falling back to a direct fetch of the stored URL.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"docextract-backend/internal/shared/storage/object"
	"docextract-backend/internal/shared/telemetry"
)

// pathMarker separates the public URL prefix from the bucket and object path.
const pathMarker = "/object/public/"

var ErrNoMarker = errors.New("storage path marker not found in url")

// Retriever fetches document bytes by stored URL.
type Retriever struct {
	Store      object.ObjectStore
	HTTPClient *http.Client
}

// NewRetriever constructs a Retriever over the given object store.
func NewRetriever(store object.ObjectStore) *Retriever {
	return &Retriever{
		Store:      store,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Fetch returns the raw bytes behind fileURL and a best-guess MIME type.
// The storage download is tried first; a failure or an empty result there
// falls back to a direct GET of the URL, whose non-2xx response is terminal.
func (r *Retriever) Fetch(ctx context.Context, fileURL string) ([]byte, string, error) {
	data, err := r.fromStorage(ctx, fileURL)
	if err != nil || len(data) == 0 {
		reason := "empty body"
		if err != nil {
			reason = err.Error()
		}
		telemetry.Warn("retrieve.storage_failed", map[string]any{
			"url":   fileURL,
			"error": reason,
		})
		data, err = r.fromURL(ctx, fileURL)
		if err != nil {
			return nil, "", fmt.Errorf("retrieve file: %w", err)
		}
	}
	if len(data) == 0 {
		return nil, "", errors.New("retrieve file: empty body")
	}
	return data, http.DetectContentType(data), nil
}

func (r *Retriever) fromStorage(ctx context.Context, fileURL string) ([]byte, error) {
	key, err := StorageKeyFromURL(fileURL)
	if err != nil {
		return nil, err
	}
	if r.Store == nil {
		return nil, errors.New("no object store configured")
	}
	body, err := r.Store.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open key=%s: %w", key, err)
	}
	defer body.Close()
	return io.ReadAll(body)
}

func (r *Retriever) fromURL(ctx context.Context, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, err
	}
	client := r.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("direct fetch status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// StorageKeyFromURL recovers the object storage key from a public file URL:
// everything after the marker and the bucket segment, URL-decoded.
func StorageKeyFromURL(fileURL string) (string, error) {
	idx := strings.Index(fileURL, pathMarker)
	if idx < 0 {
		return "", ErrNoMarker
	}
	rest := fileURL[idx+len(pathMarker):]
	_, keyPart, found := strings.Cut(rest, "/")
	if !found || keyPart == "" {
		return "", fmt.Errorf("no object path after bucket in %q", rest)
	}
	decoded, err := url.PathUnescape(keyPart)
	if err != nil {
		return "", fmt.Errorf("decode object path: %w", err)
	}
	return decoded, nil
}
