// Package schema retrieves the column layout of an external database so the
// produced CSV can mirror it. Enrichment is best effort: every failure mode
// collapses to a nil header list.
package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docextract-backend/internal/shared/telemetry"
)

const (
	defaultBaseURL = "https://api.notion.com"
	apiVersion     = "2022-06-28"
)

// Fetcher calls the external database API.
type Fetcher struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewFetcher constructs a Fetcher with default endpoint and timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{
		BaseURL:    defaultBaseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// DatabaseHeaders returns the ordered property names of the database, or nil
// on any failure. It never returns an error to the caller.
func (f *Fetcher) DatabaseHeaders(ctx context.Context, databaseID, apiKey string) []string {
	if strings.TrimSpace(databaseID) == "" || strings.TrimSpace(apiKey) == "" {
		return nil
	}

	base := f.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	url := fmt.Sprintf("%s/v1/databases/%s", strings.TrimRight(base, "/"), databaseID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		f.logFailure(databaseID, "build request", err)
		return nil
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Notion-Version", apiVersion)

	client := f.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		f.logFailure(databaseID, "request", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.logFailure(databaseID, fmt.Sprintf("status %d", resp.StatusCode), nil)
		return nil
	}

	headers, err := propertyNames(resp.Body)
	if err != nil {
		f.logFailure(databaseID, "parse body", err)
		return nil
	}
	if len(headers) == 0 {
		f.logFailure(databaseID, "no properties", nil)
		return nil
	}
	return headers
}

func (f *Fetcher) logFailure(databaseID, stage string, err error) {
	fields := map[string]any{
		"database_id": databaseID,
		"stage":       stage,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	telemetry.Warn("schema.fetch_failed", fields)
}

// propertyNames walks the response tokens to pull the keys of the
// "properties" object in document order. encoding/json maps lose key order,
// and column order must be stable.
func propertyNames(r io.Reader) ([]string, error) {
	dec := json.NewDecoder(r)

	// Opening brace of the response object.
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected key, got %v", keyTok)
		}
		if key != "properties" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, err
			}
			continue
		}

		open, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if delim, ok := open.(json.Delim); !ok || delim != '{' {
			return nil, fmt.Errorf("properties is not an object")
		}
		var names []string
		for dec.More() {
			nameTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			name, ok := nameTok.(string)
			if !ok {
				return nil, fmt.Errorf("expected property name, got %v", nameTok)
			}
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, err
			}
			names = append(names, name)
		}
		return names, nil
	}
	return nil, nil
}
