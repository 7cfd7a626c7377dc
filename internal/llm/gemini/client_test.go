package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"docextract-backend/internal/llm"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	client, err := NewClient("test-key", "test-model")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client.WithBaseURL(srv.URL), srv
}

func okBody(text string) string {
	return `{"candidates":[{"content":{"parts":[{"text":` + jsonString(text) + `}]}}]}`
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestGenerateContentTextPayload(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(okBody("```json\n{}\n```")))
	})
	defer srv.Close()

	out, err := client.GenerateContent(context.Background(), llm.Input{
		SystemPrompt: "extract things",
		UserPrompt:   "here is the document",
		DocumentText: "invoice #42",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != "```json\n{}\n```" {
		t.Fatalf("out = %q", out)
	}
	if gotPath != "/v1beta/models/test-model:generateContent" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Fatalf("api key header = %q", gotKey)
	}
	if _, ok := gotBody["system_instruction"]; !ok {
		t.Fatal("system_instruction missing from request body")
	}
}

func TestGenerateContentInlineBinary(t *testing.T) {
	fileBytes := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}
	var gotBody struct {
		Contents []struct {
			Parts []struct {
				Text       string `json:"text"`
				InlineData *struct {
					MimeType string `json:"mime_type"`
					Data     string `json:"data"`
				} `json:"inline_data"`
			} `json:"parts"`
		} `json:"contents"`
	}
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(okBody("done")))
	})
	defer srv.Close()

	_, err := client.GenerateContent(context.Background(), llm.Input{
		UserPrompt: "extract",
		FileData:   fileBytes,
		MimeType:   "image/png",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if len(gotBody.Contents) != 1 || len(gotBody.Contents[0].Parts) != 2 {
		t.Fatalf("unexpected request shape: %#v", gotBody)
	}
	inline := gotBody.Contents[0].Parts[1].InlineData
	if inline == nil {
		t.Fatal("inline_data part missing")
	}
	if inline.MimeType != "image/png" {
		t.Fatalf("mime_type = %q", inline.MimeType)
	}
	if inline.Data != base64.StdEncoding.EncodeToString(fileBytes) {
		t.Fatal("inline data is not the base64 file bytes")
	}
}

func TestGenerateContentAPIError(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`))
	})
	defer srv.Close()

	_, err := client.GenerateContent(context.Background(), llm.Input{UserPrompt: "x", DocumentText: "y"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "API key not valid") {
		t.Fatalf("error should carry upstream message: %v", err)
	}
}

func TestGenerateContentNonJSONErrorBody(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html><body>502 Bad Gateway</body></html>"))
	})
	defer srv.Close()

	_, err := client.GenerateContent(context.Background(), llm.Input{UserPrompt: "x", DocumentText: "y"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "gemini status 502") {
		t.Fatalf("error should carry the upstream status, got: %v", err)
	}
}

func TestGenerateContentMissingCandidates(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	})
	defer srv.Close()

	if _, err := client.GenerateContent(context.Background(), llm.Input{UserPrompt: "x"}); err == nil {
		t.Fatal("expected error for empty candidates")
	}
}

func TestGenerateContentEmptyText(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(okBody("   ")))
	})
	defer srv.Close()

	if _, err := client.GenerateContent(context.Background(), llm.Input{UserPrompt: "x"}); err == nil {
		t.Fatal("expected error for blank content")
	}
}

func TestNewClientRequiresKeyAndModel(t *testing.T) {
	if _, err := NewClient("", "model"); err == nil {
		t.Fatal("expected error for missing key")
	}
	if _, err := NewClient("key", ""); err == nil {
		t.Fatal("expected error for missing model")
	}
}
