package schema

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const databaseBody = `{
  "object": "database",
  "id": "abc",
  "title": [{"plain_text": "Invoices"}],
  "properties": {
    "Invoice Number": {"id": "a", "type": "title"},
    "Amount": {"id": "b", "type": "number"},
    "Due Date": {"id": "c", "type": "date"},
    "Paid": {"id": "d", "type": "checkbox"}
  },
  "url": "https://example.com/db"
}`

func newTestFetcher(handler http.HandlerFunc) (*Fetcher, *httptest.Server) {
	srv := httptest.NewServer(handler)
	f := NewFetcher()
	f.BaseURL = srv.URL
	f.HTTPClient = srv.Client()
	return f, srv
}

func TestDatabaseHeadersPreservesOrder(t *testing.T) {
	var gotPath, gotAuth, gotVersion string
	f, srv := newTestFetcher(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotVersion = r.Header.Get("Notion-Version")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(databaseBody))
	})
	defer srv.Close()

	headers := f.DatabaseHeaders(context.Background(), "db-123", "secret_key")
	want := []string{"Invoice Number", "Amount", "Due Date", "Paid"}
	if len(headers) != len(want) {
		t.Fatalf("headers = %#v, want %#v", headers, want)
	}
	for i := range want {
		if headers[i] != want[i] {
			t.Fatalf("headers[%d] = %q, want %q", i, headers[i], want[i])
		}
	}

	if gotPath != "/v1/databases/db-123" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer secret_key" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if gotVersion == "" {
		t.Fatal("Notion-Version header missing")
	}
}

func TestDatabaseHeadersNonOKReturnsNil(t *testing.T) {
	for _, status := range []int{400, 401, 404, 500} {
		f, srv := newTestFetcher(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})
		headers := f.DatabaseHeaders(context.Background(), "db", "secret_key")
		srv.Close()
		if headers != nil {
			t.Fatalf("status %d: headers = %#v, want nil", status, headers)
		}
	}
}

func TestDatabaseHeadersMalformedBodyReturnsNil(t *testing.T) {
	f, srv := newTestFetcher(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"properties": "not an object"`))
	})
	defer srv.Close()

	if headers := f.DatabaseHeaders(context.Background(), "db", "key"); headers != nil {
		t.Fatalf("headers = %#v, want nil", headers)
	}
}

func TestDatabaseHeadersNoPropertiesReturnsNil(t *testing.T) {
	f, srv := newTestFetcher(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"object": "database", "properties": {}}`))
	})
	defer srv.Close()

	if headers := f.DatabaseHeaders(context.Background(), "db", "key"); headers != nil {
		t.Fatalf("headers = %#v, want nil", headers)
	}
}

func TestDatabaseHeadersNetworkErrorReturnsNil(t *testing.T) {
	f, srv := newTestFetcher(func(w http.ResponseWriter, r *http.Request) {})
	srv.Close() // shut down before the call

	if headers := f.DatabaseHeaders(context.Background(), "db", "key"); headers != nil {
		t.Fatalf("headers = %#v, want nil", headers)
	}
}

func TestDatabaseHeadersEmptyArgsReturnNil(t *testing.T) {
	f := NewFetcher()
	if f.DatabaseHeaders(context.Background(), "", "key") != nil {
		t.Fatal("empty database id should return nil")
	}
	if f.DatabaseHeaders(context.Background(), "db", "") != nil {
		t.Fatal("empty api key should return nil")
	}
}

func TestPropertyNamesSkipsNestedObjects(t *testing.T) {
	body := `{
  "meta": {"properties": {"Decoy": {}}},
  "properties": {"Real": {"type": "title"}}
}`
	names, err := propertyNames(strings.NewReader(body))
	if err != nil {
		t.Fatalf("propertyNames: %v", err)
	}
	if len(names) != 1 || names[0] != "Real" {
		t.Fatalf("names = %#v", names)
	}
}
