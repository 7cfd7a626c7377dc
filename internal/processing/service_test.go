package processing

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"docextract-backend/internal/audit"
	"docextract-backend/internal/documents"
	"docextract-backend/internal/extractions"
	"docextract-backend/internal/llm"
	"docextract-backend/internal/secrets"
	"docextract-backend/internal/settings"
)

const (
	testUserID = "a1b2c3d4-e5f6-7890-abcd-ef1234567890"
	testDocID  = "11111111-2222-3333-4444-555555555555"
	testDBID   = "a1b2c3d4e5f67890a1b2c3d4e5f67890"
)

// fakeRetriever returns canned bytes or an error.
type fakeRetriever struct {
	data []byte
	mime string
	err  error
}

func (f *fakeRetriever) Fetch(ctx context.Context, fileURL string) ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return f.data, f.mime, nil
}

// fakeSchema returns canned headers and records whether it was called.
type fakeSchema struct {
	headers []string
	called  bool
	gotKey  string
}

func (f *fakeSchema) DatabaseHeaders(ctx context.Context, databaseID, apiKey string) []string {
	f.called = true
	f.gotKey = apiKey
	return f.headers
}

// fakeLLM returns a canned response and counts calls.
type fakeLLM struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
	inputs   []llm.Input
}

func (f *fakeLLM) GenerateContent(ctx context.Context, input llm.Input) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

const goodResponse = "```json\n{\"Name\": \"Bob\", \"Age\": \"30\"}\n```\n" +
	"```markdown\n# Doc\n```\n" +
	"```csv\nname,age\nBob,30\n```"

type fixture struct {
	svc         *Service
	docs        *documents.MemoryRepo
	extractions *extractions.MemoryRepo
	settings    *settings.MemoryRepo
	auditRepo   *audit.MemoryRepo
	llm         *fakeLLM
	schema      *fakeSchema
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		docs:        documents.NewMemoryRepo(),
		extractions: extractions.NewMemoryRepo(),
		settings:    settings.NewMemoryRepo(),
		auditRepo:   audit.NewMemoryRepo(),
		llm:         &fakeLLM{response: goodResponse},
		schema:      &fakeSchema{},
	}
	f.svc = &Service{
		Docs:             f.docs,
		Extractions:      f.extractions,
		Settings:         f.settings,
		Audit:            audit.NewSink(f.auditRepo),
		Retriever:        &fakeRetriever{data: []byte("%PDF-1.4 fake"), mime: "application/pdf"},
		Schema:           f.schema,
		LLM:              f.llm,
		EncryptionSecret: "server-secret",
		MaxFileSizeMB:    20,
	}
	return f
}

func (f *fixture) addDoc(t *testing.T, doc documents.Document) documents.Document {
	t.Helper()
	if doc.ID == "" {
		doc.ID = testDocID
	}
	if doc.UserID == "" {
		doc.UserID = testUserID
	}
	if doc.FileName == "" {
		doc.FileName = "invoice.pdf"
	}
	if doc.FileURL == "" {
		doc.FileURL = "local://storage/object/public/documents/u/invoice.pdf"
	}
	if doc.FileType == "" {
		doc.FileType = "application/pdf"
	}
	if doc.FileSize == 0 {
		doc.FileSize = 2048
	}
	if doc.Status == "" {
		doc.Status = documents.StatusPending
	}
	doc.CreatedAt = time.Now().UTC()
	if err := f.docs.Create(context.Background(), doc); err != nil {
		t.Fatalf("create doc: %v", err)
	}
	return doc
}

func caller() Caller {
	return Caller{UserID: testUserID, Email: "user@example.com", IPAddress: "1.2.3.4"}
}

// The extractor cannot pull text out of the fake PDF bytes, so runs flow
// through the inline-binary branch only when the type is an image. For
// text-path tests the document text comes from a real minimal PDF being
// overkill; instead these tests use image types, which skip extraction.

func TestProcessSuccessImage(t *testing.T) {
	f := newFixture(t)
	doc := f.addDoc(t, documents.Document{FileType: "image/png", FileName: "scan.png"})

	err := f.svc.Process(context.Background(), caller(), Request{DocumentID: doc.ID})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	got, gerr := f.docs.GetByID(context.Background(), doc.ID)
	if gerr != nil {
		t.Fatalf("get doc: %v", gerr)
	}
	if got.Status != documents.StatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}

	data, derr := f.extractions.LatestByDocument(context.Background(), doc.ID)
	if derr != nil {
		t.Fatalf("latest extraction: %v", derr)
	}
	if data.Markdown != "# Doc" {
		t.Fatalf("markdown = %q", data.Markdown)
	}
	if data.CSV != "name,age\nBob,30" {
		t.Fatalf("csv = %q", data.CSV)
	}
	if _, ok := data.Content["source_id"]; !ok {
		t.Fatal("content missing source_id tag")
	}
	if f.llm.calls != 1 {
		t.Fatalf("llm calls = %d", f.llm.calls)
	}
}

func TestProcessInvalidIDNoDocumentTouched(t *testing.T) {
	f := newFixture(t)
	doc := f.addDoc(t, documents.Document{FileType: "image/png"})

	err := f.svc.Process(context.Background(), caller(), Request{DocumentID: "not-a-uuid"})
	var failure *Failure
	if !errors.As(err, &failure) || failure.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 failure, got %v", err)
	}

	got, _ := f.docs.GetByID(context.Background(), doc.ID)
	if got.Status != documents.StatusPending {
		t.Fatalf("document was touched: status = %s", got.Status)
	}
}

func TestProcessMissingDocument(t *testing.T) {
	f := newFixture(t)
	err := f.svc.Process(context.Background(), caller(), Request{DocumentID: testDocID})
	var failure *Failure
	if !errors.As(err, &failure) || failure.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 failure, got %v", err)
	}
}

func TestProcessOwnershipGateNeverMutates(t *testing.T) {
	f := newFixture(t)
	doc := f.addDoc(t, documents.Document{UserID: "99999999-8888-7777-6666-555555555555", FileType: "image/png"})

	err := f.svc.Process(context.Background(), caller(), Request{DocumentID: doc.ID})
	var failure *Failure
	if !errors.As(err, &failure) || failure.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 failure, got %v", err)
	}

	got, _ := f.docs.GetByID(context.Background(), doc.ID)
	if got.Status != documents.StatusPending {
		t.Fatalf("document mutated on ownership failure: status = %s", got.Status)
	}
	if got.ErrorMessage != nil {
		t.Fatal("error message set on ownership failure")
	}
	if f.llm.calls != 0 {
		t.Fatal("AI endpoint called for unauthorized request")
	}

	events := f.auditRepo.Events()
	found := false
	for _, ev := range events {
		if ev.Type == audit.EventUnauthorizedAccess {
			found = true
		}
	}
	if !found {
		t.Fatal("unauthorized access was not audited")
	}
}

func TestProcessSizeAndTypeGatePreMark(t *testing.T) {
	f := newFixture(t)

	oversized := f.addDoc(t, documents.Document{
		ID:       "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
		FileType: "image/png",
		FileSize: 25 << 20,
	})
	err := f.svc.Process(context.Background(), caller(), Request{DocumentID: oversized.ID})
	var failure *Failure
	if !errors.As(err, &failure) || failure.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized file, got %v", err)
	}
	got, _ := f.docs.GetByID(context.Background(), oversized.ID)
	if got.Status != documents.StatusPending {
		t.Fatalf("pre-mark validation mutated status to %s", got.Status)
	}

	badType := f.addDoc(t, documents.Document{
		ID:       "bbbbbbbb-cccc-dddd-eeee-ffffffffffff",
		FileType: "application/zip",
	})
	err = f.svc.Process(context.Background(), caller(), Request{DocumentID: badType.ID})
	if !errors.As(err, &failure) || failure.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad type, got %v", err)
	}
	if f.llm.calls != 0 {
		t.Fatal("AI endpoint called despite gate failures")
	}
}

func TestProcessUnsupportedDocShortCircuit(t *testing.T) {
	f := newFixture(t)
	// Legacy .doc: allow-listed MIME type, but no extractable text and not
	// an image.
	doc := f.addDoc(t, documents.Document{
		FileName: "old.doc",
		FileType: "application/msword",
	})
	f.svc.Retriever = &fakeRetriever{data: []byte{0xd0, 0xcf, 0x11, 0xe0}, mime: "application/msword"}

	err := f.svc.Process(context.Background(), caller(), Request{DocumentID: doc.ID})
	var failure *Failure
	if !errors.As(err, &failure) || failure.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 failure, got %v", err)
	}
	if !strings.Contains(strings.ToLower(failure.Message), "unsupported file type") {
		t.Fatalf("message = %q", failure.Message)
	}
	if f.llm.calls != 0 {
		t.Fatal("AI endpoint was called for unsupported type")
	}

	got, _ := f.docs.GetByID(context.Background(), doc.ID)
	if got.Status != documents.StatusError {
		t.Fatalf("status = %s, want error", got.Status)
	}
	if got.ErrorMessage == nil {
		t.Fatal("error message not recorded")
	}
}

func TestProcessInvalidDatabaseIDPostMark(t *testing.T) {
	f := newFixture(t)
	bad := "zznothex"
	doc := f.addDoc(t, documents.Document{FileType: "image/png", SourceID: &bad})

	err := f.svc.Process(context.Background(), caller(), Request{DocumentID: doc.ID})
	var failure *Failure
	if !errors.As(err, &failure) || failure.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 failure, got %v", err)
	}

	got, _ := f.docs.GetByID(context.Background(), doc.ID)
	if got.Status != documents.StatusError {
		t.Fatalf("status = %s, want error (post-mark failure)", got.Status)
	}
}

func TestProcessSchemaEnrichmentUsesDecryptedKey(t *testing.T) {
	f := newFixture(t)
	doc := f.addDoc(t, documents.Document{FileType: "image/png"})

	plain := "secret_" + strings.Repeat("k", 35)
	encrypted, err := secrets.Encrypt(plain, "server-secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if err := f.settings.Upsert(context.Background(), settings.Settings{
		UserID:       testUserID,
		NotionAPIKey: &encrypted,
	}); err != nil {
		t.Fatalf("upsert settings: %v", err)
	}
	f.schema.headers = []string{"name", "age"}

	if err := f.svc.Process(context.Background(), caller(), Request{DocumentID: doc.ID, DatabaseID: testDBID}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if !f.schema.called {
		t.Fatal("schema fetcher not called")
	}
	if f.schema.gotKey != plain {
		t.Fatalf("schema key = %q, want decrypted personal key", f.schema.gotKey)
	}

	data, _ := f.extractions.LatestByDocument(context.Background(), doc.ID)
	if data.CSV != "name,age\nBob,30" {
		t.Fatalf("csv = %q", data.CSV)
	}
	if data.Content["source_id"] != testDBID {
		t.Fatalf("source_id = %v", data.Content["source_id"])
	}
}

func TestProcessDecryptFailureDegradesToFallback(t *testing.T) {
	f := newFixture(t)
	doc := f.addDoc(t, documents.Document{FileType: "image/png"})
	f.svc.FallbackAPIKey = "ntn_" + strings.Repeat("f", 40)

	garbage := "bm90LXJlYWxseS1lbmNyeXB0ZWQtZGF0YS1hdC1hbGw="
	if err := f.settings.Upsert(context.Background(), settings.Settings{
		UserID:       testUserID,
		NotionAPIKey: &garbage,
	}); err != nil {
		t.Fatalf("upsert settings: %v", err)
	}

	if err := f.svc.Process(context.Background(), caller(), Request{DocumentID: doc.ID, DatabaseID: testDBID}); err != nil {
		t.Fatalf("process should degrade, got %v", err)
	}
	if f.schema.gotKey != f.svc.FallbackAPIKey {
		t.Fatalf("schema key = %q, want fallback", f.schema.gotKey)
	}

	var critical bool
	for _, ev := range f.auditRepo.Events() {
		if ev.Type == audit.EventDecryptFailure && ev.Severity == audit.SeverityCritical {
			critical = true
		}
	}
	if !critical {
		t.Fatal("decrypt failure was not audited as critical")
	}
}

func TestProcessEncryptedKeyWithoutSecretIsConfigError(t *testing.T) {
	f := newFixture(t)
	doc := f.addDoc(t, documents.Document{FileType: "image/png"})
	f.svc.EncryptionSecret = ""

	blob := "bm90LXJlYWxseS1lbmNyeXB0ZWQtZGF0YS1hdC1hbGw="
	if err := f.settings.Upsert(context.Background(), settings.Settings{
		UserID:       testUserID,
		NotionAPIKey: &blob,
	}); err != nil {
		t.Fatalf("upsert settings: %v", err)
	}

	err := f.svc.Process(context.Background(), caller(), Request{DocumentID: doc.ID, DatabaseID: testDBID})
	var failure *Failure
	if !errors.As(err, &failure) || failure.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 config failure, got %v", err)
	}
}

func TestProcessNoKeyContinuesWithoutEnrichment(t *testing.T) {
	f := newFixture(t)
	doc := f.addDoc(t, documents.Document{FileType: "image/png"})

	if err := f.svc.Process(context.Background(), caller(), Request{DocumentID: doc.ID, DatabaseID: testDBID}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if f.schema.called {
		t.Fatal("schema fetcher called with no credential")
	}

	got, _ := f.docs.GetByID(context.Background(), doc.ID)
	if got.Status != documents.StatusCompleted {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestProcessSchemaFailureStillCompletes(t *testing.T) {
	f := newFixture(t)
	doc := f.addDoc(t, documents.Document{FileType: "image/png"})
	f.svc.FallbackAPIKey = "ntn_" + strings.Repeat("f", 40)
	f.schema.headers = nil // fetch failed upstream, nil per contract

	if err := f.svc.Process(context.Background(), caller(), Request{DocumentID: doc.ID, DatabaseID: testDBID}); err != nil {
		t.Fatalf("process: %v", err)
	}
	got, _ := f.docs.GetByID(context.Background(), doc.ID)
	if got.Status != documents.StatusCompleted {
		t.Fatalf("status = %s, want completed despite schema failure", got.Status)
	}

	// Model CSV kept as-is since no headers were available to reconcile.
	data, _ := f.extractions.LatestByDocument(context.Background(), doc.ID)
	if data.CSV != "name,age\nBob,30" {
		t.Fatalf("csv = %q", data.CSV)
	}
}

func TestProcessCSVReconciledAgainstHeaders(t *testing.T) {
	f := newFixture(t)
	doc := f.addDoc(t, documents.Document{FileType: "image/png"})
	f.svc.FallbackAPIKey = "ntn_" + strings.Repeat("f", 40)
	f.schema.headers = []string{"Full Name", "Age"}

	if err := f.svc.Process(context.Background(), caller(), Request{DocumentID: doc.ID, DatabaseID: testDBID}); err != nil {
		t.Fatalf("process: %v", err)
	}
	data, _ := f.extractions.LatestByDocument(context.Background(), doc.ID)
	// Model headers (name,age) don't match (Full Name,Age); csv is rebuilt
	// from the structured content with blanks for unmatched columns.
	if data.CSV != "Full Name,Age\n,30" {
		t.Fatalf("csv = %q", data.CSV)
	}
}

func TestProcessRetrievalFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	doc := f.addDoc(t, documents.Document{FileType: "image/png"})
	f.svc.Retriever = &fakeRetriever{err: errors.New("both paths failed")}

	err := f.svc.Process(context.Background(), caller(), Request{DocumentID: doc.ID})
	var failure *Failure
	if !errors.As(err, &failure) || failure.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 failure, got %v", err)
	}
	got, _ := f.docs.GetByID(context.Background(), doc.ID)
	if got.Status != documents.StatusError {
		t.Fatalf("status = %s, want error", got.Status)
	}
}

func TestProcessLLMFailureMarksError(t *testing.T) {
	f := newFixture(t)
	doc := f.addDoc(t, documents.Document{FileType: "image/png"})
	f.llm.err = errors.New("gemini status 503")

	err := f.svc.Process(context.Background(), caller(), Request{DocumentID: doc.ID})
	var failure *Failure
	if !errors.As(err, &failure) || failure.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 failure, got %v", err)
	}
	got, _ := f.docs.GetByID(context.Background(), doc.ID)
	if got.Status != documents.StatusError {
		t.Fatalf("status = %s", got.Status)
	}

	var audited bool
	for _, ev := range f.auditRepo.Events() {
		if ev.Status == audit.StatusFailure && ev.ResourceID == doc.ID {
			audited = true
		}
	}
	if !audited {
		t.Fatal("failure was not audited")
	}
}

func TestProcessErrorMessageTruncatedTo500(t *testing.T) {
	f := newFixture(t)
	doc := f.addDoc(t, documents.Document{FileType: "image/png"})
	f.llm.err = errors.New(strings.Repeat("e", 700))

	if err := f.svc.Process(context.Background(), caller(), Request{DocumentID: doc.ID}); err == nil {
		t.Fatal("expected failure")
	}
	got, _ := f.docs.GetByID(context.Background(), doc.ID)
	if got.ErrorMessage == nil {
		t.Fatal("error message missing")
	}
	if len(*got.ErrorMessage) != 500 {
		t.Fatalf("stored error length = %d, want 500", len(*got.ErrorMessage))
	}
}

func TestProcessMalformedModelOutputFallsBack(t *testing.T) {
	f := newFixture(t)
	doc := f.addDoc(t, documents.Document{FileType: "image/png"})
	f.llm.response = "The document says:\nName: Bob\nAge: 30"

	if err := f.svc.Process(context.Background(), caller(), Request{DocumentID: doc.ID}); err != nil {
		t.Fatalf("process: %v", err)
	}
	data, _ := f.extractions.LatestByDocument(context.Background(), doc.ID)
	if data.Markdown != f.llm.response {
		t.Fatal("markdown should fall back to raw text")
	}
	if !strings.HasPrefix(data.CSV, `"The document says:"`) {
		t.Fatalf("csv = %q", data.CSV)
	}
}

// Two concurrent calls for the same document are not mutually excluded.
// Both can reach completed and both insert an extraction row. This test
// documents the behavior rather than asserting exclusion.
func TestProcessConcurrentSameDocumentBothComplete(t *testing.T) {
	f := newFixture(t)
	doc := f.addDoc(t, documents.Document{FileType: "image/png"})

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.svc.Process(context.Background(), caller(), Request{DocumentID: doc.ID})
		}(i)
	}
	wg.Wait()

	if results[0] != nil || results[1] != nil {
		t.Fatalf("both runs should succeed: %v, %v", results[0], results[1])
	}
	if f.llm.calls != 2 {
		t.Fatalf("llm calls = %d, want 2 (no exclusion)", f.llm.calls)
	}
	got, _ := f.docs.GetByID(context.Background(), doc.ID)
	if got.Status != documents.StatusCompleted {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestProcessPromptCarriesHeaders(t *testing.T) {
	f := newFixture(t)
	doc := f.addDoc(t, documents.Document{FileType: "image/png"})
	f.svc.FallbackAPIKey = "ntn_" + strings.Repeat("f", 40)
	f.schema.headers = []string{"Invoice Number", "Amount"}

	if err := f.svc.Process(context.Background(), caller(), Request{DocumentID: doc.ID, DatabaseID: testDBID}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(f.llm.inputs) != 1 {
		t.Fatalf("llm inputs = %d", len(f.llm.inputs))
	}
	prompt := f.llm.inputs[0].SystemPrompt
	if !strings.Contains(prompt, "Invoice Number, Amount") {
		t.Fatalf("system prompt missing exact headers: %q", prompt)
	}
}
