package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/docsift/dbopen"
	"github.com/hazyhaar/docsift/docpipe"
	"github.com/hazyhaar/docsift/journal"
)

func newTestServer(t *testing.T, cfg *Config) (*Server, *journal.Journal) {
	t.Helper()
	if cfg == nil {
		cfg = DefaultConfig()
	}
	db := dbopen.OpenMemory(t)

	jnl := journal.New(db)
	if err := jnl.Init(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { jnl.Close() })

	pipe := docpipe.New(docpipe.Config{})
	return NewServer(cfg, pipe, jnl, nil), jnl
}

func multipartUpload(t *testing.T, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestExtract_Upload(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	body, contentType := multipartUpload(t, "notes.txt", []byte("First line of the upload.\nSecond line."))
	req := httptest.NewRequest("POST", "/api/extract", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var doc docpipe.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Format != docpipe.FormatTXT {
		t.Errorf("format = %s, want %s", doc.Format, docpipe.FormatTXT)
	}
	if doc.Path != "notes.txt" {
		t.Errorf("path = %q, want the upload name", doc.Path)
	}
	if !strings.Contains(doc.RawText, "First line") {
		t.Errorf("raw text = %q", doc.RawText)
	}
}

func TestExtract_MissingFileField(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("other", "value")
	mw.Close()

	req := httptest.NewRequest("POST", "/api/extract", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestExtract_EmptyUploadReportsUnprocessable(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	body, contentType := multipartUpload(t, "blank.txt", []byte("   \n"))
	req := httptest.NewRequest("POST", "/api/extract", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != 422 {
		t.Fatalf("status = %d, want 422; body %s", rec.Code, rec.Body.String())
	}
}

func TestExtract_RecordsJournalEntry(t *testing.T) {
	srv, jnl := newTestServer(t, nil)

	body, contentType := multipartUpload(t, "log.txt", []byte("A journaled upload with enough text."))
	req := httptest.NewRequest("POST", "/api/extract", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}

	// Close flushes the async buffer.
	jnl.Close()

	entries, err := jnl.Recent(req.Context(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("journal entries = %d, want 1", len(entries))
	}
	if entries[0].Path != "log.txt" || entries[0].Format != "txt" {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestFormats(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest("GET", "/api/formats", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Formats []string `json:"formats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Formats) != 9 {
		t.Errorf("formats = %v, want 9 entries", resp.Formats)
	}
}

func TestJournalRecentEndpoint(t *testing.T) {
	srv, jnl := newTestServer(t, nil)
	jnl.RecordAsync(&journal.Entry{Path: "a.txt", Format: "txt", Usable: true})
	jnl.Close()

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest("GET", "/api/journal/recent?limit=5", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var entries []journal.Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Path != "a.txt" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestBasicAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("sesame"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	cfg.Auth = AuthConfig{Enabled: true, Username: "ops", PasswordHash: string(hash)}
	srv, _ := newTestServer(t, cfg)
	router := srv.Routes()

	// Health stays open.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != 200 {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}

	// No credentials.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/formats", nil))
	if rec.Code != 401 {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	// Wrong password.
	req := httptest.NewRequest("GET", "/api/formats", nil)
	req.SetBasicAuth("ops", "wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != 401 {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	// Valid credentials.
	req = httptest.NewRequest("GET", "/api/formats", nil)
	req.SetBasicAuth("ops", "sesame")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	cfg.MaxFileMB = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero max_file_mb")
	}

	cfg = DefaultConfig()
	cfg.Auth.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for auth without credentials")
	}
}
