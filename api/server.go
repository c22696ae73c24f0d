// Package api exposes the document pipeline over HTTP: multipart upload
// extraction, format detection, and the extraction journal.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hazyhaar/docsift/docpipe"
	"github.com/hazyhaar/docsift/journal"
)

// Server wires the extraction pipeline and the journal behind a chi router.
type Server struct {
	cfg     *Config
	pipe    *docpipe.Pipeline
	journal *journal.Journal
	logger  *slog.Logger
}

// NewServer creates an API server. journal may be nil to disable recording.
func NewServer(cfg *Config, pipe *docpipe.Pipeline, jnl *journal.Journal, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, pipe: pipe, journal: jnl, logger: logger}
}

// Routes builds the HTTP router.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		if s.cfg.Auth.Enabled {
			r.Use(s.requireBasicAuth)
		}

		r.Post("/api/extract", s.handleExtract)
		r.Get("/api/formats", s.handleFormats)
		r.Get("/api/journal/recent", s.handleJournalRecent)
	})

	return r
}

// requireBasicAuth checks HTTP basic credentials against the configured
// bcrypt hash.
func (s *Server) requireBasicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(s.cfg.Auth.Username)) != 1 ||
			bcrypt.CompareHashAndPassword([]byte(s.cfg.Auth.PasswordHash), []byte(pass)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="docsift"`)
			writeJSON(w, 401, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleExtract accepts a multipart upload, runs the pipeline on it and
// returns the extracted document as JSON. The upload keeps its original
// extension so format detection can use it as a hint.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.cfg.MaxFileBytes()); err != nil {
		writeError(w, 400, fmt.Errorf("parse upload: %w", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, 400, fmt.Errorf("missing file field: %w", err))
		return
	}
	defer file.Close()

	if header.Size > s.cfg.MaxFileBytes() {
		writeError(w, 413, fmt.Errorf("file too large: %d bytes (max %d)", header.Size, s.cfg.MaxFileBytes()))
		return
	}

	ext := filepath.Ext(header.Filename)
	tmpPath := filepath.Join(os.TempDir(), "docsift-"+uuid.NewString()+ext)
	tmp, err := os.Create(tmpPath)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		writeError(w, 500, fmt.Errorf("spool upload: %w", err))
		return
	}
	tmp.Close()

	start := time.Now()
	doc, err := s.pipe.Extract(r.Context(), tmpPath)
	s.record(header.Filename, doc, err, time.Since(start))
	if err != nil {
		s.logger.Warn("extraction failed", "file", header.Filename, "error", err)
		writeError(w, extractStatus(err), err)
		return
	}

	// The spool path is an implementation detail; report the upload name.
	doc.Path = header.Filename
	writeJSON(w, 200, doc)
}

// extractStatus maps pipeline failures to HTTP status codes.
func extractStatus(err error) int {
	switch {
	case errors.Is(err, docpipe.ErrEmptyDocument):
		return 422
	case errors.Is(err, docpipe.ErrNoRecoverableText):
		return 422
	case errors.Is(err, docpipe.ErrMalformedContainer):
		return 400
	case errors.Is(err, docpipe.ErrConversionUnavailable):
		return 503
	default:
		return 500
	}
}

func (s *Server) record(name string, doc *docpipe.Document, extractErr error, elapsed time.Duration) {
	if s.journal == nil {
		return
	}
	e := &journal.Entry{
		Path:       name,
		DurationUs: elapsed.Microseconds(),
	}
	if doc != nil {
		e.Format = string(doc.Format)
		e.Strategy = doc.Strategy
		if doc.Quality != nil {
			e.Usable = doc.Quality.Usable
		} else {
			e.Usable = doc.RawText != ""
		}
	}
	if extractErr != nil {
		e.Error = extractErr.Error()
	}
	s.journal.RecordAsync(e)
}

func (s *Server) handleFormats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, 200, map[string]any{"formats": docpipe.SupportedFormats()})
}

func (s *Server) handleJournalRecent(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, 200, []any{})
		return
	}
	entries, err := s.journal.Recent(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, 500, err)
		return
	}
	if entries == nil {
		entries = []*journal.Entry{}
	}
	writeJSON(w, 200, entries)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
