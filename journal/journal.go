// Package journal persists extraction records to SQLite asynchronously.
//
// Every document that passes through the pipeline gets one journal entry:
// what file, what format, which recovery strategy or conversion tool ran,
// how long it took, and whether the quality filter judged the result
// usable. Writes are buffered and batched so the extraction path never
// blocks on the database.
//
//	db, _ := sql.Open("sqlite", "journal.db")
//	j := journal.New(db)
//	j.Init()
//	defer j.Close()
//
//	j.RecordAsync(&journal.Entry{Path: path, Format: "xlsx", ...})
package journal

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Schema for the extractions table. Call Journal.Init() or apply manually.
const Schema = `
CREATE TABLE IF NOT EXISTS extractions (
	id TEXT PRIMARY KEY,
	path TEXT NOT NULL,
	format TEXT NOT NULL,
	strategy TEXT,
	tool TEXT,
	duration_us INTEGER NOT NULL,
	usable INTEGER NOT NULL,
	error TEXT,
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_extractions_ts ON extractions(timestamp);
CREATE INDEX IF NOT EXISTS idx_extractions_format ON extractions(format);
`

// Entry is a single extraction record.
type Entry struct {
	ID         string `json:"id"`
	Path       string `json:"path"`
	Format     string `json:"format"`
	Strategy   string `json:"strategy,omitempty"` // byte-scan strategy, if any
	Tool       string `json:"tool,omitempty"`     // conversion tool, if any
	DurationUs int64  `json:"duration_us"`
	Usable     bool   `json:"usable"`
	Error      string `json:"error,omitempty"`
	Timestamp  int64  `json:"timestamp"` // unix microseconds
}

// Journal persists extraction entries to a SQLite table asynchronously.
type Journal struct {
	db   *sql.DB
	ch   chan *Entry
	done chan struct{}
	once sync.Once
}

// New creates a journal backed by the given database connection.
func New(db *sql.DB) *Journal {
	j := &Journal{
		db:   db,
		ch:   make(chan *Entry, 1024),
		done: make(chan struct{}),
	}
	go j.flushLoop()
	return j
}

// Init creates the extractions table if it doesn't exist.
func (j *Journal) Init() error {
	_, err := j.db.Exec(Schema)
	return err
}

// RecordAsync queues an entry for async persistence. Non-blocking; drops if
// the buffer is full. A missing ID or Timestamp is filled in.
func (j *Journal) RecordAsync(e *Entry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMicro()
	}
	select {
	case j.ch <- e:
	default:
		// buffer full — drop silently to avoid backpressure on extraction
	}
}

// Close drains the buffer and stops the flush goroutine.
func (j *Journal) Close() error {
	j.once.Do(func() {
		close(j.ch)
		<-j.done
	})
	return nil
}

// Recent returns the most recent entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `SELECT id, path, format, strategy, tool, duration_us, usable, error, timestamp
		FROM extractions ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var strategy, tool, errText sql.NullString
		var usable int
		if err := rows.Scan(&e.ID, &e.Path, &e.Format, &strategy, &tool, &e.DurationUs, &usable, &errText, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Strategy = strategy.String
		e.Tool = tool.String
		e.Error = errText.String
		e.Usable = usable != 0
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (j *Journal) flushLoop() {
	defer close(j.done)

	batch := make([]*Entry, 0, 64)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-j.ch:
			if !ok {
				j.flushBatch(batch)
				return
			}
			batch = append(batch, e)
			if len(batch) >= 64 {
				j.flushBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				j.flushBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

func (j *Journal) flushBatch(batch []*Entry) {
	if len(batch) == 0 {
		return
	}

	tx, err := j.db.Begin()
	if err != nil {
		slog.Error("journal: begin tx", "error", err)
		return
	}

	stmt, err := tx.Prepare(`INSERT INTO extractions (id, path, format, strategy, tool, duration_us, usable, error, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		slog.Error("journal: prepare", "error", err)
		return
	}
	defer stmt.Close()

	for _, e := range batch {
		usable := 0
		if e.Usable {
			usable = 1
		}
		if _, err := stmt.Exec(e.ID, e.Path, e.Format, e.Strategy, e.Tool, e.DurationUs, usable, e.Error, e.Timestamp); err != nil {
			slog.Error("journal: insert", "error", err)
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("journal: commit", "error", err)
	}
}
