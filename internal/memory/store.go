// Package memory is the semantic memory of past command attempts.
//
// Records are appended to a SQLite database, split into chunks, embedded
// and indexed. Queries rank indexed entries by cosine distance to the
// intent and return the closest command-history records.
package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/shellagent/internal/extract"
	"github.com/harrison/shellagent/internal/filelock"
	"github.com/harrison/shellagent/internal/models"
	"github.com/harrison/shellagent/internal/similarity"
)

// InMemory opens a private in-memory store, mostly for tests.
const InMemory = ":memory:"

// DBFileName is the database file created inside the memory directory.
const DBFileName = "memory.db"

// ErrStoreFault marks failures of the backing database that cannot be
// degraded to an empty answer.
var ErrStoreFault = errors.New("memory store fault")

// Logger receives store diagnostics.
type Logger interface {
	LogDebug(message string)
	LogWarn(message string)
}

// Options configures Open.
type Options struct {
	// Dir holds memory.db; created when missing. InMemory skips the disk.
	Dir          string
	Embedder     similarity.Embedder
	Logger       Logger
	ChunkSize    int
	ChunkOverlap int
}

// Store is safe for concurrent use.
type Store struct {
	db       *sql.DB
	dbPath   string
	embedder similarity.Embedder
	logger   Logger
	chunker  Chunker

	mu   sync.Mutex
	lock *filelock.FileLock
}

// Open creates or opens the store described by opts.
func Open(ctx context.Context, opts Options) (*Store, error) {
	dbPath := InMemory
	if opts.Dir != InMemory {
		if opts.Dir == "" {
			return nil, fmt.Errorf("memory directory is required")
		}
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, fmt.Errorf("create memory directory: %w", err)
		}
		dbPath = filepath.Join(opts.Dir, DBFileName)
	}

	dsn := dbPath
	if dbPath != InMemory {
		// Applies to every pooled connection, not only the first.
		dsn = dbPath + "?_busy_timeout=5000&_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == InMemory {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	// busy_timeout must come first so later statements wait on locks.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(ctx, db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	s := newStore(db, opts)
	s.dbPath = dbPath
	if dbPath != InMemory {
		s.lock = filelock.NewFileLock(dbPath + ".lock")
	}

	if err := s.ApplyMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// newStore wraps an already-open database.
func newStore(db *sql.DB, opts Options) *Store {
	emb := opts.Embedder
	if emb == nil {
		emb = similarity.NewHashEmbedder(0)
	}
	return &Store{
		db:       db,
		embedder: emb,
		logger:   opts.Logger,
		chunker:  NewChunker(opts.ChunkSize, opts.ChunkOverlap),
	}
}

// execWithRetry retries a statement with exponential backoff while the
// database reports it is locked.
func execWithRetry(ctx context.Context, db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.ExecContext(ctx, stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.dbPath
}

// entryMetadata is the schema of entries.metadata.
type entryMetadata struct {
	Type     string `json:"type"`
	Intent   string `json:"intent,omitempty"`
	Command  string `json:"command,omitempty"`
	Success  *bool  `json:"success,omitempty"`
	RecordID int64  `json:"record_id,omitempty"`
	Source   string `json:"source,omitempty"`
}

type pendingEntry struct {
	chunk     string
	embedding string
}

// embedChunks splits and embeds a document outside of any lock.
func (s *Store) embedChunks(ctx context.Context, doc string) ([]pendingEntry, error) {
	chunks := s.chunker.Split(doc)
	out := make([]pendingEntry, 0, len(chunks))
	for i, chunk := range chunks {
		vec, err := s.embedder.Embed(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("embed chunk %d: %w", i, err)
		}
		data, err := json.Marshal(vec)
		if err != nil {
			return nil, fmt.Errorf("marshal embedding: %w", err)
		}
		out = append(out, pendingEntry{chunk: chunk, embedding: string(data)})
	}
	return out, nil
}

// withWriteLock serializes writers in this process and across processes
// sharing the same directory.
func (s *Store) withWriteLock(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lock == nil {
		return fn()
	}
	return s.lock.WithLock(ctx, fn)
}

// Persist appends rec to the history and indexes it. Identical records are
// stored again; the history is an append log.
func (s *Store) Persist(ctx context.Context, rec models.CommandRecord) error {
	doc := extract.Format(rec.Intent, rec.Command, rec.Success, rec.Output)
	pending, err := s.embedChunks(ctx, doc)
	if err != nil {
		return fmt.Errorf("persist record: %w", err)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return s.withWriteLock(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("%w: begin transaction: %w", ErrStoreFault, err)
		}
		defer tx.Rollback()

		res, err := tx.ExecContext(ctx,
			`INSERT INTO records (intent, command, output, success, created_at) VALUES (?, ?, ?, ?, ?)`,
			rec.Intent, rec.Command, rec.Output, rec.Success, createdAt)
		if err != nil {
			return fmt.Errorf("%w: insert record: %w", ErrStoreFault, err)
		}
		recordID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("%w: get record id: %w", ErrStoreFault, err)
		}

		success := rec.Success
		meta, err := json.Marshal(entryMetadata{
			Type:     models.HistoryType,
			Intent:   rec.Intent,
			Command:  rec.Command,
			Success:  &success,
			RecordID: recordID,
		})
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}

		if err := s.insertEntries(ctx, tx, sql.NullInt64{Int64: recordID, Valid: true}, models.HistoryType, string(meta), pending); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("%w: commit: %w", ErrStoreFault, err)
		}
		s.debug(fmt.Sprintf("persisted record %d (%d chunks) for %q", recordID, len(pending), rec.Intent))
		return nil
	})
}

// AddDocument indexes arbitrary text under docType. Entries that are not
// of models.HistoryType never appear in Query results.
func (s *Store) AddDocument(ctx context.Context, docType, text string) error {
	if docType == "" {
		return fmt.Errorf("document type is required")
	}
	pending, err := s.embedChunks(ctx, text)
	if err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	meta, err := json.Marshal(entryMetadata{Type: docType, Source: "document"})
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	return s.withWriteLock(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("%w: begin transaction: %w", ErrStoreFault, err)
		}
		defer tx.Rollback()

		if err := s.insertEntries(ctx, tx, sql.NullInt64{}, docType, string(meta), pending); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("%w: commit: %w", ErrStoreFault, err)
		}
		return nil
	})
}

func (s *Store) insertEntries(ctx context.Context, tx *sql.Tx, recordID sql.NullInt64, docType, meta string, pending []pendingEntry) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries (record_id, type, chunk_index, content, embedding, metadata, embedder) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare entry insert: %w", ErrStoreFault, err)
	}
	defer stmt.Close()

	for i, p := range pending {
		if _, err := stmt.ExecContext(ctx, recordID, docType, i, p.chunk, p.embedding, meta, s.embedder.Name()); err != nil {
			return fmt.Errorf("%w: insert entry: %w", ErrStoreFault, err)
		}
	}
	return nil
}

func (s *Store) debug(msg string) {
	if s.logger != nil {
		s.logger.LogDebug(msg)
	}
}

func (s *Store) warn(msg string) {
	if s.logger != nil {
		s.logger.LogWarn(msg)
	}
}
