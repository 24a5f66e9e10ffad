package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"tunevision/internal/config"
	"tunevision/internal/runs"
	"tunevision/internal/services"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	// DefaultListLimit bounds List when the caller passes a non-positive limit.
	DefaultListLimit = 20
)

// ErrNotFound is returned when no ledger row matches.
var ErrNotFound = errors.New("run not found in history")

// Entry is one recorded engine execution.
type Entry struct {
	ID            string
	RunID         string
	PromptPath    string
	VideoPath     string
	VideoBase     string
	Status        runs.Status
	AbortedStage  string
	Failure       string
	ErrorKind     services.Kind
	Degraded      bool
	CorrelationID string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Duration is zero while the run is still open.
func (e Entry) Duration() time.Duration {
	if e.FinishedAt.IsZero() || e.StartedAt.IsZero() {
		return 0
	}
	return e.FinishedAt.Sub(e.StartedAt)
}

// Store is the SQLite-backed ledger.
type Store struct {
	db   *sql.DB
	path string

	mu   sync.Mutex
	open map[*runs.Run]string
}

// Open creates or connects to the ledger at cfg.HistoryPath().
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.HistoryPath())
}

// OpenPath opens the ledger at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	// Pragmas in the DSN apply to every pooled connection, not just the first.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite db %s: %w", dbPath, err)
	}

	store := &Store{db: db, path: dbPath, open: make(map[*runs.Run]string)}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// RunStarted inserts an open row for run.
func (s *Store) RunStarted(ctx context.Context, run *runs.Run) error {
	id := uuid.NewString()
	correlationID, _ := services.RequestIDFromContext(ctx)
	started := run.StartedAt
	if started.IsZero() {
		started = time.Now().UTC()
	}
	err := s.execWithRetry(ctx,
		`INSERT INTO runs (id, run_id, prompt_path, video_path, video_base, status, degraded, correlation_id, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		id, run.ID, run.PromptPath, run.VideoPath, run.VideoBase, string(runs.StatusRunning),
		nullableString(correlationID), formatTime(started),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	s.mu.Lock()
	s.open[run] = id
	s.mu.Unlock()
	return nil
}

// RunFinished closes the row opened by RunStarted. A run that was never
// started in this store gets a complete row of its own.
func (s *Store) RunFinished(ctx context.Context, run *runs.Run, kind services.Kind) error {
	s.mu.Lock()
	id, ok := s.open[run]
	delete(s.open, run)
	s.mu.Unlock()

	if !ok {
		if err := s.RunStarted(ctx, run); err != nil {
			return err
		}
		s.mu.Lock()
		id = s.open[run]
		delete(s.open, run)
		s.mu.Unlock()
	}

	finished := run.FinishedAt
	if finished.IsZero() {
		finished = time.Now().UTC()
	}
	errorKind := ""
	if run.Status != runs.StatusDone && kind != services.KindNone {
		errorKind = string(kind)
	}
	err := s.execWithRetry(ctx,
		`UPDATE runs SET status = ?, aborted_stage = ?, failure = ?, error_kind = ?, degraded = ?, finished_at = ?
		 WHERE id = ?`,
		string(run.Status), nullableString(run.AbortedStage), nullableString(run.Failure),
		nullableString(errorKind), boolToInt(run.Degraded), formatTime(finished), id,
	)
	if err != nil {
		return fmt.Errorf("close run %s: %w", run.ID, err)
	}
	return nil
}

// List returns the most recent entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM runs ORDER BY started_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Latest returns the newest entry recorded for runID.
func (s *Store) Latest(ctx context.Context, runID string) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM runs WHERE run_id = ? ORDER BY started_at DESC, id DESC LIMIT 1", runID)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("load run %s: %w", runID, err)
	}
	return entry, nil
}

const entryColumns = "id, run_id, prompt_path, video_path, video_base, status, aborted_stage, failure, error_kind, degraded, correlation_id, started_at, finished_at"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var (
		entry         Entry
		status        string
		abortedStage  sql.NullString
		failure       sql.NullString
		errorKind     sql.NullString
		degraded      int
		correlationID sql.NullString
		startedRaw    string
		finishedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&entry.ID,
		&entry.RunID,
		&entry.PromptPath,
		&entry.VideoPath,
		&entry.VideoBase,
		&status,
		&abortedStage,
		&failure,
		&errorKind,
		&degraded,
		&correlationID,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return Entry{}, err
	}
	entry.Status = runs.Status(status)
	entry.AbortedStage = abortedStage.String
	entry.Failure = failure.String
	entry.ErrorKind = services.Kind(errorKind.String)
	entry.Degraded = degraded != 0
	entry.CorrelationID = correlationID.String
	if t, err := time.Parse(time.RFC3339Nano, startedRaw); err == nil {
		entry.StartedAt = t
	}
	if finishedRaw.Valid {
		if t, err := time.Parse(time.RFC3339Nano, finishedRaw.String); err == nil {
			entry.FinishedAt = t
		}
	}
	return entry, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := range busyRetryAttempts {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, busyRetryMaxBackoff)
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
