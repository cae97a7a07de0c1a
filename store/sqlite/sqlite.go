// Package sqlite implements deepresearch.RunStore using pure-Go SQLite.
// Zero CGO required.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nevindra/deepresearch"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// StoreOption configures a SQLite Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store.
// When set, the store emits debug logs for every operation including
// timing, row counts, and key parameters. If not set, no logs are emitted.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// Store implements deepresearch.RunStore backed by a local SQLite file.
// Evidence chains and message histories are stored as JSON text.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ deepresearch.RunStore = (*Store)(nil)

// nopLogger is a logger that discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// New creates a Store using a local SQLite file at dbPath.
// It opens a single shared connection pool with SetMaxOpenConns(1) so that
// all goroutines serialize through one connection, eliminating SQLITE_BUSY
// errors caused by concurrent writers opening independent connections.
func New(dbPath string, opts ...StoreOption) *Store {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: nopLogger}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("sqlite: store opened", "path", dbPath)
	return s
}

// Init creates all required tables.
func (s *Store) Init(ctx context.Context) error {
	start := time.Now()
	s.logger.Debug("sqlite: init started")
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			question TEXT NOT NULL,
			content TEXT NOT NULL,
			termination TEXT NOT NULL,
			evidence TEXT NOT NULL,
			messages TEXT NOT NULL,
			llm_calls INTEGER NOT NULL,
			rounds INTEGER NOT NULL,
			input_tokens INTEGER NOT NULL,
			output_tokens INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at)`,
	}
	for _, ddl := range stmts {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			s.logger.Error("sqlite: init failed", "error", err, "duration", time.Since(start))
			return fmt.Errorf("create table: %w", err)
		}
	}
	s.logger.Debug("sqlite: init ok", "duration", time.Since(start))
	return nil
}

// SaveRun inserts rec, replacing any run with the same ID.
func (s *Store) SaveRun(ctx context.Context, rec deepresearch.RunRecord) error {
	start := time.Now()
	s.logger.Debug("sqlite: save run", "id", rec.ID, "termination", rec.Termination)

	evidence, messages, err := encodeRun(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs
		 (id, question, content, termination, evidence, messages, llm_calls, rounds, input_tokens, output_tokens, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Question, rec.Content, string(rec.Termination), evidence, messages,
		rec.LLMCallsUsed, rec.Rounds, rec.InputTokens, rec.OutputTokens, rec.DurationMs, rec.CreatedAt,
	)
	if err != nil {
		s.logger.Error("sqlite: save run failed", "id", rec.ID, "error", err, "duration", time.Since(start))
		return fmt.Errorf("save run: %w", err)
	}
	s.logger.Debug("sqlite: save run ok", "id", rec.ID, "duration", time.Since(start))
	return nil
}

// GetRun returns the run with the given ID, or deepresearch.ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (deepresearch.RunRecord, error) {
	start := time.Now()
	s.logger.Debug("sqlite: get run", "id", id)

	row := s.db.QueryRowContext(ctx,
		`SELECT id, question, content, termination, evidence, messages, llm_calls, rounds, input_tokens, output_tokens, duration_ms, created_at
		 FROM runs WHERE id = ?`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return deepresearch.RunRecord{}, deepresearch.ErrRunNotFound
	}
	if err != nil {
		s.logger.Error("sqlite: get run failed", "id", id, "error", err, "duration", time.Since(start))
		return deepresearch.RunRecord{}, fmt.Errorf("get run: %w", err)
	}
	s.logger.Debug("sqlite: get run ok", "id", id, "duration", time.Since(start))
	return rec, nil
}

// ListRuns returns up to limit runs, most recent first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]deepresearch.RunRecord, error) {
	start := time.Now()
	s.logger.Debug("sqlite: list runs", "limit", limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question, content, termination, evidence, messages, llm_calls, rounds, input_tokens, output_tokens, duration_ms, created_at
		 FROM runs
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`, limit)
	if err != nil {
		s.logger.Error("sqlite: list runs failed", "error", err, "duration", time.Since(start))
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []deepresearch.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, rec)
	}
	s.logger.Debug("sqlite: list runs ok", "count", len(runs), "duration", time.Since(start))
	return runs, rows.Err()
}

// DeleteRun removes a run. Deleting an unknown ID is not an error.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (deepresearch.RunRecord, error) {
	var rec deepresearch.RunRecord
	var termination, evidence, messages string
	err := row.Scan(&rec.ID, &rec.Question, &rec.Content, &termination, &evidence, &messages,
		&rec.LLMCallsUsed, &rec.Rounds, &rec.InputTokens, &rec.OutputTokens, &rec.DurationMs, &rec.CreatedAt)
	if err != nil {
		return deepresearch.RunRecord{}, err
	}
	rec.Termination = deepresearch.Termination(termination)
	if err := json.Unmarshal([]byte(evidence), &rec.EvidenceChains); err != nil {
		return deepresearch.RunRecord{}, fmt.Errorf("decode evidence: %w", err)
	}
	if err := json.Unmarshal([]byte(messages), &rec.Messages); err != nil {
		return deepresearch.RunRecord{}, fmt.Errorf("decode messages: %w", err)
	}
	return rec, nil
}

func encodeRun(rec deepresearch.RunRecord) (evidence, messages string, err error) {
	ev := rec.EvidenceChains
	if ev == nil {
		ev = []deepresearch.EvidenceRecord{}
	}
	msgs := rec.Messages
	if msgs == nil {
		msgs = []deepresearch.ChatMessage{}
	}
	evJSON, err := json.Marshal(ev)
	if err != nil {
		return "", "", fmt.Errorf("encode evidence: %w", err)
	}
	msgJSON, err := json.Marshal(msgs)
	if err != nil {
		return "", "", fmt.Errorf("encode messages: %w", err)
	}
	return string(evJSON), string(msgJSON), nil
}
