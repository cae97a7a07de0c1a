// Package postgres implements deepresearch.RunStore using PostgreSQL.
// Evidence chains and message histories are stored as JSONB.
//
// Store accepts an externally-owned *pgxpool.Pool via constructor injection.
// The caller creates and closes the pool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nevindra/deepresearch"
)

// Store implements deepresearch.RunStore backed by PostgreSQL.
type Store struct {
	pool  *pgxpool.Pool
	table string
}

// Option configures a PostgreSQL Store.
type Option func(*Store)

// WithTable overrides the runs table name. Default: "research_runs".
func WithTable(name string) Option {
	return func(s *Store) { s.table = name }
}

var _ deepresearch.RunStore = (*Store)(nil)

// New creates a Store using an existing pgxpool.Pool.
// The caller owns the pool and is responsible for closing it.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{pool: pool, table: "research_runs"}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Init creates the runs table and its index.
// Safe to call multiple times (all statements are idempotent).
func (s *Store) Init(ctx context.Context) error {
	t := pgx.Identifier{s.table}.Sanitize()
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + t + ` (
			id TEXT PRIMARY KEY,
			question TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			termination TEXT NOT NULL,
			evidence JSONB NOT NULL DEFAULT '[]',
			messages JSONB NOT NULL DEFAULT '[]',
			llm_calls INTEGER NOT NULL,
			rounds INTEGER NOT NULL,
			input_tokens INTEGER NOT NULL,
			output_tokens INTEGER NOT NULL,
			duration_ms BIGINT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ` + pgx.Identifier{s.table + "_created_idx"}.Sanitize() +
			` ON ` + t + ` (created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: init: %w", err)
		}
	}
	return nil
}

// SaveRun upserts rec by ID.
func (s *Store) SaveRun(ctx context.Context, rec deepresearch.RunRecord) error {
	evidence, messages, err := encodeRun(rec)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+pgx.Identifier{s.table}.Sanitize()+`
		 (id, question, content, termination, evidence, messages, llm_calls, rounds, input_tokens, output_tokens, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO UPDATE SET
		   question = EXCLUDED.question,
		   content = EXCLUDED.content,
		   termination = EXCLUDED.termination,
		   evidence = EXCLUDED.evidence,
		   messages = EXCLUDED.messages,
		   llm_calls = EXCLUDED.llm_calls,
		   rounds = EXCLUDED.rounds,
		   input_tokens = EXCLUDED.input_tokens,
		   output_tokens = EXCLUDED.output_tokens,
		   duration_ms = EXCLUDED.duration_ms,
		   created_at = EXCLUDED.created_at`,
		rec.ID, rec.Question, rec.Content, string(rec.Termination), evidence, messages,
		rec.LLMCallsUsed, rec.Rounds, rec.InputTokens, rec.OutputTokens, rec.DurationMs, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: save run: %w", err)
	}
	return nil
}

// GetRun returns the run with the given ID, or deepresearch.ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (deepresearch.RunRecord, error) {
	row := s.pool.QueryRow(ctx, s.selectSQL()+` WHERE id = $1`, id)
	rec, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return deepresearch.RunRecord{}, deepresearch.ErrRunNotFound
	}
	if err != nil {
		return deepresearch.RunRecord{}, fmt.Errorf("postgres: get run: %w", err)
	}
	return rec, nil
}

// ListRuns returns up to limit runs, most recent first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]deepresearch.RunRecord, error) {
	rows, err := s.pool.Query(ctx, s.selectSQL()+` ORDER BY created_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list runs: %w", err)
	}
	defer rows.Close()

	var runs []deepresearch.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan run: %w", err)
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run. Deleting an unknown ID is not an error.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM `+pgx.Identifier{s.table}.Sanitize()+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete run: %w", err)
	}
	return nil
}

// Close is a no-op. The caller owns the pool and manages its lifecycle.
func (s *Store) Close() error {
	return nil
}

func (s *Store) selectSQL() string {
	return `SELECT id, question, content, termination, evidence, messages, llm_calls, rounds,
		input_tokens, output_tokens, duration_ms, created_at
		FROM ` + pgx.Identifier{s.table}.Sanitize()
}

func scanRun(row pgx.Row) (deepresearch.RunRecord, error) {
	var rec deepresearch.RunRecord
	var termination string
	var evidence, messages []byte
	err := row.Scan(&rec.ID, &rec.Question, &rec.Content, &termination, &evidence, &messages,
		&rec.LLMCallsUsed, &rec.Rounds, &rec.InputTokens, &rec.OutputTokens, &rec.DurationMs, &rec.CreatedAt)
	if err != nil {
		return deepresearch.RunRecord{}, err
	}
	rec.Termination = deepresearch.Termination(termination)
	if err := json.Unmarshal(evidence, &rec.EvidenceChains); err != nil {
		return deepresearch.RunRecord{}, fmt.Errorf("decode evidence: %w", err)
	}
	if err := json.Unmarshal(messages, &rec.Messages); err != nil {
		return deepresearch.RunRecord{}, fmt.Errorf("decode messages: %w", err)
	}
	return rec, nil
}

func encodeRun(rec deepresearch.RunRecord) (evidence, messages []byte, err error) {
	ev := rec.EvidenceChains
	if ev == nil {
		ev = []deepresearch.EvidenceRecord{}
	}
	msgs := rec.Messages
	if msgs == nil {
		msgs = []deepresearch.ChatMessage{}
	}
	if evidence, err = json.Marshal(ev); err != nil {
		return nil, nil, fmt.Errorf("encode evidence: %w", err)
	}
	if messages, err = json.Marshal(msgs); err != nil {
		return nil, nil, fmt.Errorf("encode messages: %w", err)
	}
	return evidence, messages, nil
}
