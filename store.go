package deepresearch

import (
	"context"
	"errors"
	"time"
)

// ErrRunNotFound is returned by RunStore.GetRun for an unknown ID.
var ErrRunNotFound = errors.New("run not found")

// RunStore persists finished runs.
type RunStore interface {
	SaveRun(ctx context.Context, rec RunRecord) error
	GetRun(ctx context.Context, id string) (RunRecord, error)
	// ListRuns returns the most recent runs first.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// RunRecord is the stored form of a run.
type RunRecord struct {
	ID             string
	Question       string
	Content        string
	Termination    Termination
	EvidenceChains []EvidenceRecord
	Messages       []ChatMessage
	LLMCallsUsed   int
	Rounds         int
	InputTokens    int
	OutputTokens   int
	DurationMs     int64
	CreatedAt      int64 // unix seconds
}

// NewRunRecord converts a Result into a RunRecord.
func NewRunRecord(question string, res Result, started time.Time) RunRecord {
	return RunRecord{
		ID:             res.RunID,
		Question:       question,
		Content:        res.Content,
		Termination:    res.Termination,
		EvidenceChains: res.EvidenceChains,
		Messages:       res.Messages,
		LLMCallsUsed:   res.LLMCallsUsed,
		Rounds:         res.Rounds,
		InputTokens:    res.Usage.InputTokens,
		OutputTokens:   res.Usage.OutputTokens,
		DurationMs:     res.Duration.Milliseconds(),
		CreatedAt:      started.Unix(),
	}
}
