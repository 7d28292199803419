package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	StatusProcessing RunStatus = "processing"
	StatusCompleted  RunStatus = "completed"
	StatusFailed     RunStatus = "failed"
)

var ErrRunNotFound = errors.New("run not found")

// Run is one persisted extraction run.
type Run struct {
	ID          uuid.UUID
	Provider    string
	Model       string
	SourceText  string
	Status      RunStatus
	Attempts    int
	Error       string   // enhanced message on failure, "" otherwise
	NuggetTypes []string // distinct types found, for filtering
	CreatedAt   time.Time
}

// SavedNugget is one located nugget belonging to a run. Offsets are nil
// when boundary matching found no confident span.
type SavedNugget struct {
	ID           uuid.UUID
	RunID        uuid.UUID
	Index        int
	Type         string
	StartContent string
	EndContent   string
	Synthesis    string
	StartOffset  *int
	EndOffset    *int
	Confidence   *float64
}

// Store defines persistence contract; an external DB implementation can replace this.
type Store interface {
	CreateRun(ctx context.Context, providerID, model, sourceText string) (Run, error)
	GetRun(ctx context.Context, id uuid.UUID) (Run, error)
	CompleteRun(ctx context.Context, id uuid.UUID, attempts int, nuggets []SavedNugget) error
	FailRun(ctx context.Context, id uuid.UUID, attempts int, message string) error
	ListNuggets(ctx context.Context, runID uuid.UUID) ([]SavedNugget, error)
}
