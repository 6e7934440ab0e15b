// Package session drives the staged end-of-session workflow: stage events are
// recorded in a fixed sequence, revisions splice earlier records in place, and
// a finished session is reduced into graph mutations.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wagnerlima/studygraph/internal/models"
	"github.com/wagnerlima/studygraph/internal/schema"
	"github.com/wagnerlima/studygraph/internal/storage"
)

// Stage names, in workflow order.
const (
	StageSummary           = "summary"
	StageConceptsLearned   = "conceptsLearned"
	StageAssignmentUpdates = "assignmentUpdates"
	StageNewConcepts       = "newConcepts"
	StageCourseStatus      = "courseStatus"
	StageAssembly          = "assembly"
)

// Stages is the declared stage sequence.
var Stages = []string{
	StageSummary,
	StageConceptsLearned,
	StageAssignmentUpdates,
	StageNewConcepts,
	StageCourseStatus,
	StageAssembly,
}

var (
	// ErrUnknownStage rejects stage names outside the declared sequence.
	ErrUnknownStage = errors.New("session: unknown stage")

	// ErrOutOfSequence rejects stage calls that skip ahead, repeat a stage,
	// or carry the wrong stage number.
	ErrOutOfSequence = errors.New("session: stage out of sequence")

	// ErrBadRevision rejects revisions that do not target an already
	// recorded stage of the same name.
	ErrBadRevision = errors.New("session: invalid revision target")
)

// Workflow sequences session stages and applies finished sessions to the
// graph store.
type Workflow struct {
	graph    *storage.GraphStore
	sessions *storage.SessionStore
	vocab    *schema.Vocabulary
	log      *zap.Logger
	now      func() time.Time
}

// New builds a Workflow over the given stores and vocabulary.
func New(graph *storage.GraphStore, sessions *storage.SessionStore, vocab *schema.Vocabulary, log *zap.Logger) *Workflow {
	return &Workflow{
		graph:    graph,
		sessions: sessions,
		vocab:    vocab,
		log:      log,
		now:      time.Now,
	}
}

// Start creates a new empty session and returns its generated id.
func (w *Workflow) Start() (string, error) {
	id := uuid.NewString()
	if err := w.sessions.Create(id); err != nil {
		return "", err
	}
	w.log.Info("session started", zap.String("session_id", id))
	return id, nil
}

// StageInput is one end-session step as received from the client. TotalStages
// is advisory; the workflow owns the sequence.
type StageInput struct {
	SessionID       string
	Stage           string
	StageNumber     int
	TotalStages     int
	Analysis        string
	NextStageNeeded bool
	IsRevision      bool
	RevisesStage    int
	StageData       *models.StageData
}

// StageResult reports an accepted stage call. Applied is set only when the
// assembly stage finished the session.
type StageResult struct {
	SessionID      string         `json:"sessionId"`
	Stage          string         `json:"stage"`
	StageNumber    int            `json:"stageNumber"`
	Completed      bool           `json:"completed"`
	StagesRecorded int            `json:"stagesRecorded"`
	Applied        *AppliedReport `json:"applied,omitempty"`
}

// RecordStage validates one stage call against the declared sequence, records
// it, and on a finished assembly stage reduces the session into graph
// mutations.
func (w *Workflow) RecordStage(in StageInput) (*StageResult, error) {
	if !knownStage(in.Stage) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStage, in.Stage)
	}

	// Assembly demands a live session; any earlier stage tolerates a lost
	// id by starting the session over.
	if !w.sessions.Exists(in.SessionID) {
		if in.Stage == StageAssembly {
			return nil, fmt.Errorf("%w: %q", storage.ErrSessionNotFound, in.SessionID)
		}
		if err := w.sessions.Create(in.SessionID); err != nil {
			return nil, err
		}
		w.log.Warn("unknown session, starting over", zap.String("session_id", in.SessionID))
	}

	recorded, err := w.stageRecords(in.SessionID)
	if err != nil {
		return nil, err
	}

	record := models.StageRecord{
		Stage:       in.Stage,
		StageNumber: in.StageNumber,
		Analysis:    in.Analysis,
		StageData:   in.StageData,
		Completed:   !in.NextStageNeeded,
		RecordedAt:  w.now().UTC().Format(time.RFC3339),
	}

	count := len(recorded)
	if in.IsRevision {
		k := in.RevisesStage
		if k < 1 || k > len(recorded) || recorded[k-1].Stage != in.Stage {
			return nil, fmt.Errorf("%w: stage %q as step %d", ErrBadRevision, in.Stage, k)
		}
		record.StageNumber = k
		if err := w.sessions.Splice(in.SessionID, k-1, record); err != nil {
			return nil, err
		}
	} else {
		next := len(recorded)
		if next >= len(Stages) || Stages[next] != in.Stage {
			return nil, fmt.Errorf("%w: got %q, expected %q", ErrOutOfSequence, in.Stage, expectedStage(next))
		}
		if in.StageNumber != next+1 {
			return nil, fmt.Errorf("%w: stage number %d, expected %d", ErrOutOfSequence, in.StageNumber, next+1)
		}
		if _, err := w.sessions.Append(in.SessionID, record); err != nil {
			return nil, err
		}
		count = next + 1
	}

	result := &StageResult{
		SessionID:      in.SessionID,
		Stage:          record.Stage,
		StageNumber:    record.StageNumber,
		Completed:      record.Completed,
		StagesRecorded: count,
	}
	w.log.Info("stage recorded",
		zap.String("session_id", in.SessionID),
		zap.String("stage", record.Stage),
		zap.Int("stage_number", record.StageNumber),
		zap.Bool("completed", record.Completed))

	if in.Stage == StageAssembly && !in.NextStageNeeded {
		recorded, err := w.stageRecords(in.SessionID)
		if err != nil {
			return nil, err
		}
		applied, err := w.assemble(in.SessionID, recorded)
		result.Applied = applied
		if err != nil {
			return result, err
		}
	}
	return result, nil
}

// stageRecords returns the session's stage records, markers excluded.
func (w *Workflow) stageRecords(id string) ([]models.StageRecord, error) {
	records, err := w.sessions.Records(id)
	if err != nil {
		return nil, err
	}
	stages := make([]models.StageRecord, 0, len(records))
	for _, r := range records {
		if r.Marker == "" {
			stages = append(stages, r)
		}
	}
	return stages, nil
}

func knownStage(stage string) bool {
	for _, s := range Stages {
		if s == stage {
			return true
		}
	}
	return false
}

func expectedStage(next int) string {
	if next >= len(Stages) {
		return "nothing (all stages recorded)"
	}
	return Stages[next]
}
