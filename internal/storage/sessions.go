package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/wagnerlima/studygraph/internal/models"
)

var ErrSessionNotFound = errors.New("sessions: session not found")

// SessionStore is the single writer for the session-state document: a mapping
// from session id to that session's ordered record list. Same discipline as
// the graph store: load once, mutate in memory, rewrite the whole document.
type SessionStore struct {
	mu       sync.Mutex
	path     string
	log      *zap.Logger
	sessions map[string][]models.StageRecord
}

// SessionSummary is the condensed view of one session used by the
// start-session briefing.
type SessionSummary struct {
	ID             string `json:"id"`
	Summary        string `json:"summary,omitempty"`
	Stages         int    `json:"stages"`
	Completed      bool   `json:"completed"`
	LastRecordedAt string `json:"lastRecordedAt,omitempty"`
}

// OpenSessions opens (or creates) the session-state document at path.
func OpenSessions(path string, log *zap.Logger) (*SessionStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}

	s := &SessionStore{
		path:     path,
		log:      log,
		sessions: make(map[string][]models.StageRecord),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Info("session document not found, starting empty", zap.String("path", path))
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session document: %w", err)
	}
	if err := json.Unmarshal(data, &s.sessions); err != nil {
		return nil, fmt.Errorf("parse session document: %w", err)
	}
	if s.sessions == nil {
		s.sessions = make(map[string][]models.StageRecord)
	}

	log.Info("session document loaded",
		zap.String("path", path),
		zap.Int("sessions", len(s.sessions)))
	return s, nil
}

// Path returns the location of the session document.
func (s *SessionStore) Path() string {
	return s.path
}

// Create registers an empty session. Creating an id that already exists is a
// no-op.
func (s *SessionStore) Create(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; ok {
		return nil
	}
	s.sessions[id] = []models.StageRecord{}
	return s.persist()
}

// Exists reports whether the session id is known.
func (s *SessionStore) Exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	return ok
}

// Records returns a copy of the session's record list.
func (s *SessionStore) Records(id string) ([]models.StageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	return append([]models.StageRecord(nil), records...), nil
}

// Append adds a record to the session, creating the session if it is unknown.
// Returns the new record count.
func (s *SessionStore) Append(id string, record models.StageRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[id] = append(s.sessions[id], record)
	if err := s.persist(); err != nil {
		return 0, err
	}
	return len(s.sessions[id]), nil
}

// Splice replaces the record at index (0-based) in place.
func (s *SessionStore) Splice(id string, index int, record models.StageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	if index < 0 || index >= len(records) {
		return fmt.Errorf("sessions: record index %d out of range for %q", index, id)
	}
	records[index] = record
	return s.persist()
}

// Recent returns up to n session summaries ordered by most recent record
// first. Sessions with no records sort last.
func (s *SessionStore) Recent(n int) []SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summaries := make([]SessionSummary, 0, len(s.sessions))
	for id, records := range s.sessions {
		sum := SessionSummary{ID: id}
		for _, r := range records {
			if r.Marker != "" {
				if r.Marker == models.MarkerSessionCompleted {
					sum.Completed = true
				}
			} else {
				sum.Stages++
			}
			if r.RecordedAt > sum.LastRecordedAt {
				sum.LastRecordedAt = r.RecordedAt
			}
			if sum.Summary == "" && r.StageData != nil && r.StageData.Summary != "" {
				sum.Summary = r.StageData.Summary
			}
		}
		summaries = append(summaries, sum)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastRecordedAt > summaries[j].LastRecordedAt
	})
	if len(summaries) > n {
		summaries = summaries[:n]
	}
	return summaries
}

func (s *SessionStore) persist() error {
	data, err := json.MarshalIndent(s.sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session document: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write session document: %w", err)
	}
	s.log.Debug("session document persisted", zap.Int("sessions", len(s.sessions)))
	return nil
}
