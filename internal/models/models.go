package models

import (
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical date form used in observations ("Due: 2025-01-10").
const DateLayout = "2006-01-02"

// MarkerSessionCompleted is appended to a session's record list when the
// assembly stage has been applied to the graph.
const MarkerSessionCompleted = "session_completed"

// Entity represents a node in the knowledge graph.
type Entity struct {
	Name         string   `json:"name"`
	EntityType   string   `json:"entityType"`
	Observations []string `json:"observations"`

	// Facets holds the typed fields parsed from "Key: value" observations.
	// Derived at the store boundary, never persisted.
	Facets Facets `json:"-"`
}

// Clone returns a deep copy of the entity.
func (e Entity) Clone() Entity {
	c := e
	c.Observations = append([]string(nil), e.Observations...)
	return c
}

// Relation represents a directed, typed edge between two entities.
type Relation struct {
	From         string `json:"from"`
	To           string `json:"to"`
	RelationType string `json:"relationType"`
}

// KnowledgeGraph is the whole persisted graph: the unit of storage and the
// shape returned by read, search, and open operations.
type KnowledgeGraph struct {
	Entities  []Entity   `json:"entities"`
	Relations []Relation `json:"relations"`
}

// Clone returns a deep copy of the graph.
func (g KnowledgeGraph) Clone() KnowledgeGraph {
	c := KnowledgeGraph{
		Entities:  make([]Entity, len(g.Entities)),
		Relations: append([]Relation(nil), g.Relations...),
	}
	for i, e := range g.Entities {
		c.Entities[i] = e.Clone()
	}
	return c
}

// Facets are the optional typed fields an entity's observations may carry.
// A zero value means the observation list has no line for that key.
type Facets struct {
	Status       string
	Due          *time.Time
	Date         *time.Time
	Points       *float64
	Code         string
	Schedule     string
	Instructions string
	Description  string
	Location     string
	LastStudied  *time.Time
	Updated      *time.Time
}

// ParseFacets extracts typed fields from an observation list. Keys match
// case-insensitively and tolerate underscore/space variants ("last_studied"
// and "Last studied" are the same key); the first occurrence of a key wins;
// unparsable values leave the facet unset.
func ParseFacets(observations []string) Facets {
	var f Facets
	seen := make(map[string]bool)

	for _, obs := range observations {
		key, value, ok := SplitObservation(obs)
		if !ok || seen[key] {
			continue
		}
		seen[key] = true

		switch key {
		case "status":
			f.Status = strings.ToLower(value)
		case "due":
			f.Due = parseDatePtr(value)
		case "date":
			f.Date = parseDatePtr(value)
		case "points":
			if p, err := strconv.ParseFloat(value, 64); err == nil {
				f.Points = &p
			}
		case "code":
			f.Code = value
		case "schedule":
			f.Schedule = value
		case "instructions":
			f.Instructions = value
		case "description":
			f.Description = value
		case "location":
			f.Location = value
		case "last studied":
			f.LastStudied = parseDatePtr(value)
		case "updated":
			f.Updated = parseDatePtr(value)
		}
	}
	return f
}

// SplitObservation splits an observation of the form "Key: value" into a
// normalized lowercase key and a trimmed value. ok is false when the line
// has no colon or an empty key.
func SplitObservation(obs string) (key, value string, ok bool) {
	idx := strings.Index(obs, ":")
	if idx <= 0 {
		return "", "", false
	}
	key = normalizeKey(obs[:idx])
	if key == "" {
		return "", "", false
	}
	return key, strings.TrimSpace(obs[idx+1:]), true
}

// ObservationHasKey reports whether the observation carries the given key
// ("Status" matches "status: done", "STATUS:x", etc.).
func ObservationHasKey(obs, key string) bool {
	k, _, ok := SplitObservation(obs)
	return ok && k == normalizeKey(key)
}

// FormatObservation renders the canonical "Key: value" form.
func FormatObservation(key, value string) string {
	return key + ": " + value
}

func normalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.ReplaceAll(key, "_", " ")
	return strings.Join(strings.Fields(key), " ")
}

var dateLayouts = []string{DateLayout, "2006-01-02 15:04", time.RFC3339}

// ParseDate parses an observation date value. Accepted layouts: 2006-01-02,
// 2006-01-02 15:04, RFC 3339. All times are UTC.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseDatePtr(value string) *time.Time {
	if t, ok := ParseDate(value); ok {
		return &t
	}
	return nil
}

// StageRecord is one entry in a session's record list: either a workflow
// stage result or a lifecycle marker.
type StageRecord struct {
	Stage       string     `json:"stage,omitempty"`
	StageNumber int        `json:"stageNumber,omitempty"`
	Analysis    string     `json:"analysis,omitempty"`
	StageData   *StageData `json:"stageData,omitempty"`
	Completed   bool       `json:"completed,omitempty"`
	Marker      string     `json:"marker,omitempty"`
	RecordedAt  string     `json:"recordedAt"`
}

// StageData is the typed payload of a workflow stage. Each stage uses its own
// subset of fields; the rest stay empty.
type StageData struct {
	Summary           string              `json:"summary,omitempty"`
	DurationMinutes   int                 `json:"durationMinutes,omitempty"`
	Course            string              `json:"course,omitempty"`
	ConceptsLearned   []string            `json:"conceptsLearned,omitempty"`
	AssignmentUpdates []AssignmentUpdate  `json:"assignmentUpdates,omitempty"`
	NewConcepts       []ConceptDefinition `json:"newConcepts,omitempty"`
	CourseStatus      string              `json:"courseStatus,omitempty"`
	CourseObservation string              `json:"courseObservation,omitempty"`
}

// AssignmentUpdate reports a new status for one assignment.
type AssignmentUpdate struct {
	Assignment string `json:"assignment"`
	Status     string `json:"status"`
}

// ConceptDefinition describes a brand-new concept to add to the graph.
type ConceptDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
