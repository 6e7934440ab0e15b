package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Well-known entity types the query and workflow layers join on. The full
// vocabulary lives in Vocabulary and may be extended via a config file, but
// these twelve are always present in the defaults.
const (
	TypeCourse     = "course"
	TypeAssignment = "assignment"
	TypeExam       = "exam"
	TypeConcept    = "concept"
	TypeResource   = "resource"
	TypeNote       = "note"
	TypeLecture    = "lecture"
	TypeProject    = "project"
	TypeQuestion   = "question"
	TypeTerm       = "term"
	TypeGoal       = "goal"
	TypeProfessor  = "professor"
)

// Relation types. Directions read left to right: "assignment assigned_in course",
// "course part_of term", "resource helps_with assignment".
const (
	RelEnrolledIn      = "enrolled_in"
	RelAssignedIn      = "assigned_in"
	RelDueOn           = "due_on"
	RelCovers          = "covers"
	RelReferences      = "references"
	RelPrerequisiteFor = "prerequisite_for"
	RelTaughtBy        = "taught_by"
	RelScheduledFor    = "scheduled_for"
	RelContains        = "contains"
	RelRequires        = "requires"
	RelRelatedTo       = "related_to"
	RelCreatedFor      = "created_for"
	RelStudies         = "studies"
	RelHelpsWith       = "helps_with"
	RelSubmitted       = "submitted"
	RelPartOf          = "part_of"
	RelIncludedIn      = "included_in"
	RelFollows         = "follows"
	RelAttends         = "attends"
	RelGradedWith      = "graded_with"
)

// Status values used by the session workflow and progress derivations.
const (
	StatusActive     = "active"
	StatusPaused     = "paused"
	StatusCompleted  = "completed"
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
)

// Vocabulary is the immutable set of entity types, relation types, and status
// values the store validates against. It is built once at startup and handed
// to the store, query, and workflow layers; nothing mutates it afterward.
type Vocabulary struct {
	EntityTypes        []string `yaml:"entity_types"`
	RelationTypes      []string `yaml:"relation_types"`
	AssignmentStatuses []string `yaml:"assignment_statuses"`
	CourseStatuses     []string `yaml:"course_statuses"`
}

// Default returns the built-in vocabulary.
func Default() *Vocabulary {
	return &Vocabulary{
		EntityTypes: []string{
			TypeCourse, TypeAssignment, TypeExam, TypeConcept, TypeResource,
			TypeNote, TypeLecture, TypeProject, TypeQuestion, TypeTerm,
			TypeGoal, TypeProfessor,
		},
		RelationTypes: []string{
			RelEnrolledIn, RelAssignedIn, RelDueOn, RelCovers, RelReferences,
			RelPrerequisiteFor, RelTaughtBy, RelScheduledFor, RelContains,
			RelRequires, RelRelatedTo, RelCreatedFor, RelStudies, RelHelpsWith,
			RelSubmitted, RelPartOf, RelIncludedIn, RelFollows, RelAttends,
			RelGradedWith,
		},
		AssignmentStatuses: []string{StatusNotStarted, StatusInProgress, StatusCompleted},
		CourseStatuses:     []string{StatusActive, StatusPaused, StatusCompleted},
	}
}

// Load reads a vocabulary override from a YAML file. An empty path returns
// the built-in defaults.
func Load(path string) (*Vocabulary, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary file: %w", err)
	}

	v := &Vocabulary{}
	if err := yaml.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("parse vocabulary file: %w", err)
	}
	if err := v.validate(); err != nil {
		return nil, fmt.Errorf("vocabulary file %s: %w", path, err)
	}
	return v, nil
}

func (v *Vocabulary) validate() error {
	if len(v.EntityTypes) == 0 {
		return fmt.Errorf("entity_types must not be empty")
	}
	if len(v.RelationTypes) == 0 {
		return fmt.Errorf("relation_types must not be empty")
	}
	if len(v.AssignmentStatuses) == 0 {
		return fmt.Errorf("assignment_statuses must not be empty")
	}
	if len(v.CourseStatuses) == 0 {
		return fmt.Errorf("course_statuses must not be empty")
	}
	return nil
}

// ValidEntityType reports whether t is a known entity type.
func (v *Vocabulary) ValidEntityType(t string) bool {
	return contains(v.EntityTypes, t)
}

// ValidRelationType reports whether t is a known relation type.
func (v *Vocabulary) ValidRelationType(t string) bool {
	return contains(v.RelationTypes, t)
}

// ValidAssignmentStatus reports whether s is a known assignment status.
func (v *Vocabulary) ValidAssignmentStatus(s string) bool {
	return contains(v.AssignmentStatuses, s)
}

// ValidCourseStatus reports whether s is a known course status.
func (v *Vocabulary) ValidCourseStatus(s string) bool {
	return contains(v.CourseStatuses, s)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
