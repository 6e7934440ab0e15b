package session

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wagnerlima/studygraph/internal/models"
	"github.com/wagnerlima/studygraph/internal/schema"
	"github.com/wagnerlima/studygraph/internal/storage"
)

// ErrUnknownStatus rejects status values outside the configured vocabulary.
var ErrUnknownStatus = errors.New("session: status outside vocabulary")

// AppliedReport enumerates the graph changes a finished session produced.
// On a partial failure it holds the steps that were committed before the
// error.
type AppliedReport struct {
	ConceptsCreated    []string `json:"conceptsCreated"`
	AssignmentsUpdated []string `json:"assignmentsUpdated"`
	CourseUpdated      string   `json:"courseUpdated,omitempty"`
	MarkerWritten      bool     `json:"markerWritten"`
}

// outcome is the fold of a session's stage payloads.
type outcome struct {
	course            string
	learned           []string
	updates           []models.AssignmentUpdate
	newConcepts       []models.ConceptDefinition
	courseStatus      string
	courseObservation string
}

// assemble reduces the recorded stages into graph mutations, applied as
// independently persisted steps: learned concepts, assignment updates, the
// course status, new concepts, then the completion marker. The first error
// stops the remaining steps; committed steps stay committed.
func (w *Workflow) assemble(id string, recorded []models.StageRecord) (*AppliedReport, error) {
	out := fold(recorded)
	report := &AppliedReport{
		ConceptsCreated:    []string{},
		AssignmentsUpdated: []string{},
	}
	date := w.now().UTC().Format(models.DateLayout)

	for i, text := range out.learned {
		name := fmt.Sprintf("Concept %s #%d", date, i+1)
		if err := w.createConcept(name, []string{text}, out.course, date); err != nil {
			return report, err
		}
		report.ConceptsCreated = append(report.ConceptsCreated, name)
	}

	for _, update := range out.updates {
		if err := w.updateAssignment(update, date); err != nil {
			return report, err
		}
		report.AssignmentsUpdated = append(report.AssignmentsUpdated, update.Assignment)
	}

	if out.course != "" && (out.courseStatus != "" || out.courseObservation != "") {
		if err := w.updateCourse(out, date); err != nil {
			return report, err
		}
		report.CourseUpdated = out.course
	}

	for _, def := range out.newConcepts {
		var observations []string
		if def.Description != "" {
			observations = append(observations, def.Description)
		}
		if err := w.createConcept(def.Name, observations, out.course, date); err != nil {
			return report, err
		}
		report.ConceptsCreated = append(report.ConceptsCreated, def.Name)
	}

	marker := models.StageRecord{
		Marker:     models.MarkerSessionCompleted,
		RecordedAt: w.now().UTC().Format(time.RFC3339),
	}
	if _, err := w.sessions.Append(id, marker); err != nil {
		return report, fmt.Errorf("write completion marker: %w", err)
	}
	report.MarkerWritten = true

	w.log.Info("session assembled",
		zap.String("session_id", id),
		zap.Int("concepts_created", len(report.ConceptsCreated)),
		zap.Int("assignments_updated", len(report.AssignmentsUpdated)),
		zap.String("course_updated", report.CourseUpdated))
	return report, nil
}

// fold collapses the stage payloads into one outcome. Later records win for
// scalar fields, so revisions take effect.
func fold(recorded []models.StageRecord) outcome {
	var out outcome
	for _, rec := range recorded {
		if rec.StageData == nil {
			continue
		}
		data := rec.StageData
		switch rec.Stage {
		case StageSummary:
			if data.Course != "" {
				out.course = data.Course
			}
		case StageConceptsLearned:
			out.learned = append(out.learned, data.ConceptsLearned...)
		case StageAssignmentUpdates:
			out.updates = append(out.updates, data.AssignmentUpdates...)
		case StageNewConcepts:
			out.newConcepts = append(out.newConcepts, data.NewConcepts...)
		case StageCourseStatus:
			if data.CourseStatus != "" {
				out.courseStatus = data.CourseStatus
			}
			if data.CourseObservation != "" {
				out.courseObservation = data.CourseObservation
			}
		}
	}
	return out
}

// createConcept creates one concept entity stamped with the session date and,
// when a course is named, links course -contains-> concept.
func (w *Workflow) createConcept(name string, observations []string, course, date string) error {
	entity := models.Entity{
		Name:         name,
		EntityType:   schema.TypeConcept,
		Observations: append(observations, models.FormatObservation("Last studied", date)),
	}
	if _, err := w.graph.CreateEntities([]models.Entity{entity}); err != nil {
		return fmt.Errorf("create concept %q: %w", name, err)
	}
	if course == "" {
		return nil
	}
	link := models.Relation{From: course, To: name, RelationType: schema.RelContains}
	if _, err := w.graph.CreateRelations([]models.Relation{link}); err != nil {
		return fmt.Errorf("link concept %q to %q: %w", name, course, err)
	}
	return nil
}

// updateAssignment replaces the assignment's status observation in place.
// Relations are untouched; no completion edge is created.
func (w *Workflow) updateAssignment(update models.AssignmentUpdate, date string) error {
	if !w.vocab.ValidAssignmentStatus(update.Status) {
		return fmt.Errorf("%w: assignment status %q", ErrUnknownStatus, update.Status)
	}
	if err := w.requireType(update.Assignment, schema.TypeAssignment); err != nil {
		return err
	}
	replace := map[string]string{
		"Status":  update.Status,
		"Updated": date,
	}
	if _, err := w.graph.UpdateObservations(update.Assignment, replace, nil); err != nil {
		return fmt.Errorf("update assignment %q: %w", update.Assignment, err)
	}
	return nil
}

// updateCourse replaces the course's status and updated observations in
// place, appending the optional free-text observation.
func (w *Workflow) updateCourse(out outcome, date string) error {
	if out.courseStatus != "" && !w.vocab.ValidCourseStatus(out.courseStatus) {
		return fmt.Errorf("%w: course status %q", ErrUnknownStatus, out.courseStatus)
	}
	if err := w.requireType(out.course, schema.TypeCourse); err != nil {
		return err
	}
	replace := map[string]string{"Updated": date}
	if out.courseStatus != "" {
		replace["Status"] = out.courseStatus
	}
	var add []string
	if out.courseObservation != "" {
		add = append(add, out.courseObservation)
	}
	if _, err := w.graph.UpdateObservations(out.course, replace, add); err != nil {
		return fmt.Errorf("update course %q: %w", out.course, err)
	}
	return nil
}

// requireType checks that name exists as the given entity type.
func (w *Workflow) requireType(name, entityType string) error {
	sub := w.graph.OpenNodes([]string{name})
	if len(sub.Entities) == 0 || sub.Entities[0].EntityType != entityType {
		return fmt.Errorf("%w: %s %q", storage.ErrNotFound, entityType, name)
	}
	return nil
}
