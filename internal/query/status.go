package query

import (
	"github.com/wagnerlima/studygraph/internal/models"
	"github.com/wagnerlima/studygraph/internal/schema"
)

// AssignmentStatus is the working context of one assignment.
type AssignmentStatus struct {
	Assignment    string   `json:"assignment"`
	Course        string   `json:"course,omitempty"`
	Status        string   `json:"status,omitempty"`
	Due           string   `json:"due,omitempty"`
	DaysRemaining *int     `json:"daysRemaining,omitempty"`
	Overdue       bool     `json:"overdue"`
	Points        *float64 `json:"points,omitempty"`
	Instructions  string   `json:"instructions,omitempty"`
	Resources     []string `json:"resources"`
	Notes         []string `json:"notes"`
}

// AssignmentStatus resolves the owning course, the typed facets, the signed
// days remaining, and the resources and notes linked directly or through the
// assignment's concepts.
func (d *Deriver) AssignmentStatus(name string) (*AssignmentStatus, error) {
	v := d.snapshot()
	assignment, err := v.subject(name, schema.TypeAssignment)
	if err != nil {
		return nil, err
	}

	status := &AssignmentStatus{
		Assignment:   name,
		Status:       assignment.Facets.Status,
		Points:       assignment.Facets.Points,
		Instructions: assignment.Facets.Instructions,
	}
	if c, ok := v.firstOutgoing(name, schema.RelAssignedIn, schema.TypeCourse); ok {
		status.Course = c.Name
	}
	if due := assignment.Facets.Due; due != nil {
		days := ceilDays(due.Sub(d.now()))
		status.Due = formatDate(due)
		status.DaysRemaining = &days
		status.Overdue = days < 0
	}

	concepts := v.outgoing(name, schema.RelCovers, schema.TypeConcept)
	status.Resources, status.Notes = gatherSupport(v, name, concepts)
	return status, nil
}

// ExamPrep is the study context of one exam.
type ExamPrep struct {
	Exam          string      `json:"exam"`
	Course        string      `json:"course,omitempty"`
	Date          string      `json:"date,omitempty"`
	DaysRemaining *int        `json:"daysRemaining,omitempty"`
	Location      string      `json:"location,omitempty"`
	Concepts      []string    `json:"concepts"`
	Resources     []string    `json:"resources"`
	Notes         []string    `json:"notes"`
	PriorExams    []DatedItem `json:"priorExams"`
}

// ExamPrep gathers the concepts an exam covers (falling back to the course's
// concepts when the exam names none), supporting resources and notes, and
// prior exams of the same course.
func (d *Deriver) ExamPrep(name string) (*ExamPrep, error) {
	v := d.snapshot()
	exam, err := v.subject(name, schema.TypeExam)
	if err != nil {
		return nil, err
	}

	now := d.now()
	prep := &ExamPrep{
		Exam:       name,
		Location:   exam.Facets.Location,
		PriorExams: []DatedItem{},
	}
	if date := entityDate(exam); date != nil {
		days := ceilDays(date.Sub(now))
		prep.Date = formatDate(date)
		prep.DaysRemaining = &days
	}

	courseName := ""
	if c, ok := v.firstOutgoing(name, schema.RelScheduledFor, schema.TypeCourse); ok {
		courseName = c.Name
		prep.Course = c.Name
	}

	concepts := v.outgoing(name, schema.RelCovers, schema.TypeConcept)
	if len(concepts) == 0 && courseName != "" {
		concepts = v.outgoing(courseName, schema.RelCovers, schema.TypeConcept)
	}
	prep.Concepts = names(concepts)
	prep.Resources, prep.Notes = gatherSupport(v, name, concepts)

	if courseName != "" {
		var prior []models.Entity
		for _, other := range v.incoming(courseName, schema.RelScheduledFor, schema.TypeExam) {
			if other.Name == name {
				continue
			}
			if date := entityDate(other); date != nil && date.Before(now) {
				prior = append(prior, other)
			}
		}
		sortByDate(prior)
		prep.PriorExams = datedItems(prior)
	}
	return prep, nil
}

// gatherSupport collects the resources and notes linked to an entity either
// directly or through the given concepts, de-duplicated by name with direct
// links first.
func gatherSupport(v *view, name string, concepts []models.Entity) (resources, notes []string) {
	resources, notes = []string{}, []string{}
	seenResources := make(map[string]bool)
	seenNotes := make(map[string]bool)

	for _, r := range v.incoming(name, schema.RelHelpsWith, schema.TypeResource) {
		resources = appendUnique(resources, seenResources, r.Name)
	}
	for _, n := range v.incoming(name, schema.RelCreatedFor, schema.TypeNote) {
		notes = appendUnique(notes, seenNotes, n.Name)
	}
	for _, c := range concepts {
		for _, r := range v.incoming(c.Name, schema.RelHelpsWith, schema.TypeResource) {
			resources = appendUnique(resources, seenResources, r.Name)
		}
		for _, n := range v.incoming(c.Name, schema.RelCreatedFor, schema.TypeNote) {
			notes = appendUnique(notes, seenNotes, n.Name)
		}
	}
	return resources, notes
}
