package query

import (
	"math"
	"time"

	"github.com/wagnerlima/studygraph/internal/schema"
)

// termDeadlineLimit caps the deadline list on a term overview.
const termDeadlineLimit = 10

// CourseDigest is one course line on a term overview.
type CourseDigest struct {
	Name         string `json:"name"`
	Professor    string `json:"professor,omitempty"`
	Completed    int    `json:"completedAssignments"`
	Total        int    `json:"totalAssignments"`
	Percent      int    `json:"completionPercent"`
	NextExam     string `json:"nextExam,omitempty"`
	NextExamDate string `json:"nextExamDate,omitempty"`
}

// TermOverview is the semester-level dashboard.
type TermOverview struct {
	Term      string         `json:"term"`
	Courses   []CourseDigest `json:"courses"`
	Deadlines []Deadline     `json:"upcomingDeadlines"`
}

// TermOverview summarizes every course in a term: assignment completion,
// the next scheduled exam, and the term's nearest future deadlines.
func (d *Deriver) TermOverview(name string) (*TermOverview, error) {
	v := d.snapshot()
	if _, err := v.subject(name, schema.TypeTerm); err != nil {
		return nil, err
	}

	now := d.now()
	cutoff := startOfDay(now)
	overview := &TermOverview{
		Term:      name,
		Courses:   []CourseDigest{},
		Deadlines: []Deadline{},
	}

	inTerm := make(map[string]bool)
	for _, course := range v.incoming(name, schema.RelPartOf, schema.TypeCourse) {
		inTerm[course.Name] = true
		digest := CourseDigest{Name: course.Name}
		if p, ok := v.firstOutgoing(course.Name, schema.RelTaughtBy, schema.TypeProfessor); ok {
			digest.Professor = p.Name
		}
		for _, a := range v.incoming(course.Name, schema.RelAssignedIn, schema.TypeAssignment) {
			digest.Total++
			if a.Facets.Status == schema.StatusCompleted {
				digest.Completed++
			}
		}
		if digest.Total > 0 {
			digest.Percent = int(math.Round(100 * float64(digest.Completed) / float64(digest.Total)))
		}
		if exam, date, ok := nextExam(v, course.Name, cutoff); ok {
			digest.NextExam = exam
			digest.NextExamDate = formatDate(date)
		}
		overview.Courses = append(overview.Courses, digest)
	}

	for _, entityName := range v.order {
		row, ok := v.deadlineRow(entityName, now)
		if !ok || row.at.Before(cutoff) || !inTerm[row.Course] {
			continue
		}
		overview.Deadlines = append(overview.Deadlines, row)
	}
	sortDeadlines(overview.Deadlines)
	if len(overview.Deadlines) > termDeadlineLimit {
		overview.Deadlines = overview.Deadlines[:termDeadlineLimit]
	}
	return overview, nil
}

// nextExam finds the course's earliest exam on or after the cutoff.
func nextExam(v *view, course string, cutoff time.Time) (string, *time.Time, bool) {
	var name string
	var next *time.Time
	for _, exam := range v.incoming(course, schema.RelScheduledFor, schema.TypeExam) {
		date := entityDate(exam)
		if date == nil || date.Before(cutoff) {
			continue
		}
		if next == nil || date.Before(*next) {
			name, next = exam.Name, date
		}
	}
	return name, next, next != nil
}

// ActiveCourses lists the courses currently in progress: status "active", or
// no status recorded at all.
func (d *Deriver) ActiveCourses() []CourseInfo {
	v := d.snapshot()
	active := []CourseInfo{}
	for _, name := range v.order {
		e := v.entities[name]
		if e.EntityType != schema.TypeCourse {
			continue
		}
		if e.Facets.Status != "" && e.Facets.Status != schema.StatusActive {
			continue
		}
		active = append(active, courseInfo(e))
	}
	return active
}
