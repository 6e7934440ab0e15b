package query

import (
	"sort"
	"time"

	"github.com/wagnerlima/studygraph/internal/models"
	"github.com/wagnerlima/studygraph/internal/schema"
)

// DefaultDeadlineWindow is the day window used when the caller gives none.
const DefaultDeadlineWindow = 14

// Deadline is one due assignment or scheduled exam.
type Deadline struct {
	Name          string `json:"name"`
	Kind          string `json:"kind"`
	Course        string `json:"course,omitempty"`
	Date          string `json:"date"`
	DaysRemaining int    `json:"daysRemaining"`
	Status        string `json:"status,omitempty"`

	at time.Time
}

// DeadlineReport is the date-sorted deadline window.
type DeadlineReport struct {
	DaysAhead int        `json:"daysAhead"`
	From      string     `json:"from"`
	To        string     `json:"to"`
	Deadlines []Deadline `json:"deadlines"`
}

// UpcomingDeadlines collects assignments and exams whose due/exam date falls
// inside [today, today+daysAhead], optionally filtered to one course or one
// term, sorted by date ascending. daysAhead <= 0 selects the default window.
func (d *Deriver) UpcomingDeadlines(course, term string, daysAhead int) (*DeadlineReport, error) {
	v := d.snapshot()
	if course != "" {
		if _, err := v.subject(course, schema.TypeCourse); err != nil {
			return nil, err
		}
	}
	if term != "" {
		if _, err := v.subject(term, schema.TypeTerm); err != nil {
			return nil, err
		}
	}
	if daysAhead <= 0 {
		daysAhead = DefaultDeadlineWindow
	}

	now := d.now()
	windowStart := startOfDay(now)
	windowEnd := windowStart.AddDate(0, 0, daysAhead)

	deadlines := []Deadline{}
	for _, name := range v.order {
		row, ok := v.deadlineRow(name, now)
		if !ok || row.at.Before(windowStart) || row.at.After(windowEnd) {
			continue
		}
		if course != "" && row.Course != course {
			continue
		}
		if term != "" && !v.courseInTerm(row.Course, term) {
			continue
		}
		deadlines = append(deadlines, row)
	}
	sortDeadlines(deadlines)

	return &DeadlineReport{
		DaysAhead: daysAhead,
		From:      windowStart.Format(models.DateLayout),
		To:        windowEnd.Format(models.DateLayout),
		Deadlines: deadlines,
	}, nil
}

// deadlineRow builds the deadline row for one entity, if it is a dated
// assignment or exam.
func (v *view) deadlineRow(name string, now time.Time) (Deadline, bool) {
	e := v.entities[name]

	var kind, owningRel string
	switch e.EntityType {
	case schema.TypeAssignment:
		kind, owningRel = schema.TypeAssignment, schema.RelAssignedIn
	case schema.TypeExam:
		kind, owningRel = schema.TypeExam, schema.RelScheduledFor
	default:
		return Deadline{}, false
	}

	date := entityDate(e)
	if date == nil {
		return Deadline{}, false
	}

	row := Deadline{
		Name:          e.Name,
		Kind:          kind,
		Date:          formatDate(date),
		DaysRemaining: ceilDays(date.Sub(now)),
		Status:        e.Facets.Status,
		at:            *date,
	}
	if c, ok := v.firstOutgoing(e.Name, owningRel, schema.TypeCourse); ok {
		row.Course = c.Name
	}
	return row, true
}

func (v *view) courseInTerm(course, term string) bool {
	t, ok := v.firstOutgoing(course, schema.RelPartOf, schema.TypeTerm)
	return ok && t.Name == term
}

func sortDeadlines(deadlines []Deadline) {
	sort.SliceStable(deadlines, func(i, j int) bool {
		return deadlines[i].at.Before(deadlines[j].at)
	})
}
