package tools

import (
	"fmt"
	"strings"

	"github.com/wagnerlima/studygraph/internal/models"
	"github.com/wagnerlima/studygraph/internal/query"
	"github.com/wagnerlima/studygraph/internal/storage"
)

// formatBriefing renders the start-of-session text block.
func formatBriefing(id string, recent []storage.SessionSummary, active []query.CourseInfo, deadlines *query.DeadlineReport, studied []query.ConceptActivity) string {
	var b strings.Builder
	b.WriteString("# Study Session Started\n\n")
	fmt.Fprintf(&b, "Session id: %s\n", id)

	b.WriteString("\n## Recent Sessions\n")
	if len(recent) == 0 {
		b.WriteString("No sessions recorded yet.\n")
	}
	for _, s := range recent {
		state := "in progress"
		if s.Completed {
			state = "completed"
		}
		fmt.Fprintf(&b, "- %s (%d stages, %s)", s.ID, s.Stages, state)
		if s.Summary != "" {
			fmt.Fprintf(&b, ": %s", s.Summary)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n## Active Courses\n")
	if len(active) == 0 {
		b.WriteString("No active courses.\n")
	}
	for _, c := range active {
		fmt.Fprintf(&b, "- %s", c.Name)
		if c.Code != "" {
			fmt.Fprintf(&b, " (%s)", c.Code)
		}
		if c.Schedule != "" {
			fmt.Fprintf(&b, ", %s", c.Schedule)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\n## Deadlines Through %s\n", deadlines.To)
	if len(deadlines.Deadlines) == 0 {
		b.WriteString("Nothing due in this window.\n")
	}
	for _, d := range deadlines.Deadlines {
		writeDeadline(&b, d)
	}

	b.WriteString("\n## Recently Studied\n")
	if len(studied) == 0 {
		b.WriteString("No study activity recorded.\n")
	}
	for _, c := range studied {
		fmt.Fprintf(&b, "- %s (last studied %s)\n", c.Name, c.LastStudied)
	}
	return b.String()
}

// formatCourseOverview renders the course context block.
func formatCourseOverview(o *query.CourseOverview) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s", o.Course.Name)
	if o.Course.Code != "" {
		fmt.Fprintf(&b, " (%s)", o.Course.Code)
	}
	b.WriteString("\n")
	writeField(&b, "Status", o.Course.Status)
	writeField(&b, "Schedule", o.Course.Schedule)
	writeField(&b, "Term", o.Term)
	writeField(&b, "Professor", o.Professor)

	writeDatedSection(&b, "Lectures", o.Lectures)
	writeDatedSection(&b, "Assignments", o.Assignments)
	writeDatedSection(&b, "Exams", o.Exams)
	writeListSection(&b, "Concepts", o.Concepts)
	writeListSection(&b, "Resources", o.Resources)
	writeListSection(&b, "Notes", o.Notes)
	return b.String()
}

// formatAssignmentStatus renders the assignment context block.
func formatAssignmentStatus(s *query.AssignmentStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", s.Assignment)
	writeField(&b, "Course", s.Course)
	writeField(&b, "Status", s.Status)
	if s.Due != "" {
		fmt.Fprintf(&b, "Due: %s", s.Due)
		if s.DaysRemaining != nil {
			fmt.Fprintf(&b, " (%s)", daysPhrase(*s.DaysRemaining))
		}
		b.WriteString("\n")
	}
	if s.Points != nil {
		fmt.Fprintf(&b, "Points: %g\n", *s.Points)
	}
	writeField(&b, "Instructions", s.Instructions)
	writeListSection(&b, "Resources", s.Resources)
	writeListSection(&b, "Notes", s.Notes)
	return b.String()
}

// formatExamPrep renders the exam context block.
func formatExamPrep(p *query.ExamPrep) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", p.Exam)
	writeField(&b, "Course", p.Course)
	if p.Date != "" {
		fmt.Fprintf(&b, "Date: %s", p.Date)
		if p.DaysRemaining != nil {
			fmt.Fprintf(&b, " (%s)", daysPhrase(*p.DaysRemaining))
		}
		b.WriteString("\n")
	}
	writeField(&b, "Location", p.Location)
	writeListSection(&b, "Concepts to Review", p.Concepts)
	writeListSection(&b, "Resources", p.Resources)
	writeListSection(&b, "Notes", p.Notes)
	if len(p.PriorExams) > 0 {
		b.WriteString("\n## Prior Exams\n")
		for _, e := range p.PriorExams {
			fmt.Fprintf(&b, "- %s", e.Name)
			if e.Date != "" {
				fmt.Fprintf(&b, " (%s)", e.Date)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// formatConceptContext renders the concept context block with its
// neighborhood.
func formatConceptContext(e models.Entity, relations []models.Relation, related *query.RelatedConceptsResult) string {
	var b strings.Builder
	b.WriteString(formatEntityDetail(e, relations))
	b.WriteString("\n## Related Concepts\n")
	if len(related.Related) == 0 {
		b.WriteString("No related concepts found.\n")
	}
	for _, r := range related.Related {
		fmt.Fprintf(&b, "- %s (depth %d): %s\n", r.Name, r.Depth, strings.Join(r.Path, ", "))
	}
	return b.String()
}

// formatTermOverview renders the term context block.
func formatTermOverview(o *query.TermOverview) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", o.Term)
	b.WriteString("\n## Courses\n")
	if len(o.Courses) == 0 {
		b.WriteString("No courses in this term.\n")
	}
	for _, c := range o.Courses {
		fmt.Fprintf(&b, "- %s", c.Name)
		if c.Professor != "" {
			fmt.Fprintf(&b, " (%s)", c.Professor)
		}
		fmt.Fprintf(&b, ": %d/%d assignments completed (%d%%)", c.Completed, c.Total, c.Percent)
		if c.NextExam != "" {
			fmt.Fprintf(&b, ", next exam %s on %s", c.NextExam, c.NextExamDate)
		}
		b.WriteString("\n")
	}
	if len(o.Deadlines) > 0 {
		b.WriteString("\n## Upcoming Deadlines\n")
		for _, d := range o.Deadlines {
			writeDeadline(&b, d)
		}
	}
	return b.String()
}

// formatEntityDetail renders the generic context block: observations plus
// every relation touching the entity.
func formatEntityDetail(e models.Entity, relations []models.Relation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s (%s)\n", e.Name, e.EntityType)
	b.WriteString("\n## Observations\n")
	if len(e.Observations) == 0 {
		b.WriteString("No observations recorded.\n")
	}
	for _, obs := range e.Observations {
		fmt.Fprintf(&b, "- %s\n", obs)
	}
	b.WriteString("\n## Relations\n")
	if len(relations) == 0 {
		b.WriteString("No relations recorded.\n")
	}
	for _, r := range relations {
		fmt.Fprintf(&b, "- %s %s %s\n", r.From, r.RelationType, r.To)
	}
	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	if value != "" {
		fmt.Fprintf(b, "%s: %s\n", label, value)
	}
}

func writeListSection(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

func writeDatedSection(b *strings.Builder, title string, items []query.DatedItem) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s", item.Name)
		if item.Date != "" {
			fmt.Fprintf(b, " (%s)", item.Date)
		}
		if item.Status != "" {
			fmt.Fprintf(b, " [%s]", item.Status)
		}
		b.WriteString("\n")
	}
}

func writeDeadline(b *strings.Builder, d query.Deadline) {
	fmt.Fprintf(b, "- %s (%s", d.Name, d.Kind)
	if d.Course != "" {
		fmt.Fprintf(b, ", %s", d.Course)
	}
	fmt.Fprintf(b, "): %s, %s\n", d.Date, daysPhrase(d.DaysRemaining))
}

func daysPhrase(days int) string {
	switch {
	case days < 0:
		return fmt.Sprintf("overdue by %s", plural(-days, "day"))
	case days == 0:
		return "due today"
	case days == 1:
		return "due tomorrow"
	default:
		return fmt.Sprintf("due in %d days", days)
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
