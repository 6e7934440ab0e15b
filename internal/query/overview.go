package query

import (
	"github.com/wagnerlima/studygraph/internal/models"
	"github.com/wagnerlima/studygraph/internal/schema"
)

// CourseInfo is the facet summary of a course.
type CourseInfo struct {
	Name     string `json:"name"`
	Code     string `json:"code,omitempty"`
	Status   string `json:"status,omitempty"`
	Schedule string `json:"schedule,omitempty"`
}

// CourseOverview joins everything hanging off one course.
type CourseOverview struct {
	Course      CourseInfo  `json:"course"`
	Term        string      `json:"term,omitempty"`
	Professor   string      `json:"professor,omitempty"`
	Lectures    []DatedItem `json:"lectures"`
	Assignments []DatedItem `json:"assignments"`
	Exams       []DatedItem `json:"exams"`
	Concepts    []string    `json:"concepts"`
	Resources   []string    `json:"resources"`
	Notes       []string    `json:"notes"`
}

// CourseOverview assembles the composite view of a course: its term and
// professor, date-sorted lectures, assignments and exams, and the concepts,
// resources and notes attached to it.
func (d *Deriver) CourseOverview(name string) (*CourseOverview, error) {
	v := d.snapshot()
	course, err := v.subject(name, schema.TypeCourse)
	if err != nil {
		return nil, err
	}

	overview := &CourseOverview{
		Course: courseInfo(course),
	}
	if term, ok := v.firstOutgoing(name, schema.RelPartOf, schema.TypeTerm); ok {
		overview.Term = term.Name
	}
	if prof, ok := v.firstOutgoing(name, schema.RelTaughtBy, schema.TypeProfessor); ok {
		overview.Professor = prof.Name
	}

	lectures := v.incoming(name, schema.RelPartOf, schema.TypeLecture)
	assignments := v.incoming(name, schema.RelAssignedIn, schema.TypeAssignment)
	exams := v.incoming(name, schema.RelScheduledFor, schema.TypeExam)
	sortByDate(lectures)
	sortByDate(assignments)
	sortByDate(exams)

	overview.Lectures = datedItems(lectures)
	overview.Assignments = datedItems(assignments)
	overview.Exams = datedItems(exams)
	overview.Concepts = names(v.outgoing(name, schema.RelCovers, schema.TypeConcept))
	overview.Resources = names(v.incoming(name, schema.RelHelpsWith, schema.TypeResource))
	overview.Notes = names(v.incoming(name, schema.RelCreatedFor, schema.TypeNote))
	return overview, nil
}

// LectureInfo is one lecture with its attached material.
type LectureInfo struct {
	Name      string   `json:"name"`
	Date      string   `json:"date,omitempty"`
	Notes     []string `json:"notes"`
	Concepts  []string `json:"concepts"`
	Resources []string `json:"resources"`
}

// LectureNotes lists a course's lectures in date order.
type LectureNotes struct {
	Course   string        `json:"course"`
	Lectures []LectureInfo `json:"lectures"`
}

// LectureNotes annotates each lecture of a course with its notes, the
// concepts it covers, and the resources linked directly or through those
// concepts.
func (d *Deriver) LectureNotes(course string) (*LectureNotes, error) {
	v := d.snapshot()
	if _, err := v.subject(course, schema.TypeCourse); err != nil {
		return nil, err
	}

	lectures := v.incoming(course, schema.RelPartOf, schema.TypeLecture)
	sortByDate(lectures)

	result := &LectureNotes{
		Course:   course,
		Lectures: make([]LectureInfo, 0, len(lectures)),
	}
	for _, lecture := range lectures {
		concepts := v.outgoing(lecture.Name, schema.RelCovers, schema.TypeConcept)
		resources, notes := gatherSupport(v, lecture.Name, concepts)
		result.Lectures = append(result.Lectures, LectureInfo{
			Name:      lecture.Name,
			Date:      formatDate(entityDate(lecture)),
			Notes:     notes,
			Concepts:  names(concepts),
			Resources: resources,
		})
	}
	return result, nil
}

func courseInfo(course models.Entity) CourseInfo {
	return CourseInfo{
		Name:     course.Name,
		Code:     course.Facets.Code,
		Status:   course.Facets.Status,
		Schedule: course.Facets.Schedule,
	}
}
