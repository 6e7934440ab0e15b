package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/studygraph/internal/models"
	"github.com/wagnerlima/studygraph/internal/query"
	"github.com/wagnerlima/studygraph/internal/schema"
	"github.com/wagnerlima/studygraph/internal/session"
	"github.com/wagnerlima/studygraph/internal/storage"
)

// StudyTools holds references needed by the session workflow tool handlers.
type StudyTools struct {
	Graph    *storage.GraphStore
	Sessions *storage.SessionStore
	Query    *query.Deriver
	Workflow *session.Workflow
	Vocab    *schema.Vocabulary
}

// --- Input types ---

type LoadContextInput struct {
	EntityName string `json:"entity_name" jsonschema:"Name of the entity to load context for"`
	EntityType string `json:"entity_type" jsonschema:"Entity type (e.g., course, assignment, exam, concept, term)"`
}

type EndSessionInput struct {
	SessionID       string          `json:"session_id" jsonschema:"Session id returned by start_session"`
	Stage           string          `json:"stage" jsonschema:"Stage name: summary, conceptsLearned, assignmentUpdates, newConcepts, courseStatus, or assembly"`
	StageNumber     int             `json:"stage_number" jsonschema:"1-based position of this stage in the sequence"`
	TotalStages     int             `json:"total_stages,omitempty" jsonschema:"Total number of stages the client expects"`
	Analysis        string          `json:"analysis,omitempty" jsonschema:"Free-form analysis recorded with this stage"`
	NextStageNeeded bool            `json:"next_stage_needed" jsonschema:"Whether another stage follows this one"`
	IsRevision      bool            `json:"is_revision,omitempty" jsonschema:"Whether this call revises an earlier stage"`
	RevisesStage    int             `json:"revises_stage,omitempty" jsonschema:"1-based number of the stage being revised"`
	StageData       *StageDataInput `json:"stage_data,omitempty" jsonschema:"Typed payload for this stage"`
}

type StageDataInput struct {
	Summary           string                  `json:"summary,omitempty" jsonschema:"What was studied this session"`
	DurationMinutes   int                     `json:"duration_minutes,omitempty" jsonschema:"Session length in minutes"`
	Course            string                  `json:"course,omitempty" jsonschema:"Course the session focused on"`
	ConceptsLearned   []string                `json:"concepts_learned,omitempty" jsonschema:"Concepts learned this session, one string each"`
	AssignmentUpdates []AssignmentUpdateInput `json:"assignment_updates,omitempty" jsonschema:"Assignment status changes"`
	NewConcepts       []ConceptInput          `json:"new_concepts,omitempty" jsonschema:"Brand-new concepts to add to the graph"`
	CourseStatus      string                  `json:"course_status,omitempty" jsonschema:"New course status: active, paused, or completed"`
	CourseObservation string                  `json:"course_observation,omitempty" jsonschema:"Free-text note to append to the course"`
}

type AssignmentUpdateInput struct {
	Assignment string `json:"assignment" jsonschema:"Assignment entity name"`
	Status     string `json:"status" jsonschema:"New status: not_started, in_progress, or completed"`
}

type ConceptInput struct {
	Name        string `json:"name" jsonschema:"Concept name"`
	Description string `json:"description,omitempty" jsonschema:"One-line description"`
}

// --- Handlers ---

// StartSession creates a session and returns a briefing: recent sessions,
// active courses, the two-week deadline window, and recently studied
// concepts.
func (t *StudyTools) StartSession(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	id, err := t.Workflow.Start()
	if err != nil {
		return toolError("Failed to start session: %v", err), nil, nil
	}

	deadlines, err := t.Query.UpcomingDeadlines("", "", 0)
	if err != nil {
		return toolError("Failed to collect deadlines: %v", err), nil, nil
	}

	briefing := formatBriefing(
		id,
		t.Sessions.Recent(3),
		t.Query.ActiveCourses(),
		deadlines,
		t.Query.RecentlyStudied(0),
	)
	return toolText(briefing), nil, nil
}

// LoadContext renders a type-specific context block for one entity.
func (t *StudyTools) LoadContext(_ context.Context, _ *mcp.CallToolRequest, input LoadContextInput) (*mcp.CallToolResult, any, error) {
	switch input.EntityType {
	case schema.TypeCourse:
		overview, err := t.Query.CourseOverview(input.EntityName)
		if err != nil {
			return toolError("Failed to load context: %v", err), nil, nil
		}
		return toolText(formatCourseOverview(overview)), nil, nil

	case schema.TypeAssignment:
		status, err := t.Query.AssignmentStatus(input.EntityName)
		if err != nil {
			return toolError("Failed to load context: %v", err), nil, nil
		}
		return toolText(formatAssignmentStatus(status)), nil, nil

	case schema.TypeExam:
		prep, err := t.Query.ExamPrep(input.EntityName)
		if err != nil {
			return toolError("Failed to load context: %v", err), nil, nil
		}
		return toolText(formatExamPrep(prep)), nil, nil

	case schema.TypeConcept:
		entity, relations, errResult := t.entityDetail(input.EntityName, input.EntityType)
		if errResult != nil {
			return errResult, nil, nil
		}
		related, err := t.Query.RelatedConcepts(input.EntityName, 0)
		if err != nil {
			return toolError("Failed to load context: %v", err), nil, nil
		}
		return toolText(formatConceptContext(entity, relations, related)), nil, nil

	case schema.TypeTerm:
		overview, err := t.Query.TermOverview(input.EntityName)
		if err != nil {
			return toolError("Failed to load context: %v", err), nil, nil
		}
		return toolText(formatTermOverview(overview)), nil, nil

	default:
		if !t.Vocab.ValidEntityType(input.EntityType) {
			return toolError("Unknown entity type %q", input.EntityType), nil, nil
		}
		entity, relations, errResult := t.entityDetail(input.EntityName, input.EntityType)
		if errResult != nil {
			return errResult, nil, nil
		}
		return toolText(formatEntityDetail(entity, relations)), nil, nil
	}
}

// EndSession records one workflow stage; the terminal assembly stage also
// carries the report of applied graph changes.
func (t *StudyTools) EndSession(_ context.Context, _ *mcp.CallToolRequest, input EndSessionInput) (*mcp.CallToolResult, any, error) {
	result, err := t.Workflow.RecordStage(session.StageInput{
		SessionID:       input.SessionID,
		Stage:           input.Stage,
		StageNumber:     input.StageNumber,
		TotalStages:     input.TotalStages,
		Analysis:        input.Analysis,
		NextStageNeeded: input.NextStageNeeded,
		IsRevision:      input.IsRevision,
		RevisesStage:    input.RevisesStage,
		StageData:       stageDataFromInput(input.StageData),
	})
	if err != nil {
		return toolError("Failed to record stage: %v", err), nil, nil
	}
	return toolJSON(result)
}

// entityDetail fetches one entity and every relation touching it.
func (t *StudyTools) entityDetail(name, entityType string) (models.Entity, []models.Relation, *mcp.CallToolResult) {
	g := t.Graph.ReadGraph()
	for _, e := range g.Entities {
		if e.Name != name {
			continue
		}
		if e.EntityType != entityType {
			return models.Entity{}, nil, toolError("Entity %q is a %s, not a %s", name, e.EntityType, entityType)
		}
		relations := []models.Relation{}
		for _, r := range g.Relations {
			if r.From == name || r.To == name {
				relations = append(relations, r)
			}
		}
		return e, relations, nil
	}
	return models.Entity{}, nil, toolError("Entity %q not found", name)
}

func stageDataFromInput(in *StageDataInput) *models.StageData {
	if in == nil {
		return nil
	}
	data := &models.StageData{
		Summary:           in.Summary,
		DurationMinutes:   in.DurationMinutes,
		Course:            in.Course,
		ConceptsLearned:   in.ConceptsLearned,
		CourseStatus:      in.CourseStatus,
		CourseObservation: in.CourseObservation,
	}
	for _, u := range in.AssignmentUpdates {
		data.AssignmentUpdates = append(data.AssignmentUpdates, models.AssignmentUpdate{
			Assignment: u.Assignment,
			Status:     u.Status,
		})
	}
	for _, c := range in.NewConcepts {
		data.NewConcepts = append(data.NewConcepts, models.ConceptDefinition{
			Name:        c.Name,
			Description: c.Description,
		})
	}
	return data
}
