package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/studygraph/internal/models"
	"github.com/wagnerlima/studygraph/internal/query"
	"github.com/wagnerlima/studygraph/internal/storage"
)

// GraphTools holds references needed by graph manipulation and query tool
// handlers.
type GraphTools struct {
	Graph *storage.GraphStore
	Query *query.Deriver
}

// --- Input types ---

type CreateGraphElementsInput struct {
	Entities     []EntityInput      `json:"entities,omitempty" jsonschema:"Entities to create"`
	Relations    []RelationInput    `json:"relations,omitempty" jsonschema:"Relations to create"`
	Observations []ObservationInput `json:"observations,omitempty" jsonschema:"Observations to add to existing entities"`
}

type EntityInput struct {
	Name         string   `json:"name" jsonschema:"Entity name"`
	EntityType   string   `json:"entity_type" jsonschema:"Entity type (e.g., course, assignment, exam, concept)"`
	Observations []string `json:"observations,omitempty" jsonschema:"Initial observations about the entity"`
}

type RelationInput struct {
	From         string `json:"from" jsonschema:"Source entity name"`
	To           string `json:"to" jsonschema:"Target entity name"`
	RelationType string `json:"relation_type" jsonschema:"Relation type in active voice (e.g., enrolled_in, covers, assigned_in)"`
}

type ObservationInput struct {
	EntityName string   `json:"entity_name" jsonschema:"Name of the entity"`
	Contents   []string `json:"contents" jsonschema:"Observation texts to add"`
}

type DeleteGraphElementsInput struct {
	Entities     []string                `json:"entities,omitempty" jsonschema:"Entity names to delete (their relations cascade)"`
	Relations    []RelationInput         `json:"relations,omitempty" jsonschema:"Exact relation triples to delete"`
	Observations []DeleteObservationItem `json:"observations,omitempty" jsonschema:"Observations to delete"`
}

type DeleteObservationItem struct {
	EntityName   string   `json:"entity_name" jsonschema:"Name of the entity"`
	Observations []string `json:"observations" jsonschema:"Observation content strings to match and delete"`
}

type QueryGraphInput struct {
	QueryType string   `json:"query_type" jsonschema:"One of: course_overview, upcoming_deadlines, assignment_status, exam_prep, related_concepts, lecture_notes, term_overview, active_courses, recently_studied, read_graph, search_nodes, open_nodes"`
	Name      string   `json:"name,omitempty" jsonschema:"Primary entity name for entity-scoped queries"`
	Course    string   `json:"course,omitempty" jsonschema:"Course filter for upcoming_deadlines"`
	Term      string   `json:"term,omitempty" jsonschema:"Term filter for upcoming_deadlines"`
	DaysAhead int      `json:"days_ahead,omitempty" jsonschema:"Deadline window in days (default 14)"`
	Depth     int      `json:"depth,omitempty" jsonschema:"Traversal depth for related_concepts (default 2, max 5)"`
	Query     string   `json:"query,omitempty" jsonschema:"Search text for search_nodes"`
	Names     []string `json:"names,omitempty" jsonschema:"Exact entity names for open_nodes"`
}

// --- Handlers ---

// CreateGraphElements applies entities first so relations and observations in
// the same call can bind to them. The first failure stops the remaining
// groups; earlier groups stay committed.
func (t *GraphTools) CreateGraphElements(_ context.Context, _ *mcp.CallToolRequest, input CreateGraphElementsInput) (*mcp.CallToolResult, any, error) {
	report := struct {
		EntitiesCreated   int `json:"entitiesCreated"`
		RelationsCreated  int `json:"relationsCreated"`
		ObservationsAdded int `json:"observationsAdded"`
	}{}

	if len(input.Entities) > 0 {
		entities := make([]models.Entity, len(input.Entities))
		for i, e := range input.Entities {
			entities[i] = models.Entity{
				Name:         e.Name,
				EntityType:   e.EntityType,
				Observations: e.Observations,
			}
		}
		created, err := t.Graph.CreateEntities(entities)
		if err != nil {
			return toolError("Failed to create entities: %v", err), nil, nil
		}
		report.EntitiesCreated = len(created)
	}

	if len(input.Relations) > 0 {
		created, err := t.Graph.CreateRelations(relationsFromInput(input.Relations))
		if err != nil {
			return toolError("Failed to create relations: %v", err), nil, nil
		}
		report.RelationsCreated = len(created)
	}

	for _, obs := range input.Observations {
		if _, err := t.Graph.AddObservations(obs.EntityName, obs.Contents); err != nil {
			return toolError("Failed to add observations for %q: %v", obs.EntityName, err), nil, nil
		}
		report.ObservationsAdded += len(obs.Contents)
	}

	return toolJSON(report)
}

// DeleteGraphElements removes observations first, then relations, then
// entities, so the narrower deletions act before any cascade.
func (t *GraphTools) DeleteGraphElements(_ context.Context, _ *mcp.CallToolRequest, input DeleteGraphElementsInput) (*mcp.CallToolResult, any, error) {
	report := struct {
		ObservationsDeleted int `json:"observationsDeleted"`
		RelationsDeleted    int `json:"relationsDeleted"`
		EntitiesDeleted     int `json:"entitiesDeleted"`
		CascadedRelations   int `json:"cascadedRelations"`
	}{}

	if len(input.Observations) > 0 {
		deletions := make([]storage.ObservationDeletion, len(input.Observations))
		for i, d := range input.Observations {
			deletions[i] = storage.ObservationDeletion{
				EntityName:   d.EntityName,
				Observations: d.Observations,
			}
		}
		count, err := t.Graph.DeleteObservations(deletions)
		if err != nil {
			return toolError("Failed to delete observations: %v", err), nil, nil
		}
		report.ObservationsDeleted = count
	}

	if len(input.Relations) > 0 {
		count, err := t.Graph.DeleteRelations(relationsFromInput(input.Relations))
		if err != nil {
			return toolError("Failed to delete relations: %v", err), nil, nil
		}
		report.RelationsDeleted = count
	}

	if len(input.Entities) > 0 {
		entities, cascaded, err := t.Graph.DeleteEntities(input.Entities)
		if err != nil {
			return toolError("Failed to delete entities: %v", err), nil, nil
		}
		report.EntitiesDeleted = entities
		report.CascadedRelations = cascaded
	}

	return toolJSON(report)
}

// QueryGraph multiplexes the read-side queries behind one tool.
func (t *GraphTools) QueryGraph(_ context.Context, _ *mcp.CallToolRequest, input QueryGraphInput) (*mcp.CallToolResult, any, error) {
	switch input.QueryType {
	case "course_overview":
		overview, err := t.Query.CourseOverview(input.Name)
		if err != nil {
			return toolError("Query failed: %v", err), nil, nil
		}
		return toolJSON(overview)

	case "upcoming_deadlines":
		deadlines, err := t.Query.UpcomingDeadlines(input.Course, input.Term, input.DaysAhead)
		if err != nil {
			return toolError("Query failed: %v", err), nil, nil
		}
		return toolJSON(deadlines)

	case "assignment_status":
		status, err := t.Query.AssignmentStatus(input.Name)
		if err != nil {
			return toolError("Query failed: %v", err), nil, nil
		}
		return toolJSON(status)

	case "exam_prep":
		prep, err := t.Query.ExamPrep(input.Name)
		if err != nil {
			return toolError("Query failed: %v", err), nil, nil
		}
		return toolJSON(prep)

	case "related_concepts":
		related, err := t.Query.RelatedConcepts(input.Name, input.Depth)
		if err != nil {
			return toolError("Query failed: %v", err), nil, nil
		}
		return toolJSON(related)

	case "lecture_notes":
		course := input.Name
		if course == "" {
			course = input.Course
		}
		notes, err := t.Query.LectureNotes(course)
		if err != nil {
			return toolError("Query failed: %v", err), nil, nil
		}
		return toolJSON(notes)

	case "term_overview":
		term := input.Name
		if term == "" {
			term = input.Term
		}
		overview, err := t.Query.TermOverview(term)
		if err != nil {
			return toolError("Query failed: %v", err), nil, nil
		}
		return toolJSON(overview)

	case "active_courses":
		return toolJSON(t.Query.ActiveCourses())

	case "recently_studied":
		return toolJSON(t.Query.RecentlyStudied(0))

	case "read_graph":
		return toolJSON(t.Graph.ReadGraph())

	case "search_nodes":
		return toolJSON(t.Graph.SearchNodes(input.Query))

	case "open_nodes":
		return toolJSON(t.Graph.OpenNodes(input.Names))

	default:
		return toolError("Unknown query type %q. Supported: course_overview, upcoming_deadlines, assignment_status, exam_prep, related_concepts, lecture_notes, term_overview, active_courses, recently_studied, read_graph, search_nodes, open_nodes", input.QueryType), nil, nil
	}
}

func relationsFromInput(inputs []RelationInput) []models.Relation {
	relations := make([]models.Relation, len(inputs))
	for i, r := range inputs {
		relations[i] = models.Relation{
			From:         r.From,
			To:           r.To,
			RelationType: r.RelationType,
		}
	}
	return relations
}

// --- Helpers ---

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
