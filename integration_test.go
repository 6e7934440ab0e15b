package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/wagnerlima/studygraph/internal/models"
	"github.com/wagnerlima/studygraph/internal/query"
	"github.com/wagnerlima/studygraph/internal/schema"
	"github.com/wagnerlima/studygraph/internal/server"
	"github.com/wagnerlima/studygraph/internal/storage"
)

// setupIntegration creates a real MCP server with in-memory transport and returns a connected client session.
func setupIntegration(t *testing.T) (*mcp.ClientSession, func()) {
	t.Helper()

	dir := t.TempDir()
	log := zap.NewNop()

	graph, err := storage.OpenGraph(filepath.Join(dir, "studygraph.json"), schema.Default(), log)
	if err != nil {
		t.Fatalf("OpenGraph: %v", err)
	}
	sessions, err := storage.OpenSessions(filepath.Join(dir, "sessions.json"), log)
	if err != nil {
		t.Fatalf("OpenSessions: %v", err)
	}

	srv := server.New(graph, sessions, schema.Default(), log)

	ctx := context.Background()
	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	if _, err := srv.Connect(ctx, serverTransport, nil); err != nil {
		t.Fatalf("server connect: %v", err)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}

	cleanup := func() {
		session.Close()
	}
	return session, cleanup
}

// callTool is a helper that calls a tool and returns the text content.
func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent, got %T", name, result.Content[0])
	}
	if result.IsError {
		t.Fatalf("CallTool(%s) returned error: %s", name, tc.Text)
	}
	return tc.Text
}

// callToolExpectError calls a tool and expects an error response (IsError=true).
func callToolExpectError(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): protocol error: %v", name, err)
	}
	if !result.IsError {
		tc := result.Content[0].(*mcp.TextContent)
		t.Fatalf("CallTool(%s): expected error but got success: %s", name, tc.Text)
	}
	tc := result.Content[0].(*mcp.TextContent)
	return tc.Text
}

// stageResponse mirrors the end_session result payload.
type stageResponse struct {
	SessionID      string `json:"sessionId"`
	Stage          string `json:"stage"`
	StageNumber    int    `json:"stageNumber"`
	Completed      bool   `json:"completed"`
	StagesRecorded int    `json:"stagesRecorded"`
	Applied        *struct {
		ConceptsCreated    []string `json:"conceptsCreated"`
		AssignmentsUpdated []string `json:"assignmentsUpdated"`
		CourseUpdated      string   `json:"courseUpdated"`
		MarkerWritten      bool     `json:"markerWritten"`
	} `json:"applied"`
}

func sessionIDFromBriefing(t *testing.T, briefing string) string {
	t.Helper()
	for _, line := range strings.Split(briefing, "\n") {
		if strings.HasPrefix(line, "Session id: ") {
			return strings.TrimPrefix(line, "Session id: ")
		}
	}
	t.Fatalf("No session id in briefing:\n%s", briefing)
	return ""
}

func endSessionStage(t *testing.T, session *mcp.ClientSession, id string, number int, stage string, data map[string]any, nextNeeded bool) stageResponse {
	t.Helper()
	args := map[string]any{
		"session_id":        id,
		"stage":             stage,
		"stage_number":      number,
		"total_stages":      6,
		"next_stage_needed": nextNeeded,
	}
	if data != nil {
		args["stage_data"] = data
	}
	text := callTool(t, session, "end_session", args)
	var resp stageResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("parse end_session: %v", err)
	}
	return resp
}

func TestIntegration_ListTools(t *testing.T) {
	session, cleanup := setupIntegration(t)
	defer cleanup()

	result, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}

	expectedTools := []string{
		"start_session", "load_context", "end_session",
		"create_graph_elements", "delete_graph_elements", "query_graph",
	}

	toolNames := make(map[string]bool)
	for _, tool := range result.Tools {
		toolNames[tool.Name] = true
	}

	for _, name := range expectedTools {
		if !toolNames[name] {
			t.Errorf("Missing tool: %s", name)
		}
	}

	if len(result.Tools) != len(expectedTools) {
		t.Errorf("Expected %d tools, got %d", len(expectedTools), len(result.Tools))
	}
}

func TestIntegration_FullWorkflow(t *testing.T) {
	session, cleanup := setupIntegration(t)
	defer cleanup()

	// The server derives deadlines against the wall clock, so the fixture
	// dates are relative.
	due := time.Now().UTC().AddDate(0, 0, 3).Format("2006-01-02")
	examDate := time.Now().UTC().AddDate(0, 0, 20).Format("2006-01-02")

	// Step 1: create the whole study graph in one call.
	text := callTool(t, session, "create_graph_elements", map[string]any{
		"entities": []any{
			map[string]any{
				"name":         "Linear Algebra",
				"entity_type":  "course",
				"observations": []any{"Code: MATH 221", "Status: active"},
			},
			map[string]any{"name": "Fall 2026", "entity_type": "term"},
			map[string]any{
				"name":         "Problem Set 1",
				"entity_type":  "assignment",
				"observations": []any{"Due: " + due, "Status: in_progress"},
			},
			map[string]any{
				"name":         "Midterm 1",
				"entity_type":  "exam",
				"observations": []any{"Date: " + examDate},
			},
			map[string]any{
				"name":         "Eigenvalues",
				"entity_type":  "concept",
				"observations": []any{"Description: Scaling directions of a linear map"},
			},
		},
		"relations": []any{
			map[string]any{"from": "Linear Algebra", "to": "Fall 2026", "relation_type": "part_of"},
			map[string]any{"from": "Problem Set 1", "to": "Linear Algebra", "relation_type": "assigned_in"},
			map[string]any{"from": "Midterm 1", "to": "Linear Algebra", "relation_type": "scheduled_for"},
			map[string]any{"from": "Midterm 1", "to": "Eigenvalues", "relation_type": "covers"},
		},
		"observations": []any{
			map[string]any{"entity_name": "Linear Algebra", "contents": []any{"Schedule: MWF 10:00"}},
		},
	})
	var createReport struct {
		EntitiesCreated   int `json:"entitiesCreated"`
		RelationsCreated  int `json:"relationsCreated"`
		ObservationsAdded int `json:"observationsAdded"`
	}
	if err := json.Unmarshal([]byte(text), &createReport); err != nil {
		t.Fatalf("parse create_graph_elements: %v", err)
	}
	if createReport.EntitiesCreated != 5 || createReport.RelationsCreated != 4 || createReport.ObservationsAdded != 1 {
		t.Errorf("create report = %+v, want 5/4/1", createReport)
	}

	// Step 2: read_graph sees everything.
	text = callTool(t, session, "query_graph", map[string]any{"query_type": "read_graph"})
	var graph models.KnowledgeGraph
	if err := json.Unmarshal([]byte(text), &graph); err != nil {
		t.Fatalf("parse read_graph: %v", err)
	}
	if len(graph.Entities) != 5 || len(graph.Relations) != 4 {
		t.Errorf("graph = %d entities / %d relations, want 5/4", len(graph.Entities), len(graph.Relations))
	}

	// Step 3: course_overview joins the pieces.
	text = callTool(t, session, "query_graph", map[string]any{
		"query_type": "course_overview",
		"name":       "Linear Algebra",
	})
	var overview query.CourseOverview
	if err := json.Unmarshal([]byte(text), &overview); err != nil {
		t.Fatalf("parse course_overview: %v", err)
	}
	if overview.Term != "Fall 2026" {
		t.Errorf("Term = %q, want %q", overview.Term, "Fall 2026")
	}
	if overview.Course.Code != "MATH 221" || overview.Course.Schedule != "MWF 10:00" {
		t.Errorf("Course facets = %+v", overview.Course)
	}
	if len(overview.Assignments) != 1 || overview.Assignments[0].Name != "Problem Set 1" {
		t.Errorf("Assignments = %v, want [Problem Set 1]", overview.Assignments)
	}
	if len(overview.Exams) != 1 || overview.Exams[0].Name != "Midterm 1" {
		t.Errorf("Exams = %v, want [Midterm 1]", overview.Exams)
	}

	// Step 4: the assignment is due inside the default window, the exam is
	// not.
	text = callTool(t, session, "query_graph", map[string]any{"query_type": "upcoming_deadlines"})
	var deadlines query.DeadlineReport
	if err := json.Unmarshal([]byte(text), &deadlines); err != nil {
		t.Fatalf("parse upcoming_deadlines: %v", err)
	}
	if len(deadlines.Deadlines) != 1 || deadlines.Deadlines[0].Name != "Problem Set 1" {
		t.Errorf("Deadlines = %+v, want just Problem Set 1", deadlines.Deadlines)
	}

	// Step 5: search matches observations too.
	text = callTool(t, session, "query_graph", map[string]any{
		"query_type": "search_nodes",
		"query":      "scaling directions",
	})
	var searchResult models.KnowledgeGraph
	if err := json.Unmarshal([]byte(text), &searchResult); err != nil {
		t.Fatalf("parse search_nodes: %v", err)
	}
	if len(searchResult.Entities) != 1 || searchResult.Entities[0].Name != "Eigenvalues" {
		t.Errorf("search = %+v, want Eigenvalues", searchResult.Entities)
	}

	// Step 6: start a session and pull the id out of the briefing.
	briefing := callTool(t, session, "start_session", nil)
	if !strings.Contains(briefing, "# Study Session Started") {
		t.Errorf("briefing missing heading:\n%s", briefing)
	}
	if !strings.Contains(briefing, "Linear Algebra") {
		t.Error("briefing should list the active course")
	}
	if !strings.Contains(briefing, "Problem Set 1") {
		t.Error("briefing should list the upcoming deadline")
	}
	id := sessionIDFromBriefing(t, briefing)

	// Step 7: walk the end-of-session workflow.
	resp := endSessionStage(t, session, id, 1, "summary", map[string]any{
		"summary":          "Worked eigenvalue problems",
		"course":           "Linear Algebra",
		"duration_minutes": 50,
	}, true)
	if resp.StagesRecorded != 1 || resp.Completed {
		t.Errorf("stage 1 response = %+v", resp)
	}

	endSessionStage(t, session, id, 2, "conceptsLearned", map[string]any{
		"concepts_learned": []any{"Determinant is the product of eigenvalues"},
	}, true)
	endSessionStage(t, session, id, 3, "assignmentUpdates", map[string]any{
		"assignment_updates": []any{
			map[string]any{"assignment": "Problem Set 1", "status": "completed"},
		},
	}, true)
	endSessionStage(t, session, id, 4, "newConcepts", map[string]any{
		"new_concepts": []any{
			map[string]any{"name": "Spectral Theorem", "description": "Symmetric matrices diagonalize orthogonally"},
		},
	}, true)
	endSessionStage(t, session, id, 5, "courseStatus", map[string]any{
		"course_status":      "active",
		"course_observation": "On track for the midterm",
	}, true)

	resp = endSessionStage(t, session, id, 6, "assembly", nil, false)
	if !resp.Completed {
		t.Error("assembly response should be completed")
	}
	if resp.Applied == nil {
		t.Fatal("assembly should carry an applied report")
	}
	if len(resp.Applied.ConceptsCreated) != 2 {
		t.Fatalf("ConceptsCreated = %v, want 2", resp.Applied.ConceptsCreated)
	}
	if !strings.HasPrefix(resp.Applied.ConceptsCreated[0], "Concept ") {
		t.Errorf("Learned concept name = %q, want a dated name", resp.Applied.ConceptsCreated[0])
	}
	if resp.Applied.ConceptsCreated[1] != "Spectral Theorem" {
		t.Errorf("ConceptsCreated[1] = %q, want %q", resp.Applied.ConceptsCreated[1], "Spectral Theorem")
	}
	if len(resp.Applied.AssignmentsUpdated) != 1 || resp.Applied.AssignmentsUpdated[0] != "Problem Set 1" {
		t.Errorf("AssignmentsUpdated = %v", resp.Applied.AssignmentsUpdated)
	}
	if resp.Applied.CourseUpdated != "Linear Algebra" {
		t.Errorf("CourseUpdated = %q", resp.Applied.CourseUpdated)
	}
	if !resp.Applied.MarkerWritten {
		t.Error("completion marker should be written")
	}

	// Step 8: the workflow's effects are visible through queries.
	text = callTool(t, session, "query_graph", map[string]any{
		"query_type": "assignment_status",
		"name":       "Problem Set 1",
	})
	var status query.AssignmentStatus
	if err := json.Unmarshal([]byte(text), &status); err != nil {
		t.Fatalf("parse assignment_status: %v", err)
	}
	if status.Status != "completed" {
		t.Errorf("assignment status = %q, want completed after assembly", status.Status)
	}

	text = callTool(t, session, "query_graph", map[string]any{"query_type": "recently_studied"})
	if !strings.Contains(text, "Spectral Theorem") {
		t.Error("recently_studied should include the new concept")
	}

	// Step 9: load_context renders the course as markdown.
	text = callTool(t, session, "load_context", map[string]any{
		"entity_name": "Linear Algebra",
		"entity_type": "course",
	})
	if !strings.Contains(text, "# Linear Algebra (MATH 221)") {
		t.Errorf("course context missing heading:\n%s", text)
	}
	if !strings.Contains(text, "## Assignments") {
		t.Error("course context should have an assignments section")
	}

	// Step 10: deletions report their counts and cascades.
	text = callTool(t, session, "delete_graph_elements", map[string]any{
		"observations": []any{
			map[string]any{"entity_name": "Linear Algebra", "observations": []any{"Schedule: MWF 10:00"}},
		},
		"entities": []any{"Midterm 1"},
	})
	var deleteReport struct {
		ObservationsDeleted int `json:"observationsDeleted"`
		RelationsDeleted    int `json:"relationsDeleted"`
		EntitiesDeleted     int `json:"entitiesDeleted"`
		CascadedRelations   int `json:"cascadedRelations"`
	}
	if err := json.Unmarshal([]byte(text), &deleteReport); err != nil {
		t.Fatalf("parse delete_graph_elements: %v", err)
	}
	if deleteReport.ObservationsDeleted != 1 || deleteReport.EntitiesDeleted != 1 || deleteReport.CascadedRelations != 2 {
		t.Errorf("delete report = %+v, want 1 observation, 1 entity, 2 cascaded", deleteReport)
	}

	text = callTool(t, session, "query_graph", map[string]any{"query_type": "read_graph"})
	json.Unmarshal([]byte(text), &graph)
	if len(graph.Entities) != 6 {
		t.Errorf("entities after delete = %d, want 6", len(graph.Entities))
	}
	if len(graph.Relations) != 4 {
		t.Errorf("relations after delete = %d, want 4", len(graph.Relations))
	}
}

func TestIntegration_ErrorCases(t *testing.T) {
	session, cleanup := setupIntegration(t)
	defer cleanup()

	// Error: unknown query type.
	errText := callToolExpectError(t, session, "query_graph", map[string]any{
		"query_type": "mystery",
	})
	if !strings.Contains(errText, "Unknown query type") {
		t.Errorf("expected 'Unknown query type', got %q", errText)
	}

	// Error: query against a missing entity.
	errText = callToolExpectError(t, session, "query_graph", map[string]any{
		"query_type": "course_overview",
		"name":       "Ghost Course",
	})
	if !strings.Contains(errText, "not found") {
		t.Errorf("expected 'not found', got %q", errText)
	}

	// Error: entity type outside the vocabulary.
	errText = callToolExpectError(t, session, "create_graph_elements", map[string]any{
		"entities": []any{
			map[string]any{"name": "X", "entity_type": "starship"},
		},
	})
	if !strings.Contains(errText, "unknown entity type") {
		t.Errorf("expected 'unknown entity type', got %q", errText)
	}

	// Error: duplicate entity.
	callTool(t, session, "create_graph_elements", map[string]any{
		"entities": []any{
			map[string]any{"name": "Calculus", "entity_type": "course"},
		},
	})
	errText = callToolExpectError(t, session, "create_graph_elements", map[string]any{
		"entities": []any{
			map[string]any{"name": "Calculus", "entity_type": "course"},
		},
	})
	if !strings.Contains(errText, "duplicate entity") {
		t.Errorf("expected 'duplicate entity', got %q", errText)
	}

	// Error: relation to a missing endpoint.
	errText = callToolExpectError(t, session, "create_graph_elements", map[string]any{
		"relations": []any{
			map[string]any{"from": "Calculus", "to": "Nowhere", "relation_type": "part_of"},
		},
	})
	if !strings.Contains(errText, "not found") {
		t.Errorf("expected 'not found', got %q", errText)
	}

	// Error: load_context with a bad type, then a missing entity.
	errText = callToolExpectError(t, session, "load_context", map[string]any{
		"entity_name": "X",
		"entity_type": "starship",
	})
	if !strings.Contains(errText, "Unknown entity type") {
		t.Errorf("expected 'Unknown entity type', got %q", errText)
	}
	errText = callToolExpectError(t, session, "load_context", map[string]any{
		"entity_name": "Ghost Course",
		"entity_type": "course",
	})
	if !strings.Contains(errText, "not found") {
		t.Errorf("expected 'not found', got %q", errText)
	}

	// Error: workflow stages must run in order.
	briefing := callTool(t, session, "start_session", nil)
	id := sessionIDFromBriefing(t, briefing)
	errText = callToolExpectError(t, session, "end_session", map[string]any{
		"session_id":        id,
		"stage":             "conceptsLearned",
		"stage_number":      1,
		"next_stage_needed": true,
	})
	if !strings.Contains(errText, "out of sequence") {
		t.Errorf("expected 'out of sequence', got %q", errText)
	}

	// Error: assembly refuses an unknown session.
	errText = callToolExpectError(t, session, "end_session", map[string]any{
		"session_id":        "no-such-session",
		"stage":             "assembly",
		"stage_number":      6,
		"next_stage_needed": false,
	})
	if !strings.Contains(errText, "session not found") {
		t.Errorf("expected 'session not found', got %q", errText)
	}
}

func TestIntegration_SessionBriefingEmptyStore(t *testing.T) {
	session, cleanup := setupIntegration(t)
	defer cleanup()

	// A briefing over an empty graph states the absences instead of failing.
	briefing := callTool(t, session, "start_session", nil)
	if !strings.Contains(briefing, "No sessions recorded yet.") {
		t.Errorf("briefing missing empty-sessions line:\n%s", briefing)
	}
	if !strings.Contains(briefing, "No active courses.") {
		t.Errorf("briefing missing empty-courses line:\n%s", briefing)
	}
	if !strings.Contains(briefing, "Nothing due in this window.") {
		t.Errorf("briefing missing empty-deadlines line:\n%s", briefing)
	}
	if !strings.Contains(briefing, "No study activity recorded.") {
		t.Errorf("briefing missing empty-activity line:\n%s", briefing)
	}
}
