package server

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/wagnerlima/studygraph/internal/query"
	"github.com/wagnerlima/studygraph/internal/schema"
	"github.com/wagnerlima/studygraph/internal/session"
	"github.com/wagnerlima/studygraph/internal/storage"
	"github.com/wagnerlima/studygraph/internal/tools"
)

// New creates a fully configured MCP server with all tools registered.
func New(graph *storage.GraphStore, sessions *storage.SessionStore, vocab *schema.Vocabulary, log *zap.Logger) *mcp.Server {
	deriver := query.New(graph, vocab)
	workflow := session.New(graph, sessions, vocab, log)

	st := &tools.StudyTools{
		Graph:    graph,
		Sessions: sessions,
		Query:    deriver,
		Workflow: workflow,
		Vocab:    vocab,
	}
	gt := &tools.GraphTools{Graph: graph, Query: deriver}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "studygraph",
		Version: "0.1.0",
	}, nil)

	// Session workflow tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "start_session",
		Description: "Start a study session and get a briefing: recent sessions, active courses, upcoming deadlines, and recently studied concepts",
	}, st.StartSession)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "load_context",
		Description: "Load study context for one entity: course overview, assignment status, exam prep, concept neighborhood, term overview, or generic detail",
	}, st.LoadContext)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "end_session",
		Description: "Record one stage of the end-of-session workflow; the final assembly stage applies the session's findings to the knowledge graph",
	}, st.EndSession)

	// Knowledge graph tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "create_graph_elements",
		Description: "Create entities, relations, and observations in one call (entities first, so relations in the same call can bind to them)",
	}, gt.CreateGraphElements)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "delete_graph_elements",
		Description: "Delete observations, relations, and entities in one call (entity deletion cascades to touching relations)",
	}, gt.DeleteGraphElements)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "query_graph",
		Description: "Run a study query: course_overview, upcoming_deadlines, assignment_status, exam_prep, related_concepts, lecture_notes, term_overview, active_courses, recently_studied, read_graph, search_nodes, or open_nodes",
	}, gt.QueryGraph)

	return srv
}
