// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes time tree tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/lucasmnt/timetree/internal/index"
	"github.com/lucasmnt/timetree/internal/storage"
	"github.com/lucasmnt/timetree/internal/timetree"
)

// Server wraps the MCP server with time tree tools.
type Server struct {
	mcp    *server.MCPServer
	store  storage.Provider
	db     *index.DB
	engine *timetree.Engine
}

// New creates a new MCP server with all tools registered.
func New(store storage.Provider, db *index.DB, engine *timetree.Engine) *Server {
	s := &Server{store: store, db: db, engine: engine}

	s.mcp = server.NewMCPServer(
		"TimeTree",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("compute_time_tree",
		mcp.WithDescription("Recompute the whole time tree from the configured root: "+
			"re-read tracker blocks, aggregate descendant durations, and rescale node sizes."),
	), s.computeTimeTree)

	s.mcp.AddTool(mcp.NewTool("refresh_note",
		mcp.WithDescription("Refresh one note's elapsed time from its tracker blocks and "+
			"propagate the change up through its ancestors."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. tree/note.md)")),
	), s.refreshNote)

	s.mcp.AddTool(mcp.NewTool("get_time_summary",
		mcp.WithDescription("Read a note's stored time attributes: own elapsed seconds, "+
			"descendant total, node size, running flag, and canonical parent."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note")),
	), s.getTimeSummary)

	s.mcp.AddTool(mcp.NewTool("list_descendants",
		mcp.WithDescription("List the notes in a note's subtree, following wikilinks "+
			"within the configured scope."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the subtree root")),
	), s.listDescendants)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to the specified note, with their creation times."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the note to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a Markdown note, including its "+
			"frontmatter and tracker blocks."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note")),
	), s.readNote)

	// Resource: tracker and attribute format contract.
	s.mcp.AddResource(
		mcp.NewResource("timetree://note-contract", "Time Tree Note Contract",
			mcp.WithResourceDescription("Tracker block format and the derived frontmatter attributes."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) computeTimeTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.engine.Recompute(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("time tree recomputed"), nil
}

func (s *Server) refreshNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.engine.Touch(ctx, path); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	summary, err := s.engine.Summarize(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(summary, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getTimeSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	summary, err := s.engine.Summarize(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(summary, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listDescendants(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ok, err := s.db.Exists(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	descendants := s.engine.CollectDescendants(path)
	if len(descendants) == 0 {
		return mcp.NewToolResultText("no descendants"), nil
	}
	return mcp.NewToolResultText(strings.Join(descendants, "\n")), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.db.Backlinks(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	lines := make([]string, 0, len(bl))
	for _, b := range bl {
		lines = append(lines, fmt.Sprintf("%s (created %s)", b.Path, b.CreatedAt.Format("2006-01-02")))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.store.Read(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "timetree://note-contract",
			MIMEType: "text/markdown",
			Text:     TrackerFormatContract,
		},
	}, nil
}
