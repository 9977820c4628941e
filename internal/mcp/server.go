package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/sessionhub/internal/coordinator"
	"github.com/joescharf/sessionhub/internal/models"
)

// Backend is the set of session operations the tools call: either an HTTP
// client talking to a running server or an in-process coordinator wrapped
// by NewLocalBackend.
type Backend interface {
	CreateSession(ctx context.Context, req coordinator.CreateRequest) (*coordinator.Response, error)
	SyncProjectState(ctx context.Context, req coordinator.SyncRequest) (*coordinator.Response, error)
	DeployToMaster(ctx context.Context, req coordinator.DeployRequest) (*coordinator.Response, error)
	GetStatus(ctx context.Context) (*coordinator.Response, error)
	GetSession(ctx context.Context, id string) (*coordinator.Response, error)
}

type localBackend struct {
	svc *coordinator.Service
}

// NewLocalBackend adapts an in-process coordinator to Backend.
func NewLocalBackend(svc *coordinator.Service) Backend {
	return localBackend{svc: svc}
}

func (b localBackend) CreateSession(ctx context.Context, req coordinator.CreateRequest) (*coordinator.Response, error) {
	return b.svc.CreateSession(ctx, req), nil
}

func (b localBackend) SyncProjectState(ctx context.Context, req coordinator.SyncRequest) (*coordinator.Response, error) {
	return b.svc.SyncProjectState(ctx, req), nil
}

func (b localBackend) DeployToMaster(ctx context.Context, req coordinator.DeployRequest) (*coordinator.Response, error) {
	return b.svc.DeployToMaster(ctx, req), nil
}

func (b localBackend) GetStatus(ctx context.Context) (*coordinator.Response, error) {
	return b.svc.GetStatus(ctx), nil
}

func (b localBackend) GetSession(ctx context.Context, id string) (*coordinator.Response, error) {
	return b.svc.GetSession(ctx, id), nil
}

// Server exposes session operations as MCP tools.
type Server struct {
	backend Backend
	version string
}

// NewServer creates the MCP server wrapper.
func NewServer(backend Backend, version string) *Server {
	if version == "" {
		version = "dev"
	}
	return &Server{backend: backend, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("sessionhub", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.createSessionTool())
	srv.AddTool(s.syncProjectTool())
	srv.AddTool(s.deployTool())
	srv.AddTool(s.statusTool())
	srv.AddTool(s.getSessionTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.MCPServer())
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// sessionhub_create_session
func (s *Server) createSessionTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sessionhub_create_session",
		mcp.WithDescription("Create a development session on a platform. Returns the response envelope with the session id and a signed token."),
		mcp.WithString("username", mcp.Required(), mcp.Description("Owner of the session")),
		mcp.WithString("platform", mcp.Description("replit, github-codespaces, local-vscode, docker-rust or any custom name (default: replit)")),
		mcp.WithString("email", mcp.Description("Owner email")),
		mcp.WithString("permissions", mcp.Description("Comma-separated permissions: read, write, admin, deploy (default: read,write,deploy)")),
	)
	return tool, s.handleCreateSession
}

func (s *Server) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	username, err := request.RequireString("username")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: username"), nil
	}
	req := coordinator.CreateRequest{
		Platform: request.GetString("platform", ""),
		User: coordinator.UserRequest{
			Username:    username,
			Email:       request.GetString("email", ""),
			Permissions: splitList(request.GetString("permissions", "")),
		},
	}
	resp, err := s.backend.CreateSession(ctx, req)
	return envelopeResult("create session", resp, err)
}

// sessionhub_sync_project
func (s *Server) syncProjectTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sessionhub_sync_project",
		mcp.WithDescription("Replace a session's project state (branch, modified files, compilation status). The previous state is overwritten, not merged."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id or token")),
		mcp.WithString("branch", mcp.Description("Current branch (default: main)")),
		mcp.WithString("files", mcp.Description("Comma-separated list of modified file paths")),
		mcp.WithString("compilation", mcp.Description("Compilation status: success, error, in_progress or pending, optionally followed by :detail")),
	)
	return tool, s.handleSyncProject
}

func (s *Server) handleSyncProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: session_id"), nil
	}
	compilation, err := models.ParseCompilationStatus(request.GetString("compilation", "pending"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	files := splitList(request.GetString("files", ""))
	if files == nil {
		files = []string{}
	}
	state := &models.ProjectState{
		Branch:        request.GetString("branch", "main"),
		FilesModified: files,
		Compilation:   compilation,
	}
	resp, err := s.backend.SyncProjectState(ctx, coordinator.SyncRequest{SessionID: sessionID, ProjectState: state})
	return envelopeResult("sync project", resp, err)
}

// sessionhub_deploy
func (s *Server) deployTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sessionhub_deploy",
		mcp.WithDescription("Deploy a session to master. Returns the deployment URL, timestamp and deployment id."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id or token")),
	)
	return tool, s.handleDeploy
}

func (s *Server) handleDeploy(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: session_id"), nil
	}
	resp, err := s.backend.DeployToMaster(ctx, coordinator.DeployRequest{SessionID: sessionID})
	return envelopeResult("deploy", resp, err)
}

// sessionhub_status
func (s *Server) statusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sessionhub_status",
		mcp.WithDescription("Aggregate status of active sessions: counts, compilation and deployment successes, and distribution by platform."),
	)
	return tool, s.handleStatus
}

func (s *Server) handleStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := s.backend.GetStatus(ctx)
	return envelopeResult("get status", resp, err)
}

// sessionhub_get_session
func (s *Server) getSessionTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sessionhub_get_session",
		mcp.WithDescription("Get one session: platform, user, project state, toolchain and activity timestamps. Credentials are never returned."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id or token")),
	)
	return tool, s.handleGetSession
}

func (s *Server) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: session_id"), nil
	}
	resp, err := s.backend.GetSession(ctx, sessionID)
	return envelopeResult("get session", resp, err)
}

// envelopeResult renders a response envelope as tool output. A failure
// envelope is returned as an error result carrying the same JSON.
func envelopeResult(op string, resp *coordinator.Response, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to %s: %v", op, err)), nil
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	if !resp.Success {
		return mcp.NewToolResultError(string(data)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
