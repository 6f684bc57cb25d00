package mcp

import (
	"context"
	"io"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/phenotype-mcp/internal/app"
)

// EndpointPath is where the streamable HTTP transport is mounted
const EndpointPath = "/mcp"

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	app      *app.App
	tools    []string
	handlers map[string]server.ToolHandlerFunc
}

// NewServer creates a new MCP server instance over the handles in a
func NewServer(a *app.App) *Server {
	mcpServer := server.NewMCPServer(
		app.ServerName,
		app.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		mcp:      mcpServer,
		app:      a,
		handlers: make(map[string]server.ToolHandlerFunc),
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying mcp-go server
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Tools returns the registered tool names in registration order
func (s *Server) Tools() []string {
	return append([]string(nil), s.tools...)
}

// ServeStdio serves MCP over in/out until ctx is cancelled or in closes
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	return stdio.Listen(ctx, in, out)
}

// HTTPHandler returns the streamable HTTP transport, served at EndpointPath
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp, server.WithEndpointPath(EndpointPath))
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	for _, t := range []struct {
		tool mcp.Tool
		fn   toolFunc
	}{
		{genesByHPOTool(), s.handleGenesByHPO},
		{hpoByGeneTool(), s.handleHPOByGene},
		{diseasesByGeneTool(), s.handleDiseasesByGene},
		{genesByDiseaseTool(), s.handleGenesByDisease},
		{diseasesByHPOTool(), s.handleDiseasesByHPO},
		{hpoByDiseaseTool(), s.handleHPOByDisease},
		{hpoNameByIDTool(), s.handleHPONameByID},
		{searchSymptomTool(), s.handleSearchSymptom},
		{englishWorkflowTool(), s.handleEnglishWorkflow},
		{chineseWorkflowTool(), s.handleChineseWorkflow},
		{chineseWorkflowAliasTool(), s.handleChineseWorkflow},
		{getServerStatusTool(), s.handleGetServerStatus},
	} {
		h := s.handle(t.tool.Name, t.fn)
		s.mcp.AddTool(t.tool, h)
		s.tools = append(s.tools, t.tool.Name)
		s.handlers[t.tool.Name] = h
	}
}
