// Package mcp exposes read-only package lookups as Model Context Protocol
// tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/formpack-portal/internal/core/ports"
)

const (
	ToolPackageStatus  = "package_status"
	ToolPackageDetails = "package_details"
)

type Server struct {
	query     ports.PackageQueryService
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

func NewServer(name, version string, query ports.PackageQueryService, logger *slog.Logger) (*Server, error) {
	if query == nil {
		return nil, fmt.Errorf("query service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		query:     query,
		logger:    logger,
		mcpServer: server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
	}
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		ToolPackageStatus,
		mcp.WithDescription("Get the processing status of a form package"),
		mcp.WithString("packageId",
			mcp.Required(),
			mcp.Description("Identifier returned when the package was created"),
		),
	), s.handlePackageStatus)

	s.mcpServer.AddTool(mcp.NewTool(
		ToolPackageDetails,
		mcp.WithDescription("Get a form package with its form fields and filled-out submissions"),
		mcp.WithString("packageId",
			mcp.Required(),
			mcp.Description("Identifier returned when the package was created"),
		),
	), s.handlePackageDetails)
}

func (s *Server) handlePackageStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("packageId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	reading, err := s.query.Status(ctx, id)
	if err != nil {
		s.logger.WarnContext(ctx, "mcp_tool_failed", "tool", ToolPackageStatus, "package_id", id, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Package %s: %s", id, reading.Text)
	if reading.Status.IsTerminal() {
		text += " (ready)"
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handlePackageDetails(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("packageId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	pkg, report, err := s.query.Detail(ctx, id)
	if err != nil {
		s.logger.WarnContext(ctx, "mcp_tool_failed", "tool", ToolPackageDetails, "package_id", id, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Package: %s (%s)\n", pkg.Name, pkg.ID)
	fmt.Fprintf(&b, "Status: %s\n", pkg.Status)
	fmt.Fprintf(&b, "Original PDF: %s\n", pkg.OriginalPDFPath)
	fmt.Fprintf(&b, "Images with boxes: %d\n", len(pkg.ImagesWithBoxes))
	if pkg.TypeformURL != "" {
		fmt.Fprintf(&b, "Form: %s\n", pkg.TypeformURL)
	}
	fmt.Fprintf(&b, "Form fields: %d\n", len(pkg.FormFields))
	for _, field := range pkg.FormFields {
		fmt.Fprintf(&b, "  - %s [%s] %s\n", field.Name, field.Type, field.Description)
	}
	fmt.Fprintf(&b, "Submissions: %d\n", len(pkg.FilledOutPackages))
	for _, filled := range pkg.FilledOutPackages {
		fmt.Fprintf(&b, "  - %s %s\n", filled.Email, filled.PDFPath)
	}
	for _, c := range report.Collisions {
		fmt.Fprintf(&b, "Warning: %d server paths share the name %s\n", len(c.Sources), c.Basename)
	}
	for _, source := range report.Unresolved {
		fmt.Fprintf(&b, "Warning: no file name in %q\n", source)
	}

	raw, err := json.Marshal(pkg)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	b.WriteString("\n")
	b.Write(raw)
	return mcp.NewToolResultText(b.String()), nil
}

// ServeStdio blocks serving tools over stdin/stdout.
func (s *Server) ServeStdio() error {
	s.logger.Info("mcp_server_started", "transport", "stdio")
	return server.ServeStdio(s.mcpServer)
}
