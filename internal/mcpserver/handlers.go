package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	ierr "github.com/mark3labs/forgeloop/internal/errors"
	"github.com/mark3labs/forgeloop/internal/publish"
	"github.com/mark3labs/forgeloop/internal/service"
	"github.com/mark3labs/mcp-go/mcp"
)

// Resource URIs.
const (
	StatusURI = "forgeloop://status"
	ConfigURI = "forgeloop://config"
)

const noBuild = "No build in progress"

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("start_build",
			mcp.WithDescription("Start a build loop that generates and reviews a project until the goal is met"),
			mcp.WithString("project_spec", mcp.Required(),
				mcp.Description("Detailed specification of the website or SaaS to build"),
			),
			mcp.WithString("goal", mcp.Required(),
				mcp.Description("The exact goal to achieve, e.g. 'Fully functional e-commerce site with payment integration'"),
			),
			mcp.WithNumber("max_iterations",
				mcp.Description("Maximum number of improvement iterations; 0 or omitted uses the configured default (50)"),
			),
		),
		s.handleStartBuild,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_build_status",
			mcp.WithDescription("Get the current status of the build"),
		),
		s.handleGetBuildStatus,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("stop_build",
			mcp.WithDescription("Stop the current build"),
		),
		s.handleStopBuild,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_build_history",
			mcp.WithDescription("Get the recorded history of the current build, or of a past run from the event log"),
			mcp.WithString("run",
				mcp.Description("Run ID to replay from the event log (optional)"),
			),
		),
		s.handleGetBuildHistory,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("export_to_github",
			mcp.WithDescription("Export the built project to GitHub"),
			mcp.WithString("repo_name", mcp.Required(),
				mcp.Description("GitHub repository name, optionally owner/name"),
			),
			mcp.WithString("github_token",
				mcp.Description("GitHub personal access token (defaults to the configured github credential)"),
			),
			mcp.WithString("organization",
				mcp.Description("GitHub organization (optional)"),
			),
			mcp.WithBoolean("private",
				mcp.Description("Create the repository as private"),
			),
		),
		s.handleExportToGitHub,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("request_credentials",
			mcp.WithDescription("Request API keys and credentials needed for the project"),
			mcp.WithArray("required_services", mcp.Required(),
				mcp.Description("Services that need credentials, e.g. ['database', 'stripe', 'openai']"),
				mcp.Items(map[string]any{"type": "string"}),
			),
		),
		s.handleRequestCredentials,
	)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcp.NewResource(StatusURI, "Build Status",
			mcp.WithResourceDescription("Current status of the build loop"),
			mcp.WithMIMEType("application/json"),
		),
		s.handleStatusResource,
	)
	s.mcpServer.AddResource(
		mcp.NewResource(ConfigURI, "Builder Configuration",
			mcp.WithResourceDescription("Effective configuration with credentials masked"),
			mcp.WithMIMEType("application/json"),
		),
		s.handleConfigResource,
	)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// handleStartBuild starts a build in the background and returns immediately.
func (s *Server) handleStartBuild(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := service.Request{
		ProjectSpec:   strings.TrimSpace(request.GetString("project_spec", "")),
		Goal:          strings.TrimSpace(request.GetString("goal", "")),
		MaxIterations: request.GetInt("max_iterations", 0),
	}
	if req.ProjectSpec == "" || req.Goal == "" {
		return mcp.NewToolResultError("project_spec and goal are required"), nil
	}

	st, err := s.svc.StartBuild(req)
	if errors.Is(err, ierr.ErrBuildRunning) {
		return mcp.NewToolResultError("a build is already running; stop it before starting another"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start build: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Build started! Goal: %s\nMaximum iterations: %d\nRun: %s\nThe builder and reviewer will now loop until the goal is achieved.",
		st.Goal, st.MaxIterations, st.RunID,
	)), nil
}

func (s *Server) handleGetBuildStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.svc.Status()
	if errors.Is(err, ierr.ErrNoBuild) {
		return mcp.NewToolResultText(noBuild), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(st)
}

func (s *Server) handleStopBuild(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.svc.Stop(); err != nil {
		if errors.Is(err, ierr.ErrNoBuild) {
			return mcp.NewToolResultText(noBuild), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Build stopped"), nil
}

func (s *Server) handleGetBuildHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if run := request.GetString("run", ""); run != "" {
		if s.events == nil {
			return mcp.NewToolResultError("event log is disabled"), nil
		}
		state, err := s.events.LoadState(ctx, run)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to load run %s: %v", run, err)), nil
		}
		return jsonResult(state)
	}

	doc, err := s.svc.History()
	if errors.Is(err, ierr.ErrNoBuild) {
		return mcp.NewToolResultText(noBuild), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(doc)
}

func (s *Server) handleExportToGitHub(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := publish.Options{
		RepoName:     strings.TrimSpace(request.GetString("repo_name", "")),
		Token:        request.GetString("github_token", ""),
		Organization: request.GetString("organization", ""),
		Private:      request.GetBool("private", false),
		CreateRepo:   true,
	}
	if opts.Token == "" {
		opts.Token, _ = s.svc.Config().Credential("github")
	}
	if opts.RepoName == "" || opts.Token == "" {
		return mcp.NewToolResultError("repo_name and github_token are required"), nil
	}

	res, err := s.svc.Export(ctx, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Export failed: %v", err)), nil
	}
	return mcp.NewToolResultText(res.Message()), nil
}

// CredentialRequest lists the credentials a project needs and which of
// them are already configured.
type CredentialRequest struct {
	Message      string   `json:"message"`
	Services     []string `json:"services"`
	Configured   []string `json:"configured"`
	Missing      []string `json:"missing"`
	Instructions string   `json:"instructions"`
}

func (s *Server) handleRequestCredentials(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	services := request.GetStringSlice("required_services", nil)
	if len(services) == 0 {
		return mcp.NewToolResultError("at least one service is required"), nil
	}

	cfg := s.svc.Config()
	out := CredentialRequest{
		Message:      "The builder requires the following credentials:",
		Services:     services,
		Configured:   []string{},
		Missing:      []string{},
		Instructions: "Provide them with `forgeloop credentials set <service> <key>` or the matching environment variable",
	}
	for _, svc := range services {
		if _, ok := cfg.Credential(svc); ok {
			out.Configured = append(out.Configured, svc)
		} else {
			out.Missing = append(out.Missing, svc)
		}
	}
	return jsonResult(out)
}

// StatusResource is the payload of forgeloop://status.
type StatusResource struct {
	Status    string  `json:"status"`
	RunID     string  `json:"run_id,omitempty"`
	Phase     string  `json:"phase,omitempty"`
	Iteration int     `json:"iteration"`
	Score     float64 `json:"score"`
}

func (s *Server) handleStatusResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	out := StatusResource{Status: "ready"}
	if st, err := s.svc.Status(); err == nil {
		out.Status = "finished"
		if st.IsRunning {
			out.Status = "running"
		}
		out.RunID = st.RunID
		out.Phase = string(st.Phase)
		out.Iteration = st.CurrentIteration
		out.Score = st.LatestScore
	}
	return jsonResource(request.Params.URI, out)
}

func (s *Server) handleConfigResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(request.Params.URI, s.svc.Config().Redacted())
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
