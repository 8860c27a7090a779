package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/branchstat/pkg/branches"
	"github.com/Sumatoshi-tech/branchstat/pkg/engine"
)

// ToolNameDetails is the branch listing details tool.
const ToolNameDetails = "branchstat_details"

const detailsToolDescription = "Compute per-branch statistics for a Git repository: " +
	"commit count, lines added and removed, distinct files touched and contributing authors, " +
	"measured against the merge base with the tracking or target branch. " +
	"Virtual branches are measured from their integration point."

// Sentinel errors for tool input validation.
var (
	ErrEmptyRepoPath       = errors.New("repo_path parameter is required and must not be empty")
	ErrRepoPathNotAbsolute = errors.New("repo_path must be an absolute path")
	ErrRepoNotFound        = errors.New("repository path does not exist")
)

// DetailsInput is the input schema for the branchstat_details tool.
type DetailsInput struct {
	RepoPath     string   `json:"repo_path"               jsonschema:"absolute path to a Git repository"`
	Branches     []string `json:"branches,omitempty"      jsonschema:"branch names to measure (default: every virtual and local branch)"`
	Target       string   `json:"target,omitempty"        jsonschema:"integration branch (default: origin/main)"`
	BaseStrategy string   `json:"base_strategy,omitempty" jsonschema:"prefer-upstream or target"`
}

// ToolOutput is the structured output of a tool call.
type ToolOutput struct {
	Data any `json:"data"`
}

func (s *Server) handleDetails(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input DetailsInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := validateRepoPath(input.RepoPath); err != nil {
		return errorResult(err)
	}

	cfg := *s.deps.Config

	if input.Target != "" {
		cfg.Target = input.Target
	}

	if input.BaseStrategy != "" {
		strategy, err := branches.ParseBaseStrategy(input.BaseStrategy)
		if err != nil {
			return errorResult(err)
		}

		cfg.Base.Strategy = string(strategy)
	}

	if err := cfg.Validate(); err != nil {
		return errorResult(err)
	}

	eng, err := engine.Open(input.RepoPath, &cfg, engine.Deps{
		Logger:   s.deps.Logger,
		Tracer:   s.deps.Tracer,
		RED:      s.deps.Metrics,
		Branches: s.deps.BranchMetrics,
	})
	if err != nil {
		return errorResult(fmt.Errorf("open repository: %w", err))
	}
	defer eng.Close()

	report, err := eng.Details(ctx, input.Branches)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(report)
}

func validateRepoPath(path string) error {
	if path == "" {
		return ErrEmptyRepoPath
	}

	if !filepath.IsAbs(path) {
		return ErrRepoPathNotAbsolute
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrRepoNotFound, path)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrRepoNotFound, path)
	}

	return nil
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, ToolOutput{Data: value}, nil
}
