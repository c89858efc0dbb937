package main

import (
	"context"
	"encoding/json"

	"github.com/hansolo-dev/hansolo/internal/hlog"
	"github.com/hansolo-dev/hansolo/internal/tool"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

var mcpLog = hlog.New("mcp:server")

// mcpErrorData marshals v for use in jsonrpc.Error.Data, returning nil
// rather than propagating a marshal failure out of an error path.
func mcpErrorData(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		mcpLog.Errorf("marshaling error data: %v", err)
		return nil
	}
	return data
}

func newMCPServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-serve",
		Short: "Serve the nine workflow tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			server := newMCPServer(d)
			return server.Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}
}

func newMCPServer(d *tool.Deps) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "hansolo",
		Version: version,
	}, &mcp.ServerOptions{
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{
				ListChanged: false,
			},
		},
	})

	type launchArgs struct {
		BranchName  string `json:"branchName,omitempty" jsonschema:"Explicit branch name; overrides description-derived slug"`
		Description string `json:"description,omitempty" jsonschema:"Free-text description used to derive the branch name"`
		StashRef    string `json:"stashRef,omitempty" jsonschema:"Stash reference to pop after checkout"`
		PopStash    *bool  `json:"popStash,omitempty" jsonschema:"Pop stashRef after checkout (default true)"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "launch",
		Description: "Create a new feature branch and session, validating the working tree and branch name first.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args launchArgs) (*mcp.CallToolResult, any, error) {
		if cancelled := checkCancelled(ctx); cancelled != nil {
			return nil, nil, cancelled
		}
		popStash := true
		if args.PopStash != nil {
			popStash = *args.PopStash
		}
		return toResult(d.Launch(ctx, tool.LaunchInput{
			BranchName: args.BranchName, Description: args.Description,
			StashRef: args.StashRef, PopStash: popStash,
		}))
	})

	type commitArgs struct {
		Message    string `json:"message" jsonschema:"Commit message"`
		StagedOnly bool   `json:"stagedOnly,omitempty" jsonschema:"Commit only staged changes instead of staging everything"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "commit",
		Description: "Commit the working tree on the current session's branch and advance its state.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args commitArgs) (*mcp.CallToolResult, any, error) {
		if cancelled := checkCancelled(ctx); cancelled != nil {
			return nil, nil, cancelled
		}
		return toResult(d.Commit(ctx, tool.CommitInput{Message: args.Message, StagedOnly: args.StagedOnly}))
	})

	type shipArgs struct {
		Push          *bool  `json:"push,omitempty" jsonschema:"Push the branch (default true)"`
		CreatePR      *bool  `json:"createPr,omitempty" jsonschema:"Open or update the pull request (default true)"`
		Merge         *bool  `json:"merge,omitempty" jsonschema:"Wait for required checks and merge (default true)"`
		PRDescription string `json:"prDescription,omitempty" jsonschema:"Pull request body, required the first time a PR is opened"`
		PRTitle       string `json:"prTitle,omitempty" jsonschema:"Pull request title override"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ship",
		Description: "Rebase onto main, push, open or update a pull request, wait for checks, merge, and clean up. Idempotent: re-invoke to resume from wherever a prior call left off.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args shipArgs) (*mcp.CallToolResult, any, error) {
		if cancelled := checkCancelled(ctx); cancelled != nil {
			return nil, nil, cancelled
		}
		in := tool.DefaultShipInput()
		if args.Push != nil {
			in.Push = *args.Push
		}
		if args.CreatePR != nil {
			in.CreatePR = *args.CreatePR
		}
		if args.Merge != nil {
			in.Merge = *args.Merge
		}
		in.PRDescription, in.PRTitle = args.PRDescription, args.PRTitle
		return toResult(d.Ship(ctx, in))
	})

	type swapArgs struct {
		BranchName string `json:"branchName" jsonschema:"Branch to swap to"`
		Stash      bool   `json:"stash,omitempty" jsonschema:"Stash the current working tree before swapping"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "swap",
		Description: "Switch to a different session's branch, optionally stashing and later restoring uncommitted work.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args swapArgs) (*mcp.CallToolResult, any, error) {
		if cancelled := checkCancelled(ctx); cancelled != nil {
			return nil, nil, cancelled
		}
		return toResult(d.Swap(ctx, tool.SwapInput{BranchName: args.BranchName, Stash: args.Stash}))
	})

	type abortArgs struct {
		BranchName   string `json:"branchName,omitempty" jsonschema:"Branch to abort, defaults to the current branch"`
		DeleteBranch bool   `json:"deleteBranch,omitempty" jsonschema:"Also delete the branch locally and remotely"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "abort",
		Description: "Mark a session aborted from any non-terminal state, optionally deleting its branch.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args abortArgs) (*mcp.CallToolResult, any, error) {
		if cancelled := checkCancelled(ctx); cancelled != nil {
			return nil, nil, cancelled
		}
		return toResult(d.Abort(ctx, tool.AbortInput{BranchName: args.BranchName, DeleteBranch: args.DeleteBranch}))
	})

	type hotfixArgs struct {
		Issue      string `json:"issue" jsonschema:"Issue identifier or description"`
		Severity   string `json:"severity,omitempty" jsonschema:"Severity label"`
		SkipReview bool   `json:"skipReview,omitempty" jsonschema:"Bypass human approval; required checks still apply"`
		AutoMerge  bool   `json:"autoMerge,omitempty" jsonschema:"Merge automatically once checks succeed"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "hotfix",
		Description: "Create a hotfix branch and session following the accelerated hotfix workflow.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args hotfixArgs) (*mcp.CallToolResult, any, error) {
		if cancelled := checkCancelled(ctx); cancelled != nil {
			return nil, nil, cancelled
		}
		return toResult(d.Hotfix(ctx, tool.HotfixInput{
			Issue: args.Issue, Severity: args.Severity,
			SkipReview: args.SkipReview, AutoMerge: args.AutoMerge,
		}))
	})

	type cleanupArgs struct {
		DeleteBranches bool `json:"deleteBranches,omitempty" jsonschema:"Also delete merged branches"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "cleanup",
		Description: "Remove terminal sessions whose branch has merged into main.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args cleanupArgs) (*mcp.CallToolResult, any, error) {
		if cancelled := checkCancelled(ctx); cancelled != nil {
			return nil, nil, cancelled
		}
		return toResult(d.Cleanup(ctx, tool.CleanupInput{DeleteBranches: args.DeleteBranches}))
	})

	type sessionsArgs struct {
		All     bool `json:"all,omitempty" jsonschema:"Include terminal sessions"`
		Verbose bool `json:"verbose,omitempty" jsonschema:"Include state history, metadata, and PR details"`
		Cleanup bool `json:"cleanup,omitempty" jsonschema:"Run cleanup instead of listing"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "sessions",
		Description: "List known sessions, or trigger cleanup.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args sessionsArgs) (*mcp.CallToolResult, any, error) {
		if cancelled := checkCancelled(ctx); cancelled != nil {
			return nil, nil, cancelled
		}
		return toResult(d.Sessions(ctx, tool.SessionsInput{All: args.All, Verbose: args.Verbose, Cleanup: args.Cleanup}))
	})

	type statusArgs struct{}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "status",
		Description: "Show the current branch's session and working-tree status.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args statusArgs) (*mcp.CallToolResult, any, error) {
		if cancelled := checkCancelled(ctx); cancelled != nil {
			return nil, nil, cancelled
		}
		return toResult(d.Status(ctx))
	})

	return server
}

// checkCancelled returns a jsonrpc.Error if ctx is already done, nil otherwise.
func checkCancelled(ctx context.Context) *jsonrpc.Error {
	select {
	case <-ctx.Done():
		return &jsonrpc.Error{
			Code:    jsonrpc.CodeInternalError,
			Message: "request cancelled",
			Data:    mcpErrorData(ctx.Err().Error()),
		}
	default:
		return nil
	}
}

// toResult renders a tool.Result as MCP tool output. Tool-level failures
// (validation blocks, adapter errors) surface as text content rather than
// a protocol-level error, since the caller needs PreFlight/PostFlight detail
// to decide what to do next.
func toResult(res tool.Result) (*mcp.CallToolResult, any, error) {
	body, err := json.Marshal(res)
	if err != nil {
		return nil, nil, &jsonrpc.Error{
			Code:    jsonrpc.CodeInternalError,
			Message: "failed to marshal tool result",
			Data:    mcpErrorData(map[string]any{"error": err.Error()}),
		}
	}
	return &mcp.CallToolResult{
		IsError: !res.Success,
		Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
	}, nil, nil
}
