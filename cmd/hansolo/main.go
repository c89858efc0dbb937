// Command hansolo is the CLI and MCP server entrypoint for the workflow
// orchestrator core (spec §1 "a thin local client" / "exposed via a Model
// Context Protocol server").
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hansolo-dev/hansolo/internal/config"
	"github.com/hansolo-dev/hansolo/internal/forge"
	"github.com/hansolo-dev/hansolo/internal/gitrepo"
	"github.com/hansolo-dev/hansolo/internal/sessionstore"
	"github.com/hansolo-dev/hansolo/internal/tool"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// version is stamped at build time via -ldflags "-X main.version=...";
// left as "dev" for local/unstamped builds.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hansolo",
		Short:         "Opinionated Git workflow orchestrator",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		newLaunchCmd(), newCommitCmd(), newShipCmd(), newSwapCmd(), newAbortCmd(),
		newHotfixCmd(), newCleanupCmd(), newSessionsCmd(), newStatusCmd(), newMCPServeCmd(),
	)
	return root
}

// buildDeps wires the four collaborators from the current working
// directory's .hansolo/ layout (spec §6 on-disk layout).
func buildDeps() (*tool.Deps, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, err
	}
	store, err := sessionstore.New(config.SessionsDir(cwd), config.AuditLogPath(cwd), cfg.SessionLockTimeout)
	if err != nil {
		return nil, err
	}

	var f forge.Forge
	switch cfg.ForgeKind {
	case config.ForgeGitLab:
		f = forge.NewGitLab()
	default:
		f = forge.NewGitHub()
	}

	return tool.NewDeps(gitrepo.New(cwd), f, store, cfg), nil
}

// printResult writes res as JSON when output is not a terminal (machine
// consumption, e.g. piped to a transport), or as indented JSON to a
// terminal for a human reading it directly — the core never emits
// terminal escape codes itself (spec §6 "Renderer" contract).
func printResult(res tool.Result) error {
	indent := ""
	if term.IsTerminal(int(os.Stdout.Fd())) {
		indent = "  "
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", indent)
	if err := enc.Encode(res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("tool reported failure")
	}
	return nil
}

func newLaunchCmd() *cobra.Command {
	var in tool.LaunchInput
	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Create a new feature branch and session",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			return printResult(d.Launch(cmd.Context(), in))
		},
	}
	cmd.Flags().StringVar(&in.BranchName, "branch-name", "", "explicit branch name (overrides description-derived slug)")
	cmd.Flags().StringVar(&in.Description, "description", "", "free-text description used to derive the branch name")
	cmd.Flags().StringVar(&in.StashRef, "stash-ref", "", "stash reference to pop after checkout")
	cmd.Flags().BoolVar(&in.PopStash, "pop-stash", true, "pop stash-ref after checkout")
	return cmd
}

func newCommitCmd() *cobra.Command {
	var in tool.CommitInput
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Commit the working tree on the current session's branch",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			return printResult(d.Commit(cmd.Context(), in))
		},
	}
	cmd.Flags().StringVar(&in.Message, "message", "", "commit message")
	cmd.Flags().BoolVar(&in.StagedOnly, "staged-only", false, "commit only staged changes")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func newShipCmd() *cobra.Command {
	in := tool.DefaultShipInput()
	cmd := &cobra.Command{
		Use:   "ship",
		Short: "Push, open/update a PR, wait for checks, merge, and clean up",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			return printResult(d.Ship(cmd.Context(), in))
		},
	}
	cmd.Flags().BoolVar(&in.Push, "push", in.Push, "push the branch")
	cmd.Flags().BoolVar(&in.CreatePR, "create-pr", in.CreatePR, "open or update the pull request")
	cmd.Flags().BoolVar(&in.Merge, "merge", in.Merge, "wait for checks and merge")
	cmd.Flags().StringVar(&in.PRDescription, "pr-description", "", "PR body (required the first time a PR is opened)")
	cmd.Flags().StringVar(&in.PRTitle, "pr-title", "", "PR title override")
	return cmd
}

func newSwapCmd() *cobra.Command {
	var in tool.SwapInput
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Switch to a different session's branch",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			return printResult(d.Swap(cmd.Context(), in))
		},
	}
	cmd.Flags().StringVar(&in.BranchName, "branch-name", "", "branch to swap to")
	cmd.Flags().BoolVar(&in.Stash, "stash", false, "stash the current working tree before swapping")
	_ = cmd.MarkFlagRequired("branch-name")
	return cmd
}

func newAbortCmd() *cobra.Command {
	var in tool.AbortInput
	cmd := &cobra.Command{
		Use:   "abort",
		Short: "Mark a session aborted, optionally deleting its branch",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			return printResult(d.Abort(cmd.Context(), in))
		},
	}
	cmd.Flags().StringVar(&in.BranchName, "branch-name", "", "branch to abort (defaults to current)")
	cmd.Flags().BoolVar(&in.DeleteBranch, "delete-branch", false, "also delete the branch")
	return cmd
}

func newHotfixCmd() *cobra.Command {
	var in tool.HotfixInput
	cmd := &cobra.Command{
		Use:   "hotfix",
		Short: "Create a hotfix branch and session",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			return printResult(d.Hotfix(cmd.Context(), in))
		},
	}
	cmd.Flags().StringVar(&in.Issue, "issue", "", "issue identifier or description")
	cmd.Flags().StringVar(&in.Severity, "severity", "", "severity label")
	cmd.Flags().BoolVar(&in.SkipReview, "skip-review", false, "bypass human approval (required checks still apply)")
	cmd.Flags().BoolVar(&in.AutoMerge, "auto-merge", false, "merge automatically once checks succeed")
	_ = cmd.MarkFlagRequired("issue")
	return cmd
}

func newCleanupCmd() *cobra.Command {
	var in tool.CleanupInput
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove terminal sessions whose branch is merged into main",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			return printResult(d.Cleanup(cmd.Context(), in))
		},
	}
	cmd.Flags().BoolVar(&in.DeleteBranches, "delete-branches", false, "also delete merged branches")
	return cmd
}

func newSessionsCmd() *cobra.Command {
	var in tool.SessionsInput
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			return printResult(d.Sessions(cmd.Context(), in))
		},
	}
	cmd.Flags().BoolVar(&in.All, "all", false, "include terminal sessions")
	cmd.Flags().BoolVar(&in.Verbose, "verbose", false, "include state history, metadata, and PR details")
	cmd.Flags().BoolVar(&in.Cleanup, "cleanup", false, "alias for cleanup without branch deletion")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current branch's session and working-tree status",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			return printResult(d.Status(cmd.Context()))
		},
	}
}
