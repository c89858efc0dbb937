// Package gitrepo wraps the local version-control tool (spec §4.1, C1).
//
// It is the only package in hansolo allowed to exec "git"; every other
// component consumes the Adapter interface so it can be faked in tests.
// The exec-wrapping style (context-aware exec.Command, structured logging
// per call, trimmed stdout) follows the teacher's pkg/cli/git.go and
// pkg/workflow/github_cli.go.
package gitrepo

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hansolo-dev/hansolo/internal/hlerr"
	"github.com/hansolo-dev/hansolo/internal/hlog"
)

// DefaultTimeout is the per-call Git operation timeout (spec §5).
const DefaultTimeout = 60 * time.Second

// branchNamePattern enforces the naming regex the spec pins for every
// managed branch (spec §3, §4.6 launch).
var branchNamePattern = regexp.MustCompile(`^(feature|bugfix|hotfix|release|chore|docs|test|refactor)/[a-z0-9-]+$`)

// ValidBranchName reports whether name matches the required type/kebab shape.
func ValidBranchName(name string) bool {
	return len(name) > 0 && len(name) <= 80 && branchNamePattern.MatchString(name)
}

// Status summarizes working-tree state (spec §4.1 status()).
type Status struct {
	Staged    int
	Unstaged  int
	Untracked int
	// Modified is a bounded sample of changed paths, not the full set.
	Modified []string
}

// AheadBehind is the result of branchAheadBehind (spec §4.1).
type AheadBehind struct {
	Ahead  int
	Behind int
}

// RebaseResult is never a half-state: either Conflicts is empty (success)
// or it lists every conflicted path and the repo has been left rebase-safe
// via `git rebase --abort` (spec §4.1 failure semantics).
type RebaseResult struct {
	Conflicts []string
}

func (r RebaseResult) OK() bool { return len(r.Conflicts) == 0 }

// CheckoutOptions configures checkout (spec §4.1 checkout()).
type CheckoutOptions struct {
	Create bool
}

// DeleteBranchOptions configures deleteBranch (spec §4.1).
type DeleteBranchOptions struct {
	Force  bool
	Remote bool
}

// CommitOptions configures commit (spec §4.1).
type CommitOptions struct {
	StageAll bool
	Message  string
}

// PushOptions configures pushCurrent (spec §4.1).
type PushOptions struct {
	SetUpstream bool
	Force       bool
}

// StashOptions configures stash (spec §4.1).
type StashOptions struct {
	Message string
}

const modifiedSampleCap = 50

// Adapter is the narrow, side-effecting Git interface every other
// component depends on (spec §4.1).
type Adapter interface {
	CurrentBranch(ctx context.Context) (string, error)
	IsClean(ctx context.Context) (bool, error)
	Status(ctx context.Context) (Status, error)
	Diff(ctx context.Context, ref string) (string, error)
	Checkout(ctx context.Context, name string, opts CheckoutOptions) error
	CreateBranch(ctx context.Context, name, from string) error
	DeleteBranch(ctx context.Context, name string, opts DeleteBranchOptions) error
	Commit(ctx context.Context, opts CommitOptions) (string, error)
	PushCurrent(ctx context.Context, opts PushOptions) error
	PullFF(ctx context.Context, mainBranch string) error
	RebaseOnto(ctx context.Context, ref string) (RebaseResult, error)
	Stash(ctx context.Context, opts StashOptions) (string, error)
	StashPop(ctx context.Context, ref string) error
	StashList(ctx context.Context) ([]string, error)
	BranchExists(ctx context.Context, name string, remote bool) (bool, error)
	BranchAheadBehind(ctx context.Context, name, base string) (AheadBehind, error)
}

// Exec is the real Adapter, shelling out to the git binary in dir.
type Exec struct {
	Dir string
	log *hlog.Logger
}

// New returns an Exec adapter rooted at dir (a git working tree).
func New(dir string) *Exec {
	return &Exec{Dir: dir, log: hlog.New("git")}
}

func (g *Exec) cmd(ctx context.Context, args ...string) *exec.Cmd {
	g.log.Printf("git %s", strings.Join(args, " "))
	c := exec.CommandContext(ctx, "git", args...)
	c.Dir = g.Dir
	return c
}

func (g *Exec) run(ctx context.Context, args ...string) (string, string, error) {
	c := g.cmd(ctx, args...)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	err := c.Run()
	return strings.TrimSpace(stdout.String()), strings.TrimSpace(stderr.String()), err
}

func (g *Exec) CurrentBranch(ctx context.Context) (string, error) {
	out, stderr, err := g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", hlerr.Wrap(hlerr.KindUnsupported, "not a git repository: "+stderr, err)
	}
	return out, nil
}

func (g *Exec) IsClean(ctx context.Context) (bool, error) {
	st, err := g.Status(ctx)
	if err != nil {
		return false, err
	}
	return st.Staged == 0 && st.Unstaged == 0 && st.Untracked == 0, nil
}

func (g *Exec) Status(ctx context.Context) (Status, error) {
	out, stderr, err := g.run(ctx, "status", "--porcelain=v1", "--untracked-files=normal", "--ignored=no")
	if err != nil {
		return Status{}, hlerr.Wrap(hlerr.KindInternal, "git status failed: "+stderr, err)
	}
	var st Status
	if out == "" {
		return st, nil
	}
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 3 {
			continue
		}
		x, y, path := line[0], line[1], strings.TrimSpace(line[3:])
		switch {
		case x == '?' && y == '?':
			st.Untracked++
		default:
			if x != ' ' {
				st.Staged++
			}
			if y != ' ' {
				st.Unstaged++
			}
		}
		if len(st.Modified) < modifiedSampleCap {
			st.Modified = append(st.Modified, path)
		}
	}
	return st, nil
}

func (g *Exec) Diff(ctx context.Context, ref string) (string, error) {
	args := []string{"diff", "--stat"}
	if ref != "" {
		args = append(args, ref)
	}
	out, stderr, err := g.run(ctx, args...)
	if err != nil {
		return "", hlerr.Wrap(hlerr.KindInternal, "git diff failed: "+stderr, err)
	}
	const cap = 4000
	if len(out) > cap {
		out = out[:cap] + "\n... (truncated)"
	}
	return out, nil
}

func (g *Exec) Checkout(ctx context.Context, name string, opts CheckoutOptions) error {
	args := []string{"checkout"}
	if opts.Create {
		args = append(args, "-b")
	}
	args = append(args, name)
	_, stderr, err := g.run(ctx, args...)
	if err != nil {
		if opts.Create && strings.Contains(stderr, "already exists") {
			return hlerr.Wrap(hlerr.KindBranchConflict, "branch already exists: "+name, err)
		}
		return hlerr.Wrap(hlerr.KindInternal, "git checkout failed: "+stderr, err)
	}
	return nil
}

func (g *Exec) CreateBranch(ctx context.Context, name, from string) error {
	if !ValidBranchName(name) {
		return hlerr.New(hlerr.KindUnsupported, "branch name does not match type/kebab pattern: "+name)
	}
	args := []string{"branch", name}
	if from != "" {
		args = append(args, from)
	}
	_, stderr, err := g.run(ctx, args...)
	if err != nil {
		if strings.Contains(stderr, "already exists") {
			return hlerr.Wrap(hlerr.KindBranchConflict, "branch already exists: "+name, err)
		}
		return hlerr.Wrap(hlerr.KindInternal, "git branch failed: "+stderr, err)
	}
	return nil
}

func (g *Exec) DeleteBranch(ctx context.Context, name string, opts DeleteBranchOptions) error {
	if opts.Remote {
		_, stderr, err := g.run(ctx, "push", "origin", "--delete", name)
		if err != nil && !strings.Contains(stderr, "remote ref does not exist") {
			return hlerr.Wrap(hlerr.KindInternal, "deleting remote branch failed: "+stderr, err)
		}
		return nil
	}
	flag := "-d"
	if opts.Force {
		flag = "-D"
	}
	_, stderr, err := g.run(ctx, "branch", flag, name)
	if err != nil {
		if !opts.Force && strings.Contains(stderr, "not fully merged") {
			return hlerr.Wrap(hlerr.KindNotFullyMerged, "branch not fully merged: "+name, err)
		}
		return hlerr.Wrap(hlerr.KindInternal, "git branch -d failed: "+stderr, err)
	}
	return nil
}

func (g *Exec) Commit(ctx context.Context, opts CommitOptions) (string, error) {
	if opts.StageAll {
		if _, stderr, err := g.run(ctx, "add", "-A"); err != nil {
			return "", hlerr.Wrap(hlerr.KindInternal, "git add failed: "+stderr, err)
		}
	}
	_, stderr, err := g.run(ctx, "commit", "-m", opts.Message)
	if err != nil {
		if strings.Contains(stderr, "nothing to commit") || strings.Contains(stderr, "nothing added") {
			return "", hlerr.Wrap(hlerr.KindEmpty, "nothing to commit", err)
		}
		return "", hlerr.Wrap(hlerr.KindInternal, "git commit failed: "+stderr, err)
	}
	hash, _, err := g.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", hlerr.Wrap(hlerr.KindInternal, "resolving commit hash failed", err)
	}
	return hash, nil
}

func (g *Exec) PushCurrent(ctx context.Context, opts PushOptions) error {
	branch, err := g.CurrentBranch(ctx)
	if err != nil {
		return err
	}
	args := []string{"push"}
	if opts.Force {
		args = append(args, "--force-with-lease")
	}
	if opts.SetUpstream {
		args = append(args, "--set-upstream")
	}
	args = append(args, "origin", branch)
	_, stderr, err := g.run(ctx, args...)
	if err != nil {
		if strings.Contains(stderr, "non-fast-forward") || strings.Contains(stderr, "rejected") {
			return hlerr.Wrap(hlerr.KindRemoteRejected, "push rejected (non-fast-forward)", err)
		}
		return hlerr.Wrap(hlerr.KindInternal, "git push failed: "+stderr, err)
	}
	return nil
}

func (g *Exec) PullFF(ctx context.Context, mainBranch string) error {
	_, stderr, err := g.run(ctx, "pull", "--ff-only", "origin", mainBranch)
	if err != nil {
		if strings.Contains(stderr, "not possible to fast-forward") {
			return hlerr.Wrap(hlerr.KindNotFastForward, "main has diverged from origin/main", err)
		}
		return hlerr.Wrap(hlerr.KindInternal, "git pull --ff-only failed: "+stderr, err)
	}
	return nil
}

func (g *Exec) RebaseOnto(ctx context.Context, ref string) (RebaseResult, error) {
	_, stderr, err := g.run(ctx, "rebase", ref)
	if err == nil {
		return RebaseResult{}, nil
	}
	out, _, _ := g.run(ctx, "diff", "--name-only", "--diff-filter=U")
	var conflicts []string
	if out != "" {
		conflicts = strings.Split(out, "\n")
	}
	if len(conflicts) == 0 {
		// Not a conflict we can name; abort and surface as internal so we
		// never leave a half-rebased tree (spec §4.1 failure semantics).
		g.run(ctx, "rebase", "--abort")
		return RebaseResult{}, hlerr.Wrap(hlerr.KindInternal, "git rebase failed: "+stderr, err)
	}
	g.run(ctx, "rebase", "--abort")
	return RebaseResult{Conflicts: conflicts}, nil
}

func (g *Exec) Stash(ctx context.Context, opts StashOptions) (string, error) {
	args := []string{"stash", "push", "--include-untracked"}
	if opts.Message != "" {
		args = append(args, "-m", opts.Message)
	}
	_, stderr, err := g.run(ctx, args...)
	if err != nil {
		return "", hlerr.Wrap(hlerr.KindInternal, "git stash push failed: "+stderr, err)
	}
	list, err := g.StashList(ctx)
	if err != nil || len(list) == 0 {
		return "", hlerr.New(hlerr.KindInternal, "stash created but could not be located")
	}
	return list[0], nil
}

func (g *Exec) StashPop(ctx context.Context, ref string) error {
	args := []string{"stash", "pop"}
	if ref != "" {
		args = append(args, ref)
	}
	_, stderr, err := g.run(ctx, args...)
	if err != nil {
		return hlerr.Wrap(hlerr.KindConflict, "git stash pop failed: "+stderr, err)
	}
	return nil
}

func (g *Exec) StashList(ctx context.Context) ([]string, error) {
	out, stderr, err := g.run(ctx, "stash", "list", "--format=%gd")
	if err != nil {
		return nil, hlerr.Wrap(hlerr.KindInternal, "git stash list failed: "+stderr, err)
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

func (g *Exec) BranchExists(ctx context.Context, name string, remote bool) (bool, error) {
	ref := "refs/heads/" + name
	if remote {
		ref = "refs/remotes/origin/" + name
	}
	_, _, err := g.run(ctx, "show-ref", "--verify", "--quiet", ref)
	return err == nil, nil
}

func (g *Exec) BranchAheadBehind(ctx context.Context, name, base string) (AheadBehind, error) {
	out, stderr, err := g.run(ctx, "rev-list", "--left-right", "--count", fmt.Sprintf("%s...%s", base, name))
	if err != nil {
		return AheadBehind{}, hlerr.Wrap(hlerr.KindInternal, "git rev-list failed: "+stderr, err)
	}
	parts := strings.Fields(out)
	if len(parts) != 2 {
		return AheadBehind{}, hlerr.New(hlerr.KindInternal, "unexpected rev-list output: "+out)
	}
	behind, err1 := strconv.Atoi(parts[0])
	ahead, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return AheadBehind{}, hlerr.New(hlerr.KindInternal, "unparsable rev-list counts: "+out)
	}
	return AheadBehind{Ahead: ahead, Behind: behind}, nil
}
