package validate

import (
	"fmt"
	"strconv"

	"github.com/hansolo-dev/hansolo/internal/config"
	"github.com/hansolo-dev/hansolo/internal/forge"
	"github.com/sourcegraph/conc/pool"
)

// catalogue is the full named registry, keyed by name, shared by every
// tool's pre-flight and post-flight sets (spec §4.4 "Catalogue (minimum
// set)"). A tool declares which names it needs; Evaluate looks them up here.
var catalogue = map[string]Check{}

func register(c Check) {
	catalogue[c.Name] = c
}

func init() {
	register(Check{Name: "hansolo-initialized", Severity: SeverityError, Eval: checkHansoloInitialized})
	register(Check{Name: "in-git-repo", Severity: SeverityError, Eval: checkInGitRepo})
	register(Check{Name: "on-main-branch", Severity: SeverityError, Eval: checkOnMainBranch})
	register(Check{Name: "not-on-main-branch", Severity: SeverityError, Eval: checkNotOnMainBranch})
	register(Check{Name: "working-directory-clean", Severity: SeverityError, Eval: checkWorkingDirectoryClean})
	register(Check{Name: "main-up-to-date", Severity: SeverityError, Eval: checkMainUpToDate})
	register(Check{Name: "no-existing-session", Severity: SeverityError, Eval: checkNoExistingSession})
	register(Check{Name: "session-exists", Severity: SeverityError, Eval: checkSessionExists})
	register(Check{Name: "branch-name-available", Severity: SeverityError, Eval: checkBranchNameAvailable})
	register(Check{Name: "has-uncommitted-changes", Severity: SeverityError, Eval: checkHasUncommittedChanges})
	register(Check{Name: "has-commits-to-ship", Severity: SeverityError, Eval: checkHasCommitsToShip})
	register(Check{Name: "no-merge-conflicts-with-main", Severity: SeverityError, Eval: checkNoMergeConflictsWithMain})
	register(Check{Name: "forge-authenticated", Severity: SeverityError, Eval: checkForgeAuthenticated})

	register(Check{Name: "session-created", Severity: SeverityError, Eval: checkSessionExists})
	register(Check{Name: "branch-checked-out", Severity: SeverityError, Eval: checkBranchCheckedOut})
	register(Check{Name: "commit-created", Severity: SeverityError, Eval: checkCommitCreated})
	register(Check{Name: "pr-opened", Severity: SeverityError, Eval: checkPROpened})
	register(Check{Name: "pr-merged", Severity: SeverityError, Eval: checkPRMerged})
	register(Check{Name: "branch-deleted-local", Severity: SeverityWarning, Eval: checkBranchDeletedLocal})
	register(Check{Name: "branch-deleted-remote", Severity: SeverityWarning, Eval: checkBranchDeletedRemote})
	register(Check{Name: "session-state", Severity: SeverityError, Eval: checkSessionState})
}

// Lookup returns the registered check for name, or (zero, false) if no such
// check is registered — a programmer error in a tool's declared set.
func Lookup(name string) (Check, bool) {
	c, ok := catalogue[name]
	return c, ok
}

// Evaluate evaluates names against ctx and reports them in the order names
// lists them, with a full report even when early failures occur (spec
// §4.4). Independent checks have no side effects on one
// another, so they run concurrently via a bounded pool (SPEC_FULL.md's
// conc wiring for validation) while the result slice preserves input order.
func Evaluate(ctx *Context, names []string) Report {
	results := make([]Result, len(names))
	p := pool.New().WithMaxGoroutines(4)
	for i, name := range names {
		i, name := i, name
		p.Go(func() {
			check, ok := Lookup(name)
			if !ok {
				results[i] = fail(name, SeverityError, "unregistered check", Details{})
				return
			}
			results[i] = check.Eval(ctx)
		})
	}
	p.Wait()
	return Report{Results: results}
}

func checkHansoloInitialized(c *Context) Result {
	if c.Cfg != nil && config.Initialized(c.Cfg.WorkspaceDir) {
		return pass("hansolo-initialized", SeverityError, "workspace is initialized")
	}
	return fail("hansolo-initialized", SeverityError, "workspace is not initialized", Details{
		Suggestion: "run the init command to create .hansolo/",
	})
}

func checkInGitRepo(c *Context) Result {
	if _, err := c.Git.Status(c.Ctx); err != nil {
		return failFromErr("in-git-repo", SeverityError, err)
	}
	return pass("in-git-repo", SeverityError, "git status is runnable")
}

func checkOnMainBranch(c *Context) Result {
	branch, err := c.currentBranchCached()
	if err != nil {
		return failFromErr("on-main-branch", SeverityError, err)
	}
	if branch != c.Cfg.MainBranch {
		return fail("on-main-branch", SeverityError, "not on main branch", Details{Expected: c.Cfg.MainBranch, Actual: branch})
	}
	return pass("on-main-branch", SeverityError, "on main branch")
}

func checkNotOnMainBranch(c *Context) Result {
	branch, err := c.currentBranchCached()
	if err != nil {
		return failFromErr("not-on-main-branch", SeverityError, err)
	}
	if branch == c.Cfg.MainBranch {
		return fail("not-on-main-branch", SeverityError, "currently on main branch", Details{Actual: branch})
	}
	return pass("not-on-main-branch", SeverityError, "not on main branch")
}

func checkWorkingDirectoryClean(c *Context) Result {
	clean, err := c.Git.IsClean(c.Ctx)
	if err != nil {
		return failFromErr("working-directory-clean", SeverityError, err)
	}
	if !clean {
		return fail("working-directory-clean", SeverityError, "working directory has uncommitted changes", Details{Suggestion: "commit or stash your changes"})
	}
	return pass("working-directory-clean", SeverityError, "working directory is clean")
}

func checkMainUpToDate(c *Context) Result {
	remoteMain := c.Cfg.RemoteName + "/" + c.Cfg.MainBranch
	ab, err := c.aheadBehindCached(c.Cfg.MainBranch, remoteMain)
	if err != nil {
		return failFromErr("main-up-to-date", SeverityError, err)
	}
	if ab.Behind != 0 {
		return fail("main-up-to-date", SeverityError, "main is behind its remote", Details{Expected: "0 behind", Actual: strconv.Itoa(ab.Behind) + " behind", Suggestion: "pull main before continuing"})
	}
	return pass("main-up-to-date", SeverityError, "main is up to date")
}

func checkNoExistingSession(c *Context) Result {
	branch := c.ProposedBranch
	sess, err := c.Store.Get(branch)
	if err != nil {
		return failFromErr("no-existing-session", SeverityError, err)
	}
	if sess != nil && !sess.State.Terminal() {
		return fail("no-existing-session", SeverityError, "an active session already exists for "+branch, Details{})
	}
	return pass("no-existing-session", SeverityError, "no existing session for "+branch)
}

func checkSessionExists(c *Context) Result {
	branch, err := c.resolveSessionBranch()
	if err != nil {
		return failFromErr("session-exists", SeverityError, err)
	}
	sess, err := c.Store.Get(branch)
	if err != nil {
		return failFromErr("session-exists", SeverityError, err)
	}
	if sess == nil || sess.State.Terminal() {
		return fail("session-exists", SeverityError, "no active session for "+branch, Details{})
	}
	return pass("session-exists", SeverityError, "session exists for "+branch)
}

// resolveSessionBranch prefers an explicit ProposedBranch (tools that
// already know the target, e.g. swap), falling back to the current branch.
func (c *Context) resolveSessionBranch() (string, error) {
	if c.ProposedBranch != "" {
		return c.ProposedBranch, nil
	}
	return c.currentBranchCached()
}

func checkBranchNameAvailable(c *Context) Result {
	name := c.ProposedBranch
	localExists, err := c.Git.BranchExists(c.Ctx, name, false)
	if err != nil {
		return failFromErr("branch-name-available", SeverityError, err)
	}
	remoteExists, err := c.Git.BranchExists(c.Ctx, name, true)
	if err != nil {
		return failFromErr("branch-name-available", SeverityError, err)
	}
	if localExists || remoteExists {
		return fail("branch-name-available", SeverityError, "branch "+name+" already exists", Details{Actual: fmt.Sprintf("local=%v remote=%v", localExists, remoteExists)})
	}
	return pass("branch-name-available", SeverityError, "branch name "+name+" is available")
}

func checkHasUncommittedChanges(c *Context) Result {
	clean, err := c.Git.IsClean(c.Ctx)
	if err != nil {
		return failFromErr("has-uncommitted-changes", SeverityError, err)
	}
	if clean {
		return fail("has-uncommitted-changes", SeverityError, "nothing to commit", Details{})
	}
	return pass("has-uncommitted-changes", SeverityError, "working directory has uncommitted changes")
}

func checkHasCommitsToShip(c *Context) Result {
	branch, err := c.currentBranchCached()
	if err != nil {
		return failFromErr("has-commits-to-ship", SeverityError, err)
	}
	ab, err := c.aheadBehindCached(branch, c.Cfg.MainBranch)
	if err != nil {
		return failFromErr("has-commits-to-ship", SeverityError, err)
	}
	if ab.Ahead == 0 {
		return fail("has-commits-to-ship", SeverityError, "no commits ahead of "+c.Cfg.MainBranch, Details{})
	}
	return pass("has-commits-to-ship", SeverityError, "branch has commits to ship")
}

func checkNoMergeConflictsWithMain(c *Context) Result {
	branch, err := c.currentBranchCached()
	if err != nil {
		return failFromErr("no-merge-conflicts-with-main", SeverityError, err)
	}
	// Same ref ship's own rebase step targets (RemoteName/MainBranch), and
	// memoized on the Context so this pre-flight probe and ship's real
	// rebase share one underlying RebaseOnto call instead of rebasing twice.
	rebaseFrom := c.Cfg.RemoteName + "/" + c.Cfg.MainBranch
	res, err := c.RebaseOnto(rebaseFrom)
	if err != nil {
		return failFromErr("no-merge-conflicts-with-main", SeverityError, err)
	}
	if !res.OK() {
		return fail("no-merge-conflicts-with-main", SeverityError, "rebasing "+branch+" onto "+rebaseFrom+" would conflict", Details{Actual: fmt.Sprintf("%v", res.Conflicts)})
	}
	return pass("no-merge-conflicts-with-main", SeverityError, "no conflicts with "+rebaseFrom)
}

func checkForgeAuthenticated(c *Context) Result {
	who, err := c.Forge.WhoAmI(c.Ctx)
	if err != nil {
		return failFromErr("forge-authenticated", SeverityError, err)
	}
	return pass("forge-authenticated", SeverityError, "authenticated as "+who)
}

func checkBranchCheckedOut(c *Context) Result {
	branch, err := c.currentBranchCached()
	if err != nil {
		return failFromErr("branch-checked-out", SeverityError, err)
	}
	if c.ProposedBranch != "" && branch != c.ProposedBranch {
		return fail("branch-checked-out", SeverityError, "expected branch checked out", Details{Expected: c.ProposedBranch, Actual: branch})
	}
	return pass("branch-checked-out", SeverityError, "branch checked out: "+branch)
}

func checkCommitCreated(c *Context) Result {
	clean, err := c.Git.IsClean(c.Ctx)
	if err != nil {
		return failFromErr("commit-created", SeverityError, err)
	}
	if !clean {
		return fail("commit-created", SeverityError, "working directory still has uncommitted changes after commit", Details{})
	}
	return pass("commit-created", SeverityError, "commit created, working directory clean")
}

func checkPROpened(c *Context) Result {
	branch, err := c.resolveSessionBranch()
	if err != nil {
		return failFromErr("pr-opened", SeverityError, err)
	}
	pr, err := c.Forge.GetPR(c.Ctx, branch)
	if err != nil {
		return failFromErr("pr-opened", SeverityError, err)
	}
	return pass("pr-opened", SeverityError, fmt.Sprintf("PR #%d open", pr.Number))
}

func checkPRMerged(c *Context) Result {
	branch, err := c.resolveSessionBranch()
	if err != nil {
		return failFromErr("pr-merged", SeverityError, err)
	}
	pr, err := c.Forge.GetPR(c.Ctx, branch)
	if err != nil {
		return failFromErr("pr-merged", SeverityError, err)
	}
	if pr.State != forge.PRStateMerged {
		return fail("pr-merged", SeverityError, "PR is not merged", Details{Actual: string(pr.State)})
	}
	return pass("pr-merged", SeverityError, fmt.Sprintf("PR #%d merged", pr.Number))
}

func checkBranchDeletedLocal(c *Context) Result {
	exists, err := c.Git.BranchExists(c.Ctx, c.ProposedBranch, false)
	if err != nil {
		return failFromErr("branch-deleted-local", SeverityWarning, err)
	}
	if exists {
		return fail("branch-deleted-local", SeverityWarning, "local branch "+c.ProposedBranch+" still exists", Details{})
	}
	return pass("branch-deleted-local", SeverityWarning, "local branch deleted")
}

func checkBranchDeletedRemote(c *Context) Result {
	exists, err := c.Git.BranchExists(c.Ctx, c.ProposedBranch, true)
	if err != nil {
		return failFromErr("branch-deleted-remote", SeverityWarning, err)
	}
	if exists {
		return fail("branch-deleted-remote", SeverityWarning, "remote branch "+c.ProposedBranch+" still exists", Details{})
	}
	return pass("branch-deleted-remote", SeverityWarning, "remote branch deleted")
}

func checkSessionState(c *Context) Result {
	branch, err := c.resolveSessionBranch()
	if err != nil {
		return failFromErr("session-state", SeverityError, err)
	}
	sess, err := c.Store.Get(branch)
	if err != nil {
		return failFromErr("session-state", SeverityError, err)
	}
	if sess == nil {
		return fail("session-state", SeverityError, "no session for "+branch, Details{Expected: string(c.ExpectedSessionState)})
	}
	if sess.State != c.ExpectedSessionState {
		return fail("session-state", SeverityError, "session in unexpected state", Details{Expected: string(c.ExpectedSessionState), Actual: string(sess.State)})
	}
	return pass("session-state", SeverityError, "session in expected state "+string(sess.State))
}
