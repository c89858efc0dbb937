package validate

import (
	"context"
	"sync"

	"github.com/hansolo-dev/hansolo/internal/config"
	"github.com/hansolo-dev/hansolo/internal/forge"
	"github.com/hansolo-dev/hansolo/internal/gitrepo"
	"github.com/hansolo-dev/hansolo/internal/sessionstore"
)

// Context aggregates every live dependency a check needs: the git and forge
// adapters, the session store, config, and the specific branch names this
// invocation cares about (spec §4.4 "eval(context)"). A Context is built per
// tool invocation; tools that change the checked-out branch (launch, hotfix,
// ship) build a fresh one for post-flight, since lookups here are memoized.
type Context struct {
	Ctx   context.Context
	Git   gitrepo.Adapter
	Forge forge.Forge
	Store *sessionstore.Store
	Cfg   *config.Config

	// ProposedBranch is set by tools that are about to create a branch
	// (launch, hotfix); CurrentBranch checks operate on the adapter's
	// live current branch unless this is overridden (e.g. swap target).
	ProposedBranch string

	// ExpectedSessionState, when non-empty, is compared by the
	// session-state={EXPECTED} post-flight check.
	ExpectedSessionState sessionstore.State

	mu               sync.Mutex
	currentBranch    string
	currentBranchSet bool
	aheadBehind      map[[2]string]gitrepo.AheadBehind
	rebaseResults    map[string]rebaseCacheEntry
}

// rebaseCacheEntry holds one memoized RebaseOnto(ref) outcome.
type rebaseCacheEntry struct {
	res gitrepo.RebaseResult
	err error
}

// NewContext builds a Context for one tool invocation.
func NewContext(ctx context.Context, git gitrepo.Adapter, f forge.Forge, store *sessionstore.Store, cfg *config.Config) *Context {
	return &Context{Ctx: ctx, Git: git, Forge: f, Store: store, Cfg: cfg, aheadBehind: map[[2]string]gitrepo.AheadBehind{}}
}

// currentBranchCached memoizes CurrentBranch() for the lifetime of this
// Context, since a single tool invocation may reference it from several
// checks (SPEC_FULL.md's per-call memoization supplement).
func (c *Context) currentBranchCached() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentBranchSet {
		return c.currentBranch, nil
	}
	branch, err := c.Git.CurrentBranch(c.Ctx)
	if err != nil {
		return "", err
	}
	c.currentBranch = branch
	c.currentBranchSet = true
	return branch, nil
}

// aheadBehindCached memoizes BranchAheadBehind(name, base) pairs, since
// main-up-to-date and has-commits-to-ship both query the same pair within
// one invocation.
func (c *Context) aheadBehindCached(name, base string) (gitrepo.AheadBehind, error) {
	key := [2]string{name, base}
	c.mu.Lock()
	if ab, ok := c.aheadBehind[key]; ok {
		c.mu.Unlock()
		return ab, nil
	}
	c.mu.Unlock()

	ab, err := c.Git.BranchAheadBehind(c.Ctx, name, base)
	if err != nil {
		return gitrepo.AheadBehind{}, err
	}
	c.mu.Lock()
	c.aheadBehind[key] = ab
	c.mu.Unlock()
	return ab, nil
}

// RebaseOnto memoizes RebaseOnto(ref) for the lifetime of this Context.
// RebaseOnto is a real, tree-mutating rebase (not a dry run), so the
// no-merge-conflicts-with-main pre-flight check and ship's own rebase step
// must share one outcome per ref rather than each triggering their own
// rebase against the same target (SPEC_FULL.md per-call memoization
// supplement; see ship.go's shipRebaseAndPush). Exported so tools can reuse
// the same cached call their own pre-flight evaluation already made.
func (c *Context) RebaseOnto(ref string) (gitrepo.RebaseResult, error) {
	c.mu.Lock()
	if c.rebaseResults == nil {
		c.rebaseResults = map[string]rebaseCacheEntry{}
	}
	if e, ok := c.rebaseResults[ref]; ok {
		c.mu.Unlock()
		return e.res, e.err
	}
	c.mu.Unlock()

	res, err := c.Git.RebaseOnto(c.Ctx, ref)
	c.mu.Lock()
	c.rebaseResults[ref] = rebaseCacheEntry{res: res, err: err}
	c.mu.Unlock()
	return res, err
}
