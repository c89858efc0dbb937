package tool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hansolo-dev/hansolo/internal/config"
	"github.com/hansolo-dev/hansolo/internal/forge"
	"github.com/hansolo-dev/hansolo/internal/gitrepo"
	"github.com/hansolo-dev/hansolo/internal/sessionstore"
	"github.com/stretchr/testify/require"
)

func newTestDeps(t *testing.T, branch string) (*Deps, *gitrepo.Fake, *forge.Fake) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.WorkspaceDir = dir
	cfg.PollInterval = time.Millisecond
	cfg.OverallTimeout = 50 * time.Millisecond

	store, err := sessionstore.New(config.SessionsDir(dir), config.AuditLogPath(dir), time.Second)
	require.NoError(t, err)

	git := gitrepo.NewFake(branch)
	fg := forge.NewFake()
	return NewDeps(git, fg, store, cfg), git, fg
}

func TestLaunch_FreshLaunchSucceeds(t *testing.T) {
	d, _, _ := newTestDeps(t, "main")
	res := d.Launch(context.Background(), LaunchInput{Description: "Add user authentication"})
	require.True(t, res.Success)
	require.Equal(t, "feature/add-user-authentication", res.Data["branchName"])

	sess, err := d.Store.Get("feature/add-user-authentication")
	require.NoError(t, err)
	require.Equal(t, sessionstore.StateBranchReady, sess.State)
}

func TestLaunch_DirtyTreeBlocksWithNoSideEffects(t *testing.T) {
	d, git, _ := newTestDeps(t, "main")
	git.Clean = false

	res := d.Launch(context.Background(), LaunchInput{Description: "x"})
	require.False(t, res.Success)

	found := false
	for _, r := range res.PreFlight.Results {
		if r.Name == "working-directory-clean" && !r.Passed {
			found = true
		}
	}
	require.True(t, found)
	require.Empty(t, git.LocalBranches)

	sess, err := d.Store.Get("feature/x")
	require.NoError(t, err)
	require.Nil(t, sess)
}

func TestLaunch_ConcurrentSameNameOnlyOneSucceeds(t *testing.T) {
	d, _, _ := newTestDeps(t, "main")

	var wg sync.WaitGroup
	results := make([]Result, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = d.Launch(context.Background(), LaunchInput{BranchName: "feature/race"})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, res := range results {
		if res.Success {
			successes++
		}
	}
	require.Equal(t, 1, successes, "exactly one launch should succeed, got results: %+v", results)

	sess, err := d.Store.Get("feature/race")
	require.NoError(t, err)
	require.NotNil(t, sess)
}

func TestCommitThenShip_HappyPath(t *testing.T) {
	d, git, fg := newTestDeps(t, "main")

	launch := d.Launch(context.Background(), LaunchInput{Description: "add login"})
	require.True(t, launch.Success)
	branch := launch.Data["branchName"].(string)

	git.StatusResult = gitrepo.Status{Staged: 0, Unstaged: 1, Modified: []string{"login.go"}}
	git.Clean = false
	commit := d.Commit(context.Background(), CommitInput{Message: "feat: add login"})
	require.True(t, commit.Success)

	git.AheadBehindByPair[branch+".."+"main"] = gitrepo.AheadBehind{Ahead: 1}
	ship := d.Ship(context.Background(), ShipInput{Push: true, CreatePR: true, Merge: true, PRDescription: "adds login"})
	require.True(t, ship.Success, "ship errors: %v", ship.Errors)

	sess, err := d.Store.Get(branch)
	require.NoError(t, err)
	require.Equal(t, sessionstore.StateComplete, sess.State)
	require.Equal(t, "main", git.Branch)
	require.NotEmpty(t, fg.Merged)
}

func TestShip_ResumesAfterCIFailure(t *testing.T) {
	d, git, fg := newTestDeps(t, "main")

	launch := d.Launch(context.Background(), LaunchInput{Description: "add login"})
	branch := launch.Data["branchName"].(string)

	git.StatusResult = gitrepo.Status{Unstaged: 1}
	git.Clean = false
	d.Commit(context.Background(), CommitInput{Message: "feat: add login"})
	git.AheadBehindByPair[branch+".."+"main"] = gitrepo.AheadBehind{Ahead: 1}

	fg.WaitOutcomes = []forge.WaitOutcome{{AllSucceeded: false, Failed: []string{"lint"}}}
	first := d.Ship(context.Background(), ShipInput{Push: true, CreatePR: true, Merge: true, PRDescription: "adds login"})
	require.False(t, first.Success)
	require.Contains(t, first.Warnings[0], "lint")

	sess, err := d.Store.Get(branch)
	require.NoError(t, err)
	require.Equal(t, sessionstore.StatePRCreated, sess.State)

	second := d.Ship(context.Background(), ShipInput{Push: true, CreatePR: true, Merge: true, PRDescription: "adds login"})
	require.True(t, second.Success, "errors: %v", second.Errors)

	sess, err = d.Store.Get(branch)
	require.NoError(t, err)
	require.Equal(t, sessionstore.StateComplete, sess.State)
}

func TestSwap_WithStash(t *testing.T) {
	d, git, _ := newTestDeps(t, "main")

	a := d.Launch(context.Background(), LaunchInput{BranchName: "feature/branch-a"})
	require.True(t, a.Success)
	require.NoError(t, git.Checkout(context.Background(), "main", gitrepo.CheckoutOptions{}))
	b := d.Launch(context.Background(), LaunchInput{BranchName: "feature/branch-b"})
	require.True(t, b.Success)

	require.NoError(t, git.Checkout(context.Background(), "feature/branch-a", gitrepo.CheckoutOptions{}))
	git.Clean = false

	res := d.Swap(context.Background(), SwapInput{BranchName: "feature/branch-b", Stash: true})
	require.True(t, res.Success, "errors: %v", res.Errors)
	require.Equal(t, "feature/branch-b", git.Branch)

	sessA, err := d.Store.Get("feature/branch-a")
	require.NoError(t, err)
	require.Contains(t, sessA.Metadata["stashRef"], "stash@")
}

func TestCleanup_AfterExternalSquashMerge(t *testing.T) {
	d, git, _ := newTestDeps(t, "main")

	launch := d.Launch(context.Background(), LaunchInput{BranchName: "feature/merged-elsewhere"})
	require.True(t, launch.Success)

	require.NoError(t, git.Checkout(context.Background(), "main", gitrepo.CheckoutOptions{}))
	git.AheadBehindByPair["feature/merged-elsewhere..main"] = gitrepo.AheadBehind{Ahead: 0}
	git.LocalBranches["feature/merged-elsewhere"] = true
	git.RemoteBranches["feature/merged-elsewhere"] = true

	_, err := d.Store.Mutate(context.Background(), "feature/merged-elsewhere", "ship", "", func(ctx context.Context, s *sessionstore.Session) error {
		s.RecordTransition(sessionstore.StateChangesCommitted, "commit", "", time.Hour)
		s.RecordTransition(sessionstore.StatePushed, "ship", "", time.Hour)
		s.RecordTransition(sessionstore.StatePRCreated, "ship", "", time.Hour)
		s.RecordTransition(sessionstore.StateMerging, "ship", "", time.Hour)
		s.RecordTransition(sessionstore.StateCleanup, "ship", "", time.Hour)
		s.RecordTransition(sessionstore.StateComplete, "ship", "", time.Hour)
		return nil
	})
	require.NoError(t, err)

	res := d.Cleanup(context.Background(), CleanupInput{DeleteBranches: true})
	require.True(t, res.Success)
	require.Contains(t, res.Data["sessionsRemoved"], "feature/merged-elsewhere")
	require.Contains(t, res.Data["branchesDeleted"], "feature/merged-elsewhere")

	sess, err := d.Store.Get("feature/merged-elsewhere")
	require.NoError(t, err)
	require.Nil(t, sess)
}
