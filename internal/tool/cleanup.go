package tool

import (
	"context"

	"github.com/hansolo-dev/hansolo/internal/gitrepo"
	"github.com/hansolo-dev/hansolo/internal/validate"
)

// CleanupInput is cleanup's input record (spec §4.6 cleanup).
type CleanupInput struct {
	DeleteBranches bool
}

// Cleanup removes terminal sessions whose branch is merged into main, never
// touching the currently checked-out branch (spec §4.6 cleanup). A branch
// counts as merged only when it has no commits ahead of main; a
// squash-merged branch, whose own commits never reach main, is not detected
// and its session is kept.
func (d *Deps) Cleanup(ctx context.Context, in CleanupInput) Result {
	unlock := d.lockExclusive()
	defer unlock()

	vctx := d.vctx(ctx)
	report := validate.Evaluate(vctx, []string{"in-git-repo"})
	if !report.Passed() {
		return preflightFailed(report)
	}

	// Always attempt a pullFF first so the ahead count below is taken
	// against main as updated from the remote (spec §4.6 cleanup).
	_ = d.Git.PullFF(ctx, d.Cfg.MainBranch)

	currentBranch, err := d.Git.CurrentBranch(ctx)
	if err != nil {
		return internalErr(report, err)
	}

	sessions, err := d.Store.ListAll(true)
	if err != nil {
		return internalErr(report, err)
	}

	var removed, branchesDeleted []string
	for _, sess := range sessions {
		if !sess.State.Terminal() || sess.BranchName == currentBranch {
			continue
		}
		ab, err := d.Git.BranchAheadBehind(ctx, sess.BranchName, d.Cfg.MainBranch)
		merged := err == nil && ab.Ahead == 0
		if !merged {
			continue
		}
		if err := d.Store.Remove(sess.BranchName); err != nil {
			return internalErr(report, err)
		}
		removed = append(removed, sess.BranchName)
		if in.DeleteBranches {
			localExists, _ := d.Git.BranchExists(ctx, sess.BranchName, false)
			if localExists {
				if err := d.Git.DeleteBranch(ctx, sess.BranchName, gitrepo.DeleteBranchOptions{Force: false, Remote: false}); err == nil {
					branchesDeleted = append(branchesDeleted, sess.BranchName)
				}
			}
			remoteExists, _ := d.Git.BranchExists(ctx, sess.BranchName, true)
			if remoteExists {
				_ = d.Git.DeleteBranch(ctx, sess.BranchName, gitrepo.DeleteBranchOptions{Remote: true})
			}
		}
	}

	return Result{
		Success:   true,
		PreFlight: report,
		Data: map[string]any{
			"sessionsRemoved": removed,
			"branchesDeleted": branchesDeleted,
		},
	}
}
