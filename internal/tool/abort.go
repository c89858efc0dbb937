package tool

import (
	"context"

	"github.com/hansolo-dev/hansolo/internal/gitrepo"
	"github.com/hansolo-dev/hansolo/internal/sessionstore"
	"github.com/hansolo-dev/hansolo/internal/statemachine"
	"github.com/hansolo-dev/hansolo/internal/validate"
)

// AbortInput is abort's input record (spec §4.6 abort).
type AbortInput struct {
	BranchName   string
	DeleteBranch bool
}

// Abort marks a session ABORTED from any non-terminal state, optionally
// deleting its branch (spec §4.5 "any non-terminal -> ABORTED", §4.6 abort).
func (d *Deps) Abort(ctx context.Context, in AbortInput) Result {
	unlock := d.lockExclusive()
	defer unlock()

	vctx := d.vctx(ctx)
	branch := in.BranchName
	if branch == "" {
		current, err := d.Git.CurrentBranch(ctx)
		if err != nil {
			return internalErr(validate.Report{}, err)
		}
		branch = current
	}
	vctx.ProposedBranch = branch

	report := validate.Evaluate(vctx, []string{"session-exists"})
	if !report.Passed() {
		return preflightFailed(report)
	}

	_, err := d.Store.Mutate(ctx, branch, "abort", "", func(ctx context.Context, s *sessionstore.Session) error {
		if err := statemachine.Validate(s.WorkflowType, s.State, sessionstore.StateAborted, "abort"); err != nil {
			return err
		}
		s.RecordTransition(sessionstore.StateAborted, "abort", "", d.Cfg.SessionTTL)
		return nil
	})
	if err != nil {
		return internalErr(report, err)
	}

	if in.DeleteBranch {
		remoteExists, err := d.Git.BranchExists(ctx, branch, true)
		if err != nil {
			return internalErr(report, err)
		}
		current, err := d.Git.CurrentBranch(ctx)
		if err != nil {
			return internalErr(report, err)
		}
		if current == branch {
			if err := d.Git.Checkout(ctx, d.Cfg.MainBranch, gitrepo.CheckoutOptions{}); err != nil {
				return internalErr(report, err)
			}
		}
		if err := d.Git.DeleteBranch(ctx, branch, gitrepo.DeleteBranchOptions{Force: true, Remote: false}); err != nil {
			return internalErr(report, err)
		}
		if remoteExists {
			if err := d.Git.DeleteBranch(ctx, branch, gitrepo.DeleteBranchOptions{Force: true, Remote: true}); err != nil {
				return internalErr(report, err)
			}
		}
	}

	return Result{Success: true, PreFlight: report, Data: map[string]any{"branchName": branch}}
}
