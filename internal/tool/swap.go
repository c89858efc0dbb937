package tool

import (
	"context"

	"github.com/hansolo-dev/hansolo/internal/gitrepo"
	"github.com/hansolo-dev/hansolo/internal/hlerr"
	"github.com/hansolo-dev/hansolo/internal/sessionstore"
	"github.com/hansolo-dev/hansolo/internal/validate"
)

// SwapInput is swap's input record (spec §4.6 swap).
type SwapInput struct {
	BranchName string
	Stash      bool
}

// Swap checks out a different session's branch, stashing the current tree
// first if requested, and auto-pops any stash recorded for the target
// session (spec §4.6 swap).
func (d *Deps) Swap(ctx context.Context, in SwapInput) Result {
	unlock := d.lockExclusive()
	defer unlock()

	vctx := d.vctx(ctx)
	vctx.ProposedBranch = in.BranchName

	preNames := []string{"session-exists"}
	if !in.Stash {
		preNames = append(preNames, "working-directory-clean")
	}
	report := validate.Evaluate(vctx, preNames)
	if !report.Passed() {
		return preflightFailed(report)
	}

	currentBranch, err := d.Git.CurrentBranch(ctx)
	if err != nil {
		return internalErr(report, err)
	}

	if in.Stash {
		clean, err := d.Git.IsClean(ctx)
		if err != nil {
			return internalErr(report, err)
		}
		if !clean {
			ref, err := d.Git.Stash(ctx, gitrepo.StashOptions{Message: "swap-from-" + currentBranch})
			if err != nil {
				return internalErr(report, err)
			}
			if currentSess, err := d.Store.Get(currentBranch); err == nil && currentSess != nil && !currentSess.State.Terminal() {
				_, _ = d.Store.Mutate(ctx, currentBranch, "swap", "", func(ctx context.Context, s *sessionstore.Session) error {
					if s.Metadata == nil {
						s.Metadata = map[string]string{}
					}
					s.Metadata["stashRef"] = ref
					return nil
				})
			}
		}
	}

	targetSess, err := d.Store.Get(in.BranchName)
	if err != nil {
		return internalErr(report, err)
	}
	if targetSess == nil {
		return internalErr(report, hlerr.New(hlerr.KindNotFound, "no session for "+in.BranchName))
	}

	if err := d.Git.Checkout(ctx, in.BranchName, gitrepo.CheckoutOptions{}); err != nil {
		return internalErr(report, err)
	}

	if stashRef, ok := targetSess.Metadata["stashRef"]; ok && stashRef != "" {
		if err := d.Git.StashPop(ctx, stashRef); err != nil {
			return internalErr(report, err)
		}
		_, _ = d.Store.Mutate(ctx, in.BranchName, "swap", "", func(ctx context.Context, s *sessionstore.Session) error {
			delete(s.Metadata, "stashRef")
			return nil
		})
	}

	vctx.ProposedBranch = in.BranchName
	post := validate.Evaluate(vctx, []string{"branch-checked-out"})

	return Result{
		Success:    post.Passed(),
		PreFlight:  report,
		PostFlight: &post,
		Data:       map[string]any{"branchName": in.BranchName},
	}
}
