package tool

import (
	"context"

	"github.com/hansolo-dev/hansolo/internal/gitrepo"
	"github.com/hansolo-dev/hansolo/internal/sessionstore"
	"github.com/hansolo-dev/hansolo/internal/validate"
)

// LaunchInput is launch's input record (spec §4.6 launch).
type LaunchInput struct {
	BranchName  string
	Description string
	StashRef    string
	PopStash    bool
}

// Launch creates a new feature branch and its session (spec §4.6 launch).
func (d *Deps) Launch(ctx context.Context, in LaunchInput) Result {
	unlock := d.lockExclusive()
	defer unlock()

	branch := in.BranchName
	if branch == "" {
		branch = DeriveBranchName("feature", in.Description)
	}

	vctx := d.vctx(ctx)
	vctx.ProposedBranch = branch

	preNames := []string{"hansolo-initialized", "in-git-repo", "on-main-branch"}
	if in.StashRef == "" {
		preNames = append(preNames, "working-directory-clean")
	}
	preNames = append(preNames, "main-up-to-date", "no-existing-session", "branch-name-available")

	report := validate.Evaluate(vctx, preNames)
	if !report.Passed() {
		return preflightFailed(report)
	}

	if err := d.Git.CreateBranch(ctx, branch, d.Cfg.MainBranch); err != nil {
		return internalErr(report, err)
	}
	if err := d.Git.Checkout(ctx, branch, gitrepo.CheckoutOptions{}); err != nil {
		return internalErr(report, err)
	}
	poppedStash := false
	if in.StashRef != "" && in.PopStash {
		if err := d.Git.StashPop(ctx, in.StashRef); err != nil {
			return internalErr(report, err)
		}
		poppedStash = true
	}

	sess := sessionstore.New(branch, sessionstore.WorkflowStandard, d.Cfg.SessionTTL)
	sess.RecordTransition(sessionstore.StateBranchReady, "launch", "", d.Cfg.SessionTTL)
	if err := d.Store.Create(sess); err != nil {
		return internalErr(report, err)
	}

	// Branch state moved out from under the pre-flight Context (checkout of
	// the new branch): evaluate post-flight against a fresh Context so the
	// cached current-branch value from pre-flight (still "main") doesn't
	// leak into the branch-checked-out post-flight result.
	postCtx := d.vctx(ctx)
	postCtx.ProposedBranch = branch
	postCtx.ExpectedSessionState = sessionstore.StateBranchReady
	postNames := []string{"branch-checked-out", "session-state"}
	if !poppedStash {
		postNames = append(postNames, "working-directory-clean")
	}
	post := validate.Evaluate(postCtx, postNames)

	result := Result{
		Success:    post.Passed(),
		PreFlight:  report,
		PostFlight: &post,
		Data: map[string]any{
			"branchName": branch,
			"sessionId":  sess.ID.String(),
		},
		NextSteps: []string{"commit your changes", "ship when ready"},
	}
	if !post.Passed() {
		for _, r := range post.Failed() {
			result.Errors = append(result.Errors, r.Name+": "+r.Message)
		}
	}
	return result
}
