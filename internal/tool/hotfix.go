package tool

import (
	"context"

	"github.com/hansolo-dev/hansolo/internal/gitrepo"
	"github.com/hansolo-dev/hansolo/internal/sessionstore"
	"github.com/hansolo-dev/hansolo/internal/validate"
)

// HotfixInput is hotfix's input record (spec §4.6 hotfix).
type HotfixInput struct {
	Issue      string
	Severity   string
	SkipReview bool
	AutoMerge  bool
}

// Hotfix creates a hotfix branch and session, mirroring launch but on the
// hotfix machine (spec §4.6 hotfix: "same shape as launch").
func (d *Deps) Hotfix(ctx context.Context, in HotfixInput) Result {
	unlock := d.lockExclusive()
	defer unlock()

	branch := DeriveBranchName("hotfix", in.Issue)

	vctx := d.vctx(ctx)
	vctx.ProposedBranch = branch

	report := validate.Evaluate(vctx, []string{
		"hansolo-initialized", "in-git-repo", "on-main-branch", "working-directory-clean",
		"main-up-to-date", "no-existing-session", "branch-name-available",
	})
	if !report.Passed() {
		return preflightFailed(report)
	}

	if err := d.Git.CreateBranch(ctx, branch, d.Cfg.MainBranch); err != nil {
		return internalErr(report, err)
	}
	if err := d.Git.Checkout(ctx, branch, gitrepo.CheckoutOptions{}); err != nil {
		return internalErr(report, err)
	}

	sess := sessionstore.New(branch, sessionstore.WorkflowHotfix, d.Cfg.SessionTTL)
	sess.Metadata["issue"] = in.Issue
	sess.Metadata["severity"] = in.Severity
	if in.SkipReview {
		sess.Metadata["skipReview"] = "true"
	}
	if in.AutoMerge {
		sess.Metadata["autoMerge"] = "true"
	}
	sess.RecordTransition(sessionstore.StateHotfixReady, "hotfix", "", d.Cfg.SessionTTL)
	if err := d.Store.Create(sess); err != nil {
		return internalErr(report, err)
	}

	// Branch state moved out from under the pre-flight Context (checkout of
	// the new branch): evaluate post-flight against a fresh Context so the
	// cached current-branch value from pre-flight (still "main") doesn't
	// leak into the branch-checked-out post-flight result.
	postCtx := d.vctx(ctx)
	postCtx.ProposedBranch = branch
	postCtx.ExpectedSessionState = sessionstore.StateHotfixReady
	post := validate.Evaluate(postCtx, []string{"branch-checked-out", "session-state", "working-directory-clean"})

	result := Result{
		Success:    post.Passed(),
		PreFlight:  report,
		PostFlight: &post,
		Data: map[string]any{
			"branchName": branch,
			"sessionId":  sess.ID.String(),
		},
		NextSteps: []string{"commit the fix", "ship when ready"},
	}
	if !post.Passed() {
		for _, r := range post.Failed() {
			result.Errors = append(result.Errors, r.Name+": "+r.Message)
		}
	}
	return result
}
