package tool

import (
	"context"

	"github.com/hansolo-dev/hansolo/internal/gitrepo"
	"github.com/hansolo-dev/hansolo/internal/sessionstore"
	"github.com/hansolo-dev/hansolo/internal/statemachine"
	"github.com/hansolo-dev/hansolo/internal/validate"
)

// CommitInput is commit's input record (spec §4.6 commit).
type CommitInput struct {
	Message    string
	StagedOnly bool
}

// Commit records a commit on the current session's branch and transitions
// it to CHANGES_COMMITTED, or HOTFIX_COMMITTED for a hotfix session (spec
// §4.6 commit).
func (d *Deps) Commit(ctx context.Context, in CommitInput) Result {
	unlock := d.lockExclusive()
	defer unlock()

	vctx := d.vctx(ctx)
	report := validate.Evaluate(vctx, []string{"session-exists", "not-on-main-branch", "has-uncommitted-changes"})
	if !report.Passed() {
		return preflightFailed(report)
	}

	branch, err := d.Git.CurrentBranch(ctx)
	if err != nil {
		return internalErr(report, err)
	}

	var statusBefore gitrepo.Status
	if in.StagedOnly {
		statusBefore, err = d.Git.Status(ctx)
		if err != nil {
			return internalErr(report, err)
		}
	}

	hash, err := d.Git.Commit(ctx, gitrepo.CommitOptions{StageAll: !in.StagedOnly, Message: in.Message})
	if err != nil {
		return internalErr(report, err)
	}

	sess, err := d.Store.Mutate(ctx, branch, "commit", "", func(ctx context.Context, s *sessionstore.Session) error {
		target := sessionstore.StateChangesCommitted
		if s.WorkflowType == sessionstore.WorkflowHotfix {
			target = sessionstore.StateHotfixCommitted
		}
		if err := statemachine.Validate(s.WorkflowType, s.State, target, "commit"); err != nil {
			return err
		}
		s.RecordTransition(target, "commit", "", d.Cfg.SessionTTL)
		return nil
	})
	if err != nil {
		return internalErr(report, err)
	}

	unstagedRemaining := in.StagedOnly && (statusBefore.Unstaged > 0 || statusBefore.Untracked > 0)
	postNames := []string{"commit-created"}
	if !unstagedRemaining {
		postNames = append(postNames, "working-directory-clean")
	}
	post := validate.Evaluate(vctx, postNames)

	result := Result{
		Success:    post.Passed(),
		PreFlight:  report,
		PostFlight: &post,
		Data: map[string]any{
			"commitHash": hash,
			"state":      string(sess.State),
		},
	}
	if !post.Passed() {
		for _, r := range post.Failed() {
			result.Errors = append(result.Errors, r.Name+": "+r.Message)
		}
	}
	return result
}
