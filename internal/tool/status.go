package tool

import (
	"context"

	"github.com/hansolo-dev/hansolo/internal/validate"
)

// Status returns a read-only snapshot of the current branch's session and
// working tree (spec §4.6 "sessions / status: Read-only queries").
func (d *Deps) Status(ctx context.Context) Result {
	unlock := d.lockShared()
	defer unlock()

	branch, err := d.Git.CurrentBranch(ctx)
	if err != nil {
		return internalErr(validate.Report{}, err)
	}

	clean, err := d.Git.IsClean(ctx)
	if err != nil {
		return internalErr(validate.Report{}, err)
	}
	st, err := d.Git.Status(ctx)
	if err != nil {
		return internalErr(validate.Report{}, err)
	}

	data := map[string]any{
		"branchName": branch,
		"clean":      clean,
		"staged":     st.Staged,
		"unstaged":   st.Unstaged,
		"untracked":  st.Untracked,
	}

	sess, err := d.Store.Get(branch)
	if err != nil {
		return internalErr(validate.Report{}, err)
	}
	if sess != nil {
		data["session"] = map[string]any{
			"workflowType": sess.WorkflowType,
			"state":        sess.State,
			"pr":           sess.PR,
		}
	}

	return Result{Success: true, Data: data}
}
