package tool

import (
	"context"

	"github.com/hansolo-dev/hansolo/internal/validate"
)

// SessionsInput is sessions's input record (spec §4.6 sessions).
type SessionsInput struct {
	All     bool
	Verbose bool
	Cleanup bool // maintenance alias for cleanup without branch deletion
}

// Sessions is a read-only query returning session snapshots (spec §4.6
// "sessions / status: Read-only queries"), except when in.Cleanup is set:
// it then runs Cleanup without branch deletion, which removes the session
// files of merged terminal sessions.
func (d *Deps) Sessions(ctx context.Context, in SessionsInput) Result {
	if in.Cleanup {
		return d.Cleanup(ctx, CleanupInput{DeleteBranches: false})
	}

	unlock := d.lockShared()
	defer unlock()

	list, err := d.Store.ListAll(in.All)
	if err != nil {
		return internalErr(validate.Report{}, err)
	}

	entries := make([]map[string]any, 0, len(list))
	for _, sess := range list {
		entry := map[string]any{
			"branchName":   sess.BranchName,
			"workflowType": sess.WorkflowType,
			"state":        sess.State,
			"createdAt":    sess.CreatedAt,
			"updatedAt":    sess.UpdatedAt,
		}
		if in.Verbose {
			entry["stateHistory"] = sess.StateHistory
			entry["metadata"] = sess.Metadata
			entry["pr"] = sess.PR
		}
		entries = append(entries, entry)
	}

	return Result{Success: true, Data: map[string]any{"sessions": entries}}
}
