package tool

import (
	"context"
	"strconv"
	"strings"

	"github.com/hansolo-dev/hansolo/internal/forge"
	"github.com/hansolo-dev/hansolo/internal/gitrepo"
	"github.com/hansolo-dev/hansolo/internal/hlerr"
	"github.com/hansolo-dev/hansolo/internal/sessionstore"
	"github.com/hansolo-dev/hansolo/internal/statemachine"
	"github.com/hansolo-dev/hansolo/internal/validate"
)

// ShipInput is ship's input record (spec §4.6 ship).
type ShipInput struct {
	Push          bool
	CreatePR      bool
	Merge         bool
	PRDescription string
	PRTitle       string
}

// DefaultShipInput returns ship's documented defaults (push/createPR/merge
// all true).
func DefaultShipInput() ShipInput {
	return ShipInput{Push: true, CreatePR: true, Merge: true}
}

// Ship is the resumable sub-machine that pushes, opens/updates a PR, waits
// for checks, merges, and cleans up (spec §4.6 ship). Each invocation
// resumes from the session's current state; every step is idempotent.
func (d *Deps) Ship(ctx context.Context, in ShipInput) Result {
	unlock := d.lockExclusive()
	defer unlock()

	vctx := d.vctx(ctx)
	report := validate.Evaluate(vctx, []string{"session-exists", "not-on-main-branch", "has-commits-to-ship", "forge-authenticated", "no-merge-conflicts-with-main"})
	if !report.Passed() {
		return preflightFailed(report)
	}

	branch, err := d.Git.CurrentBranch(ctx)
	if err != nil {
		return internalErr(report, err)
	}
	sess, err := d.Store.Get(branch)
	if err != nil {
		return internalErr(report, err)
	}
	if sess == nil {
		return internalErr(report, hlerr.New(hlerr.KindNotFound, "no session for "+branch))
	}

	// If the forge already shows this PR merged, resuming tools skip
	// straight to cleanup rather than re-attempting steps 1-5 (spec §4.6
	// ship tie-break: "If the forge reports state=merged on entry").
	if sess.PR != nil {
		if pr, err := d.Forge.GetPR(ctx, branch); err == nil && pr.State == forge.PRStateMerged {
			return d.shipCleanup(ctx, vctx, report, branch, sess)
		}
	}

	switch sess.State {
	case sessionstore.StateChangesCommitted, sessionstore.StateRebasing, sessionstore.StateConflict:
		if res := d.shipRebaseAndPush(ctx, vctx, report, branch, sess, in); res != nil {
			return *res
		}
		sess, err = d.Store.Get(branch)
		if err != nil {
			return internalErr(report, err)
		}
	}

	switch sess.State {
	case sessionstore.StatePushed:
		if res := d.shipOpenOrUpdatePR(ctx, vctx, report, branch, sess, in); res != nil {
			return *res
		}
		sess, err = d.Store.Get(branch)
		if err != nil {
			return internalErr(report, err)
		}
	}

	switch sess.State {
	case sessionstore.StatePRCreated, sessionstore.StateWaitingApproval:
		res, done := d.shipWaitAndMerge(ctx, vctx, report, branch, sess, in)
		if done {
			return res
		}
		sess, err = d.Store.Get(branch)
		if err != nil {
			return internalErr(report, err)
		}
	}

	if sess.State == sessionstore.StateMerging {
		return d.shipCleanup(ctx, vctx, report, branch, sess)
	}

	return Result{Success: true, PreFlight: report, Data: map[string]any{"state": string(sess.State)}}
}

// shipRebaseAndPush performs step 1 (rebase) and step 2 (push); returns a
// non-nil *Result only when ship must stop and return to the caller
// (conflict, or a push failure).
func (d *Deps) shipRebaseAndPush(ctx context.Context, vctx *validate.Context, report validate.Report, branch string, sess *sessionstore.Session, in ShipInput) *Result {
	rebaseFrom := d.Cfg.RemoteName + "/" + d.Cfg.MainBranch
	// Reuses the pre-flight no-merge-conflicts-with-main check's cached
	// outcome for this ref instead of rebasing a second time.
	res, err := vctx.RebaseOnto(rebaseFrom)
	if err != nil {
		r := internalErr(report, err)
		return &r
	}
	if !res.OK() {
		_, err := d.Store.Mutate(ctx, branch, "ship", "", func(ctx context.Context, s *sessionstore.Session) error {
			if err := statemachine.Validate(s.WorkflowType, s.State, sessionstore.StateConflict, "ship"); err != nil {
				return err
			}
			s.RecordTransition(sessionstore.StateConflict, "ship", "", d.Cfg.SessionTTL)
			return nil
		})
		if err != nil {
			r := internalErr(report, err)
			return &r
		}
		r := Result{
			Success:   false,
			PreFlight: report,
			Errors:    []string{"rebase onto " + rebaseFrom + " produced conflicts in: " + strings.Join(res.Conflicts, ", ")},
			NextSteps: []string{"resolve conflicts and re-run ship"},
			Data:      map[string]any{"state": string(sessionstore.StateConflict), "conflicts": res.Conflicts},
		}
		return &r
	}

	if !in.Push {
		return nil
	}

	force := sess.State == sessionstore.StateRebasing || sess.State == sessionstore.StateConflict
	if err := d.Git.PushCurrent(ctx, gitrepo.PushOptions{SetUpstream: true, Force: force}); err != nil {
		r := internalErr(report, err)
		return &r
	}
	_, err = d.Store.Mutate(ctx, branch, "ship", "", func(ctx context.Context, s *sessionstore.Session) error {
		target := sessionstore.StatePushed
		if err := statemachine.Validate(s.WorkflowType, s.State, target, "ship"); err != nil {
			return err
		}
		s.RecordTransition(target, "ship", "", d.Cfg.SessionTTL)
		return nil
	})
	if err != nil {
		r := internalErr(report, err)
		return &r
	}
	return nil
}

func (d *Deps) shipOpenOrUpdatePR(ctx context.Context, vctx *validate.Context, report validate.Report, branch string, sess *sessionstore.Session, in ShipInput) *Result {
	if !in.CreatePR {
		return nil
	}

	title := in.PRTitle
	if title == "" {
		prefix := "[launch] "
		if sess.WorkflowType == sessionstore.WorkflowHotfix {
			prefix = "[hotfix] "
		}
		title = prefix + branch
	}

	var pr forge.PR
	var err error
	if sess.PR == nil {
		if in.PRDescription == "" {
			r := internalErr(report, hlerr.New(hlerr.KindUnsupported, "prDescription is required the first time a PR is created"))
			return &r
		}
		pr, err = d.Forge.OpenPR(ctx, forge.OpenPRInput{Branch: branch, Base: d.Cfg.MainBranch, Title: title, Body: in.PRDescription})
	} else {
		err = d.Forge.UpdatePR(ctx, sess.PR.Number, forge.UpdatePRInput{Title: &title, Body: &in.PRDescription})
		if err == nil {
			pr, err = d.Forge.GetPR(ctx, branch)
		}
	}
	if err != nil {
		r := internalErr(report, err)
		return &r
	}

	_, err = d.Store.Mutate(ctx, branch, "ship", "", func(ctx context.Context, s *sessionstore.Session) error {
		if err := statemachine.Validate(s.WorkflowType, s.State, sessionstore.StatePRCreated, "ship"); err != nil {
			return err
		}
		s.RecordTransition(sessionstore.StatePRCreated, "ship", "", d.Cfg.SessionTTL)
		s.PR = &sessionstore.PR{Number: pr.Number, URL: pr.URL, Base: pr.Base, Draft: pr.Draft}
		return nil
	})
	if err != nil {
		r := internalErr(report, err)
		return &r
	}
	return nil
}

// shipWaitAndMerge runs waitForChecks and, if successful, mergePR. The bool
// return reports whether ship must stop and return res now.
func (d *Deps) shipWaitAndMerge(ctx context.Context, vctx *validate.Context, report validate.Report, branch string, sess *sessionstore.Session, in ShipInput) (Result, bool) {
	if sess.PR == nil {
		return internalErr(report, hlerr.New(hlerr.KindInternal, "no PR recorded for branch in PR_CREATED state")), true
	}
	if !in.Merge {
		return Result{Success: true, PreFlight: report, Data: map[string]any{"state": string(sess.State), "prNumber": sess.PR.Number}}, true
	}

	outcome, err := d.Forge.WaitForChecks(ctx, sess.PR.Number, forge.WaitOptions{
		PollInterval:   d.Cfg.PollInterval,
		OverallTimeout: d.Cfg.OverallTimeout,
		RequiredSet:    d.Cfg.RequiredChecks,
	})
	if err != nil {
		return internalErr(report, err), true
	}
	if outcome.TimedOut {
		return internalErr(report, hlerr.New(hlerr.KindTimedOut, "waiting for checks on PR #"+strconv.Itoa(sess.PR.Number))), true
	}
	if !outcome.AllSucceeded {
		return Result{
			Success:   false,
			PreFlight: report,
			Warnings:  []string{"checks failing: " + strings.Join(outcome.Failed, ", ")},
			Data:      map[string]any{"state": string(sessionstore.StatePRCreated), "prNumber": sess.PR.Number},
			NextSteps: []string{"push a fix and re-run ship"},
		}, true
	}

	if _, err := d.Forge.MergePR(ctx, sess.PR.Number, forge.MergeOptions{Method: forge.MergeSquash}); err != nil {
		return internalErr(report, err), true
	}
	_, err = d.Store.Mutate(ctx, branch, "ship", "", func(ctx context.Context, s *sessionstore.Session) error {
		if err := statemachine.Validate(s.WorkflowType, s.State, sessionstore.StateMerging, "ship"); err != nil {
			return err
		}
		s.RecordTransition(sessionstore.StateMerging, "ship", "", d.Cfg.SessionTTL)
		return nil
	})
	if err != nil {
		return internalErr(report, err), true
	}
	return Result{}, false
}

func (d *Deps) shipCleanup(ctx context.Context, vctx *validate.Context, report validate.Report, branch string, sess *sessionstore.Session) Result {
	if err := d.Git.Checkout(ctx, d.Cfg.MainBranch, gitrepo.CheckoutOptions{}); err != nil {
		return internalErr(report, err)
	}
	if err := d.Git.PullFF(ctx, d.Cfg.MainBranch); err != nil {
		return internalErr(report, err)
	}
	if err := d.Git.DeleteBranch(ctx, branch, gitrepo.DeleteBranchOptions{Remote: false}); err != nil {
		return internalErr(report, err)
	}
	if err := d.Git.DeleteBranch(ctx, branch, gitrepo.DeleteBranchOptions{Remote: true}); err != nil {
		return internalErr(report, err)
	}

	sess, err := d.Store.Mutate(ctx, branch, "ship", "", func(ctx context.Context, s *sessionstore.Session) error {
		target := sessionstore.StateComplete
		cleanupState := sessionstore.StateCleanup
		if s.WorkflowType == sessionstore.WorkflowHotfix {
			target = sessionstore.StateHotfixComplete
			cleanupState = sessionstore.StateHotfixCleanup
		}
		if err := statemachine.Validate(s.WorkflowType, s.State, cleanupState, "ship"); err != nil {
			return err
		}
		s.RecordTransition(cleanupState, "ship", "", d.Cfg.SessionTTL)
		if err := statemachine.Validate(s.WorkflowType, s.State, target, "ship"); err != nil {
			return err
		}
		s.RecordTransition(target, "ship", "", d.Cfg.SessionTTL)
		return nil
	})
	if err != nil {
		return internalErr(report, err)
	}

	// Branch state moved out from under the pre-flight Context (checkout of
	// main, branch deletion): evaluate post-flight against a fresh Context
	// so cached current-branch/ahead-behind values from pre-flight don't
	// leak into post-flight results.
	postCtx := d.vctx(ctx)
	postCtx.ProposedBranch = branch
	postCtx.ExpectedSessionState = sess.State
	post := validate.Evaluate(postCtx, []string{"pr-merged", "on-main-branch", "working-directory-clean", "branch-deleted-local", "branch-deleted-remote", "session-state"})

	result := Result{
		Success:    post.Passed(),
		PreFlight:  report,
		PostFlight: &post,
		Data:       map[string]any{"state": string(sess.State)},
	}
	if !post.Passed() {
		for _, r := range post.Failed() {
			if r.Severity == validate.SeverityError {
				result.Errors = append(result.Errors, r.Name+": "+r.Message)
			} else {
				result.Warnings = append(result.Warnings, r.Name+": "+r.Message)
			}
		}
	}
	return result
}
