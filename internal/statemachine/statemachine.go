// Package statemachine enforces the two workflow state machines (spec §4.5,
// C5): the standard launch/commit/ship machine and the hotfix machine. Any
// transition not in the edge set is illegal (spec I4).
package statemachine

import (
	"fmt"

	"github.com/hansolo-dev/hansolo/internal/hlerr"
	"github.com/hansolo-dev/hansolo/internal/sessionstore"
)

// edge is one legal (from, to, tool) tuple.
type edge struct {
	From sessionstore.State
	To   sessionstore.State
	Tool string
}

// standardEdges enumerates the standard machine (spec §4.5).
var standardEdges = []edge{
	{sessionstore.StateInit, sessionstore.StateBranchReady, "launch"},
	{sessionstore.StateBranchReady, sessionstore.StateChangesCommitted, "commit"},
	{sessionstore.StateChangesCommitted, sessionstore.StateChangesCommitted, "commit"},
	{sessionstore.StateChangesCommitted, sessionstore.StatePushed, "ship"},
	{sessionstore.StatePushed, sessionstore.StatePRCreated, "ship"},
	{sessionstore.StatePRCreated, sessionstore.StateWaitingApproval, "ship"},
	{sessionstore.StateWaitingApproval, sessionstore.StateRebasing, "ship"},
	{sessionstore.StateRebasing, sessionstore.StatePRCreated, "ship"},
	{sessionstore.StateRebasing, sessionstore.StateConflict, "ship"},
	{sessionstore.StateConflict, sessionstore.StatePRCreated, "ship"},
	{sessionstore.StateConflict, sessionstore.StateRebasing, "ship"},
	{sessionstore.StatePRCreated, sessionstore.StateMerging, "ship"},
	{sessionstore.StateWaitingApproval, sessionstore.StateMerging, "ship"},
	{sessionstore.StateMerging, sessionstore.StateCleanup, "ship"},
	{sessionstore.StateCleanup, sessionstore.StateComplete, "ship"},
}

// hotfixEdges enumerates the hotfix machine (spec §4.5). skipReview is
// handled by the hotfix tool simply never requesting the WAITING_APPROVAL
// node's ship-internal transition, not by a separate edge set.
var hotfixEdges = []edge{
	{sessionstore.StateHotfixInit, sessionstore.StateHotfixReady, "hotfix"},
	{sessionstore.StateHotfixReady, sessionstore.StateHotfixCommitted, "commit"},
	{sessionstore.StateHotfixCommitted, sessionstore.StateHotfixCommitted, "commit"},
	{sessionstore.StateHotfixCommitted, sessionstore.StateHotfixPushed, "ship"},
	{sessionstore.StateHotfixPushed, sessionstore.StateHotfixValidated, "ship"},
	{sessionstore.StateHotfixValidated, sessionstore.StateHotfixDeployed, "ship"},
	{sessionstore.StateHotfixDeployed, sessionstore.StateHotfixCleanup, "ship"},
	{sessionstore.StateHotfixCleanup, sessionstore.StateHotfixComplete, "ship"},
}

func edgesFor(wt sessionstore.WorkflowType) []edge {
	if wt == sessionstore.WorkflowHotfix {
		return hotfixEdges
	}
	return standardEdges
}

// abortTool is the one tool allowed to fire from any non-terminal state,
// regardless of workflow type (spec §4.5 "any non-terminal → ABORTED").
const abortTool = "abort"

// CanTransition reports whether (from, to, tool) is legal for wt.
func CanTransition(wt sessionstore.WorkflowType, from, to sessionstore.State, tool string) bool {
	if tool == abortTool {
		return !from.Terminal() && to == sessionstore.StateAborted
	}
	for _, e := range edgesFor(wt) {
		if e.From == from && e.To == to && e.Tool == tool {
			return true
		}
	}
	return false
}

// Validate returns an InvalidTransition error if (from, to, tool) is not a
// legal edge for wt; nil otherwise (spec I4).
func Validate(wt sessionstore.WorkflowType, from, to sessionstore.State, tool string) error {
	if CanTransition(wt, from, to, tool) {
		return nil
	}
	return hlerr.New(hlerr.KindInvalidTransition,
		fmt.Sprintf("illegal transition %s -> %s via %q for %s workflow", from, to, tool, wt))
}
