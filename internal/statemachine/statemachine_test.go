package statemachine

import (
	"testing"

	"github.com/hansolo-dev/hansolo/internal/sessionstore"
	"github.com/stretchr/testify/require"
)

func TestStandardMachine_LegalEdges(t *testing.T) {
	require.NoError(t, Validate(sessionstore.WorkflowStandard, sessionstore.StateInit, sessionstore.StateBranchReady, "launch"))
	require.NoError(t, Validate(sessionstore.WorkflowStandard, sessionstore.StateBranchReady, sessionstore.StateChangesCommitted, "commit"))
	require.NoError(t, Validate(sessionstore.WorkflowStandard, sessionstore.StateChangesCommitted, sessionstore.StateChangesCommitted, "commit"))
	require.NoError(t, Validate(sessionstore.WorkflowStandard, sessionstore.StateRebasing, sessionstore.StateConflict, "ship"))
	require.NoError(t, Validate(sessionstore.WorkflowStandard, sessionstore.StateConflict, sessionstore.StateRebasing, "ship"))
	require.NoError(t, Validate(sessionstore.WorkflowStandard, sessionstore.StateCleanup, sessionstore.StateComplete, "ship"))
}

func TestStandardMachine_IllegalEdgesRejected(t *testing.T) {
	require.Error(t, Validate(sessionstore.WorkflowStandard, sessionstore.StateInit, sessionstore.StateMerging, "ship"))
	require.Error(t, Validate(sessionstore.WorkflowStandard, sessionstore.StateBranchReady, sessionstore.StatePushed, "ship"))
	require.Error(t, Validate(sessionstore.WorkflowStandard, sessionstore.StateComplete, sessionstore.StateCleanup, "ship"))
}

func TestAbort_FiresFromAnyNonTerminalState(t *testing.T) {
	require.NoError(t, Validate(sessionstore.WorkflowStandard, sessionstore.StateBranchReady, sessionstore.StateAborted, "abort"))
	require.NoError(t, Validate(sessionstore.WorkflowStandard, sessionstore.StateWaitingApproval, sessionstore.StateAborted, "abort"))
	require.NoError(t, Validate(sessionstore.WorkflowHotfix, sessionstore.StateHotfixPushed, sessionstore.StateAborted, "abort"))
}

func TestAbort_RejectsFromTerminalState(t *testing.T) {
	require.Error(t, Validate(sessionstore.WorkflowStandard, sessionstore.StateComplete, sessionstore.StateAborted, "abort"))
	require.Error(t, Validate(sessionstore.WorkflowStandard, sessionstore.StateAborted, sessionstore.StateAborted, "abort"))
}

func TestHotfixMachine_LegalEdges(t *testing.T) {
	require.NoError(t, Validate(sessionstore.WorkflowHotfix, sessionstore.StateHotfixInit, sessionstore.StateHotfixReady, "hotfix"))
	require.NoError(t, Validate(sessionstore.WorkflowHotfix, sessionstore.StateHotfixCleanup, sessionstore.StateHotfixComplete, "ship"))
}

func TestHotfixMachine_StandardEdgesDoNotLeak(t *testing.T) {
	require.Error(t, Validate(sessionstore.WorkflowHotfix, sessionstore.StateHotfixInit, sessionstore.StateBranchReady, "launch"))
}
