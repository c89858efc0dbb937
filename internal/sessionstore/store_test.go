package sessionstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	st, err := New(filepath.Join(dir, "sessions"), filepath.Join(dir, "audit.log"), time.Second)
	require.NoError(t, err)
	return st
}

func TestCreate_RejectsDuplicateActiveSession(t *testing.T) {
	st := newTestStore(t)
	sess := New("feature/add-x", WorkflowStandard, time.Hour)
	sess.State = StateBranchReady
	require.NoError(t, st.Create(sess))

	dup := New("feature/add-x", WorkflowStandard, time.Hour)
	dup.State = StateBranchReady
	err := st.Create(dup)
	require.Error(t, err)
}

func TestCreate_AllowsReuseAfterTerminal(t *testing.T) {
	st := newTestStore(t)
	sess := New("feature/add-x", WorkflowStandard, time.Hour)
	sess.State = StateComplete
	require.NoError(t, st.Create(sess))

	again := New("feature/add-x", WorkflowStandard, time.Hour)
	again.State = StateBranchReady
	require.NoError(t, st.Create(again))
}

func TestMutate_AppliesAndPersists(t *testing.T) {
	st := newTestStore(t)
	sess := New("feature/add-x", WorkflowStandard, time.Hour)
	sess.State = StateBranchReady
	require.NoError(t, st.Create(sess))

	updated, err := st.Mutate(context.Background(), "feature/add-x", "commit", "tester", func(ctx context.Context, s *Session) error {
		s.RecordTransition(StateChangesCommitted, "commit", "tester", time.Hour)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, StateChangesCommitted, updated.State)

	reloaded, err := st.Get("feature/add-x")
	require.NoError(t, err)
	require.Equal(t, StateChangesCommitted, reloaded.State)
	require.Len(t, reloaded.StateHistory, 1)
}

func TestMutate_FailureLeavesSessionUntouched(t *testing.T) {
	st := newTestStore(t)
	sess := New("feature/add-x", WorkflowStandard, time.Hour)
	sess.State = StateBranchReady
	require.NoError(t, st.Create(sess))

	_, err := st.Mutate(context.Background(), "feature/add-x", "commit", "tester", func(ctx context.Context, s *Session) error {
		return errBoom
	})
	require.Error(t, err)

	reloaded, err := st.Get("feature/add-x")
	require.NoError(t, err)
	require.Equal(t, StateBranchReady, reloaded.State)
	require.Empty(t, reloaded.StateHistory)
}

func TestMutate_RejectsTerminalSession(t *testing.T) {
	st := newTestStore(t)
	sess := New("feature/add-x", WorkflowStandard, time.Hour)
	sess.State = StateComplete
	require.NoError(t, st.Create(sess))

	_, err := st.Mutate(context.Background(), "feature/add-x", "commit", "tester", func(ctx context.Context, s *Session) error {
		return nil
	})
	require.Error(t, err)
}

func TestListActive_ExcludesTerminal(t *testing.T) {
	st := newTestStore(t)
	a := New("feature/a", WorkflowStandard, time.Hour)
	a.State = StateBranchReady
	require.NoError(t, st.Create(a))
	b := New("feature/b", WorkflowStandard, time.Hour)
	b.State = StateComplete
	require.NoError(t, st.Create(b))

	active, err := st.ListActive()
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "feature/a", active[0].BranchName)

	all, err := st.ListAll(true)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestExpire_RemovesPastTTLOrGoneBranch(t *testing.T) {
	st := newTestStore(t)
	gone := New("feature/gone", WorkflowStandard, time.Hour)
	gone.State = StateComplete
	require.NoError(t, st.Create(gone))

	stillExists := New("feature/still", WorkflowStandard, time.Hour)
	stillExists.State = StateComplete
	require.NoError(t, st.Create(stillExists))

	removed, err := st.Expire(func(branch string) bool { return branch == "feature/still" })
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	g, _ := st.Get("feature/gone")
	require.Nil(t, g)
	s, _ := st.Get("feature/still")
	require.NotNil(t, s)
}

var errBoom = &testErr{"boom"}

type testErr struct{ msg string }

func (e *testErr) Error() string { return e.msg }
