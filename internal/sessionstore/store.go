package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"github.com/hansolo-dev/hansolo/internal/hlerr"
	"github.com/hansolo-dev/hansolo/internal/hlog"
)

var storeLog = hlog.New("session:store")

// Store persists sessions under <workspace>/.hansolo/sessions/ (spec §4.3,
// §6). Each session has a stable file path and a stable advisory lock path;
// mutate() is the only way any caller changes a session (spec I6).
type Store struct {
	dir         string
	lockTimeout time.Duration
	auditor     *Auditor
}

// New returns a Store rooted at sessionsDir, appending audit entries to
// auditLogPath (spec §6 on-disk layout).
func New(sessionsDir, auditLogPath string, lockTimeout time.Duration) (*Store, error) {
	if err := os.MkdirAll(sessionsDir, 0o755); err != nil {
		return nil, hlerr.Wrap(hlerr.KindInternal, "creating sessions directory", err)
	}
	aud, err := newAuditor(auditLogPath)
	if err != nil {
		return nil, err
	}
	return &Store{dir: sessionsDir, lockTimeout: lockTimeout, auditor: aud}, nil
}

func (s *Store) pathFor(branch string) string {
	return filepath.Join(s.dir, safeFileStem(branch)+".json")
}

func (s *Store) lockPathFor(branch string) string {
	return filepath.Join(s.dir, safeFileStem(branch)+".lock")
}

// safeFileStem turns a branch name like "feature/add-x" into a filesystem-
// safe stem; branch names are already constrained to [a-z0-9-/], so only
// the path separator needs escaping.
func safeFileStem(branch string) string {
	out := make([]byte, 0, len(branch))
	for i := 0; i < len(branch); i++ {
		if branch[i] == '/' {
			out = append(out, '_')
			continue
		}
		out = append(out, branch[i])
	}
	return string(out)
}

func (s *Store) readFile(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, hlerr.Wrap(hlerr.KindInternal, "reading session file", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, hlerr.Wrap(hlerr.KindInternal, "parsing session file "+path, err)
	}
	return &sess, nil
}

// writeFile persists sess atomically: write-temp-then-rename (spec §4.3
// crash safety), so a concurrent reader never observes a partial write.
func (s *Store) writeFile(path string, sess *Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return hlerr.Wrap(hlerr.KindInternal, "marshaling session", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return hlerr.Wrap(hlerr.KindInternal, "writing temp session file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return hlerr.Wrap(hlerr.KindInternal, "renaming session file into place", err)
	}
	return nil
}

// Get returns the session bound to branch, or nil if none exists. A read
// concurrent with a lock-held writer returns the pre-write snapshot (spec
// §4.3) because readers never take the lock.
func (s *Store) Get(branch string) (*Session, error) {
	return s.readFile(s.pathFor(branch))
}

// ListActive returns every non-terminal session (spec C3 listActive()).
func (s *Store) ListActive() ([]*Session, error) {
	return s.list(false)
}

// ListAll returns every session; includeTerminal controls whether
// COMPLETE/ABORTED sessions are included (spec C3 listAll()).
func (s *Store) ListAll(includeTerminal bool) ([]*Session, error) {
	return s.list(includeTerminal)
}

func (s *Store) list(includeTerminal bool) ([]*Session, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, hlerr.Wrap(hlerr.KindInternal, "listing sessions directory", err)
	}
	var out []*Session
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		sess, err := s.readFile(filepath.Join(s.dir, e.Name()))
		if err != nil || sess == nil {
			continue
		}
		if !includeTerminal && sess.State.Terminal() {
			continue
		}
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BranchName < out[j].BranchName })
	return out, nil
}

// Create persists a brand-new session, failing AlreadyExists if a
// non-terminal session for the same branch already exists (spec I1).
func (s *Store) Create(sess *Session) error {
	lock := flock.New(s.lockPathFor(sess.BranchName))
	locked, err := lock.TryLock()
	if err != nil {
		return hlerr.Wrap(hlerr.KindInternal, "acquiring session lock", err)
	}
	if !locked {
		return hlerr.New(hlerr.KindBusy, "session lock busy for "+sess.BranchName)
	}
	defer lock.Unlock()

	existing, err := s.readFile(s.pathFor(sess.BranchName))
	if err != nil {
		return err
	}
	if existing != nil && !existing.State.Terminal() {
		return hlerr.New(hlerr.KindAlreadyExists, "active session already exists for "+sess.BranchName)
	}
	if err := s.writeFile(s.pathFor(sess.BranchName), sess); err != nil {
		return err
	}
	s.auditor.append(AuditEntry{
		At:        time.Now(),
		SessionID: sess.ID.String(),
		Tool:      "create",
		Outcome:   "ok",
	})
	return nil
}

// MutateFunc applies a business-logic mutation to a loaded session in
// place. Returning an error aborts the mutation: nothing is persisted, and
// the only audit entry written records the error outcome (spec I6, P5).
type MutateFunc func(ctx context.Context, sess *Session) error

// Mutate is the only way to change a session (spec C3 mutate()). It
// acquires the session's exclusive lock bounded by lockTimeout, applies fn,
// persists the result, and appends an audit entry, in that order, releasing
// the lock on every exit path including panic.
func (s *Store) Mutate(ctx context.Context, branch, tool, actor string, fn MutateFunc) (*Session, error) {
	lock := flock.New(s.lockPathFor(branch))

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(lockCtx, 50*time.Millisecond)
	if err != nil || !locked {
		return nil, hlerr.New(hlerr.KindBusy, "timed out acquiring lock for "+branch)
	}
	defer func() {
		if uerr := lock.Unlock(); uerr != nil {
			storeLog.Errorf("releasing session lock for %s: %v", branch, uerr)
		}
	}()

	sess, err := s.readFile(s.pathFor(branch))
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, hlerr.New(hlerr.KindNotFound, "no session for branch "+branch)
	}
	if sess.State.Terminal() {
		return nil, hlerr.New(hlerr.KindInvalidTransition, "session for "+branch+" is terminal")
	}

	beforeState := sess.State
	if err := fn(ctx, sess); err != nil {
		s.auditor.append(AuditEntry{At: time.Now(), SessionID: sess.ID.String(), Tool: tool, Outcome: "error: " + hlog.ExtractErrorMessage(err)})
		return nil, err
	}

	if err := s.writeFile(s.pathFor(branch), sess); err != nil {
		return nil, err
	}
	s.auditor.append(AuditEntry{
		At:        time.Now(),
		SessionID: sess.ID.String(),
		Tool:      tool,
		Outcome:   fmt.Sprintf("ok: %s -> %s", beforeState, sess.State),
	})
	return sess, nil
}

// Expire removes terminal sessions past TTL, or whose branch no longer
// exists, per branchExists (spec C3 expire()).
func (s *Store) Expire(branchExists func(branch string) bool) (int, error) {
	sessions, err := s.ListAll(true)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, sess := range sessions {
		if !sess.State.Terminal() {
			continue
		}
		pastTTL := time.Now().After(sess.ExpiresAt)
		branchGone := branchExists != nil && !branchExists(sess.BranchName)
		if !pastTTL && !branchGone {
			continue
		}
		if err := os.Remove(s.pathFor(sess.BranchName)); err != nil && !os.IsNotExist(err) {
			return removed, hlerr.Wrap(hlerr.KindInternal, "removing expired session file", err)
		}
		os.Remove(s.lockPathFor(sess.BranchName))
		removed++
	}
	return removed, nil
}

// Remove deletes a session file directly (used by cleanup once a branch is
// confirmed merged; spec §4.6 cleanup).
func (s *Store) Remove(branch string) error {
	if err := os.Remove(s.pathFor(branch)); err != nil && !os.IsNotExist(err) {
		return hlerr.Wrap(hlerr.KindInternal, "removing session file", err)
	}
	os.Remove(s.lockPathFor(branch))
	return nil
}
