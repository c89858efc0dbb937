package gitrepo

import (
	"context"
	"fmt"

	"github.com/hansolo-dev/hansolo/internal/hlerr"
)

// Fake is an in-memory Adapter for exercising the validation engine, state
// machines, and tools without shelling out to git (spec §8 tests never run
// real git; this is the seam).
type Fake struct {
	Branch       string
	Clean        bool
	StatusResult Status
	LocalBranches map[string]bool
	RemoteBranches map[string]bool
	AheadBehindByPair map[string]AheadBehind
	Stashes      []string
	RebaseResult RebaseResult
	RebaseErr    error

	Commits      []string
	Pushed       bool
	PulledFF     bool
	DeletedLocal []string
	DeletedRemote []string
	Checkouts    []string
}

func NewFake(branch string) *Fake {
	return &Fake{
		Branch:            branch,
		Clean:             true,
		LocalBranches:     map[string]bool{},
		RemoteBranches:    map[string]bool{},
		AheadBehindByPair: map[string]AheadBehind{},
	}
}

func (f *Fake) CurrentBranch(ctx context.Context) (string, error) { return f.Branch, nil }

func (f *Fake) IsClean(ctx context.Context) (bool, error) { return f.Clean, nil }

func (f *Fake) Status(ctx context.Context) (Status, error) { return f.StatusResult, nil }

func (f *Fake) Diff(ctx context.Context, ref string) (string, error) { return "", nil }

func (f *Fake) Checkout(ctx context.Context, name string, opts CheckoutOptions) error {
	if opts.Create {
		if f.LocalBranches[name] {
			return hlerr.New(hlerr.KindBranchConflict, "branch already exists: "+name)
		}
		f.LocalBranches[name] = true
	}
	f.Branch = name
	f.Checkouts = append(f.Checkouts, name)
	return nil
}

func (f *Fake) CreateBranch(ctx context.Context, name, from string) error {
	if !ValidBranchName(name) {
		return hlerr.New(hlerr.KindUnsupported, "invalid branch name: "+name)
	}
	if f.LocalBranches[name] {
		return hlerr.New(hlerr.KindBranchConflict, "branch already exists: "+name)
	}
	f.LocalBranches[name] = true
	return nil
}

func (f *Fake) DeleteBranch(ctx context.Context, name string, opts DeleteBranchOptions) error {
	if opts.Remote {
		f.DeletedRemote = append(f.DeletedRemote, name)
		delete(f.RemoteBranches, name)
		return nil
	}
	f.DeletedLocal = append(f.DeletedLocal, name)
	delete(f.LocalBranches, name)
	return nil
}

func (f *Fake) Commit(ctx context.Context, opts CommitOptions) (string, error) {
	if !opts.StageAll && f.StatusResult.Staged == 0 {
		return "", hlerr.New(hlerr.KindEmpty, "nothing staged")
	}
	if opts.StageAll && f.StatusResult.Staged == 0 && f.StatusResult.Unstaged == 0 && f.StatusResult.Untracked == 0 {
		return "", hlerr.New(hlerr.KindEmpty, "nothing to commit")
	}
	hash := fmt.Sprintf("commit-%d", len(f.Commits)+1)
	f.Commits = append(f.Commits, hash)
	f.StatusResult = Status{}
	f.Clean = true
	return hash, nil
}

func (f *Fake) PushCurrent(ctx context.Context, opts PushOptions) error {
	f.Pushed = true
	return nil
}

func (f *Fake) PullFF(ctx context.Context, mainBranch string) error {
	f.PulledFF = true
	return nil
}

func (f *Fake) RebaseOnto(ctx context.Context, ref string) (RebaseResult, error) {
	return f.RebaseResult, f.RebaseErr
}

func (f *Fake) Stash(ctx context.Context, opts StashOptions) (string, error) {
	ref := fmt.Sprintf("stash@{%d}", len(f.Stashes))
	f.Stashes = append([]string{ref}, f.Stashes...)
	f.Clean = true
	f.StatusResult = Status{}
	return ref, nil
}

func (f *Fake) StashPop(ctx context.Context, ref string) error {
	if len(f.Stashes) == 0 {
		return hlerr.New(hlerr.KindNotFound, "no stash to pop")
	}
	f.Stashes = f.Stashes[1:]
	return nil
}

func (f *Fake) StashList(ctx context.Context) ([]string, error) { return f.Stashes, nil }

func (f *Fake) BranchExists(ctx context.Context, name string, remote bool) (bool, error) {
	if remote {
		return f.RemoteBranches[name], nil
	}
	return f.LocalBranches[name], nil
}

func (f *Fake) BranchAheadBehind(ctx context.Context, name, base string) (AheadBehind, error) {
	return f.AheadBehindByPair[name+".."+base], nil
}
