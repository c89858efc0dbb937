package forge

import (
	"context"
	"strconv"

	"github.com/hansolo-dev/hansolo/internal/hlerr"
)

// Fake is an in-memory Forge for tests (spec §8: no real network calls in
// unit tests).
type Fake struct {
	Actor        string
	Unauthorized bool

	byBranch map[string]*PR
	byNumber map[int]*PR
	nextNum  int

	WaitOutcomes []WaitOutcome // consumed in order by WaitForChecks
	DeletedRemote []string
	Merged       map[int]MergeResult
}

func NewFake() *Fake {
	return &Fake{
		Actor:    "octocat",
		byBranch: map[string]*PR{},
		byNumber: map[int]*PR{},
		nextNum:  1,
		Merged:   map[int]MergeResult{},
	}
}

func (f *Fake) WhoAmI(ctx context.Context) (string, error) {
	if f.Unauthorized {
		return "", hlerr.New(hlerr.KindUnauthorized, "not authenticated")
	}
	return f.Actor, nil
}

func (f *Fake) OpenPR(ctx context.Context, in OpenPRInput) (PR, error) {
	if existing, ok := f.byBranch[in.Branch]; ok && existing.State == PRStateOpen {
		cp := *existing
		cp.AlreadyExisted = true
		return cp, nil
	}
	pr := &PR{Number: f.nextNum, URL: "https://example.invalid/pr/" + strconv.Itoa(f.nextNum), Base: in.Base, Draft: in.Draft, State: PRStateOpen, Mergeable: MergeableYes, RequiredApprovalsMet: true}
	f.nextNum++
	f.byBranch[in.Branch] = pr
	f.byNumber[pr.Number] = pr
	return *pr, nil
}

func (f *Fake) UpdatePR(ctx context.Context, number int, in UpdatePRInput) error {
	pr, ok := f.byNumber[number]
	if !ok {
		return hlerr.New(hlerr.KindNotFound, "no such PR")
	}
	if in.Base != nil {
		pr.Base = *in.Base
	}
	return nil
}

func (f *Fake) GetPR(ctx context.Context, numberOrBranch string) (PR, error) {
	if pr, ok := f.byBranch[numberOrBranch]; ok {
		return *pr, nil
	}
	if n, err := strconv.Atoi(numberOrBranch); err == nil {
		if pr, ok := f.byNumber[n]; ok {
			return *pr, nil
		}
	}
	return PR{}, hlerr.New(hlerr.KindNotFound, "no pull request for "+numberOrBranch)
}

func (f *Fake) WaitForChecks(ctx context.Context, number int, opts WaitOptions) (WaitOutcome, error) {
	if len(f.WaitOutcomes) == 0 {
		return WaitOutcome{AllSucceeded: true}, nil
	}
	out := f.WaitOutcomes[0]
	f.WaitOutcomes = f.WaitOutcomes[1:]
	return out, nil
}

func (f *Fake) MergePR(ctx context.Context, number int, opts MergeOptions) (MergeResult, error) {
	pr, ok := f.byNumber[number]
	if !ok {
		return MergeResult{}, hlerr.New(hlerr.KindNotFound, "no such PR")
	}
	if opts.Method != MergeSquash {
		return MergeResult{}, hlerr.New(hlerr.KindUnsupported, "only squash supported")
	}
	pr.State = PRStateMerged
	res := MergeResult{MergedSha: "sha-" + strconv.Itoa(number)}
	f.Merged[number] = res
	return res, nil
}

func (f *Fake) DeleteRemoteBranch(ctx context.Context, name string) error {
	f.DeletedRemote = append(f.DeletedRemote, name)
	return nil
}


