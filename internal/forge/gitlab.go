package forge

import (
	"context"

	"github.com/hansolo-dev/hansolo/internal/hlerr"
)

// GitLab is a placeholder Forge: spec §1 names GitLab alongside GitHub, but
// no example repository in the retrieval pack imports a GitLab client SDK
// (see DESIGN.md), so every operation here returns KindUnsupported rather
// than hand-rolling an HTTP client against GitLab's REST API. The interface
// is implemented now so config.ForgeGitLab routes to a real type instead of
// a nil, and so a future GitLab client only has to satisfy Forge.
type GitLab struct{}

func NewGitLab() *GitLab { return &GitLab{} }

var errGitLabUnsupported = hlerr.New(hlerr.KindUnsupported, "gitlab forge is not implemented").
	WithSuggestion("configure forgeKind: github, or wire a GitLab client against the Forge interface")

func (g *GitLab) WhoAmI(ctx context.Context) (string, error) { return "", errGitLabUnsupported }

func (g *GitLab) OpenPR(ctx context.Context, in OpenPRInput) (PR, error) {
	return PR{}, errGitLabUnsupported
}

func (g *GitLab) UpdatePR(ctx context.Context, number int, in UpdatePRInput) error {
	return errGitLabUnsupported
}

func (g *GitLab) GetPR(ctx context.Context, numberOrBranch string) (PR, error) {
	return PR{}, errGitLabUnsupported
}

func (g *GitLab) WaitForChecks(ctx context.Context, number int, opts WaitOptions) (WaitOutcome, error) {
	return WaitOutcome{}, errGitLabUnsupported
}

func (g *GitLab) MergePR(ctx context.Context, number int, opts MergeOptions) (MergeResult, error) {
	return MergeResult{}, errGitLabUnsupported
}

func (g *GitLab) DeleteRemoteBranch(ctx context.Context, name string) error {
	return errGitLabUnsupported
}
