package forge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	gh "github.com/cli/go-gh/v2"
	"github.com/hansolo-dev/hansolo/internal/hlerr"
	"github.com/hansolo-dev/hansolo/internal/hlog"
)

var ghLog = hlog.New("forge:github")

// GitHub is the Forge implementation backed by the gh CLI, following the
// teacher's ExecGHWithOutput(args...) -> gh.Exec(args...) pattern.
type GitHub struct {
	// Exec is overridable in tests; defaults to gh.Exec.
	Exec func(args ...string) (stdout, stderr bytes.Buffer, err error)
}

// NewGitHub returns a GitHub forge adapter that shells out to the real gh CLI.
func NewGitHub() *GitHub {
	return &GitHub{Exec: gh.Exec}
}

func (g *GitHub) exec(ctx context.Context, args ...string) (string, string, error) {
	ghLog.Printf("gh %s", strings.Join(args, " "))
	select {
	case <-ctx.Done():
		return "", "", hlerr.Wrap(hlerr.KindCancelled, "cancelled before gh invocation", ctx.Err())
	default:
	}
	stdout, stderr, err := g.Exec(args...)
	return strings.TrimSpace(stdout.String()), strings.TrimSpace(stderr.String()), err
}

func (g *GitHub) WhoAmI(ctx context.Context) (string, error) {
	out, stderr, err := g.exec(ctx, "api", "user", "--jq", ".login")
	if err != nil {
		return "", hlerr.Wrap(hlerr.KindUnauthorized, "gh auth check failed: "+stderr, err)
	}
	if out == "" {
		return "", hlerr.New(hlerr.KindUnauthorized, "gh reported no authenticated user")
	}
	return out, nil
}

type prJSON struct {
	Number             int    `json:"number"`
	URL                string `json:"url"`
	BaseRefName        string `json:"baseRefName"`
	IsDraft            bool   `json:"isDraft"`
	State              string `json:"state"`
	Mergeable          string `json:"mergeable"`
	ReviewDecision     string `json:"reviewDecision"`
	StatusCheckRollup  []struct {
		Name       string `json:"name"`
		Conclusion string `json:"conclusion"`
		Status     string `json:"status"`
	} `json:"statusCheckRollup"`
}

const prJSONFields = "number,url,baseRefName,isDraft,state,mergeable,reviewDecision,statusCheckRollup"

func translatePR(p prJSON) PR {
	pr := PR{
		Number: p.Number,
		URL:    p.URL,
		Base:   p.BaseRefName,
		Draft:  p.IsDraft,
	}
	switch strings.ToUpper(p.State) {
	case "MERGED":
		pr.State = PRStateMerged
	case "CLOSED":
		pr.State = PRStateClosed
	default:
		pr.State = PRStateOpen
	}
	switch strings.ToUpper(p.Mergeable) {
	case "MERGEABLE":
		pr.Mergeable = MergeableYes
	case "CONFLICTING":
		pr.Mergeable = MergeableNo
	default:
		pr.Mergeable = MergeableUnknown
	}
	pr.RequiredApprovalsMet = p.ReviewDecision == "" || p.ReviewDecision == "APPROVED"
	for _, c := range p.StatusCheckRollup {
		pr.Checks = append(pr.Checks, Check{Name: c.Name, State: translateCheckState(c.Status, c.Conclusion)})
	}
	return pr
}

func translateCheckState(status, conclusion string) CheckState {
	switch strings.ToUpper(status) {
	case "QUEUED", "PENDING", "WAITING":
		return CheckQueued
	case "IN_PROGRESS":
		return CheckRunning
	}
	switch strings.ToUpper(conclusion) {
	case "SUCCESS":
		return CheckSuccess
	case "FAILURE":
		return CheckFailure
	case "NEUTRAL", "SKIPPED":
		return CheckNeutral
	case "TIMED_OUT":
		return CheckTimedOut
	case "CANCELLED":
		return CheckCancelled
	default:
		return CheckQueued
	}
}

// OpenPR is idempotent: if a PR already exists for branch->base, it is
// returned with AlreadyExisted set instead of erroring (spec §4.2, P4).
func (g *GitHub) OpenPR(ctx context.Context, in OpenPRInput) (PR, error) {
	if existing, err := g.GetPR(ctx, in.Branch); err == nil && existing.State == PRStateOpen {
		existing.AlreadyExisted = true
		return existing, nil
	}

	args := []string{"pr", "create", "--head", in.Branch, "--base", in.Base, "--title", in.Title, "--body", in.Body}
	if in.Draft {
		args = append(args, "--draft")
	}
	_, stderr, err := g.exec(ctx, args...)
	if err != nil {
		if strings.Contains(stderr, "already exists") {
			existing, gerr := g.GetPR(ctx, in.Branch)
			if gerr == nil {
				existing.AlreadyExisted = true
				return existing, nil
			}
		}
		return PR{}, hlerr.Wrap(hlerr.KindInternal, "gh pr create failed: "+stderr, err)
	}
	return g.GetPR(ctx, in.Branch)
}

func (g *GitHub) UpdatePR(ctx context.Context, number int, in UpdatePRInput) error {
	args := []string{"pr", "edit", strconv.Itoa(number)}
	if in.Title != nil {
		args = append(args, "--title", *in.Title)
	}
	if in.Body != nil {
		args = append(args, "--body", *in.Body)
	}
	if in.Base != nil {
		args = append(args, "--base", *in.Base)
	}
	if len(args) == 3 {
		return nil
	}
	_, stderr, err := g.exec(ctx, args...)
	if err != nil {
		return hlerr.Wrap(hlerr.KindInternal, "gh pr edit failed: "+stderr, err)
	}
	return nil
}

func (g *GitHub) GetPR(ctx context.Context, numberOrBranch string) (PR, error) {
	out, stderr, err := g.exec(ctx, "pr", "view", numberOrBranch, "--json", prJSONFields)
	if err != nil {
		if strings.Contains(stderr, "no pull requests found") || strings.Contains(stderr, "could not find") {
			return PR{}, hlerr.New(hlerr.KindNotFound, "no pull request for "+numberOrBranch)
		}
		return PR{}, hlerr.Wrap(hlerr.KindInternal, "gh pr view failed: "+stderr, err)
	}
	var p prJSON
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		return PR{}, hlerr.Wrap(hlerr.KindInternal, "parsing gh pr view output", err)
	}
	return translatePR(p), nil
}

// WaitForChecks polls with exponential backoff capped at opts.PollInterval
// (spec §4.2 polling policy), honoring ctx cancellation as a suspension
// point (spec §5).
func (g *GitHub) WaitForChecks(ctx context.Context, number int, opts WaitOptions) (WaitOutcome, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 15 * time.Second
	}
	if opts.OverallTimeout <= 0 {
		opts.OverallTimeout = 20 * time.Minute
	}
	deadline := time.Now().Add(opts.OverallTimeout)
	backoff := time.Second

	for {
		pr, err := g.GetPR(ctx, strconv.Itoa(number))
		if err != nil {
			return WaitOutcome{}, err
		}
		if outcome, done := evaluateChecks(pr.Checks, opts.RequiredSet); done {
			return outcome, nil
		}

		if time.Now().After(deadline) {
			return WaitOutcome{TimedOut: true}, nil
		}

		select {
		case <-ctx.Done():
			return WaitOutcome{}, hlerr.Wrap(hlerr.KindCancelled, "waitForChecks cancelled", ctx.Err())
		case <-time.After(backoff):
		}
		if backoff < opts.PollInterval {
			backoff *= 2
			if backoff > opts.PollInterval {
				backoff = opts.PollInterval
			}
		}
	}
}

func evaluateChecks(checks []Check, required []string) (WaitOutcome, bool) {
	wanted := map[string]bool{}
	for _, r := range required {
		wanted[r] = true
	}

	var failed []string
	pending := false
	for _, c := range checks {
		if len(wanted) > 0 && !wanted[c.Name] {
			continue
		}
		switch c.State {
		case CheckFailure, CheckTimedOut, CheckCancelled:
			failed = append(failed, c.Name)
		case CheckQueued, CheckRunning:
			pending = true
		}
	}
	if len(failed) > 0 {
		return WaitOutcome{Failed: failed}, true
	}
	if pending {
		return WaitOutcome{}, false
	}
	return WaitOutcome{AllSucceeded: true}, true
}

func (g *GitHub) MergePR(ctx context.Context, number int, opts MergeOptions) (MergeResult, error) {
	if opts.Method != MergeSquash {
		return MergeResult{}, hlerr.New(hlerr.KindUnsupported, "only squash merges are supported")
	}
	args := []string{"pr", "merge", strconv.Itoa(number), "--squash"}
	if opts.TitleOverride != "" {
		args = append(args, "--subject", opts.TitleOverride)
	}
	if opts.BodyOverride != "" {
		args = append(args, "--body", opts.BodyOverride)
	}
	_, stderr, err := g.exec(ctx, args...)
	if err != nil {
		if strings.Contains(stderr, "not mergeable") {
			return MergeResult{}, hlerr.Wrap(hlerr.KindConflict, "pull request is not mergeable", err)
		}
		return MergeResult{}, hlerr.Wrap(hlerr.KindInternal, "gh pr merge failed: "+stderr, err)
	}
	out, _, err := g.exec(ctx, "pr", "view", strconv.Itoa(number), "--json", "mergeCommit", "--jq", ".mergeCommit.oid")
	if err != nil {
		return MergeResult{}, nil
	}
	return MergeResult{MergedSha: out}, nil
}

// DeleteRemoteBranch is idempotent (spec §4.2): deleting an already-absent
// ref is treated as success.
func (g *GitHub) DeleteRemoteBranch(ctx context.Context, name string) error {
	apiPath := fmt.Sprintf("repos/{owner}/{repo}/git/refs/heads/%s", name)
	_, stderr, err := g.exec(ctx, "api", "-X", "DELETE", apiPath)
	if err != nil && !strings.Contains(stderr, "Reference does not exist") {
		return hlerr.Wrap(hlerr.KindInternal, "deleting remote branch via gh api failed: "+stderr, err)
	}
	return nil
}
