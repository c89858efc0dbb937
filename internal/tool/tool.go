// Package tool implements the workflow execution layer (spec §4.6, C6):
// launch, commit, ship, swap, abort, hotfix, cleanup, sessions, status. Each
// tool composes the git adapter, the forge adapter, the session store, and
// the validation engine into one atomic, auditable outcome.
package tool

import (
	"context"
	"sync"

	"github.com/hansolo-dev/hansolo/internal/config"
	"github.com/hansolo-dev/hansolo/internal/forge"
	"github.com/hansolo-dev/hansolo/internal/gitrepo"
	"github.com/hansolo-dev/hansolo/internal/hlog"
	"github.com/hansolo-dev/hansolo/internal/sessionstore"
	"github.com/hansolo-dev/hansolo/internal/validate"
)

// Result is the uniform shape every tool returns (spec §4.6 ToolResult).
type Result struct {
	Success    bool                   `json:"success"`
	PreFlight  validate.Report        `json:"preFlight"`
	PostFlight *validate.Report       `json:"postFlight,omitempty"`
	Errors     []string               `json:"errors,omitempty"`
	Warnings   []string               `json:"warnings,omitempty"`
	Data       map[string]any         `json:"data,omitempty"`
	NextSteps  []string               `json:"nextSteps,omitempty"`
}

func preflightFailed(report validate.Report) Result {
	var errs []string
	for _, r := range report.Failed() {
		if r.Severity == validate.SeverityError {
			errs = append(errs, r.Name+": "+r.Message)
		}
	}
	return Result{Success: false, PreFlight: report, Errors: errs}
}

func internalErr(report validate.Report, err error) Result {
	return Result{Success: false, PreFlight: report, Errors: []string{err.Error()}}
}

// Deps bundles every collaborator a tool needs (spec §4.6 data flow).
// workspaceLock serialises the working-tree-mutating tools (launch, commit,
// ship, swap, abort, hotfix, cleanup) against one another while read-only
// tools (sessions, status) take a shared hold (spec §5 "Shared resources").
type Deps struct {
	Git   gitrepo.Adapter
	Forge forge.Forge
	Store *sessionstore.Store
	Cfg   *config.Config
	Log   *hlog.Logger

	workspaceLock sync.RWMutex
}

// NewDeps wires the four collaborators together behind one workspace lock.
func NewDeps(git gitrepo.Adapter, f forge.Forge, store *sessionstore.Store, cfg *config.Config) *Deps {
	return &Deps{Git: git, Forge: f, Store: store, Cfg: cfg, Log: hlog.New("tool")}
}

func (d *Deps) lockExclusive() func() {
	d.workspaceLock.Lock()
	return d.workspaceLock.Unlock
}

func (d *Deps) lockShared() func() {
	d.workspaceLock.RLock()
	return d.workspaceLock.RUnlock
}

func (d *Deps) vctx(ctx context.Context) *validate.Context {
	return validate.NewContext(ctx, d.Git, d.Forge, d.Store, d.Cfg)
}
