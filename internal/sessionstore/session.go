// Package sessionstore implements the persistent, lock-serialised session
// store (spec §4.3, C3) and the append-only audit log (spec §4.3/§7, C7).
package sessionstore

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WorkflowType is immutable for the life of a session (spec §3).
type WorkflowType string

const (
	WorkflowStandard WorkflowType = "standard"
	WorkflowHotfix   WorkflowType = "hotfix"
)

// State is a node in one of the two state machines (spec §4.5).
type State string

const (
	StateInit              State = "INIT"
	StateBranchReady       State = "BRANCH_READY"
	StateChangesCommitted  State = "CHANGES_COMMITTED"
	StatePushed            State = "PUSHED"
	StatePRCreated         State = "PR_CREATED"
	StateWaitingApproval   State = "WAITING_APPROVAL"
	StateRebasing          State = "REBASING"
	StateConflict          State = "CONFLICT"
	StateMerging           State = "MERGING"
	StateCleanup           State = "CLEANUP"
	StateComplete          State = "COMPLETE"
	StateAborted           State = "ABORTED"

	StateHotfixInit      State = "HOTFIX_INIT"
	StateHotfixReady     State = "HOTFIX_READY"
	StateHotfixCommitted State = "HOTFIX_COMMITTED"
	StateHotfixPushed    State = "HOTFIX_PUSHED"
	StateHotfixValidated State = "HOTFIX_VALIDATED"
	StateHotfixDeployed  State = "HOTFIX_DEPLOYED"
	StateHotfixCleanup   State = "HOTFIX_CLEANUP"
	StateHotfixComplete  State = "HOTFIX_COMPLETE"
)

// Terminal reports whether state is a terminal node (spec §3 I5, P6).
func (s State) Terminal() bool {
	return s == StateComplete || s == StateAborted || s == StateHotfixComplete
}

// Transition is one recorded edge in a session's stateHistory (spec §3 I3).
type Transition struct {
	From  State     `json:"from"`
	To    State     `json:"to"`
	At    time.Time `json:"at"`
	Tool  string    `json:"tool"`
	Actor string    `json:"actor"`
}

// PR records the pull request bound to a session, once one exists (spec §3).
type PR struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
	Base   string `json:"base"`
	Draft  bool   `json:"draft,omitempty"`
}

// SchemaVersion is bumped only on a breaking change to the session file
// format (spec §6 "Persisted state compatibility").
const SchemaVersion = 1

// Session is the central entity, one per active branch (spec §3).
type Session struct {
	SchemaVersion int                    `json:"schemaVersion"`
	ID            uuid.UUID              `json:"id"`
	BranchName    string                 `json:"branchName"`
	WorkflowType  WorkflowType           `json:"workflowType"`
	State         State                  `json:"state"`
	CreatedAt     time.Time              `json:"createdAt"`
	UpdatedAt     time.Time              `json:"updatedAt"`
	ExpiresAt     time.Time              `json:"expiresAt"`
	StateHistory  []Transition           `json:"stateHistory"`
	Metadata      map[string]string      `json:"metadata"`
	PR            *PR                    `json:"pr,omitempty"`

	// extra preserves any fields this build doesn't recognize (a newer
	// schemaVersion's additions), so reading and writing back a session
	// with no mutation round-trips losslessly (spec §6, P8).
	extra map[string]json.RawMessage `json:"-"`
}

// sessionAlias has Session's exact known fields; used to mix known-field
// decoding with an extra catch-all map for forward compatibility.
type sessionAlias Session

// MarshalJSON emits the known fields plus any preserved unknown ones.
func (s *Session) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal((*sessionAlias)(s))
	if err != nil {
		return nil, err
	}
	if len(s.extra) == 0 {
		return known, nil
	}
	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for k, v := range s.extra {
		if _, known := merged[k]; !known {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// UnmarshalJSON decodes known fields and stashes anything else in extra.
func (s *Session) UnmarshalJSON(data []byte) error {
	var alias sessionAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*s = Session(alias)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	knownFields := map[string]bool{
		"schemaVersion": true, "id": true, "branchName": true, "workflowType": true,
		"state": true, "createdAt": true, "updatedAt": true, "expiresAt": true,
		"stateHistory": true, "metadata": true, "pr": true,
	}
	for k, v := range raw {
		if !knownFields[k] {
			if s.extra == nil {
				s.extra = map[string]json.RawMessage{}
			}
			s.extra[k] = v
		}
	}
	return nil
}

// New constructs a session in its workflow's initial state (spec §4.5).
func New(branch string, wt WorkflowType, ttl time.Duration) *Session {
	now := time.Now()
	initial := StateInit
	if wt == WorkflowHotfix {
		initial = StateHotfixInit
	}
	return &Session{
		SchemaVersion: SchemaVersion,
		ID:            uuid.New(),
		BranchName:    branch,
		WorkflowType:  wt,
		State:         initial,
		CreatedAt:     now,
		UpdatedAt:     now,
		ExpiresAt:     now.Add(ttl),
		Metadata:      map[string]string{},
	}
}

// RecordTransition appends a transition and bumps UpdatedAt/ExpiresAt,
// extending the TTL on every mutation per the Open Question resolved in
// spec §9 ("yes; bump on every mutation").
func (s *Session) RecordTransition(to State, tool, actor string, ttl time.Duration) {
	from := s.State
	if len(s.StateHistory) > 0 {
		from = s.StateHistory[len(s.StateHistory)-1].To
	}
	now := time.Now()
	s.StateHistory = append(s.StateHistory, Transition{From: from, To: to, At: now, Tool: tool, Actor: actor})
	s.State = to
	s.UpdatedAt = now
	s.ExpiresAt = now.Add(ttl)
}
