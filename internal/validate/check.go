// Package validate implements the validation engine (spec §4.4, C4): a
// catalogue of named, pure-ish pre-flight checks and post-flight
// verifications, composed into check reports that gate every tool.
package validate

import "github.com/hansolo-dev/hansolo/internal/hlerr"

// Severity classifies how a failed check affects the caller (spec §4.4).
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Details carries the optional expected/actual/suggestion triple a failed
// check may attach (spec §4.4 Check.eval() result shape).
type Details struct {
	Expected   string `json:"expected,omitempty"`
	Actual     string `json:"actual,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Result is the outcome of evaluating one named check.
type Result struct {
	Name     string   `json:"name"`
	Severity Severity `json:"severity"`
	Passed   bool     `json:"passed"`
	Message  string   `json:"message"`
	Details  Details  `json:"details,omitempty"`
}

// Report is a non-empty list of check results (spec §4.4 "check report").
type Report struct {
	Results []Result `json:"results"`
}

// Passed reports whether the report passes: no error-severity check failed.
// Warnings are surfaced but never block (spec §4.4).
func (r Report) Passed() bool {
	for _, res := range r.Results {
		if !res.Passed && res.Severity == SeverityError {
			return false
		}
	}
	return true
}

// Failed returns the subset of results that did not pass, in report
// order, so a caller can report every blocker at once (spec §4.4).
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.Passed {
			out = append(out, res)
		}
	}
	return out
}

// EvalFunc evaluates one named check against ctx.
type EvalFunc func(ctx *Context) Result

// Check is one named, registered validator (spec §4.4 Check).
type Check struct {
	Name     string
	Severity Severity
	Eval     EvalFunc
}

func pass(name string, sev Severity, message string) Result {
	return Result{Name: name, Severity: sev, Passed: true, Message: message}
}

func fail(name string, sev Severity, message string, details Details) Result {
	return Result{Name: name, Severity: sev, Passed: false, Message: message, Details: details}
}

// failFromErr folds a classified domain error into a failed check result,
// implementing the "adapters classify, the engine folds into check
// results" propagation policy (spec §7, §4.4).
func failFromErr(name string, sev Severity, err error) Result {
	kind := hlerr.KindOf(err)
	msg := err.Error()
	suggestion := ""
	var herr *hlerr.Error
	if hlerr.As(err, &herr) {
		suggestion = herr.Suggestion
	}
	return fail(name, sev, string(kind)+": "+msg, Details{Suggestion: suggestion})
}
