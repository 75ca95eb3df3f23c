// Package invariant runs named governance checks and aggregates their
// outcomes into a release-gating report. Checks either pass, fail, warn,
// or skip; anything that cannot run reports as a failure, never as a pass.
package invariant

import (
	"time"

	"github.com/google/uuid"
)

// Result classifies a check outcome.
type Result string

// Check outcomes.
const (
	Pass Result = "PASS"
	Fail Result = "FAIL"
	Warn Result = "WARN"
	Skip Result = "SKIP"
)

// Check is the outcome of one invariant check.
type Check struct {
	Name    string `json:"name"`
	Result  Result `json:"result"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Checker is one runnable invariant.
type Checker interface {
	// Name identifies the check in reports and CLI selection.
	Name() string

	// Check runs the invariant. Failures are reported in the result, not
	// returned: a check that cannot run yields a Fail check.
	Check() Check
}

// Report aggregates one run of the registered checks.
type Report struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Checks      []Check   `json:"checks"`
	Passed      int       `json:"passed"`
	Failed      int       `json:"failed"`
	Warned      int       `json:"warned"`
	Skipped     int       `json:"skipped"`
}

// OK reports whether the run may gate a release: no failures.
func (r Report) OK() bool { return r.Failed == 0 }

// Runner executes registered checkers in registration order.
type Runner struct {
	checkers []Checker
}

// Register adds a checker to the run.
func (r *Runner) Register(c Checker) {
	r.checkers = append(r.checkers, c)
}

// Names returns the registered check names in order.
func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.checkers))
	for _, c := range r.checkers {
		names = append(names, c.Name())
	}
	return names
}

// Run executes every registered checker. When only is non-empty, just the
// named checks run.
func (r *Runner) Run(only []string) Report {
	selected := make(map[string]bool, len(only))
	for _, name := range only {
		selected[name] = true
	}

	report := Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
	}
	for _, checker := range r.checkers {
		if len(selected) > 0 && !selected[checker.Name()] {
			continue
		}
		check := checker.Check()
		report.Checks = append(report.Checks, check)
		switch check.Result {
		case Pass:
			report.Passed++
		case Fail:
			report.Failed++
		case Warn:
			report.Warned++
		case Skip:
			report.Skipped++
		}
	}
	return report
}
