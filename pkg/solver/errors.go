package solver

import (
	"fmt"
	"strings"
	"time"

	"github.com/matzehuels/stacksolve/pkg/errors"
)

// Requirement is one constraint that took part in a conflict, together with
// the declaration that imposed it.
type Requirement struct {
	// Requirer is the package that declared the constraint. It is empty for
	// constraints from the request itself.
	Requirer   string `json:"requirer,omitempty"`
	Constraint string `json:"constraint"`
	When       string `json:"when,omitempty"`
}

func (r Requirement) String() string {
	c := r.Constraint
	if r.When != "" {
		c += " when " + r.When
	}
	if r.Requirer == "" {
		return "request asks for " + c
	}
	return r.Requirer + " requires " + c
}

// UnsatisfiableError reports a request with no solution. Requirements is a
// minimal set: dropping any one of them would remove this conflict.
type UnsatisfiableError struct {
	Package      string        `json:"package"`
	Reason       string        `json:"reason"`
	Requirements []Requirement `json:"requirements"`
}

func (e *UnsatisfiableError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cannot concretize %s: %s", e.Package, e.Reason)
	for _, r := range e.Requirements {
		b.WriteString("\n  ")
		b.WriteString(r.String())
	}
	return b.String()
}

// ErrorCode maps the error onto UNSATISFIABLE.
func (e *UnsatisfiableError) ErrorCode() errors.Code { return errors.ErrCodeUnsatisfiable }

// ConcretizationTimeoutError reports a search that ran out of time or steps
// before finding any solution. It does not prove the request unsatisfiable.
type ConcretizationTimeoutError struct {
	Steps   int
	Elapsed time.Duration
	Cause   error
}

func (e *ConcretizationTimeoutError) Error() string {
	msg := fmt.Sprintf("concretization gave up after %d steps (%s)", e.Steps, e.Elapsed.Round(time.Millisecond))
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ConcretizationTimeoutError) Unwrap() error { return e.Cause }

// ErrorCode maps the error onto TIMEOUT.
func (e *ConcretizationTimeoutError) ErrorCode() errors.Code { return errors.ErrCodeTimeout }

// errStepBudget is the cause of a timeout when MaxSteps ran out.
var errStepBudget = errors.New(errors.ErrCodeTimeout, "search step budget exhausted")
