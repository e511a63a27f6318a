package spec

import (
	"fmt"
	"strings"

	"github.com/matzehuels/stacksolve/pkg/errors"
)

// ParseError reports malformed spec syntax at a byte offset of the input.
type ParseError struct {
	Input   string
	Pos     int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at column %d\n  %s\n  %s^", e.Message, e.Pos+1, e.Input, strings.Repeat(" ", e.Pos))
}

// ErrorCode maps parse errors onto the INVALID_SPEC code.
func (e *ParseError) ErrorCode() errors.Code { return errors.ErrCodeInvalidSpec }

// AmbiguousSpecError reports input that matches more than one reading. It is
// raised by the parser for a token that could start a dependency or a new
// root, and by hash lookups when a /hash prefix matches several specs.
type AmbiguousSpecError struct {
	Input      string
	Token      string
	Candidates []string
}

func (e *AmbiguousSpecError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("ambiguous spec %q: %q could be a dependency or a separate spec", e.Input, e.Token)
	}
	return fmt.Sprintf("ambiguous spec %q: %q matches %s", e.Input, e.Token, strings.Join(e.Candidates, ", "))
}

// ErrorCode maps ambiguity onto the AMBIGUOUS_SPEC code.
func (e *AmbiguousSpecError) ErrorCode() errors.Code { return errors.ErrCodeAmbiguousSpec }
