package splice

import (
	"fmt"
	"strings"

	"github.com/matzehuels/stacksolve/pkg/errors"
)

// AmbiguousSpliceError reports a node for which several can_splice rules of
// equal specificity apply. Picking one would depend on declaration order, so
// the pass stops instead.
type AmbiguousSpliceError struct {
	Node  string
	Rules []string
}

func (e *AmbiguousSpliceError) Error() string {
	return fmt.Sprintf("ambiguous splice for %s: %d rules tie\n  %s", e.Node, len(e.Rules), strings.Join(e.Rules, "\n  "))
}

// ErrorCode maps the error onto AMBIGUOUS_SPLICE.
func (e *AmbiguousSpliceError) ErrorCode() errors.Code { return errors.ErrCodeAmbiguousSplice }
