package materialize

import (
	"fmt"

	"github.com/matzehuels/stacksolve/pkg/errors"
)

// HashCollisionError reports two different nodes with the same hash. It is
// fatal: a store keyed by hash cannot hold both.
type HashCollisionError struct {
	Hash   string
	First  string
	Second string
}

func (e *HashCollisionError) Error() string {
	return fmt.Sprintf("hash collision on /%s: %s and %s", e.Hash, e.First, e.Second)
}

// ErrorCode maps the error onto HASH_COLLISION.
func (e *HashCollisionError) ErrorCode() errors.Code { return errors.ErrCodeHashCollision }
