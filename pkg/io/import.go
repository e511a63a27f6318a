package io

import (
	"encoding/json"
	"io"
	"os"

	"github.com/matzehuels/stacksolve/pkg/errors"
	"github.com/matzehuels/stacksolve/pkg/spec"
)

// ReadLock decodes a lock file from r and rebuilds its DAGs.
//
// ReadLock returns an INVALID_FORMAT error if:
//   - The JSON is malformed
//   - A dependency references a hash with no record
//   - A node does not hash to the hash it is recorded under
//
// The returned specs are concrete and frozen. ReadLock does not close r.
func ReadLock(r io.Reader) ([]*spec.Spec, error) {
	var l Lock
	if err := json.NewDecoder(r).Decode(&l); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode lock file")
	}
	return l.Decode()
}

// ImportLock reads the lock file at path.
func ImportLock(path string) ([]*spec.Spec, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "open %s", path)
	}
	defer f.Close()
	return ReadLock(f)
}
