package materialize

import (
	"crypto/sha256"
	"encoding/base32"
	"slices"
	"strings"

	"github.com/matzehuels/stacksolve/pkg/errors"
	"github.com/matzehuels/stacksolve/pkg/spec"
)

// HashLength is the number of characters of a node hash.
const HashLength = 32

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// Canonical returns the text a node hash is computed from: the node's
// attributes followed by one line per dependency, sorted by name and hash.
// depHash supplies the hash of each dependency.
func Canonical(n *spec.Spec, depHash func(*spec.Spec) string) (string, error) {
	v, ok := n.Version()
	if !ok {
		return "", errors.New(errors.ErrCodeInternal, "%s has no single version", n.NodeString())
	}
	var b strings.Builder
	b.WriteString("name ")
	b.WriteString(n.Name)
	b.WriteString("\nversion ")
	b.WriteString(v.String())
	if n.Compiler != nil {
		b.WriteString("\ncompiler ")
		b.WriteString(n.Compiler.String())
	}
	for _, name := range n.VariantNames() {
		b.WriteString("\nvariant ")
		b.WriteString(name)
		b.WriteString("=")
		b.WriteString(strings.Join(n.Variants[name].Values, ","))
	}
	if n.Arch != "" {
		b.WriteString("\narch ")
		b.WriteString(n.Arch)
	}

	deps := make([]string, 0, len(n.Dependencies()))
	for _, e := range n.Dependencies() {
		deps = append(deps, "\ndep "+e.Spec.Name+" "+e.Types.String()+" "+depHash(e.Spec))
	}
	slices.Sort(deps)
	for _, d := range deps {
		b.WriteString(d)
	}
	return b.String(), nil
}

// Sum hashes a canonical form: SHA-256, base32, lower case, HashLength
// characters.
func Sum(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return strings.ToLower(b32.EncodeToString(sum[:]))[:HashLength]
}

// Hash computes the hash of the concrete DAG rooted at s without modifying
// it.
func Hash(s *spec.Spec) (string, error) {
	return newHasher(Sum).hash(s)
}

type hasher struct {
	sum       func(string) string
	hashes    map[*spec.Spec]string
	canonical map[*spec.Spec]string
	visiting  map[*spec.Spec]bool
}

func newHasher(sum func(string) string) *hasher {
	return &hasher{
		sum:       sum,
		hashes:    make(map[*spec.Spec]string),
		canonical: make(map[*spec.Spec]string),
		visiting:  make(map[*spec.Spec]bool),
	}
}

func (h *hasher) hash(n *spec.Spec) (string, error) {
	if sum, ok := h.hashes[n]; ok {
		return sum, nil
	}
	if h.visiting[n] {
		return "", errors.New(errors.ErrCodeInternal, "dependency cycle through %s", n.NodeString())
	}
	h.visiting[n] = true
	for _, e := range n.Dependencies() {
		if _, err := h.hash(e.Spec); err != nil {
			return "", err
		}
	}
	delete(h.visiting, n)

	text, err := Canonical(n, func(d *spec.Spec) string { return h.hashes[d] })
	if err != nil {
		return "", err
	}
	sum := h.sum(text)
	h.hashes[n] = sum
	h.canonical[n] = text
	return sum, nil
}
