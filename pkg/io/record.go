package io

import (
	"fmt"
	"slices"

	"github.com/matzehuels/stacksolve/pkg/errors"
	"github.com/matzehuels/stacksolve/pkg/materialize"
	"github.com/matzehuels/stacksolve/pkg/spec"
	"github.com/matzehuels/stacksolve/pkg/version"
)

// Lock is the serialized form of one or more concrete DAGs. Nodes are listed
// once each, dependencies before dependents.
type Lock struct {
	Roots []string `json:"roots"`
	Nodes []Record `json:"nodes"`
}

// Record is one concrete node. Its dependencies are referenced by hash.
type Record struct {
	Hash         string              `json:"hash" bson:"_id"`
	Name         string              `json:"name" bson:"name"`
	Version      string              `json:"version" bson:"version"`
	Compiler     string              `json:"compiler,omitempty" bson:"compiler,omitempty"`
	Variants     map[string][]string `json:"variants,omitempty" bson:"variants,omitempty"`
	Arch         string              `json:"arch,omitempty" bson:"arch,omitempty"`
	Dependencies []DepRecord         `json:"dependencies,omitempty" bson:"dependencies,omitempty"`
}

// DepRecord is a dependency edge of a Record.
type DepRecord struct {
	Hash    string `json:"hash" bson:"hash"`
	Name    string `json:"name" bson:"name"`
	Types   string `json:"types" bson:"types"`
	Virtual string `json:"virtual,omitempty" bson:"virtual,omitempty"`
}

// NewRecord describes the hashed node n.
func NewRecord(n *spec.Spec) Record {
	v, _ := n.Version()
	r := Record{Hash: n.Hash, Name: n.Name, Version: v.String(), Arch: n.Arch}
	if n.Compiler != nil {
		r.Compiler = n.Compiler.String()
	}
	for _, name := range n.VariantNames() {
		if r.Variants == nil {
			r.Variants = make(map[string][]string)
		}
		r.Variants[name] = slices.Clone(n.Variants[name].Values)
	}
	for _, e := range n.Dependencies() {
		r.Dependencies = append(r.Dependencies, DepRecord{
			Hash:    e.Spec.Hash,
			Name:    e.Spec.Name,
			Types:   e.Types.String(),
			Virtual: e.Virtual,
		})
	}
	return r
}

// node rebuilds the node attributes of r, without dependencies.
func (r Record) node() (*spec.Spec, error) {
	v, err := version.Parse(r.Version)
	if err != nil {
		return nil, err
	}
	n := spec.New(r.Name)
	n.Versions = version.Exactly(v)
	n.Arch = r.Arch
	if r.Compiler != "" {
		if n.Compiler, err = spec.ParseCompiler(r.Compiler); err != nil {
			return nil, err
		}
	}
	for name, values := range r.Variants {
		n.SetVariant(spec.NewVariant(name, values...))
	}
	return n, nil
}

// Encode collects the DAGs under roots into a Lock. Every node must carry a
// hash.
func Encode(roots []*spec.Spec) (*Lock, error) {
	l := &Lock{}
	seen := make(map[string]bool)
	var visit func(n *spec.Spec) error
	visit = func(n *spec.Spec) error {
		if n.Hash == "" {
			return errors.New(errors.ErrCodeInvalidInput, "%s has no hash", n.NodeString())
		}
		if seen[n.Hash] {
			return nil
		}
		seen[n.Hash] = true
		for _, e := range n.Dependencies() {
			if err := visit(e.Spec); err != nil {
				return err
			}
		}
		l.Nodes = append(l.Nodes, NewRecord(n))
		return nil
	}
	for _, r := range roots {
		if err := visit(r); err != nil {
			return nil, err
		}
		if !slices.Contains(l.Roots, r.Hash) {
			l.Roots = append(l.Roots, r.Hash)
		}
	}
	return l, nil
}

// Decode rebuilds the DAGs of l. Each node's hash is recomputed and must
// match the recorded one; the returned specs are concrete and frozen.
func (l *Lock) Decode() ([]*spec.Spec, error) {
	return Decode(l.Roots, l.Nodes)
}

// Decode rebuilds the DAGs rooted at the given hashes from records.
func Decode(roots []string, records []Record) ([]*spec.Spec, error) {
	byHash := make(map[string]Record, len(records))
	for _, r := range records {
		byHash[r.Hash] = r
	}
	built := make(map[string]*spec.Spec)
	visiting := make(map[string]bool)

	var build func(hash string) (*spec.Spec, error)
	build = func(hash string) (*spec.Spec, error) {
		if n, ok := built[hash]; ok {
			return n, nil
		}
		r, ok := byHash[hash]
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidFormat, "no record for /%s", hash)
		}
		if visiting[hash] {
			return nil, errors.New(errors.ErrCodeInvalidFormat, "dependency cycle through /%s", hash)
		}
		visiting[hash] = true
		n, err := r.node()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "/%s", hash)
		}
		for _, d := range r.Dependencies {
			child, err := build(d.Hash)
			if err != nil {
				return nil, err
			}
			var types spec.DepType
			if err := types.UnmarshalText([]byte(d.Types)); err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "/%s -> %s", hash, d.Name)
			}
			n.AddDependency(child, types).Virtual = d.Virtual
		}
		got, err := materialize.Hash(n)
		if err != nil {
			return nil, err
		}
		if got != hash {
			return nil, errors.New(errors.ErrCodeInvalidFormat, "%s is recorded as /%s but hashes to /%s", n.NodeString(), hash, got)
		}
		n.Hash = hash
		n.Concrete = true
		n.Freeze()
		built[hash] = n
		delete(visiting, hash)
		return n, nil
	}

	out := make([]*spec.Spec, 0, len(roots))
	for _, h := range roots {
		n, err := build(h)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (r Record) String() string {
	return fmt.Sprintf("%s@=%s /%s", r.Name, r.Version, r.Hash)
}
