package solver

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/stacksolve/pkg/errors"
)

func TestParseCriteria(t *testing.T) {
	tests := []struct {
		in      []string
		want    []Criterion
		wantErr bool
	}{
		{nil, DefaultCriteria, false},
		{[]string{"versions"}, []Criterion{Versions, Builds, Variants, Providers, Compilers, Packages}, false},
		{[]string{" packages ", "builds"}, []Criterion{Packages, Builds, Versions, Variants, Providers, Compilers}, false},
		{[]string{"speed"}, nil, true},
		{[]string{"builds", "builds"}, nil, true},
	}
	for _, tt := range tests {
		got, err := ParseCriteria(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCriteria(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			if !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("ParseCriteria(%q) error code = %s", tt.in, errors.GetCode(err))
			}
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("ParseCriteria(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestCostCompare(t *testing.T) {
	fewBuilds := Cost{Builds: 1, Versions: 3}
	newest := Cost{Builds: 2}

	if got := fewBuilds.Compare(newest, DefaultCriteria); got != -1 {
		t.Errorf("builds first: Compare = %d, want -1", got)
	}
	versionsFirst := []Criterion{Versions, Builds, Variants, Providers, Compilers, Packages}
	if got := fewBuilds.Compare(newest, versionsFirst); got != 1 {
		t.Errorf("versions first: Compare = %d, want 1", got)
	}
	if got := newest.Compare(newest, DefaultCriteria); got != 0 {
		t.Errorf("Compare(self) = %d, want 0", got)
	}
	if got := fewBuilds.add(newest); got != (Cost{Builds: 3, Versions: 3}) {
		t.Errorf("add = %+v", got)
	}
}

func TestPolicyNormalized(t *testing.T) {
	p, err := Policy{}.normalized()
	if err != nil {
		t.Fatal(err)
	}
	if p.VersionOrder != Newest || p.MaxSteps != DefaultMaxSteps {
		t.Errorf("normalized = %+v", p)
	}
	if diff := cmp.Diff(DefaultCriteria, p.Criteria); diff != "" {
		t.Errorf("criteria mismatch (-want +got):\n%s", diff)
	}
	if _, err := (Policy{VersionOrder: "random"}).normalized(); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("unknown version order error = %v", err)
	}
}

func TestRequirementString(t *testing.T) {
	tests := []struct {
		r    Requirement
		want string
	}{
		{Requirement{Constraint: "hdf5+mpi"}, "request asks for hdf5+mpi"},
		{Requirement{Requirer: "hdf5", Constraint: "mpi"}, "hdf5 requires mpi"},
		{Requirement{Requirer: "hdf5", Constraint: "mpi", When: "+mpi"}, "hdf5 requires mpi when +mpi"},
	}
	for _, tt := range tests {
		if got := tt.r.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
