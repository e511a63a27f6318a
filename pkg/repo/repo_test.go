package repo

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/stacksolve/pkg/errors"
)

func TestLoad(t *testing.T) {
	r, err := Load("testdata/packages")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if diff := cmp.Diff([]string{"libxml2", "manyvariants", "zlib"}, r.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}

	broken := r.Broken()
	if _, ok := broken["broken"]; !ok {
		t.Errorf("Broken() = %v, want entry for broken", broken)
	}
	if !errors.Is(broken["broken"], errors.ErrCodeMalformedPackage) {
		t.Errorf("broken error = %v, want MALFORMED_PACKAGE", broken["broken"])
	}

	zlib, ok := r.Get("zlib")
	if !ok {
		t.Fatal("zlib missing")
	}
	if len(zlib.Versions) != 2 || zlib.Versions[0].Version != "1.3" {
		t.Errorf("zlib versions = %+v", zlib.Versions)
	}
	if zlib.Variants[0].Default != true {
		t.Errorf("shared default = %#v, want true", zlib.Variants[0].Default)
	}
	if zlib.Variants[1].When != "~shared" {
		t.Errorf("pic when = %q", zlib.Variants[1].When)
	}

	xml, _ := r.Get("libxml2")
	if diff := cmp.Diff([]string{"build", "link"}, xml.DependsOn[0].Type); diff != "" {
		t.Errorf("libxml2 dep types mismatch (-want +got):\n%s", diff)
	}
	if xml.Conflicts[0].Msg != "intel miscompiles the parser" {
		t.Errorf("conflict msg = %q", xml.Conflicts[0].Msg)
	}
}

func TestLoadYAMLMatchVariants(t *testing.T) {
	r, err := Load("testdata/packages")
	if err != nil {
		t.Fatal(err)
	}
	mv, _ := r.Get("manyvariants")

	want := []MatchVariants{
		{Names: []string{"c", "d"}},
		{All: true},
		{},
	}
	got := make([]MatchVariants, len(mv.CanSplice))
	for i, s := range mv.CanSplice {
		got[i] = s.MatchVariants
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("match_variants mismatch (-want +got):\n%s", diff)
	}

	vals, err := mv.Variants[1].DefaultValues()
	if err != nil || len(vals) != 1 || vals[0] != "v1" {
		t.Errorf("DefaultValues() = %v, %v", vals, err)
	}
}

func TestLoadMissingDir(t *testing.T) {
	if _, err := Load("testdata/nope"); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("Load() error = %v, want FILE_NOT_FOUND", err)
	}
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New(&PackageDef{Name: "zlib"}, &PackageDef{Name: "zlib"})
	if err == nil {
		t.Fatal("New() should reject duplicate names")
	}
	if _, err := New(&PackageDef{Name: "../etc"}); err == nil {
		t.Fatal("New() should reject unsafe names")
	}
}

func TestDigestChangesWithContent(t *testing.T) {
	a := MustNew(&PackageDef{Name: "zlib", Versions: []VersionDef{{Version: "1.3"}}})
	b := MustNew(&PackageDef{Name: "zlib", Versions: []VersionDef{{Version: "1.3.1"}}})
	if a.Digest("zlib") == b.Digest("zlib") {
		t.Error("different recipes should have different digests")
	}
	c := MustNew(&PackageDef{Name: "zlib", Versions: []VersionDef{{Version: "1.3"}}})
	if a.Digest("zlib") != c.Digest("zlib") {
		t.Error("identical recipes should have identical digests")
	}
}

func TestDefaultValues(t *testing.T) {
	tests := []struct {
		name string
		def  any
		want []string
	}{
		{"nil", nil, nil},
		{"bool", false, []string{"false"}},
		{"string", "v1", []string{"v1"}},
		{"comma string", "x,y", []string{"x", "y"}},
		{"list", []any{"x", "y"}, []string{"x", "y"}},
		{"int", int64(3), []string{"3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := VariantDef{Default: tt.def}.DefaultValues()
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DefaultValues() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
