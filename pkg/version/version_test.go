package version

import (
	"testing"

	"github.com/matzehuels/stacksolve/pkg/errors"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.2", "1.2", 0},
		{"1.2", "1_2", 0},
		{"1.2", "1.3", -1},
		{"1.10", "1.9", 1},
		{"1.2", "1.2.0", -1},
		{"1.2rc1", "1.2.1", -1},
		{"1.2a", "1.2", 1},
		{"develop", "99999", 1},
		{"main", "develop", -1},
		{"stable", "trunk", -1},
		{"2.0.0", "2.0.1", -1},
		{"0010", "10", 0},
		{"12345678901234567890", "9", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			got := MustParse(tt.a).Compare(MustParse(tt.b))
			if got != tt.want {
				t.Errorf("Compare(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if back := MustParse(tt.b).Compare(MustParse(tt.a)); back != -tt.want {
				t.Errorf("Compare(%s, %s) = %d, want %d", tt.b, tt.a, back, -tt.want)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, s := range []string{"", "1.2 3", "1@2", "...", "1:2"} {
		if _, err := Parse(s); !errors.Is(err, errors.ErrCodeInvalidVersion) {
			t.Errorf("Parse(%q) error = %v, want INVALID_VERSION", s, err)
		}
	}
}

func TestIsPrefixOf(t *testing.T) {
	if !MustParse("3").IsPrefixOf(MustParse("3.0.4")) {
		t.Error("3 should be a prefix of 3.0.4")
	}
	if MustParse("3.1").IsPrefixOf(MustParse("3.10")) {
		t.Error("3.1 should not be a prefix of 3.10")
	}
}

func TestRangeContains(t *testing.T) {
	tests := []struct {
		rng  string
		v    string
		want bool
	}{
		{":3", "3.0.4", true},
		{":3", "4", false},
		{"1.2:1.4", "1.3.7", true},
		{"1.2:1.4", "1.1", false},
		{"1.2:1.4", "1.4.2", true},
		{"1.2", "1.2.5", true},
		{"1.2", "1.3", false},
		{"=1.2", "1.2", true},
		{"=1.2", "1.2.5", false},
		{"3:", "3.0.4", true},
		{"3:", "2.9", false},
		{":", "0.1", true},
	}

	for _, tt := range tests {
		t.Run(tt.rng+"_"+tt.v, func(t *testing.T) {
			r, err := ParseRange(tt.rng)
			if err != nil {
				t.Fatalf("ParseRange(%q) error = %v", tt.rng, err)
			}
			if got := r.Contains(MustParse(tt.v)); got != tt.want {
				t.Errorf("%s.Contains(%s) = %v, want %v", tt.rng, tt.v, got, tt.want)
			}
		})
	}
}

func TestParseRangeEmpty(t *testing.T) {
	if _, err := ParseRange("3:1"); err == nil {
		t.Error("ParseRange(3:1) should fail")
	}
	if _, err := ParseRange("1:2:3"); err == nil {
		t.Error("ParseRange(1:2:3) should fail")
	}
}

func TestListIntersect(t *testing.T) {
	tests := []struct {
		a, b string
		want string
		ok   bool
	}{
		{":1", "3:", "", false},
		{"1:3", "2:5", "2:3", true},
		{":3", "3.0.4", "3.0.4", true},
		{"3.0.4", "=3.0.4", "=3.0.4", true},
		{"1.2,2.0", "2:", "2.0", true},
		{"", "1.2", "1.2", true},
		{":3", ":3.1", ":3.1", true},
	}

	for _, tt := range tests {
		t.Run(tt.a+"&"+tt.b, func(t *testing.T) {
			got, ok := MustParseList(tt.a).Intersect(MustParseList(tt.b))
			if ok != tt.ok {
				t.Fatalf("Intersect ok = %v, want %v", ok, tt.ok)
			}
			if ok && got.String() != tt.want {
				t.Errorf("Intersect = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestListSubset(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"=3.0.4", ":3", true},
		{"3.0.4", ":3", true},
		{":3", "3.0.4", false},
		{"1.2:1.3", "1:", true},
		{"1:", "1.2:1.3", false},
		{"", "1.2", false},
		{"1.2", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.a+"<="+tt.b, func(t *testing.T) {
			if got := MustParseList(tt.a).Subset(MustParseList(tt.b)); got != tt.want {
				t.Errorf("Subset(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestListConcrete(t *testing.T) {
	if v, ok := MustParseList("=2.0.1").Concrete(); !ok || v.String() != "2.0.1" {
		t.Errorf("Concrete() = %v, %v", v, ok)
	}
	if _, ok := MustParseList("2.0.1").Concrete(); ok {
		t.Error("bare version should not be concrete")
	}
}
