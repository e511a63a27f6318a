// Package version implements package version ordering and version constraints.
//
// A [Version] is a dotted, dashed or underscored string that is split into
// numeric and alphabetic segments ("1.2.0rc1" is 1, 2, 0, rc, 1). Versions are
// ordered segment by segment:
//
//   - numeric segments compare numerically
//   - alphabetic segments compare lexically and sort below any number
//   - the development names stable < trunk < head < master < main < develop
//     sort above every number
//   - when one version is a prefix of the other, the shorter one is smaller
//     (1.2 < 1.2.0)
//
// Constraints are expressed as a [List] of [Range] values. A range "lo:hi" is
// inclusive on both ends and either end may be open. Upper bounds use prefix
// semantics, so ":3" contains 3.0.4. A bare version "1.2" is shorthand for the
// range "1.2:1.2", which contains 1.2 and every 1.2.x; "=1.2" matches exactly
// 1.2 and nothing else. Comma-separated ranges form a union.
package version

import (
	"regexp"
	"strings"

	"github.com/matzehuels/stacksolve/pkg/errors"
)

// infinityNames are the development version names, lowest first. All of them
// compare greater than any numeric segment.
var infinityNames = []string{"stable", "trunk", "head", "master", "main", "develop"}

var (
	validVersion = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
	segmentRegex = regexp.MustCompile(`([0-9]+|[a-zA-Z]+)[_.-]*`)
)

type segKind uint8

const (
	segAlpha segKind = iota
	segNumber
	segInfinity
)

type segment struct {
	kind segKind
	text string // digits without leading zeros, or the alphabetic text
	inf  int    // index into infinityNames when kind == segInfinity
}

// Version is a single concrete version. The zero value is the empty version,
// which is smaller than every other version.
type Version struct {
	raw  string
	segs []segment
}

// Parse parses a single version string.
func Parse(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" || !validVersion.MatchString(s) {
		return Version{}, errors.New(errors.ErrCodeInvalidVersion, "invalid version %q", s)
	}
	matches := segmentRegex.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return Version{}, errors.New(errors.ErrCodeInvalidVersion, "invalid version %q", s)
	}
	segs := make([]segment, 0, len(matches))
	for _, m := range matches {
		segs = append(segs, newSegment(m[1]))
	}
	return Version{raw: s, segs: segs}, nil
}

// MustParse is like Parse but panics on error. It is intended for tests and
// package-level fixtures.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func newSegment(text string) segment {
	if text[0] >= '0' && text[0] <= '9' {
		trimmed := strings.TrimLeft(text, "0")
		if trimmed == "" {
			trimmed = "0"
		}
		return segment{kind: segNumber, text: trimmed}
	}
	for i, name := range infinityNames {
		if text == name {
			return segment{kind: segInfinity, text: text, inf: i}
		}
	}
	return segment{kind: segAlpha, text: text}
}

func compareSegment(a, b segment) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	switch a.kind {
	case segNumber:
		if len(a.text) != len(b.text) {
			if len(a.text) < len(b.text) {
				return -1
			}
			return 1
		}
		return strings.Compare(a.text, b.text)
	case segInfinity:
		switch {
		case a.inf < b.inf:
			return -1
		case a.inf > b.inf:
			return 1
		}
		return 0
	default:
		return strings.Compare(a.text, b.text)
	}
}

// String returns the version as it was written.
func (v Version) String() string { return v.raw }

// IsZero reports whether v is the empty version.
func (v Version) IsZero() bool { return len(v.segs) == 0 }

// Len returns the number of segments.
func (v Version) Len() int { return len(v.segs) }

// IsDevelop reports whether the version starts with a development name such
// as "develop" or "main".
func (v Version) IsDevelop() bool {
	return len(v.segs) > 0 && v.segs[0].kind == segInfinity
}

// Compare returns -1, 0 or +1 depending on whether v sorts before, equal to or
// after w.
func (v Version) Compare(w Version) int {
	n := min(len(v.segs), len(w.segs))
	for i := 0; i < n; i++ {
		if c := compareSegment(v.segs[i], w.segs[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(v.segs) < len(w.segs):
		return -1
	case len(v.segs) > len(w.segs):
		return 1
	}
	return 0
}

// Equal reports whether v and w have identical segments. "1.2" and "1_2" are
// equal; "1.2" and "1.2.0" are not.
func (v Version) Equal(w Version) bool { return v.Compare(w) == 0 }

// Less reports whether v sorts before w.
func (v Version) Less(w Version) bool { return v.Compare(w) < 0 }

// IsPrefixOf reports whether every segment of v matches the leading segments
// of w.
func (v Version) IsPrefixOf(w Version) bool {
	if len(v.segs) > len(w.segs) {
		return false
	}
	for i := range v.segs {
		if compareSegment(v.segs[i], w.segs[i]) != 0 {
			return false
		}
	}
	return true
}
