// Package versioning implements the hybrid auto-patch/manual-bump scheme
// over document working state (spec.md §4.3) and project compiled output
// (spec.md §4.4), backed by the content-addressable blob store for
// screenshot deduplication across snapshots.
package versioning

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/stubborncoder/vdocs/internal/verrors"
)

// Version is a semver-shaped value type compared component-wise rather
// than lexically (spec.md §9's explicit recommendation: "semver strings
// are convenient but compare lexically unsafe").
type Version struct {
	Major, Minor, Patch int
}

// InitialVersion is the version assigned to a brand-new document or
// compilation, per spec.md §4.3.
var InitialVersion = Version{Major: 1, Minor: 0, Patch: 0}

// Parse parses a "X.Y.Z" string into a Version.
func Parse(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, verrors.InvalidInput("version", "expected X.Y.Z, got "+s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, verrors.InvalidInput("version", "non-numeric component in "+s)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// String renders the version as "X.Y.Z".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than other.
func (v Version) Compare(other Version) int {
	switch {
	case v.Major != other.Major:
		return sign(v.Major - other.Major)
	case v.Minor != other.Minor:
		return sign(v.Minor - other.Minor)
	default:
		return sign(v.Patch - other.Patch)
	}
}

// Less reports whether v sorts before other.
func (v Version) Less(other Version) bool { return v.Compare(other) < 0 }

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

// BumpKind selects how Next/Bump advances a version.
type BumpKind string

const (
	BumpPatch BumpKind = "patch"
	BumpMinor BumpKind = "minor"
	BumpMajor BumpKind = "major"
)

// Next returns the version produced by bumping v by kind. BumpPatch is
// only ever produced internally by auto-patch; callers requesting an
// explicit bump must use BumpMinor or BumpMajor (spec.md §4.3).
func (v Version) Next(kind BumpKind) (Version, error) {
	switch kind {
	case BumpPatch:
		return Version{v.Major, v.Minor, v.Patch + 1}, nil
	case BumpMinor:
		return Version{v.Major, v.Minor + 1, 0}, nil
	case BumpMajor:
		return Version{v.Major + 1, 0, 0}, nil
	default:
		return Version{}, verrors.InvalidInput("bump_kind", "must be minor or major")
	}
}
