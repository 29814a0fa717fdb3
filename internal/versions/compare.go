package versions

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Compare orders two package version strings. Valid semver sorts by precedence and
// before anything that does not parse, which sorts lexically. Equal precedence with
// different spellings ("1.0.0" and "v1.0.0") falls back to the string order so the
// result is total.
func Compare(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	switch {
	case errA == nil && errB == nil:
		if c := va.Compare(vb); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}
