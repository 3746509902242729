package version

import (
	"fmt"
	"strconv"
	"strings"
)

// NextVersion computes the semantic version that follows current for
// the requested bump. It never fails: an unparseable current falls back
// to "1.0.0" before bumping, and an unknown bump kind degrades to
// current + ".1" so that version allocation can never block a commit.
func NextVersion(current string, bump Type) string {
	major, minor, patch, prerelease, ok := parseSemver(current)
	if !ok {
		major, minor, patch, prerelease = 1, 0, 0, ""
	}

	switch bump {
	case TypeMajor:
		return fmt.Sprintf("%d.0.0", major+1)
	case TypeMinor:
		return fmt.Sprintf("%d.%d.0", major, minor+1)
	case TypePatch, TypeHotfix:
		return fmt.Sprintf("%d.%d.%d", major, minor, patch+1)
	case TypeBeta, TypeAlpha:
		label := string(bump)
		core := fmt.Sprintf("%d.%d.%d", major, minor, patch)
		return core + "-" + nextPrerelease(prerelease, label)
	default:
		return current + ".1"
	}
}

// nextPrerelease advances a same-kind prerelease sequence, or starts
// one at .1.
func nextPrerelease(prerelease, label string) string {
	if strings.HasPrefix(prerelease, label+".") {
		if n, err := strconv.Atoi(strings.TrimPrefix(prerelease, label+".")); err == nil {
			return fmt.Sprintf("%s.%d", label, n+1)
		}
	}
	if prerelease == label {
		return label + ".2"
	}
	return label + ".1"
}

func parseSemver(s string) (major, minor, patch int, prerelease string, ok bool) {
	core := s
	if idx := strings.IndexByte(s, '-'); idx >= 0 {
		core = s[:idx]
		prerelease = s[idx+1:]
	}
	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		return 0, 0, 0, "", false
	}
	var err error
	if major, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, 0, "", false
	}
	if minor, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, 0, "", false
	}
	if patch, err = strconv.Atoi(parts[2]); err != nil {
		return 0, 0, 0, "", false
	}
	return major, minor, patch, prerelease, true
}
