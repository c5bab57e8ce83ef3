package depgraph

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// unify computes the intersection of a set of SemVer ranges and picks the
// highest version from candidates that satisfies every range (§4.2
// "Version unification"). candidates is the set of known available
// versions for the package (typically from a registry tag listing); it
// may be empty, in which case any range that itself pins an exact
// version is tried as a candidate.
func unify(ranges []string, candidates []string) (string, error) {
	constraints := make([]*semver.Constraints, 0, len(ranges))
	for _, r := range ranges {
		if r == "" {
			continue
		}
		c, err := semver.NewConstraint(r)
		if err != nil {
			return "", fmt.Errorf("invalid version range %q: %w", r, err)
		}
		constraints = append(constraints, c)
	}
	if len(constraints) == 0 {
		return "", nil
	}

	pool := candidates
	if len(pool) == 0 {
		pool = ranges
	}

	var satisfying []*semver.Version
	for _, cand := range pool {
		v, err := semver.NewVersion(cand)
		if err != nil {
			continue
		}
		ok := true
		for _, c := range constraints {
			if !c.Check(v) {
				ok = false
				break
			}
		}
		if ok {
			satisfying = append(satisfying, v)
		}
	}

	if len(satisfying) == 0 {
		return "", errEmptyIntersection
	}

	sort.Sort(semver.Collection(satisfying))
	return satisfying[len(satisfying)-1].Original(), nil
}

var errEmptyIntersection = fmt.Errorf("version ranges have empty intersection")
