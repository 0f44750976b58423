package edit

import (
	"sort"
	"strconv"
	"strings"
)

// DeletionSet is a set of original-epoch page indices scheduled for removal.
// It is built once per request by NormalizeDeletions and never mutated after.
type DeletionSet map[int]struct{}

func (d DeletionSet) Contains(idx int) bool {
	_, ok := d[idx]
	return ok
}

func (d DeletionSet) Len() int { return len(d) }

// SortedDescending returns the members highest-first, the only order in which
// the compositor may apply them.
func (d DeletionSet) SortedDescending() []int {
	out := make([]int, 0, len(d))
	for idx := range d {
		out = append(out, idx)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

// NormalizeDeletions turns a raw list of page references into a validated
// DeletionSet. Entries that fail to parse as an integer, or that fall outside
// [0, pageCount), are dropped silently — one malformed entry must not block
// deletion of the valid ones. An entirely unparsable input yields an empty
// set; this function never fails.
func NormalizeDeletions(raw []string, pageCount int) DeletionSet {
	out := make(DeletionSet, len(raw))
	for _, entry := range raw {
		idx, err := strconv.Atoi(strings.TrimSpace(entry))
		if err != nil {
			continue
		}
		if idx < 0 || idx >= pageCount {
			continue
		}
		out[idx] = struct{}{}
	}
	return out
}
