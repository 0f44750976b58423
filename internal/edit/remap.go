package edit

// IndexMap is a total map from original-epoch page index to final-epoch
// index. Deleted pages map to absent. Restricted to surviving indices the
// map is strictly increasing and its image is exactly [0, Survivors).
type IndexMap struct {
	final     []int // -1 marks a deleted page
	survivors int
}

const deleted = -1

// BuildIndexMap walks original indices 0..pageCount-1 once, carrying a
// running count of deletions seen, so the whole map costs O(N + |D|).
func BuildIndexMap(pageCount int, del DeletionSet) IndexMap {
	final := make([]int, pageCount)
	removed := 0
	for i := 0; i < pageCount; i++ {
		if del.Contains(i) {
			final[i] = deleted
			removed++
			continue
		}
		final[i] = i - removed
	}
	return IndexMap{final: final, survivors: pageCount - removed}
}

// Final resolves an original-epoch index. ok is false when the index is out
// of range or its page was deleted.
func (m IndexMap) Final(original int) (int, bool) {
	if original < 0 || original >= len(m.final) {
		return 0, false
	}
	f := m.final[original]
	if f == deleted {
		return 0, false
	}
	return f, true
}

// Survivors is the final-epoch page count M.
func (m IndexMap) Survivors() int { return m.survivors }

// OriginalCount is the original-epoch page count N.
func (m IndexMap) OriginalCount() int { return len(m.final) }
