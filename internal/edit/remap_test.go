package edit

import (
	"strconv"
	"testing"
)

func TestBuildIndexMapExample(t *testing.T) {
	// N=5, D={1,3} → {0→0, 1→absent, 2→1, 3→absent, 4→2}
	del := NormalizeDeletions([]string{"1", "3"}, 5)
	im := BuildIndexMap(5, del)

	want := map[int]int{0: 0, 2: 1, 4: 2}
	for orig := 0; orig < 5; orig++ {
		final, ok := im.Final(orig)
		if wantFinal, survives := want[orig]; survives {
			if !ok {
				t.Errorf("Final(%d) absent, want %d", orig, wantFinal)
			} else if final != wantFinal {
				t.Errorf("Final(%d) = %d, want %d", orig, final, wantFinal)
			}
		} else if ok {
			t.Errorf("Final(%d) = %d, want absent (deleted)", orig, final)
		}
	}

	if im.Survivors() != 3 {
		t.Errorf("Survivors() = %d, want 3", im.Survivors())
	}
	if im.OriginalCount() != 5 {
		t.Errorf("OriginalCount() = %d, want 5", im.OriginalCount())
	}
}

// The map restricted to survivors must be strictly increasing and its image
// exactly [0, N−|D|), for any deletion set.
func TestBuildIndexMapProperties(t *testing.T) {
	cases := []struct {
		pageCount int
		deletions []string
	}{
		{0, nil},
		{1, nil},
		{1, []string{"0"}},
		{5, nil},
		{5, []string{"0", "1", "2", "3", "4"}},
		{7, []string{"0", "6"}},
		{10, []string{"2", "3", "5", "9"}},
		{12, []string{"11"}},
	}

	for _, tc := range cases {
		t.Run(strconv.Itoa(tc.pageCount)+"pages", func(t *testing.T) {
			del := NormalizeDeletions(tc.deletions, tc.pageCount)
			im := BuildIndexMap(tc.pageCount, del)

			wantSurvivors := tc.pageCount - del.Len()
			if im.Survivors() != wantSurvivors {
				t.Fatalf("Survivors() = %d, want %d", im.Survivors(), wantSurvivors)
			}

			seen := make(map[int]bool)
			prev := -1
			for orig := 0; orig < tc.pageCount; orig++ {
				final, ok := im.Final(orig)
				if del.Contains(orig) {
					if ok {
						t.Errorf("Final(%d) = %d, want absent", orig, final)
					}
					continue
				}
				if !ok {
					t.Fatalf("Final(%d) absent for surviving page", orig)
				}
				if final <= prev {
					t.Errorf("Final(%d) = %d not strictly increasing (prev %d)", orig, final, prev)
				}
				if final < 0 || final >= wantSurvivors {
					t.Errorf("Final(%d) = %d outside [0,%d)", orig, final, wantSurvivors)
				}
				if seen[final] {
					t.Errorf("Final(%d) = %d assigned twice", orig, final)
				}
				seen[final] = true
				prev = final
			}
			if len(seen) != wantSurvivors {
				t.Errorf("image covers %d indices, want %d", len(seen), wantSurvivors)
			}
		})
	}
}

func TestIndexMapFinalOutOfRange(t *testing.T) {
	im := BuildIndexMap(3, DeletionSet{})
	for _, orig := range []int{-1, 3, 100} {
		if final, ok := im.Final(orig); ok {
			t.Errorf("Final(%d) = %d, want absent for out-of-range index", orig, final)
		}
	}
}
