package edit

import (
	"reflect"
	"strconv"
	"testing"
)

func TestNormalizeDeletions(t *testing.T) {
	tests := []struct {
		name      string
		raw       []string
		pageCount int
		want      []int // sorted descending
	}{
		{
			name:      "mixed validity",
			raw:       []string{"2", "x", "-1", "2"},
			pageCount: 5,
			want:      []int{2},
		},
		{
			name:      "empty input",
			raw:       nil,
			pageCount: 5,
			want:      []int{},
		},
		{
			name:      "entirely unparsable",
			raw:       []string{"a", "", "3.5", "true"},
			pageCount: 5,
			want:      []int{},
		},
		{
			name:      "out of range dropped",
			raw:       []string{"0", "4", "5", "100"},
			pageCount: 5,
			want:      []int{4, 0},
		},
		{
			name:      "whitespace tolerated",
			raw:       []string{" 1 ", "3"},
			pageCount: 5,
			want:      []int{3, 1},
		},
		{
			name:      "duplicates collapse",
			raw:       []string{"1", "1", "1", "2"},
			pageCount: 3,
			want:      []int{2, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeDeletions(tt.raw, tt.pageCount)
			if !reflect.DeepEqual(got.SortedDescending(), tt.want) {
				t.Errorf("NormalizeDeletions(%v, %d) = %v, want %v",
					tt.raw, tt.pageCount, got.SortedDescending(), tt.want)
			}
		})
	}
}

func TestNormalizeDeletionsIdempotent(t *testing.T) {
	first := NormalizeDeletions([]string{"4", "1", "junk", "1"}, 6)

	asRaw := make([]string, 0, first.Len())
	for _, idx := range first.SortedDescending() {
		asRaw = append(asRaw, strconv.Itoa(idx))
	}

	second := NormalizeDeletions(asRaw, 6)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("re-normalizing canonical set changed it: %v vs %v", first, second)
	}
}
