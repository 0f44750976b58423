package edit

import (
	"fmt"
	"testing"

	"github.com/niceday-app/pdf-edit-service/internal/types"
)

func overlay(page int) types.OverlayEdit {
	return types.OverlayEdit{Tag: fmt.Sprintf("overlay_%d.png", page), Page: page, Image: []byte{0x89}}
}

func TestResolveOriginalModeDropsDeletedTarget(t *testing.T) {
	del := NormalizeDeletions([]string{"2"}, 5)
	im := BuildIndexMap(5, del)

	got := Resolve(EditBatch{
		Mode:     AddressOriginal,
		Overlays: []types.OverlayEdit{overlay(2)},
	}, im)

	if len(got.Overlays) != 0 {
		t.Errorf("overlay targeting deleted page resolved to %v, want dropped", got.Overlays)
	}
}

func TestResolveOriginalModeRemaps(t *testing.T) {
	del := NormalizeDeletions([]string{"0", "2"}, 4)
	im := BuildIndexMap(4, del)

	got := Resolve(EditBatch{
		Mode:     AddressOriginal,
		Overlays: []types.OverlayEdit{overlay(1), overlay(3)},
	}, im)

	if len(got.Overlays) != 2 {
		t.Fatalf("resolved %d overlays, want 2", len(got.Overlays))
	}
	if got.Overlays[0].Page != 0 {
		t.Errorf("overlay tagged 1 resolved to final %d, want 0", got.Overlays[0].Page)
	}
	if got.Overlays[1].Page != 1 {
		t.Errorf("overlay tagged 3 resolved to final %d, want 1", got.Overlays[1].Page)
	}
}

func TestResolveFinalMode(t *testing.T) {
	// 5 original pages, 2 deleted → M=3. Tags 0..2 accepted as-is, 3 rejected.
	del := NormalizeDeletions([]string{"1", "3"}, 5)
	im := BuildIndexMap(5, del)

	got := Resolve(EditBatch{
		Mode:     AddressFinal,
		Overlays: []types.OverlayEdit{overlay(0), overlay(1), overlay(2), overlay(3)},
	}, im)

	if len(got.Overlays) != 3 {
		t.Fatalf("resolved %d overlays, want 3", len(got.Overlays))
	}
	for i, ro := range got.Overlays {
		if ro.Page != i {
			t.Errorf("overlay %d resolved to page %d, want %d (final-mode tags pass through)", i, ro.Page, i)
		}
	}
}

// The §8 ordering scenario: 3 pages, page 1 deleted, an overlay tagged "1"
// in final mode must land on original page 2, which sits at final index 1.
func TestResolveFinalModeAfterDeletionShift(t *testing.T) {
	del := NormalizeDeletions([]string{"1"}, 3)
	im := BuildIndexMap(3, del)

	got := Resolve(EditBatch{
		Mode:     AddressFinal,
		Overlays: []types.OverlayEdit{overlay(1)},
	}, im)

	if len(got.Overlays) != 1 || got.Overlays[0].Page != 1 {
		t.Fatalf("resolved = %+v, want single overlay at final page 1", got.Overlays)
	}
	// Cross-check: original page 2 is the one living at final index 1.
	if final, ok := im.Final(2); !ok || final != 1 {
		t.Errorf("Final(2) = %d,%v — want 1,true", final, ok)
	}
}

func TestResolveTextAlwaysOriginalEpoch(t *testing.T) {
	del := NormalizeDeletions([]string{"0"}, 3)
	im := BuildIndexMap(3, del)

	rect := types.Rect{X0: 10, Y0: 10, X1: 200, Y1: 40}
	got := Resolve(EditBatch{
		Mode: AddressFinal, // mode applies to overlays only
		TextEdits: []types.TextReplacementEdit{
			{Page: 0, Region: rect, Text: "gone"},
			{Page: 2, Region: rect, Text: "kept"},
		},
	}, im)

	if len(got.TextEdits) != 1 {
		t.Fatalf("resolved %d text edits, want 1", len(got.TextEdits))
	}
	te := got.TextEdits[0]
	if te.OriginalPage != 2 || te.Page != 1 {
		t.Errorf("text edit resolved to orig=%d final=%d, want orig=2 final=1", te.OriginalPage, te.Page)
	}
	if te.Edit.Text != "kept" {
		t.Errorf("wrong edit survived: %q", te.Edit.Text)
	}
}

func TestResolveDropsOutOfRangeTags(t *testing.T) {
	im := BuildIndexMap(2, DeletionSet{})

	got := Resolve(EditBatch{
		Mode:     AddressOriginal,
		Overlays: []types.OverlayEdit{overlay(7)},
		TextEdits: []types.TextReplacementEdit{
			{Page: -1, Text: "x"},
			{Page: 9, Text: "y"},
		},
	}, im)

	if len(got.Overlays) != 0 || len(got.TextEdits) != 0 {
		t.Errorf("out-of-range edits survived resolution: %+v", got)
	}
}

func TestParseAddressingMode(t *testing.T) {
	tests := []struct {
		in      string
		want    AddressingMode
		wantErr bool
	}{
		{"", AddressOriginal, false},
		{"original", AddressOriginal, false},
		{"FINAL", AddressFinal, false},
		{" final ", AddressFinal, false},
		{"auto", "", true},
		{"both", "", true},
	}
	for _, tt := range tests {
		got, err := ParseAddressingMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAddressingMode(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAddressingMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
