package edit

import (
	"fmt"
	"strings"

	"github.com/niceday-app/pdf-edit-service/internal/types"
)

// AddressingMode declares which epoch overlay page tags refer to. It is set
// explicitly per batch by the caller; the engine never infers it. Mixing
// conventions inside one batch is a caller error and not detected here.
type AddressingMode string

const (
	// AddressOriginal: overlay tags are original-epoch indices (the common
	// case — the tag encodes the page the overlay was drawn on).
	AddressOriginal AddressingMode = "original"
	// AddressFinal: overlay tags are final-epoch indices (overlays were
	// generated only for pages already known to survive).
	AddressFinal AddressingMode = "final"
)

// ParseAddressingMode validates a mode string, defaulting empty to original.
func ParseAddressingMode(s string) (AddressingMode, error) {
	switch AddressingMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", AddressOriginal:
		return AddressOriginal, nil
	case AddressFinal:
		return AddressFinal, nil
	default:
		return "", fmt.Errorf("unknown overlay addressing mode %q", s)
	}
}

// EditBatch is one request's worth of edits plus its deletion set. It is
// consumed exactly once by composition and discarded with the request.
type EditBatch struct {
	Mode      AddressingMode
	Overlays  []types.OverlayEdit
	TextEdits []types.TextReplacementEdit
}

// ResolvedOverlay pairs an overlay with its final-epoch page index.
type ResolvedOverlay struct {
	Page    int // final epoch
	Overlay types.OverlayEdit
}

// ResolvedText pairs a text replacement with its final-epoch page index. The
// original index is kept because replacements are applied before deletion,
// while page numbering is still original-epoch.
type ResolvedText struct {
	Page         int // final epoch
	OriginalPage int
	Edit         types.TextReplacementEdit
}

// ResolvedBatch references only pages that exist in the output document.
type ResolvedBatch struct {
	Overlays  []ResolvedOverlay
	TextEdits []ResolvedText
}

// Resolve maps every edit in the batch to a final-epoch page index. Edits
// targeting a deleted page, or carrying an out-of-range tag, are dropped
// without error — deleting a page implicitly discards edits scoped to it,
// and one malformed entry must not abort the whole request.
func Resolve(batch EditBatch, im IndexMap) ResolvedBatch {
	out := ResolvedBatch{}

	for _, ov := range batch.Overlays {
		switch batch.Mode {
		case AddressFinal:
			// The tag already is the final index; only range-check it.
			if ov.Page < 0 || ov.Page >= im.Survivors() {
				continue
			}
			out.Overlays = append(out.Overlays, ResolvedOverlay{Page: ov.Page, Overlay: ov})
		default:
			final, ok := im.Final(ov.Page)
			if !ok {
				continue
			}
			out.Overlays = append(out.Overlays, ResolvedOverlay{Page: final, Overlay: ov})
		}
	}

	// Text replacements are always authored against the original epoch.
	for _, te := range batch.TextEdits {
		final, ok := im.Final(te.Page)
		if !ok {
			continue
		}
		out.TextEdits = append(out.TextEdits, ResolvedText{
			Page:         final,
			OriginalPage: te.Page,
			Edit:         te,
		})
	}

	return out
}
