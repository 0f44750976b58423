package edit

import (
	"context"
	"fmt"

	"github.com/niceday-app/pdf-edit-service/internal/docengine"
)

// EditFailure records one edit the document engine rejected. The failure is
// absorbed here; composition of the remaining batch continues.
type EditFailure struct {
	Kind string // "text" | "delete" | "overlay"
	Page int
	Err  error
}

func (f EditFailure) String() string {
	return fmt.Sprintf("%s edit on page %d skipped: %v", f.Kind, f.Page, f.Err)
}

// Compose applies one resolved batch against an open document. The phase
// order is fixed and load-bearing:
//
//  1. text replacements, at original-epoch indices, before any deletion —
//     their regions are defined in original page coordinates;
//  2. deletions, strictly descending, so lower indices stay valid;
//  3. overlays, at final-epoch indices, after deletion.
//
// Per-edit engine failures are recorded and skipped. Deleting an index that
// is already out of range is a no-op.
func Compose(ctx context.Context, doc docengine.Document, del DeletionSet, batch ResolvedBatch) []EditFailure {
	var failures []EditFailure

	for _, te := range batch.TextEdits {
		if err := doc.EraseRegion(ctx, te.OriginalPage, te.Edit.Region); err != nil {
			failures = append(failures, EditFailure{Kind: "text", Page: te.OriginalPage, Err: err})
			continue
		}
		err := doc.InsertText(ctx, te.OriginalPage, te.Edit.Region, te.Edit.Text,
			te.Edit.EffectiveColor(), te.Edit.EffectiveSize(), te.Edit.Align)
		if err != nil {
			failures = append(failures, EditFailure{Kind: "text", Page: te.OriginalPage, Err: err})
		}
	}

	for _, idx := range del.SortedDescending() {
		if idx >= doc.PageCount() {
			continue
		}
		if err := doc.DeletePage(ctx, idx); err != nil {
			failures = append(failures, EditFailure{Kind: "delete", Page: idx, Err: err})
		}
	}

	for _, ov := range batch.Overlays {
		if err := doc.InsertImage(ctx, ov.Page, ov.Overlay.Image); err != nil {
			failures = append(failures, EditFailure{Kind: "overlay", Page: ov.Page, Err: err})
		}
	}

	return failures
}
