// Package edit is the index-reconciliation and edit-composition engine.
// Overlays and text replacements are authored against the page numbering of
// the uploaded document (the original epoch), while deletions shift every
// subsequent page's position (the final epoch). This package normalizes the
// deletion set, builds the original→final index map, resolves each edit to
// its final page, and applies all three edit kinds as one transformation.
package edit

import (
	"context"
	"fmt"
	"os"

	"github.com/niceday-app/pdf-edit-service/internal/docengine"
	"github.com/niceday-app/pdf-edit-service/internal/types"
)

// Request is everything one call to ApplyEditBatch consumes. DeletionRefs
// and overlay pages arrive unvalidated; normalization and resolution happen
// inside the engine.
type Request struct {
	PDF          []byte
	DeletionRefs []string
	Overlays     []types.OverlayEdit
	TextEdits    []types.TextReplacementEdit
	Mode         AddressingMode
}

// ApplyEditBatch runs the full pipeline: normalize → remap → resolve →
// compose → serialize. Only document open and serialize failures propagate;
// malformed entries and per-edit engine failures are dropped or recorded
// per the best-effort policy. The document handle is released on every exit
// path.
func ApplyEditBatch(ctx context.Context, eng docengine.Engine, req Request) ([]byte, error) {
	doc, err := eng.Open(ctx, req.PDF)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer doc.Close()

	pageCount := doc.PageCount()

	del := NormalizeDeletions(req.DeletionRefs, pageCount)
	im := BuildIndexMap(pageCount, del)

	resolved := Resolve(EditBatch{
		Mode:      req.Mode,
		Overlays:  req.Overlays,
		TextEdits: req.TextEdits,
	}, im)

	for _, f := range Compose(ctx, doc, del, resolved) {
		fmt.Fprintf(os.Stderr, "export: %s\n", f)
	}

	out, err := doc.Serialize(ctx)
	if err != nil {
		return nil, fmt.Errorf("serialize document: %w", err)
	}
	return out, nil
}
