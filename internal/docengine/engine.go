// Package docengine is the boundary to the document engine collaborator.
// The edit engine talks to it exclusively through these interfaces; PDF
// syntax, fonts and image codecs live on the other side.
package docengine

import (
	"context"
	"errors"

	"github.com/niceday-app/pdf-edit-service/internal/types"
)

// ErrOpen wraps any failure to open the source document. It is fatal for the
// whole request.
var ErrOpen = errors.New("docengine: cannot open document")

// Engine opens documents. One Engine instance serves all requests; each
// returned Document belongs to exactly one request.
type Engine interface {
	Open(ctx context.Context, pdf []byte) (Document, error)
}

// Document is an exclusively-owned handle on an open document. Callers must
// Close it on every exit path. Mutating calls are synchronous and fallible;
// retries are the caller's concern.
type Document interface {
	// PageCount reports the current number of pages, reflecting deletions
	// already applied through this handle.
	PageCount() int

	// DeletePage removes the page at index (0-based, current numbering).
	// Callers guarantee descending-order invocation across a batch.
	DeletePage(ctx context.Context, index int) error

	// EraseRegion blanks all existing content inside r on the given page.
	EraseRegion(ctx context.Context, page int, r types.Rect) error

	// InsertText draws text clipped to r with the given color, font size
	// and alignment.
	InsertText(ctx context.Context, page int, r types.Rect, text string, col types.RGB, size float64, align types.Alignment) error

	// InsertImage composites the image onto the page, stretched to the full
	// page rect, painted above existing content.
	InsertImage(ctx context.Context, page int, img []byte) error

	// Serialize produces the output bytes, applying whatever compaction the
	// engine does internally.
	Serialize(ctx context.Context) ([]byte, error)

	Close() error
}
