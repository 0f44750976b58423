package types

import "strings"

// Rect is a rectangle in page space, in points. x0,y0 is the lower-left
// corner, x1,y1 the upper-right.
type Rect struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

func (r Rect) Width() float64  { return r.X1 - r.X0 }
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

func (r Rect) Valid() bool {
	return r.Width() > 0 && r.Height() > 0
}

// RGB is a color triple with components in [0,1].
type RGB struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

var Black = RGB{0, 0, 0}

type Alignment string

const (
	AlignLeft    Alignment = "left"
	AlignCenter  Alignment = "center"
	AlignRight   Alignment = "right"
	AlignJustify Alignment = "justify"
)

// ParseAlignment maps a free-form string to an Alignment, defaulting to left.
func ParseAlignment(s string) Alignment {
	switch Alignment(strings.ToLower(strings.TrimSpace(s))) {
	case AlignCenter:
		return AlignCenter
	case AlignRight:
		return AlignRight
	case AlignJustify:
		return AlignJustify
	default:
		return AlignLeft
	}
}

// OverlayEdit is a full-page image composited above existing page content,
// stretched to the page rect. Page is the index under the batch's addressing
// mode; Tag is the opaque reference it was extracted from (kept for logging).
type OverlayEdit struct {
	Tag   string
	Page  int
	Image []byte // encoded image bytes (PNG/JPEG)
}

// TextReplacementEdit erases everything inside Region on the target page and
// draws Text in its place. Page is always an original-epoch index.
type TextReplacementEdit struct {
	Page   int       `json:"page"`
	Region Rect      `json:"rect"`
	Text   string    `json:"text"`
	Color  *RGB      `json:"color,omitempty"` // nil → black
	Size   float64   `json:"size,omitempty"`  // 0 → 12
	Align  Alignment `json:"align,omitempty"` // "" → left
}

// EffectiveColor returns the edit color with the default applied.
func (t TextReplacementEdit) EffectiveColor() RGB {
	if t.Color == nil {
		return Black
	}
	return *t.Color
}

// EffectiveSize returns the font size with the default applied.
func (t TextReplacementEdit) EffectiveSize() float64 {
	if t.Size <= 0 {
		return 12
	}
	return t.Size
}

// ── Wire results ─────────────────────────────────────────────────────────────

type ThumbsResult struct {
	Count  int      `json:"count"`
	Thumbs []string `json:"thumbs"` // PNG data URLs
}
