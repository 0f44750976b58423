package docengine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	pdftypes "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/niceday-app/pdf-edit-service/internal/types"
)

// PDFCPU is the production Engine, backed by the pdfcpu library. Each handle
// works on a private temp copy of the document; mutations rewrite the copy
// in place and Serialize runs pdfcpu's optimizer (deflate + xref garbage
// collection) before returning the bytes.
type PDFCPU struct {
	conf *model.Configuration
}

func NewPDFCPU() *PDFCPU {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFCPU{conf: conf}
}

func (e *PDFCPU) Open(ctx context.Context, pdf []byte) (Document, error) {
	if len(pdf) < 5 || !bytes.HasPrefix(pdf, []byte("%PDF")) {
		return nil, fmt.Errorf("%w: input is not a PDF", ErrOpen)
	}

	dir, err := os.MkdirTemp("", "pdfedit-*")
	if err != nil {
		return nil, fmt.Errorf("%w: temp dir: %v", ErrOpen, err)
	}
	path := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(path, pdf, 0o600); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: write temp copy: %v", ErrOpen, err)
	}

	pages, err := api.PageCountFile(path)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}

	return &pdfcpuDoc{dir: dir, path: path, pages: pages, conf: e.conf}, nil
}

type pdfcpuDoc struct {
	dir   string
	path  string
	pages int
	conf  *model.Configuration
	seq   int // temp asset counter
}

func (d *pdfcpuDoc) PageCount() int { return d.pages }

func (d *pdfcpuDoc) DeletePage(ctx context.Context, index int) error {
	if index < 0 || index >= d.pages {
		return nil
	}
	// pdfcpu page selections are 1-based.
	sel := []string{strconv.Itoa(index + 1)}
	if err := api.RemovePagesFile(d.path, "", sel, d.conf); err != nil {
		return fmt.Errorf("remove page %d: %w", index, err)
	}
	d.pages--
	return nil
}

func (d *pdfcpuDoc) EraseRegion(ctx context.Context, page int, r types.Rect) error {
	if !r.Valid() {
		return fmt.Errorf("erase region: empty rect")
	}
	patch, err := d.writeAsset("patch", ".png", whitePatch(r.Width(), r.Height()))
	if err != nil {
		return err
	}

	// An opaque white patch stamped over the region blanks whatever content
	// is underneath; the later text insert draws on top of it.
	wm, err := pdfcpu.ParseImageWatermarkDetails(patch, "scale:1 abs, pos:bl, rot:0, op:1", true, pdftypes.POINTS)
	if err != nil {
		return fmt.Errorf("erase region: %w", err)
	}
	wm.Dx = r.X0
	wm.Dy = r.Y0

	return d.stamp(page, wm)
}

func (d *pdfcpuDoc) InsertText(ctx context.Context, page int, r types.Rect, text string, col types.RGB, size float64, align types.Alignment) error {
	desc := fmt.Sprintf("font:Helvetica, points:%d, scale:1 abs, pos:bl, off:%.1f %.1f, rot:0, op:1, fillc:#%02x%02x%02x, align:%s",
		int(size), r.X0, r.Y0, byte255(col.R), byte255(col.G), byte255(col.B), alignKey(align))

	wm, err := pdfcpu.ParseTextWatermarkDetails(text, desc, true, pdftypes.POINTS)
	if err != nil {
		return fmt.Errorf("insert text: %w", err)
	}
	return d.stamp(page, wm)
}

func (d *pdfcpuDoc) InsertImage(ctx context.Context, page int, img []byte) error {
	asset, err := d.writeAsset("overlay", ".png", img)
	if err != nil {
		return err
	}

	// pos:full stretches the image to the page rect without preserving
	// aspect; the producer authors overlays at the page's aspect already.
	wm, err := pdfcpu.ParseImageWatermarkDetails(asset, "pos:full, rot:0, op:1", true, pdftypes.POINTS)
	if err != nil {
		return fmt.Errorf("insert image: %w", err)
	}
	return d.stamp(page, wm)
}

func (d *pdfcpuDoc) Serialize(ctx context.Context) ([]byte, error) {
	if err := api.OptimizeFile(d.path, "", d.conf); err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}
	out, err := os.ReadFile(d.path)
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	return out, nil
}

func (d *pdfcpuDoc) Close() error {
	return os.RemoveAll(d.dir)
}

func (d *pdfcpuDoc) stamp(page int, wm *model.Watermark) error {
	if page < 0 || page >= d.pages {
		return fmt.Errorf("page %d out of range [0,%d)", page, d.pages)
	}
	sel := []string{strconv.Itoa(page + 1)}
	if err := api.AddWatermarksFile(d.path, "", sel, wm, d.conf); err != nil {
		return fmt.Errorf("stamp page %d: %w", page, err)
	}
	return nil
}

func (d *pdfcpuDoc) writeAsset(prefix, ext string, data []byte) (string, error) {
	d.seq++
	path := filepath.Join(d.dir, fmt.Sprintf("%s-%d%s", prefix, d.seq, ext))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write %s asset: %w", prefix, err)
	}
	return path, nil
}

// whitePatch renders an opaque white PNG sized 1px per point.
func whitePatch(w, h float64) []byte {
	iw, ih := int(w+0.5), int(h+0.5)
	if iw < 1 {
		iw = 1
	}
	if ih < 1 {
		ih = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, iw, ih))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}

	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func byte255(c float64) byte {
	if c <= 0 {
		return 0
	}
	if c >= 1 {
		return 255
	}
	return byte(c*255 + 0.5)
}

func alignKey(a types.Alignment) string {
	switch a {
	case types.AlignCenter:
		return "c"
	case types.AlignRight:
		return "r"
	case types.AlignJustify:
		return "j"
	default:
		return "l"
	}
}
