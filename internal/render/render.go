// Package render rasterizes pages through the poppler CLI tools. It is a
// pass-through to the external renderer: no page-index reconciliation
// happens here.
package render

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// Scale 1.0 corresponds to 72 DPI, matching the renderer the front-end was
// built against.
const baseDPI = 72

var pdfinfoPages = regexp.MustCompile(`(?m)^Pages:\s+(\d+)\s*$`)

func PageCount(ctx context.Context, pdfPath string) (int, error) {
	cmd := exec.CommandContext(ctx, "pdfinfo", pdfPath)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("pdfinfo: %w", err)
	}
	m := pdfinfoPages.FindStringSubmatch(string(out))
	if len(m) != 2 {
		return 0, fmt.Errorf("pdfinfo: pages not found")
	}
	return strconv.Atoi(m[1])
}

// Page renders a single page (0-based) to PNG bytes at the given scale.
func Page(ctx context.Context, pdfPath string, page int, scale float64) ([]byte, error) {
	dir, err := os.MkdirTemp("", "pdfrender-*")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	prefix := filepath.Join(dir, "page")
	p1 := page + 1
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-r", strconv.Itoa(DPI(scale)),
		"-f", strconv.Itoa(p1),
		"-l", strconv.Itoa(p1),
		pdfPath,
		prefix,
	)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm page %d: %w", page, err)
	}

	path, err := findRendered(prefix, p1)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// Thumbnails renders every page at the given scale and returns PNG data
// URLs in page order.
func Thumbnails(ctx context.Context, pdfPath string, scale float64) ([]string, error) {
	dir, err := os.MkdirTemp("", "pdfthumbs-*")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	prefix := filepath.Join(dir, "thumb")
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-r", strconv.Itoa(DPI(scale)),
		pdfPath,
		prefix,
	)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w", err)
	}

	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, errors.New("no rendered pages found")
	}
	sort.Slice(matches, func(i, j int) bool {
		return pageNumFromName(matches[i]) < pageNumFromName(matches[j])
	})

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		b, err := os.ReadFile(m)
		if err != nil {
			return nil, err
		}
		out = append(out, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(b))
	}
	return out, nil
}

// DPI converts a render scale to the pdftoppm resolution flag.
func DPI(scale float64) int {
	dpi := int(scale*baseDPI + 0.5)
	if dpi < 1 {
		dpi = 1
	}
	return dpi
}

// Clamp bounds a scale to an endpoint's allowed range.
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// pdftoppm zero-pads the page number according to the document's page
// count, so probe the plausible widths before falling back to a glob.
func findRendered(prefix string, page1 int) (string, error) {
	for width := 1; width <= 6; width++ {
		candidate := fmt.Sprintf("%s-%0*d.png", prefix, width, page1)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}
	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return "", err
	}
	for _, m := range matches {
		if pageNumFromName(m) == page1 {
			return m, nil
		}
	}
	return "", fmt.Errorf("rendered image not found for page %d", page1)
}

var trailingNum = regexp.MustCompile(`-(\d+)\.png$`)

func pageNumFromName(path string) int {
	m := trailingNum.FindStringSubmatch(filepath.Base(path))
	if len(m) != 2 {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}
