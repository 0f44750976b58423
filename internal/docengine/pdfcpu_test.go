package docengine

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"testing"

	"github.com/niceday-app/pdf-edit-service/internal/types"
)

func TestOpenRejectsNonPDF(t *testing.T) {
	eng := NewPDFCPU()
	for _, input := range [][]byte{nil, []byte(""), []byte("<html>"), []byte("%PD")} {
		_, err := eng.Open(context.Background(), input)
		if !errors.Is(err, ErrOpen) {
			t.Errorf("Open(%q) err = %v, want ErrOpen", input, err)
		}
	}
}

func TestWhitePatch(t *testing.T) {
	tests := []struct {
		w, h         float64
		wantW, wantH int
	}{
		{100, 50, 100, 50},
		{99.6, 49.4, 100, 49},
		{0, 0, 1, 1}, // degenerate rects still yield a stampable image
	}
	for _, tt := range tests {
		b := whitePatch(tt.w, tt.h)
		img, err := png.Decode(bytes.NewReader(b))
		if err != nil {
			t.Fatalf("whitePatch(%v,%v) produced undecodable PNG: %v", tt.w, tt.h, err)
		}
		bounds := img.Bounds()
		if bounds.Dx() != tt.wantW || bounds.Dy() != tt.wantH {
			t.Errorf("whitePatch(%v,%v) = %dx%d, want %dx%d",
				tt.w, tt.h, bounds.Dx(), bounds.Dy(), tt.wantW, tt.wantH)
		}
		r, g, bl, a := img.At(0, 0).RGBA()
		if r != 0xFFFF || g != 0xFFFF || bl != 0xFFFF || a != 0xFFFF {
			t.Errorf("whitePatch pixel = %v,%v,%v,%v, want opaque white", r, g, bl, a)
		}
	}
}

func TestByte255(t *testing.T) {
	tests := []struct {
		in   float64
		want byte
	}{
		{-0.5, 0},
		{0, 0},
		{0.5, 128},
		{1, 255},
		{2, 255},
	}
	for _, tt := range tests {
		if got := byte255(tt.in); got != tt.want {
			t.Errorf("byte255(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestAlignKey(t *testing.T) {
	tests := []struct {
		in   types.Alignment
		want string
	}{
		{types.AlignLeft, "l"},
		{types.AlignCenter, "c"},
		{types.AlignRight, "r"},
		{types.AlignJustify, "j"},
		{"", "l"},
		{"bogus", "l"},
	}
	for _, tt := range tests {
		if got := alignKey(tt.in); got != tt.want {
			t.Errorf("alignKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
