package stitcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/spf13/afero"

	"github.com/kiesman99/stitchy/internal/layout"
	"github.com/kiesman99/stitchy/pkg/imagefile"
	"github.com/kiesman99/stitchy/pkg/stitcherr"
)

func solidPNG(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}
	return buf.Bytes()
}

// buildFiles writes each payload to an in-memory filesystem and collects
// them in order.
func buildFiles(t *testing.T, payloads ...[]byte) *imagefile.ImageFiles {
	t.Helper()
	fs := afero.NewMemMapFs()
	b := imagefile.NewBuilder()
	for i, data := range payloads {
		path := fmt.Sprintf("img%d.png", i)
		if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		if err := b.Add(&imagefile.PathLocation{Fs: fs, Path: path}); err != nil {
			t.Fatalf("Add(%s) failed: %v", path, err)
		}
	}
	files, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return files
}

var (
	red   = color.NRGBA{255, 0, 0, 255}
	green = color.NRGBA{0, 255, 0, 255}
	blue  = color.NRGBA{0, 0, 255, 255}
	white = color.NRGBA{255, 255, 255, 255}
)

func TestStitch_FourSquaresDownscaled(t *testing.T) {
	files := buildFiles(t,
		solidPNG(t, 100, 100, red),
		solidPNG(t, 100, 100, green),
		solidPNG(t, 100, 100, blue),
		solidPNG(t, 100, 100, white),
	)

	st, err := New().WidthLimit(180).HeightLimit(180).Workers(2).ImageFiles(files)
	if err != nil {
		t.Fatalf("ImageFiles failed: %v", err)
	}
	out, err := st.Stitch(context.Background())
	if err != nil {
		t.Fatalf("Stitch failed: %v", err)
	}

	if out.Width() != 180 || out.Height() != 180 {
		t.Fatalf("expected 180x180, got %dx%d", out.Width(), out.Height())
	}

	// Sample the middle of each cell, away from resampled edges.
	centres := []struct {
		x, y int
		want color.NRGBA
	}{
		{45, 45, red},
		{135, 45, green},
		{45, 135, blue},
		{135, 135, white},
	}
	img := out.Clone()
	for _, c := range centres {
		if got := img.NRGBAAt(c.x, c.y); got != c.want {
			t.Errorf("pixel (%d,%d): expected %v, got %v", c.x, c.y, c.want, got)
		}
	}
}

func TestStitch_OutputMatchesLayout(t *testing.T) {
	files := buildFiles(t,
		solidPNG(t, 200, 100, red),
		solidPNG(t, 100, 200, green),
		solidPNG(t, 300, 300, blue),
	)

	st, err := New().Alignment(layout.Horizontal).ImageFiles(files)
	if err != nil {
		t.Fatalf("ImageFiles failed: %v", err)
	}
	planned := st.Layout()

	out, err := st.Stitch(context.Background())
	if err != nil {
		t.Fatalf("Stitch failed: %v", err)
	}

	if out.Width() != planned.Width || out.Height() != planned.Height {
		t.Errorf("expected %dx%d, got %dx%d", planned.Width, planned.Height, out.Width(), out.Height())
	}
	got := out.Layout()
	for i := range planned.Cells {
		if got.Cells[i] != planned.Cells[i] {
			t.Errorf("cell %d: expected %v, got %v", i, planned.Cells[i], got.Cells[i])
		}
	}
}

func TestStitch_BackgroundFillsGaps(t *testing.T) {
	files := buildFiles(t,
		solidPNG(t, 10, 10, red),
		solidPNG(t, 10, 10, red),
		solidPNG(t, 10, 10, red),
	)

	st, err := New().Background(white).ImageFiles(files)
	if err != nil {
		t.Fatalf("ImageFiles failed: %v", err)
	}
	out, err := st.Stitch(context.Background())
	if err != nil {
		t.Fatalf("Stitch failed: %v", err)
	}

	// The short bottom row is centred, leaving (0..5, 10..20) uncovered.
	img := out.Clone()
	if got := img.NRGBAAt(2, 15); got != white {
		t.Errorf("expected background %v, got %v", white, got)
	}
	if got := img.NRGBAAt(10, 15); got != red {
		t.Errorf("expected image pixel %v, got %v", red, got)
	}
}

func TestStitch_TransparentByDefault(t *testing.T) {
	files := buildFiles(t, solidPNG(t, 10, 10, red), solidPNG(t, 10, 10, red), solidPNG(t, 10, 10, red))

	st, err := New().ImageFiles(files)
	if err != nil {
		t.Fatalf("ImageFiles failed: %v", err)
	}
	out, err := st.Stitch(context.Background())
	if err != nil {
		t.Fatalf("Stitch failed: %v", err)
	}
	if got := out.Clone().NRGBAAt(2, 15); got.A != 0 {
		t.Errorf("expected a transparent gap, got %v", got)
	}
}

func TestStitch_DecodeErrorAborts(t *testing.T) {
	// Keep the signature and IHDR so the header is readable but the pixels
	// are not.
	broken := solidPNG(t, 10, 10, red)[:40]

	files := buildFiles(t, solidPNG(t, 10, 10, red), broken)

	st, err := New().ImageFiles(files)
	if err != nil {
		t.Fatalf("ImageFiles failed: %v", err)
	}
	out, err := st.Stitch(context.Background())
	if !errors.Is(err, stitcherr.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if out != nil {
		t.Errorf("expected no output on failure")
	}
}

func TestStitch_CancelledContext(t *testing.T) {
	files := buildFiles(t, solidPNG(t, 10, 10, red), solidPNG(t, 10, 10, red))

	st, err := New().Workers(1).ImageFiles(files)
	if err != nil {
		t.Fatalf("ImageFiles failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = st.Stitch(ctx)
	if !errors.Is(err, stitcherr.ErrUnreadableSource) {
		t.Errorf("expected ErrUnreadableSource, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected the cancellation cause to be kept, got %v", err)
	}
	if stitcherr.KindOf(err) == nil {
		t.Errorf("expected a classified error, got %v", err)
	}
}

func TestImageFiles_Errors(t *testing.T) {
	if _, err := New().ImageFiles(nil); !errors.Is(err, stitcherr.ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}

	files := buildFiles(t, solidPNG(t, 10, 10, red))
	if _, err := New().WidthLimit(0).ImageFiles(files); !errors.Is(err, stitcherr.ErrLayoutInfeasible) {
		t.Errorf("expected ErrLayoutInfeasible, got %v", err)
	}
}

func TestParseBackground(t *testing.T) {
	tests := []struct {
		in   string
		want color.Color
	}{
		{"", color.Transparent},
		{"transparent", color.Transparent},
		{"#ffffff", white},
		{"ff0000", red},
		{"#00F", blue},
	}

	for _, tt := range tests {
		got, err := ParseBackground(tt.in)
		if err != nil {
			t.Errorf("ParseBackground(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseBackground(%q): expected %v, got %v", tt.in, tt.want, got)
		}
	}

	if _, err := ParseBackground("#zzz"); !errors.Is(err, stitcherr.ErrInvalidOption) {
		t.Errorf("expected ErrInvalidOption for an invalid colour, got %v", err)
	}
}
