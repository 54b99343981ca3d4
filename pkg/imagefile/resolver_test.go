package imagefile

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/spf13/afero"
	"golang.org/x/image/bmp"

	"github.com/kiesman99/stitchy/pkg/stitcherr"
)

// encodeTestImage returns a solid width x height image encoded as format.
func encodeTestImage(t *testing.T, format Format, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{200, 40, 40, 255})
		}
	}

	var buf bytes.Buffer
	var err error
	switch format {
	case FormatPNG:
		err = png.Encode(&buf, img)
	case FormatJPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	case FormatGIF:
		err = gif.Encode(&buf, img, nil)
	case FormatBMP:
		err = bmp.Encode(&buf, img)
	default:
		t.Fatalf("no encoder for %s", format)
	}
	if err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

// writeTestImage writes an encoded image to fs and returns its location.
func writeTestImage(t *testing.T, fs afero.Fs, path string, format Format, width, height int) *PathLocation {
	t.Helper()
	if err := afero.WriteFile(fs, path, encodeTestImage(t, format, width, height), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return &PathLocation{Fs: fs, Path: path, DeclaredMIME: format.MIME()}
}

func TestResolve_Formats(t *testing.T) {
	fs := afero.NewMemMapFs()

	tests := []struct {
		path   string
		format Format
	}{
		{"a.png", FormatPNG},
		{"b.jpg", FormatJPEG},
		{"c.gif", FormatGIF},
		{"d.bmp", FormatBMP},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			loc := writeTestImage(t, fs, tt.path, tt.format, 30, 20)

			src, err := Resolve(loc)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			defer src.Close()

			if src.Format() != tt.format {
				t.Errorf("expected format %s, got %s", tt.format, src.Format())
			}
			if src.Width() != 30 || src.Height() != 20 {
				t.Errorf("expected 30x20, got %dx%d", src.Width(), src.Height())
			}
			if src.Size() <= 0 {
				t.Errorf("expected a positive byte length, got %d", src.Size())
			}
			if src.DeclaredMIME() != tt.format.MIME() {
				t.Errorf("expected declared MIME %q, got %q", tt.format.MIME(), src.DeclaredMIME())
			}
		})
	}
}

func TestResolve_ContentWinsOverDeclaredMIME(t *testing.T) {
	fs := afero.NewMemMapFs()
	loc := writeTestImage(t, fs, "photo.jpg", FormatPNG, 8, 8)
	loc.DeclaredMIME = "image/jpeg"

	src, err := Resolve(loc)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	defer src.Close()

	if src.Format() != FormatPNG {
		t.Errorf("expected sniffed format png, got %s", src.Format())
	}
}

func TestResolve_Errors(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "notes.txt", []byte("definitely not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	truncated := encodeTestImage(t, FormatPNG, 10, 10)[:20]
	if err := afero.WriteFile(fs, "broken.png", truncated, 0o644); err != nil {
		t.Fatal(err)
	}
	writeTestImage(t, fs, "ok.png", FormatPNG, 4, 4)

	tests := []struct {
		name string
		loc  Location
		want error
	}{
		{"nil", nil, stitcherr.ErrInvalidLocation},
		{"empty path", &PathLocation{Fs: fs, Path: " "}, stitcherr.ErrInvalidLocation},
		{"negative fd", &FDLocation{FD: -1}, stitcherr.ErrInvalidLocation},
		{"missing file", &PathLocation{Fs: fs, Path: "missing.png"}, stitcherr.ErrUnreadableSource},
		{"declared pdf", &PathLocation{Fs: fs, Path: "ok.png", DeclaredMIME: "application/pdf"}, stitcherr.ErrUnsupportedFormat},
		{"unknown magic", &PathLocation{Fs: fs, Path: "notes.txt"}, stitcherr.ErrUnsupportedFormat},
		{"corrupt header", &PathLocation{Fs: fs, Path: "broken.png"}, stitcherr.ErrDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := Resolve(tt.loc)
			if err == nil {
				src.Close()
				t.Fatalf("expected error %v, got nil", tt.want)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestImageSource_DecodeReleasesHandle(t *testing.T) {
	fs := afero.NewMemMapFs()
	loc := writeTestImage(t, fs, "a.png", FormatPNG, 12, 6)

	src, err := Resolve(loc)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	img, err := src.Decode()
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.Bounds().Dx() != 12 || img.Bounds().Dy() != 6 {
		t.Errorf("expected 12x6, got %v", img.Bounds())
	}

	if _, err := src.Decode(); !errors.Is(err, stitcherr.ErrUnreadableSource) {
		t.Errorf("expected a second Decode to fail with ErrUnreadableSource, got %v", err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("Close after Decode should be a no-op, got %v", err)
	}
}

func TestImageSource_DecodeGIFFrameSmallerThanScreen(t *testing.T) {
	red := color.RGBA{220, 20, 20, 255}
	frame := image.NewPaletted(image.Rect(5, 5, 15, 15), color.Palette{color.Black, red})
	for i := range frame.Pix {
		frame.Pix[i] = 1
	}

	var buf bytes.Buffer
	err := gif.EncodeAll(&buf, &gif.GIF{
		Image:  []*image.Paletted{frame},
		Delay:  []int{0},
		Config: image.Config{Width: 20, Height: 20},
	})
	if err != nil {
		t.Fatalf("gif.EncodeAll failed: %v", err)
	}

	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "a.gif", buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := Resolve(&PathLocation{Fs: fs, Path: "a.gif"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if src.Width() != 20 || src.Height() != 20 {
		t.Fatalf("expected a 20x20 header, got %dx%d", src.Width(), src.Height())
	}

	img, err := src.Decode()
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 20, 20) {
		t.Errorf("expected the full screen, got %v", img.Bounds())
	}
	if got := color.RGBAModel.Convert(img.At(10, 10)).(color.RGBA); got != red {
		t.Errorf("expected the frame at (10,10), got %v", got)
	}
	if _, _, _, a := img.At(1, 1).RGBA(); a != 0 {
		t.Errorf("expected the uncovered screen to stay transparent, got alpha %d", a)
	}
}

func TestFormatFromMIME(t *testing.T) {
	tests := map[string]Format{
		"image/jpeg":               FormatJPEG,
		"IMAGE/JPG":                FormatJPEG,
		"image/png; charset=utf-8": FormatPNG,
		"image/gif":                FormatGIF,
		"image/x-ms-bmp":           FormatBMP,
		"image/tiff":               FormatTIFF,
		"image/webp":               FormatWebP,
		"image/heic":               FormatUnknown,
		"":                         FormatUnknown,
	}

	for in, want := range tests {
		if got := FormatFromMIME(in); got != want {
			t.Errorf("FormatFromMIME(%q): expected %s, got %s", in, want, got)
		}
	}
}

func TestFormatFromExtension(t *testing.T) {
	tests := map[string]Format{
		"out.JPG":      FormatJPEG,
		"/tmp/x.jpeg":  FormatJPEG,
		"stitch.png":   FormatPNG,
		"a.gif":        FormatGIF,
		"a.bmp":        FormatBMP,
		"scan.tiff":    FormatTIFF,
		"png":          FormatPNG,
		"archive.zip":  FormatUnknown,
		"no-extension": FormatUnknown,
	}

	for in, want := range tests {
		if got := FormatFromExtension(in); got != want {
			t.Errorf("FormatFromExtension(%q): expected %s, got %s", in, want, got)
		}
	}
}
