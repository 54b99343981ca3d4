package imagefile

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"
	"sync"

	"github.com/spf13/afero"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder

	"github.com/kiesman99/stitchy/pkg/stitcherr"
)

// ImageSource is a validated input image. It owns the open handle of its
// location until Decode or Close releases it.
type ImageSource struct {
	location     Location
	declaredMIME string
	format       Format
	size         int64
	width        int
	height       int

	mu   sync.Mutex
	file afero.File
}

// Resolve opens loc, validates its format from its magic bytes and returns a
// source holding the open handle.
func Resolve(loc Location) (*ImageSource, error) {
	if loc == nil {
		return nil, stitcherr.New(stitcherr.ErrInvalidLocation, stitcherr.StageCollecting, "nil location")
	}
	if err := loc.Validate(); err != nil {
		return nil, stitcherr.Wrap(stitcherr.ErrInvalidLocation, stitcherr.StageCollecting, err,
			"invalid location %s", loc)
	}

	declared := loc.MIME()
	if declared != "" && FormatFromMIME(declared) == FormatUnknown {
		return nil, stitcherr.New(stitcherr.ErrUnsupportedFormat, stitcherr.StageCollecting,
			"%s: declared type %q is not a supported image format", loc, declared)
	}

	f, err := loc.Open()
	if err != nil {
		return nil, stitcherr.Wrap(stitcherr.ErrUnreadableSource, stitcherr.StageCollecting, err,
			"cannot open %s", loc)
	}

	src, err := inspect(loc, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return src, nil
}

// inspect reads the image header from f and rewinds it.
func inspect(loc Location, f afero.File) (*ImageSource, error) {
	stat, err := f.Stat()
	if err != nil {
		return nil, stitcherr.Wrap(stitcherr.ErrUnreadableSource, stitcherr.StageCollecting, err,
			"cannot stat %s", loc)
	}

	cfg, name, err := image.DecodeConfig(f)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, stitcherr.New(stitcherr.ErrUnsupportedFormat, stitcherr.StageCollecting,
				"%s: unrecognized image format", loc)
		}
		return nil, stitcherr.Wrap(stitcherr.ErrDecode, stitcherr.StageCollecting, err,
			"%s: cannot read image header", loc)
	}

	format := formatFromName(name)
	if format == FormatUnknown {
		return nil, stitcherr.New(stitcherr.ErrUnsupportedFormat, stitcherr.StageCollecting,
			"%s: unsupported image format %q", loc, name)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, stitcherr.Wrap(stitcherr.ErrUnreadableSource, stitcherr.StageCollecting, err,
			"%s is not seekable", loc)
	}

	return &ImageSource{
		location:     loc,
		declaredMIME: loc.MIME(),
		format:       format,
		size:         stat.Size(),
		width:        cfg.Width,
		height:       cfg.Height,
		file:         f,
	}, nil
}

// Location returns where the source was resolved from.
func (s *ImageSource) Location() Location { return s.location }

// DeclaredMIME returns the MIME type supplied by the caller, possibly empty.
func (s *ImageSource) DeclaredMIME() string { return s.declaredMIME }

// Format returns the format detected from the content.
func (s *ImageSource) Format() Format { return s.format }

// Size returns the byte length reported by the handle.
func (s *ImageSource) Size() int64 { return s.size }

// Width returns the width from the image header.
func (s *ImageSource) Width() int { return s.width }

// Height returns the height from the image header.
func (s *ImageSource) Height() int { return s.height }

// Bounds returns the header dimensions as a rectangle at the origin.
func (s *ImageSource) Bounds() image.Rectangle {
	return image.Rect(0, 0, s.width, s.height)
}

// Decode decodes the full image and releases the handle, whether or not
// decoding succeeds. A source can be decoded once.
func (s *ImageSource) Decode() (image.Image, error) {
	s.mu.Lock()
	f := s.file
	s.file = nil
	s.mu.Unlock()

	if f == nil {
		return nil, stitcherr.New(stitcherr.ErrUnreadableSource, stitcherr.StageCompositing,
			"%s was already released", s.location)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, stitcherr.Wrap(stitcherr.ErrDecode, stitcherr.StageCompositing, err,
			"cannot decode %s", s.location)
	}

	b := img.Bounds()
	if s.format == FormatGIF && b != s.Bounds() && b.In(s.Bounds()) {
		// The first frame may cover only part of the logical screen.
		screen := image.NewNRGBA(s.Bounds())
		draw.Draw(screen, b, img, b.Min, draw.Src)
		img, b = screen, screen.Bounds()
	}
	if b.Dx() != s.width || b.Dy() != s.height {
		return nil, stitcherr.New(stitcherr.ErrDecode, stitcherr.StageCompositing,
			"%s decoded to %dx%d, header says %dx%d", s.location, b.Dx(), b.Dy(), s.width, s.height)
	}

	return img, nil
}

// Close releases the handle if Decode has not already done so.
func (s *ImageSource) Close() error {
	s.mu.Lock()
	f := s.file
	s.file = nil
	s.mu.Unlock()

	if f == nil {
		return nil
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", s.location, err)
	}
	return nil
}
