// Package output resolves the output container and encodes the stitch.
package output

import (
	"github.com/kiesman99/stitchy/pkg/imagefile"
	"github.com/kiesman99/stitchy/pkg/stitcherr"
)

// Format is an output container.
type Format int

// Output container formats
const (
	JPEG Format = iota + 1
	PNG
	GIF
	BMP
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case JPEG:
		return "jpeg"
	case PNG:
		return "png"
	case GIF:
		return "gif"
	case BMP:
		return "bmp"
	default:
		return "unknown"
	}
}

// MIME returns the MIME type written for the format.
func (f Format) MIME() string {
	return "image/" + f.String()
}

// Extension returns the file extension for the format, without the dot.
func (f Format) Extension() string {
	if f == JPEG {
		return "jpg"
	}
	return f.String()
}

// Lossy reports whether the quality option applies.
func (f Format) Lossy() bool {
	return f == JPEG
}

// Target describes the destination the stitch is written to. It is used only
// to infer the container; nothing is opened until encoding.
type Target struct {
	MIME string
	Path string
}

// ResolveFormat picks the output container from the target's MIME type,
// falling back to its file extension.
func ResolveFormat(t Target) (Format, error) {
	in := imagefile.FormatUnknown
	hint := t.MIME
	if t.MIME != "" {
		in = imagefile.FormatFromMIME(t.MIME)
	} else if t.Path != "" {
		in = imagefile.FormatFromExtension(t.Path)
		hint = t.Path
	}

	switch in {
	case imagefile.FormatJPEG:
		return JPEG, nil
	case imagefile.FormatPNG:
		return PNG, nil
	case imagefile.FormatGIF:
		return GIF, nil
	case imagefile.FormatBMP:
		return BMP, nil
	}

	if hint == "" {
		return 0, stitcherr.New(stitcherr.ErrUnsupportedOutputFormat, stitcherr.StageEncoding,
			"could not determine output format")
	}
	return 0, stitcherr.New(stitcherr.ErrUnsupportedOutputFormat, stitcherr.StageEncoding,
		"unexpected output format %q (use jpeg, png, gif or bmp)", hint)
}
