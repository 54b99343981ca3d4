package output

import (
	"bytes"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/spf13/afero"
	"golang.org/x/image/bmp"

	"github.com/kiesman99/stitchy/pkg/stitcherr"
)

// ClampQuality maps a quality option onto the JPEG 0-100 range.
func ClampQuality(q int) int {
	return max(0, min(100, q))
}

// Marshal encodes img in format f. Quality only applies to JPEG.
func Marshal(img image.Image, f Format, quality int) ([]byte, error) {
	var buf bytes.Buffer
	var err error

	switch f {
	case JPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: ClampQuality(quality)})
	case PNG:
		err = png.Encode(&buf, img)
	case GIF:
		err = gif.Encode(&buf, img, &gif.Options{
			NumColors: len(palette.Plan9),
			Drawer:    draw.FloydSteinberg,
		})
	case BMP:
		err = bmp.Encode(&buf, img)
	default:
		return nil, stitcherr.New(stitcherr.ErrUnsupportedOutputFormat, stitcherr.StageEncoding,
			"no encoder for %s", f)
	}

	if err != nil {
		return nil, stitcherr.Wrap(stitcherr.ErrWrite, stitcherr.StageEncoding, err,
			"failed to encode %s", f)
	}
	return buf.Bytes(), nil
}

// Encode writes img to w in format f. The image is fully encoded before the
// first byte reaches w. It returns the number of bytes written.
func Encode(w io.Writer, img image.Image, f Format, quality int) (int64, error) {
	data, err := Marshal(img, f, quality)
	if err != nil {
		return 0, err
	}

	n, err := w.Write(data)
	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return int64(n), stitcherr.Wrap(stitcherr.ErrWrite, stitcherr.StageEncoding, err,
			"failed to write %s output", f)
	}
	return int64(n), nil
}

// WriteFile encodes img and writes it to path on fs. The file is only created
// once encoding succeeded and is removed again if writing fails.
func WriteFile(fs afero.Fs, path string, img image.Image, f Format, quality int) (int64, error) {
	data, err := Marshal(img, f, quality)
	if err != nil {
		return 0, err
	}

	file, err := fs.Create(path)
	if err != nil {
		return 0, stitcherr.Wrap(stitcherr.ErrWrite, stitcherr.StageEncoding, err,
			"cannot create %s", path)
	}

	n, err := file.Write(data)
	if err == nil {
		err = file.Sync()
	}
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fs.Remove(path)
		return 0, stitcherr.Wrap(stitcherr.ErrWrite, stitcherr.StageEncoding, err,
			"failed to write %s", path)
	}
	return int64(n), nil
}
