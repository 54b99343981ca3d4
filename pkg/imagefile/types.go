package imagefile

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Format identifies a decodable input image container.
type Format int

// Supported input formats
const (
	FormatUnknown Format = iota
	FormatJPEG
	FormatPNG
	FormatGIF
	FormatBMP
	FormatTIFF
	FormatWebP
)

// String returns the lower-case format name.
func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatPNG:
		return "png"
	case FormatGIF:
		return "gif"
	case FormatBMP:
		return "bmp"
	case FormatTIFF:
		return "tiff"
	case FormatWebP:
		return "webp"
	default:
		return "unknown"
	}
}

// MIME returns the canonical MIME type of the format.
func (f Format) MIME() string {
	if f == FormatUnknown {
		return ""
	}
	return "image/" + f.String()
}

// formatFromName maps the names registered with the image package.
func formatFromName(name string) Format {
	switch name {
	case "jpeg":
		return FormatJPEG
	case "png":
		return FormatPNG
	case "gif":
		return FormatGIF
	case "bmp":
		return FormatBMP
	case "tiff":
		return FormatTIFF
	case "webp":
		return FormatWebP
	default:
		return FormatUnknown
	}
}

// FormatFromMIME maps a MIME type such as "image/jpeg; q=1" to a Format.
func FormatFromMIME(m string) Format {
	mediaType, _, err := mime.ParseMediaType(m)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(m))
	}

	switch mediaType {
	case "image/jpeg", "image/jpg", "image/pjpeg":
		return FormatJPEG
	case "image/png", "image/x-png":
		return FormatPNG
	case "image/gif":
		return FormatGIF
	case "image/bmp", "image/x-bmp", "image/x-ms-bmp":
		return FormatBMP
	case "image/tiff", "image/tiff-fx":
		return FormatTIFF
	case "image/webp":
		return FormatWebP
	default:
		return FormatUnknown
	}
}

// FormatFromExtension maps a file name or extension to a Format.
func FormatFromExtension(name string) Format {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" && !strings.Contains(name, ".") {
		ext = "." + strings.ToLower(name)
	}

	switch ext {
	case ".jpg", ".jpeg", ".jpe", ".jfif":
		return FormatJPEG
	case ".png":
		return FormatPNG
	case ".gif":
		return FormatGIF
	case ".bmp", ".dib":
		return FormatBMP
	case ".tif", ".tiff":
		return FormatTIFF
	case ".webp":
		return FormatWebP
	default:
		return FormatUnknown
	}
}

// Location describes where an input image lives.
type Location interface {
	// Validate reports a malformed descriptor without touching the resource.
	Validate() error

	// Open opens the resource read-only.
	Open() (afero.File, error)

	// MIME returns the declared MIME type, possibly empty.
	MIME() string

	String() string
}

// PathLocation is an image file on an afero filesystem.
type PathLocation struct {
	Fs           afero.Fs
	Path         string
	DeclaredMIME string
}

// NewPathLocation returns a location on the operating system filesystem.
func NewPathLocation(path, declaredMIME string) *PathLocation {
	return &PathLocation{
		Fs:           afero.NewOsFs(),
		Path:         path,
		DeclaredMIME: declaredMIME,
	}
}

// Validate checks that the location names a file on a filesystem.
func (l *PathLocation) Validate() error {
	if l.Fs == nil {
		return fmt.Errorf("no filesystem for %q", l.Path)
	}
	if strings.TrimSpace(l.Path) == "" {
		return fmt.Errorf("empty path")
	}
	return nil
}

// Open opens the file read-only.
func (l *PathLocation) Open() (afero.File, error) {
	return l.Fs.Open(l.Path)
}

// MIME returns the declared MIME type, possibly empty.
func (l *PathLocation) MIME() string { return l.DeclaredMIME }

// String returns the path.
func (l *PathLocation) String() string { return l.Path }

// FDLocation is an open descriptor handed over by a host process.
// Resolving it takes ownership of the descriptor.
type FDLocation struct {
	FD           int
	DeclaredMIME string
}

// Validate rejects negative descriptors.
func (l *FDLocation) Validate() error {
	if l.FD < 0 {
		return fmt.Errorf("negative file descriptor %d", l.FD)
	}
	return nil
}

// Open wraps the descriptor in a file. The returned file owns it.
func (l *FDLocation) Open() (afero.File, error) {
	f := os.NewFile(uintptr(l.FD), l.String())
	if f == nil {
		return nil, fmt.Errorf("file descriptor %d is not valid", l.FD)
	}
	if _, err := f.Stat(); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// MIME returns the declared MIME type, possibly empty.
func (l *FDLocation) MIME() string { return l.DeclaredMIME }

// String returns the descriptor as "fd:N".
func (l *FDLocation) String() string { return fmt.Sprintf("fd:%d", l.FD) }

// withMIME overrides the declared MIME type of a location.
type withMIME struct {
	Location
	mime string
}

// MIME returns the overriding MIME type.
func (l withMIME) MIME() string { return l.mime }

// WithMIME returns loc with its declared MIME type replaced.
func WithMIME(loc Location, m string) Location {
	return withMIME{Location: loc, mime: m}
}
