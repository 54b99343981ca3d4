// Package stitcher composites a collection of images onto one canvas.
package stitcher

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"runtime"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/sourcegraph/conc/pool"

	"github.com/kiesman99/stitchy/internal/layout"
	"github.com/kiesman99/stitchy/internal/logger"
	"github.com/kiesman99/stitchy/pkg/imagefile"
	"github.com/kiesman99/stitchy/pkg/stitcherr"
)

// Builder collects stitching parameters. The zero limits mean no cap.
type Builder struct {
	cfg        layout.Config
	background color.Color
	workers    int
	log        logger.Logger
}

// New creates a builder with a row-major grid, no size limits and a
// transparent background.
func New() *Builder {
	return &Builder{
		cfg: layout.Config{
			Alignment:   layout.Grid,
			WidthLimit:  layout.Unbounded,
			HeightLimit: layout.Unbounded,
		},
		background: color.Transparent,
		workers:    runtime.NumCPU(),
		log:        logger.NewNoop(),
	}
}

// Alignment sets the grid shape.
func (b *Builder) Alignment(a layout.Alignment) *Builder {
	b.cfg.Alignment = a
	return b
}

// WidthLimit caps the canvas width.
func (b *Builder) WidthLimit(w int) *Builder {
	b.cfg.WidthLimit = w
	return b
}

// HeightLimit caps the canvas height.
func (b *Builder) HeightLimit(h int) *Builder {
	b.cfg.HeightLimit = h
	return b
}

// Background sets the colour behind the images. Nil means transparent.
func (b *Builder) Background(c color.Color) *Builder {
	if c == nil {
		c = color.Transparent
	}
	b.background = c
	return b
}

// Workers sets how many images are decoded at once. Non-positive values
// use one worker per CPU.
func (b *Builder) Workers(n int) *Builder {
	if n < 1 {
		n = runtime.NumCPU()
	}
	b.workers = n
	return b
}

// Logger sets the logger used while compositing.
func (b *Builder) Logger(l logger.Logger) *Builder {
	if l == nil {
		l = logger.NewNoop()
	}
	b.log = l
	return b
}

// ImageFiles takes ownership of files and computes the layout. The returned
// Stitch no longer depends on the builder. On error the files are closed.
func (b *Builder) ImageFiles(files *imagefile.ImageFiles) (*Stitch, error) {
	if files == nil || files.Len() == 0 {
		return nil, stitcherr.New(stitcherr.ErrEmptyInput, stitcherr.StageLayout, "no images to stitch")
	}

	l, err := layout.Compute(files.Sizes(), b.cfg)
	if err != nil {
		files.Close()
		return nil, err
	}

	return &Stitch{
		files:      files,
		layout:     l,
		background: b.background,
		workers:    b.workers,
		log:        b.log,
	}, nil
}

// Stitch is a fully configured, laid out stitch waiting to be composited.
type Stitch struct {
	files      *imagefile.ImageFiles
	layout     *layout.Layout
	background color.Color
	workers    int
	log        logger.Logger
}

// Layout returns a copy of the computed layout.
func (s *Stitch) Layout() layout.Layout {
	return copyLayout(s.layout)
}

// Stitch decodes every source and draws it into its cell. Sources are
// released as they are decoded; a Stitch can only be composited once.
// The first failure cancels the remaining work and no output is returned.
func (s *Stitch) Stitch(ctx context.Context) (*Output, error) {
	defer s.files.Close()

	canvas := image.NewNRGBA(image.Rect(0, 0, s.layout.Width, s.layout.Height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(s.background), image.Point{}, draw.Src)

	for _, i := range s.layout.Empty() {
		s.log.Warn("Image %d is too small to appear at this scale", i)
	}

	p := pool.New().
		WithContext(ctx).
		WithMaxGoroutines(s.workers).
		WithCancelOnError().
		WithFirstError()

	for i := 0; i < s.files.Len(); i++ {
		src := s.files.At(i)
		cell := s.layout.Cells[i]
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return s.paint(canvas, src, cell)
		})
	}

	if err := p.Wait(); err != nil {
		if stitcherr.KindOf(err) == nil {
			err = stitcherr.Wrap(stitcherr.ErrUnreadableSource, stitcherr.StageCompositing, err,
				"compositing interrupted")
		}
		return nil, err
	}
	return &Output{canvas: canvas, layout: copyLayout(s.layout)}, nil
}

// Close releases the sources without compositing.
func (s *Stitch) Close() error {
	return s.files.Close()
}

// paint draws one source into cell. Cells never overlap, so workers can share
// the canvas.
func (s *Stitch) paint(canvas *image.NRGBA, src *imagefile.ImageSource, cell image.Rectangle) error {
	img, err := src.Decode()
	if err != nil {
		return err
	}
	if cell.Empty() {
		return nil
	}

	if img.Bounds().Dx() != cell.Dx() || img.Bounds().Dy() != cell.Dy() {
		img = imaging.Resize(img, cell.Dx(), cell.Dy(), imaging.Lanczos)
	}
	draw.Draw(canvas, cell, img, img.Bounds().Min, draw.Over)

	s.log.Debug("Painted %s into %v", src.Location(), cell)
	return nil
}

// Output is a finished stitch.
type Output struct {
	canvas *image.NRGBA
	layout layout.Layout
}

// Width returns the canvas width.
func (o *Output) Width() int { return o.canvas.Rect.Dx() }

// Height returns the canvas height.
func (o *Output) Height() int { return o.canvas.Rect.Dy() }

// Image returns the canvas. Callers must not modify it; use Clone for a
// private copy.
func (o *Output) Image() image.Image { return o.canvas }

// Clone returns a copy of the canvas.
func (o *Output) Clone() *image.NRGBA { return imaging.Clone(o.canvas) }

// Layout returns the layout the canvas was drawn with.
func (o *Output) Layout() layout.Layout { return copyLayout(&o.layout) }

func copyLayout(l *layout.Layout) layout.Layout {
	c := *l
	c.Cells = append([]image.Rectangle(nil), l.Cells...)
	return c
}

// ParseBackground parses a background option. The empty string and
// "transparent" give a transparent background; anything else must be a
// #rrggbb hex colour.
func ParseBackground(s string) (color.Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "transparent", "none":
		return color.Transparent, nil
	}

	hex := strings.TrimSpace(s)
	if !strings.HasPrefix(hex, "#") {
		hex = "#" + hex
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return nil, stitcherr.Wrap(stitcherr.ErrInvalidOption, stitcherr.StageConfiguring, err,
			"invalid background %q", s)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}
