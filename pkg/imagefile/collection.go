package imagefile

import (
	"image"

	"go.uber.org/multierr"

	"github.com/kiesman99/stitchy/pkg/stitcherr"
)

// MaxImages is the default ceiling on the number of sources in a collection.
const MaxImages = 64

// Builder accumulates resolved sources. A failed Add poisons the builder:
// every later Add or Build returns the same error.
type Builder struct {
	sources []*ImageSource
	limit   int
	err     error
}

// NewBuilder creates an empty builder with the default ceiling.
func NewBuilder() *Builder {
	return &Builder{limit: MaxImages}
}

// WithLimit overrides the ceiling. Non-positive values are ignored.
func (b *Builder) WithLimit(n int) *Builder {
	if n > 0 {
		b.limit = n
	}
	return b
}

// Len returns the number of sources added so far.
func (b *Builder) Len() int { return len(b.sources) }

// Add resolves loc and appends it to the collection. Nothing is opened once
// the ceiling is reached.
func (b *Builder) Add(loc Location) error {
	if err := b.check(); err != nil {
		return err
	}
	if len(b.sources) >= b.limit {
		return b.fail(stitcherr.New(stitcherr.ErrTooManyInputs, stitcherr.StageCollecting,
			"more than %d images", b.limit))
	}

	src, err := Resolve(loc)
	if err != nil {
		return b.fail(err)
	}
	b.sources = append(b.sources, src)
	return nil
}

// AddInputs adds parallel lists of locations and MIME types supplied by a
// host. Nothing is added unless both lists have the same length. An empty
// MIME keeps the location's own declared type.
func (b *Builder) AddInputs(locs []Location, mimes []string) error {
	if err := b.check(); err != nil {
		return err
	}
	if len(locs) != len(mimes) {
		return b.fail(stitcherr.New(stitcherr.ErrInputMismatch, stitcherr.StageCollecting,
			"%d inputs but %d MIME types", len(locs), len(mimes)))
	}

	for i, loc := range locs {
		if mimes[i] != "" {
			loc = WithMIME(loc, mimes[i])
		}
		if err := b.Add(loc); err != nil {
			return err
		}
	}
	return nil
}

// Build validates the collection and hands ownership of every source to the
// returned ImageFiles. The builder is left empty.
func (b *Builder) Build() (*ImageFiles, error) {
	if err := b.check(); err != nil {
		return nil, err
	}

	switch {
	case len(b.sources) == 0:
		return nil, b.fail(stitcherr.New(stitcherr.ErrEmptyInput, stitcherr.StageBuilding,
			"no images to stitch"))
	case len(b.sources) > b.limit:
		return nil, b.fail(stitcherr.New(stitcherr.ErrTooManyInputs, stitcherr.StageBuilding,
			"%d images exceeds the limit of %d", len(b.sources), b.limit))
	}

	files := &ImageFiles{sources: b.sources}
	b.sources = nil
	return files, nil
}

func (b *Builder) check() error {
	return b.err
}

// fail records err and releases every source resolved so far.
func (b *Builder) fail(err error) error {
	b.err = err
	for _, src := range b.sources {
		src.Close()
	}
	b.sources = nil
	return err
}

// ImageFiles is an ordered, immutable collection of validated sources.
type ImageFiles struct {
	sources []*ImageSource
}

// Len returns the number of sources.
func (f *ImageFiles) Len() int { return len(f.sources) }

// At returns the i-th source in insertion order.
func (f *ImageFiles) At(i int) *ImageSource { return f.sources[i] }

// Sizes returns the header dimensions of every source in order.
func (f *ImageFiles) Sizes() []image.Point {
	sizes := make([]image.Point, len(f.sources))
	for i, src := range f.sources {
		sizes[i] = image.Pt(src.Width(), src.Height())
	}
	return sizes
}

// Close releases every handle that has not been decoded yet.
func (f *ImageFiles) Close() error {
	var err error
	for _, src := range f.sources {
		err = multierr.Append(err, src.Close())
	}
	return err
}
