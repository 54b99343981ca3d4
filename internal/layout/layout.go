// Package layout arranges a collection of images into one canvas.
package layout

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/kiesman99/stitchy/pkg/stitcherr"
)

// Alignment selects the grid shape and the order cells are filled in.
type Alignment int

const (
	// Grid fills an as-square-as-possible grid row by row.
	Grid Alignment = iota
	// GridColumnMajor fills the same grid column by column.
	GridColumnMajor
	// Horizontal places every image in a single row.
	Horizontal
	// Vertical places every image in a single column.
	Vertical
)

// String returns the alignment name accepted by ParseAlignment.
func (a Alignment) String() string {
	switch a {
	case Grid:
		return "grid"
	case GridColumnMajor:
		return "grid-columns"
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	default:
		return fmt.Sprintf("alignment(%d)", int(a))
	}
}

// ParseAlignment parses the names returned by Alignment.String.
func ParseAlignment(s string) (Alignment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "grid":
		return Grid, nil
	case "grid-columns", "column-major":
		return GridColumnMajor, nil
	case "horizontal", "row":
		return Horizontal, nil
	case "vertical", "column":
		return Vertical, nil
	default:
		return Grid, fmt.Errorf("unknown alignment %q (use grid, grid-columns, horizontal or vertical)", s)
	}
}

// Unbounded is the limit value meaning "no cap".
const Unbounded = math.MaxInt32

// Config holds the layout constraints.
type Config struct {
	Alignment   Alignment
	WidthLimit  int
	HeightLimit int
}

// Layout is the computed arrangement. Cells[i] belongs to the i-th image.
type Layout struct {
	Width   int
	Height  int
	Rows    int
	Columns int
	Scale   float64
	Cells   []image.Rectangle
}

// Size returns the canvas size.
func (l *Layout) Size() image.Point {
	return image.Pt(l.Width, l.Height)
}

// Shape returns the grid shape used for n images.
// Square-ish grids break ties toward fewer rows.
func Shape(n int, a Alignment) (rows, cols int) {
	if n <= 0 {
		return 0, 0
	}
	switch a {
	case Horizontal:
		return 1, n
	case Vertical:
		return n, 1
	}
	cols = int(math.Ceil(math.Sqrt(float64(n))))
	rows = (n + cols - 1) / cols
	return rows, cols
}

// Compute arranges images of the given sizes. It is deterministic and has no
// side effects.
func Compute(sizes []image.Point, cfg Config) (*Layout, error) {
	if len(sizes) == 0 {
		return nil, stitcherr.New(stitcherr.ErrEmptyInput, stitcherr.StageLayout, "no images to lay out")
	}
	if cfg.WidthLimit <= 0 || cfg.HeightLimit <= 0 {
		return nil, stitcherr.New(stitcherr.ErrLayoutInfeasible, stitcherr.StageLayout,
			"limits %dx%d cannot hold any image", cfg.WidthLimit, cfg.HeightLimit)
	}
	for i, s := range sizes {
		if s.X <= 0 || s.Y <= 0 {
			return nil, stitcherr.New(stitcherr.ErrLayoutInfeasible, stitcherr.StageLayout,
				"image %d has empty size %dx%d", i, s.X, s.Y)
		}
	}

	rows, cols := Shape(len(sizes), cfg.Alignment)

	var l *Layout
	switch cfg.Alignment {
	case GridColumnMajor, Vertical:
		l = packColumns(sizes, rows)
	default:
		l = packRows(sizes, cols)
	}

	// The binding limit is whichever needs the most shrinkage.
	num, den := cfg.WidthLimit, l.Width
	if int64(cfg.HeightLimit)*int64(l.Width) < int64(cfg.WidthLimit)*int64(l.Height) {
		num, den = cfg.HeightLimit, l.Height
	}
	if num < den {
		if err := l.shrink(num, den); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// packRows groups images into rows of perRow, scales each row to its
// shortest member and centres the rows horizontally.
func packRows(sizes []image.Point, perRow int) *Layout {
	l := &Layout{Scale: 1, Cells: make([]image.Rectangle, len(sizes))}
	var rowWidths, rowHeights []int

	for start := 0; start < len(sizes); start += perRow {
		end := min(start+perRow, len(sizes))
		h := sizes[start].Y
		for _, s := range sizes[start:end] {
			h = min(h, s.Y)
		}

		w := 0
		for i, s := range sizes[start:end] {
			cw := scaleSide(s.X, h, s.Y)
			l.Cells[start+i] = image.Rect(w, 0, w+cw, h)
			w += cw
		}
		rowWidths = append(rowWidths, w)
		rowHeights = append(rowHeights, h)
		l.Width = max(l.Width, w)
	}

	y := 0
	for r := range rowWidths {
		offset := image.Pt((l.Width-rowWidths[r])/2, y)
		for i := r * perRow; i < min((r+1)*perRow, len(sizes)); i++ {
			l.Cells[i] = l.Cells[i].Add(offset)
		}
		y += rowHeights[r]
	}
	l.Height = y
	l.Rows = len(rowWidths)
	l.Columns = min(perRow, len(sizes))
	return l
}

// packColumns is packRows with the axes swapped.
func packColumns(sizes []image.Point, perColumn int) *Layout {
	l := &Layout{Scale: 1, Cells: make([]image.Rectangle, len(sizes))}
	var colWidths, colHeights []int

	for start := 0; start < len(sizes); start += perColumn {
		end := min(start+perColumn, len(sizes))
		w := sizes[start].X
		for _, s := range sizes[start:end] {
			w = min(w, s.X)
		}

		h := 0
		for i, s := range sizes[start:end] {
			ch := scaleSide(s.Y, w, s.X)
			l.Cells[start+i] = image.Rect(0, h, w, h+ch)
			h += ch
		}
		colWidths = append(colWidths, w)
		colHeights = append(colHeights, h)
		l.Height = max(l.Height, h)
	}

	x := 0
	for c := range colWidths {
		offset := image.Pt(x, (l.Height-colHeights[c])/2)
		for i := c * perColumn; i < min((c+1)*perColumn, len(sizes)); i++ {
			l.Cells[i] = l.Cells[i].Add(offset)
		}
		x += colWidths[c]
	}
	l.Width = x
	l.Columns = len(colWidths)
	l.Rows = min(perColumn, len(sizes))
	return l
}

// scaleSide returns side * num / den rounded to nearest, at least 1.
func scaleSide(side, num, den int) int {
	v := (int64(side)*int64(num) + int64(den)/2) / int64(den)
	return max(1, int(v))
}

// shrink scales every cell edge by num/den, rounding down. Neighbouring
// cells stay adjacent and the canvas never exceeds the limits; a very small
// image may end up with an empty cell.
func (l *Layout) shrink(num, den int) error {
	floor := func(v int) int { return int(int64(v) * int64(num) / int64(den)) }

	width, height := floor(l.Width), floor(l.Height)
	if width < 1 || height < 1 {
		return stitcherr.New(stitcherr.ErrLayoutInfeasible, stitcherr.StageLayout,
			"canvas %dx%d vanishes at scale %d/%d", l.Width, l.Height, num, den)
	}

	for i, c := range l.Cells {
		l.Cells[i] = image.Rectangle{
			Min: image.Pt(floor(c.Min.X), floor(c.Min.Y)),
			Max: image.Pt(floor(c.Max.X), floor(c.Max.Y)),
		}
	}
	l.Width, l.Height = width, height
	l.Scale = float64(num) / float64(den)
	return nil
}

// Empty returns the indexes of images whose cell collapsed to nothing.
func (l *Layout) Empty() []int {
	var idx []int
	for i, c := range l.Cells {
		if c.Empty() {
			idx = append(idx, i)
		}
	}
	return idx
}
