// Package stitch runs the full stitch pipeline: collect the inputs, lay them
// out, composite them and write the encoded result.
package stitch

import (
	"context"
	"io"

	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"github.com/kiesman99/stitchy/internal/layout"
	"github.com/kiesman99/stitchy/internal/logger"
	"github.com/kiesman99/stitchy/internal/output"
	"github.com/kiesman99/stitchy/internal/stitcher"
	"github.com/kiesman99/stitchy/pkg/imagefile"
	"github.com/kiesman99/stitchy/pkg/stitcherr"
)

// Milestones reported to the Sink, in order.
const (
	MsgFileAdded     = "File added to ImageFiles"
	MsgStitchDone    = "Stitch completed"
	MsgOutputWritten = "Output written; Stitchy completed successfully"
)

// Sink receives pipeline milestones. A failing sink never aborts a run.
type Sink interface {
	LogMessage(msg string) error
}

// Options controls layout and encoding.
type Options struct {
	Alignment   layout.Alignment
	WidthLimit  int
	HeightLimit int
	Quality     int
	Background  string
	Workers     int
	MaxImages   int
}

// DefaultOptions returns a row-major grid with no size limits and full JPEG
// quality.
func DefaultOptions() Options {
	return Options{
		Alignment:   layout.Grid,
		WidthLimit:  layout.Unbounded,
		HeightLimit: layout.Unbounded,
		Quality:     100,
		MaxImages:   imagefile.MaxImages,
	}
}

// Destination is where the encoded stitch goes. Writer takes precedence over
// Path; a nil Fs means the OS filesystem.
type Destination struct {
	Writer io.Writer
	Fs     afero.Fs
	Path   string
}

// String names the destination in log lines.
func (d Destination) String() string {
	if d.Writer != nil {
		return "output stream"
	}
	return d.Path
}

// Request describes one stitch. MIMEs runs parallel to Inputs; a nil slice
// means no input declares a type.
type Request struct {
	Inputs      []imagefile.Location
	MIMEs       []string
	Output      output.Target
	Destination Destination
	Options     Options
}

// Report summarises a successful run.
type Report struct {
	Width        int
	Height       int
	Format       output.Format
	BytesWritten int64

	// LogErr collects sink failures. They do not fail the run.
	LogErr error
}

// Run executes req. Sources are closed on every path.
func Run(ctx context.Context, req Request, sink Sink) (*Report, error) {
	if sink == nil {
		sink = logger.NewNoop()
	}
	log, ok := sink.(logger.Logger)
	if !ok {
		log = logger.NewNoop()
	}
	log = log.WithComponent("stitch")

	report := &Report{}
	milestone := func(msg string) {
		if err := sink.LogMessage(msg); err != nil {
			report.LogErr = multierr.Append(report.LogErr, err)
		}
	}

	// Options are checked before any input is opened.
	background, err := stitcher.ParseBackground(req.Options.Background)
	if err != nil {
		return nil, err
	}

	// Collecting
	mimes := req.MIMEs
	if mimes == nil {
		mimes = make([]string, len(req.Inputs))
	}
	log.Debug("Resolving %d inputs", len(req.Inputs))

	builder := imagefile.NewBuilder().WithLimit(req.Options.MaxImages)
	if len(mimes) != len(req.Inputs) {
		// Let the builder report the mismatch before anything is opened.
		return nil, builder.AddInputs(req.Inputs, mimes)
	}
	for i, loc := range req.Inputs {
		if err := builder.AddInputs([]imagefile.Location{loc}, mimes[i:i+1]); err != nil {
			return nil, err
		}
		milestone(MsgFileAdded)
	}
	files, err := builder.Build()
	if err != nil {
		return nil, err
	}
	for i := 0; i < files.Len(); i++ {
		src := files.At(i)
		log.Debug("Added %s (%s, %dx%d, %d bytes)", src.Location(), src.Format(), src.Width(), src.Height(), src.Size())
	}

	// Laying out
	st, err := stitcher.New().
		Alignment(req.Options.Alignment).
		WidthLimit(req.Options.WidthLimit).
		HeightLimit(req.Options.HeightLimit).
		Background(background).
		Workers(req.Options.Workers).
		Logger(log).
		ImageFiles(files)
	if err != nil {
		return nil, err
	}
	l := st.Layout()
	log.Info("Layout: %dx%d canvas, %d rows x %d columns, scale %.3f", l.Width, l.Height, l.Rows, l.Columns, l.Scale)

	// The container is settled before any pixel memory is spent.
	target := req.Output
	if target.MIME == "" && target.Path == "" {
		target.Path = req.Destination.Path
	}
	format, err := output.ResolveFormat(target)
	if err != nil {
		st.Close()
		return nil, err
	}
	log.Debug("Output format: %s", format)

	// Compositing
	log.Debug("Compositing %d images", files.Len())
	out, err := st.Stitch(ctx)
	if err != nil {
		return nil, err
	}
	milestone(MsgStitchDone)

	// Encoding
	n, err := write(req.Destination, out, format, req.Options.Quality)
	if err != nil {
		return nil, err
	}
	log.Info("Wrote %d bytes to %s", n, req.Destination)
	milestone(MsgOutputWritten)

	report.Width = out.Width()
	report.Height = out.Height()
	report.Format = format
	report.BytesWritten = n
	if report.LogErr != nil {
		log.Warn("Logging failed: %v", report.LogErr)
	}
	return report, nil
}

func write(dst Destination, out *stitcher.Output, f output.Format, quality int) (int64, error) {
	switch {
	case dst.Writer != nil:
		return output.Encode(dst.Writer, out.Image(), f, quality)
	case dst.Path != "":
		fs := dst.Fs
		if fs == nil {
			fs = afero.NewOsFs()
		}
		return output.WriteFile(fs, dst.Path, out.Image(), f, quality)
	default:
		return 0, stitcherr.New(stitcherr.ErrWrite, stitcherr.StageEncoding, "no output destination")
	}
}
