package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	l10n "github.com/ideamans/go-l10n"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/stitchy/internal/layout"
	"github.com/kiesman99/stitchy/internal/logger"
	"github.com/kiesman99/stitchy/internal/output"
	"github.com/kiesman99/stitchy/internal/stitch"
	"github.com/kiesman99/stitchy/pkg/imagefile"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stitchy [flags] <input>...",
	Short: "Stitch several images into one",
	Long: `stitchy arranges images in a grid, a row or a column and writes them out
as a single image.

Inputs may be JPEG, PNG, GIF, BMP, TIFF or WebP. The canvas is scaled down
uniformly to fit --max-width and --max-height. The output format is taken from
--output-mime or the extension of --output, and may be JPEG, PNG, GIF or BMP.

Examples:
  # Four photos in a 2x2 grid, no wider than 1920 pixels
  stitchy -o grid.jpg --max-width 1920 a.jpg b.jpg c.jpg d.jpg

  # A horizontal strip written to standard output
  stitchy -a horizontal --output-mime image/png one.png two.png > strip.png

  # Inputs and output passed as open descriptors by a host process
  stitchy --fd 3 --fd 4 --mime image/png --mime image/jpeg --output-fd 5 --output-mime image/png`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		fds, _ := cmd.Flags().GetIntSlice("fd")
		if len(args) == 0 && len(fds) == 0 {
			return cmd.Help()
		}
		return runStitch(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.stitchy.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug|info|warn|error|quiet)")

	// Input options
	rootCmd.Flags().IntSlice("fd", nil, "read an input from an open file descriptor (repeatable)")
	rootCmd.Flags().StringArray("mime", nil, "declared MIME type of each input, in order (repeatable)")
	rootCmd.Flags().Int("max-images", imagefile.MaxImages, "maximum number of inputs")

	// Output options
	rootCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	rootCmd.Flags().String("output-mime", "", "output MIME type (default: from the output extension)")
	rootCmd.Flags().Int("output-fd", -1, "write the output to an open file descriptor")
	rootCmd.Flags().IntP("quality", "q", 100, "JPEG quality (0-100)")

	// Layout options
	rootCmd.Flags().StringP("alignment", "a", "grid", "arrangement (grid|grid-columns|horizontal|vertical)")
	rootCmd.Flags().Int("max-width", 0, "maximum output width in pixels (0: no limit)")
	rootCmd.Flags().Int("max-height", 0, "maximum output height in pixels (0: no limit)")
	rootCmd.Flags().String("background", "", "background colour as #rrggbb (default: transparent)")
	rootCmd.Flags().Int("workers", 0, "images decoded in parallel (0: one per CPU)")

	// Bind flags to viper for root command
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("max-images", rootCmd.Flags().Lookup("max-images"))
	viper.BindPFlag("quality", rootCmd.Flags().Lookup("quality"))
	viper.BindPFlag("alignment", rootCmd.Flags().Lookup("alignment"))
	viper.BindPFlag("max-width", rootCmd.Flags().Lookup("max-width"))
	viper.BindPFlag("max-height", rootCmd.Flags().Lookup("max-height"))
	viper.BindPFlag("background", rootCmd.Flags().Lookup("background"))
	viper.BindPFlag("workers", rootCmd.Flags().Lookup("workers"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".stitchy" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".stitchy")
	}

	viper.SetEnvPrefix("stitchy")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, l10n.F("Using config file: %s", viper.ConfigFileUsed()))
	}
}

func runStitch(cmd *cobra.Command, args []string) error {
	fds, _ := cmd.Flags().GetIntSlice("fd")
	mimes, _ := cmd.Flags().GetStringArray("mime")

	inputs := collectInputs(args, fds)
	if len(mimes) == 0 {
		mimes = nil
	}

	opts, err := optionsFromConfig()
	if err != nil {
		return err
	}

	outPath, _ := cmd.Flags().GetString("output")
	outMIME, _ := cmd.Flags().GetString("output-mime")
	outFD, _ := cmd.Flags().GetInt("output-fd")

	dst, closeDst, err := destination(outPath, outFD, os.Stdout)
	if err != nil {
		return err
	}
	defer closeDst()

	log := logger.NewConsole(logger.ParseLevel(viper.GetString("log-level")))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = stitch.Run(ctx, stitch.Request{
		Inputs:      inputs,
		MIMEs:       mimes,
		Output:      output.Target{MIME: outMIME, Path: outPath},
		Destination: dst,
		Options:     opts,
	}, log)
	return err
}

// collectInputs orders path inputs before descriptor inputs, matching the
// order --mime values are given in.
func collectInputs(paths []string, fds []int) []imagefile.Location {
	inputs := make([]imagefile.Location, 0, len(paths)+len(fds))
	for _, p := range paths {
		inputs = append(inputs, imagefile.NewPathLocation(p, ""))
	}
	for _, fd := range fds {
		inputs = append(inputs, &imagefile.FDLocation{FD: fd})
	}
	return inputs
}

func optionsFromConfig() (stitch.Options, error) {
	alignment, err := layout.ParseAlignment(viper.GetString("alignment"))
	if err != nil {
		return stitch.Options{}, err
	}

	opts := stitch.DefaultOptions()
	opts.Alignment = alignment
	opts.WidthLimit = cliLimit(viper.GetInt("max-width"))
	opts.HeightLimit = cliLimit(viper.GetInt("max-height"))
	opts.Quality = viper.GetInt("quality")
	opts.Background = viper.GetString("background")
	opts.Workers = viper.GetInt("workers")
	opts.MaxImages = viper.GetInt("max-images")
	return opts, nil
}

// cliLimit maps the command line's "0 means no limit" onto layout limits.
func cliLimit(v int) int {
	if v <= 0 {
		return layout.Unbounded
	}
	return v
}

// destination picks where the stitch is written. Standard output is refused
// when it is a terminal.
func destination(path string, fd int, stdout *os.File) (stitch.Destination, func(), error) {
	noop := func() {}

	switch {
	case fd >= 0:
		f := os.NewFile(uintptr(fd), fmt.Sprintf("fd:%d", fd))
		if f == nil {
			return stitch.Destination{}, noop, fmt.Errorf("invalid output descriptor %d", fd)
		}
		return stitch.Destination{Writer: f}, func() { f.Close() }, nil
	case path != "":
		return stitch.Destination{Path: path}, noop, nil
	}

	if isTerminal(stdout) {
		return stitch.Destination{}, noop, fmt.Errorf("didn't specify output file and standard output is a terminal")
	}
	return stitch.Destination{Writer: stdout}, noop, nil
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
