package main

import (
	"io"
	"time"

	flag "github.com/spf13/pflag"
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
}

// outputFlags selects what is produced and where.
type outputFlags struct {
	format string
	output string
}

// styleFlags holds viewer style flags.
type styleFlags struct {
	style  string
	assets string
}

// imageFlags holds PNG tuning flags. Scale and quality apply to PDF too.
type imageFlags struct {
	scale     float64
	quality   float64
	tileSize  int
	maxCanvas int
}

// pageFlags holds PDF page layout flags.
type pageFlags struct {
	size        string
	orientation string
	margin      float64
	maxPages    int
}

// advancedFlags holds capture tuning flags.
type advancedFlags struct {
	timeout time.Duration
	retries int
	delay   time.Duration
}

// exportFlags holds every flag of the export command.
type exportFlags struct {
	common   commonFlags
	output   outputFlags
	style    styleFlags
	image    imageFlags
	page     pageFlags
	advanced advancedFlags
	strategy string

	changed map[string]bool // flags set on the command line
}

// isSet reports whether the flag was given explicitly.
func (f *exportFlags) isSet(name string) bool {
	return f.changed[name]
}

func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only print errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "print debug logs and timings")
}

func addOutputFlags(fs *flag.FlagSet, f *outputFlags) {
	fs.StringVar(&f.format, "format", "", "output format: png, pdf, both")
	fs.StringVarP(&f.output, "output", "o", "", "output directory")
}

func addStyleFlags(fs *flag.FlagSet, f *styleFlags) {
	fs.StringVar(&f.style, "style", "", "style name, CSS file, or CSS content")
	fs.StringVar(&f.assets, "assets", "", "directory overriding embedded styles and templates")
}

func addImageFlags(fs *flag.FlagSet, f *imageFlags) {
	fs.Float64Var(&f.scale, "scale", 0, "device pixels per CSS pixel")
	fs.Float64Var(&f.quality, "quality", 0, "encoding quality (0-1]")
	fs.IntVar(&f.tileSize, "tile-size", 0, "tile edge in CSS pixels")
	fs.IntVar(&f.maxCanvas, "max-canvas", 0, "maximum canvas side in pixels")
}

func addPageFlags(fs *flag.FlagSet, f *pageFlags) {
	fs.StringVarP(&f.size, "page-size", "p", "", "page size: a4, letter, legal")
	fs.StringVar(&f.orientation, "orientation", "", "orientation: portrait, landscape")
	fs.Float64Var(&f.margin, "margin", 0, "page margin in millimetres")
	fs.IntVar(&f.maxPages, "max-pages", 0, "maximum number of PDF pages")
}

func addAdvancedFlags(fs *flag.FlagSet, f *advancedFlags) {
	fs.DurationVarP(&f.timeout, "timeout", "t", 0, "capture timeout shared by retries (e.g. 90s)")
	fs.IntVar(&f.retries, "retries", 0, "capture attempts")
	fs.DurationVar(&f.delay, "delay", 0, "pause between tiles and sections")
}

// parseExportFlags parses export command flags and returns positional args.
func parseExportFlags(args []string, usage io.Writer) (*exportFlags, []string, error) {
	fs := flag.NewFlagSet("mdexport", flag.ContinueOnError)
	fs.SetOutput(usage)
	f := &exportFlags{changed: make(map[string]bool)}

	addCommonFlags(fs, &f.common)
	addOutputFlags(fs, &f.output)
	addStyleFlags(fs, &f.style)
	addImageFlags(fs, &f.image)
	addPageFlags(fs, &f.page)
	addAdvancedFlags(fs, &f.advanced)
	fs.StringVarP(&f.strategy, "strategy", "s", "", "force a strategy (auto, single, tiled, smart, direct, css-print, chunked)")

	fs.Usage = func() { printExportUsage(usage) }

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	fs.Visit(func(fl *flag.Flag) { f.changed[fl.Name] = true })

	return f, fs.Args(), nil
}
