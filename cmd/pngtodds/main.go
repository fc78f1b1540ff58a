// Command pngtodds batch-converts PNG textures into block-compressed DDS
// files. It is a thin driver: decode flags, validate, run the pipeline, drain
// the report stream onto stderr, translate terminal state into an exit code.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	flags "github.com/jessevdk/go-flags"

	"github.com/goopsie/pngtodds/pkg/config"
	"github.com/goopsie/pngtodds/pkg/pipeline"
	"github.com/goopsie/pngtodds/pkg/report"
)

// options is the go-flags struct-tag declaration of the CLI surface. It
// mirrors config.Config field-for-field but keeps enum-valued options as
// plain strings, since go-flags parses scalars and leaves the domain parsing
// (ParseFormat/ParseFilter) to us.
type options struct {
	Positional struct {
		Input  string `positional-arg-name:"INPUT"`
		Output string `positional-arg-name:"OUTPUT"`
	} `positional-args:"yes"`

	ConfigPath string `long:"config" description:"load options from a YAML config file; CLI flags override it"`

	Format      string `long:"format" default:"BC1" description:"output format: BC1, BC3, BC7, PNG, or the deprecated BC1_ALPHA_BC7 alias"`
	AlphaFormat string `long:"alpha-format" description:"override format for images with non-opaque alpha"`
	Quality     int    `long:"quality" default:"4" description:"BC7 encoder quality (0-4)"`

	NoMipmaps    bool    `long:"no-mipmaps" description:"disable mipmap generation"`
	MipmapFilter string  `long:"mipmap-filter" description:"nearest, linear, cubic, area, or lanczos"`
	MipmapBlur   float64 `long:"mipmap-blur" default:"0.55" description:"pre-filter blur factor for mipmap generation"`

	Scale       int    `long:"scale" default:"100" description:"multiplicative pre-encode scale, percent"`
	MaxSize     int    `long:"max-size" description:"cap the longer base dimension"`
	ScaleFilter string `long:"scale-filter" description:"nearest, linear, cubic, area, or lanczos"`

	Threads int `long:"threads" description:"parallelism cap (0 = all cores)"`
	Depth   int `long:"depth" default:"-1" description:"max directory recursion depth (-1 = unlimited)"`

	Overwrite    bool `long:"overwrite" description:"reprocess every admitted file"`
	OverwriteNew bool `long:"overwrite-new" description:"reprocess only when the source is newer than the destination"`

	VFlip     bool   `long:"vflip" description:"flip rows vertically before encode"`
	FixSize   bool   `long:"fix-size" description:"pad the base image to a multiple of 4"`
	Substring string `long:"substring" description:"only admit paths containing this substring"`
	Regex     string `long:"regex" description:"only admit paths matching this regular expression"`

	DryRun bool `long:"dry-run" description:"resolve input only, write nothing"`
	Clean  bool `long:"clean" description:"delete matching destination files instead of encoding"`

	AlphaBlack bool `long:"alpha-black" description:"BC1 uses 3-color (alpha=black) blocks for quality"`

	Cache    string `long:"cache" description:"path to a conversion cache file, speeds up --overwrite-new reruns"`
	LogLevel string `long:"log-level" default:"info" description:"debug, info, warn, or error"`
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var opts options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.ParseArgs(args); err != nil {
		if flags.WroteHelp(err) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if opts.Overwrite && opts.OverwriteNew {
		fmt.Fprintln(os.Stderr, "--overwrite and --overwrite-new are mutually exclusive")
		return 1
	}

	cfg, warnings, err := buildConfig(&opts, parser)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger := newLogger(cfg.LogLevel)
	for _, w := range warnings {
		logger.Warn(w)
	}

	stream := report.NewStream(256)
	done := make(chan struct{})
	go consumeReports(stream, logger, done)

	result, err := pipeline.Run(context.Background(), cfg, stream)
	stream.Close()
	<-done

	if err != nil {
		logger.Error("pipeline failed", "error", err)
		return 1
	}

	logger.Info("conversion complete", "processed", result.Processed, "skipped", result.Skipped)
	if result.HadErrors {
		return 2
	}
	return 0
}

// buildConfig layers a --config file (if given) under the CLI flags: the file
// supplies defaults, explicit flags always win. isSet distinguishes "the user
// passed this flag" from "go-flags filled in its default tag", since both
// look identical on the options struct otherwise. warnings carries
// deprecated-alias advisories to be logged once the logger exists.
func buildConfig(opts *options, parser *flags.Parser) (*config.Config, []string, error) {
	var cfg *config.Config
	if opts.ConfigPath != "" {
		loaded, err := config.LoadFile(opts.ConfigPath)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	} else {
		cfg = config.New()
	}

	isSet := func(longName string) bool {
		opt := parser.FindOptionByLongName(longName)
		return opt != nil && opt.IsSet()
	}

	var warnings []string

	if opts.Positional.Input != "" {
		cfg.Input = opts.Positional.Input
	}
	if opts.Positional.Output != "" {
		cfg.Output = opts.Positional.Output
	}

	if isSet("format") {
		f, deprecated, err := config.ParseFormat(opts.Format)
		if err != nil {
			return nil, nil, fmt.Errorf("--format: %w", err)
		}
		cfg.Format = f
		if deprecated {
			warnings = append(warnings, "--format BC1_ALPHA_BC7 is deprecated, use --format BC1 --alpha-format BC7")
			cfg.AlphaFormat = config.FormatBC7
			cfg.HasAlpha = true
		}
	}
	if isSet("alpha-format") {
		f, _, err := config.ParseFormat(opts.AlphaFormat)
		if err != nil {
			return nil, nil, fmt.Errorf("--alpha-format: %w", err)
		}
		cfg.AlphaFormat = f
		cfg.HasAlpha = true
	}

	if isSet("quality") {
		cfg.Quality = opts.Quality
	}
	if opts.NoMipmaps {
		cfg.Mipmaps = false
	}
	if isSet("mipmap-filter") {
		ft, err := config.ParseFilter(opts.MipmapFilter)
		if err != nil {
			return nil, nil, fmt.Errorf("--mipmap-filter: %w", err)
		}
		cfg.MipmapFilter = ft
		cfg.MipmapFilterExplicit = true
	}
	if isSet("mipmap-blur") {
		cfg.MipmapBlur = opts.MipmapBlur
	}

	if isSet("scale") {
		cfg.Scale = opts.Scale
	}
	if isSet("max-size") {
		cfg.MaxSize = opts.MaxSize
	}
	if isSet("scale-filter") {
		ft, err := config.ParseFilter(opts.ScaleFilter)
		if err != nil {
			return nil, nil, fmt.Errorf("--scale-filter: %w", err)
		}
		cfg.ScaleFilter = ft
	}

	if isSet("threads") {
		cfg.Threads = opts.Threads
	}
	if isSet("depth") {
		cfg.Depth = opts.Depth
	}
	if opts.Overwrite {
		cfg.Overwrite = true
	}
	if opts.OverwriteNew {
		cfg.OverwriteNew = true
	}
	if opts.VFlip {
		cfg.VFlip = true
	}
	if opts.FixSize {
		cfg.FixSize = true
	}
	if isSet("substring") {
		cfg.Substring = opts.Substring
	}
	if isSet("regex") {
		cfg.Regex = opts.Regex
	}
	if opts.DryRun {
		cfg.DryRun = true
	}
	if opts.Clean {
		cfg.Clean = true
	}
	if opts.AlphaBlack {
		cfg.AlphaBlack = true
	}
	if isSet("cache") {
		cfg.Cache = opts.Cache
	}
	if isSet("log-level") {
		cfg.LogLevel = opts.LogLevel
	}

	return cfg, warnings, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}

// consumeReports drains stream onto logger until the producer closes it,
// logging one line per event; a GUI front-end would subscribe to the same
// stream instead of this function.
func consumeReports(stream *report.Stream, logger *slog.Logger, done chan<- struct{}) {
	defer close(done)
	for r := range stream.Events() {
		switch r.Tag {
		case report.RetrievalStarted:
			logger.Debug("retrieval started")
		case report.RetrievalProgress:
			logger.Debug("retrieval progress", "count", r.Count)
		case report.RetrievalTime:
			logger.Debug("retrieval finished", "ms", r.Millis)
		case report.ProcessStarted:
			logger.Info("processing", "total", r.Count)
		case report.FileLoaded:
			logger.Debug("loaded", "path", r.Path)
		case report.EncodingProgress:
			logger.Debug("encoded", "path", r.Path)
		case report.PipelineError:
			logger.Error("pipeline error", "path", r.Path, "error", r.Err)
		case report.Warning:
			logger.Warn(r.Message)
		}
	}
}
