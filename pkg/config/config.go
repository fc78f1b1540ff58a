// Package config decodes and validates the options that drive a conversion run.
// The struct doubles as the CLI flag target (via go-flags struct tags) and as the
// in-memory record an embedding UI can populate directly, mirroring the way the
// teacher repo's cmd/evrtools/main.go held its flags in package-level vars, but
// generalized into a single struct since this tool's option surface is larger and
// is also consumed programmatically.
package config

import (
	"fmt"
	"regexp"
	"runtime"

	"github.com/creasty/defaults"
)

// Format identifies a block-compression (or passthrough) output format.
type Format int

const (
	FormatBC1 Format = iota
	FormatBC3
	FormatBC7
	FormatPNG
)

func (f Format) String() string {
	switch f {
	case FormatBC1:
		return "BC1"
	case FormatBC3:
		return "BC3"
	case FormatBC7:
		return "BC7"
	case FormatPNG:
		return "PNG"
	default:
		return "UNKNOWN"
	}
}

// ParseFormat parses a format name, including the deprecated BC1_ALPHA_BC7 alias.
// The alias expands to Format=BC1, AlphaFormat=BC7 and is reported separately by
// the caller so it can emit the deprecation warning.
func ParseFormat(s string) (f Format, isDeprecatedAlias bool, err error) {
	switch s {
	case "BC1":
		return FormatBC1, false, nil
	case "BC3":
		return FormatBC3, false, nil
	case "BC7":
		return FormatBC7, false, nil
	case "PNG":
		return FormatPNG, false, nil
	case "BC1_ALPHA_BC7":
		return FormatBC1, true, nil
	default:
		return 0, false, fmt.Errorf("unknown format %q", s)
	}
}

// HasAlpha reports whether the format can represent a non-opaque alpha channel.
func (f Format) HasAlpha() bool {
	return f == FormatBC3 || f == FormatBC7 || f == FormatPNG
}

// UnmarshalYAML lets a config file spell formats as "BC1"/"BC3"/etc rather than
// their underlying integer, via the same parser the CLI layer uses for --format.
func (f *Format) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, _, err := ParseFormat(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// FilterType identifies a resampling kernel used for mipmap generation or scaling.
type FilterType int

const (
	FilterNearest FilterType = iota
	FilterLinear
	FilterCubic
	FilterArea
	FilterLanczos
)

// UnmarshalYAML lets a config file spell filters as "linear"/"lanczos"/etc
// rather than their underlying integer.
func (ft *FilterType) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseFilter(s)
	if err != nil {
		return err
	}
	*ft = parsed
	return nil
}

func ParseFilter(s string) (FilterType, error) {
	switch s {
	case "nearest":
		return FilterNearest, nil
	case "linear":
		return FilterLinear, nil
	case "cubic":
		return FilterCubic, nil
	case "area":
		return FilterArea, nil
	case "lanczos":
		return FilterLanczos, nil
	default:
		return 0, fmt.Errorf("unknown filter %q", s)
	}
}

// BlackAlphaThreshold is the BC1 punch-through alpha cutoff: with AlphaBlack set, a
// block with any texel whose alpha is below it is encoded in the 3-color mode, and
// those texels take the transparent-black index. The test is on alpha alone:
// BlackAlphaLuminanceThreshold is declared here but the BC1 encoder does not
// consult it, so texel luminance plays no part in the decision.
const (
	BlackAlphaThreshold           = 128
	BlackAlphaLuminanceThreshold  = 32
)

// Config holds every recognized conversion option, plus the cache and logging
// additions (Cache, LogLevel) layered on top of the base option surface. The
// yaml tags let an embedding UI's config file (§4.10) decode straight into
// this struct; the CLI layer decodes go-flags on top and overrides only the
// fields the user actually passed.
type Config struct {
	Format      Format `yaml:"format"`
	AlphaFormat Format `yaml:"alpha_format"`
	HasAlpha    bool   `yaml:"-"` // true if AlphaFormat was explicitly set

	Quality int `default:"4" yaml:"quality"`

	Mipmaps      bool       `default:"true" yaml:"mipmaps"`
	MipmapFilter FilterType `yaml:"mipmap_filter"`
	MipmapBlur   float64    `default:"0.55" yaml:"mipmap_blur"`

	Scale       int        `default:"100" yaml:"scale"`
	MaxSize     int        `yaml:"max_size"`
	ScaleFilter FilterType `yaml:"scale_filter"`

	Threads int `yaml:"threads"`

	Depth int `default:"-1" yaml:"depth"`

	Overwrite    bool `yaml:"overwrite"`
	OverwriteNew bool `yaml:"overwrite_new"`

	VFlip     bool   `yaml:"vflip"`
	FixSize   bool   `yaml:"fix_size"`
	Substring string `yaml:"substring"`
	Regex     string `yaml:"regex"`

	DryRun bool `yaml:"dry_run"`
	Clean  bool `yaml:"clean"`

	AlphaBlack bool `yaml:"alpha_black"`

	Input  string `yaml:"input"`
	Output string `yaml:"output"`

	Cache    string `yaml:"cache"`
	LogLevel string `default:"info" yaml:"log_level"`

	// MipmapFilterExplicit is set by the CLI layer when --mipmap-filter was passed
	// explicitly, so Validate can distinguish "left at default" from "user set it
	// to the default value on purpose" for the PNG-format mutual exclusion check.
	MipmapFilterExplicit bool `yaml:"-"`

	// compiledRegex is populated by Validate from Regex.
	compiledRegex *regexp.Regexp
}

// New returns a Config with every `default` struct tag applied via
// github.com/creasty/defaults, rather than hand-writing a constructor that
// repeats zero-value literals across this many options.
func New() *Config {
	c := &Config{}
	_ = defaults.Set(c)
	return c
}

// CompiledRegex returns the compiled path filter, or nil if none was set.
func (c *Config) CompiledRegex() *regexp.Regexp {
	return c.compiledRegex
}

// Validate checks cross-field invariants the CLI (or an embedding caller) must
// satisfy before the pipeline starts. These are "argument errors": reported once,
// before any file is touched.
func (c *Config) Validate() error {
	// Overwrite dominates OverwriteNew when both end up true. The CLI additionally
	// rejects passing both flags explicitly (see cmd/pngtodds), so this branch only
	// matters for a config file that sets both, or for programmatic callers that
	// construct a Config directly.
	if c.Overwrite {
		c.OverwriteNew = false
	}

	if c.Format == FormatPNG {
		if c.Output == "" {
			return fmt.Errorf("--format PNG requires an explicit --output")
		}
		if c.MipmapFilterExplicit {
			return fmt.Errorf("--format PNG forbids --mipmap-filter")
		}
		if c.MipmapBlur != 0.55 {
			return fmt.Errorf("--format PNG forbids --mipmap-blur")
		}
	}

	if c.HasAlpha && !c.AlphaFormat.HasAlpha() {
		return fmt.Errorf("--alpha-format %s does not support alpha", c.AlphaFormat)
	}

	if c.Scale < 1 || c.Scale > 1000 {
		return fmt.Errorf("--scale must be in [1, 1000], got %d", c.Scale)
	}
	if c.MaxSize < 0 {
		return fmt.Errorf("--max-size must be >= 0, got %d", c.MaxSize)
	}

	maxThreads := runtime.NumCPU()
	if c.Threads < 0 || c.Threads > maxThreads {
		return fmt.Errorf("--threads must be in [0, %d] (0 = all cores), got %d", maxThreads, c.Threads)
	}
	if c.Threads == 0 {
		c.Threads = maxThreads
	}

	if c.Regex != "" {
		re, err := regexp.Compile(c.Regex)
		if err != nil {
			return fmt.Errorf("invalid --regex: %w", err)
		}
		c.compiledRegex = re
	}

	if c.Input == "" {
		return fmt.Errorf("an input path is required")
	}

	return nil
}
