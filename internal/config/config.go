package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/alnah/go-mdexport/internal/fileutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrInvalidValue    = errors.New("invalid config value")
	ErrConfigTooLarge  = errors.New("config file exceeds maximum size")
)

// MaxConfigSize limits config input (1 MB).
var MaxConfigSize = 1 << 20

// Field length limits.
const (
	MaxPathLength        = 4096
	MaxURLLength         = 2048
	MaxStyleLength       = 4096 // name, path, or short inline CSS
	MaxStrategyLength    = 20   // "css-print"
	MaxPageSizeLength    = 10   // "letter", "a4", "legal"
	MaxOrientationLength = 10   // "portrait", "landscape"
	MaxColorLength       = 20   // "#ffffff"
	MaxDurationLength    = 20   // "1m30s"
)

// Output formats accepted by output.format.
const (
	FormatPNG  = "png"
	FormatPDF  = "pdf"
	FormatBoth = "both"
)

// Config holds export configuration read from YAML. Zero values mean
// "use the library default".
type Config struct {
	Input    InputConfig    `yaml:"input"`
	Output   OutputConfig   `yaml:"output"`
	Style    string         `yaml:"style"` // style name, CSS file path, or CSS content
	Assets   AssetsConfig   `yaml:"assets"`
	Strategy StrategyConfig `yaml:"strategy"`
	Image    ImageConfig    `yaml:"image"`
	Document DocumentConfig `yaml:"document"`
	Advanced AdvancedConfig `yaml:"advanced"`
	Diagrams DiagramsConfig `yaml:"diagrams"`
}

// InputConfig defines input source options.
type InputConfig struct {
	DefaultDir string `yaml:"defaultDir"` // Default input directory (empty = must specify)
}

// OutputConfig defines output destination options.
type OutputConfig struct {
	DefaultDir string `yaml:"defaultDir"` // Default output directory (empty = same as source)
	Format     string `yaml:"format"`     // "png", "pdf", "both" (default: "pdf")
}

// AssetsConfig defines asset loading options.
type AssetsConfig struct {
	BasePath string `yaml:"basePath"` // Empty = use embedded assets
}

// StrategyConfig forces the first strategy tried per format.
type StrategyConfig struct {
	PNG string `yaml:"png"` // "auto", "single", "tiled", "smart"
	PDF string `yaml:"pdf"` // "auto", "direct", "css-print", "smart", "chunked"
}

// ImageConfig defines PNG export options.
type ImageConfig struct {
	Quality         float64 `yaml:"quality"`
	Scale           float64 `yaml:"scale"`
	Background      string  `yaml:"background"`
	MaxCanvas       int     `yaml:"maxCanvas"`
	MaxMemory       int64   `yaml:"maxMemory"`
	TileSize        int     `yaml:"tileSize"`
	FallbackFormat  string  `yaml:"fallbackFormat"` // "jpeg" or "png"
	FallbackQuality float64 `yaml:"fallbackQuality"`
	MaxBytes        int     `yaml:"maxBytes"` // 0 disables the size budget
}

// DocumentConfig defines PDF export options.
type DocumentConfig struct {
	Quality     float64 `yaml:"quality"`
	Scale       float64 `yaml:"scale"`
	PageSize    string  `yaml:"pageSize"`    // "a4", "letter", "legal"
	Orientation string  `yaml:"orientation"` // "portrait", "landscape"
	Margin      float64 `yaml:"margin"`      // millimetres
	MaxPages    int     `yaml:"maxPages"`
}

// AdvancedConfig tunes resource limits.
type AdvancedConfig struct {
	MaxMemory  int64  `yaml:"maxMemory"`
	Timeout    string `yaml:"timeout"` // Go duration, e.g. "90s"
	Retries    int    `yaml:"retries"`
	ChunkSize  int    `yaml:"chunkSize"`
	ChunkDelay string `yaml:"chunkDelay"` // Go duration, e.g. "100ms"
}

// DiagramsConfig defines diagram rendering options.
type DiagramsConfig struct {
	MermaidURL string `yaml:"mermaidURL"` // "-" disables in-page mermaid
}

// Validate checks field lengths, enumerations and durations. Range checks on
// numbers are left to the exporter, which owns the limits.
func (c *Config) Validate() error {
	fields := []struct {
		name  string
		value string
		max   int
	}{
		{"input.defaultDir", c.Input.DefaultDir, MaxPathLength},
		{"output.defaultDir", c.Output.DefaultDir, MaxPathLength},
		{"style", c.Style, MaxStyleLength},
		{"assets.basePath", c.Assets.BasePath, MaxPathLength},
		{"strategy.png", c.Strategy.PNG, MaxStrategyLength},
		{"strategy.pdf", c.Strategy.PDF, MaxStrategyLength},
		{"image.background", c.Image.Background, MaxColorLength},
		{"document.pageSize", c.Document.PageSize, MaxPageSizeLength},
		{"document.orientation", c.Document.Orientation, MaxOrientationLength},
		{"advanced.timeout", c.Advanced.Timeout, MaxDurationLength},
		{"advanced.chunkDelay", c.Advanced.ChunkDelay, MaxDurationLength},
		{"diagrams.mermaidURL", c.Diagrams.MermaidURL, MaxURLLength},
	}
	for _, f := range fields {
		if err := validateFieldLength(f.name, f.value, f.max); err != nil {
			return err
		}
	}

	switch strings.ToLower(c.Output.Format) {
	case "", FormatPNG, FormatPDF, FormatBoth:
	default:
		return fmt.Errorf("%w: output.format %q (must be png, pdf, or both)", ErrInvalidValue, c.Output.Format)
	}
	switch strings.ToLower(c.Image.FallbackFormat) {
	case "", "jpeg", "jpg", "png":
	default:
		return fmt.Errorf("%w: image.fallbackFormat %q (must be jpeg or png)", ErrInvalidValue, c.Image.FallbackFormat)
	}

	if _, err := c.Advanced.TimeoutDuration(); err != nil {
		return err
	}
	if _, err := c.Advanced.ChunkDelayDuration(); err != nil {
		return err
	}
	return nil
}

// TimeoutDuration parses advanced.timeout. Zero means unset.
func (a AdvancedConfig) TimeoutDuration() (time.Duration, error) {
	d, err := parseDuration("advanced.timeout", a.Timeout)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: advanced.timeout %q (must be positive)", ErrInvalidValue, a.Timeout)
	}
	return d, nil
}

// ChunkDelayDuration parses advanced.chunkDelay. Zero means unset.
func (a AdvancedConfig) ChunkDelayDuration() (time.Duration, error) {
	d, err := parseDuration("advanced.chunkDelay", a.ChunkDelay)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: advanced.chunkDelay %q (must not be negative)", ErrInvalidValue, a.ChunkDelay)
	}
	return d, nil
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q: %v", ErrInvalidValue, field, s, err)
	}
	return d, nil
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// DefaultConfig returns an empty configuration: every value falls back to
// the exporter defaults.
func DefaultConfig() *Config {
	return &Config{}
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	configPath := nameOrPath
	if !fileutil.IsFilePath(nameOrPath) {
		var err error
		if configPath, err = resolveConfigPath(nameOrPath); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes and validates YAML config data. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	if len(data) > MaxConfigSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrConfigTooLarge, len(data), MaxConfigSize)
	}
	cfg := DefaultConfig()
	if len(data) > 0 {
		if err := yaml.UnmarshalWithOptions(data, cfg, yaml.Strict()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SearchPaths lists the files resolveConfigPath tries for name, in order.
func SearchPaths(name string) []string {
	extensions := []string{".yaml", ".yml"}
	paths := make([]string, 0, len(extensions)*2)
	for _, ext := range extensions {
		paths = append(paths, name+ext)
	}
	if dir, err := os.UserConfigDir(); err == nil {
		for _, ext := range extensions {
			paths = append(paths, filepath.Join(dir, "go-mdexport", name+ext))
		}
	}
	return paths
}

// resolveConfigPath searches for a config file by name: the current
// directory first, then the user config directory (go-mdexport/).
func resolveConfigPath(name string) (string, error) {
	paths := SearchPaths(name)
	for _, p := range paths {
		if fileutil.FileExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(paths, ", "))
}
