package mdexport

import (
	"fmt"
	"strings"
	"time"

	"github.com/alnah/go-mdexport/internal/compose"
	"github.com/alnah/go-mdexport/internal/dom"
	"github.com/alnah/go-mdexport/internal/encode"
)

// Page size constants.
const (
	PageSizeA4     = "a4"
	PageSizeLetter = "letter"
	PageSizeLegal  = "legal"
)

// Orientation constants.
const (
	OrientationPortrait  = compose.Portrait
	OrientationLandscape = compose.Landscape
)

// Margin bounds in millimetres.
const (
	MinMargin = 0.0
	MaxMargin = 50.0
)

// Scale bounds.
const (
	MinScale = 0.25
	MaxScale = 4.0
)

// Format identifies an export target.
type Format string

// Export formats.
const (
	FormatPNG Format = "png"
	FormatPDF Format = "pdf"
)

// ImageSettings configures PNG exports.
type ImageSettings struct {
	Quality         float64 // 0-1, first lossy step when PNG fails or is over MaxBytes
	Scale           float64 // device pixels per CSS pixel
	Background      string  // CSS hex colour
	MaxCanvas       int     // px per side
	MaxMemory       int64   // bytes for a one-shot canvas
	TileSize        int     // CSS px
	FallbackFormat  string  // "jpeg" or "png"
	FallbackQuality float64 // 0-1
	MaxBytes        int     // encoded size budget, 0 for none
}

// DocumentSettings configures PDF exports.
type DocumentSettings struct {
	Quality     float64 // 0-1, JPEG quality of placed images
	Scale       float64
	PageSize    string  // "a4", "letter", "legal"
	Orientation string  // "portrait", "landscape"
	Margin      float64 // millimetres, all sides
	MaxPages    int
}

// AdvancedSettings tunes resource limits shared by both formats.
type AdvancedSettings struct {
	MaxMemory  int64         // bytes for a one-shot document capture
	Timeout    time.Duration // total per capture, split across retries
	Retries    int
	ChunkSize  int           // sections taller than this (CSS px) are tiled
	ChunkDelay time.Duration // pause between tiles and sections
}

// Settings holds every export option.
type Settings struct {
	Image    ImageSettings
	Document DocumentSettings
	Advanced AdvancedSettings
}

// DefaultSettings returns the default export settings.
func DefaultSettings() *Settings {
	return &Settings{
		Image: ImageSettings{
			Quality:         0.9,
			Scale:           2,
			Background:      "#ffffff",
			MaxCanvas:       16384,
			MaxMemory:       256 << 20,
			TileSize:        2048,
			FallbackFormat:  encode.FormatJPEG,
			FallbackQuality: 0.7,
		},
		Document: DocumentSettings{
			Quality:     0.95,
			Scale:       2,
			PageSize:    PageSizeA4,
			Orientation: OrientationPortrait,
			Margin:      0,
			MaxPages:    compose.DefaultMaxPages,
		},
		Advanced: AdvancedSettings{
			MaxMemory:  512 << 20,
			Timeout:    60 * time.Second,
			Retries:    3,
			ChunkSize:  4096,
			ChunkDelay: 100 * time.Millisecond,
		},
	}
}

// Validate checks every field.
// Returns nil if s is nil (nil means use defaults).
func (s *Settings) Validate() error {
	if s == nil {
		return nil
	}
	if err := s.Image.Validate(); err != nil {
		return err
	}
	if err := s.Document.Validate(); err != nil {
		return err
	}
	return s.Advanced.Validate()
}

// Validate checks image settings.
func (i ImageSettings) Validate() error {
	if err := validateQuality("image quality", i.Quality); err != nil {
		return err
	}
	if err := validateQuality("fallback quality", i.FallbackQuality); err != nil {
		return err
	}
	if err := validateScale(i.Scale); err != nil {
		return err
	}
	if _, err := dom.ParseColor(i.Background); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidColor, err)
	}
	if i.MaxCanvas < 256 {
		return fmt.Errorf("%w: max canvas %d (must be at least 256)", ErrInvalidLimit, i.MaxCanvas)
	}
	if i.MaxMemory <= 0 {
		return fmt.Errorf("%w: image max memory %d", ErrInvalidLimit, i.MaxMemory)
	}
	if i.TileSize < 64 || float64(i.TileSize)*i.Scale > float64(i.MaxCanvas) {
		return fmt.Errorf("%w: tile size %d at scale %.2f (must be at least 64 and fit the %d px canvas)",
			ErrInvalidLimit, i.TileSize, i.Scale, i.MaxCanvas)
	}
	if i.MaxBytes < 0 {
		return fmt.Errorf("%w: image max bytes %d", ErrInvalidLimit, i.MaxBytes)
	}
	switch strings.ToLower(i.FallbackFormat) {
	case encode.FormatJPEG, "jpg", encode.FormatPNG:
	default:
		return fmt.Errorf("%w: %q (must be jpeg or png)", ErrInvalidFormat, i.FallbackFormat)
	}
	return nil
}

// Validate checks document settings.
func (d DocumentSettings) Validate() error {
	if err := validateQuality("document quality", d.Quality); err != nil {
		return err
	}
	if err := validateScale(d.Scale); err != nil {
		return err
	}
	if _, err := compose.LookupPageSize(d.PageSize, d.Orientation); err != nil {
		return err
	}
	if d.Margin < MinMargin || d.Margin > MaxMargin {
		return fmt.Errorf("%w: %.1f mm (must be between %.0f and %.0f)", ErrInvalidMargin, d.Margin, MinMargin, MaxMargin)
	}
	if d.MaxPages < 1 {
		return fmt.Errorf("%w: max pages %d (must be at least 1)", ErrInvalidLimit, d.MaxPages)
	}
	return nil
}

// Validate checks advanced settings.
func (a AdvancedSettings) Validate() error {
	if a.MaxMemory <= 0 {
		return fmt.Errorf("%w: advanced max memory %d", ErrInvalidLimit, a.MaxMemory)
	}
	if a.Timeout <= 0 {
		return fmt.Errorf("%w: timeout %v (must be positive)", ErrInvalidLimit, a.Timeout)
	}
	if a.Retries < 1 || a.Retries > 10 {
		return fmt.Errorf("%w: retries %d (must be between 1 and 10)", ErrInvalidLimit, a.Retries)
	}
	if a.ChunkSize < 256 {
		return fmt.Errorf("%w: chunk size %d (must be at least 256)", ErrInvalidLimit, a.ChunkSize)
	}
	if a.ChunkDelay < 0 {
		return fmt.Errorf("%w: chunk delay %v (must not be negative)", ErrInvalidLimit, a.ChunkDelay)
	}
	return nil
}

// pageLayout resolves the document page geometry.
func (d DocumentSettings) pageLayout() (compose.PageSize, compose.Margins, error) {
	size, err := compose.LookupPageSize(d.PageSize, d.Orientation)
	if err != nil {
		return compose.PageSize{}, compose.Margins{}, err
	}
	return size, compose.Uniform(d.Margin), nil
}

func validateQuality(name string, q float64) error {
	if q <= 0 || q > 1 {
		return fmt.Errorf("%w: %s %.2f (must be in (0, 1])", ErrInvalidQuality, name, q)
	}
	return nil
}

func validateScale(s float64) error {
	if s < MinScale || s > MaxScale {
		return fmt.Errorf("%w: %.2f (must be between %.2f and %.2f)", ErrInvalidScale, s, MinScale, MaxScale)
	}
	return nil
}
