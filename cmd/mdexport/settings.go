package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	mdexport "github.com/alnah/go-mdexport"
	"github.com/alnah/go-mdexport/internal/config"
)

// Sentinel errors for option resolution.
var (
	ErrInvalidFormat = errors.New("invalid output format")
	ErrUsage         = errors.New("invalid usage")
)

// resolveFormats returns the formats to produce: flag, then config, then PDF.
func resolveFormats(f *exportFlags, cfg *config.Config) ([]mdexport.Format, error) {
	value := cfg.Output.Format
	if f.output.format != "" {
		value = f.output.format
	}
	switch strings.ToLower(value) {
	case "", config.FormatPDF:
		return []mdexport.Format{mdexport.FormatPDF}, nil
	case config.FormatPNG:
		return []mdexport.Format{mdexport.FormatPNG}, nil
	case config.FormatBoth:
		return []mdexport.Format{mdexport.FormatPNG, mdexport.FormatPDF}, nil
	}
	return nil, fmt.Errorf("%w: %q (must be png, pdf, or both)", ErrInvalidFormat, value)
}

// resolveStrategies picks the forced strategy per format. A shared value
// (--strategy, else MDEXPORT_STRATEGY) applies to every requested format
// that knows it and must fit at least one; otherwise the config's
// per-format value applies.
func resolveStrategies(formats []mdexport.Format, shared string, cfg *config.Config) (map[mdexport.Format]string, error) {
	out := make(map[mdexport.Format]string, len(formats))
	if shared != "" && !strings.EqualFold(shared, "auto") {
		name := strings.ToLower(shared)
		for _, format := range formats {
			if slices.Contains(mdexport.Strategies(format), name) {
				out[format] = name
			}
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("%w: %q for %s", mdexport.ErrUnknownStrategy, shared, formatList(formats))
		}
		return out, nil
	}
	for _, format := range formats {
		switch format {
		case mdexport.FormatPNG:
			out[format] = cfg.Strategy.PNG
		case mdexport.FormatPDF:
			out[format] = cfg.Strategy.PDF
		}
	}
	return out, nil
}

// buildSettings layers config values, then explicit flags, over the
// exporter defaults.
func buildSettings(f *exportFlags, cfg *config.Config) (*mdexport.Settings, error) {
	s := mdexport.DefaultSettings()

	img := cfg.Image
	setFloat(&s.Image.Quality, img.Quality)
	setFloat(&s.Image.Scale, img.Scale)
	setString(&s.Image.Background, img.Background)
	setInt(&s.Image.MaxCanvas, img.MaxCanvas)
	setInt64(&s.Image.MaxMemory, img.MaxMemory)
	setInt(&s.Image.TileSize, img.TileSize)
	setString(&s.Image.FallbackFormat, img.FallbackFormat)
	setFloat(&s.Image.FallbackQuality, img.FallbackQuality)
	setInt(&s.Image.MaxBytes, img.MaxBytes)

	doc := cfg.Document
	setFloat(&s.Document.Quality, doc.Quality)
	setFloat(&s.Document.Scale, doc.Scale)
	setString(&s.Document.PageSize, doc.PageSize)
	setString(&s.Document.Orientation, doc.Orientation)
	setFloat(&s.Document.Margin, doc.Margin)
	setInt(&s.Document.MaxPages, doc.MaxPages)

	adv := cfg.Advanced
	setInt64(&s.Advanced.MaxMemory, adv.MaxMemory)
	setInt(&s.Advanced.Retries, adv.Retries)
	setInt(&s.Advanced.ChunkSize, adv.ChunkSize)
	timeout, err := adv.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		s.Advanced.Timeout = timeout
	}
	delay, err := adv.ChunkDelayDuration()
	if err != nil {
		return nil, err
	}
	if adv.ChunkDelay != "" {
		s.Advanced.ChunkDelay = delay
	}

	if f.isSet("scale") {
		s.Image.Scale = f.image.scale
		s.Document.Scale = f.image.scale
	}
	if f.isSet("quality") {
		s.Image.Quality = f.image.quality
		s.Document.Quality = f.image.quality
	}
	if f.isSet("tile-size") {
		s.Image.TileSize = f.image.tileSize
	}
	if f.isSet("max-canvas") {
		s.Image.MaxCanvas = f.image.maxCanvas
	}
	if f.isSet("page-size") {
		s.Document.PageSize = f.page.size
	}
	if f.isSet("orientation") {
		s.Document.Orientation = f.page.orientation
	}
	if f.isSet("margin") {
		s.Document.Margin = f.page.margin
	}
	if f.isSet("max-pages") {
		s.Document.MaxPages = f.page.maxPages
	}
	if f.isSet("timeout") {
		s.Advanced.Timeout = f.advanced.timeout
	}
	if f.isSet("retries") {
		s.Advanced.Retries = f.advanced.retries
	}
	if f.isSet("delay") {
		s.Advanced.ChunkDelay = f.advanced.delay
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func formatList(formats []mdexport.Format) string {
	parts := make([]string, len(formats))
	for i, f := range formats {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setInt64(dst *int64, v int64) {
	if v != 0 {
		*dst = v
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
