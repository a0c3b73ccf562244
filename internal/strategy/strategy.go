// Package strategy picks an export pipeline from a content analysis and
// lists the pipelines to fall back to when it fails.
package strategy

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/alnah/go-mdexport/internal/analyze"
)

// Format is the export target.
type Format string

// Export formats.
const (
	PNG Format = "png"
	PDF Format = "pdf"
)

// Name identifies an export pipeline.
type Name string

// Image pipelines.
const (
	Single Name = "single"
	Tiled  Name = "tiled"
	Smart  Name = "smart"
)

// Document pipelines. Smart is shared with images.
const (
	Direct   Name = "direct"
	CSSPrint Name = "css-print"
	Chunked  Name = "chunked"
)

// Selection thresholds.
const (
	SingleMaxHeight     = 4000.0 // px
	SingleMaxComplexity = 15.0

	DirectMaxHeight     = 3000.0 // px
	DirectMaxComplexity = 10.0
	PrintMaxHeight      = 8000.0 // px
	PrintMaxImages      = 5
	ChunkedPageHeights  = 10.0 // height above this many pages forces chunking
	ChunkedMinPages     = 20
)

// ErrUnknownStrategy is returned by Parse for names outside a format's set.
var ErrUnknownStrategy = errors.New("unknown strategy")

// ImageLimits bounds one-shot image rasterization.
type ImageLimits struct {
	MaxCanvas float64 // px per side
	MaxMemory float64 // bytes
}

// SelectImage picks the PNG pipeline.
func SelectImage(a analyze.Analysis, lim ImageLimits) Name {
	switch {
	case lim.MaxCanvas > 0 && a.MaxCanvasSide() > lim.MaxCanvas:
		return Tiled
	case lim.MaxMemory > 0 && a.MemoryBytes > lim.MaxMemory:
		return Smart
	case a.Height <= SingleMaxHeight && a.Complexity < SingleMaxComplexity:
		return Single
	default:
		return Smart
	}
}

// DocumentLimits carries the page geometry used for PDF selection.
type DocumentLimits struct {
	ContentRatio float64 // content box height / width
	MaxCanvas    float64 // px per side for one-shot captures
	MaxMemory    float64 // bytes for one-shot captures
}

// SelectDocument picks the PDF pipeline. A one-shot capture that would
// exceed MaxCanvas or MaxMemory is routed to chunking instead.
func SelectDocument(a analyze.Analysis, lim DocumentLimits) Name {
	pageHeight := a.PageHeightPx(lim.ContentRatio)
	pages := a.EstimatedPages(lim.ContentRatio)

	switch {
	case a.Height <= DirectMaxHeight && a.Complexity < DirectMaxComplexity:
		if lim.MaxCanvas > 0 && a.MaxCanvasSide() > lim.MaxCanvas {
			return Chunked
		}
		if lim.MaxMemory > 0 && a.MemoryBytes > lim.MaxMemory {
			return Chunked
		}
		return Direct
	case a.Height <= PrintMaxHeight && a.Images <= PrintMaxImages:
		return CSSPrint
	case pageHeight > 0 && a.Height > ChunkedPageHeights*pageHeight:
		return Chunked
	case pages > ChunkedMinPages:
		return Chunked
	default:
		return Smart
	}
}

var fallbacks = map[Format]map[Name][]Name{
	PNG: {
		Single: {Single, Tiled},
		Smart:  {Smart, Tiled},
		Tiled:  {Tiled},
	},
	PDF: {
		Direct:   {Direct, Chunked},
		CSSPrint: {CSSPrint, Smart, Chunked},
		Smart:    {Smart, Chunked},
		Chunked:  {Chunked},
	},
}

// Fallbacks returns the ordered pipelines to try, starting with first.
// Unknown combinations return only first.
func Fallbacks(f Format, first Name) []Name {
	if chain, ok := fallbacks[f][first]; ok {
		return slices.Clone(chain)
	}
	return []Name{first}
}

// Names lists the pipelines valid for f, sorted.
func Names(f Format) []Name {
	names := make([]Name, 0, len(fallbacks[f]))
	for n := range fallbacks[f] {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Parse validates a pipeline name for f. An empty string yields "".
func Parse(f Format, s string) (Name, error) {
	if s == "" || strings.EqualFold(s, "auto") {
		return "", nil
	}
	n := Name(strings.ToLower(s))
	if _, ok := fallbacks[f][n]; !ok {
		return "", fmt.Errorf("%w: %q for %s (valid: %v)", ErrUnknownStrategy, s, f, Names(f))
	}
	return n, nil
}
