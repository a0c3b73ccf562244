package compose

import (
	"fmt"
	"strings"
)

// PageSize is a physical page in millimetres.
type PageSize struct {
	Name   string
	Width  float64
	Height float64
}

// Supported page sizes, portrait.
var (
	A4     = PageSize{Name: "a4", Width: 210, Height: 297}
	Letter = PageSize{Name: "letter", Width: 215.9, Height: 279.4}
	Legal  = PageSize{Name: "legal", Width: 215.9, Height: 355.6}
)

var pageSizes = map[string]PageSize{
	A4.Name:     A4,
	Letter.Name: Letter,
	Legal.Name:  Legal,
}

// Orientations.
const (
	Portrait  = "portrait"
	Landscape = "landscape"
)

// LookupPageSize returns the named size, rotated for landscape.
func LookupPageSize(name, orientation string) (PageSize, error) {
	size, ok := pageSizes[strings.ToLower(name)]
	if !ok {
		return PageSize{}, fmt.Errorf("%w: %q (valid: a4, letter, legal)", ErrInvalidPageSize, name)
	}
	switch strings.ToLower(orientation) {
	case "", Portrait:
		return size, nil
	case Landscape:
		size.Width, size.Height = size.Height, size.Width
		return size, nil
	default:
		return PageSize{}, fmt.Errorf("%w: %q (valid: portrait, landscape)", ErrInvalidOrientation, orientation)
	}
}

// Margins are page margins in millimetres.
type Margins struct {
	Top, Right, Bottom, Left float64
}

// Uniform returns equal margins on every side.
func Uniform(mm float64) Margins {
	return Margins{Top: mm, Right: mm, Bottom: mm, Left: mm}
}

// ContentBox returns the printable area of size inside m.
func ContentBox(size PageSize, m Margins) (x, y, width, height float64) {
	return m.Left, m.Top, size.Width - m.Left - m.Right, size.Height - m.Top - m.Bottom
}

// ContentRatio is the content box height over its width.
func ContentRatio(size PageSize, m Margins) float64 {
	_, _, w, h := ContentBox(size, m)
	if w <= 0 {
		return 0
	}
	return h / w
}
