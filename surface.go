package mdexport

import (
	"context"

	"github.com/alnah/go-mdexport/internal/dom"
)

// Rendering contract used by the exporter. A headless Chrome surface is
// created by default; tests and embedders can supply their own with
// WithSurface.
type (
	Surface        = dom.Surface
	Printer        = dom.Printer
	Node           = dom.Node
	Rect           = dom.Rect
	Kind           = dom.Kind
	CaptureOptions = dom.CaptureOptions
	CloneSpec      = dom.CloneSpec
	PrintOptions   = dom.PrintOptions
)

// Element kinds recognized by the analyzer.
const (
	KindBlock   = dom.KindBlock
	KindImage   = dom.KindImage
	KindDiagram = dom.KindDiagram
	KindTable   = dom.KindTable
	KindCode    = dom.KindCode
)

// Loader is implemented by surfaces that can display an HTML document.
// Load returns the ref of the export root.
type Loader interface {
	Load(ctx context.Context, html string) (string, error)
}

// Element identifies the source element of an export on the surface.
type Element string

// Compile-time interface checks.
var (
	_ Surface = (*rodSurface)(nil)
	_ Printer = (*rodSurface)(nil)
	_ Loader  = (*rodSurface)(nil)
)
