// Package analyze estimates size and complexity of a rendered document
// before anything is rasterized.
package analyze

import (
	"math"

	"github.com/alnah/go-mdexport/internal/dom"
)

// Score weights.
const (
	heightUnit     = 1000.0
	maxHeightScore = 10.0
	imageWeight    = 2.0
	diagramWeight  = 3.0
	tableWeight    = 1.5
	codeWeight     = 1.0
	depthWeight    = 0.5
	MaxComplexity  = 50.0
)

// BytesPerPixel is the RGBA footprint used for memory estimates.
const BytesPerPixel = 4

// Analysis is an immutable description of an element at analysis time.
type Analysis struct {
	Width      float64 // CSS px
	Height     float64 // CSS px
	Images     int
	Diagrams   int
	Tables     int
	CodeBlocks int
	Depth      int
	Complexity float64 // 0 to MaxComplexity
	Scale      float64

	CanvasWidth  float64 // Width * Scale
	CanvasHeight float64 // Height * Scale
	MemoryBytes  float64 // CanvasWidth * CanvasHeight * BytesPerPixel
}

// Analyze walks root and computes its Analysis at the given scale.
// A nil root or a non-positive scale yields zero metrics.
func Analyze(root *dom.Node, scale float64) Analysis {
	if scale <= 0 {
		scale = 1
	}
	a := Analysis{Scale: scale}
	if root == nil {
		return a
	}

	a.Width, a.Height = root.Size()
	root.Walk(func(n *dom.Node, depth int) bool {
		if depth > a.Depth {
			a.Depth = depth
		}
		if n == root {
			return true
		}
		switch n.Kind {
		case dom.KindImage:
			a.Images++
		case dom.KindDiagram:
			a.Diagrams++
		case dom.KindTable:
			a.Tables++
		case dom.KindCode:
			a.CodeBlocks++
		}
		return true
	})

	a.Complexity = Complexity(a.Height, a.Images, a.Diagrams, a.Tables, a.CodeBlocks, a.Depth)
	a.CanvasWidth = a.Width * scale
	a.CanvasHeight = a.Height * scale
	a.MemoryBytes = a.CanvasWidth * a.CanvasHeight * BytesPerPixel
	return a
}

// Complexity computes the bounded complexity score.
func Complexity(height float64, images, diagrams, tables, code, depth int) float64 {
	score := math.Min(math.Max(height, 0)/heightUnit, maxHeightScore) +
		float64(images)*imageWeight +
		float64(diagrams)*diagramWeight +
		float64(tables)*tableWeight +
		float64(code)*codeWeight +
		float64(depth)*depthWeight
	return math.Min(score, MaxComplexity)
}

// MaxCanvasSide returns the larger scaled dimension.
func (a Analysis) MaxCanvasSide() float64 {
	return math.Max(a.CanvasWidth, a.CanvasHeight)
}

// IsEmpty reports whether there is nothing to render.
func (a Analysis) IsEmpty() bool {
	return a.Width <= 0 || a.Height <= 0
}

// PageHeightPx converts a page content box into CSS pixels at the
// element's width, given the content box height/width ratio.
func (a Analysis) PageHeightPx(contentRatio float64) float64 {
	if contentRatio <= 0 {
		return 0
	}
	return a.Width * contentRatio
}

// EstimatedPages returns how many pages of the given ratio the element
// would fill when scaled to the page content width.
func (a Analysis) EstimatedPages(contentRatio float64) int {
	ph := a.PageHeightPx(contentRatio)
	if ph <= 0 || a.Height <= 0 {
		return 0
	}
	return int(math.Ceil(a.Height / ph))
}
