package dom

import "image"

// Kind classifies an element for content analysis.
type Kind int

// Element kinds recognized by the analyzer.
const (
	KindBlock Kind = iota
	KindImage
	KindDiagram
	KindTable
	KindCode
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindDiagram:
		return "diagram"
	case KindTable:
		return "table"
	case KindCode:
		return "code"
	default:
		return "block"
	}
}

// Rect is an axis-aligned box in CSS pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Bottom returns the Y coordinate of the lower edge.
func (r Rect) Bottom() float64 {
	return r.Y + r.Height
}

// Node is a layout snapshot of one element and its descendants.
// Boxes are relative to the content box of the snapshot root.
type Node struct {
	Ref          string  `json:"ref,omitempty"` // surface handle, empty if not addressable
	Tag          string  `json:"tag"`
	Kind         Kind    `json:"kind"`
	Box          Rect    `json:"box"`
	ScrollWidth  float64 `json:"scrollWidth,omitempty"`
	ScrollHeight float64 `json:"scrollHeight,omitempty"`
	Children     []*Node `json:"children,omitempty"`
}

// Size returns the full content size of the node, preferring scroll
// dimensions over the layout box.
func (n *Node) Size() (width, height float64) {
	if n == nil {
		return 0, 0
	}
	width, height = n.Box.Width, n.Box.Height
	if n.ScrollWidth > width {
		width = n.ScrollWidth
	}
	if n.ScrollHeight > height {
		height = n.ScrollHeight
	}
	return width, height
}

// Walk visits n and its descendants depth-first in document order.
// The root has depth 0. Returning false from fn skips the node's children.
func (n *Node) Walk(fn func(node *Node, depth int) bool) {
	if n == nil {
		return
	}
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int) bool, depth int) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		if c != nil {
			c.walk(fn, depth+1)
		}
	}
}

// Clone returns a deep copy of the subtree.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := *n
	if n.Children != nil {
		cp.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			cp.Children[i] = c.Clone()
		}
	}
	return &cp
}

// Bitmap is a rasterized tile or section.
type Bitmap struct {
	Image image.Image
	Scale float64
}

// Width returns the pixel width, or 0 for an empty bitmap.
func (b *Bitmap) Width() int {
	if b == nil || b.Image == nil {
		return 0
	}
	return b.Image.Bounds().Dx()
}

// Height returns the pixel height, or 0 for an empty bitmap.
func (b *Bitmap) Height() int {
	if b == nil || b.Image == nil {
		return 0
	}
	return b.Image.Bounds().Dy()
}
