// Package domtest provides an in-memory dom.Surface for tests.
//
// The fake paints each capture with a solid colour chosen by the Fill hook,
// records every call and can be told to fail, block or trigger side effects
// on specific captures.
package domtest

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"

	"github.com/alnah/go-mdexport/internal/dom"
)

// ErrCaptureFailed is returned by captures configured to fail.
var ErrCaptureFailed = errors.New("fake capture failed")

// ErrUnknownRef is returned for refs the fake does not know.
var ErrUnknownRef = errors.New("unknown ref")

// Clone is a live copy created through Surface.Clone.
type Clone struct {
	Source string
	Spec   dom.CloneSpec
}

// Surface is a fake dom.Surface backed by a fixed layout tree.
type Surface struct {
	// Fill picks the colour painted for a capture. Defaults to light gray.
	Fill func(ref string, clone *Clone) color.Color
	// Fail reports whether the n-th capture (1-based) of ref should fail.
	Fail func(ref string, clone *Clone, n int) bool
	// OnCapture runs before every capture with the global capture count.
	OnCapture func(n int)
	// Block makes captures wait for ctx to be done.
	Block bool
	// PrintErr is returned by Print when set.
	PrintErr error
	// CloneErr is returned by Clone when set.
	CloneErr error

	mu       sync.Mutex
	roots    map[string]*dom.Node
	clones   map[string]*Clone
	nextID   int
	captures int
	perRef   map[string]int
	removed  int
	prints   int
	specs    []dom.CloneSpec
}

// New returns a fake surface serving the given trees by their Ref.
func New(roots ...*dom.Node) *Surface {
	s := &Surface{
		roots:  make(map[string]*dom.Node),
		clones: make(map[string]*Clone),
		perRef: make(map[string]int),
	}
	for _, r := range roots {
		s.roots[r.Ref] = r
	}
	return s
}

// Document builds a root node of the given size whose children are stacked
// blocks with the given heights. Children get refs "<ref>/<index>".
func Document(ref string, width float64, heights ...float64) *dom.Node {
	root := &dom.Node{Ref: ref, Tag: "div", Kind: dom.KindBlock}
	var y float64
	for i, h := range heights {
		root.Children = append(root.Children, &dom.Node{
			Ref:  fmt.Sprintf("%s/%d", ref, i),
			Tag:  "p",
			Kind: dom.KindBlock,
			Box:  dom.Rect{Y: y, Width: width, Height: h},
		})
		y += h
	}
	root.Box = dom.Rect{Width: width, Height: y}
	return root
}

// Snapshot implements dom.Surface.
func (s *Surface) Snapshot(ctx context.Context, ref string) (*dom.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.find(ref); n != nil {
		return n.Clone(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownRef, ref)
}

// Clone implements dom.Surface.
func (s *Surface) Clone(ctx context.Context, ref string, spec dom.CloneSpec) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.CloneErr != nil {
		return "", s.CloneErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.find(ref) == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownRef, ref)
	}
	s.nextID++
	id := fmt.Sprintf("clone-%d", s.nextID)
	s.clones[id] = &Clone{Source: ref, Spec: spec}
	s.specs = append(s.specs, spec)
	return id, nil
}

// Capture implements dom.Surface.
func (s *Surface) Capture(ctx context.Context, ref string, opts dom.CaptureOptions) (image.Image, error) {
	s.mu.Lock()
	s.captures++
	s.perRef[ref]++
	n, nth := s.captures, s.perRef[ref]
	clone := s.clones[ref]
	s.mu.Unlock()

	if s.OnCapture != nil {
		s.OnCapture(n)
	}
	if s.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Fail != nil && s.Fail(ref, clone, nth) {
		return nil, fmt.Errorf("%w: %s", ErrCaptureFailed, ref)
	}

	w, h, err := s.size(ref, clone)
	if err != nil {
		return nil, err
	}
	if opts.Width > 0 {
		w = opts.Width
	}
	if opts.Height > 0 {
		h = opts.Height
	}
	scale := opts.Scale
	if scale <= 0 {
		scale = 1
	}
	pw := int(math.Ceil(w * scale))
	ph := int(math.Ceil(h * scale))
	if pw <= 0 || ph <= 0 {
		return nil, fmt.Errorf("%w: empty element %s", ErrCaptureFailed, ref)
	}

	var fill color.Color = color.Gray{Y: 0xcc}
	if s.Fill != nil {
		fill = s.Fill(ref, clone)
	}
	img := image.NewRGBA(image.Rect(0, 0, pw, ph))
	draw.Draw(img, img.Bounds(), image.NewUniform(fill), image.Point{}, draw.Src)
	return img, nil
}

// Remove implements dom.Surface.
func (s *Surface) Remove(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clones[ref]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRef, ref)
	}
	delete(s.clones, ref)
	s.removed++
	return nil
}

// Print implements dom.Printer.
func (s *Surface) Print(ctx context.Context, ref string, _ dom.PrintOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.PrintErr != nil {
		return nil, s.PrintErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.find(ref) == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRef, ref)
	}
	s.prints++
	return []byte("%PDF-1.4\n% fake print of " + ref + "\n%%EOF\n"), nil
}

// Live returns the number of clones not yet removed.
func (s *Surface) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clones)
}

// Captures returns the total number of capture calls.
func (s *Surface) Captures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captures
}

// Prints returns the number of successful Print calls.
func (s *Surface) Prints() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prints
}

// Specs returns the specs of every clone created so far, in order.
func (s *Surface) Specs() []dom.CloneSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]dom.CloneSpec(nil), s.specs...)
}

// find locates a node by ref across all roots. Caller holds mu.
func (s *Surface) find(ref string) *dom.Node {
	if c, ok := s.clones[ref]; ok {
		return s.find(c.Source)
	}
	for _, r := range s.roots {
		var found *dom.Node
		r.Walk(func(n *dom.Node, _ int) bool {
			if found != nil {
				return false
			}
			if n.Ref == ref {
				found = n
				return false
			}
			return true
		})
		if found != nil {
			return found
		}
	}
	return nil
}

// size returns the CSS size of ref, honouring the clone container spec.
func (s *Surface) size(ref string, clone *Clone) (float64, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if clone == nil {
		n := s.find(ref)
		if n == nil {
			return 0, 0, fmt.Errorf("%w: %s", ErrUnknownRef, ref)
		}
		w, h := n.Size()
		return w, h, nil
	}
	src := s.find(clone.Source)
	if src == nil {
		return 0, 0, fmt.Errorf("%w: %s", ErrUnknownRef, clone.Source)
	}
	w, h := src.Size()
	if clone.Spec.Width > 0 {
		w = clone.Spec.Width
	}
	switch {
	case clone.Spec.Height > 0:
		h = clone.Spec.Height
	case clone.Spec.Children != nil:
		h = 0
		for _, c := range clone.Spec.Children {
			if n := s.find(c); n != nil {
				_, ch := n.Size()
				h += ch
			}
		}
	default:
		h -= clone.Spec.OffsetY
	}
	return w, h, nil
}
