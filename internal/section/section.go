// Package section splits a document into renderable units: one per direct
// child, or page-sized groups of consecutive children.
package section

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/alnah/go-mdexport/internal/dom"
	"github.com/alnah/go-mdexport/internal/raster"
)

// OversizeRatio is the share of a page above which a child gets its own group.
const OversizeRatio = 0.9

// Group is a run of consecutive children packed into one page.
type Group struct {
	Children  []*dom.Node
	Height    float64
	Oversized bool // single child taller than OversizeRatio of a page
}

// PackByPage packs children greedily into groups whose cumulative height
// does not exceed pageHeight. A child taller than OversizeRatio*pageHeight
// always gets a group of its own. Order is preserved.
func PackByPage(children []*dom.Node, pageHeight float64) []Group {
	var (
		groups []Group
		cur    Group
	)
	flush := func() {
		if len(cur.Children) > 0 {
			groups = append(groups, cur)
		}
		cur = Group{}
	}

	for _, c := range children {
		if c == nil {
			continue
		}
		_, h := c.Size()
		if pageHeight > 0 && h > OversizeRatio*pageHeight {
			flush()
			groups = append(groups, Group{Children: []*dom.Node{c}, Height: h, Oversized: true})
			continue
		}
		if len(cur.Children) > 0 && cur.Height+h > pageHeight {
			flush()
		}
		cur.Children = append(cur.Children, c)
		cur.Height += h
	}
	flush()
	return groups
}

// Section is one renderable unit backed by an off-screen clone.
type Section struct {
	Index     int
	Children  []string // source child refs, in document order
	Height    float64  // CSS px
	Oversized bool
	Ref       string // clone ref, empty when Err is set
	Err       error  // clone failure, rendered as a placeholder

	scope *dom.Scope
}

// Release removes the section's clone. It is safe to call more than once.
func (s *Section) Release(ctx context.Context) error {
	if s == nil || s.Ref == "" || s.scope == nil {
		return nil
	}
	ref := s.Ref
	s.Ref = ""
	return s.scope.Remove(ctx, ref)
}

// ReleaseAll releases every section, returning the first error.
func ReleaseAll(ctx context.Context, sections []*Section) error {
	var first error
	for _, s := range sections {
		if err := s.Release(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Options configures section cloning.
type Options struct {
	Width      float64 // container width, 0 = root content width
	Background string
	Abort      raster.Abort
}

// Sectioner clones sections through a Scope.
type Sectioner struct {
	Logger *zap.Logger
}

// ByChild creates one section per direct child of root.
// A root without children yields no sections and no error.
func (s *Sectioner) ByChild(ctx context.Context, scope *dom.Scope, root *dom.Node, opts Options) ([]*Section, error) {
	groups := make([]Group, 0, len(root.Children))
	for _, c := range root.Children {
		if c == nil {
			continue
		}
		_, h := c.Size()
		groups = append(groups, Group{Children: []*dom.Node{c}, Height: h})
	}
	return s.materialize(ctx, scope, root, groups, opts)
}

// ByPage packs the children of root into page-height groups and creates one
// section per group.
func (s *Sectioner) ByPage(ctx context.Context, scope *dom.Scope, root *dom.Node, pageHeight float64, opts Options) ([]*Section, error) {
	return s.materialize(ctx, scope, root, PackByPage(root.Children, pageHeight), opts)
}

func (s *Sectioner) materialize(ctx context.Context, scope *dom.Scope, root *dom.Node, groups []Group, opts Options) ([]*Section, error) {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	width := opts.Width
	if width <= 0 {
		width, _ = root.Size()
	}

	sections := make([]*Section, 0, len(groups))
	for i, g := range groups {
		if raster.Aborted(opts.Abort) {
			return sections, raster.ErrCancelled
		}
		if err := ctx.Err(); err != nil {
			return sections, fmt.Errorf("%w: %v", raster.ErrCancelled, err)
		}

		sec := &Section{Index: len(sections), Height: g.Height, Oversized: g.Oversized, scope: scope}
		for _, c := range g.Children {
			if c.Ref == "" {
				continue
			}
			sec.Children = append(sec.Children, c.Ref)
		}
		if len(sec.Children) == 0 {
			continue
		}

		ref, err := scope.Clone(ctx, root.Ref, dom.CloneSpec{
			Width:      width,
			Children:   sec.Children,
			Background: opts.Background,
			WaitAssets: true,
		})
		if err != nil {
			logger.Warn("section clone failed", zap.Int("section", i), zap.Error(err))
			sec.Err = err
		} else {
			sec.Ref = ref
		}
		sections = append(sections, sec)
	}
	return sections, nil
}
