package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-graphviz"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrDiagramRender indicates a DOT diagram could not be rendered.
var ErrDiagramRender = errors.New("diagram rendering failed")

// DOTRenderer renders a DOT graph description to SVG.
type DOTRenderer interface {
	RenderDOT(ctx context.Context, src []byte) ([]byte, error)
}

// GraphvizRenderer renders DOT with the WebAssembly build of Graphviz.
type GraphvizRenderer struct{}

// RenderDOT implements DOTRenderer.
func (GraphvizRenderer) RenderDOT(ctx context.Context, src []byte) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: init graphviz: %v", ErrDiagramRender, err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes(src)
	if err != nil {
		return nil, fmt.Errorf("%w: parse DOT: %v", ErrDiagramRender, err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDiagramRender, err)
	}
	return buf.Bytes(), nil
}

// renderDiagrams replaces the text of every div.graphviz under doc with the
// rendered SVG. A diagram that fails to render keeps its source text.
// Returns the number of diagrams rendered.
func renderDiagrams(ctx context.Context, doc *html.Node, r DOTRenderer, logger *zap.Logger) (int, error) {
	var blocks []*html.Node
	walk(doc, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.Div && hasClass(n, ClassGraphviz) {
			blocks = append(blocks, n)
			return false
		}
		return true
	})

	rendered := 0
	for i, n := range blocks {
		if err := ctx.Err(); err != nil {
			return rendered, err
		}

		svg, err := r.RenderDOT(ctx, []byte(textContent(n)))
		if err != nil {
			logger.Warn("dot diagram left as source", zap.Int("diagram", i), zap.Error(err))
			continue
		}

		nodes, err := parseSVG(svg, n)
		if err != nil {
			logger.Warn("dot diagram produced unparsable svg", zap.Int("diagram", i), zap.Error(err))
			continue
		}

		for c := n.FirstChild; c != nil; c = n.FirstChild {
			n.RemoveChild(c)
		}
		for _, c := range nodes {
			n.AppendChild(c)
		}
		rendered++
	}
	return rendered, nil
}

// parseSVG parses Graphviz SVG output as children of parent, dropping the
// XML prolog and doctype that precede the svg element.
func parseSVG(svg []byte, parent *html.Node) ([]*html.Node, error) {
	if i := bytes.Index(svg, []byte("<svg")); i > 0 {
		svg = svg[i:]
	}
	nodes, err := html.ParseFragment(bytes.NewReader(svg), parent)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: empty svg", ErrDiagramRender)
	}
	return nodes, nil
}
