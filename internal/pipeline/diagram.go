package pipeline

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Diagram languages recognized on fenced code blocks.
const (
	LangMermaid = "mermaid"
	LangDOT     = "dot"
)

// Class names emitted for diagram blocks.
const (
	ClassMermaid  = "mermaid"
	ClassGraphviz = "graphviz"
)

// KindDiagram is the AST node kind of a diagram fence.
var KindDiagram = ast.NewNodeKind("Diagram")

// DiagramBlock is a fenced code block whose language names a diagram syntax.
type DiagramBlock struct {
	ast.BaseBlock
	Lang   string
	Source []byte
}

// Kind implements ast.Node.
func (n *DiagramBlock) Kind() ast.NodeKind { return KindDiagram }

// IsRaw implements ast.Node.
func (n *DiagramBlock) IsRaw() bool { return true }

// Dump implements ast.Node.
func (n *DiagramBlock) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Lang": n.Lang}, nil)
}

// Diagrams is the goldmark extension replacing ```mermaid and ```dot fences
// with diagram blocks.
var Diagrams goldmark.Extender = diagrams{}

type diagrams struct{}

func (diagrams) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithASTTransformers(
		util.Prioritized(diagramTransformer{}, 100),
	))
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(diagramRenderer{}, 100),
	))
}

type diagramTransformer struct{}

func (diagramTransformer) Transform(doc *ast.Document, reader text.Reader, _ parser.Context) {
	source := reader.Source()

	var fences []*ast.FencedCodeBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fb, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		if isDiagramLang(string(fb.Language(source))) {
			fences = append(fences, fb)
		}
		return ast.WalkSkipChildren, nil
	})

	for _, fb := range fences {
		var buf bytes.Buffer
		lines := fb.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(source))
		}
		block := &DiagramBlock{
			Lang:   strings.ToLower(string(fb.Language(source))),
			Source: buf.Bytes(),
		}
		fb.Parent().ReplaceChild(fb.Parent(), fb, block)
	}
}

func isDiagramLang(lang string) bool {
	switch strings.ToLower(lang) {
	case LangMermaid, LangDOT:
		return true
	}
	return false
}

type diagramRenderer struct{}

func (diagramRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindDiagram, renderDiagram)
}

func renderDiagram(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*DiagramBlock)

	class := ClassMermaid
	if n.Lang == LangDOT {
		class = ClassGraphviz
	}

	// Highlight placeholders inserted by preprocessing are not markup here.
	src := bytes.ReplaceAll(n.Source, []byte(MarkStartPlaceholder), []byte("=="))
	src = bytes.ReplaceAll(src, []byte(MarkEndPlaceholder), []byte("=="))

	_, _ = w.WriteString(`<div class="` + class + `">`)
	_, _ = w.Write(util.EscapeHTML(src))
	_, _ = w.WriteString("</div>\n")
	return ast.WalkSkipChildren, nil
}
