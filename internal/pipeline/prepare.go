package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/alnah/go-mdexport/internal/assets"
)

// ErrTemplateRender indicates the document template failed to execute.
var ErrTemplateRender = errors.New("document template rendering failed")

// DefaultMermaidURL is the script loaded when a page contains mermaid blocks.
const DefaultMermaidURL = "https://cdn.jsdelivr.net/npm/mermaid@10/dist/mermaid.min.js"

// Options configures a single Prepare call.
type Options struct {
	// Title is used when the document has no level-one heading.
	Title string

	// SourceDir resolves relative image and link paths. Empty disables rewriting.
	SourceDir string

	// Style is the viewer style name. Empty selects assets.StyleViewer.
	Style string

	// CSS replaces the named style when set.
	CSS string

	// Lang is the html lang attribute. Empty selects "en".
	Lang string

	// MermaidURL overrides DefaultMermaidURL. Set to "-" to never load mermaid.
	MermaidURL string
}

// Document is a prepared HTML page.
type Document struct {
	HTML     string
	Title    string
	Mermaid  int // mermaid blocks left for in-page rendering
	Diagrams int // dot blocks rendered to SVG
}

// Pipeline converts Markdown into the HTML page loaded by the exporter.
type Pipeline struct {
	Preprocessor MarkdownPreprocessor
	Converter    HTMLConverter
	DOT          DOTRenderer
	Assets       assets.AssetLoader
	Logger       *zap.Logger
}

// New returns a Pipeline with the Goldmark converter, Graphviz and the
// given asset loader. A nil loader selects the embedded assets.
func New(loader assets.AssetLoader, logger *zap.Logger) *Pipeline {
	if loader == nil {
		loader = assets.NewEmbeddedLoader()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		Preprocessor: &CommonMarkPreprocessor{},
		Converter:    NewGoldmarkConverter(),
		DOT:          GraphvizRenderer{},
		Assets:       loader,
		Logger:       logger,
	}
}

type pageData struct {
	Lang       string
	Title      string
	Style      template.CSS
	Body       template.HTML
	MermaidURL string
}

// Prepare renders markdown into a complete HTML page.
func (p *Pipeline) Prepare(ctx context.Context, markdown string, opts Options) (*Document, error) {
	content := p.Preprocessor.PreprocessMarkdown(ctx, markdown)

	fragment, err := p.Converter.ToHTML(ctx, content)
	if err != nil {
		return nil, err
	}

	tree, err := parseFragment(fragment)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHTMLConversion, err)
	}

	if opts.SourceDir != "" {
		dir, err := filepath.Abs(opts.SourceDir)
		if err != nil {
			return nil, err
		}
		rewritePaths(tree, dir)
	}

	rendered, err := renderDiagrams(ctx, tree, p.DOT, p.Logger)
	if err != nil {
		return nil, err
	}

	body, err := renderFragment(tree)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHTMLConversion, err)
	}

	style := opts.CSS
	if style == "" {
		name := opts.Style
		if name == "" {
			name = assets.StyleViewer
		}
		if style, err = p.Assets.LoadStyle(name); err != nil {
			return nil, err
		}
	}
	tplSource, err := p.Assets.LoadTemplate(assets.TemplateDocument)
	if err != nil {
		return nil, err
	}
	tpl, err := template.New(assets.TemplateDocument).Parse(tplSource)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}

	doc := &Document{
		Title:    firstHeading(tree),
		Mermaid:  countClass(tree, ClassMermaid),
		Diagrams: rendered,
	}
	if doc.Title == "" {
		doc.Title = opts.Title
	}
	if doc.Title == "" {
		doc.Title = "Document"
	}

	data := pageData{
		Lang:  opts.Lang,
		Title: doc.Title,
		// #nosec G203 -- style comes from the asset loader, body from goldmark without unsafe HTML
		Style: template.CSS(style),
		Body:  template.HTML(body), // #nosec G203
	}
	if data.Lang == "" {
		data.Lang = "en"
	}
	if doc.Mermaid > 0 && opts.MermaidURL != "-" {
		data.MermaidURL = opts.MermaidURL
		if data.MermaidURL == "" {
			data.MermaidURL = DefaultMermaidURL
		}
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}
	doc.HTML = buf.String()

	p.Logger.Debug("document prepared",
		zap.String("title", doc.Title),
		zap.Int("mermaid", doc.Mermaid),
		zap.Int("diagrams", doc.Diagrams),
		zap.Int("bytes", len(doc.HTML)))

	return doc, nil
}

func firstHeading(tree *html.Node) string {
	var title string
	walk(tree, func(n *html.Node) bool {
		if title != "" {
			return false
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.H1 {
			title = strings.TrimSpace(textContent(n))
			return false
		}
		return true
	})
	return title
}

func countClass(tree *html.Node, class string) int {
	count := 0
	walk(tree, func(n *html.Node) bool {
		if n.Type == html.ElementNode && hasClass(n, class) {
			count++
			return false
		}
		return true
	})
	return count
}
