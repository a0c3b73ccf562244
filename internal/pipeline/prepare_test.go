package pipeline

// Notes:
// - DOT rendering is faked except for one test against real Graphviz
// - assertions check markup fragments, not full documents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
)

type fakeDOT struct {
	svg   string
	err   error
	calls int
}

func (f *fakeDOT) RenderDOT(_ context.Context, _ []byte) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.svg), nil
}

func newTestPipeline(dot DOTRenderer) *Pipeline {
	p := New(nil, zap.NewNop())
	p.DOT = dot
	return p
}

// ---------------------------------------------------------------------------
// TestPrepare
// ---------------------------------------------------------------------------

func TestPrepare(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		markdown     string
		opts         Options
		wantContains []string
		wantExcludes []string
		wantTitle    string
		wantMermaid  int
	}{
		{
			name:         "heading becomes title",
			markdown:     "# Release Notes\n\nBody text.",
			wantContains: []string{`id="preview"`, "<title>Release Notes</title>", "Body text."},
			wantTitle:    "Release Notes",
		},
		{
			name:      "fallback title",
			markdown:  "just a paragraph",
			opts:      Options{Title: "notes"},
			wantTitle: "notes",
		},
		{
			name:         "mermaid fence kept for in-page rendering",
			markdown:     "```mermaid\ngraph TD\n  A-->B\n```\n",
			wantContains: []string{`<div class="mermaid">`, DefaultMermaidURL},
			wantExcludes: []string{"<pre"},
			wantTitle:    "Document",
			wantMermaid:  1,
		},
		{
			name:         "mermaid script disabled",
			markdown:     "```mermaid\ngraph TD\n```\n",
			opts:         Options{MermaidURL: "-"},
			wantContains: []string{`<div class="mermaid">`},
			wantExcludes: []string{"<script"},
			wantTitle:    "Document",
			wantMermaid:  1,
		},
		{
			name:         "highlight syntax",
			markdown:     "some ==marked== text",
			wantContains: []string{"<mark>marked</mark>"},
			wantTitle:    "Document",
		},
		{
			name:         "code fence highlighted",
			markdown:     "```go\nfunc main() {}\n```\n",
			wantContains: []string{`class="chroma"`},
			wantTitle:    "Document",
		},
		{
			name:         "table rendered",
			markdown:     "| a | b |\n|---|---|\n| 1 | 2 |\n",
			wantContains: []string{"<table>", "<td>1</td>"},
			wantTitle:    "Document",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			doc, err := newTestPipeline(&fakeDOT{}).Prepare(context.Background(), tt.markdown, tt.opts)
			if err != nil {
				t.Fatalf("Prepare() error = %v", err)
			}
			for _, want := range tt.wantContains {
				if !strings.Contains(doc.HTML, want) {
					t.Errorf("Prepare() HTML missing %q", want)
				}
			}
			for _, exclude := range tt.wantExcludes {
				if strings.Contains(doc.HTML, exclude) {
					t.Errorf("Prepare() HTML should not contain %q", exclude)
				}
			}
			if doc.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", doc.Title, tt.wantTitle)
			}
			if doc.Mermaid != tt.wantMermaid {
				t.Errorf("Mermaid = %d, want %d", doc.Mermaid, tt.wantMermaid)
			}
		})
	}
}

func TestPrepare_DOTRendered(t *testing.T) {
	t.Parallel()

	dot := &fakeDOT{svg: `<?xml version="1.0"?><!DOCTYPE svg><svg width="10" height="10"><g id="graph0"></g></svg>`}
	doc, err := newTestPipeline(dot).Prepare(context.Background(), "```dot\ndigraph { a -> b }\n```\n", Options{})
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if dot.calls != 1 {
		t.Errorf("RenderDOT calls = %d, want 1", dot.calls)
	}
	if doc.Diagrams != 1 {
		t.Errorf("Diagrams = %d, want 1", doc.Diagrams)
	}
	if !strings.Contains(doc.HTML, `<svg width="10"`) {
		t.Error("HTML should contain the rendered svg")
	}
	if strings.Contains(doc.HTML, "<?xml") || strings.Contains(doc.HTML, "digraph") {
		t.Error("HTML should not contain the prolog or the DOT source")
	}
}

func TestPrepare_DOTFailureKeepsSource(t *testing.T) {
	t.Parallel()

	dot := &fakeDOT{err: ErrDiagramRender}
	doc, err := newTestPipeline(dot).Prepare(context.Background(), "```dot\nnot a graph\n```\n", Options{})
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if doc.Diagrams != 0 {
		t.Errorf("Diagrams = %d, want 0", doc.Diagrams)
	}
	if !strings.Contains(doc.HTML, "not a graph") {
		t.Error("failed diagram should keep its source text")
	}
}

func TestPrepare_RelativeImages(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	doc, err := newTestPipeline(&fakeDOT{}).Prepare(context.Background(), "![logo](img/logo.png)", Options{SourceDir: dir})
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if !strings.Contains(doc.HTML, `src="file://`) {
		t.Error("relative image should be rewritten to a file URL")
	}
}

func TestPrepare_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestPipeline(&fakeDOT{}).Prepare(ctx, "# x", Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Prepare() error = %v, want context.Canceled", err)
	}
}

func TestPrepare_UnknownStyle(t *testing.T) {
	t.Parallel()

	_, err := newTestPipeline(&fakeDOT{}).Prepare(context.Background(), "# x", Options{Style: "missing"})
	if err == nil {
		t.Fatal("Prepare() expected error for unknown style")
	}
}

func TestGraphvizRenderer(t *testing.T) {
	t.Parallel()

	svg, err := GraphvizRenderer{}.RenderDOT(context.Background(), []byte("digraph { a -> b }"))
	if err != nil {
		t.Fatalf("RenderDOT() error = %v", err)
	}
	if !strings.Contains(string(svg), "<svg") {
		t.Errorf("RenderDOT() output is not svg: %.80s", svg)
	}
}

func TestPreprocessMarkdown(t *testing.T) {
	t.Parallel()

	p := &CommonMarkPreprocessor{}
	got := p.PreprocessMarkdown(context.Background(), "\uFEFFa\r\nb\r\n\r\n\r\n\r\nc ==x==")
	want := "a\nb\n\nc " + MarkStartPlaceholder + "x" + MarkEndPlaceholder
	if got != want {
		t.Errorf("PreprocessMarkdown() = %q, want %q", got, want)
	}
}
