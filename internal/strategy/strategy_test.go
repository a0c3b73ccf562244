package strategy

import (
	"errors"
	"slices"
	"testing"

	"github.com/alnah/go-mdexport/internal/analyze"
	"github.com/alnah/go-mdexport/internal/dom"
)

var defaultImageLimits = ImageLimits{MaxCanvas: 16384, MaxMemory: 256 << 20}

const a4Ratio = 297.0 / 210.0

func analysis(width, height float64, images int) analyze.Analysis {
	root := &dom.Node{Box: dom.Rect{Width: width, Height: height}}
	for i := 0; i < images; i++ {
		root.Children = append(root.Children, &dom.Node{Kind: dom.KindImage})
	}
	return analyze.Analyze(root, 2)
}

func TestSelectImage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a    analyze.Analysis
		lim  ImageLimits
		want Name
	}{
		{"scenario A small with one image", analysis(800, 500, 1), defaultImageLimits, Single},
		{"scenario B taller than canvas", analysis(800, 20000, 0), defaultImageLimits, Tiled},
		{"over memory budget", analysis(3000, 7000, 0), defaultImageLimits, Smart},
		{"tall but fits", analysis(800, 6000, 0), defaultImageLimits, Smart},
		{"complex", analysis(800, 1000, 8), defaultImageLimits, Smart},
		{"no limits", analysis(800, 20000, 0), ImageLimits{}, Smart},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SelectImage(tt.a, tt.lim); got != tt.want {
				t.Errorf("SelectImage() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSelectDocument(t *testing.T) {
	t.Parallel()

	lim := DocumentLimits{ContentRatio: a4Ratio, MaxCanvas: 16384}
	tests := []struct {
		name string
		a    analyze.Analysis
		lim  DocumentLimits
		want Name
	}{
		{"short and simple", analysis(800, 2000, 0), lim, Direct},
		{"moderate few images", analysis(800, 6000, 3), lim, CSSPrint},
		{"scenario C very tall", analysis(800, 12000, 0), lim, Chunked},
		{"moderate many images", analysis(800, 7000, 9), lim, Smart},
		{"short but too wide for canvas", analysis(9000, 2000, 0), lim, Chunked},
		{"short but over memory", analysis(800, 2000, 0), DocumentLimits{ContentRatio: a4Ratio, MaxMemory: 1 << 20}, Chunked},
		{"many estimated pages", analysis(2000, 9000, 0), DocumentLimits{ContentRatio: 0.2}, Chunked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SelectDocument(tt.a, tt.lim); got != tt.want {
				t.Errorf("SelectDocument() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFallbacks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		f     Format
		first Name
		want  []Name
	}{
		{PNG, Single, []Name{Single, Tiled}},
		{PNG, Smart, []Name{Smart, Tiled}},
		{PNG, Tiled, []Name{Tiled}},
		{PDF, Direct, []Name{Direct, Chunked}},
		{PDF, CSSPrint, []Name{CSSPrint, Smart, Chunked}},
		{PDF, Smart, []Name{Smart, Chunked}},
		{PDF, Chunked, []Name{Chunked}},
		{PNG, Direct, []Name{Direct}},
	}

	for _, tt := range tests {
		t.Run(string(tt.f)+"/"+string(tt.first), func(t *testing.T) {
			t.Parallel()
			got := Fallbacks(tt.f, tt.first)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Fallbacks() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFallbacks_ReturnsCopy(t *testing.T) {
	t.Parallel()

	got := Fallbacks(PDF, CSSPrint)
	got[1] = Tiled
	if Fallbacks(PDF, CSSPrint)[1] != Smart {
		t.Error("Fallbacks() exposes the shared table")
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	if n, err := Parse(PDF, "CSS-Print"); err != nil || n != CSSPrint {
		t.Errorf("Parse(css-print) = %q, %v", n, err)
	}
	if n, err := Parse(PNG, "auto"); err != nil || n != "" {
		t.Errorf("Parse(auto) = %q, %v", n, err)
	}
	if _, err := Parse(PNG, "chunked"); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("Parse(png, chunked) error = %v, want ErrUnknownStrategy", err)
	}
}
