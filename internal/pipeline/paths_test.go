package pipeline

// Notes:
// - rewritePaths is exercised on parsed fragments and checked on the
//   rendered output, the same way Prepare uses it
// - traversal tests check the observable behavior (path not rewritten)

import (
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func rewrite(t *testing.T, fragment, dir string) string {
	t.Helper()
	tree, err := parseFragment(fragment)
	if err != nil {
		t.Fatalf("parseFragment() error = %v", err)
	}
	rewritePaths(tree, dir)
	got, err := renderFragment(tree)
	if err != nil {
		t.Fatalf("renderFragment() error = %v", err)
	}
	return got
}

// ---------------------------------------------------------------------------
// TestRewritePaths
// ---------------------------------------------------------------------------

func TestRewritePaths(t *testing.T) {
	t.Parallel()

	sourceDir := "/docs"
	if runtime.GOOS == "windows" {
		sourceDir = `C:\docs`
	}

	tests := []struct {
		name string
		html string
		want string
	}{
		{"relative image with dot slash", `<img src="./images/logo.png">`, `src="file://`},
		{"relative image without dot slash", `<img src="images/logo.png">`, `src="file://`},
		{"absolute path unchanged", `<img src="/abs/logo.png">`, `src="/abs/logo.png"`},
		{"http URL unchanged", `<img src="https://example.com/logo.png">`, `src="https://example.com/logo.png"`},
		{"data URI unchanged", `<img src="data:image/png;base64,ABC123">`, `src="data:image/png;base64,ABC123"`},
		{"anchor link unchanged", `<a href="#section">Link</a>`, `href="#section"`},
		{"mailto unchanged", `<a href="mailto:a@b.c">Mail</a>`, `href="mailto:a@b.c"`},
		{"relative link rewritten", `<a href="./other.md">Link</a>`, `href="file://`},
		{"protocol-relative URL unchanged", `<img src="//cdn.example.com/logo.png">`, `src="//cdn.example.com/logo.png"`},
		{"video source not rewritten", `<video src="./video.mp4"></video>`, `src="./video.mp4"`},
		{"script src not rewritten", `<script src="./script.js"></script>`, `src="./script.js"`},
		{"nested elements rewritten", `<div><p><img src="./nested.png"></p></div>`, `src="file://`},
		{"empty src unchanged", `<img src="">`, `src=""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := rewrite(t, tt.html, sourceDir)
			if !strings.Contains(got, tt.want) {
				t.Errorf("rewritePaths() = %q, want to contain %q", got, tt.want)
			}
		})
	}
}

func TestRewritePaths_Traversal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	got := rewrite(t, `<img src="../../etc/passwd">`, dir)
	if strings.Contains(got, "file://") {
		t.Errorf("rewritePaths() rewrote a path escaping the source dir: %q", got)
	}
}

func TestIsPathUnderDir(t *testing.T) {
	t.Parallel()

	base := filepath.Join(string(filepath.Separator), "base", "path")
	tests := []struct {
		name string
		path string
		want bool
	}{
		{"direct child", filepath.Join(base, "a.png"), true},
		{"nested child", filepath.Join(base, "x", "a.png"), true},
		{"dir itself", base, true},
		{"sibling with shared prefix", base + "evil" + string(filepath.Separator) + "a.png", false},
		{"parent", filepath.Dir(base), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := isPathUnderDir(tt.path, base); got != tt.want {
				t.Errorf("isPathUnderDir(%q, %q) = %v, want %v", tt.path, base, got, tt.want)
			}
		})
	}
}
