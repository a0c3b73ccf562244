package fileutil_test

// Notes:
// - WriteFileAtomic error branches for failing writes or renames are not
//   covered: triggering them is platform-specific.

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alnah/go-mdexport/internal/fileutil"
)

// ---------------------------------------------------------------------------
// TestArtifactName
// ---------------------------------------------------------------------------

func TestArtifactName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		extension string
		want      string
		wantErr   error
	}{
		{"markdown basename", "notes.md", "png", "notes.png", nil},
		{"leading dot in extension", "notes.md", ".pdf", "notes.pdf", nil},
		{"directories dropped", "docs/guide/intro.markdown", "pdf", "intro.pdf", nil},
		{"windows separators", `C:\docs\intro.md`, "pdf", "intro.pdf", nil},
		{"empty input uses default", "", "png", "markdown-export.png", nil},
		{"accents folded", "Résumé final.md", "pdf", "Resume-final.pdf", nil},
		{"previous artifact extension replaced", "report.png", "jpg", "report.jpg", nil},
		{"unknown extension kept", "archive.v2", "png", "archive.v2.png", nil},
		{"only symbols uses default", "???.md", "png", "markdown-export.png", nil},
		{"repeated separators collapsed", "a  --  b.md", "png", "a-b.png", nil},
		{"empty extension", "x.md", "", "", fileutil.ErrExtensionEmpty},
		{"extension with separator", "x.md", "p/ng", "", fileutil.ErrExtensionPathTraversal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := fileutil.ArtifactName(tt.input, tt.extension)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ArtifactName() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ArtifactName() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ArtifactName(%q, %q) = %q, want %q", tt.input, tt.extension, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestWriteFileAtomic
// ---------------------------------------------------------------------------

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "out.png")

	if err := fileutil.WriteFileAtomic(path, []byte("first")); err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}
	if err := fileutil.WriteFileAtomic(path, []byte("second")); err != nil {
		t.Fatalf("WriteFileAtomic() overwrite error = %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "second" {
		t.Errorf("content = %q, want %q", got, "second")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only the artifact", len(entries))
	}
}

func TestWriteFileAtomic_MissingDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing", "out.pdf")
	if err := fileutil.WriteFileAtomic(path, []byte("x")); err == nil {
		t.Error("WriteFileAtomic() expected error for a missing directory")
	}
}

// ---------------------------------------------------------------------------
// Predicates
// ---------------------------------------------------------------------------

func TestFileExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "f.md")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !fileutil.FileExists(file) {
		t.Error("FileExists(file) = false, want true")
	}
	if fileutil.FileExists(dir) {
		t.Error("FileExists(dir) = true, want false")
	}
	if fileutil.FileExists(filepath.Join(dir, "none")) {
		t.Error("FileExists(missing) = true, want false")
	}
}

func TestIsFilePathAndIsCSS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		wantPath bool
		wantCSS  bool
	}{
		{"viewer", false, false},
		{"./custom.css", true, false},
		{`C:\styles\a.css`, true, false},
		{"body { color: red }", false, true},
		{"my-style", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			if got := fileutil.IsFilePath(tt.input); got != tt.wantPath {
				t.Errorf("IsFilePath(%q) = %v, want %v", tt.input, got, tt.wantPath)
			}
			if got := fileutil.IsCSS(tt.input); got != tt.wantCSS {
				t.Errorf("IsCSS(%q) = %v, want %v", tt.input, got, tt.wantCSS)
			}
		})
	}
}
