package mdexport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alnah/go-mdexport/internal/fileutil"
)

// ArtifactWriter persists an exported artifact and returns where it went.
type ArtifactWriter interface {
	WriteArtifact(ctx context.Context, name string, data []byte) (string, error)
}

// DirWriter writes artifacts into Dir, creating it when missing. An empty
// Dir writes into the working directory.
type DirWriter struct {
	Dir string
}

// WriteArtifact implements ArtifactWriter. The file appears atomically.
func (w *DirWriter) WriteArtifact(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir := w.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := fileutil.WriteFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// Compile-time interface check.
var _ ArtifactWriter = (*DirWriter)(nil)

// artifactName derives the artifact file name for an export.
func artifactName(filename, ext string) (string, error) {
	return fileutil.ArtifactName(filename, ext)
}
