package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// assetKind locates one family of overridable assets under the base path.
type assetKind struct {
	dir      string
	ext      string
	notFound error
}

var (
	styleKind    = assetKind{dir: "styles", ext: ".css", notFound: ErrStyleNotFound}
	templateKind = assetKind{dir: "templates", ext: ".html", notFound: ErrTemplateNotFound}
)

// FilesystemLoader reads styles and templates from a user directory laid out
// as {base}/styles/{name}.css and {base}/templates/{name}.html.
type FilesystemLoader struct {
	root string // absolute, symlinks resolved
}

// NewFilesystemLoader opens base as an asset directory.
// Returns ErrInvalidBasePath unless base is a readable directory.
func NewFilesystemLoader(base string) (*FilesystemLoader, error) {
	if base == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidBasePath)
	}
	root, err := canonical(base)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBasePath, err)
	}

	info, err := os.Stat(root)
	switch {
	case os.IsNotExist(err):
		return nil, fmt.Errorf("%w: directory does not exist: %s", ErrInvalidBasePath, root)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidBasePath, err)
	case !info.IsDir():
		return nil, fmt.Errorf("%w: not a directory: %s", ErrInvalidBasePath, root)
	}
	if _, err := os.ReadDir(root); err != nil {
		return nil, fmt.Errorf("%w: cannot read directory: %v", ErrInvalidBasePath, err)
	}
	return &FilesystemLoader{root: root}, nil
}

// LoadStyle implements AssetLoader.
func (f *FilesystemLoader) LoadStyle(name string) (string, error) {
	return f.read(styleKind, name)
}

// LoadTemplate implements AssetLoader.
func (f *FilesystemLoader) LoadTemplate(name string) (string, error) {
	return f.read(templateKind, name)
}

func (f *FilesystemLoader) read(kind assetKind, name string) (string, error) {
	if err := ValidateAssetName(name); err != nil {
		return "", err
	}
	path, err := f.contain(filepath.Join(f.root, kind.dir, name+kind.ext))
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path) // #nosec G304 -- contained in the asset root
	switch {
	case err == nil:
		return string(data), nil
	case os.IsNotExist(err):
		return "", fmt.Errorf("%w: %q", kind.notFound, name)
	default:
		return "", fmt.Errorf("%w: %v", ErrAssetRead, err)
	}
}

// contain resolves path, following symlinks when it exists, and rejects it
// unless it lies strictly inside the asset root.
func (f *FilesystemLoader) contain(path string) (string, error) {
	resolved, err := canonical(path)
	if err != nil {
		return "", fmt.Errorf("%w: cannot resolve path", ErrPathTraversal)
	}
	rel, err := filepath.Rel(f.root, resolved)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path escapes base directory", ErrPathTraversal)
	}
	return resolved, nil
}

// canonical returns the absolute form of path with symlinks resolved. A path
// that does not exist yet is returned unresolved.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

// Compile-time interface check.
var _ AssetLoader = (*FilesystemLoader)(nil)
