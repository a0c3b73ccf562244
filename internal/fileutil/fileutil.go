// Package fileutil provides file and path utility functions.
package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultBaseName names artifacts exported without a source file name.
const DefaultBaseName = "markdown-export"

// Sentinel errors for file utility operations.
var (
	ErrExtensionEmpty         = errors.New("extension cannot be empty")
	ErrExtensionPathTraversal = errors.New("extension contains path separator or null byte")
)

// sourceExtensions are dropped from input names before the artifact
// extension is appended.
var sourceExtensions = map[string]bool{
	".md": true, ".markdown": true, ".mdown": true, ".txt": true,
	".html": true, ".htm": true,
	".png": true, ".jpg": true, ".jpeg": true, ".pdf": true,
}

// ValidateExtension checks that the extension is safe for use in file names.
func ValidateExtension(extension string) error {
	if extension == "" {
		return ErrExtensionEmpty
	}
	if strings.ContainsAny(extension, "/\\\x00") {
		return ErrExtensionPathTraversal
	}
	return nil
}

// ArtifactName derives a portable file name from an input name and an
// artifact extension such as "png" or ".pdf". Directories and known
// source extensions are dropped, accents are folded, and characters
// outside [A-Za-z0-9._-] become hyphens. An empty result falls back to
// DefaultBaseName.
//
// Examples:
//   - ("notes/Résumé final.md", "pdf") -> "Resume-final.pdf"
//   - ("", "png")                      -> "markdown-export.png"
//   - ("report.png", "jpg")            -> "report.jpg"
func ArtifactName(input, extension string) (string, error) {
	extension = strings.TrimPrefix(extension, ".")
	if err := ValidateExtension(extension); err != nil {
		return "", err
	}

	base := input
	if i := strings.LastIndexAny(base, "/\\"); i >= 0 {
		base = base[i+1:]
	}
	if ext := filepath.Ext(base); sourceExtensions[strings.ToLower(ext)] {
		base = strings.TrimSuffix(base, ext)
	}

	base = sanitize(base)
	if base == "" {
		base = DefaultBaseName
	}
	return base + "." + extension, nil
}

// sanitize folds accents and replaces unsafe characters with hyphens.
func sanitize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	lastHyphen := false
	for _, r := range folded {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_'):
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.Trim(b.String(), "-.")
}

// WriteFileAtomic writes data to a temporary file next to path and renames
// it into place, so readers never observe a partial artifact.
func WriteFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".mdexport-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err = os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// FileExists returns true if the path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// IsFilePath returns true if the string looks like a file path rather than a name.
// A string containing path separators (/, \) is treated as a path.
func IsFilePath(s string) bool {
	return strings.ContainsAny(s, "/\\")
}

// IsCSS returns true if the string looks like CSS content rather than a
// name or a path.
func IsCSS(s string) bool {
	return strings.Contains(s, "{")
}
