package pipeline

import (
	"net/url"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// rewritePaths converts relative img[src] and a[href] values under n to
// absolute file:// URLs rooted at sourceDir. Paths resolving outside
// sourceDir are left untouched.
func rewritePaths(n *html.Node, sourceDir string) {
	walk(n, func(c *html.Node) bool {
		if c.Type != html.ElementNode {
			return true
		}
		switch c.Data {
		case "img":
			rewriteAttr(c, "src", sourceDir)
		case "a":
			rewriteAttr(c, "href", sourceDir)
		}
		return true
	})
}

func rewriteAttr(n *html.Node, key, sourceDir string) {
	for i, a := range n.Attr {
		if a.Key != key || !isRelativePath(a.Val) {
			continue
		}
		abs := filepath.Join(sourceDir, a.Val)
		if !isPathUnderDir(abs, sourceDir) {
			continue
		}
		n.Attr[i].Val = pathToFileURL(abs)
	}
}

// isRelativePath reports whether path is a relative filesystem reference.
func isRelativePath(path string) bool {
	if path == "" || strings.HasPrefix(path, "#") || strings.HasPrefix(path, "//") {
		return false
	}
	for _, scheme := range []string{"http://", "https://", "file://", "data:", "mailto:"} {
		if strings.HasPrefix(path, scheme) {
			return false
		}
	}
	return !filepath.IsAbs(path)
}

// isPathUnderDir checks if absPath is under dir.
func isPathUnderDir(absPath, dir string) bool {
	cleanDir := filepath.Clean(dir)
	if !strings.HasSuffix(cleanDir, string(filepath.Separator)) {
		cleanDir += string(filepath.Separator)
	}
	return strings.HasPrefix(filepath.Clean(absPath)+string(filepath.Separator), cleanDir)
}

// pathToFileURL converts an absolute path to a file:// URL.
func pathToFileURL(absPath string) string {
	u := url.URL{
		Scheme: "file",
		Path:   filepath.ToSlash(absPath),
	}
	return u.String()
}
