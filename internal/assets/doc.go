// Package assets provides the CSS styles and HTML templates used to render
// Markdown previews and to prepare them for capture.
//
// # Loader Architecture
//
//	AssetLoader (interface)
//	    │
//	    ├── EmbeddedLoader    - loads from go:embed filesystem
//	    ├── FilesystemLoader  - loads from custom directory on disk
//	    └── AssetResolver     - combines both with custom-first fallback
//
// The built-in styles are:
//
//   - viewer:  the preview look, applied when a page is loaded
//   - print:   pagination rules for the print-to-PDF strategy
//   - capture: layout normalization injected into clones before capture
//
// The built-in "document" template wraps rendered Markdown into a page whose
// #preview element is the export root.
//
// # Directory Structure
//
//	{basePath}/
//	├── styles/
//	│   └── {name}.css
//	└── templates/
//	    └── {name}.html
//
// # Security
//
// Asset names are validated to prevent path traversal attacks.
// FilesystemLoader resolves symlinks and verifies paths stay within basePath.
package assets
