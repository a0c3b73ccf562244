// Package pipeline turns Markdown into the standalone HTML page the exporter
// loads into the browser.
//
// Stages:
//   - Markdown preprocessing (line normalization, ==highlight== syntax)
//   - Markdown to HTML conversion via Goldmark, with ```mermaid and ```dot
//     fences turned into diagram blocks
//   - HTML rewriting: relative paths to file:// URLs, DOT diagrams to inline SVG
//   - Wrapping into the document template, whose #preview element is the
//     export root
package pipeline
