package assets

// AssetLoader defines the contract for loading CSS styles and HTML templates.
type AssetLoader interface {
	// LoadStyle loads a CSS style by name (without .css extension).
	// Returns ErrStyleNotFound if the style doesn't exist.
	// Returns ErrInvalidAssetName if the name contains invalid characters.
	LoadStyle(name string) (string, error)

	// LoadTemplate loads an HTML template by name (without .html extension).
	// Returns ErrTemplateNotFound if the template doesn't exist.
	// Returns ErrInvalidAssetName if the name contains invalid characters.
	LoadTemplate(name string) (string, error)
}

// Built-in asset names.
const (
	// StyleViewer styles the rendered preview the exporter captures.
	StyleViewer = "viewer"

	// StylePrint is injected for the print-to-PDF strategy.
	StylePrint = "print"

	// StyleCapture normalizes layout on clones before rasterization.
	StyleCapture = "capture"

	// TemplateDocument wraps rendered Markdown into a standalone page.
	TemplateDocument = "document"
)
