package compose

import (
	"bytes"
	"fmt"
)

// ErrorDocument renders a one-page PDF that explains why the export failed.
func ErrorDocument(size PageSize, title, message string) ([]byte, error) {
	if size.Width <= 0 || size.Height <= 0 {
		size = A4
	}
	pdf := newPDF(size, title)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	const margin = 20.0
	width := size.Width - 2*margin

	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(160, 30, 30)
	pdf.SetXY(margin, margin)
	pdf.MultiCell(width, 8, tr(title), "", "L", false)

	pdf.Ln(4)
	pdf.SetX(margin)
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(40, 40, 40)
	pdf.MultiCell(width, 6, tr(message), "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	return buf.Bytes(), nil
}
