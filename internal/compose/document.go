// Package compose lays rasterized sections out on PDF pages.
//
// A Document is an in-memory page model that is serialized with gofpdf
// exactly once. The Composer places bitmaps onto it, scaling them to the
// content width, breaking pages and enforcing a page cap.
package compose

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // DecodeConfig for placed images
	_ "image/png"  // DecodeConfig for placed images

	"github.com/jung-kurt/gofpdf"

	"github.com/alnah/go-mdexport/internal/encode"
)

// Sentinel errors.
var (
	ErrInvalidPageSize    = errors.New("invalid page size")
	ErrInvalidOrientation = errors.New("invalid orientation")
	ErrInvalidMargins     = errors.New("margins leave no content area")
	ErrInvalidImage       = errors.New("invalid image data")
	ErrNoSuchPage         = errors.New("no such page")
	ErrFinalized          = errors.New("document already finalized")
	ErrRender             = errors.New("PDF serialization failed")
)

// Rect is a box in millimetres.
type Rect struct {
	X, Y, Width, Height float64
}

// Placement is an image drawn on a page.
type Placement struct {
	Image string // key into Document images
	Rect  Rect
	Clip  *Rect // optional clipping box
}

// Note is a block of text drawn on a page, optionally on a tinted box.
type Note struct {
	Rect  Rect
	Text  string
	Boxed bool
}

// Page holds the placements and notes of one page, in drawing order.
type Page struct {
	Images []Placement
	Notes  []Note
}

type imageData struct {
	data   []byte
	format string // gofpdf image type
}

// Document is a PDF under construction.
type Document struct {
	Size    PageSize
	Margins Margins
	Title   string

	pages     []*Page
	images    map[string]imageData
	finalized bool
}

// NewDocument creates an empty document.
func NewDocument(size PageSize, m Margins) (*Document, error) {
	if size.Width <= 0 || size.Height <= 0 {
		return nil, fmt.Errorf("%w: %vx%v mm", ErrInvalidPageSize, size.Width, size.Height)
	}
	if _, _, w, h := ContentBox(size, m); w <= 0 || h <= 0 || m.Top < 0 || m.Left < 0 || m.Right < 0 || m.Bottom < 0 {
		return nil, fmt.Errorf("%w: %+v on %s", ErrInvalidMargins, m, size.Name)
	}
	return &Document{Size: size, Margins: m, images: make(map[string]imageData)}, nil
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	return len(d.pages)
}

// Page returns page i (0-based).
func (d *Document) Page(i int) (*Page, error) {
	if i < 0 || i >= len(d.pages) {
		return nil, fmt.Errorf("%w: %d of %d", ErrNoSuchPage, i, len(d.pages))
	}
	return d.pages[i], nil
}

// AddPage appends an empty page and returns its index.
func (d *Document) AddPage() int {
	d.pages = append(d.pages, &Page{})
	return len(d.pages) - 1
}

// DeletePage removes page i.
func (d *Document) DeletePage(i int) error {
	if i < 0 || i >= len(d.pages) {
		return fmt.Errorf("%w: %d of %d", ErrNoSuchPage, i, len(d.pages))
	}
	d.pages = append(d.pages[:i], d.pages[i+1:]...)
	return nil
}

// AddImage registers enc under name. The data is checked eagerly so a
// broken encoding fails here rather than at serialization.
func (d *Document) AddImage(name string, enc *encode.Encoded) error {
	if enc == nil || len(enc.Data) == 0 {
		return fmt.Errorf("%w: %s is empty", ErrInvalidImage, name)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(enc.Data))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidImage, name, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: %s has no pixels", ErrInvalidImage, name)
	}
	format := "PNG"
	if enc.Format == encode.FormatJPEG {
		format = "JPG"
	}
	d.images[name] = imageData{data: enc.Data, format: format}
	return nil
}

// Place draws a registered image on page i.
func (d *Document) Place(i int, p Placement) error {
	page, err := d.Page(i)
	if err != nil {
		return err
	}
	if _, ok := d.images[p.Image]; !ok {
		return fmt.Errorf("%w: %s not registered", ErrInvalidImage, p.Image)
	}
	page.Images = append(page.Images, p)
	return nil
}

// AddNote writes text on page i.
func (d *Document) AddNote(i int, n Note) error {
	page, err := d.Page(i)
	if err != nil {
		return err
	}
	page.Notes = append(page.Notes, n)
	return nil
}

// Bytes serializes the document. It can be called once.
func (d *Document) Bytes() ([]byte, error) {
	if d.finalized {
		return nil, ErrFinalized
	}
	d.finalized = true

	pdf := newPDF(d.Size, d.Title)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if len(d.pages) == 0 {
		pdf.AddPage()
	}
	for _, page := range d.pages {
		pdf.AddPage()
		for _, p := range page.Images {
			img := d.images[p.Image]
			opts := gofpdf.ImageOptions{ImageType: img.format, AllowNegativePosition: true}
			pdf.RegisterImageOptionsReader(p.Image, opts, bytes.NewReader(img.data))
			if p.Clip != nil {
				pdf.ClipRect(p.Clip.X, p.Clip.Y, p.Clip.Width, p.Clip.Height, false)
			}
			pdf.ImageOptions(p.Image, p.Rect.X, p.Rect.Y, p.Rect.Width, p.Rect.Height, false, opts, 0, "")
			if p.Clip != nil {
				pdf.ClipEnd()
			}
		}
		for _, n := range page.Notes {
			drawNote(pdf, n, tr)
		}
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRender, err)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	return buf.Bytes(), nil
}

func newPDF(size PageSize, title string) *gofpdf.Fpdf {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: size.Width, Ht: size.Height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("go-mdexport", false)
	if title != "" {
		pdf.SetTitle(title, true)
	}
	return pdf
}

const (
	noteFont     = "Helvetica"
	noteFontSize = 10
	noteLine     = 5
	notePadding  = 2
)

func drawNote(pdf *gofpdf.Fpdf, n Note, tr func(string) string) {
	if n.Boxed {
		pdf.SetFillColor(245, 245, 245)
		pdf.SetDrawColor(200, 200, 200)
		pdf.Rect(n.Rect.X, n.Rect.Y, n.Rect.Width, n.Rect.Height, "FD")
	}
	pdf.SetFont(noteFont, "I", noteFontSize)
	pdf.SetTextColor(90, 90, 90)
	pdf.SetXY(n.Rect.X+notePadding, n.Rect.Y+notePadding)
	pdf.MultiCell(n.Rect.Width-2*notePadding, noteLine, tr(n.Text), "", "L", false)
}
