package compose

import (
	"errors"
	"fmt"
	"image"
	"math"

	"go.uber.org/zap"

	"github.com/alnah/go-mdexport/internal/encode"
)

// DefaultMaxPages bounds pagination for every strategy.
const DefaultMaxPages = 20

// ErrPageLimit is returned by Place once the page cap has been reached.
var ErrPageLimit = errors.New("page limit reached")

const (
	placeholderHeight = 14 // mm
	truncationHeight  = 12 // mm
	minNoteMargin     = 8  // mm from page edge when margins are zero
)

// Composer places bitmaps top to bottom onto a Document.
type Composer struct {
	Doc      *Document
	Chain    encode.Chain // tried in order for every image
	MaxPages int
	Logger   *zap.Logger

	cursor     float64 // mm below the content top on the current page
	hasContent bool
	seq        int
	omitted    int
	truncated  bool
	placed     int
	failed     int
}

// NewComposer returns a Composer writing JPEG at the given quality, with a
// single reduced-quality retry.
func NewComposer(doc *Document, quality float64, maxPages int, logger *zap.Logger) *Composer {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{Doc: doc, Chain: encode.DocumentChain(quality), MaxPages: maxPages, Logger: logger}
}

// Stats reports what was placed.
type Stats struct {
	Pages     int
	Placed    int
	Failed    int // sections replaced by a placeholder
	Omitted   int // sections dropped by the page cap
	Truncated bool
}

// Stats returns the current counters.
func (c *Composer) Stats() Stats {
	return Stats{
		Pages:     c.Doc.PageCount(),
		Placed:    c.placed,
		Failed:    c.failed,
		Omitted:   c.omitted,
		Truncated: c.truncated,
	}
}

// Place scales img to the content width and adds it below the previous
// content. An image that does not fit on a page with content starts a new
// page; an image taller than a page continues across pages, clipped to
// each content box. Place returns ErrPageLimit when the page cap stops it.
// Encoding failures fall through the chain, then become a placeholder.
func (c *Composer) Place(img image.Image, label string) error {
	if c.truncated {
		c.omitted++
		return ErrPageLimit
	}
	if img == nil || img.Bounds().Empty() {
		return c.Placeholder(fmt.Sprintf("%s could not be rendered (empty image).", label))
	}

	name, err := c.register(img, label)
	if err != nil {
		c.Logger.Warn("image dropped from document", zap.String("section", label), zap.Error(err))
		return c.Placeholder(fmt.Sprintf("%s could not be rendered.", label))
	}

	cx, cy, cw, ch := ContentBox(c.Doc.Size, c.Doc.Margins)
	b := img.Bounds()
	ratio := cw / float64(b.Dx())
	h := float64(b.Dy()) * ratio

	if c.Doc.PageCount() == 0 {
		if err := c.newPage(); err != nil {
			return err
		}
	}
	if h > ch-c.cursor && c.hasContent {
		if err := c.newPage(); err != nil {
			return err
		}
	}

	if h <= ch-c.cursor+1e-6 {
		if err := c.Doc.Place(c.Doc.PageCount()-1, Placement{
			Image: name,
			Rect:  Rect{X: cx, Y: cy + c.cursor, Width: cw, Height: h},
		}); err != nil {
			return err
		}
		c.cursor += h
		c.hasContent = true
		c.placed++
		return nil
	}

	// Taller than a page: draw the whole image on each page, shifted up by
	// the height already shown and clipped to the content box.
	clip := &Rect{X: cx, Y: cy, Width: cw, Height: ch}
	shown := 0.0
	for {
		if err := c.Doc.Place(c.Doc.PageCount()-1, Placement{
			Image: name,
			Rect:  Rect{X: cx, Y: cy + c.cursor - shown, Width: cw, Height: h},
			Clip:  clip,
		}); err != nil {
			return err
		}
		visible := ch - c.cursor
		c.hasContent = true
		if shown+visible >= h-1e-6 {
			c.cursor += h - shown
			break
		}
		shown += visible
		if err := c.newPage(); err != nil {
			return err
		}
	}
	c.placed++
	return nil
}

// Placeholder adds a visible note in place of a section that failed.
func (c *Composer) Placeholder(text string) error {
	if c.truncated {
		c.omitted++
		return ErrPageLimit
	}
	_, ch := c.contentSize()
	if c.Doc.PageCount() == 0 || (c.hasContent && c.cursor+placeholderHeight > ch) {
		if err := c.newPage(); err != nil {
			return err
		}
	}
	cx, cy, cw, _ := ContentBox(c.Doc.Size, c.Doc.Margins)
	if err := c.Doc.AddNote(c.Doc.PageCount()-1, Note{
		Rect:  Rect{X: cx, Y: cy + c.cursor, Width: cw, Height: placeholderHeight},
		Text:  text,
		Boxed: true,
	}); err != nil {
		return err
	}
	c.cursor += placeholderHeight
	c.hasContent = true
	c.failed++
	return nil
}

// Finish adds the truncation note when content was omitted and serializes
// the document.
func (c *Composer) Finish() ([]byte, error) {
	if c.truncated && c.Doc.PageCount() > 0 {
		c.addTruncationNote()
	}
	return c.Doc.Bytes()
}

// Break ends the current page: the next placement starts on a new one.
func (c *Composer) Break() {
	if c.hasContent {
		_, ch := c.contentSize()
		c.cursor = ch
	}
}

// Omit records sections the caller skipped after ErrPageLimit.
func (c *Composer) Omit(n int) {
	if n > 0 {
		c.truncated = true
		c.omitted += n
	}
}

func (c *Composer) register(img image.Image, label string) (string, error) {
	var errs []error
	for _, p := range c.Chain.Policies {
		enc, err := encode.Encode(img, p)
		if err == nil {
			c.seq++
			name := fmt.Sprintf("img%d", c.seq)
			if err = c.Doc.AddImage(name, enc); err == nil {
				return name, nil
			}
		}
		c.Logger.Debug("image encoding step failed",
			zap.String("section", label),
			zap.Stringer("policy", p),
			zap.Error(err))
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("%w: no encoding policy", encode.ErrEncodingFailed)
	}
	return "", errors.Join(errs...)
}

func (c *Composer) newPage() error {
	if c.Doc.PageCount() >= c.MaxPages {
		c.truncated = true
		c.omitted++
		return ErrPageLimit
	}
	c.Doc.AddPage()
	c.cursor = 0
	c.hasContent = false
	return nil
}

func (c *Composer) contentSize() (float64, float64) {
	_, _, w, h := ContentBox(c.Doc.Size, c.Doc.Margins)
	return w, h
}

func (c *Composer) addTruncationNote() {
	last := c.Doc.PageCount() - 1
	inset := math.Max(c.Doc.Margins.Bottom, minNoteMargin)
	left := math.Max(c.Doc.Margins.Left, minNoteMargin)
	width := c.Doc.Size.Width - left - math.Max(c.Doc.Margins.Right, minNoteMargin)
	text := fmt.Sprintf("Document truncated at %d pages: %d more section(s) were not included.",
		c.MaxPages, c.omitted)
	_ = c.Doc.AddNote(last, Note{
		Rect:  Rect{X: left, Y: c.Doc.Size.Height - inset - truncationHeight, Width: width, Height: truncationHeight},
		Text:  text,
		Boxed: true,
	})
}
