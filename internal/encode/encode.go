// Package encode turns bitmaps into PNG or JPEG bytes and walks ordered
// degradation chains when an encoding fails or exceeds its budget.
package encode

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"strings"

	"github.com/disintegration/imaging"
)

// Supported formats.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
)

// MaxJPEGDimension is the largest side a JPEG stream can describe.
const MaxJPEGDimension = 65535

// Sentinel errors.
var (
	ErrEncodingFailed = errors.New("image encoding failed")
	ErrOverBudget     = errors.New("encoded image exceeds size budget")
	ErrUnknownFormat  = errors.New("unknown image format")
)

// Policy is one encoding attempt.
type Policy struct {
	Format    string  // FormatPNG or FormatJPEG
	Quality   float64 // 0-1, JPEG only
	Downscale float64 // 0 or 1 keeps the original size
}

// String describes the policy for logs.
func (p Policy) String() string {
	s := p.Format
	if p.Format == FormatJPEG {
		s += fmt.Sprintf("@%.2f", p.Quality)
	}
	if p.Downscale > 0 && p.Downscale != 1 {
		s += fmt.Sprintf("x%.2f", p.Downscale)
	}
	return s
}

// Encoded is the result of a successful encoding.
type Encoded struct {
	Data   []byte
	Format string
	MIME   string
	Width  int
	Height int
	Policy Policy
}

// Ext returns the file extension for the encoded format, with the dot.
func (e *Encoded) Ext() string {
	if e.Format == FormatJPEG {
		return ".jpg"
	}
	return ".png"
}

// Encode encodes img according to p.
func Encode(img image.Image, p Policy) (enc *Encoded, err error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrEncodingFailed)
	}
	defer func() {
		if r := recover(); r != nil {
			enc, err = nil, fmt.Errorf("%w: %v", ErrEncodingFailed, r)
		}
	}()

	if p.Downscale > 0 && p.Downscale < 1 {
		b := img.Bounds()
		w := max(1, int(math.Round(float64(b.Dx())*p.Downscale)))
		h := max(1, int(math.Round(float64(b.Dy())*p.Downscale)))
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	}
	b := img.Bounds()

	var (
		buf  bytes.Buffer
		mime string
	)
	switch strings.ToLower(p.Format) {
	case FormatPNG, "":
		mime = "image/png"
		p.Format = FormatPNG
		err = imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.DefaultCompression))
	case FormatJPEG, "jpg":
		if b.Dx() > MaxJPEGDimension || b.Dy() > MaxJPEGDimension {
			return nil, fmt.Errorf("%w: %dx%d exceeds JPEG limit", ErrEncodingFailed, b.Dx(), b.Dy())
		}
		mime = "image/jpeg"
		p.Format = FormatJPEG
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality(p.Quality)))
	default:
		return nil, fmt.Errorf("%w: %w: %q", ErrEncodingFailed, ErrUnknownFormat, p.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodingFailed, err)
	}
	return &Encoded{
		Data:   buf.Bytes(),
		Format: p.Format,
		MIME:   mime,
		Width:  b.Dx(),
		Height: b.Dy(),
		Policy: p,
	}, nil
}

// jpegQuality maps 0-1 to the 1-100 JPEG scale. Zero means 90.
func jpegQuality(q float64) int {
	if q <= 0 {
		return 90
	}
	return min(100, max(1, int(math.Round(q*100))))
}

// DataURL renders enc as a data: URL.
func DataURL(enc *Encoded) string {
	return "data:" + enc.MIME + ";base64," + base64.StdEncoding.EncodeToString(enc.Data)
}

// Chain is an ordered list of policies tried until one succeeds within
// the byte budget.
type Chain struct {
	Policies []Policy
	MaxBytes int // 0 disables the budget
}

// Encode tries each policy in order. The error of the last failed attempt
// is returned when none succeeds.
func (c Chain) Encode(img image.Image) (*Encoded, error) {
	if len(c.Policies) == 0 {
		return nil, fmt.Errorf("%w: empty policy chain", ErrEncodingFailed)
	}
	var errs []error
	for _, p := range c.Policies {
		enc, err := Encode(img, p)
		if err == nil && c.MaxBytes > 0 && len(enc.Data) > c.MaxBytes {
			err = fmt.Errorf("%w: %w: %s produced %d bytes", ErrEncodingFailed, ErrOverBudget, p, len(enc.Data))
		}
		if err == nil {
			return enc, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", p, err))
	}
	return nil, errors.Join(errs...)
}

// ImageChain is the degradation chain for standalone image exports:
// lossless PNG, the fallback format at quality, the fallback policy, then
// the fallback policy at half size. Steps that encode identically are
// tried once.
func ImageChain(quality float64, fallback Policy, maxBytes int) Chain {
	primary := fallback
	primary.Quality = quality
	half := fallback
	half.Downscale = 0.5

	var policies []Policy
	seen := make(map[string]bool)
	for _, p := range []Policy{{Format: FormatPNG}, primary, fallback, half} {
		if key := p.String(); !seen[key] {
			seen[key] = true
			policies = append(policies, p)
		}
	}
	return Chain{Policies: policies, MaxBytes: maxBytes}
}

// DocumentChain is the degradation chain for images placed in a PDF:
// JPEG at the document quality, then once more at reduced quality.
func DocumentChain(quality float64) Chain {
	reduced := math.Max(0.3, quality*0.6)
	return Chain{Policies: []Policy{
		{Format: FormatJPEG, Quality: quality},
		{Format: FormatJPEG, Quality: reduced},
	}}
}
