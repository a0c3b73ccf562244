package dom

import (
	"context"
	"errors"
	"image"
)

// ErrWindowUnavailable indicates a secondary rendering window could not be
// opened (the headless equivalent of a blocked popup).
var ErrWindowUnavailable = errors.New("secondary window unavailable")

// CaptureOptions controls a single rasterization.
type CaptureOptions struct {
	Scale        float64 // device pixels per CSS pixel
	Background   string  // CSS colour painted behind the element
	UseCORS      bool    // load cross-origin images with CORS
	AllowTaint   bool    // allow cross-origin images without CORS
	Width        float64 // 0 = element scroll width
	Height       float64 // 0 = element scroll height
	NormalizeCSS string  // applied to the copy right before capture
}

// CloneSpec describes an isolated off-screen copy of (part of) an element.
type CloneSpec struct {
	Width      float64  // container width in CSS px
	Height     float64  // container height, 0 = natural height of the copy
	OffsetX    float64  // source point aligned with the container origin
	OffsetY    float64  //
	Children   []string // child refs to copy, nil copies the whole element
	Background string
	WaitAssets bool // wait for images, fonts and diagrams before returning
}

// PrintOptions configures the native print pipeline. Paper sizes are
// already oriented.
type PrintOptions struct {
	PaperWidthMM    float64
	PaperHeightMM   float64
	MarginTopMM     float64
	MarginRightMM   float64
	MarginBottomMM  float64
	MarginLeftMM    float64
	PrintBackground bool
	CSS             string // print stylesheet injected into the print window
	MaxPages        int    // 0 prints every page
}

// Surface is the rendering capability the engine depends on.
type Surface interface {
	// Snapshot returns the layout tree rooted at ref.
	Snapshot(ctx context.Context, ref string) (*Node, error)
	// Clone materializes an off-screen copy and returns its ref.
	Clone(ctx context.Context, ref string, spec CloneSpec) (string, error)
	// Capture rasterizes the element identified by ref.
	Capture(ctx context.Context, ref string, opts CaptureOptions) (image.Image, error)
	// Remove detaches a copy created by Clone.
	Remove(ctx context.Context, ref string) error
}

// Printer is implemented by surfaces that can hand an element to a native
// print-to-PDF pipeline.
type Printer interface {
	Print(ctx context.Context, ref string, opts PrintOptions) ([]byte, error)
}
