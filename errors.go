package mdexport

import (
	"errors"

	"github.com/alnah/go-mdexport/internal/assets"
	"github.com/alnah/go-mdexport/internal/compose"
	"github.com/alnah/go-mdexport/internal/encode"
	"github.com/alnah/go-mdexport/internal/raster"
	"github.com/alnah/go-mdexport/internal/session"
	"github.com/alnah/go-mdexport/internal/strategy"
)

// Sentinel errors for export operations.
var (
	ErrSessionBusy             = session.ErrBusy
	ErrCancelled               = raster.ErrCancelled
	ErrRasterizationFailed     = raster.ErrRasterizationFailed
	ErrImageEncodingFailed     = encode.ErrEncodingFailed
	ErrPopupBlocked            = errors.New("print window could not be opened")
	ErrCriticalComposerFailure = errors.New("export failed after all degradation steps")
	ErrNothingToExport         = errors.New("nothing to export: render some content first")
	ErrInvalidTransition       = session.ErrInvalidTransition
	ErrPrintUnsupported        = errors.New("surface does not support native printing")

	ErrBrowserConnect = errors.New("failed to connect to browser")
	ErrPageCreate     = errors.New("failed to create browser page")
	ErrPageLoad       = errors.New("failed to load page")
	ErrNoSurface      = errors.New("no surface configured")
	ErrNotLoadable    = errors.New("surface cannot load HTML")

	// Settings validation errors.
	ErrInvalidPageSize    = compose.ErrInvalidPageSize
	ErrInvalidOrientation = compose.ErrInvalidOrientation
	ErrInvalidMargin      = errors.New("invalid margin")
	ErrInvalidQuality     = errors.New("invalid quality")
	ErrInvalidScale       = errors.New("invalid scale")
	ErrInvalidLimit       = errors.New("invalid limit")
	ErrInvalidColor       = errors.New("invalid background color")
	ErrInvalidFormat      = errors.New("invalid image format")
	ErrUnknownStrategy    = strategy.ErrUnknownStrategy

	// Asset loading errors.
	ErrStyleNotFound    = assets.ErrStyleNotFound
	ErrInvalidAssetPath = errors.New("invalid asset path")
)

// RasterizationError reports a capture that failed after every retry.
type RasterizationError = raster.RasterizationError
