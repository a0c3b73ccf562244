package main

import (
	"errors"
	"os"

	mdexport "github.com/alnah/go-mdexport"
	"github.com/alnah/go-mdexport/internal/config"
)

// Exit codes for the mdexport CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess   = 0 // Every export succeeded
	ExitGeneral   = 1 // General/unexpected error, or a degraded export
	ExitUsage     = 2 // Invalid flags, config, or settings
	ExitIO        = 3 // File not found, permission denied
	ExitBrowser   = 4 // Browser/Chrome errors
	ExitCancelled = 5 // Interrupted by a signal
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, mdexport.ErrCancelled) {
		return ExitCancelled
	}

	// Browser errors (exit 4)
	if errors.Is(err, mdexport.ErrBrowserConnect) ||
		errors.Is(err, mdexport.ErrPageCreate) ||
		errors.Is(err, mdexport.ErrPageLoad) {
		return ExitBrowser
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, ErrReadMarkdown) ||
		errors.Is(err, ErrWriteArtifact) ||
		errors.Is(err, ErrNoInput) {
		return ExitIO
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, config.ErrConfigTooLarge) ||
		errors.Is(err, ErrInvalidExtension) ||
		errors.Is(err, ErrInvalidFormat) ||
		errors.Is(err, ErrUsage) ||
		errors.Is(err, mdexport.ErrInvalidPageSize) ||
		errors.Is(err, mdexport.ErrInvalidOrientation) ||
		errors.Is(err, mdexport.ErrInvalidMargin) ||
		errors.Is(err, mdexport.ErrInvalidQuality) ||
		errors.Is(err, mdexport.ErrInvalidScale) ||
		errors.Is(err, mdexport.ErrInvalidLimit) ||
		errors.Is(err, mdexport.ErrInvalidColor) ||
		errors.Is(err, mdexport.ErrInvalidFormat) ||
		errors.Is(err, mdexport.ErrUnknownStrategy) ||
		errors.Is(err, mdexport.ErrStyleNotFound) ||
		errors.Is(err, mdexport.ErrInvalidAssetPath) {
		return ExitUsage
	}

	return ExitGeneral
}
