package main

import (
	"context"
	"io"
	"os"

	mdexport "github.com/alnah/go-mdexport"
)

// Exporter is the part of *mdexport.Exporter the CLI drives.
type Exporter interface {
	LoadMarkdown(ctx context.Context, in mdexport.Input) (mdexport.Element, error)
	ExportToImage(ctx context.Context, el mdexport.Element, filename string) (*mdexport.Result, error)
	ExportToDocument(ctx context.Context, el mdexport.Element, filename string) (*mdexport.Result, error)
	Cancel() bool
	Close() error
}

// Compile-time interface implementation check.
var _ Exporter = (*mdexport.Exporter)(nil)

// Environment holds injectable dependencies for testability.
type Environment struct {
	Stdout      io.Writer
	Stderr      io.Writer
	Getenv      func(string) string
	Environ     func() []string
	NewExporter func(opts ...mdexport.Option) (Exporter, error)
}

// DefaultEnv returns the production environment backed by headless Chrome.
func DefaultEnv() *Environment {
	return &Environment{
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Getenv:  os.Getenv,
		Environ: os.Environ,
		NewExporter: func(opts ...mdexport.Option) (Exporter, error) {
			return mdexport.NewExporter(opts...)
		},
	}
}
