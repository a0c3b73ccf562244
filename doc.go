// Package mdexport exports rendered Markdown to PNG images and PDF documents
// using headless Chrome.
//
// # Quick Start
//
// Create an exporter, load Markdown, export, and close when done:
//
//	exp, err := mdexport.NewExporter(mdexport.WithOutputDir("out"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer exp.Close()
//
//	el, err := exp.LoadMarkdown(ctx, mdexport.Input{Markdown: "# Hello\n\nWorld"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := exp.ExportToDocument(ctx, el, "hello.md")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Filename) // out/hello.pdf
//
// # Strategies
//
// Every export measures the element first (height, width, images, diagrams,
// tables, code blocks, nesting depth) and picks a strategy from the result:
//
//   - PNG: single (one capture), tiled (fixed-size tiles composited on one
//     canvas), smart (one capture per top-level block, stacked).
//   - PDF: direct (one capture paginated), css-print (the browser's print
//     pipeline), smart (one capture per block), chunked (page-sized chunks).
//
// A failing strategy falls back to the next one in its chain. When every
// strategy fails, the exporter still produces an artifact (a low-resolution
// snapshot or an error image for PNG, an error page for PDF) and returns it
// together with an error wrapping ErrCriticalComposerFailure.
//
// Force a strategy with WithStrategy:
//
//	exp, err := mdexport.NewExporter(mdexport.WithStrategy(mdexport.FormatPDF, "chunked"))
//
// # Sessions and Cancellation
//
// An exporter runs one export at a time; a concurrent call fails with
// ErrSessionBusy. Exporter.Cancel, or cancelling the context, stops the
// running export at its next checkpoint with ErrCancelled. Temporary copies
// created on the surface are removed on every path.
//
// # Events
//
// WithEventHandler receives EventProgress with a non-decreasing percentage,
// then exactly one EventSuccess or EventError.
//
// # Browser Requirements
//
// The go-rod library downloads a managed Chromium on first run
// (~/.cache/rod/browser/). Use ROD_BROWSER_BIN to point at a custom binary;
// the sandbox is disabled when it is set, when ROD_NO_SANDBOX=1 or when
// CI=true.
//
// Any other rendering backend can be plugged in with WithSurface.
package mdexport
