package mdexport

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/alnah/go-mdexport/internal/compose"
	"github.com/alnah/go-mdexport/internal/dom"
	"github.com/alnah/go-mdexport/internal/raster"
	"github.com/alnah/go-mdexport/internal/section"
	"github.com/alnah/go-mdexport/internal/session"
	"github.com/alnah/go-mdexport/internal/strategy"
)

const mimePDF = "application/pdf"

func (r *exportRun) runDocument(name strategy.Name) (*artifact, error) {
	switch name {
	case strategy.Direct:
		return r.documentDirect()
	case strategy.CSSPrint:
		return r.documentPrint()
	case strategy.Smart, strategy.Chunked:
		return r.documentSections(name)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// documentDirect captures the element once and paginates the bitmap.
func (r *exportRun) documentDirect() (*artifact, error) {
	comp, err := r.composer()
	if err != nil {
		return nil, err
	}
	img, err := r.captureWhole(r.e.settings.Document.Scale)
	if err != nil {
		return nil, err
	}
	if err := r.enter(session.Composing); err != nil {
		return nil, err
	}
	r.stage(0.9, "Composing document")
	if err := comp.Place(img, "Content"); err != nil && !errors.Is(err, compose.ErrPageLimit) {
		return nil, err
	}
	return r.finishDocument(comp)
}

// documentPrint hands the element to the surface's native print pipeline.
func (r *exportRun) documentPrint() (*artifact, error) {
	printer, ok := r.e.surface.(dom.Printer)
	if !ok {
		return nil, ErrPrintUnsupported
	}
	d := r.e.settings.Document
	size, margins, err := d.pageLayout()
	if err != nil {
		return nil, err
	}

	ctx, cancel := raster.WithAbort(r.ctx, r.sess)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, r.e.settings.Advanced.Timeout)
	defer cancelTimeout()

	r.stage(0.1, "Opening print window")
	data, err := printer.Print(ctx, r.root.Ref, dom.PrintOptions{
		PaperWidthMM:    size.Width,
		PaperHeightMM:   size.Height,
		MarginTopMM:     margins.Top,
		MarginRightMM:   margins.Right,
		MarginBottomMM:  margins.Bottom,
		MarginLeftMM:    margins.Left,
		PrintBackground: true,
		CSS:             r.e.printCSS,
		MaxPages:        d.MaxPages,
	})
	if err != nil {
		if r.cancelled(err) {
			return nil, ErrCancelled
		}
		if errors.Is(err, dom.ErrWindowUnavailable) {
			return nil, fmt.Errorf("%w: %v", ErrPopupBlocked, err)
		}
		return nil, err
	}
	if err := r.enter(session.Composing); err != nil {
		return nil, err
	}
	r.stage(0.95, "Print complete")

	pages := r.analysis.EstimatedPages(compose.ContentRatio(size, margins))
	return &artifact{data: data, mime: mimePDF, ext: ".pdf", pages: min(max(pages, 1), d.MaxPages)}, nil
}

// documentSections renders sections one at a time onto pages. Smart uses
// one section per top-level block; chunked packs blocks into page-sized
// chunks and starts each chunk on a new page.
func (r *exportRun) documentSections(name strategy.Name) (*artifact, error) {
	comp, err := r.composer()
	if err != nil {
		return nil, err
	}
	scope := dom.NewScope(r.e.surface)
	defer r.release(scope)

	var sections []*section.Section
	if name == strategy.Chunked {
		size, margins, _ := r.e.settings.Document.pageLayout()
		pageHeight := r.analysis.PageHeightPx(compose.ContentRatio(size, margins))
		sections, err = r.sectioner().ByPage(r.ctx, scope, r.root, pageHeight, r.sectionOptions())
	} else {
		sections, err = r.sectioner().ByChild(r.ctx, scope, r.root, r.sectionOptions())
	}
	if err != nil {
		return nil, err
	}
	if len(sections) == 0 {
		sections = []*section.Section{r.wholeSection()}
	}

	scale := r.e.settings.Document.Scale
	pacer := raster.NewPacer(r.e.settings.Advanced.ChunkDelay, r.sess)
	failed := 0
	var lastErr error
	for i, sec := range sections {
		if comp.Stats().Truncated {
			comp.Omit(len(sections) - i)
			r.logger.Warn("page limit reached", zap.Int("omitted", len(sections)-i))
			break
		}
		if err := pacer.Wait(r.ctx); err != nil {
			return nil, err
		}

		label := fmt.Sprintf("Section %d", sec.Index+1)
		img, err := r.renderSection(sec, scale)
		r.releaseSection(sec)
		if err != nil {
			if r.cancelled(err) {
				return nil, ErrCancelled
			}
			r.logger.Warn("section skipped", zap.Int("section", sec.Index), zap.Error(err))
			failed++
			lastErr = err
			err = comp.Placeholder(label + " could not be rendered.")
		} else {
			if name == strategy.Chunked {
				comp.Break()
			}
			err = comp.Place(img, label)
		}
		if err != nil && !errors.Is(err, compose.ErrPageLimit) {
			return nil, err
		}
		r.stage(0.9*float64(i+1)/float64(len(sections)),
			fmt.Sprintf("Rendering section %d of %d", i+1, len(sections)))
	}
	if failed == len(sections) {
		return nil, lastErr
	}
	if failed > 0 {
		r.sess.Update(func(s *session.Stats) { s.SectionsSkipped += failed })
	}

	if err := r.enter(session.Composing); err != nil {
		return nil, err
	}
	r.stage(0.95, "Composing document")
	return r.finishDocument(comp)
}

// documentFallback renders a one-page document describing the failure.
func (r *exportRun) documentFallback(cause error) (*artifact, error) {
	size, _, err := r.e.settings.Document.pageLayout()
	if err != nil {
		size = compose.A4
	}
	msg := "Every rendering strategy failed."
	if cause != nil {
		msg += "\n\n" + cause.Error()
	}
	data, err := compose.ErrorDocument(size, "Export failed", msg)
	if err != nil {
		return nil, err
	}
	return &artifact{data: data, mime: mimePDF, ext: ".pdf", pages: 1}, nil
}

func (r *exportRun) composer() (*compose.Composer, error) {
	d := r.e.settings.Document
	size, margins, err := d.pageLayout()
	if err != nil {
		return nil, err
	}
	doc, err := compose.NewDocument(size, margins)
	if err != nil {
		return nil, err
	}
	return compose.NewComposer(doc, d.Quality, d.MaxPages, r.logger), nil
}

func (r *exportRun) finishDocument(comp *compose.Composer) (*artifact, error) {
	st := comp.Stats()
	if st.Truncated {
		r.logger.Warn("document truncated",
			zap.Int("pages", st.Pages),
			zap.Int("omitted", st.Omitted))
	}
	data, err := comp.Finish()
	if err != nil {
		return nil, err
	}
	return &artifact{data: data, mime: mimePDF, ext: ".pdf", pages: st.Pages}, nil
}
