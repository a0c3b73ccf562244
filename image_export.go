package mdexport

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/alnah/go-mdexport/internal/dom"
	"github.com/alnah/go-mdexport/internal/encode"
	"github.com/alnah/go-mdexport/internal/raster"
	"github.com/alnah/go-mdexport/internal/section"
	"github.com/alnah/go-mdexport/internal/session"
	"github.com/alnah/go-mdexport/internal/strategy"
	"github.com/alnah/go-mdexport/internal/tiling"
)

// Critical image fallback.
const (
	snapshotMaxScale = 0.5
	errorImageWidth  = 800
	errorImageHeight = 240
	errorImageMargin = 20
	errorLineHeight  = 18
)

func (r *exportRun) runImage(name strategy.Name) (*artifact, error) {
	s := r.e.settings.Image

	var (
		img image.Image
		err error
	)
	switch name {
	case strategy.Single:
		img, err = r.captureWhole(s.Scale)
	case strategy.Tiled:
		img, err = r.renderTiled(r.root.Ref, r.analysis.Width, r.analysis.Height, s.Scale, r.stage)
	case strategy.Smart:
		img, err = r.renderStacked(s.Scale)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	if err != nil {
		return nil, err
	}

	if err := r.enter(session.Composing); err != nil {
		return nil, err
	}
	r.stage(0.95, "Encoding image")

	enc, err := imageChain(s).Encode(img)
	if err != nil {
		return nil, err
	}
	if enc.Policy.Format != encode.FormatPNG || enc.Policy.Downscale > 0 {
		r.logger.Warn("image encoded with fallback policy", zap.Stringer("policy", enc.Policy))
	}
	return &artifact{data: enc.Data, mime: enc.MIME, ext: enc.Ext(), pages: 1}, nil
}

// imageChain builds the encoding chain for a PNG export.
func imageChain(s ImageSettings) encode.Chain {
	return encode.ImageChain(s.Quality, encode.Policy{
		Format:  fallbackFormat(s.FallbackFormat),
		Quality: s.FallbackQuality,
	}, s.MaxBytes)
}

// captureWhole rasterizes the whole element in one capture.
func (r *exportRun) captureWhole(scale float64) (image.Image, error) {
	scope := dom.NewScope(r.e.surface)
	defer r.release(scope)

	a := r.analysis
	ref, err := scope.Clone(r.ctx, r.root.Ref, dom.CloneSpec{
		Width:      a.Width,
		Background: r.e.settings.Image.Background,
		WaitAssets: true,
	})
	if err != nil {
		return nil, fmt.Errorf("cloning element: %w", err)
	}
	r.stage(0.1, "Capturing content")

	bmp, err := r.rasterizer().Rasterize(r.ctx, ref, r.captureOptions(scale, a.Width, a.Height))
	if err != nil {
		return nil, err
	}
	r.stage(0.8, "Content captured")
	return bmp.Image, nil
}

// renderTiled rasterizes ref tile by tile. report receives the completed
// fraction; nil disables reporting.
func (r *exportRun) renderTiled(ref string, width, height, scale float64, report func(float64, string)) (*image.RGBA, error) {
	eng := &tiling.Engine{Surface: r.e.surface, Raster: r.rasterizer(), Logger: r.logger}
	opts := tiling.Options{
		Width:    width,
		Height:   height,
		TileSize: float64(r.e.settings.Image.TileSize),
		Capture:  r.captureOptions(scale, 0, 0),
		Delay:    r.e.settings.Advanced.ChunkDelay,
	}
	if report != nil {
		opts.Progress = func(done, total int) {
			report(0.9*float64(done)/float64(total), fmt.Sprintf("Rendering tile %d of %d", done, total))
		}
	}

	res, err := eng.Render(r.ctx, ref, opts)
	if err != nil {
		return nil, err
	}
	if res.Skipped > 0 {
		r.sess.Update(func(s *session.Stats) { s.TilesSkipped += res.Skipped })
	}
	return res.Image, nil
}

// wholeSection stands in for the section list of an element without
// child blocks. It refers to the element itself and owns no clone.
func (r *exportRun) wholeSection() *section.Section {
	return &section.Section{Height: r.analysis.Height, Ref: r.root.Ref}
}

// renderStacked rasterizes each top-level block separately and stacks
// the bitmaps. A failed block leaves a background band of its height.
func (r *exportRun) renderStacked(scale float64) (image.Image, error) {
	scope := dom.NewScope(r.e.surface)
	defer r.release(scope)

	sections, err := r.sectioner().ByChild(r.ctx, scope, r.root, r.sectionOptions())
	if err != nil {
		return nil, err
	}
	if len(sections) == 0 {
		sections = []*section.Section{r.wholeSection()}
	}

	pacer := raster.NewPacer(r.e.settings.Advanced.ChunkDelay, r.sess)
	bitmaps := make([]image.Image, len(sections))
	failed := 0
	var lastErr error
	for i, sec := range sections {
		if err := pacer.Wait(r.ctx); err != nil {
			return nil, err
		}
		img, err := r.renderSection(sec, scale)
		r.releaseSection(sec)
		if err != nil {
			if r.cancelled(err) {
				return nil, ErrCancelled
			}
			r.logger.Warn("section skipped", zap.Int("section", sec.Index), zap.Error(err))
			failed++
			lastErr = err
			continue
		}
		bitmaps[i] = img
		r.stage(0.9*float64(i+1)/float64(len(sections)),
			fmt.Sprintf("Rendering section %d of %d", i+1, len(sections)))
	}
	if failed == len(sections) {
		return nil, lastErr
	}
	if failed > 0 {
		r.sess.Update(func(s *session.Stats) { s.SectionsSkipped += failed })
	}

	bg, err := dom.ParseColor(r.e.settings.Image.Background)
	if err != nil {
		return nil, err
	}
	width := pixels(r.analysis.Width, scale)
	heights := make([]int, len(sections))
	total := 0
	for i, sec := range sections {
		if bitmaps[i] != nil {
			heights[i] = bitmaps[i].Bounds().Dy()
		} else {
			heights[i] = pixels(sec.Height, scale)
		}
		total += heights[i]
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, total))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	y := 0
	for i, img := range bitmaps {
		if img != nil {
			b := img.Bounds()
			dst := image.Rect(0, y, min(width, b.Dx()), y+heights[i])
			draw.Draw(canvas, dst, img, b.Min, draw.Over)
		}
		y += heights[i]
	}
	return canvas, nil
}

// renderSection rasterizes one section clone, tiling it when it is taller
// than the chunk size or the canvas limit.
func (r *exportRun) renderSection(sec *section.Section, scale float64) (image.Image, error) {
	if sec.Err != nil {
		return nil, sec.Err
	}
	adv := r.e.settings.Advanced
	maxCanvas := float64(r.e.settings.Image.MaxCanvas)
	if sec.Height > float64(adv.ChunkSize) || sec.Height*scale > maxCanvas {
		return r.renderTiled(sec.Ref, r.analysis.Width, sec.Height, scale, nil)
	}
	bmp, err := r.rasterizer().Rasterize(r.ctx, sec.Ref, r.captureOptions(scale, r.analysis.Width, 0))
	if err != nil {
		return nil, err
	}
	return bmp.Image, nil
}

// imageFallback returns a low-scale JPEG snapshot of the element or, when
// even that fails, an image describing the failure.
func (r *exportRun) imageFallback(cause error) (*artifact, error) {
	s := r.e.settings.Image
	side := math.Max(r.analysis.Width, r.analysis.Height)
	scale := math.Min(snapshotMaxScale, float64(s.MaxCanvas)/side)

	img, err := r.snapshot(scale)
	if err == nil {
		enc, encErr := encode.Encode(img, encode.Policy{Format: encode.FormatJPEG, Quality: s.FallbackQuality})
		if encErr == nil {
			r.logger.Warn("exported low-resolution snapshot", zap.Float64("scale", scale))
			return &artifact{data: enc.Data, mime: enc.MIME, ext: enc.Ext(), pages: 1}, nil
		}
		err = encErr
	}
	if r.cancelled(err) {
		return nil, ErrCancelled
	}
	r.logger.Warn("snapshot failed, exporting error image", zap.Error(err))

	enc, err := encode.Encode(errorImage(cause), encode.Policy{Format: encode.FormatPNG})
	if err != nil {
		return nil, err
	}
	return &artifact{data: enc.Data, mime: enc.MIME, ext: enc.Ext(), pages: 1}, nil
}

// snapshot is a single-attempt whole-element capture at scale.
func (r *exportRun) snapshot(scale float64) (image.Image, error) {
	scope := dom.NewScope(r.e.surface)
	defer r.release(scope)

	ref, err := scope.Clone(r.ctx, r.root.Ref, dom.CloneSpec{
		Width:      r.analysis.Width,
		Background: r.e.settings.Image.Background,
	})
	if err != nil {
		return nil, err
	}
	adapter := r.rasterizer()
	adapter.Attempts = 1
	adapter.Timeout = r.e.settings.Advanced.Timeout / time.Duration(max(r.e.settings.Advanced.Retries, 1))
	bmp, err := adapter.Rasterize(r.ctx, ref, r.captureOptions(scale, r.analysis.Width, r.analysis.Height))
	if err != nil {
		return nil, err
	}
	return bmp.Image, nil
}

// errorImage draws the failure message on a white canvas.
func errorImage(cause error) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, errorImageWidth, errorImageHeight))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{R: 0xb0, G: 0x20, B: 0x20, A: 0xff}),
		Face: basicfont.Face7x13,
	}
	msg := "Export failed."
	if cause != nil {
		msg += " " + cause.Error()
	}
	perLine := (errorImageWidth - 2*errorImageMargin) / basicfont.Face7x13.Advance
	maxLines := (errorImageHeight - 2*errorImageMargin) / errorLineHeight
	for i, line := range wrapText(msg, perLine) {
		if i >= maxLines {
			break
		}
		d.Dot = fixed.P(errorImageMargin, errorImageMargin+(i+1)*errorLineHeight)
		d.DrawString(line)
	}
	return img
}

// wrapText splits s into lines of at most width runes, breaking on spaces
// when possible.
func wrapText(s string, width int) []string {
	var lines []string
	var cur []rune
	for _, word := range strings.Fields(s) {
		w := []rune(word)
		for len(w) > width {
			if len(cur) > 0 {
				lines = append(lines, string(cur))
				cur = nil
			}
			lines = append(lines, string(w[:width]))
			w = w[width:]
		}
		switch {
		case len(cur) == 0:
			cur = w
		case len(cur)+1+len(w) <= width:
			cur = append(append(cur, ' '), w...)
		default:
			lines = append(lines, string(cur))
			cur = w
		}
	}
	if len(cur) > 0 {
		lines = append(lines, string(cur))
	}
	return lines
}

// ---------------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------------

func (r *exportRun) captureOptions(scale, width, height float64) dom.CaptureOptions {
	return dom.CaptureOptions{
		Scale:        scale,
		Background:   r.e.settings.Image.Background,
		UseCORS:      true,
		AllowTaint:   true,
		Width:        width,
		Height:       height,
		NormalizeCSS: r.e.captureCSS,
	}
}

func (r *exportRun) sectioner() *section.Sectioner {
	return &section.Sectioner{Logger: r.logger}
}

func (r *exportRun) sectionOptions() section.Options {
	return section.Options{
		Width:      r.analysis.Width,
		Background: r.e.settings.Image.Background,
		Abort:      r.sess,
	}
}

// release removes every clone in scope, logging failures. Cleanup runs
// even after the export context ends.
func (r *exportRun) release(scope *dom.Scope) {
	if err := scope.Release(context.WithoutCancel(r.ctx)); err != nil {
		r.logger.Warn("clone cleanup failed", zap.Error(err))
	}
}

func (r *exportRun) releaseSection(sec *section.Section) {
	if err := sec.Release(context.WithoutCancel(r.ctx)); err != nil {
		r.logger.Warn("section cleanup failed", zap.Int("section", sec.Index), zap.Error(err))
	}
}

func fallbackFormat(s string) string {
	if strings.EqualFold(s, encode.FormatPNG) {
		return encode.FormatPNG
	}
	return encode.FormatJPEG
}

func pixels(v, scale float64) int {
	return int(math.Ceil(v*scale - 1e-9))
}
