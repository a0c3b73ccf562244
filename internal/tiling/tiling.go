// Package tiling rasterizes elements too large for a single capture by
// splitting them into fixed-size tiles and compositing the results.
package tiling

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/alnah/go-mdexport/internal/dom"
	"github.com/alnah/go-mdexport/internal/raster"
)

// DefaultTileSize is the tile edge in CSS pixels.
const DefaultTileSize = 2048

// ErrInvalidPlan indicates non-positive dimensions or tile size.
var ErrInvalidPlan = errors.New("invalid tiling plan")

// Tile is a region of the source element in CSS pixels.
type Tile struct {
	Row, Col int
	X, Y     float64
	Width    float64
	Height   float64
	Scale    float64
}

// Dest returns the tile's rectangle on the composited canvas.
// Adjacent tiles share edges, so the rectangles never overlap or leave gaps.
func (t Tile) Dest() image.Rectangle {
	return image.Rect(
		scaled(t.X, t.Scale), scaled(t.Y, t.Scale),
		scaled(t.X+t.Width, t.Scale), scaled(t.Y+t.Height, t.Scale),
	)
}

// Plan splits a width x height box into row-major tiles of at most
// tileSize on each side. It returns nil for non-positive inputs.
func Plan(width, height, tileSize, scale float64) []Tile {
	if width <= 0 || height <= 0 || tileSize <= 0 {
		return nil
	}
	if scale <= 0 {
		scale = 1
	}
	cols := int(math.Ceil(width / tileSize))
	rows := int(math.Ceil(height / tileSize))

	tiles := make([]Tile, 0, cols*rows)
	for r := 0; r < rows; r++ {
		y := float64(r) * tileSize
		h := math.Min(tileSize, height-y)
		for c := 0; c < cols; c++ {
			x := float64(c) * tileSize
			tiles = append(tiles, Tile{
				Row: r, Col: c,
				X: x, Y: y,
				Width:  math.Min(tileSize, width-x),
				Height: h,
				Scale:  scale,
			})
		}
	}
	return tiles
}

// Options configures a tiled render.
type Options struct {
	Width    float64 // source width in CSS px
	Height   float64 // source height in CSS px
	TileSize float64
	Capture  dom.CaptureOptions // Scale and Background apply to the whole canvas
	Delay    time.Duration      // pacing between tiles
	Progress func(done, total int)
}

// Result is the composited canvas and per-tile outcome.
type Result struct {
	Image   *image.RGBA
	Tiles   int
	Skipped int
}

// Engine renders tiles through a raster.Adapter.
type Engine struct {
	Surface dom.Surface
	Raster  *raster.Adapter
	Logger  *zap.Logger
}

// Render captures ref tile by tile and composites the tiles onto one
// canvas. Failed tiles are skipped and leave the background visible; if
// every tile fails the last error is returned. All clones are removed
// before Render returns.
func (e *Engine) Render(ctx context.Context, ref string, opts Options) (res *Result, err error) {
	tileSize := opts.TileSize
	if tileSize <= 0 {
		tileSize = DefaultTileSize
	}
	scale := opts.Capture.Scale
	if scale <= 0 {
		scale = 1
	}
	tiles := Plan(opts.Width, opts.Height, tileSize, scale)
	if len(tiles) == 0 {
		return nil, fmt.Errorf("%w: %.0fx%.0f tile %.0f", ErrInvalidPlan, opts.Width, opts.Height, tileSize)
	}

	bg, err := dom.ParseColor(opts.Capture.Background)
	if err != nil {
		return nil, err
	}
	canvas := image.NewRGBA(image.Rect(0, 0, scaled(opts.Width, scale), scaled(opts.Height, scale)))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	logger := e.logger()
	scope := dom.NewScope(e.Surface)
	defer func() {
		if rerr := scope.Release(context.WithoutCancel(ctx)); rerr != nil {
			logger.Warn("tile cleanup failed", zap.Error(rerr))
		}
	}()

	pacer := raster.NewPacer(opts.Delay, e.Raster.Abort)
	res = &Result{Image: canvas, Tiles: len(tiles)}

	var lastErr error
	for i, t := range tiles {
		if err := pacer.Wait(ctx); err != nil {
			return nil, err
		}

		if err := e.renderTile(ctx, scope, ref, t, opts, canvas); err != nil {
			if errors.Is(err, raster.ErrCancelled) {
				return nil, err
			}
			logger.Warn("tile skipped",
				zap.Int("tile", i),
				zap.Int("row", t.Row),
				zap.Int("col", t.Col),
				zap.Error(err))
			res.Skipped++
			lastErr = err
		}
		if opts.Progress != nil {
			opts.Progress(i+1, len(tiles))
		}
	}

	if res.Skipped == len(tiles) {
		return nil, lastErr
	}
	return res, nil
}

func (e *Engine) renderTile(ctx context.Context, scope *dom.Scope, ref string, t Tile, opts Options, canvas *image.RGBA) error {
	clone, err := scope.Clone(ctx, ref, dom.CloneSpec{
		Width:      opts.Width,
		Height:     t.Height,
		OffsetX:    t.X,
		OffsetY:    t.Y,
		Background: opts.Capture.Background,
		WaitAssets: true,
	})
	if err != nil {
		return fmt.Errorf("cloning tile: %w", err)
	}
	defer func() { _ = scope.Remove(context.WithoutCancel(ctx), clone) }()

	capture := opts.Capture
	capture.Width = t.Width
	capture.Height = t.Height
	bmp, err := e.Raster.Rasterize(ctx, clone, capture)
	if err != nil {
		return err
	}
	composite(canvas, t.Dest(), bmp.Image)
	return nil
}

// composite draws src into dst, scaling when the capture size differs
// from the planned tile size.
func composite(dst *image.RGBA, r image.Rectangle, src image.Image) {
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	sb := src.Bounds()
	if sb.Dx() == r.Dx() && sb.Dy() == r.Dy() {
		draw.Draw(dst, r, src, sb.Min, draw.Over)
		return
	}
	draw.ApproxBiLinear.Scale(dst, r, src, sb, draw.Over, nil)
}

func (e *Engine) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func scaled(v, scale float64) int {
	return int(math.Ceil(v*scale - 1e-9))
}
