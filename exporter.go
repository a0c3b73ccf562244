package mdexport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/alnah/go-mdexport/internal/analyze"
	"github.com/alnah/go-mdexport/internal/assets"
	"github.com/alnah/go-mdexport/internal/compose"
	"github.com/alnah/go-mdexport/internal/dom"
	"github.com/alnah/go-mdexport/internal/fileutil"
	"github.com/alnah/go-mdexport/internal/pipeline"
	"github.com/alnah/go-mdexport/internal/raster"
	"github.com/alnah/go-mdexport/internal/session"
	"github.com/alnah/go-mdexport/internal/strategy"
)

// Exporter turns a rendered element into a PNG image or a PDF document,
// choosing a rendering strategy from the element's size and complexity and
// degrading through fallbacks when a strategy fails.
// Create with NewExporter and Close when done.
type Exporter struct {
	settings   *Settings
	surface    Surface
	owned      *rodSurface // surface started by the exporter, closed by Close
	manager    *session.Manager
	logger     *zap.Logger
	onEvent    EventHandler
	forced     map[Format]string
	strategies map[Format]strategy.Name
	writer     ArtifactWriter

	assetPath  string
	styleInput string
	mermaidURL string
	viewerCSS  string
	captureCSS string
	printCSS   string
	pipeline   *pipeline.Pipeline

	backoff time.Duration // retry wait unit
}

// Input is a Markdown document to load into the surface.
type Input struct {
	Markdown  string
	SourceDir string // resolves relative image paths; empty disables rewriting
	Title     string // used when the document has no level-one heading
}

// Result describes a produced artifact. A degraded result comes with an
// error wrapping ErrCriticalComposerFailure.
type Result struct {
	Session         string
	Format          Format
	Filename        string // artifact name, or its path when a writer is configured
	MIME            string
	Data            []byte
	Strategy        string   // strategy that produced the artifact, empty when degraded
	Tried           []string // strategies attempted, in order
	Degraded        bool
	Pages           int
	TilesSkipped    int
	SectionsSkipped int
	Duration        time.Duration
}

// NewExporter creates an Exporter with default settings.
// Returns an error when settings, forced strategies or assets are invalid.
func NewExporter(opts ...Option) (*Exporter, error) {
	e := &Exporter{
		settings:   DefaultSettings(),
		manager:    session.NewManager(),
		logger:     zap.NewNop(),
		forced:     make(map[Format]string),
		strategies: make(map[Format]strategy.Name),
		backoff:    raster.DefaultBackoff,
	}

	for _, opt := range opts {
		opt(e)
	}

	if err := e.settings.Validate(); err != nil {
		return nil, err
	}

	for format, name := range e.forced {
		sf, err := format.strategyFormat()
		if err != nil {
			return nil, err
		}
		n, err := strategy.Parse(sf, name)
		if err != nil {
			return nil, err
		}
		if n != "" {
			e.strategies[format] = n
		}
	}

	resolver, err := assets.NewAssetResolver(e.assetPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAssetPath, err)
	}
	if e.captureCSS, err = resolver.LoadStyle(assets.StyleCapture); err != nil {
		return nil, fmt.Errorf("loading capture style: %w", err)
	}
	if e.printCSS, err = resolver.LoadStyle(assets.StylePrint); err != nil {
		return nil, fmt.Errorf("loading print style: %w", err)
	}
	if err := e.resolveStyle(resolver); err != nil {
		return nil, err
	}
	e.pipeline = pipeline.New(resolver, e.logger)

	if e.surface == nil {
		e.owned = newRodSurface(e.settings.Advanced.Timeout, e.logger)
		e.surface = e.owned
	}

	return e, nil
}

// Settings returns a copy of the effective settings.
func (e *Exporter) Settings() Settings {
	return *e.settings
}

// Cancel aborts the running export, if any. The export stops at its next
// checkpoint and reports ErrCancelled. Reports whether an export was running.
func (e *Exporter) Cancel() bool {
	return e.manager.Cancel()
}

// Close releases the browser started by the exporter.
func (e *Exporter) Close() error {
	if e.owned != nil {
		return e.owned.Close()
	}
	return nil
}

// LoadMarkdown renders markdown into the surface and returns the element
// to export.
func (e *Exporter) LoadMarkdown(ctx context.Context, in Input) (Element, error) {
	if strings.TrimSpace(in.Markdown) == "" {
		return "", ErrNothingToExport
	}
	doc, err := e.pipeline.Prepare(ctx, in.Markdown, pipeline.Options{
		Title:      in.Title,
		SourceDir:  in.SourceDir,
		CSS:        e.viewerCSS,
		MermaidURL: e.mermaidURL,
	})
	if err != nil {
		return "", fmt.Errorf("preparing document: %w", err)
	}
	return e.LoadHTML(ctx, doc.HTML)
}

// LoadHTML displays a complete HTML page in the surface and returns the
// element to export. The page must contain an element with id "preview".
func (e *Exporter) LoadHTML(ctx context.Context, html string) (Element, error) {
	loader, ok := e.surface.(Loader)
	if !ok {
		return "", ErrNotLoadable
	}
	ref, err := loader.Load(ctx, html)
	if err != nil {
		return "", err
	}
	return Element(ref), nil
}

// ExportToImage exports el as a PNG image (JPEG after an encoding
// fallback). filename names the artifact; an input name such as
// "notes.md" becomes "notes.png".
func (e *Exporter) ExportToImage(ctx context.Context, el Element, filename string) (*Result, error) {
	return e.export(ctx, FormatPNG, el, filename)
}

// ExportToDocument exports el as a PDF document.
func (e *Exporter) ExportToDocument(ctx context.Context, el Element, filename string) (*Result, error) {
	return e.export(ctx, FormatPDF, el, filename)
}

// export runs one session. Internal panics are recovered into an error.
func (e *Exporter) export(ctx context.Context, format Format, el Element, filename string) (res *Result, err error) {
	sess, err := e.manager.Acquire(string(format))
	if err != nil {
		return nil, err
	}
	defer sess.Release()

	r := e.newRun(ctx, sess, format)
	defer func() {
		if rec := recover(); rec != nil {
			res = nil
			err = r.fail(fmt.Errorf("internal error: %v", rec))
		}
	}()

	return r.execute(el, filename)
}

// resolveStyle resolves the style input (name, path, or CSS content).
func (e *Exporter) resolveStyle(loader assets.AssetLoader) error {
	input := e.styleInput
	if input == "" {
		return nil
	}

	if fileutil.IsFilePath(input) {
		content, err := os.ReadFile(input) // #nosec G304 -- user-provided path
		if err != nil {
			return fmt.Errorf("loading style file %q: %w", input, err)
		}
		e.viewerCSS = string(content)
		return nil
	}

	if fileutil.IsCSS(input) {
		e.viewerCSS = input
		return nil
	}

	css, err := loader.LoadStyle(input)
	if err != nil {
		return fmt.Errorf("loading style %q: %w", input, err)
	}
	e.viewerCSS = css
	return nil
}

// ---------------------------------------------------------------------------
// Export run
// ---------------------------------------------------------------------------

// Progress bands.
const (
	progressAnalyzed = 10.0
	progressRenderLo = 10.0
	progressRenderHi = 90.0
	progressSaving   = 95.0
	progressDone     = 100.0
)

// artifact is the output of one strategy.
type artifact struct {
	data  []byte
	mime  string
	ext   string
	pages int
}

// exportRun carries the state of one export session.
type exportRun struct {
	e        *Exporter
	ctx      context.Context
	sess     *session.Session
	format   Format
	logger   *zap.Logger
	root     *dom.Node
	analysis analyze.Analysis
}

func (e *Exporter) newRun(ctx context.Context, sess *session.Session, format Format) *exportRun {
	return &exportRun{
		e:      e,
		ctx:    ctx,
		sess:   sess,
		format: format,
		logger: e.logger.With(zap.String("session", sess.ID), zap.String("format", string(format))),
	}
}

func (r *exportRun) execute(el Element, filename string) (*Result, error) {
	r.emit(EventProgress{Session: r.sess.ID, Message: "Starting export", Format: r.format})
	if err := r.enter(session.Analyzing); err != nil {
		return nil, r.fail(err)
	}
	if el == "" {
		return nil, r.fail(ErrNothingToExport)
	}

	root, err := r.e.surface.Snapshot(r.ctx, string(el))
	if err != nil {
		if r.cancelled(err) {
			return nil, r.cancel()
		}
		return nil, r.fail(fmt.Errorf("reading layout: %w", err))
	}
	r.root = root
	r.analysis = analyze.Analyze(root, r.scale())
	if r.analysis.IsEmpty() {
		return nil, r.fail(ErrNothingToExport)
	}
	r.logger.Debug("content analyzed",
		zap.Float64("width", r.analysis.Width),
		zap.Float64("height", r.analysis.Height),
		zap.Float64("complexity", r.analysis.Complexity),
		zap.Float64("memory", r.analysis.MemoryBytes))
	r.progress(progressAnalyzed, "Content analyzed")

	first := r.selectStrategy()
	if err := r.enter(session.StrategySelected); err != nil {
		return nil, r.fail(err)
	}
	sf, _ := r.format.strategyFormat()
	chain := strategy.Fallbacks(sf, first)
	r.logger.Info("strategy selected", zap.String("strategy", string(first)), zap.Int("fallbacks", len(chain)-1))

	var lastErr error
	for i, name := range chain {
		if r.aborted() {
			return nil, r.cancel()
		}
		if i > 0 {
			if err := r.enter(session.StrategySelected); err != nil {
				return nil, r.fail(err)
			}
			r.logger.Warn("falling back", zap.String("strategy", string(name)), zap.Error(lastErr))
		}
		if err := r.enter(session.Rendering); err != nil {
			return nil, r.fail(err)
		}
		r.sess.Update(func(s *session.Stats) { s.Tried = append(s.Tried, string(name)) })

		art, err := r.runStrategy(name)
		if err == nil {
			r.sess.Update(func(s *session.Stats) { s.Strategy = string(name) })
			return r.finish(art, filename, false, nil)
		}
		lastErr = err
		if r.cancelled(err) {
			return nil, r.cancel()
		}
		if errors.Is(err, ErrPopupBlocked) {
			return nil, r.fail(err)
		}
		r.logger.Warn("strategy failed", zap.String("strategy", string(name)), zap.Error(err))
	}

	return r.critical(lastErr, filename)
}

func (r *exportRun) runStrategy(name strategy.Name) (*artifact, error) {
	if r.format == FormatPDF {
		return r.runDocument(name)
	}
	return r.runImage(name)
}

// selectStrategy returns the forced strategy or the analysis-based choice.
func (r *exportRun) selectStrategy() strategy.Name {
	if forced, ok := r.e.strategies[r.format]; ok {
		return forced
	}
	s := r.e.settings
	if r.format == FormatPDF {
		size, margins, _ := s.Document.pageLayout()
		return strategy.SelectDocument(r.analysis, strategy.DocumentLimits{
			ContentRatio: compose.ContentRatio(size, margins),
			MaxCanvas:    float64(s.Image.MaxCanvas),
			MaxMemory:    float64(s.Advanced.MaxMemory),
		})
	}
	return strategy.SelectImage(r.analysis, strategy.ImageLimits{
		MaxCanvas: float64(s.Image.MaxCanvas),
		MaxMemory: float64(s.Image.MaxMemory),
	})
}

// finish writes the artifact and ends the session. A degraded artifact
// ends in Failed with cause; otherwise the session succeeds.
func (r *exportRun) finish(art *artifact, filename string, degraded bool, cause error) (*Result, error) {
	if r.sess.State() == session.Rendering {
		if err := r.enter(session.Composing); err != nil {
			return nil, r.fail(err)
		}
	}
	if err := r.enter(session.Finalizing); err != nil {
		return nil, r.fail(err)
	}
	r.progress(progressSaving, "Saving")

	name, err := artifactName(filename, art.ext)
	if err != nil {
		return nil, r.fail(err)
	}
	if r.e.writer != nil {
		path, err := r.e.writer.WriteArtifact(context.WithoutCancel(r.ctx), name, art.data)
		if err != nil {
			return nil, r.fail(fmt.Errorf("writing artifact: %w", err))
		}
		name = path
	}

	r.sess.Update(func(s *session.Stats) {
		s.Filename = name
		s.Bytes = len(art.data)
		s.Pages = art.pages
	})

	if degraded {
		res := r.result(art, true)
		return res, r.fail(cause)
	}

	if err := r.enter(session.Succeeded); err != nil {
		return nil, r.fail(err)
	}
	r.progress(progressDone, "Export complete")
	res := r.result(art, false)
	r.logger.Info("export complete",
		zap.String("file", res.Filename),
		zap.String("strategy", res.Strategy),
		zap.Int("bytes", len(res.Data)),
		zap.Duration("duration", res.Duration))
	r.emit(EventSuccess{Session: r.sess.ID, Filename: res.Filename, Format: r.format, Duration: res.Duration})
	return res, nil
}

// critical produces the best-effort artifact after every strategy failed.
func (r *exportRun) critical(lastErr error, filename string) (*Result, error) {
	cause := fmt.Errorf("%w: %w", ErrCriticalComposerFailure, lastErr)
	r.logger.Error("all strategies failed", zap.Error(lastErr))

	if r.sess.State() == session.Rendering {
		if err := r.enter(session.Composing); err != nil {
			return nil, r.fail(err)
		}
	}
	var (
		art *artifact
		err error
	)
	if r.format == FormatPDF {
		art, err = r.documentFallback(lastErr)
	} else {
		art, err = r.imageFallback(lastErr)
	}
	if err != nil {
		if r.cancelled(err) {
			return nil, r.cancel()
		}
		return nil, r.fail(errors.Join(cause, err))
	}
	return r.finish(art, filename, true, cause)
}

func (r *exportRun) result(art *artifact, degraded bool) *Result {
	st := r.sess.Stats()
	res := &Result{
		Session:         r.sess.ID,
		Format:          r.format,
		Filename:        st.Filename,
		MIME:            art.mime,
		Data:            art.data,
		Tried:           st.Tried,
		Degraded:        degraded,
		Pages:           art.pages,
		TilesSkipped:    st.TilesSkipped,
		SectionsSkipped: st.SectionsSkipped,
		Duration:        r.sess.Elapsed(),
	}
	if !degraded {
		res.Strategy = st.Strategy
	}
	return res
}

// enter moves the session to next. An illegal move is a programming error.
func (r *exportRun) enter(next session.State) error {
	return r.sess.Transition(next)
}

// fail ends the session in Failed and emits the error event.
func (r *exportRun) fail(err error) error {
	if !r.sess.State().Terminal() {
		_ = r.sess.Transition(session.Failed)
	}
	r.logger.Error("export failed", zap.Error(err))
	r.emit(EventError{Session: r.sess.ID, Format: r.format, Err: err})
	return err
}

// cancel ends the session in Cancelled and emits the error event.
func (r *exportRun) cancel() error {
	if !r.sess.State().Terminal() {
		_ = r.sess.Transition(session.Cancelled)
	}
	r.logger.Info("export cancelled")
	r.emit(EventError{Session: r.sess.ID, Format: r.format, Err: ErrCancelled})
	return ErrCancelled
}

func (r *exportRun) aborted() bool {
	return r.sess.Aborted() || r.ctx.Err() != nil
}

// cancelled reports whether err comes from cancellation rather than a
// rendering failure.
func (r *exportRun) cancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || r.aborted()
}

// progress reports pct when it advances the session.
func (r *exportRun) progress(pct float64, msg string) {
	p, ok := r.sess.Advance(pct)
	if !ok {
		return
	}
	r.emit(EventProgress{
		Session:    r.sess.ID,
		Message:    msg,
		Percentage: p,
		Format:     r.format,
		Elapsed:    r.sess.Elapsed(),
	})
}

// stage maps a strategy's own fraction onto the rendering band.
func (r *exportRun) stage(frac float64, msg string) {
	frac = min(max(frac, 0), 1)
	r.progress(progressRenderLo+frac*(progressRenderHi-progressRenderLo), msg)
}

func (r *exportRun) emit(ev Event) {
	if r.e.onEvent != nil {
		r.e.onEvent(ev)
	}
}

func (r *exportRun) scale() float64 {
	if r.format == FormatPDF {
		return r.e.settings.Document.Scale
	}
	return r.e.settings.Image.Scale
}

// rasterizer returns an adapter bound to the session's abort flag.
func (r *exportRun) rasterizer() *raster.Adapter {
	a := r.e.settings.Advanced
	return &raster.Adapter{
		Surface:  r.e.surface,
		Timeout:  a.Timeout,
		Attempts: a.Retries,
		Backoff:  r.e.backoff,
		Abort:    r.sess,
		Logger:   r.logger,
	}
}

// strategyFormat maps a public format to the strategy package's.
func (f Format) strategyFormat() (strategy.Format, error) {
	switch f {
	case FormatPNG:
		return strategy.PNG, nil
	case FormatPDF:
		return strategy.PDF, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFormat, string(f))
}
