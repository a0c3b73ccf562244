package mdexport

// Notes:
// - Every test drives the exporter through domtest.Surface, an in-memory
//   surface that paints solid colours. No browser is started.
// - The retry wait unit is shortened through the unexported backoff field;
//   chunk pacing is disabled through settings.
// - rodSurface itself is only exercised by the browser integration tests.

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alnah/go-mdexport/internal/dom"
	"github.com/alnah/go-mdexport/internal/dom/domtest"
	"github.com/alnah/go-mdexport/internal/encode"
	"github.com/alnah/go-mdexport/internal/session"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// testSettings returns default settings tuned for fast tests.
func testSettings() *Settings {
	s := DefaultSettings()
	s.Advanced.ChunkDelay = 0
	s.Advanced.Timeout = 5 * time.Second
	return s
}

func newTestExporter(t *testing.T, surf Surface, opts ...Option) *Exporter {
	t.Helper()
	base := []Option{WithSurface(surf), WithSettings(testSettings())}
	e, err := NewExporter(append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewExporter() unexpected error: %v", err)
	}
	e.backoff = time.Millisecond
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// blocks returns n heights of h each.
func blocks(n int, h float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = h
	}
	return out
}

// eventLog records events in order.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) handle(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) all() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

// checkEvents verifies non-decreasing progress and a single terminal event
// at the end.
func checkEvents(t *testing.T, events []Event) Event {
	t.Helper()
	if len(events) == 0 {
		t.Fatal("no events emitted")
	}
	last := -1.0
	for i, ev := range events {
		switch ev := ev.(type) {
		case EventProgress:
			if ev.Percentage < last {
				t.Errorf("event %d: progress went from %.1f to %.1f", i, last, ev.Percentage)
			}
			last = ev.Percentage
		case EventError, EventSuccess:
			if i != len(events)-1 {
				t.Errorf("terminal event %T at %d of %d", ev, i, len(events))
			}
		}
	}
	return events[len(events)-1]
}

func decodeImage(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding artifact: %v", err)
	}
	return img
}

// failWhole fails every capture of a whole-element copy.
func failWhole(_ string, c *domtest.Clone, _ int) bool {
	return c != nil && c.Spec.Children == nil && c.Spec.Height == 0
}

// failAll fails every capture.
func failAll(string, *domtest.Clone, int) bool { return true }

// ---------------------------------------------------------------------------
// TestExportToImage - Strategies
// ---------------------------------------------------------------------------

func TestExportToImage_Strategies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		heights  []float64
		settings func(*Settings)
		strategy string
		width    int
		height   int
	}{
		{
			name:     "short document uses single capture",
			heights:  blocks(3, 300),
			strategy: "single",
			width:    1600,
			height:   1800,
		},
		{
			name:    "oversized canvas uses tiles",
			heights: blocks(3, 1000),
			settings: func(s *Settings) {
				s.Image.Scale = 1
				s.Image.MaxCanvas = 1024
				s.Image.TileSize = 512
			},
			strategy: "tiled",
			width:    800,
			height:   3000,
		},
		{
			name:     "tall document uses sections",
			heights:  blocks(5, 1000),
			settings: func(s *Settings) { s.Image.Scale = 1 },
			strategy: "smart",
			width:    800,
			height:   5000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := testSettings()
			if tt.settings != nil {
				tt.settings(s)
			}
			surf := domtest.New(domtest.Document("doc", 800, tt.heights...))
			log := &eventLog{}
			e := newTestExporter(t, surf, WithSettings(s), WithEventHandler(log.handle))

			res, err := e.ExportToImage(context.Background(), "doc", "notes.md")
			if err != nil {
				t.Fatalf("ExportToImage() unexpected error: %v", err)
			}
			if res.Strategy != tt.strategy {
				t.Errorf("Strategy = %q, want %q", res.Strategy, tt.strategy)
			}
			if res.Filename != "notes.png" {
				t.Errorf("Filename = %q, want %q", res.Filename, "notes.png")
			}
			if res.MIME != "image/png" {
				t.Errorf("MIME = %q, want image/png", res.MIME)
			}
			img := decodeImage(t, res.Data)
			if b := img.Bounds(); b.Dx() != tt.width || b.Dy() != tt.height {
				t.Errorf("image size = %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.width, tt.height)
			}
			if surf.Live() != 0 {
				t.Errorf("Live() = %d copies left on the surface, want 0", surf.Live())
			}
			if _, ok := checkEvents(t, log.all()).(EventSuccess); !ok {
				t.Error("last event is not EventSuccess")
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestExportToImage - Degradation
// ---------------------------------------------------------------------------

func TestExportToImage_FallsBackToTiles(t *testing.T) {
	t.Parallel()

	surf := domtest.New(domtest.Document("doc", 800, blocks(3, 300)...))
	surf.Fail = failWhole
	e := newTestExporter(t, surf)

	res, err := e.ExportToImage(context.Background(), "doc", "")
	if err != nil {
		t.Fatalf("ExportToImage() unexpected error: %v", err)
	}
	if res.Strategy != "tiled" {
		t.Errorf("Strategy = %q, want tiled", res.Strategy)
	}
	if got := strings.Join(res.Tried, ","); got != "single,tiled" {
		t.Errorf("Tried = %q, want single,tiled", got)
	}
	if res.Filename != "markdown-export.png" {
		t.Errorf("Filename = %q, want markdown-export.png", res.Filename)
	}
	if surf.Live() != 0 {
		t.Errorf("Live() = %d, want 0", surf.Live())
	}
}

func TestExportToImage_SkipsFailedSection(t *testing.T) {
	t.Parallel()

	surf := domtest.New(domtest.Document("doc", 800, blocks(5, 1000)...))
	surf.Fail = func(_ string, c *domtest.Clone, _ int) bool {
		return c != nil && len(c.Spec.Children) == 1 && c.Spec.Children[0] == "doc/2"
	}
	s := testSettings()
	s.Image.Scale = 1
	e := newTestExporter(t, surf, WithSettings(s))

	res, err := e.ExportToImage(context.Background(), "doc", "notes")
	if err != nil {
		t.Fatalf("ExportToImage() unexpected error: %v", err)
	}
	if res.SectionsSkipped != 1 {
		t.Errorf("SectionsSkipped = %d, want 1", res.SectionsSkipped)
	}
	if b := decodeImage(t, res.Data).Bounds(); b.Dy() != 5000 {
		t.Errorf("image height = %d, want 5000 (failed section keeps its band)", b.Dy())
	}
}

func TestExportToImage_CriticalFailure(t *testing.T) {
	t.Parallel()

	surf := domtest.New(domtest.Document("doc", 800, blocks(3, 300)...))
	surf.Fail = failAll
	log := &eventLog{}
	e := newTestExporter(t, surf, WithEventHandler(log.handle))

	res, err := e.ExportToImage(context.Background(), "doc", "notes.md")
	if !errors.Is(err, ErrCriticalComposerFailure) {
		t.Fatalf("error = %v, want ErrCriticalComposerFailure", err)
	}
	if !errors.Is(err, ErrRasterizationFailed) {
		t.Errorf("error = %v, want it to wrap ErrRasterizationFailed", err)
	}
	if res == nil || !res.Degraded {
		t.Fatalf("Result = %+v, want a degraded result", res)
	}
	if res.Strategy != "" {
		t.Errorf("Strategy = %q, want empty for a degraded result", res.Strategy)
	}
	b := decodeImage(t, res.Data).Bounds()
	if b.Dx() != errorImageWidth || b.Dy() != errorImageHeight {
		t.Errorf("error image = %dx%d, want %dx%d", b.Dx(), b.Dy(), errorImageWidth, errorImageHeight)
	}
	if surf.Live() != 0 {
		t.Errorf("Live() = %d, want 0", surf.Live())
	}
	if _, ok := checkEvents(t, log.all()).(EventError); !ok {
		t.Error("last event is not EventError")
	}
}

func TestExportToImage_LowResolutionSnapshot(t *testing.T) {
	t.Parallel()

	// Only captures at scale 1 and above fail, so the half-scale snapshot
	// succeeds.
	surf := &scaleFailSurface{
		Surface:  domtest.New(domtest.Document("doc", 800, blocks(3, 300)...)),
		minScale: 1,
	}
	e := newTestExporter(t, surf)

	res, err := e.ExportToImage(context.Background(), "doc", "notes.md")
	if !errors.Is(err, ErrCriticalComposerFailure) {
		t.Fatalf("error = %v, want ErrCriticalComposerFailure", err)
	}
	if res.MIME != "image/jpeg" || res.Filename != "notes.jpg" {
		t.Errorf("artifact = %s %s, want image/jpeg notes.jpg", res.MIME, res.Filename)
	}
	if b := decodeImage(t, res.Data).Bounds(); b.Dx() != 400 || b.Dy() != 450 {
		t.Errorf("snapshot = %dx%d, want 400x450", b.Dx(), b.Dy())
	}
}

// scaleFailSurface fails captures at or above minScale.
type scaleFailSurface struct {
	*domtest.Surface
	minScale float64
}

func (s *scaleFailSurface) Capture(ctx context.Context, ref string, opts dom.CaptureOptions) (image.Image, error) {
	if opts.Scale >= s.minScale {
		return nil, domtest.ErrCaptureFailed
	}
	return s.Surface.Capture(ctx, ref, opts)
}

// ---------------------------------------------------------------------------
// TestExportToImage - Encoding
// ---------------------------------------------------------------------------

func TestImageChain_Settings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings func(*ImageSettings)
		want     []string
		maxBytes int
	}{
		{
			name: "defaults",
			want: []string{"png", "jpeg@0.90", "jpeg@0.70", "jpeg@0.70x0.50"},
		},
		{
			name: "quality leads the lossy steps",
			settings: func(s *ImageSettings) {
				s.Quality = 0.1
				s.MaxBytes = 4096
			},
			want:     []string{"png", "jpeg@0.10", "jpeg@0.70", "jpeg@0.70x0.50"},
			maxBytes: 4096,
		},
		{
			name:     "png fallback ignores quality",
			settings: func(s *ImageSettings) { s.FallbackFormat = "PNG" },
			want:     []string{"png", "pngx0.50"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := DefaultSettings().Image
			if tt.settings != nil {
				tt.settings(&s)
			}
			c := imageChain(s)
			if c.MaxBytes != tt.maxBytes {
				t.Errorf("MaxBytes = %d, want %d", c.MaxBytes, tt.maxBytes)
			}
			got := make([]string, len(c.Policies))
			for i, p := range c.Policies {
				got[i] = p.String()
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("policies = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExportToImage_ByteBudget(t *testing.T) {
	t.Parallel()

	s := testSettings()
	s.Image.MaxBytes = 1
	s.Image.FallbackFormat = encode.FormatPNG
	surf := domtest.New(domtest.Document("doc", 800, blocks(3, 300)...))
	e := newTestExporter(t, surf, WithSettings(s))

	res, err := e.ExportToImage(context.Background(), "doc", "notes.md")
	if !errors.Is(err, ErrCriticalComposerFailure) {
		t.Fatalf("error = %v, want ErrCriticalComposerFailure", err)
	}
	if !errors.Is(err, encode.ErrOverBudget) {
		t.Errorf("error = %v, want it to wrap ErrOverBudget", err)
	}
	if res == nil || !res.Degraded {
		t.Fatalf("Result = %+v, want a degraded result", res)
	}
	if got := strings.Join(res.Tried, ","); got != "single,tiled" {
		t.Errorf("Tried = %q, want single,tiled", got)
	}
	if res.MIME != "image/jpeg" {
		t.Errorf("MIME = %q, want the image/jpeg snapshot", res.MIME)
	}
	if surf.Live() != 0 {
		t.Errorf("Live() = %d, want 0", surf.Live())
	}
}

// ---------------------------------------------------------------------------
// TestExportToDocument - Strategies
// ---------------------------------------------------------------------------

func TestExportToDocument_Direct(t *testing.T) {
	t.Parallel()

	surf := domtest.New(domtest.Document("doc", 800, blocks(3, 300)...))
	e := newTestExporter(t, surf)

	res, err := e.ExportToDocument(context.Background(), "doc", "report.md")
	if err != nil {
		t.Fatalf("ExportToDocument() unexpected error: %v", err)
	}
	if res.Strategy != "direct" {
		t.Errorf("Strategy = %q, want direct", res.Strategy)
	}
	if !bytes.HasPrefix(res.Data, []byte("%PDF")) {
		t.Error("artifact is not a PDF")
	}
	if res.MIME != "application/pdf" || res.Filename != "report.pdf" {
		t.Errorf("artifact = %s %s, want application/pdf report.pdf", res.MIME, res.Filename)
	}
	if res.Pages != 1 {
		t.Errorf("Pages = %d, want 1", res.Pages)
	}
}

func TestExportToDocument_Print(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		printErr error
		wantErr  error
		strategy string
		tried    string
	}{
		{
			name:     "print succeeds",
			strategy: "css-print",
			tried:    "css-print",
		},
		{
			name:     "print failure falls back to sections",
			printErr: errors.New("renderer crashed"),
			strategy: "smart",
			tried:    "css-print,smart",
		},
		{
			name:     "blocked window is not retried",
			printErr: dom.ErrWindowUnavailable,
			wantErr:  ErrPopupBlocked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			surf := domtest.New(domtest.Document("doc", 800, blocks(5, 1000)...))
			surf.PrintErr = tt.printErr
			s := testSettings()
			s.Document.Scale = 0.5
			e := newTestExporter(t, surf, WithSettings(s))

			res, err := e.ExportToDocument(context.Background(), "doc", "report")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				if surf.Captures() != 0 {
					t.Errorf("Captures() = %d, want 0", surf.Captures())
				}
				return
			}
			if err != nil {
				t.Fatalf("ExportToDocument() unexpected error: %v", err)
			}
			if res.Strategy != tt.strategy {
				t.Errorf("Strategy = %q, want %q", res.Strategy, tt.strategy)
			}
			if got := strings.Join(res.Tried, ","); got != tt.tried {
				t.Errorf("Tried = %q, want %q", got, tt.tried)
			}
			if !bytes.HasPrefix(res.Data, []byte("%PDF")) {
				t.Error("artifact is not a PDF")
			}
			if tt.printErr == nil && surf.Prints() != 1 {
				t.Errorf("Prints() = %d, want 1", surf.Prints())
			}
		})
	}
}

func TestExportToDocument_ChunkedRespectsPageLimit(t *testing.T) {
	t.Parallel()

	surf := domtest.New(domtest.Document("doc", 800, blocks(40, 1000)...))
	s := testSettings()
	s.Document.Scale = 0.5
	s.Document.MaxPages = 5
	e := newTestExporter(t, surf, WithSettings(s))

	res, err := e.ExportToDocument(context.Background(), "doc", "long.md")
	if err != nil {
		t.Fatalf("ExportToDocument() unexpected error: %v", err)
	}
	if res.Strategy != "chunked" {
		t.Errorf("Strategy = %q, want chunked", res.Strategy)
	}
	if res.Pages != 5 {
		t.Errorf("Pages = %d, want 5", res.Pages)
	}
	if surf.Live() != 0 {
		t.Errorf("Live() = %d, want 0", surf.Live())
	}
}

func TestExport_ElementWithoutBlocks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		height   float64
		format   Format
		forced   string
		strategy string
		minPages int
	}{
		{
			name:     "tall PDF is chunked as one section",
			height:   12000,
			format:   FormatPDF,
			strategy: "chunked",
			minPages: 2,
		},
		{
			name:     "forced smart PDF places the whole element",
			height:   12000,
			format:   FormatPDF,
			forced:   "smart",
			strategy: "smart",
			minPages: 2,
		},
		{
			name:     "tall PNG is stacked as one section",
			height:   5000,
			format:   FormatPNG,
			strategy: "smart",
			minPages: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root := &dom.Node{
				Ref:  "doc",
				Tag:  "pre",
				Kind: dom.KindBlock,
				Box:  dom.Rect{Width: 800, Height: tt.height},
			}
			surf := domtest.New(root)
			s := testSettings()
			s.Image.Scale = 1
			s.Document.Scale = 0.5
			opts := []Option{WithSettings(s)}
			if tt.forced != "" {
				opts = append(opts, WithStrategy(tt.format, tt.forced))
			}
			e := newTestExporter(t, surf, opts...)

			var res *Result
			var err error
			if tt.format == FormatPDF {
				res, err = e.ExportToDocument(context.Background(), "doc", "log.md")
			} else {
				res, err = e.ExportToImage(context.Background(), "doc", "log.md")
			}
			if err != nil {
				t.Fatalf("export unexpected error: %v", err)
			}
			if res.Degraded {
				t.Error("Degraded = true, want a regular artifact")
			}
			if res.Strategy != tt.strategy {
				t.Errorf("Strategy = %q, want %q", res.Strategy, tt.strategy)
			}
			if got := strings.Join(res.Tried, ","); got != tt.strategy {
				t.Errorf("Tried = %q, want %q", got, tt.strategy)
			}
			if res.Pages < tt.minPages {
				t.Errorf("Pages = %d, want at least %d", res.Pages, tt.minPages)
			}
			if tt.format == FormatPDF {
				if !bytes.HasPrefix(res.Data, []byte("%PDF")) {
					t.Error("artifact is not a PDF")
				}
			} else {
				img := decodeImage(t, res.Data)
				if b := img.Bounds(); b.Dx() != 800 || b.Dy() != int(tt.height) {
					t.Errorf("image size = %dx%d, want 800x%d", b.Dx(), b.Dy(), int(tt.height))
				}
			}
			if surf.Live() != 0 {
				t.Errorf("Live() = %d, want 0", surf.Live())
			}
		})
	}
}

func TestExportToDocument_CriticalFailure(t *testing.T) {
	t.Parallel()

	surf := domtest.New(domtest.Document("doc", 800, blocks(3, 300)...))
	surf.Fail = failAll
	e := newTestExporter(t, surf)

	res, err := e.ExportToDocument(context.Background(), "doc", "report.md")
	if !errors.Is(err, ErrCriticalComposerFailure) {
		t.Fatalf("error = %v, want ErrCriticalComposerFailure", err)
	}
	if res == nil || !res.Degraded {
		t.Fatalf("Result = %+v, want a degraded result", res)
	}
	if got := strings.Join(res.Tried, ","); got != "direct,chunked" {
		t.Errorf("Tried = %q, want direct,chunked", got)
	}
	if !bytes.HasPrefix(res.Data, []byte("%PDF")) {
		t.Error("error document is not a PDF")
	}
}

// ---------------------------------------------------------------------------
// TestExport - Sessions
// ---------------------------------------------------------------------------

func TestExport_RejectsConcurrentSession(t *testing.T) {
	t.Parallel()

	surf := domtest.New(domtest.Document("doc", 800, blocks(3, 300)...))
	surf.Block = true
	e := newTestExporter(t, surf)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, err := e.ExportToImage(ctx, "doc", "")
		done <- err
	}()

	deadline := time.Now().Add(5 * time.Second)
	for e.manager.Active() == nil {
		if time.Now().After(deadline) {
			t.Fatal("first export never started")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := e.ExportToDocument(context.Background(), "doc", ""); !errors.Is(err, ErrSessionBusy) {
		t.Errorf("second export error = %v, want ErrSessionBusy", err)
	}

	cancel()
	if err := <-done; !errors.Is(err, ErrCancelled) {
		t.Errorf("first export error = %v, want ErrCancelled", err)
	}
	if surf.Live() != 0 {
		t.Errorf("Live() = %d, want 0", surf.Live())
	}
}

func TestExport_Cancel(t *testing.T) {
	t.Parallel()

	surf := domtest.New(domtest.Document("doc", 800, blocks(5, 1000)...))
	s := testSettings()
	s.Image.Scale = 1
	log := &eventLog{}
	e := newTestExporter(t, surf, WithSettings(s), WithEventHandler(log.handle))

	var states []session.State
	surf.OnCapture = func(n int) {
		if n == 2 {
			states = append(states, e.manager.Active().State())
			e.Cancel()
		}
	}

	res, err := e.ExportToImage(context.Background(), "doc", "")
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("error = %v, want ErrCancelled", err)
	}
	if res != nil {
		t.Errorf("Result = %+v, want nil", res)
	}
	if len(states) != 1 || states[0] != session.Rendering {
		t.Errorf("state at cancel = %v, want [rendering]", states)
	}
	if surf.Captures() != 2 {
		t.Errorf("Captures() = %d, want 2", surf.Captures())
	}
	if surf.Live() != 0 {
		t.Errorf("Live() = %d, want 0", surf.Live())
	}
	last, ok := checkEvents(t, log.all()).(EventError)
	if !ok || !errors.Is(last.Err, ErrCancelled) {
		t.Errorf("last event = %#v, want EventError with ErrCancelled", last)
	}
	if e.manager.Active() != nil {
		t.Error("session still active after cancel")
	}
}

func TestExport_NothingToExport(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		root *dom.Node
		el   Element
	}{
		{name: "empty element", root: domtest.Document("doc", 800, 300), el: ""},
		{name: "zero height", root: domtest.Document("doc", 800), el: "doc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newTestExporter(t, domtest.New(tt.root))
			if _, err := e.ExportToImage(context.Background(), tt.el, ""); !errors.Is(err, ErrNothingToExport) {
				t.Errorf("error = %v, want ErrNothingToExport", err)
			}
		})
	}
}

func TestExport_RecoversPanic(t *testing.T) {
	t.Parallel()

	e := newTestExporter(t, panicSurface{domtest.New()})
	_, err := e.ExportToImage(context.Background(), "doc", "")
	if err == nil || !strings.Contains(err.Error(), "internal error") {
		t.Errorf("error = %v, want internal error", err)
	}
	if e.manager.Active() != nil {
		t.Error("session still active after panic")
	}
}

type panicSurface struct{ *domtest.Surface }

func (panicSurface) Snapshot(context.Context, string) (*dom.Node, error) {
	panic("layout exploded")
}

// ---------------------------------------------------------------------------
// TestExport - Options
// ---------------------------------------------------------------------------

func TestWithStrategy(t *testing.T) {
	t.Parallel()

	t.Run("forced strategy is tried first", func(t *testing.T) {
		t.Parallel()

		surf := domtest.New(domtest.Document("doc", 800, blocks(3, 300)...))
		e := newTestExporter(t, surf, WithStrategy(FormatPNG, "tiled"))

		res, err := e.ExportToImage(context.Background(), "doc", "")
		if err != nil {
			t.Fatalf("ExportToImage() unexpected error: %v", err)
		}
		if res.Strategy != "tiled" {
			t.Errorf("Strategy = %q, want tiled", res.Strategy)
		}
	})

	t.Run("unknown strategy is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := NewExporter(WithSurface(domtest.New()), WithStrategy(FormatPDF, "tiled"))
		if !errors.Is(err, ErrUnknownStrategy) {
			t.Errorf("NewExporter() error = %v, want ErrUnknownStrategy", err)
		}
	})
}

func TestWithOutputDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")
	surf := domtest.New(domtest.Document("doc", 800, blocks(3, 300)...))
	e := newTestExporter(t, surf, WithOutputDir(dir))

	res, err := e.ExportToImage(context.Background(), "doc", "docs/Résumé.md")
	if err != nil {
		t.Fatalf("ExportToImage() unexpected error: %v", err)
	}
	want := filepath.Join(dir, "Resume.png")
	if res.Filename != want {
		t.Errorf("Filename = %q, want %q", res.Filename, want)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	if !bytes.Equal(data, res.Data) {
		t.Error("written file differs from Result.Data")
	}
}

func TestLoadMarkdown(t *testing.T) {
	t.Parallel()

	e := newTestExporter(t, domtest.New())

	if _, err := e.LoadMarkdown(context.Background(), Input{Markdown: "  \n"}); !errors.Is(err, ErrNothingToExport) {
		t.Errorf("blank markdown error = %v, want ErrNothingToExport", err)
	}
	if _, err := e.LoadMarkdown(context.Background(), Input{Markdown: "# Title"}); !errors.Is(err, ErrNotLoadable) {
		t.Errorf("non-loader surface error = %v, want ErrNotLoadable", err)
	}
}

func TestLoadMarkdown_Loader(t *testing.T) {
	t.Parallel()

	surf := &loaderSurface{Surface: domtest.New(domtest.Document("root", 800, 300))}
	e := newTestExporter(t, surf, WithMermaidURL("-"))

	el, err := e.LoadMarkdown(context.Background(), Input{Markdown: "# Notes\n\nBody"})
	if err != nil {
		t.Fatalf("LoadMarkdown() unexpected error: %v", err)
	}
	if el != "root" {
		t.Errorf("Element = %q, want root", el)
	}
	if !strings.Contains(surf.html, `id="preview"`) || !strings.Contains(surf.html, "<title>Notes</title>") {
		t.Errorf("loaded page lacks preview or title:\n%s", surf.html)
	}
}

type loaderSurface struct {
	*domtest.Surface
	html string
}

func (s *loaderSurface) Load(_ context.Context, html string) (string, error) {
	s.html = html
	return "root", nil
}

// ---------------------------------------------------------------------------
// TestErrorImage
// ---------------------------------------------------------------------------

func TestWrapText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		in    string
		width int
		want  []string
	}{
		{name: "fits", in: "short text", width: 20, want: []string{"short text"}},
		{name: "breaks on spaces", in: "one two three", width: 7, want: []string{"one two", "three"}},
		{name: "splits long words", in: "abcdefghij", width: 4, want: []string{"abcd", "efgh", "ij"}},
		{name: "empty", in: "", width: 4, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := wrapText(tt.in, tt.width)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Errorf("wrapText(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
			}
		})
	}
}
