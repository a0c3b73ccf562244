package mdexport

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alnah/go-mdexport/internal/dom"
	"github.com/alnah/go-mdexport/internal/process"
)

// Viewport of the page holding the loaded document.
const (
	viewportWidth  = 1024
	viewportHeight = 768
)

// rootRef is the ref of the "#preview" element after Load.
const rootRef = "root"

// rodSurface implements Surface, Printer and Loader on a headless Chrome
// page driven by go-rod. Rod downloads Chromium on first run if not found.
type rodSurface struct {
	timeout time.Duration
	logger  *zap.Logger

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

func newRodSurface(timeout time.Duration, logger *zap.Logger) *rodSurface {
	return &rodSurface{timeout: timeout, logger: logger}
}

// ensureBrowser lazily launches and connects to the browser.
func (s *rodSurface) ensureBrowser() error {
	if s.browser != nil {
		return nil
	}

	l := launcher.New()

	// Use pre-installed browser if specified (Docker/containerized environments)
	if bin := os.Getenv("ROD_BROWSER_BIN"); bin != "" {
		l = l.Bin(bin)
	}

	// NoSandbox required for CI and containerized environments
	if os.Getenv("CI") == "true" || os.Getenv("ROD_NO_SANDBOX") == "1" || os.Getenv("ROD_BROWSER_BIN") != "" {
		l = l.NoSandbox(true)
	}
	u, err := l.Launch()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		s.kill(l)
		return fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}
	s.launcher = l
	s.browser = browser
	s.logger.Debug("browser started", zap.Int("pid", l.PID()))
	return nil
}

// Close releases the page, the browser and its process tree.
func (s *rodSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.browser != nil {
		err = s.browser.Close()
		s.browser = nil
		s.page = nil
	}
	if s.launcher != nil {
		s.kill(s.launcher)
		s.launcher = nil
	}
	return err
}

func (s *rodSurface) kill(l *launcher.Launcher) {
	if pid := l.PID(); pid > 0 {
		if err := process.KillProcessGroup(pid); err != nil {
			s.logger.Debug("browser process group already gone", zap.Error(err))
		}
	}
	l.Kill()
	l.Cleanup()
}

// Load displays html and returns the ref of its "#preview" element once
// images, fonts and diagrams are ready.
func (s *rodSurface) Load(ctx context.Context, html string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.ensureBrowser(); err != nil {
		return "", err
	}
	if s.page == nil {
		page, err := s.browser.Page(proto.TargetCreateTarget{})
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrPageCreate, err)
		}
		s.page = page
	}

	page := s.page.Context(ctx).Timeout(s.timeout)
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             viewportWidth,
		Height:            viewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	if err := page.SetDocumentContent(html); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	res, err := page.Eval(jsReady, rootRef)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	if !res.Value.Bool() {
		return "", fmt.Errorf("%w: no #preview element", ErrPageLoad)
	}
	return rootRef, nil
}

// Snapshot implements Surface.
func (s *rodSurface) Snapshot(ctx context.Context, ref string) (*dom.Node, error) {
	page, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	res, err := page.Eval(jsSnapshot, ref)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", ref, err)
	}
	if res.Value.Nil() {
		return nil, fmt.Errorf("snapshot %s: element not found", ref)
	}
	var root dom.Node
	if err := res.Value.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", ref, err)
	}
	return &root, nil
}

// Clone implements Surface. Copies are laid out side by side to the right
// of the document so several can coexist.
func (s *rodSurface) Clone(ctx context.Context, ref string, spec dom.CloneSpec) (string, error) {
	page, err := s.current(ctx)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	res, err := page.Eval(jsClone, ref, id, map[string]any{
		"width":      spec.Width,
		"height":     spec.Height,
		"offsetX":    spec.OffsetX,
		"offsetY":    spec.OffsetY,
		"children":   spec.Children,
		"background": spec.Background,
		"waitAssets": spec.WaitAssets,
	})
	if err != nil {
		return "", fmt.Errorf("clone %s: %w", ref, err)
	}
	if !res.Value.Bool() {
		return "", fmt.Errorf("clone %s: element not found", ref)
	}
	return id, nil
}

// Capture implements Surface with a clipped screenshot of the element.
func (s *rodSurface) Capture(ctx context.Context, ref string, opts dom.CaptureOptions) (image.Image, error) {
	page, err := s.current(ctx)
	if err != nil {
		return nil, err
	}

	res, err := page.Eval(jsBounds, ref, opts.NormalizeCSS)
	if err != nil {
		return nil, fmt.Errorf("measuring %s: %w", ref, err)
	}
	if res.Value.Nil() {
		return nil, fmt.Errorf("measuring %s: element not found", ref)
	}
	var box dom.Rect
	if err := res.Value.Unmarshal(&box); err != nil {
		return nil, fmt.Errorf("measuring %s: %w", ref, err)
	}
	defer func() {
		if _, err := page.Eval(jsUnnormalize); err != nil {
			s.logger.Debug("removing capture style failed", zap.Error(err))
		}
	}()

	if opts.Width > 0 {
		box.Width = opts.Width
	}
	if opts.Height > 0 {
		box.Height = opts.Height
	}
	if box.Width <= 0 || box.Height <= 0 {
		return nil, fmt.Errorf("capture %s: empty box %.0fx%.0f", ref, box.Width, box.Height)
	}
	scale := opts.Scale
	if scale <= 0 {
		scale = 1
	}

	data, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
		Clip: &proto.PageViewport{
			X:      box.X,
			Y:      box.Y,
			Width:  box.Width,
			Height: box.Height,
			Scale:  scale,
		},
		CaptureBeyondViewport: true,
	})
	if err != nil {
		return nil, fmt.Errorf("capture %s: %w", ref, err)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding capture %s: %w", ref, err)
	}
	return img, nil
}

// Remove implements Surface.
func (s *rodSurface) Remove(ctx context.Context, ref string) error {
	page, err := s.current(ctx)
	if err != nil {
		return err
	}
	if _, err := page.Eval(jsRemove, ref); err != nil {
		return fmt.Errorf("remove %s: %w", ref, err)
	}
	return nil
}

// Print implements Printer. The document is copied into a second page with
// the print stylesheet, so the loaded page is left untouched.
func (s *rodSurface) Print(ctx context.Context, ref string, opts dom.PrintOptions) ([]byte, error) {
	page, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	res, err := page.Eval(jsPrintable, ref)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	html := res.Value.Str()
	if html == "" {
		return nil, fmt.Errorf("print %s: element not found", ref)
	}

	s.mu.Lock()
	win, err := s.browser.Page(proto.TargetCreateTarget{})
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dom.ErrWindowUnavailable, err)
	}
	defer func() {
		if err := win.Close(); err != nil {
			s.logger.Debug("closing print window failed", zap.Error(err))
		}
	}()

	win = win.Context(ctx)
	if err := win.SetDocumentContent(html); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	if err := win.WaitLoad(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	if opts.CSS != "" {
		if _, err := win.Eval(jsAddStyle, opts.CSS); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
		}
	}

	req := &proto.PagePrintToPDF{
		PaperWidth:      floatPtr(mmToInches(opts.PaperWidthMM)),
		PaperHeight:     floatPtr(mmToInches(opts.PaperHeightMM)),
		MarginTop:       floatPtr(mmToInches(opts.MarginTopMM)),
		MarginRight:     floatPtr(mmToInches(opts.MarginRightMM)),
		MarginBottom:    floatPtr(mmToInches(opts.MarginBottomMM)),
		MarginLeft:      floatPtr(mmToInches(opts.MarginLeftMM)),
		PrintBackground: opts.PrintBackground,
	}
	if opts.MaxPages > 0 {
		req.PageRanges = "1-" + strconv.Itoa(opts.MaxPages)
	}
	reader, err := win.PDF(req)
	if err != nil {
		return nil, fmt.Errorf("print: %w", err)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("print: reading PDF stream: %w", err)
	}
	return data, nil
}

// current returns the loaded page bound to ctx.
func (s *rodSurface) current(ctx context.Context) (*rod.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	page := s.page
	s.mu.Unlock()
	if page == nil {
		return nil, ErrNothingToExport
	}
	return page.Context(ctx), nil
}

func mmToInches(mm float64) float64 {
	return mm / 25.4
}

// floatPtr returns a pointer to a float64 value.
func floatPtr(v float64) *float64 {
	return &v
}

// ---------------------------------------------------------------------------
// Page scripts
// ---------------------------------------------------------------------------

// Elements are addressed by their data-mdexport-ref attribute.

const jsReady = `async (ref) => {
	const root = document.getElementById("preview");
	if (!root) return false;
	root.setAttribute("data-mdexport-ref", ref);
	if (window.__mdexportReady) {
		try { await window.__mdexportReady; } catch (e) {}
	}
	if (document.fonts) await document.fonts.ready;
	await Promise.all(Array.from(root.querySelectorAll("img")).map(
		(img) => img.complete ? null : img.decode().catch(() => null)));
	return true;
}`

const jsSnapshot = `(ref) => {
	const root = document.querySelector('[data-mdexport-ref="' + ref + '"]');
	if (!root) return null;
	const origin = root.getBoundingClientRect();
	let seq = 0;
	const kind = (el) => {
		const tag = el.tagName.toLowerCase();
		if (tag === "img" || tag === "picture" || tag === "canvas" || tag === "video") return 1;
		if (tag === "svg" || el.classList.contains("mermaid") || el.classList.contains("graphviz")) return 2;
		if (tag === "table") return 3;
		if (tag === "pre") return 4;
		return 0;
	};
	const visit = (el, depth) => {
		const r = el.getBoundingClientRect();
		const n = {
			tag: el.tagName.toLowerCase(),
			kind: kind(el),
			box: { x: r.left - origin.left, y: r.top - origin.top, width: r.width, height: r.height },
			scrollWidth: el.scrollWidth,
			scrollHeight: el.scrollHeight,
		};
		if (depth === 1) {
			let id = el.getAttribute("data-mdexport-ref");
			if (!id) {
				id = ref + "-" + (seq++);
				el.setAttribute("data-mdexport-ref", id);
			}
			n.ref = id;
		}
		if (n.kind === 1 || n.kind === 2) return n;
		const kids = Array.from(el.children).map((c) => visit(c, depth + 1));
		if (kids.length) n.children = kids;
		return n;
	};
	const node = visit(root, 0);
	node.ref = ref;
	return node;
}`

const jsClone = `async (ref, id, spec) => {
	const src = document.querySelector('[data-mdexport-ref="' + ref + '"]');
	if (!src) return false;
	const copy = src.cloneNode(spec.children === null || spec.children === undefined);
	if (spec.children) {
		for (const child of spec.children) {
			const el = src.querySelector('[data-mdexport-ref="' + child + '"]');
			if (el) copy.appendChild(el.cloneNode(true));
		}
	}
	copy.removeAttribute("id");
	copy.removeAttribute("data-mdexport-ref");
	copy.querySelectorAll("[data-mdexport-ref]").forEach((el) => el.removeAttribute("data-mdexport-ref"));
	copy.style.margin = "0";
	if (spec.offsetX || spec.offsetY) {
		copy.style.transform = "translate(" + (-spec.offsetX) + "px," + (-spec.offsetY) + "px)";
	}

	const box = document.createElement("div");
	box.setAttribute("data-mdexport-clone", id);
	box.setAttribute("data-mdexport-ref", id);
	const left = window.__mdexportNextX || (document.documentElement.scrollWidth + 100);
	const width = spec.width || src.scrollWidth;
	box.style.cssText = "position:absolute;top:0;left:" + left + "px;overflow:hidden;";
	box.style.width = width + "px";
	if (spec.height) box.style.height = spec.height + "px";
	if (spec.background) box.style.background = spec.background;
	window.__mdexportNextX = left + width + 100;

	box.appendChild(copy);
	document.body.appendChild(box);

	if (spec.waitAssets) {
		await Promise.all(Array.from(box.querySelectorAll("img")).map(
			(img) => img.complete ? null : img.decode().catch(() => null)));
		if (document.fonts) await document.fonts.ready;
	}
	return true;
}`

const jsBounds = `(ref, css) => {
	const el = document.querySelector('[data-mdexport-ref="' + ref + '"]');
	if (!el) return null;
	if (css) {
		const style = document.createElement("style");
		style.id = "mdexport-capture";
		style.textContent = css;
		document.head.appendChild(style);
	}
	const r = el.getBoundingClientRect();
	return {
		x: r.left + window.scrollX,
		y: r.top + window.scrollY,
		width: Math.max(r.width, el.scrollWidth),
		height: Math.max(r.height, el.scrollHeight),
	};
}`

const jsUnnormalize = `() => {
	document.querySelectorAll("#mdexport-capture").forEach((el) => el.remove());
}`

const jsRemove = `(ref) => {
	const el = document.querySelector('[data-mdexport-clone="' + ref + '"]');
	if (el) el.remove();
	if (!document.querySelector("[data-mdexport-clone]")) window.__mdexportNextX = 0;
}`

const jsPrintable = `(ref) => {
	const el = document.querySelector('[data-mdexport-ref="' + ref + '"]');
	if (!el) return "";
	const doc = document.documentElement.cloneNode(true);
	doc.querySelectorAll("[data-mdexport-clone], script").forEach((n) => n.remove());
	const body = doc.querySelector("body");
	const main = el.cloneNode(true);
	body.replaceChildren(main);
	return "<!DOCTYPE html>" + doc.outerHTML;
}`

const jsAddStyle = `(css) => {
	const style = document.createElement("style");
	style.textContent = css;
	document.head.appendChild(style);
}`
