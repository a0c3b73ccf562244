package mdexport

import (
	"time"

	"go.uber.org/zap"

	"github.com/alnah/go-mdexport/internal/session"
	"github.com/alnah/go-mdexport/internal/strategy"
)

// Option configures an Exporter.
type Option func(*Exporter)

// SessionManager enforces one export at a time. Exporters sharing a
// manager share that limit.
type SessionManager = session.Manager

// NewSessionManager returns an idle SessionManager.
func NewSessionManager() *SessionManager {
	return session.NewManager()
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithSurface sets the rendering surface. The default is a headless Chrome
// surface started on first use.
func WithSurface(s Surface) Option {
	return func(e *Exporter) {
		e.surface = s
	}
}

// WithSettings replaces the default settings. The value is copied.
func WithSettings(s *Settings) Option {
	return func(e *Exporter) {
		if s != nil {
			cp := *s
			e.settings = &cp
		}
	}
}

// WithTimeout sets the capture timeout shared by the retries of one capture.
// Panics if d is not positive.
func WithTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("mdexport: timeout must be positive")
	}
	return func(e *Exporter) {
		e.settings.Advanced.Timeout = d
	}
}

// WithEventHandler receives progress, error and success events.
func WithEventHandler(h EventHandler) Option {
	return func(e *Exporter) {
		e.onEvent = h
	}
}

// WithStrategy forces the first strategy tried for format, bypassing
// selection. Its fallback chain still applies. "auto" or "" restores
// selection.
func WithStrategy(format Format, name string) Option {
	return func(e *Exporter) {
		e.forced[format] = name
	}
}

// WithSessionManager shares a session manager between exporters.
func WithSessionManager(m *SessionManager) Option {
	return func(e *Exporter) {
		if m != nil {
			e.manager = m
		}
	}
}

// WithArtifactWriter persists each artifact after a successful or degraded
// export. Without a writer the artifact is only returned in Result.Data.
func WithArtifactWriter(w ArtifactWriter) Option {
	return func(e *Exporter) {
		e.writer = w
	}
}

// WithOutputDir writes artifacts into dir.
func WithOutputDir(dir string) Option {
	return func(e *Exporter) {
		e.writer = &DirWriter{Dir: dir}
	}
}

// WithAssetPath sets a directory whose styles/ and templates/ override the
// embedded assets.
func WithAssetPath(path string) Option {
	return func(e *Exporter) {
		e.assetPath = path
	}
}

// WithStyle selects the viewer style used by LoadMarkdown: a style name,
// a path to a CSS file, or CSS content.
func WithStyle(style string) Option {
	return func(e *Exporter) {
		e.styleInput = style
	}
}

// WithMermaidURL overrides the mermaid script loaded for diagram blocks.
// "-" disables in-page mermaid rendering.
func WithMermaidURL(url string) Option {
	return func(e *Exporter) {
		e.mermaidURL = url
	}
}

// Strategies lists the names WithStrategy accepts for format, sorted.
// "auto" is always accepted as well. Unknown formats yield nil.
func Strategies(format Format) []string {
	sf, err := format.strategyFormat()
	if err != nil {
		return nil
	}
	names := strategy.Names(sf)
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return out
}
