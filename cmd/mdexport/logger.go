package main

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	mdexport "github.com/alnah/go-mdexport"
)

// newLogger writes human-readable logs to w. Warnings show by default,
// debug with verbose, errors only with quiet.
func newLogger(w io.Writer, quiet, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	switch {
	case verbose:
		level = zapcore.DebugLevel
	case quiet:
		level = zapcore.ErrorLevel
	}

	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	enc.CallerKey = ""
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	if isTerminal(w) {
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), level)
	return zap.New(core)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) // #nosec G115 -- file descriptors fit in int
}

// progressLogger logs export events at debug level.
func progressLogger(logger *zap.Logger) mdexport.EventHandler {
	return func(ev mdexport.Event) {
		switch e := ev.(type) {
		case mdexport.EventProgress:
			logger.Debug(e.Message,
				zap.String("format", string(e.Format)),
				zap.Float64("percent", e.Percentage),
				zap.Duration("elapsed", e.Elapsed))
		case mdexport.EventError:
			logger.Debug("export ended with error", zap.String("session", e.Session), zap.Error(e.Err))
		case mdexport.EventSuccess:
			logger.Debug("export succeeded", zap.String("session", e.Session), zap.String("file", e.Filename))
		}
	}
}
