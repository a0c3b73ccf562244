package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	mdexport "github.com/alnah/go-mdexport"
	"github.com/alnah/go-mdexport/internal/assets"
	"github.com/alnah/go-mdexport/internal/config"
	"github.com/alnah/go-mdexport/internal/hints"
)

// Sentinel errors for CLI operations.
var (
	ErrNoInput          = errors.New("no input specified")
	ErrNoMarkdown       = errors.New("no markdown files found")
	ErrReadMarkdown     = errors.New("failed to read markdown file")
	ErrWriteArtifact    = errors.New("failed to write artifact")
	ErrInvalidExtension = errors.New("file must have .md or .markdown extension")
)

// FileToExport represents a single markdown file to process.
type FileToExport struct {
	InputPath string
	OutputDir string
}

// ExportResult holds the outcome of one file in one format.
type ExportResult struct {
	InputPath  string
	OutputPath string
	Format     mdexport.Format
	Strategy   string
	Pages      int
	Skipped    int // tiles and sections left out
	Degraded   bool
	Err        error
	Duration   time.Duration
}

// exportPlan is everything resolved before the first export.
type exportPlan struct {
	files      []FileToExport
	formats    []mdexport.Format
	settings   *mdexport.Settings
	strategies map[mdexport.Format]string
	cfg        *config.Config
	style      string
	assetPath  string
}

// runExport resolves options, exports every discovered file, prints the
// results and returns the exit code.
func runExport(ctx context.Context, f *exportFlags, args []string, env *Environment) int {
	logger := newLogger(env.Stderr, f.common.quiet, f.common.verbose)
	defer func() { _ = logger.Sync() }()

	plan, err := planExport(f, args, env)
	if err != nil {
		fmt.Fprintf(env.Stderr, "error: %v%s\n", err, hintFor(err))
		return exitCodeFor(err)
	}

	opts := []mdexport.Option{
		mdexport.WithLogger(logger),
		mdexport.WithSettings(plan.settings),
		mdexport.WithStyle(plan.style),
		mdexport.WithAssetPath(plan.assetPath),
		mdexport.WithMermaidURL(plan.cfg.Diagrams.MermaidURL),
		mdexport.WithEventHandler(progressLogger(logger)),
	}
	for format, name := range plan.strategies {
		if name != "" {
			opts = append(opts, mdexport.WithStrategy(format, name))
		}
	}

	exp, err := env.NewExporter(opts...)
	if err != nil {
		fmt.Fprintf(env.Stderr, "error: %v%s\n", err, hintFor(err))
		return exitCodeFor(err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			logger.Warn("closing browser", zap.Error(err))
		}
	}()

	stop := context.AfterFunc(ctx, func() { exp.Cancel() })
	defer stop()

	results := exportBatch(ctx, exp, plan)
	printResults(results, plan.settings, f.common.quiet, f.common.verbose, env)
	if ctx.Err() != nil {
		fmt.Fprintln(env.Stderr, "export cancelled")
		return ExitCancelled
	}
	return batchExitCode(results)
}

// planExport layers flags, environment and config into an exportPlan.
func planExport(f *exportFlags, args []string, env *Environment) (*exportPlan, error) {
	if len(args) > 1 {
		return nil, fmt.Errorf("%w: expected one input, got %d", ErrUsage, len(args))
	}

	envCfg := loadEnvConfig(env.Getenv)
	warnUnknownEnvVars(env.Stderr, env.Environ())

	cfg := config.DefaultConfig()
	configName := f.common.config
	if configName == "" {
		configName = envCfg.ConfigPath
	}
	if configName != "" {
		loaded, err := config.LoadConfig(configName)
		if err != nil {
			if errors.Is(err, config.ErrConfigNotFound) && !strings.ContainsAny(configName, "/\\") {
				return nil, fmt.Errorf("%w%s", err, hints.ForConfigNotFound(config.SearchPaths(configName)))
			}
			return nil, err
		}
		cfg = loaded
	}
	applyEnvConfig(envCfg, cfg)

	formats, err := resolveFormats(f, cfg)
	if err != nil {
		return nil, err
	}
	shared := f.strategy
	if shared == "" {
		shared = envCfg.Strategy
	}
	strategies, err := resolveStrategies(formats, shared, cfg)
	if err != nil {
		return nil, err
	}
	settings, err := buildSettings(f, cfg)
	if err != nil {
		return nil, err
	}

	inputPath := cfg.Input.DefaultDir
	if len(args) == 1 {
		inputPath = args[0]
	}
	if inputPath == "" {
		return nil, ErrNoInput
	}
	outputDir := cfg.Output.DefaultDir
	if f.output.output != "" {
		outputDir = f.output.output
	}
	files, err := discoverFiles(inputPath, outputDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoMarkdown, inputPath)
	}

	plan := &exportPlan{
		files:      files,
		formats:    formats,
		settings:   settings,
		strategies: strategies,
		cfg:        cfg,
		style:      cfg.Style,
		assetPath:  cfg.Assets.BasePath,
	}
	if f.style.style != "" {
		plan.style = f.style.style
	}
	if f.style.assets != "" {
		plan.assetPath = f.style.assets
	}
	return plan, nil
}

// discoverFiles finds all markdown files to export. Files found under a
// directory keep their relative location below outputDir.
func discoverFiles(inputPath, outputDir string) ([]FileToExport, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		if err := validateMarkdownExtension(inputPath); err != nil {
			return nil, err
		}
		return []FileToExport{{InputPath: inputPath, OutputDir: resolveOutputDir(inputPath, outputDir, "")}}, nil
	}

	var files []FileToExport
	err = filepath.WalkDir(inputPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("scanning %s: %w", path, err)
		}
		if d.IsDir() || !isMarkdown(path) {
			return nil
		}
		files = append(files, FileToExport{InputPath: path, OutputDir: resolveOutputDir(path, outputDir, inputPath)})
		return nil
	})

	return files, err
}

// resolveOutputDir determines where the artifacts of a markdown file go.
func resolveOutputDir(inputPath, outputDir, baseInputDir string) string {
	if outputDir == "" {
		return filepath.Dir(inputPath)
	}
	if baseInputDir != "" {
		if rel, err := filepath.Rel(baseInputDir, inputPath); err == nil {
			return filepath.Join(outputDir, filepath.Dir(rel))
		}
	}
	return outputDir
}

// validateMarkdownExtension checks that the file has a .md or .markdown extension.
func validateMarkdownExtension(path string) error {
	if !isMarkdown(path) {
		return fmt.Errorf("%w: got %q", ErrInvalidExtension, filepath.Ext(path))
	}
	return nil
}

func isMarkdown(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".markdown"
}

// exportBatch exports files one at a time; the exporter runs a single
// session. A cancelled context stops the batch.
func exportBatch(ctx context.Context, exp Exporter, plan *exportPlan) []ExportResult {
	results := make([]ExportResult, 0, len(plan.files)*len(plan.formats))
	for _, file := range plan.files {
		if ctx.Err() != nil {
			break
		}
		results = append(results, exportFile(ctx, exp, file, plan.formats)...)
	}
	return results
}

// exportFile loads one markdown file and exports it in every format.
func exportFile(ctx context.Context, exp Exporter, file FileToExport, formats []mdexport.Format) []ExportResult {
	start := time.Now()
	failAll := func(err error) []ExportResult {
		out := make([]ExportResult, len(formats))
		for i, format := range formats {
			out[i] = ExportResult{InputPath: file.InputPath, Format: format, Err: err, Duration: time.Since(start)}
		}
		return out
	}

	content, err := os.ReadFile(file.InputPath) // #nosec G304 -- discovered path
	if err != nil {
		return failAll(fmt.Errorf("%w: %v", ErrReadMarkdown, err))
	}

	base := filepath.Base(file.InputPath)
	el, err := exp.LoadMarkdown(ctx, mdexport.Input{
		Markdown:  string(content),
		SourceDir: filepath.Dir(file.InputPath),
		Title:     strings.TrimSuffix(base, filepath.Ext(base)),
	})
	if err != nil {
		return failAll(err)
	}

	writer := &mdexport.DirWriter{Dir: file.OutputDir}
	results := make([]ExportResult, 0, len(formats))
	for _, format := range formats {
		results = append(results, exportFormat(ctx, exp, writer, el, file.InputPath, format))
		if ctx.Err() != nil {
			break
		}
	}
	return results
}

// exportFormat runs one export and writes its artifact, degraded or not.
func exportFormat(ctx context.Context, exp Exporter, w mdexport.ArtifactWriter, el mdexport.Element, input string, format mdexport.Format) ExportResult {
	start := time.Now()
	result := ExportResult{InputPath: input, Format: format}

	var (
		res *mdexport.Result
		err error
	)
	if format == mdexport.FormatPNG {
		res, err = exp.ExportToImage(ctx, el, filepath.Base(input))
	} else {
		res, err = exp.ExportToDocument(ctx, el, filepath.Base(input))
	}
	result.Err = err
	if res != nil {
		result.Strategy = res.Strategy
		result.Pages = res.Pages
		result.Skipped = res.TilesSkipped + res.SectionsSkipped
		result.Degraded = res.Degraded
		path, werr := w.WriteArtifact(context.WithoutCancel(ctx), res.Filename, res.Data)
		if werr != nil {
			result.Err = errors.Join(err, fmt.Errorf("%w: %v", ErrWriteArtifact, werr))
		} else {
			result.OutputPath = path
		}
	}
	result.Duration = time.Since(start)
	return result
}

// batchExitCode maps the batch outcome to an exit code. Cancellation wins;
// otherwise the first failure decides.
func batchExitCode(results []ExportResult) int {
	code := ExitSuccess
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		c := exitCodeFor(r.Err)
		if c == ExitCancelled {
			return c
		}
		if code == ExitSuccess {
			code = c
		}
	}
	return code
}

// ResultSummary holds the count of succeeded and failed exports.
type ResultSummary struct {
	Succeeded int
	Failed    int
}

// countResults tallies succeeded and failed exports.
func countResults(results []ExportResult) ResultSummary {
	var summary ResultSummary
	for _, r := range results {
		if r.Err != nil {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
	}
	return summary
}

// printResults outputs export results.
func printResults(results []ExportResult, settings *mdexport.Settings, quiet, verbose bool, env *Environment) {
	summary := countResults(results)

	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(env.Stderr, "FAILED %s (%s): %v%s\n", r.InputPath, r.Format, r.Err, hintFor(r.Err))
			if r.Degraded && r.OutputPath != "" {
				fmt.Fprintf(env.Stderr, "  fallback written to %s\n", r.OutputPath)
			}
			continue
		}

		if r.Format == mdexport.FormatPDF && r.Pages >= settings.Document.MaxPages {
			fmt.Fprintf(env.Stderr, "warning: %s reached the page limit (%d pages)%s\n",
				r.OutputPath, r.Pages, hints.ForTruncated(settings.Document.MaxPages))
		}

		if quiet {
			continue
		}

		if verbose {
			fmt.Fprintf(env.Stdout, "%s -> %s [%s] (%v)\n",
				r.InputPath, r.OutputPath, r.Strategy, r.Duration.Round(time.Millisecond))
		} else {
			fmt.Fprintf(env.Stdout, "Created %s\n", r.OutputPath)
		}
		if r.Skipped > 0 {
			fmt.Fprintf(env.Stdout, "  %d part(s) could not be rendered and were left blank\n", r.Skipped)
		}
	}

	if !quiet && len(results) > 1 {
		fmt.Fprintf(env.Stdout, "\n%d succeeded, %d failed\n", summary.Succeeded, summary.Failed)
	}
}

// hintFor returns an actionable hint for err, or "".
func hintFor(err error) string {
	switch {
	case errors.Is(err, mdexport.ErrCancelled):
		return ""
	case errors.Is(err, mdexport.ErrBrowserConnect), errors.Is(err, mdexport.ErrPageCreate):
		return hints.ForBrowserConnect()
	case errors.Is(err, mdexport.ErrPopupBlocked):
		return hints.ForPopupBlocked()
	case errors.Is(err, context.DeadlineExceeded):
		return hints.ForTimeout()
	case errors.Is(err, mdexport.ErrRasterizationFailed):
		return hints.ForRasterization()
	case errors.Is(err, mdexport.ErrStyleNotFound):
		return hints.ForStyleNotFound(assets.EmbeddedStyles())
	case errors.Is(err, ErrWriteArtifact):
		return hints.ForOutputDirectory()
	}
	return ""
}
