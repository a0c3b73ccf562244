package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/launcher"

	mdexport "github.com/alnah/go-mdexport"
	"github.com/alnah/go-mdexport/internal/assets"
	"github.com/alnah/go-mdexport/internal/pipeline"
)

// Doctor statuses.
const (
	statusReady    = "ready"
	statusWarnings = "warnings"
	statusErrors   = "errors"
)

// doctorResult holds all diagnostic information.
type doctorResult struct {
	Status   string     `json:"status"`
	Chrome   chromeInfo `json:"chrome"`
	Env      envInfo    `json:"environment"`
	Render   renderInfo `json:"rendering"`
	System   systemInfo `json:"system"`
	Warnings []string   `json:"warnings,omitempty"`
	Errors   []string   `json:"errors,omitempty"`
}

// chromeInfo holds Chrome/Chromium detection results.
type chromeInfo struct {
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
	Sandbox bool   `json:"sandbox"`
}

// envInfo holds environment detection results.
type envInfo struct {
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	Container     bool   `json:"container"`
	ContainerHint string `json:"container_hint,omitempty"`
	CI            bool   `json:"ci"`
	NoSandbox     string `json:"rod_no_sandbox"`
	BrowserBin    string `json:"rod_browser_bin"`
}

// renderInfo describes the export engine: diagram support, strategies and
// the default limits that drive strategy selection.
type renderInfo struct {
	Graphviz   bool                `json:"graphviz"`
	Strategies map[string][]string `json:"strategies"`
	MaxCanvas  int                 `json:"max_canvas"`
	TileSize   int                 `json:"tile_size"`
	MaxPages   int                 `json:"max_pages"`
}

// systemInfo holds system check results.
type systemInfo struct {
	TempWritable bool     `json:"temp_writable"`
	Styles       []string `json:"styles"`
}

// doctorDeps are the probes doctor runs, swappable in tests.
type doctorDeps struct {
	getenv     func(string) string
	lookPath   func() (string, bool)
	version    func(path string) (string, error)
	stat       func(path string) error
	renderDOT  func(ctx context.Context, src []byte) ([]byte, error)
	tempDir    string
	dockerFile string
}

func defaultDoctorDeps(getenv func(string) string) doctorDeps {
	return doctorDeps{
		getenv:   getenv,
		lookPath: launcher.LookPath,
		version: func(path string) (string, error) {
			out, err := exec.Command(path, "--version").Output() // #nosec G204 -- browser path from env or rod lookup
			return strings.TrimSpace(string(out)), err
		},
		stat: func(path string) error {
			_, err := os.Stat(path)
			return err
		},
		renderDOT:  pipeline.GraphvizRenderer{}.RenderDOT,
		tempDir:    os.TempDir(),
		dockerFile: "/.dockerenv",
	}
}

// runDoctorCmd executes the doctor command and returns an exit code.
// Exit codes: 0 = OK (including warnings), 1 = errors found.
func runDoctorCmd(args []string, env *Environment) int {
	jsonOutput := false
	for _, arg := range args {
		switch arg {
		case "--json":
			jsonOutput = true
		case "-h", "--help":
			printDoctorUsage(env.Stdout)
			return ExitSuccess
		default:
			fmt.Fprintf(env.Stderr, "error: unknown doctor argument %q\n", arg)
			return ExitUsage
		}
	}

	result := runDoctor(defaultDoctorDeps(env.Getenv))

	if jsonOutput {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(env.Stdout, result)
	}

	if result.Status == statusErrors {
		return ExitGeneral
	}
	return ExitSuccess
}

// runDoctor performs all diagnostic checks.
func runDoctor(deps doctorDeps) *doctorResult {
	result := &doctorResult{
		Status: statusReady,
		Env: envInfo{
			OS:         runtime.GOOS,
			Arch:       runtime.GOARCH,
			NoSandbox:  deps.getenv("ROD_NO_SANDBOX"),
			BrowserBin: deps.getenv("ROD_BROWSER_BIN"),
		},
	}

	checkChrome(result, deps)
	checkEnvironment(result, deps)
	checkRendering(result, deps)
	checkSystem(result, deps)

	if len(result.Errors) > 0 {
		result.Status = statusErrors
	} else if len(result.Warnings) > 0 {
		result.Status = statusWarnings
	}

	return result
}

// checkChrome detects Chrome/Chromium installation.
func checkChrome(result *doctorResult, deps doctorDeps) {
	chromePath := result.Env.BrowserBin

	if chromePath == "" {
		var found bool
		chromePath, found = deps.lookPath()
		if !found {
			result.Warnings = append(result.Warnings,
				"Chrome/Chromium not found locally; rod will download Chromium on first export. Set ROD_BROWSER_BIN to use an installed browser")
			return
		}
	}

	if err := deps.stat(chromePath); err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Chrome not found at %s", chromePath))
		return
	}

	result.Chrome.Found = true
	result.Chrome.Path = chromePath

	if v, err := deps.version(chromePath); err == nil {
		result.Chrome.Version = v
	} else {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Could not get Chrome version: %v", err))
	}

	result.Chrome.Sandbox = result.Env.NoSandbox != "1" &&
		result.Env.BrowserBin == "" &&
		deps.getenv("CI") != "true"
}

// checkEnvironment detects container and CI environments.
func checkEnvironment(result *doctorResult, deps doctorDeps) {
	result.Env.Container, result.Env.ContainerHint = isContainer(deps)

	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"} {
		if deps.getenv(v) != "" {
			result.Env.CI = true
			break
		}
	}

	if (result.Env.Container || result.Env.CI) && result.Chrome.Sandbox {
		result.Warnings = append(result.Warnings,
			"Container/CI detected but the Chrome sandbox is enabled. Set ROD_NO_SANDBOX=1")
	}
}

// isContainer detects if running in a container environment.
// Returns (isContainer, hint) where hint indicates which signal was detected.
func isContainer(deps doctorDeps) (bool, string) {
	if deps.getenv("MDEXPORT_CONTAINER") == "1" {
		return true, "MDEXPORT_CONTAINER=1"
	}
	if deps.dockerFile != "" && deps.stat(deps.dockerFile) == nil {
		return true, deps.dockerFile
	}
	if v := deps.getenv("container"); v != "" {
		return true, "container=" + v
	}
	if deps.getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true, "KUBERNETES_SERVICE_HOST"
	}
	return false, ""
}

// probeDOT is rendered to confirm the Graphviz runtime loads.
const probeDOT = "digraph doctor { a -> b }"

// checkRendering probes Graphviz and reports the strategy catalogue and the
// default limits.
func checkRendering(result *doctorResult, deps doctorDeps) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if svg, err := deps.renderDOT(ctx, []byte(probeDOT)); err != nil || len(svg) == 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Graphviz probe failed, dot diagrams will render as code blocks: %v", err))
	} else {
		result.Render.Graphviz = true
	}

	result.Render.Strategies = map[string][]string{
		string(mdexport.FormatPNG): mdexport.Strategies(mdexport.FormatPNG),
		string(mdexport.FormatPDF): mdexport.Strategies(mdexport.FormatPDF),
	}
	def := mdexport.DefaultSettings()
	result.Render.MaxCanvas = def.Image.MaxCanvas
	result.Render.TileSize = def.Image.TileSize
	result.Render.MaxPages = def.Document.MaxPages
}

// checkSystem verifies the temp directory and the embedded styles.
func checkSystem(result *doctorResult, deps doctorDeps) {
	testFile := filepath.Join(deps.tempDir, "mdexport-doctor-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Temp directory not writable: %s", deps.tempDir))
	} else {
		_ = os.Remove(testFile)
		result.System.TempWritable = true
	}

	result.System.Styles = assets.EmbeddedStyles()
	if len(result.System.Styles) == 0 {
		result.Errors = append(result.Errors, "No embedded styles found")
	}
}

// Report line markers.
const (
	markOK    = "[OK]"
	markWarn  = "[WARN]"
	markError = "[ERROR]"
)

// printDoctorResult outputs human-readable diagnostic results.
func printDoctorResult(w io.Writer, r *doctorResult) {
	line := func(mark, format string, args ...any) {
		fmt.Fprintf(w, "  %s %s\n", mark, fmt.Sprintf(format, args...))
	}
	section := func(title string, body func()) {
		fmt.Fprintln(w, title)
		body()
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "mdexport doctor")
	fmt.Fprintln(w)

	section("Browser", func() {
		if !r.Chrome.Found {
			line(markWarn, "Not found locally")
			return
		}
		line(markOK, "Found at %s", r.Chrome.Path)
		if r.Chrome.Version != "" {
			line(markOK, "Version: %s", r.Chrome.Version)
		}
		line(markOK, "Sandbox: %s", enabled(r.Chrome.Sandbox))
	})

	section("Environment", func() {
		line(markOK, "Platform: %s/%s", r.Env.OS, r.Env.Arch)
		if r.Env.Container {
			line(markOK, "Container: detected (%s)", r.Env.ContainerHint)
		}
		if r.Env.CI {
			line(markOK, "CI: detected")
		}
	})

	section("Rendering", func() {
		if r.Render.Graphviz {
			line(markOK, "Graphviz: available")
		} else {
			line(markWarn, "Graphviz: unavailable, dot diagrams stay as code")
		}
		for _, f := range []string{string(mdexport.FormatPNG), string(mdexport.FormatPDF)} {
			line(markOK, "Strategies (%s): %s", f, strings.Join(r.Render.Strategies[f], ", "))
		}
		line(markOK, "Limits: canvas %d px, tile %d px, %d pages",
			r.Render.MaxCanvas, r.Render.TileSize, r.Render.MaxPages)
	})

	section("System", func() {
		if r.System.TempWritable {
			line(markOK, "Temp directory: writable")
		} else {
			line(markError, "Temp directory: not writable")
		}
		if len(r.System.Styles) > 0 {
			line(markOK, "Styles: %s", strings.Join(r.System.Styles, ", "))
		}
	})

	if len(r.Warnings) > 0 {
		section("Warnings:", func() {
			for _, warn := range r.Warnings {
				line(markWarn, "%s", warn)
			}
		})
	}
	if len(r.Errors) > 0 {
		section("Errors:", func() {
			for _, e := range r.Errors {
				line(markError, "%s", e)
			}
		})
	}

	switch r.Status {
	case statusReady:
		fmt.Fprintln(w, "Status: Ready to export")
	case statusWarnings:
		fmt.Fprintln(w, "Status: Ready with warnings")
	case statusErrors:
		fmt.Fprintln(w, "Status: Not ready (see errors above)")
	}
}

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
