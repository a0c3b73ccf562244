package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/alnah/go-mdexport/internal/config"
)

// envPrefix marks variables read by the CLI.
const envPrefix = "MDEXPORT_"

// envConfig holds configuration from environment variables.
// Provides CI/CD-friendly overrides without requiring YAML files.
type envConfig struct {
	ConfigPath string        // MDEXPORT_CONFIG: config file name or path
	Style      string        // MDEXPORT_STYLE: style name, path, or CSS
	Timeout    time.Duration // MDEXPORT_TIMEOUT: capture timeout

	InputDir  string // MDEXPORT_INPUT_DIR: default input directory
	OutputDir string // MDEXPORT_OUTPUT_DIR: default output directory
	Format    string // MDEXPORT_FORMAT: png, pdf, both

	Strategy   string  // MDEXPORT_STRATEGY: forced strategy for every format
	PageSize   string  // MDEXPORT_PAGE_SIZE: a4, letter, legal
	Scale      float64 // MDEXPORT_SCALE: device pixels per CSS pixel
	MaxPages   int     // MDEXPORT_MAX_PAGES: PDF page cap
	MermaidURL string  // MDEXPORT_MERMAID_URL: mermaid script, "-" disables
}

// knownEnvVars lists valid MDEXPORT_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	"MDEXPORT_CONFIG":      true,
	"MDEXPORT_STYLE":       true,
	"MDEXPORT_TIMEOUT":     true,
	"MDEXPORT_INPUT_DIR":   true,
	"MDEXPORT_OUTPUT_DIR":  true,
	"MDEXPORT_FORMAT":      true,
	"MDEXPORT_STRATEGY":    true,
	"MDEXPORT_PAGE_SIZE":   true,
	"MDEXPORT_SCALE":       true,
	"MDEXPORT_MAX_PAGES":   true,
	"MDEXPORT_MERMAID_URL": true,
	"MDEXPORT_CONTAINER":   true, // read by doctor
}

// loadEnvConfig reads configuration from environment variables.
// Malformed numbers and durations are ignored.
func loadEnvConfig(getenv func(string) string) *envConfig {
	cfg := &envConfig{
		ConfigPath: getenv("MDEXPORT_CONFIG"),
		Style:      getenv("MDEXPORT_STYLE"),
		InputDir:   getenv("MDEXPORT_INPUT_DIR"),
		OutputDir:  getenv("MDEXPORT_OUTPUT_DIR"),
		Format:     getenv("MDEXPORT_FORMAT"),
		Strategy:   getenv("MDEXPORT_STRATEGY"),
		PageSize:   getenv("MDEXPORT_PAGE_SIZE"),
		MermaidURL: getenv("MDEXPORT_MERMAID_URL"),
	}

	if v := getenv("MDEXPORT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}
	if v := getenv("MDEXPORT_SCALE"); v != "" {
		if s, err := strconv.ParseFloat(v, 64); err == nil && s > 0 {
			cfg.Scale = s
		}
	}
	if v := getenv("MDEXPORT_MAX_PAGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxPages = n
		}
	}

	return cfg
}

// warnUnknownEnvVars prints warnings for unrecognized MDEXPORT_* variables.
func warnUnknownEnvVars(w io.Writer, environ []string) {
	for _, kv := range environ {
		if !strings.HasPrefix(kv, envPrefix) {
			continue
		}
		name, _, _ := strings.Cut(kv, "=")
		if !knownEnvVars[name] {
			fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
		}
	}
}

// applyEnvConfig applies environment variable values to config.
// Only sets values if the env var is set AND the config value is empty/zero.
// This ensures: CLI flags > env vars > config file > defaults
// (CLI flags are applied later by buildSettings). MDEXPORT_STRATEGY is
// resolved with --strategy by resolveStrategies.
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	if env.Style != "" && cfg.Style == "" {
		cfg.Style = env.Style
	}
	if env.Timeout > 0 && cfg.Advanced.Timeout == "" {
		cfg.Advanced.Timeout = env.Timeout.String()
	}

	if env.InputDir != "" && cfg.Input.DefaultDir == "" {
		cfg.Input.DefaultDir = env.InputDir
	}
	if env.OutputDir != "" && cfg.Output.DefaultDir == "" {
		cfg.Output.DefaultDir = env.OutputDir
	}
	if env.Format != "" && cfg.Output.Format == "" {
		cfg.Output.Format = env.Format
	}

	if env.PageSize != "" && cfg.Document.PageSize == "" {
		cfg.Document.PageSize = env.PageSize
	}
	if env.Scale > 0 {
		if cfg.Image.Scale == 0 {
			cfg.Image.Scale = env.Scale
		}
		if cfg.Document.Scale == 0 {
			cfg.Document.Scale = env.Scale
		}
	}
	if env.MaxPages > 0 && cfg.Document.MaxPages == 0 {
		cfg.Document.MaxPages = env.MaxPages
	}
	if env.MermaidURL != "" && cfg.Diagrams.MermaidURL == "" {
		cfg.Diagrams.MermaidURL = env.MermaidURL
	}
}
