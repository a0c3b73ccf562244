package main

import (
	"errors"
	"io"
	"testing"
	"time"

	mdexport "github.com/alnah/go-mdexport"
	"github.com/alnah/go-mdexport/internal/config"
)

func mustParse(t *testing.T, args ...string) *exportFlags {
	t.Helper()
	f, _, err := parseExportFlags(args, io.Discard)
	if err != nil {
		t.Fatalf("parseExportFlags(%v) error = %v", args, err)
	}
	return f
}

// ---------------------------------------------------------------------------
// TestResolveFormats - Flag, config, default
// ---------------------------------------------------------------------------

func TestResolveFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		cfg     string
		want    []mdexport.Format
		wantErr error
	}{
		{"default is pdf", nil, "", []mdexport.Format{mdexport.FormatPDF}, nil},
		{"config png", nil, "png", []mdexport.Format{mdexport.FormatPNG}, nil},
		{"flag wins over config", []string{"--format", "both"}, "png", []mdexport.Format{mdexport.FormatPNG, mdexport.FormatPDF}, nil},
		{"flag is case insensitive", []string{"--format", "PDF"}, "", []mdexport.Format{mdexport.FormatPDF}, nil},
		{"unknown format", []string{"--format", "gif"}, "", nil, ErrInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			cfg.Output.Format = tt.cfg
			got, err := resolveFormats(mustParse(t, tt.args...), cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("formats = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("formats = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestResolveStrategies - Shared and per-format values
// ---------------------------------------------------------------------------

func TestResolveStrategies(t *testing.T) {
	t.Parallel()

	both := []mdexport.Format{mdexport.FormatPNG, mdexport.FormatPDF}
	cfg := config.DefaultConfig()
	cfg.Strategy.PNG = "tiled"
	cfg.Strategy.PDF = "chunked"

	tests := []struct {
		name    string
		formats []mdexport.Format
		shared  string
		want    map[mdexport.Format]string
		wantErr bool
	}{
		{
			name:    "config per format",
			formats: both,
			want:    map[mdexport.Format]string{mdexport.FormatPNG: "tiled", mdexport.FormatPDF: "chunked"},
		},
		{
			name:    "auto defers to config",
			formats: both,
			shared:  "auto",
			want:    map[mdexport.Format]string{mdexport.FormatPNG: "tiled", mdexport.FormatPDF: "chunked"},
		},
		{
			name:    "shared name valid for both",
			formats: both,
			shared:  "Smart",
			want:    map[mdexport.Format]string{mdexport.FormatPNG: "smart", mdexport.FormatPDF: "smart"},
		},
		{
			name:    "shared name valid for one format only",
			formats: both,
			shared:  "css-print",
			want:    map[mdexport.Format]string{mdexport.FormatPDF: "css-print"},
		},
		{
			name:    "shared name valid for no requested format",
			formats: []mdexport.Format{mdexport.FormatPDF},
			shared:  "tiled",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := resolveStrategies(tt.formats, tt.shared, cfg)
			if tt.wantErr {
				if !errors.Is(err, mdexport.ErrUnknownStrategy) {
					t.Errorf("error = %v, want ErrUnknownStrategy", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("strategies = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("strategies[%s] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestBuildSettings - Defaults, config, flags
// ---------------------------------------------------------------------------

func TestBuildSettings_Layers(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Image.TileSize = 1024
	cfg.Document.PageSize = "letter"
	cfg.Document.MaxPages = 40
	cfg.Advanced.Timeout = "2m"
	cfg.Advanced.ChunkDelay = "0s"

	f := mustParse(t, "--scale", "1", "--max-pages", "10", "--orientation", "landscape", "--retries", "5")

	s, err := buildSettings(f, cfg)
	if err != nil {
		t.Fatalf("buildSettings() error = %v", err)
	}

	def := mdexport.DefaultSettings()
	if s.Image.Quality != def.Image.Quality {
		t.Errorf("Image.Quality = %v, want default %v", s.Image.Quality, def.Image.Quality)
	}
	if s.Image.TileSize != 1024 {
		t.Errorf("Image.TileSize = %d, want config 1024", s.Image.TileSize)
	}
	if s.Image.Scale != 1 || s.Document.Scale != 1 {
		t.Errorf("scale = %v/%v, want flag 1 for both", s.Image.Scale, s.Document.Scale)
	}
	if s.Document.PageSize != "letter" || s.Document.Orientation != "landscape" {
		t.Errorf("page = %s %s, want letter landscape", s.Document.PageSize, s.Document.Orientation)
	}
	if s.Document.MaxPages != 10 {
		t.Errorf("MaxPages = %d, flag should win over config", s.Document.MaxPages)
	}
	if s.Advanced.Timeout != 2*time.Minute {
		t.Errorf("Timeout = %v, want 2m", s.Advanced.Timeout)
	}
	if s.Advanced.ChunkDelay != 0 {
		t.Errorf("ChunkDelay = %v, explicit 0s should override the default", s.Advanced.ChunkDelay)
	}
	if s.Advanced.Retries != 5 {
		t.Errorf("Retries = %d, want 5", s.Advanced.Retries)
	}
}

func TestBuildSettings_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"scale out of range", []string{"--scale", "9"}, mdexport.ErrInvalidScale},
		{"quality zero", []string{"--quality", "0"}, mdexport.ErrInvalidQuality},
		{"unknown page size", []string{"--page-size", "a0"}, mdexport.ErrInvalidPageSize},
		{"margin too large", []string{"--margin", "80"}, mdexport.ErrInvalidMargin},
		{"zero retries", []string{"--retries", "0"}, mdexport.ErrInvalidLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := buildSettings(mustParse(t, tt.args...), config.DefaultConfig())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
