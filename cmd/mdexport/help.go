package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mdexport [flags] <file.md|dir>")
	fmt.Fprintln(w, "       mdexport <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Export rendered markdown to PNG images and PDF documents.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  doctor     Check the browser and environment")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'mdexport help export' for the export flags.")
}

// printExportUsage prints usage for the export command.
func printExportUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mdexport [flags] <file.md|dir>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Export markdown files to PNG and/or PDF. Directories are walked")
	fmt.Fprintln(w, "recursively; the input may come from input.defaultDir in the config.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output:")
	fmt.Fprintln(w, "      --format <s>          Format: png, pdf, both (default: pdf)")
	fmt.Fprintln(w, "  -o, --output <dir>        Output directory (default: next to the source)")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Rendering:")
	fmt.Fprintln(w, "  -s, --strategy <s>        auto, single, tiled, smart (png);")
	fmt.Fprintln(w, "                            auto, direct, css-print, smart, chunked (pdf)")
	fmt.Fprintln(w, "      --style <s>           Style name, CSS file, or CSS content")
	fmt.Fprintln(w, "      --assets <dir>        Directory overriding embedded assets")
	fmt.Fprintln(w, "      --scale <f>           Device pixels per CSS pixel (0.25-4)")
	fmt.Fprintln(w, "      --quality <f>         Encoding quality (0-1]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Image:")
	fmt.Fprintln(w, "      --tile-size <n>       Tile edge in CSS pixels")
	fmt.Fprintln(w, "      --max-canvas <n>      Maximum canvas side in pixels")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Document:")
	fmt.Fprintln(w, "  -p, --page-size <s>       Page size: a4, letter, legal")
	fmt.Fprintln(w, "      --orientation <s>     Orientation: portrait, landscape")
	fmt.Fprintln(w, "      --margin <f>          Margin in millimetres (0-50)")
	fmt.Fprintln(w, "      --max-pages <n>       Maximum number of pages")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Advanced:")
	fmt.Fprintln(w, "  -t, --timeout <d>         Capture timeout shared by retries (e.g. 90s)")
	fmt.Fprintln(w, "      --retries <n>         Capture attempts (1-10)")
	fmt.Fprintln(w, "      --delay <d>           Pause between tiles and sections (e.g. 100ms)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Logging:")
	fmt.Fprintln(w, "  -q, --quiet               Only print errors")
	fmt.Fprintln(w, "  -v, --verbose             Print debug logs and timings")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  MDEXPORT_CONFIG, MDEXPORT_STYLE, MDEXPORT_TIMEOUT, MDEXPORT_INPUT_DIR,")
	fmt.Fprintln(w, "  MDEXPORT_OUTPUT_DIR, MDEXPORT_FORMAT, MDEXPORT_STRATEGY, MDEXPORT_PAGE_SIZE,")
	fmt.Fprintln(w, "  MDEXPORT_SCALE, MDEXPORT_MAX_PAGES, MDEXPORT_MERMAID_URL")
	fmt.Fprintln(w, "  Precedence: flags > environment > config file > defaults")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Exit codes:")
	fmt.Fprintln(w, "  0 success, 1 failure, 2 usage, 3 I/O, 4 browser, 5 cancelled")
}

// printDoctorUsage prints usage for the doctor command.
func printDoctorUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mdexport doctor [--json]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Check that Chrome is available and the environment can run exports.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "      --json                Print the report as JSON")
}

// runHelp prints help for a command.
func runHelp(args []string, env *Environment) int {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return ExitSuccess
	}

	switch args[0] {
	case "export":
		printExportUsage(env.Stdout)
	case "doctor":
		printDoctorUsage(env.Stdout)
	case "version":
		fmt.Fprintln(env.Stdout, "Usage: mdexport version")
	default:
		fmt.Fprintf(env.Stderr, "unknown command: %s\n", args[0])
		printUsage(env.Stderr)
		return ExitUsage
	}
	return ExitSuccess
}
