// Command nitroc is the command-line driver for the Nitro compiler: it
// reads a source file, compiles it, and writes the resolved IR buffer to
// an output file, rendering any diagnostics to stderr along the way.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"

	"github.com/Mirrrek/nitrogen/cache"
	"github.com/Mirrrek/nitrogen/compiler"
)

var (
	target   = flag.String("target", "debug", "code generation target")
	cacheDir = flag.String("cache-dir", "", "directory for the compile cache (disabled if empty)")
	noColor  = flag.Bool("no-color", false, "disable colored diagnostic rendering")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "nitroc - Nitro compiler\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n  nitroc [options] <input> <output>\n\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	inputPath, outputPath := flag.Arg(0), flag.Arg(1)

	if !compiler.SupportedTargets[*target] {
		fmt.Fprintf(os.Stderr, "nitroc: unsupported target %q\n", *target)
		os.Exit(1)
	}

	source, err := os.ReadFile(inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nitroc: %v\n", err)
		os.Exit(1)
	}

	renderer := newDiagnosticRenderer(string(source), !*noColor && isatty.IsTerminal(os.Stderr.Fd()))

	artifact, diagnostics, err := compileWithCache(inputPath, string(source), *target)
	for _, d := range diagnostics {
		renderer.render(d)
	}
	if err != nil {
		if ie, ok := err.(*compiler.InputError); ok {
			renderer.render(compiler.Diagnostic{Severity: compiler.SeverityError, Message: ie.Message, Pos: &ie.Pos})
		} else {
			fmt.Fprintf(os.Stderr, "nitroc: %v\n", err)
		}
		os.Exit(1)
	}

	if err := os.WriteFile(outputPath, artifact.Code, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "nitroc: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "nitroc: wrote %s (%s)\n", outputPath, humanize.Bytes(uint64(len(artifact.Code))))
}

func compileWithCache(filename, source, target string) (*compiler.Artifact, []compiler.Diagnostic, error) {
	sink := compiler.NewCommonLogSink()

	if *cacheDir == "" {
		artifact, err := compiler.Compile(filename, source, target, sink)
		return artifact, sink.Diagnostics, err
	}

	store, err := cache.Open(*cacheDir)
	if err != nil {
		artifact, compileErr := compiler.Compile(filename, source, target, sink)
		return artifact, sink.Diagnostics, compileErr
	}

	key := cache.Key{Filename: filename, Source: source, Target: target}
	if artifact, diagnostics, ok := store.Lookup(key); ok {
		return artifact, diagnostics, nil
	}

	artifact, err := compiler.Compile(filename, source, target, sink)
	if err != nil {
		return nil, sink.Diagnostics, err
	}
	_ = store.Store(key, artifact, sink.Diagnostics)
	return artifact, sink.Diagnostics, nil
}

// diagnosticRenderer prints a diagnostic with a quoted source line and a
// caret under the offending column, colored by severity when the output
// is a terminal.
type diagnosticRenderer struct {
	lines  []string
	colors map[compiler.Severity]colorful.Color
	color  bool
}

func newDiagnosticRenderer(source string, color bool) *diagnosticRenderer {
	return &diagnosticRenderer{
		lines: strings.Split(source, "\n"),
		colors: map[compiler.Severity]colorful.Color{
			compiler.SeverityInfo:  {R: 0.4, G: 0.6, B: 1.0},
			compiler.SeverityWarn:  {R: 1.0, G: 0.75, B: 0.2},
			compiler.SeverityError: {R: 1.0, G: 0.3, B: 0.3},
		},
		color: color,
	}
}

func (r *diagnosticRenderer) render(d compiler.Diagnostic) {
	label := d.Severity.String()
	if r.color {
		c := r.colors[d.Severity]
		label = fmt.Sprintf("\x1b[38;2;%d;%d;%dm%s\x1b[0m", uint8(c.R*255), uint8(c.G*255), uint8(c.B*255), label)
	}

	if d.Pos == nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", label, d.Message)
		return
	}

	fmt.Fprintf(os.Stderr, "%s: %s: %s\n", d.Pos, label, d.Message)

	if d.Pos.Line-1 < 0 || d.Pos.Line-1 >= len(r.lines) {
		return
	}
	line := r.lines[d.Pos.Line-1]
	fmt.Fprintf(os.Stderr, "  %s\n", line)

	caretWidth := runewidth.StringWidth(line[:min(d.Pos.Column-1, len(line))])
	fmt.Fprintf(os.Stderr, "  %s^\n", strings.Repeat(" ", caretWidth))
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
