package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/simp-lee/epubsplit"
	"github.com/simp-lee/epubsplit/internal/config"
)

// Version info (injected via ldflags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00AFFF"))

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)

	numberStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Width(6).
			Align(lipgloss.Right)

	previewStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			Italic(true).
			Border(lipgloss.NormalBorder(), false, false, false, true).
			PaddingLeft(1)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAA00"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)
)

// previewLines bounds the preview shown by -dry-run.
const previewLines = 12

type cliFlags struct {
	configPath string
	marker     string
	lang       string
	noChapters string
	keepCover  bool
	skipLic    bool
	verify     bool
	dryRun     bool
	verbose    bool
	version    bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var f cliFlags
	fs := flag.NewFlagSet("epubsplit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.configPath, "config", "", "YAML config file")
	fs.StringVar(&f.marker, "marker", "", "chapter heading regular expression (default 第N章)")
	fs.StringVar(&f.lang, "lang", "", "language used when the book declares none (default zh)")
	fs.StringVar(&f.noChapters, "no-chapters", "", "when no heading is found: single or fail")
	fs.BoolVar(&f.keepCover, "cover", false, "carry the cover image over")
	fs.BoolVar(&f.skipLic, "skip-license", false, "drop Project Gutenberg license pages")
	fs.BoolVar(&f.verify, "verify", false, "re-open the output with an independent reader")
	fs.BoolVar(&f.dryRun, "dry-run", false, "show the detected chapters without writing")
	fs.BoolVar(&f.verbose, "v", false, "log pipeline steps")
	fs.BoolVar(&f.version, "version", false, "show version information")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "epubsplit - re-split an ePub at its chapter headings\n\n")
		fmt.Fprintf(stderr, "Usage:\n")
		fmt.Fprintf(stderr, "  epubsplit [options] input.epub [output.epub]\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  epubsplit book.epub                 Write fixed_book.epub\n")
		fmt.Fprintf(stderr, "  epubsplit -dry-run book.epub        List the detected chapters\n")
		fmt.Fprintf(stderr, "  epubsplit -no-chapters fail a.epub  Fail when no heading is found\n")
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if f.version {
		fmt.Fprintf(stdout, "epubsplit %s (commit: %s, built: %s)\n", version, commit, date)
		return 0
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		fs.Usage()
		return 2
	}
	input := fs.Arg(0)
	output := fs.Arg(1)
	if output == "" {
		output = defaultOutput(input)
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return fail(stderr, err.Error())
	}
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "marker":
			cfg.Convert.MarkerPattern = f.marker
		case "lang":
			cfg.Convert.DefaultLanguage = f.lang
		case "no-chapters":
			cfg.Convert.NoChapters = f.noChapters
		case "cover":
			cfg.Convert.KeepCover = f.keepCover
		case "skip-license":
			cfg.Convert.SkipLicense = f.skipLic
		case "verify":
			cfg.Convert.Verify = f.verify
		}
	})
	opts, err := cfg.ConverterOptions()
	if err != nil {
		return fail(stderr, err.Error())
	}
	conv, err := epubsplit.NewConverter(opts)
	if err != nil {
		return fail(stderr, err.Error())
	}

	logger := zap.NewNop()
	if f.verbose {
		logger = newLogger(stderr)
	}
	defer logger.Sync()

	data, err := os.ReadFile(input)
	if err != nil {
		return fail(stderr, fmt.Sprintf("failed to read '%s': %v", input, err))
	}
	logger.Debug("read input", zap.String("file", input), zap.Int("bytes", len(data)))

	a, err := conv.Analyze(data)
	if err != nil {
		logger.Debug("analysis failed", zap.Error(err))
		return fail(stderr, epubsplit.UserMessage(err))
	}
	logger.Debug("analyzed",
		zap.String("title", a.Metadata.Title),
		zap.Int("text_bytes", len(a.Text)),
		zap.Int("chapters", len(a.Records)),
	)
	printSummary(stdout, a.Summary, f.dryRun)
	if f.dryRun {
		return 0
	}

	res, err := a.Build()
	if err != nil {
		logger.Debug("build failed", zap.Error(err))
		return fail(stderr, epubsplit.UserMessage(err))
	}
	if err := writeOutput(output, res.Data); err != nil {
		return fail(stderr, err.Error())
	}
	logger.Debug("wrote output", zap.String("file", output), zap.Int("bytes", len(res.Data)))
	fmt.Fprintf(stdout, "\nWrote %s\n", output)
	return 0
}

// newLogger writes development-style log lines to w.
func newLogger(w io.Writer) *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(w),
		zap.DebugLevel,
	)
	return zap.New(core)
}

func fail(stderr io.Writer, msg string) int {
	fmt.Fprintln(stderr, errorStyle.Render("Error:")+" "+msg)
	return 1
}

// defaultOutput places fixed_<name> next to the input.
func defaultOutput(input string) string {
	return filepath.Join(filepath.Dir(input), "fixed_"+filepath.Base(input))
}

func printSummary(w io.Writer, s epubsplit.Summary, withPreview bool) {
	fmt.Fprintln(w, titleStyle.Render(s.Title))
	fmt.Fprintln(w, countStyle.Render(fmt.Sprintf("%d chapters detected", s.Chapters)))
	for i, h := range s.Headings {
		fmt.Fprintln(w, numberStyle.Render(fmt.Sprintf("%d.", i+1))+" "+h)
	}
	for _, warn := range s.Warnings {
		fmt.Fprintln(w, warnStyle.Render("warning: "+warn))
	}
	if withPreview {
		lines := strings.Split(s.Preview, "\n")
		if len(lines) > previewLines {
			lines = append(lines[:previewLines], "…")
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, previewStyle.Render(strings.Join(lines, "\n")))
	}
}

// writeOutput replaces name only once the whole file is on disk.
func writeOutput(name string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(name), ".epubsplit-*")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write output: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err = os.Rename(tmp.Name(), name); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
