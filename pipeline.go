package epubsplit

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// PreviewRunes is the length of Summary.Preview.
const PreviewRunes = 1000

// NoChaptersPolicy decides what happens when no chapter marker is found.
type NoChaptersPolicy int

const (
	// NoChaptersSingle keeps the whole text as one unlabeled chapter.
	NoChaptersSingle NoChaptersPolicy = iota
	// NoChaptersFail stops the conversion with ErrNoChapters.
	NoChaptersFail
)

func (p NoChaptersPolicy) String() string {
	switch p {
	case NoChaptersSingle:
		return "single"
	case NoChaptersFail:
		return "fail"
	default:
		return fmt.Sprintf("NoChaptersPolicy(%d)", int(p))
	}
}

// ParseNoChaptersPolicy accepts "single" or "fail". Empty means single.
func ParseNoChaptersPolicy(s string) (NoChaptersPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "single":
		return NoChaptersSingle, nil
	case "fail":
		return NoChaptersFail, nil
	default:
		return 0, fmt.Errorf("epubsplit: unknown no-chapters policy %q", s)
	}
}

// Options configures a Converter. The zero value is usable.
type Options struct {
	// MarkerPattern is the chapter heading expression. Empty selects
	// DefaultMarkerPattern.
	MarkerPattern string

	// DefaultLanguage is used when the source declares no language.
	// Empty selects DefaultLanguage.
	DefaultLanguage string

	// NoChapters is applied when the text holds no marker.
	NoChapters NoChaptersPolicy

	// KeepCover carries the source cover image into the output.
	KeepCover bool

	// SkipLicense drops Project Gutenberg license pages before segmenting.
	SkipLicense bool

	// Verify re-reads the output with goreader through a staging file.
	// The package reader check always runs.
	Verify bool

	// StagingDir holds the verification staging file. Empty means
	// os.TempDir.
	StagingDir string

	// Modified is written as dcterms:modified. Zero means DefaultModified.
	Modified time.Time
}

// Converter turns an ePub into one whose sections follow the chapter
// headings found in its text. A Converter is immutable and safe for
// concurrent use.
type Converter struct {
	opts Options
	seg  *Segmenter
}

// NewConverter validates opts and compiles the marker pattern.
func NewConverter(opts Options) (*Converter, error) {
	switch opts.NoChapters {
	case NoChaptersSingle, NoChaptersFail:
	default:
		return nil, fmt.Errorf("epubsplit: invalid no-chapters policy %d", int(opts.NoChapters))
	}
	seg, err := NewSegmenter(opts.MarkerPattern)
	if err != nil {
		return nil, err
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = DefaultLanguage
	}
	return &Converter{opts: opts, seg: seg}, nil
}

// Options returns the effective options.
func (c *Converter) Options() Options {
	return c.opts
}

// Summary describes a segmentation before anything is rebuilt.
type Summary struct {
	Title    string   `json:"title"`
	Chapters int      `json:"chapters"`
	Headings []string `json:"headings"`
	Preview  string   `json:"preview"`
	Warnings []string `json:"warnings"`
}

// Analysis is the outcome of reading and segmenting one ePub.
type Analysis struct {
	Text     string
	Records  []ChapterRecord
	Metadata DocumentMetadata
	Summary  Summary

	cover *CoverImage
	conv  *Converter
}

// Result is a rebuilt ePub.
type Result struct {
	Data     []byte
	Sections []Section
	Metadata DocumentMetadata
	Summary  Summary
}

// Analyze reads data, extracts its text and detects chapters. It fails with
// ErrInputFormat when data is not a readable ePub, ErrEmptyContent when no
// text was found, and ErrNoChapters when no marker was found under
// NoChaptersFail.
func (c *Converter) Analyze(data []byte) (*Analysis, error) {
	b, err := NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	defer b.Close()

	text, err := ExtractText(b, ExtractOptions{SkipLicense: c.opts.SkipLicense})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyContent
	}

	records := c.seg.Segment(text)
	if len(records) == 0 {
		if c.opts.NoChapters == NoChaptersFail {
			return nil, ErrNoChapters
		}
		records = append(records, wholeText(text))
	}

	md := ResolveMetadata(b.Metadata(), c.opts.DefaultLanguage, text)
	a := &Analysis{
		Text:     text,
		Records:  records,
		Metadata: md,
		conv:     c,
	}
	a.Summary = Summary{
		Title:    md.Title,
		Chapters: len(records),
		Headings: make([]string, len(records)),
		Preview:  preview(text, PreviewRunes),
		Warnings: b.Warnings(),
	}
	for i, r := range records {
		a.Summary.Headings[i] = SectionTitle(r, i)
	}

	if c.opts.KeepCover {
		cover, err := b.Cover()
		switch {
		case err == nil:
			a.cover = &cover
		case !errors.Is(err, ErrNoCover):
			a.Summary.Warnings = append(a.Summary.Warnings, "cover not carried over: "+err.Error())
		}
	}
	return a, nil
}

// Build rebuilds the analysed book and verifies the result. On error no
// bytes are returned.
func (a *Analysis) Build() (*Result, error) {
	opts := a.conv.opts
	out, err := Rebuild(a.Records, a.Metadata, RebuildOptions{
		Modified: opts.Modified,
		Cover:    a.cover,
	})
	if err != nil {
		return nil, err
	}
	if err := VerifyOutput(out.Data, out.Sections); err != nil {
		return nil, err
	}
	if opts.Verify {
		if err := verifyExternal(opts.StagingDir, out.Data, out.Sections); err != nil {
			return nil, err
		}
	}
	return &Result{
		Data:     out.Data,
		Sections: out.Sections,
		Metadata: a.Metadata,
		Summary:  a.Summary,
	}, nil
}

// Convert is Analyze followed by Build.
func (c *Converter) Convert(data []byte) (*Result, error) {
	a, err := c.Analyze(data)
	if err != nil {
		return nil, err
	}
	return a.Build()
}

// preview returns the first n runes of text.
func preview(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	i := 0
	for pos := range text {
		if i == n {
			return text[:pos]
		}
		i++
	}
	return text
}
