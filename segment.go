package epubsplit

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultMarkerPattern matches chapter heading lines of the form
// "第12章 标题", optionally indented with spaces, tabs or ideographic
// spaces. The chapter number is captured as "num".
const DefaultMarkerPattern = `^[ \t\x{3000}]*第(?P<num>\d+)章[^\n]*$`

// IntroHeading labels the text that precedes the first chapter marker.
const IntroHeading = "Intro"

// Marker is one chapter heading found in the text.
type Marker struct {
	// Offset is the byte offset of the start of the heading line.
	Offset int

	// LineEnd is the byte offset just past the heading line, before its
	// newline.
	LineEnd int

	// Number is the captured chapter number, 0 when the pattern captures none.
	Number int

	// Heading is the heading line with surrounding whitespace trimmed.
	Heading string
}

// ChapterRecord is one contiguous span of the extracted text that becomes
// one output section.
type ChapterRecord struct {
	// Heading is the marker line, IntroHeading for leading text, or empty
	// when the whole text was kept as a single unlabeled chapter.
	Heading string

	// Number is the chapter number captured from the marker.
	Number int

	// Intro marks the record holding text before the first marker.
	Intro bool

	// Start and End delimit the record in the source text: [Start, End).
	Start, End int

	// Text is the source text in [Start, End), heading line included.
	Text string

	// bodyOffset is where the body begins within Text.
	bodyOffset int
}

// Body returns the record text after its heading line, trimmed.
func (r ChapterRecord) Body() string {
	if r.bodyOffset > len(r.Text) {
		return ""
	}
	return strings.TrimSpace(r.Text[r.bodyOffset:])
}

// wholeText wraps the entire text as a single unlabeled record.
func wholeText(text string) ChapterRecord {
	return ChapterRecord{Start: 0, End: len(text), Text: text}
}

// Segmenter splits text at chapter heading lines. It is safe for
// concurrent use.
type Segmenter struct {
	re     *regexp.Regexp
	numIdx int
}

// NewSegmenter compiles a marker pattern. An empty pattern selects
// DefaultMarkerPattern. Patterns always match in multi-line mode and are
// anchored to the start of a line. The chapter number is taken from a group
// named "num", or the first group when there is no such name.
func NewSegmenter(pattern string) (*Segmenter, error) {
	if strings.TrimSpace(pattern) == "" {
		pattern = DefaultMarkerPattern
	}
	// Wrapping applies the anchor to every alternative, even when the
	// pattern starts with its own ^.
	re, err := regexp.Compile("(?m)^(?:" + pattern + ")")
	if err != nil {
		return nil, fmt.Errorf("epubsplit: compile marker pattern: %w", err)
	}

	numIdx := re.SubexpIndex("num")
	if numIdx < 0 && re.NumSubexp() > 0 {
		numIdx = 1
	}
	return &Segmenter{re: re, numIdx: numIdx}, nil
}

// MustSegmenter is like NewSegmenter but panics on an invalid pattern.
func MustSegmenter(pattern string) *Segmenter {
	s, err := NewSegmenter(pattern)
	if err != nil {
		panic(err)
	}
	return s
}

// Pattern returns the compiled expression.
func (s *Segmenter) Pattern() string {
	return s.re.String()
}

// FindMarkers returns every heading line in text, in increasing offset
// order. The heading is always the whole line the match starts on.
func (s *Segmenter) FindMarkers(text string) []Marker {
	var markers []Marker
	for _, m := range s.re.FindAllStringSubmatchIndex(text, -1) {
		start := m[0]
		// A pattern that can match empty would otherwise mark every line.
		if m[1] == start {
			continue
		}
		lineEnd := len(text)
		if i := strings.IndexByte(text[start:], '\n'); i >= 0 {
			lineEnd = start + i
		}
		mk := Marker{
			Offset:  start,
			LineEnd: lineEnd,
			Heading: strings.TrimSpace(text[start:lineEnd]),
		}
		if s.numIdx > 0 && m[2*s.numIdx] >= 0 {
			mk.Number, _ = strconv.Atoi(text[m[2*s.numIdx]:m[2*s.numIdx+1]])
		}
		markers = append(markers, mk)
	}
	return markers
}

// Segment partitions text into chapter records. Each marker opens a record
// that runs to the next marker or the end of the text. Non-blank text before
// the first marker becomes an Intro record; blank leading text is folded into
// the first chapter so that the records always cover text exactly.
//
// When no marker is found the result is empty (not nil); what to do then is
// the caller's decision.
func (s *Segmenter) Segment(text string) []ChapterRecord {
	markers := s.FindMarkers(text)
	records := make([]ChapterRecord, 0, len(markers)+1)
	if len(markers) == 0 {
		return records
	}

	firstStart := 0
	if lead := text[:markers[0].Offset]; strings.TrimSpace(lead) != "" {
		records = append(records, ChapterRecord{
			Heading: IntroHeading,
			Intro:   true,
			Start:   0,
			End:     markers[0].Offset,
			Text:    lead,
		})
		firstStart = markers[0].Offset
	}

	for i, mk := range markers {
		start := mk.Offset
		if i == 0 {
			start = firstStart
		}
		end := len(text)
		if i+1 < len(markers) {
			end = markers[i+1].Offset
		}
		records = append(records, ChapterRecord{
			Heading:    mk.Heading,
			Number:     mk.Number,
			Start:      start,
			End:        end,
			Text:       text[start:end],
			bodyOffset: mk.LineEnd - start,
		})
	}
	return records
}
