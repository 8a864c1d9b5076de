package epubsplit

import (
	"strings"
)

// documentMediaTypes are the manifest media types whose content is text
// to be extracted.
var documentMediaTypes = map[string]bool{
	"application/xhtml+xml":    true,
	"text/html":                true,
	"application/x-dtbook+xml": true,
}

// Part is one spine entry of the source book: a content file in reading
// order. Content is read lazily from the archive.
type Part struct {
	// Index is the position in the spine, starting at 0.
	Index int

	// ID is the manifest item id.
	ID string

	// Href is the ZIP-internal path of the content file.
	Href string

	// MediaType is the manifest media type.
	MediaType string

	// Title is the source table of contents title for this file, if any.
	Title string

	// Linear is false for itemrefs marked linear="no".
	Linear bool

	// Nav marks the ePub 3 navigation document.
	Nav bool

	book *Book
}

// IsDocument reports whether the part holds readable markup: an (X)HTML
// content document that is not the navigation document.
func (p Part) IsDocument() bool {
	mt := strings.ToLower(strings.TrimSpace(p.MediaType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return documentMediaTypes[mt] && !p.Nav
}

// RawContent returns the part's bytes with any UTF-8 BOM removed.
func (p Part) RawContent() ([]byte, error) {
	if p.book == nil {
		return nil, ErrInvalidPart
	}
	data, err := p.book.ReadFile(p.Href)
	if err != nil {
		return nil, err
	}
	return trimBOM(data), nil
}

// TextContent returns the part's markup rendered as plain text with one
// line per block-level element.
func (p Part) TextContent() (string, error) {
	data, err := p.RawContent()
	if err != nil {
		return "", err
	}
	return extractText(data)
}

// Parts returns the spine in reading order. Itemrefs that point at no
// manifest item are skipped with a warning.
func (b *Book) Parts() []Part {
	return append([]Part(nil), b.parts...)
}

func (b *Book) buildParts() {
	b.parts = make([]Part, 0, len(b.pkg.Spine.ItemRefs))
	for _, ref := range b.pkg.Spine.ItemRefs {
		it, ok := b.byID[ref.IDRef]
		if !ok || it.Href == "" {
			b.warnings = append(b.warnings, "spine itemref "+ref.IDRef+" has no manifest item")
			continue
		}
		b.parts = append(b.parts, Part{
			Index:     len(b.parts),
			ID:        it.ID,
			Href:      b.fromOPF(it.Href),
			MediaType: it.MediaType,
			Linear:    ref.Linear != "no",
			Nav:       it.hasProperty("nav"),
			book:      b,
		})
	}
}

// gutenbergMarkers identify Project Gutenberg license boilerplate.
var gutenbergMarkers = []string{
	"project gutenberg license",
	"gutenberg.org/license",
	"start of the project gutenberg license",
	"end of the project gutenberg license",
	"start of this project gutenberg ebook",
	"end of this project gutenberg ebook",
}

var gutenbergPairs = [][2]string{
	{"project gutenberg", "terms of use"},
	{"full license", "gutenberg"},
}

// isLicenseText reports whether extracted text is a Project Gutenberg
// license page.
func isLicenseText(text string) bool {
	text = strings.ToLower(text)
	for _, m := range gutenbergMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	for _, p := range gutenbergPairs {
		if strings.Contains(text, p[0]) && strings.Contains(text, p[1]) {
			return true
		}
	}
	return false
}
