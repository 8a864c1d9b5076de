package epubsplit

import (
	"fmt"
	"strings"
)

// ExtractOptions tunes ExtractText.
type ExtractOptions struct {
	// SkipLicense drops Project Gutenberg license pages.
	SkipLicense bool
}

// ExtractText concatenates the plain text of every document part in spine
// order, one newline between parts. Parts that yield no text add no
// separator. A part that cannot be read fails the whole extraction with
// ErrInputFormat.
func ExtractText(b *Book, opts ExtractOptions) (string, error) {
	var buf strings.Builder
	for _, p := range b.parts {
		if !p.IsDocument() {
			continue
		}
		text, err := p.TextContent()
		if err != nil {
			return "", fmt.Errorf("epubsplit: extract %s: %w: %w", p.Href, ErrInputFormat, err)
		}
		if text == "" {
			continue
		}
		if opts.SkipLicense && isLicenseText(text) {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(text)
	}
	return buf.String(), nil
}
