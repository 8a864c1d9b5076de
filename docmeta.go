package epubsplit

import (
	"strings"

	"github.com/google/uuid"
)

// Metadata fallbacks.
const (
	DefaultTitle    = "Untitled"
	DefaultLanguage = "zh"
)

// identifierNamespace seeds generated identifiers so equal text always
// yields the same identifier.
var identifierNamespace = uuid.MustParse("6f1c8f3e-3b8e-5d4a-9c55-2f7f4a8e1d20")

// DocumentMetadata is what the rebuilt package declares about itself.
type DocumentMetadata struct {
	Title      string
	Language   string
	Identifier string
	Authors    []string

	// Publisher, Description and Date are copied when present and
	// otherwise omitted.
	Publisher   string
	Description string
	Date        string
}

// ResolveMetadata fills DocumentMetadata from the source metadata.
// Present fields are copied as they are. A missing title becomes
// DefaultTitle, a missing language becomes lang (DefaultLanguage when lang
// is empty), a missing identifier becomes a name-based UUID of text, and
// missing authors stay empty.
func ResolveMetadata(src Metadata, lang, text string) DocumentMetadata {
	md := DocumentMetadata{
		Title:       DefaultTitle,
		Language:    lang,
		Publisher:   src.Publisher,
		Description: src.Description,
		Date:        src.Date,
	}
	if md.Language == "" {
		md.Language = DefaultLanguage
	}
	if len(src.Titles) > 0 {
		md.Title = src.Titles[0]
	}
	if len(src.Language) > 0 {
		md.Language = src.Language[0]
	}

	switch {
	case src.UniqueIdentifier != "":
		md.Identifier = src.UniqueIdentifier
	case len(src.Identifiers) > 0:
		md.Identifier = src.Identifiers[0].Value
	default:
		md.Identifier = GeneratedIdentifier(text)
	}

	for _, a := range src.Authors {
		md.Authors = append(md.Authors, a.Name)
	}
	return md
}

// GeneratedIdentifier returns the "urn:uuid:" identifier derived from text.
func GeneratedIdentifier(text string) string {
	return "urn:uuid:" + uuid.NewSHA1(identifierNamespace, []byte(text)).String()
}

// Label returns a one-line description for logs and summaries.
func (m DocumentMetadata) Label() string {
	if len(m.Authors) == 0 {
		return m.Title
	}
	return m.Title + " / " + strings.Join(m.Authors, ", ")
}
