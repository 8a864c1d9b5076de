package epubsplit

import (
	"bytes"
	"errors"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// htmlEntities maps the HTML named entities that show up in real-world OPF
// and NCX files to numeric references encoding/xml understands.
var htmlEntities = map[string]string{
	"nbsp": "&#160;", "mdash": "&#8212;", "ndash": "&#8211;", "hellip": "&#8230;",
	"lsquo": "&#8216;", "rsquo": "&#8217;", "ldquo": "&#8220;", "rdquo": "&#8221;",
	"copy": "&#169;", "reg": "&#174;", "trade": "&#8482;",
	"bull": "&#8226;", "middot": "&#183;",
	"eacute": "&#233;", "egrave": "&#232;", "ecirc": "&#234;", "euml": "&#235;",
	"aacute": "&#225;", "agrave": "&#224;", "acirc": "&#226;", "auml": "&#228;",
	"iacute": "&#237;", "igrave": "&#236;", "icirc": "&#238;", "iuml": "&#239;",
	"oacute": "&#243;", "ograve": "&#242;", "ocirc": "&#244;", "ouml": "&#246;",
	"uacute": "&#250;", "ugrave": "&#249;", "ucirc": "&#251;", "uuml": "&#252;",
	"ntilde": "&#241;", "ccedil": "&#231;",
	"times": "&#215;", "divide": "&#247;", "deg": "&#176;",
	"para": "&#182;", "sect": "&#167;", "laquo": "&#171;", "raquo": "&#187;",
	"iexcl": "&#161;", "iquest": "&#191;",
}

var htmlEntityRE = regexp.MustCompile(`(?i)&([a-z]+);`)

// replaceHTMLEntities rewrites known HTML named entities (any case) to
// numeric references. Unknown names, including the five XML entities, are
// left untouched.
func replaceHTMLEntities(data []byte) []byte {
	return htmlEntityRE.ReplaceAllFunc(data, func(m []byte) []byte {
		if rep, ok := htmlEntities[strings.ToLower(string(m[1:len(m)-1]))]; ok {
			return []byte(rep)
		}
		return m
	})
}

// lineBreakTags start a new line in extracted text.
var lineBreakTags = map[atom.Atom]bool{
	atom.P: true, atom.Br: true, atom.Div: true, atom.Hr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Li: true, atom.Ul: true, atom.Ol: true, atom.Dt: true, atom.Dd: true,
	atom.Tr: true, atom.Table: true, atom.Blockquote: true, atom.Pre: true,
	atom.Section: true, atom.Article: true, atom.Header: true, atom.Footer: true,
	atom.Aside: true, atom.Figure: true, atom.Figcaption: true,
}

// droppedTags have their content discarded.
var droppedTags = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
	atom.Title:  true,
}

var selfClosedDroppedRE = regexp.MustCompile(`(?is)<(script|style|title)\b([^>]*)/>`)

// textWriter accumulates extracted text. Spaces are held back until the
// next word so that no line begins or ends with one.
type textWriter struct {
	buf          strings.Builder
	pendingSpace bool
	atLineStart  bool
}

func (w *textWriter) newline() {
	w.pendingSpace = false
	if w.buf.Len() > 0 && !w.atLineStart {
		w.buf.WriteByte('\n')
		w.atLineStart = true
	}
}

func (w *textWriter) text(s string) {
	for _, r := range s {
		switch r {
		case '\n', '\r':
			w.newline()
			continue
		case ' ', '\t', '\f':
			w.pendingSpace = true
			continue
		}
		if w.pendingSpace && !w.atLineStart && w.buf.Len() > 0 {
			w.buf.WriteByte(' ')
		}
		w.pendingSpace = false
		w.atLineStart = false
		w.buf.WriteRune(r)
	}
}

// extractText renders XHTML as plain text. Block-level elements produce
// line breaks, as do newlines in the source text, inside <pre> or not.
// Script, style and title content is skipped. Runs of spaces and tabs
// collapse to one space; blank lines are dropped. Non-breaking and
// ideographic spaces are kept since they are content, not layout.
func extractText(data []byte) (string, error) {
	// A self-closed <script/> would otherwise swallow the rest of the page.
	if selfClosedDroppedRE.Match(data) {
		data = selfClosedDroppedRE.ReplaceAll(data, []byte(`<$1$2></$1>`))
	}

	z := html.NewTokenizer(bytes.NewReader(data))
	w := &textWriter{atLineStart: true}
	skip := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return "", err
			}
			// Leading ideographic indentation is content; only the final
			// line break is dropped.
			return strings.TrimSuffix(w.buf.String(), "\n"), nil

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if droppedTags[a] {
				if tt == html.StartTagToken {
					skip++
				}
				continue
			}
			if skip == 0 && lineBreakTags[a] {
				w.newline()
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if droppedTags[a] {
				if skip > 0 {
					skip--
				}
				continue
			}
			if skip == 0 && lineBreakTags[a] {
				w.newline()
			}

		case html.TextToken:
			if skip == 0 {
				w.text(string(z.Text()))
			}
		}
	}
}

// findElement returns the first element with atom a in document order.
func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

// nodeText concatenates all text below n.
func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(nodeText(c))
	}
	return sb.String()
}

// attr returns the value of attribute key on n.
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
