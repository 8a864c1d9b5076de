package epubsplit

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// TOCItem is one entry of a table of contents tree.
type TOCItem struct {
	// Title is the entry label.
	Title string

	// Href is the ZIP-internal target, possibly with a fragment.
	Href string

	// SpineIndex is the index of the part the entry points into, or -1.
	SpineIndex int

	Children []TOCItem
}

func cloneTOC(in []TOCItem) []TOCItem {
	if in == nil {
		return nil
	}
	out := make([]TOCItem, len(in))
	for i := range in {
		out[i] = in[i]
		out[i].Children = cloneTOC(in[i].Children)
	}
	return out
}

// flattenTOC lists the tree depth first.
func flattenTOC(items []TOCItem) []TOCItem {
	var out []TOCItem
	for _, it := range items {
		out = append(out, it)
		out = append(out, flattenTOC(it.Children)...)
	}
	return out
}

// loadTOC reads the ePub 3 nav document, or the NCX named by the spine,
// and assigns spine indexes and part titles. Failures only add warnings.
func (b *Book) loadTOC() {
	spineIndex := make(map[string]int, len(b.parts))
	for _, p := range b.parts {
		spineIndex[p.Href] = p.Index
	}

	var toc []TOCItem
	if strings.HasPrefix(b.pkg.Version, "3") {
		toc = b.navTOC()
	}
	if toc == nil {
		toc = b.ncxTOC()
	}
	if toc == nil {
		toc = []TOCItem{}
	}
	linkSpine(toc, spineIndex)
	b.toc = toc

	titles := make(map[string]string)
	for _, it := range flattenTOC(toc) {
		file := stripFragment(it.Href)
		if _, seen := titles[file]; !seen && file != "" {
			titles[file] = it.Title
		}
	}
	for i := range b.parts {
		b.parts[i].Title = titles[b.parts[i].Href]
	}
}

func (b *Book) navTOC() []TOCItem {
	for _, it := range b.pkg.Manifest {
		if !it.hasProperty("nav") {
			continue
		}
		navPath := b.fromOPF(it.Href)
		data, err := b.ReadFile(navPath)
		if err != nil {
			b.warnings = append(b.warnings, fmt.Sprintf("failed to read nav document: %v", err))
			return nil
		}
		toc, err := parseNav(data, navPath)
		if err != nil {
			b.warnings = append(b.warnings, fmt.Sprintf("failed to parse nav document: %v", err))
			return nil
		}
		return toc
	}
	return nil
}

func (b *Book) ncxTOC() []TOCItem {
	it, ok := b.byID[b.pkg.Spine.Toc]
	if !ok {
		return nil
	}
	ncxPath := b.fromOPF(it.Href)
	data, err := b.ReadFile(ncxPath)
	if err != nil {
		b.warnings = append(b.warnings, fmt.Sprintf("failed to read NCX file: %v", err))
		return nil
	}
	toc, err := parseNCX(data, ncxPath)
	if err != nil {
		b.warnings = append(b.warnings, fmt.Sprintf("failed to parse NCX file: %v", err))
		return nil
	}
	return toc
}

func linkSpine(items []TOCItem, spineIndex map[string]int) {
	for i := range items {
		items[i].SpineIndex = -1
		if idx, ok := spineIndex[stripFragment(items[i].Href)]; ok {
			items[i].SpineIndex = idx
		}
		linkSpine(items[i].Children, spineIndex)
	}
}

func stripFragment(href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		return href[:i]
	}
	return href
}

// ncxDoc models an NCX file for both reading and writing.
type ncxDoc struct {
	XMLName  xml.Name  `xml:"ncx"`
	Xmlns    string    `xml:"xmlns,attr,omitempty"`
	Version  string    `xml:"version,attr,omitempty"`
	Head     *ncxHead  `xml:"head,omitempty"`
	DocTitle *ncxLabel `xml:"docTitle,omitempty"`
	NavMap   ncxNavMap `xml:"navMap"`
}

type ncxHead struct {
	Metas []ncxMeta `xml:"meta"`
}

type ncxMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type ncxNavMap struct {
	NavPoints []ncxNavPoint `xml:"navPoint"`
}

type ncxNavPoint struct {
	ID        string        `xml:"id,attr,omitempty"`
	PlayOrder string        `xml:"playOrder,attr,omitempty"`
	Label     ncxLabel      `xml:"navLabel"`
	Content   ncxContent    `xml:"content"`
	Children  []ncxNavPoint `xml:"navPoint"`
}

type ncxLabel struct {
	Text string `xml:"text"`
}

type ncxContent struct {
	Src string `xml:"src,attr"`
}

// parseNCX decodes an NCX file. Hrefs are resolved against ncxPath.
func parseNCX(data []byte, ncxPath string) ([]TOCItem, error) {
	var doc ncxDoc
	if err := xml.Unmarshal(trimBOM(replaceHTMLEntities(data)), &doc); err != nil {
		return nil, fmt.Errorf("epubsplit: parse NCX: %w", err)
	}
	return navPointItems(doc.NavMap.NavPoints, ncxPath), nil
}

func navPointItems(points []ncxNavPoint, base string) []TOCItem {
	if len(points) == 0 {
		return nil
	}
	items := make([]TOCItem, 0, len(points))
	for _, np := range points {
		items = append(items, TOCItem{
			Title:      strings.TrimSpace(np.Label.Text),
			Href:       resolveHref(base, np.Content.Src),
			SpineIndex: -1,
			Children:   navPointItems(np.Children, base),
		})
	}
	return items
}

// parseNav reads the <nav epub:type="toc"> list of an ePub 3 navigation
// document. Hrefs are resolved against navPath.
func parseNav(data []byte, navPath string) ([]TOCItem, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("epubsplit: parse nav document: %w", err)
	}
	nav := findTOCNav(doc)
	if nav == nil {
		return nil, nil
	}
	ol := findElement(nav, atom.Ol)
	if ol == nil {
		return nil, nil
	}
	return navListItems(ol, navPath), nil
}

func findTOCNav(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Nav {
		for _, t := range strings.Fields(attr(n, "epub:type")) {
			if t == "toc" {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findTOCNav(c); found != nil {
			return found
		}
	}
	return nil
}

func navListItems(ol *html.Node, base string) []TOCItem {
	var items []TOCItem
	for li := ol.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.DataAtom != atom.Li {
			continue
		}
		item := TOCItem{SpineIndex: -1}
		for c := li.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.A:
				if item.Href == "" {
					item.Href = resolveHref(base, attr(c, "href"))
					item.Title = strings.TrimSpace(nodeText(c))
				}
			case atom.Span:
				if item.Title == "" {
					item.Title = strings.TrimSpace(nodeText(c))
				}
			case atom.Ol:
				item.Children = navListItems(c, base)
			}
		}
		items = append(items, item)
	}
	return items
}
