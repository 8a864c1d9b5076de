package epubsplit

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Layout of a rebuilt package.
const (
	oebpsDir    = "OEBPS"
	opfName     = "content.opf"
	navName     = "nav.xhtml"
	ncxName     = "toc.ncx"
	navID       = "nav"
	ncxID       = "ncx"
	coverID     = "cover-image"
	bookIDAttr  = "bookid"
	xhtmlNS     = "http://www.w3.org/1999/xhtml"
	opsNS       = "http://www.idpf.org/2007/ops"
	opfNS       = "http://www.idpf.org/2007/opf"
	ncxNS       = "http://www.daisy.org/z3986/2005/ncx/"
	xhtmlType   = "application/xhtml+xml"
	ncxType     = "application/x-dtbncx+xml"
	sectionStem = "chap_"
)

// DefaultModified is the dcterms:modified stamp used when none is given.
var DefaultModified = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Section is one generated content document of the rebuilt package.
type Section struct {
	// ID is the manifest id, e.g. "chap_001".
	ID string

	// FileName is the file name inside OEBPS, e.g. "chap_001.xhtml".
	FileName string

	// Title is the heading shown in the document and the TOC.
	Title string

	// Order is the 0-based position in the spine.
	Order int

	// Body is the serialised XHTML document.
	Body []byte
}

// RebuildOptions tunes Rebuild.
type RebuildOptions struct {
	// Modified is written as dcterms:modified. Zero means DefaultModified.
	Modified time.Time

	// Cover, when set, is stored as the package cover image.
	Cover *CoverImage
}

// Rebuilt is the result of Rebuild.
type Rebuilt struct {
	Sections []Section
	Data     []byte
}

// SectionTitle is the title of the record at position i (0-based): its
// heading, or "Chapter i+1" when it has none.
func SectionTitle(r ChapterRecord, i int) string {
	if h := strings.TrimSpace(xmlSafe(r.Heading)); h != "" {
		return h
	}
	return "Chapter " + strconv.Itoa(i+1)
}

// BuildSections renders one XHTML document per record, in record order.
func BuildSections(records []ChapterRecord, lang string) ([]Section, error) {
	sections := make([]Section, 0, len(records))
	for i, r := range records {
		id := fmt.Sprintf("%s%03d", sectionStem, i+1)
		title := SectionTitle(r, i)

		body, err := renderSection(title, r.Body(), lang)
		if err != nil {
			return nil, fmt.Errorf("epubsplit: render %s: %w", id, err)
		}
		sections = append(sections, Section{
			ID:       id,
			FileName: id + ".xhtml",
			Title:    title,
			Order:    i,
			Body:     body,
		})
	}
	return sections, nil
}

// Rebuild assembles the output ePub: one section per record, a nav document
// and an NCX listing the sections in spine order, and md in the package
// metadata. The bytes are identical for identical inputs.
func Rebuild(records []ChapterRecord, md DocumentMetadata, opts RebuildOptions) (*Rebuilt, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("epubsplit: nothing to rebuild: %w", ErrNoChapters)
	}
	if opts.Modified.IsZero() {
		opts.Modified = DefaultModified
	}

	sections, err := BuildSections(records, md.Language)
	if err != nil {
		return nil, err
	}

	opf, err := packageDocument(sections, md, opts)
	if err != nil {
		return nil, err
	}
	ncx, err := ncxDocument(sections, md)
	if err != nil {
		return nil, err
	}
	nav, err := navDocument(sections, md)
	if err != nil {
		return nil, err
	}
	container, err := marshalXML(containerDoc{
		Xmlns:   containerNS,
		Version: "1.0",
		RootFiles: []containerRoot{{
			FullPath:  oebpsDir + "/" + opfName,
			MediaType: packageMediaType,
		}},
	})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if err := writeMimetype(zw); err != nil {
		return nil, err
	}
	entries := []archiveEntry{
		{containerPath, container},
		{oebpsDir + "/" + opfName, opf},
		{oebpsDir + "/" + ncxName, ncx},
		{oebpsDir + "/" + navName, nav},
	}
	for _, s := range sections {
		entries = append(entries, archiveEntry{oebpsDir + "/" + s.FileName, s.Body})
	}
	if opts.Cover != nil {
		entries = append(entries, archiveEntry{oebpsDir + "/" + coverFileName(*opts.Cover), opts.Cover.Data})
	}
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: zip.Deflate})
		if err != nil {
			return nil, fmt.Errorf("epubsplit: write %s: %w", e.name, err)
		}
		if _, err := w.Write(e.data); err != nil {
			return nil, fmt.Errorf("epubsplit: write %s: %w", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("epubsplit: finish archive: %w", err)
	}
	return &Rebuilt{Sections: sections, Data: buf.Bytes()}, nil
}

type archiveEntry struct {
	name string
	data []byte
}

// writeMimetype stores the mimetype entry first, uncompressed and with its
// sizes in the local header, as ePub readers expect.
func writeMimetype(zw *zip.Writer) error {
	data := []byte(epubMimetype)
	w, err := zw.CreateRaw(&zip.FileHeader{
		Name:               "mimetype",
		Method:             zip.Store,
		CRC32:              crc32.ChecksumIEEE(data),
		CompressedSize64:   uint64(len(data)),
		UncompressedSize64: uint64(len(data)),
	})
	if err != nil {
		return fmt.Errorf("epubsplit: write mimetype: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func coverFileName(c CoverImage) string {
	return "cover" + c.Ext()
}

// Package document (OPF 3.0) output model.
type opfOut struct {
	XMLName          xml.Name     `xml:"package"`
	Xmlns            string       `xml:"xmlns,attr"`
	Version          string       `xml:"version,attr"`
	UniqueIdentifier string       `xml:"unique-identifier,attr"`
	Metadata         opfOutMeta   `xml:"metadata"`
	Manifest         []opfOutItem `xml:"manifest>item"`
	Spine            opfOutSpine  `xml:"spine"`
}

type opfOutMeta struct {
	XmlnsDC     string       `xml:"xmlns:dc,attr"`
	Identifier  opfOutDC     `xml:"dc:identifier"`
	Title       string       `xml:"dc:title"`
	Language    string       `xml:"dc:language"`
	Creators    []string     `xml:"dc:creator"`
	Publisher   string       `xml:"dc:publisher,omitempty"`
	Description string       `xml:"dc:description,omitempty"`
	Date        string       `xml:"dc:date,omitempty"`
	Metas       []opfOutProp `xml:"meta"`
}

type opfOutDC struct {
	ID    string `xml:"id,attr"`
	Value string `xml:",chardata"`
}

type opfOutProp struct {
	Name     string `xml:"name,attr,omitempty"`
	Content  string `xml:"content,attr,omitempty"`
	Property string `xml:"property,attr,omitempty"`
	Value    string `xml:",chardata"`
}

type opfOutItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr,omitempty"`
}

type opfOutSpine struct {
	Toc      string          `xml:"toc,attr"`
	ItemRefs []opfOutItemRef `xml:"itemref"`
}

type opfOutItemRef struct {
	IDRef string `xml:"idref,attr"`
}

func packageDocument(sections []Section, md DocumentMetadata, opts RebuildOptions) ([]byte, error) {
	pkg := opfOut{
		Xmlns:            opfNS,
		Version:          "3.0",
		UniqueIdentifier: bookIDAttr,
		Metadata: opfOutMeta{
			XmlnsDC:     dcNS,
			Identifier:  opfOutDC{ID: bookIDAttr, Value: md.Identifier},
			Title:       md.Title,
			Language:    md.Language,
			Creators:    md.Authors,
			Publisher:   md.Publisher,
			Description: md.Description,
			Date:        md.Date,
			Metas: []opfOutProp{{
				Property: "dcterms:modified",
				Value:    opts.Modified.UTC().Format(time.RFC3339),
			}},
		},
		Spine: opfOutSpine{Toc: ncxID},
	}

	pkg.Manifest = append(pkg.Manifest,
		opfOutItem{ID: navID, Href: navName, MediaType: xhtmlType, Properties: "nav"},
		opfOutItem{ID: ncxID, Href: ncxName, MediaType: ncxType},
	)
	for _, s := range sections {
		pkg.Manifest = append(pkg.Manifest, opfOutItem{ID: s.ID, Href: s.FileName, MediaType: xhtmlType})
		pkg.Spine.ItemRefs = append(pkg.Spine.ItemRefs, opfOutItemRef{IDRef: s.ID})
	}
	if c := opts.Cover; c != nil {
		pkg.Manifest = append(pkg.Manifest, opfOutItem{
			ID:         coverID,
			Href:       coverFileName(*c),
			MediaType:  c.MediaType,
			Properties: "cover-image",
		})
		pkg.Metadata.Metas = append(pkg.Metadata.Metas, opfOutProp{Name: "cover", Content: coverID})
	}
	return marshalXML(pkg)
}

func ncxDocument(sections []Section, md DocumentMetadata) ([]byte, error) {
	doc := ncxDoc{
		Xmlns:   ncxNS,
		Version: "2005-1",
		Head: &ncxHead{Metas: []ncxMeta{
			{Name: "dtb:uid", Content: md.Identifier},
			{Name: "dtb:depth", Content: "1"},
			{Name: "dtb:totalPageCount", Content: "0"},
			{Name: "dtb:maxPageNumber", Content: "0"},
		}},
		DocTitle: &ncxLabel{Text: md.Title},
	}
	for i, s := range sections {
		doc.NavMap.NavPoints = append(doc.NavMap.NavPoints, ncxNavPoint{
			ID:        "navpoint-" + strconv.Itoa(i+1),
			PlayOrder: strconv.Itoa(i + 1),
			Label:     ncxLabel{Text: s.Title},
			Content:   ncxContent{Src: s.FileName},
		})
	}
	return marshalXML(doc)
}

func marshalXML(v any) ([]byte, error) {
	out, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("epubsplit: encode %T: %w", v, err)
	}
	return append([]byte(xml.Header), out...), nil
}

// xmlSafe drops runes that may not appear in an XML document, such as C0
// controls other than tab, newline and carriage return. html.Render passes
// them through unchanged.
func xmlSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t', r == '\n', r == '\r':
			return r
		case r < 0x20, r >= 0xD800 && r <= 0xDFFF, r == 0xFFFE, r == 0xFFFF:
			return -1
		}
		return r
	}, s)
}

// element builds an *html.Node with optional text content.
func element(a atom.Atom, text string, attrs ...html.Attribute) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
	if text = xmlSafe(text); text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	return n
}

// xhtmlDocument wraps rendered body nodes in an XHTML 1.1 / ePub 3 shell.
func xhtmlDocument(title, lang string, body ...*html.Node) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString("<!DOCTYPE html>\n")
	fmt.Fprintf(&buf, `<html xmlns="%s" xmlns:epub="%s" xml:lang="%s" lang="%s">`+"\n",
		xhtmlNS, opsNS, html.EscapeString(xmlSafe(lang)), html.EscapeString(xmlSafe(lang)))
	fmt.Fprintf(&buf, "<head>\n<title>%s</title>\n</head>\n<body>\n", html.EscapeString(xmlSafe(title)))
	for _, n := range body {
		if err := html.Render(&buf, n); err != nil {
			return nil, err
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("</body>\n</html>\n")
	return buf.Bytes(), nil
}

// renderSection emits the title as <h1> and each non-blank body line as a
// <p>. Blank lines never produce empty paragraphs.
func renderSection(title, body, lang string) ([]byte, error) {
	nodes := []*html.Node{element(atom.H1, title)}
	for _, line := range strings.Split(body, "\n") {
		if line = strings.TrimSpace(xmlSafe(line)); line != "" {
			nodes = append(nodes, element(atom.P, line))
		}
	}
	return xhtmlDocument(title, lang, nodes...)
}

func navDocument(sections []Section, md DocumentMetadata) ([]byte, error) {
	ol := element(atom.Ol, "")
	for _, s := range sections {
		li := element(atom.Li, "")
		li.AppendChild(element(atom.A, s.Title, html.Attribute{Key: "href", Val: s.FileName}))
		ol.AppendChild(li)
	}
	nav := element(atom.Nav, "",
		html.Attribute{Key: "epub:type", Val: "toc"},
		html.Attribute{Key: "id", Val: "toc"},
	)
	nav.AppendChild(element(atom.H1, md.Title))
	nav.AppendChild(ol)
	return xhtmlDocument(md.Title, md.Language, nav)
}
