package epubsplit

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// unzip returns the entry names in archive order and their contents.
func unzip(t *testing.T, data []byte) ([]string, map[string][]byte, *zip.Reader) {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	var names []string
	contents := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		names = append(names, f.Name)
		contents[f.Name] = b
	}
	return names, contents, zr
}

func htmlDoc(t *testing.T, data []byte) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("goquery: %v", err)
	}
	return doc
}

func exampleRecords() []ChapterRecord {
	return MustSegmenter("").Segment("intro text\n第1章 标题\nbody one\n\n  body two  \n第2章\nbody three")
}

var exampleMetadata = DocumentMetadata{
	Title:      "测试书",
	Language:   "zh",
	Identifier: "urn:uuid:00000000-0000-0000-0000-000000000001",
	Authors:    []string{"作者"},
}

func TestRebuild_Layout(t *testing.T) {
	out, err := Rebuild(exampleRecords(), exampleMetadata, RebuildOptions{})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	names, files, zr := unzip(t, out.Data)
	wantNames := []string{
		"mimetype",
		"META-INF/container.xml",
		"OEBPS/content.opf",
		"OEBPS/toc.ncx",
		"OEBPS/nav.xhtml",
		"OEBPS/chap_001.xhtml",
		"OEBPS/chap_002.xhtml",
		"OEBPS/chap_003.xhtml",
	}
	if strings.Join(names, ",") != strings.Join(wantNames, ",") {
		t.Errorf("entries = %v, want %v", names, wantNames)
	}
	if zr.File[0].Method != zip.Store {
		t.Errorf("mimetype stored with method %d, want Store", zr.File[0].Method)
	}
	if string(files["mimetype"]) != "application/epub+zip" {
		t.Errorf("mimetype = %q", files["mimetype"])
	}
	// The literal mimetype must sit at offset 38 for magic-number sniffing.
	if got := string(out.Data[30:38]); got != "mimetype" {
		t.Errorf("local header name = %q, want mimetype", got)
	}
	if got := string(out.Data[38:58]); got != "application/epub+zip" {
		t.Errorf("bytes at 38 = %q, want application/epub+zip", got)
	}

	wantSections := []struct{ id, file, title string }{
		{"chap_001", "chap_001.xhtml", "Intro"},
		{"chap_002", "chap_002.xhtml", "第1章 标题"},
		{"chap_003", "chap_003.xhtml", "第2章"},
	}
	if len(out.Sections) != len(wantSections) {
		t.Fatalf("Sections = %d, want %d", len(out.Sections), len(wantSections))
	}
	for i, w := range wantSections {
		s := out.Sections[i]
		if s.ID != w.id || s.FileName != w.file || s.Title != w.title || s.Order != i {
			t.Errorf("Sections[%d] = {%s %s %q %d}, want {%s %s %q %d}", i, s.ID, s.FileName, s.Title, s.Order, w.id, w.file, w.title, i)
		}
		if !bytes.Equal(s.Body, files["OEBPS/"+s.FileName]) {
			t.Errorf("Sections[%d].Body differs from the archived file", i)
		}
	}
}

func TestRebuild_SectionMarkup(t *testing.T) {
	records := []ChapterRecord{{
		Heading:    "第1章 <危险> & \"引号\"",
		Text:       "第1章 <危险> & \"引号\"\n\n line <b>one</b> \n\n\nline two\n",
		bodyOffset: len("第1章 <危险> & \"引号\""),
	}}
	out, err := Rebuild(records, exampleMetadata, RebuildOptions{})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	body := out.Sections[0].Body
	if !bytes.Contains(body, []byte("&lt;b&gt;one&lt;/b&gt;")) {
		t.Errorf("body text not escaped:\n%s", body)
	}

	doc := htmlDoc(t, body)
	if got := doc.Find("h1").Text(); got != "第1章 <危险> & \"引号\"" {
		t.Errorf("h1 = %q", got)
	}
	if got := doc.Find("title").Text(); got != "第1章 <危险> & \"引号\"" {
		t.Errorf("title = %q", got)
	}
	var paras []string
	doc.Find("body p").Each(func(_ int, s *goquery.Selection) {
		paras = append(paras, s.Text())
	})
	if strings.Join(paras, "|") != "line <b>one</b>|line two" {
		t.Errorf("paragraphs = %q; blank lines must not produce empty paragraphs", paras)
	}
	if lang, _ := doc.Find("html").Attr("lang"); lang != "zh" {
		t.Errorf("html lang = %q, want zh", lang)
	}
}

func TestRebuild_UntitledRecordsGetNumberedTitles(t *testing.T) {
	records := []ChapterRecord{wholeText("only text")}
	out, err := Rebuild(records, exampleMetadata, RebuildOptions{})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if out.Sections[0].Title != "Chapter 1" {
		t.Errorf("Title = %q, want %q", out.Sections[0].Title, "Chapter 1")
	}
	doc := htmlDoc(t, out.Sections[0].Body)
	if doc.Find("h1").Text() != "Chapter 1" || doc.Find("p").Text() != "only text" {
		t.Errorf("section markup = %s", out.Sections[0].Body)
	}
}

func TestRebuild_NavigationMatchesSpine(t *testing.T) {
	out, err := Rebuild(exampleRecords(), exampleMetadata, RebuildOptions{})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	_, files, _ := unzip(t, out.Data)

	pkg, err := decodePackage(files["OEBPS/content.opf"])
	if err != nil {
		t.Fatalf("decodePackage: %v", err)
	}
	var spine []string
	for _, ref := range pkg.Spine.ItemRefs {
		spine = append(spine, indexManifest(pkg.Manifest)[ref.IDRef].Href)
	}

	var nav []string
	var navTitles []string
	htmlDoc(t, files["OEBPS/nav.xhtml"]).Find("nav#toc ol li a").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		nav = append(nav, href)
		navTitles = append(navTitles, s.Text())
	})

	ncx, err := parseNCX(files["OEBPS/toc.ncx"], "toc.ncx")
	if err != nil {
		t.Fatalf("parseNCX: %v", err)
	}
	var ncxHrefs, ncxTitles []string
	for _, it := range ncx {
		ncxHrefs = append(ncxHrefs, it.Href)
		ncxTitles = append(ncxTitles, it.Title)
	}

	want := "chap_001.xhtml,chap_002.xhtml,chap_003.xhtml"
	for name, got := range map[string][]string{"spine": spine, "nav": nav, "ncx": ncxHrefs} {
		if strings.Join(got, ",") != want {
			t.Errorf("%s order = %v, want %s", name, got, want)
		}
	}
	wantTitles := "Intro,第1章 标题,第2章"
	if strings.Join(navTitles, ",") != wantTitles || strings.Join(ncxTitles, ",") != wantTitles {
		t.Errorf("nav titles = %v, ncx titles = %v, want %s", navTitles, ncxTitles, wantTitles)
	}
	if pkg.Spine.Toc != "ncx" {
		t.Errorf("spine toc = %q, want ncx", pkg.Spine.Toc)
	}
	for _, ref := range pkg.Spine.ItemRefs {
		if ref.IDRef == "nav" {
			t.Error("nav document is in the spine")
		}
	}
}

func TestRebuild_PackageMetadata(t *testing.T) {
	modified := time.Date(2024, 5, 6, 7, 8, 9, 0, time.FixedZone("x", 3600))
	out, err := Rebuild(exampleRecords(), exampleMetadata, RebuildOptions{Modified: modified})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	_, files, _ := unzip(t, out.Data)
	opf := files["OEBPS/content.opf"]

	pkg, err := decodePackage(opf)
	if err != nil {
		t.Fatalf("decodePackage: %v", err)
	}
	md := collectMetadata(pkg)
	if pkg.Version != "3.0" {
		t.Errorf("version = %q, want 3.0", pkg.Version)
	}
	if len(md.Titles) != 1 || md.Titles[0] != exampleMetadata.Title {
		t.Errorf("titles = %v", md.Titles)
	}
	if len(md.Language) != 1 || md.Language[0] != "zh" {
		t.Errorf("language = %v", md.Language)
	}
	if md.UniqueIdentifier != exampleMetadata.Identifier {
		t.Errorf("unique identifier = %q", md.UniqueIdentifier)
	}
	if len(md.Authors) != 1 || md.Authors[0].Name != "作者" {
		t.Errorf("authors = %+v", md.Authors)
	}
	if !bytes.Contains(opf, []byte(`<meta property="dcterms:modified">2024-05-06T06:08:09Z</meta>`)) {
		t.Errorf("dcterms:modified missing or not UTC:\n%s", opf)
	}
	if bytes.Contains(opf, []byte("dc:publisher")) {
		t.Error("empty publisher written")
	}
}

func TestRebuild_DefaultModified(t *testing.T) {
	out, err := Rebuild(exampleRecords(), exampleMetadata, RebuildOptions{})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	_, files, _ := unzip(t, out.Data)
	if !bytes.Contains(files["OEBPS/content.opf"], []byte("2000-01-01T00:00:00Z")) {
		t.Error("DefaultModified not written")
	}
}

func TestRebuild_Deterministic(t *testing.T) {
	a, err := Rebuild(exampleRecords(), exampleMetadata, RebuildOptions{})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	time.Sleep(2 * time.Second) // zip timestamps have 2s resolution
	b, err := Rebuild(exampleRecords(), exampleMetadata, RebuildOptions{})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if !bytes.Equal(a.Data, b.Data) {
		t.Error("two rebuilds of the same input differ")
	}
}

func TestRebuild_Cover(t *testing.T) {
	cover := &CoverImage{Path: "OEBPS/images/front.png", MediaType: "image/png", Data: []byte("png-bytes")}
	out, err := Rebuild(exampleRecords(), exampleMetadata, RebuildOptions{Cover: cover})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	names, files, _ := unzip(t, out.Data)
	if names[len(names)-1] != "OEBPS/cover.png" || string(files["OEBPS/cover.png"]) != "png-bytes" {
		t.Errorf("cover entry missing: %v", names)
	}

	b, err := NewReader(bytes.NewReader(out.Data), int64(len(out.Data)))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer b.Close()
	got, err := b.Cover()
	if err != nil {
		t.Fatalf("Cover: %v", err)
	}
	if got.Path != "OEBPS/cover.png" || string(got.Data) != "png-bytes" {
		t.Errorf("Cover = %+v", got)
	}
	for _, p := range b.Parts() {
		if !p.IsDocument() {
			t.Errorf("non-document %s in spine", p.Href)
		}
	}
}

func TestRebuild_NoRecords(t *testing.T) {
	out, err := Rebuild(nil, exampleMetadata, RebuildOptions{})
	if !errors.Is(err, ErrNoChapters) {
		t.Errorf("error = %v, want ErrNoChapters", err)
	}
	if out != nil {
		t.Error("output returned alongside an error")
	}
}

func TestRebuild_ReadBackText(t *testing.T) {
	text := "intro text\n第1章 标题\nbody one\nbody two\n第2章\nbody three"
	out, err := Rebuild(MustSegmenter("").Segment(text), exampleMetadata, RebuildOptions{})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	b, err := NewReader(bytes.NewReader(out.Data), int64(len(out.Data)))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer b.Close()

	got, err := ExtractText(b, ExtractOptions{})
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if want := "Intro\n" + text; got != want {
		t.Errorf("round trip text =\n%q\nwant\n%q", got, want)
	}
}

// wellFormed reports the first XML syntax error in data.
func wellFormed(data []byte) error {
	d := xml.NewDecoder(bytes.NewReader(data))
	for {
		if _, err := d.Token(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func TestRebuild_ControlCharactersStripped(t *testing.T) {
	text := "前\x01言\n第1章 标\x02题\na\x01b\n\x0b\x1f\nc\uFFFEd"
	md := exampleMetadata
	md.Title = "测\x07试书"
	out, err := Rebuild(MustSegmenter("").Segment(text), md, RebuildOptions{})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	for _, s := range out.Sections {
		if err := wellFormed(s.Body); err != nil {
			t.Errorf("%s is not well-formed XML: %v\n%s", s.FileName, err, s.Body)
		}
	}
	_, files, _ := unzip(t, out.Data)
	for _, name := range []string{"OEBPS/nav.xhtml", "OEBPS/toc.ncx", "OEBPS/content.opf"} {
		if err := wellFormed(files[name]); err != nil {
			t.Errorf("%s is not well-formed XML: %v", name, err)
		}
	}

	if got := out.Sections[1].Title; got != "第1章 标题" {
		t.Errorf("Title = %q, want %q", got, "第1章 标题")
	}
	paras := htmlDoc(t, out.Sections[1].Body).Find("p").Map(func(_ int, s *goquery.Selection) string {
		return s.Text()
	})
	if got := strings.Join(paras, "|"); got != "ab|cd" {
		t.Errorf("paragraphs = %q, want %q", got, "ab|cd")
	}
}
