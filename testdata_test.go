package epubsplit

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// testContainerXML is a well-formed META-INF/container.xml pointing to OEBPS/content.opf.
const testContainerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

// buildTestZipBytes creates an in-memory ZIP archive from the provided files map
// (path → content). "mimetype" is written first when present; the remaining
// entries follow in name order so fixtures are reproducible.
func buildTestZipBytes(t testing.TB, files map[string]string) []byte {
	t.Helper()
	names := make([]string, 0, len(files))
	for name := range files {
		if name != "mimetype" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if _, ok := files["mimetype"]; ok {
		names = append([]string{"mimetype"}, names...)
	}

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for _, name := range names {
		fw, err := zw.Create(name)
		if err != nil {
			t.Fatalf("buildTestZipBytes: create %s: %v", name, err)
		}
		if _, err := io.WriteString(fw, files[name]); err != nil {
			t.Fatalf("buildTestZipBytes: write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("buildTestZipBytes: close writer: %v", err)
	}
	return buf.Bytes()
}

// buildTestZip returns a *zip.Reader over buildTestZipBytes(files).
func buildTestZip(t testing.TB, files map[string]string) *zip.Reader {
	t.Helper()
	data := buildTestZipBytes(t, files)
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("buildTestZip: open reader: %v", err)
	}
	return r
}

// buildTestEPubFile writes an ePub (ZIP) archive to a temporary file and returns
// the file path. This variant is useful for testing Open() which requires a file path.
func buildTestEPubFile(t testing.TB, files map[string]string) string {
	t.Helper()
	fp := filepath.Join(t.TempDir(), "test.epub")
	if err := os.WriteFile(fp, buildTestZipBytes(t, files), 0644); err != nil {
		t.Fatalf("buildTestEPubFile: write file: %v", err)
	}
	return fp
}

// openTestBook opens files as a Book and closes it when the test ends.
func openTestBook(t testing.TB, files map[string]string) *Book {
	t.Helper()
	data := buildTestZipBytes(t, files)
	b, err := NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

// testBook describes a small ePub 2 package with one XHTML part per entry of
// Parts (each the inner markup of <body>) and an NCX naming them "Part N".
// Empty metadata fields are left out of the OPF.
type testBook struct {
	Title      string
	Language   string
	Identifier string
	Authors    []string
	Parts      []string

	// Extra files are added verbatim; ExtraManifest is spliced into <manifest>.
	Extra         map[string]string
	ExtraManifest string
}

func (tb testBook) files() map[string]string {
	var meta, manifest, spine, nav strings.Builder
	if tb.Title != "" {
		fmt.Fprintf(&meta, "    <dc:title>%s</dc:title>\n", tb.Title)
	}
	for _, a := range tb.Authors {
		fmt.Fprintf(&meta, "    <dc:creator>%s</dc:creator>\n", a)
	}
	if tb.Language != "" {
		fmt.Fprintf(&meta, "    <dc:language>%s</dc:language>\n", tb.Language)
	}
	if tb.Identifier != "" {
		fmt.Fprintf(&meta, "    <dc:identifier id=\"bookid\">%s</dc:identifier>\n", tb.Identifier)
	}

	files := map[string]string{
		"mimetype":               "application/epub+zip",
		"META-INF/container.xml": testContainerXML,
	}
	manifest.WriteString(`    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>` + "\n")
	for i, body := range tb.Parts {
		id := fmt.Sprintf("p%d", i+1)
		href := fmt.Sprintf("part%03d.xhtml", i+1)
		fmt.Fprintf(&manifest, `    <item id="%s" href="%s" media-type="application/xhtml+xml"/>`+"\n", id, href)
		fmt.Fprintf(&spine, `    <itemref idref="%s"/>`+"\n", id)
		fmt.Fprintf(&nav, `    <navPoint id="np%d" playOrder="%d"><navLabel><text>Part %d</text></navLabel><content src="%s"/></navPoint>`+"\n",
			i+1, i+1, i+1, href)
		files["OEBPS/"+href] = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>ignored</title></head>
<body>` + body + `</body>
</html>`
	}
	manifest.WriteString(tb.ExtraManifest)

	files["OEBPS/content.opf"] = fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<package version="2.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
%s  </metadata>
  <manifest>
%s  </manifest>
  <spine toc="ncx">
%s  </spine>
</package>`, meta.String(), manifest.String(), spine.String())

	files["OEBPS/toc.ncx"] = fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <navMap>
%s  </navMap>
</ncx>`, nav.String())

	for name, content := range tb.Extra {
		files[name] = content
	}
	return files
}

func (tb testBook) bytes(t testing.TB) []byte {
	t.Helper()
	return buildTestZipBytes(t, tb.files())
}

// paragraphs renders each line as a <p>.
func paragraphs(lines ...string) string {
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString("<p>" + l + "</p>\n")
	}
	return sb.String()
}
