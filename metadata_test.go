package epubsplit

import (
	"reflect"
	"testing"
)

const testMetadataOPFv2 = `<?xml version="1.0" encoding="UTF-8"?>
<package version="2.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:title>Main Title</dc:title>
    <dc:creator opf:file-as="Doe, John" opf:role="aut">John Doe</dc:creator>
    <dc:creator opf:file-as="Smith, Jane" opf:role="edt">Jane Smith</dc:creator>
    <dc:language>en</dc:language>
    <dc:language>fr</dc:language>
    <dc:identifier opf:scheme="UUID">urn:uuid:12345</dc:identifier>
    <dc:identifier id="bookid" opf:scheme="ISBN">978-3-16-148410-0</dc:identifier>
    <dc:publisher>Test Publisher</dc:publisher>
    <dc:date>2024-01-15</dc:date>
    <dc:description>A test book description.</dc:description>
    <dc:subject>Fiction</dc:subject>
    <dc:subject>Science</dc:subject>
    <dc:rights>Copyright 2024</dc:rights>
    <dc:source>http://example.com/source</dc:source>
    <meta name="cover" content="cover-img"/>
  </metadata>
  <manifest>
    <item id="chap1" href="chapter1.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="chap1"/>
  </spine>
</package>`

const testMetadataOPFv3 = `<?xml version="1.0" encoding="UTF-8"?>
<package version="3.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title id="title1">Subtitle</dc:title>
    <dc:title id="title2">Main Title</dc:title>
    <dc:creator id="creator1">John Doe</dc:creator>
    <dc:creator id="creator2">Jane Smith</dc:creator>
    <dc:language>en</dc:language>
    <dc:identifier id="uid">urn:uuid:12345-67890</dc:identifier>
    <meta property="dcterms:modified">2024-06-15T00:00:00Z</meta>
    <meta refines="#title1" property="display-seq">2</meta>
    <meta refines="#title2" property="display-seq">1</meta>
    <meta refines="#creator1" property="file-as">Doe, John</meta>
    <meta refines="#creator1" property="role" scheme="marc:relators">aut</meta>
    <meta refines="#creator2" property="file-as">Smith, Jane</meta>
    <meta refines="#creator2" property="role" scheme="marc:relators">edt</meta>
    <meta refines="#uid" property="identifier-type">UUID</meta>
  </metadata>
  <manifest>
    <item id="chap1" href="chapter1.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="chap1"/>
  </spine>
</package>`

func decodeTestPackage(t *testing.T, opf string) *opfPackage {
	t.Helper()
	pkg, err := decodePackage([]byte(opf))
	if err != nil {
		t.Fatalf("decodePackage: %v", err)
	}
	return pkg
}

func TestCollectMetadata_V2(t *testing.T) {
	md := collectMetadata(decodeTestPackage(t, testMetadataOPFv2))

	if md.Version != "2.0" {
		t.Errorf("Version = %q, want %q", md.Version, "2.0")
	}
	if want := []string{"Main Title"}; !reflect.DeepEqual(md.Titles, want) {
		t.Errorf("Titles = %v, want %v", md.Titles, want)
	}
	wantAuthors := []Author{
		{Name: "John Doe", FileAs: "Doe, John", Role: "aut"},
		{Name: "Jane Smith", FileAs: "Smith, Jane", Role: "edt"},
	}
	if !reflect.DeepEqual(md.Authors, wantAuthors) {
		t.Errorf("Authors = %+v, want %+v", md.Authors, wantAuthors)
	}
	if want := []string{"en", "fr"}; !reflect.DeepEqual(md.Language, want) {
		t.Errorf("Language = %v, want %v", md.Language, want)
	}
	wantIDs := []Identifier{
		{Value: "urn:uuid:12345", Scheme: "UUID"},
		{Value: "978-3-16-148410-0", Scheme: "ISBN", ID: "bookid"},
	}
	if !reflect.DeepEqual(md.Identifiers, wantIDs) {
		t.Errorf("Identifiers = %+v, want %+v", md.Identifiers, wantIDs)
	}
	if md.UniqueIdentifier != "978-3-16-148410-0" {
		t.Errorf("UniqueIdentifier = %q, want the identifier named by unique-identifier", md.UniqueIdentifier)
	}

	single := []struct{ field, got, want string }{
		{"Publisher", md.Publisher, "Test Publisher"},
		{"Date", md.Date, "2024-01-15"},
		{"Description", md.Description, "A test book description."},
		{"Rights", md.Rights, "Copyright 2024"},
		{"Source", md.Source, "http://example.com/source"},
	}
	for _, s := range single {
		if s.got != s.want {
			t.Errorf("%s = %q, want %q", s.field, s.got, s.want)
		}
	}
	if want := []string{"Fiction", "Science"}; !reflect.DeepEqual(md.Subjects, want) {
		t.Errorf("Subjects = %v, want %v", md.Subjects, want)
	}
}

func TestCollectMetadata_V3Refinements(t *testing.T) {
	md := collectMetadata(decodeTestPackage(t, testMetadataOPFv3))

	if want := []string{"Main Title", "Subtitle"}; !reflect.DeepEqual(md.Titles, want) {
		t.Errorf("Titles = %v, want %v (display-seq order)", md.Titles, want)
	}
	wantAuthors := []Author{
		{Name: "John Doe", FileAs: "Doe, John", Role: "aut"},
		{Name: "Jane Smith", FileAs: "Smith, Jane", Role: "edt"},
	}
	if !reflect.DeepEqual(md.Authors, wantAuthors) {
		t.Errorf("Authors = %+v, want %+v", md.Authors, wantAuthors)
	}
	if len(md.Identifiers) != 1 || md.Identifiers[0].Scheme != "UUID" {
		t.Errorf("Identifiers = %+v, want one UUID identifier", md.Identifiers)
	}
	if md.UniqueIdentifier != "urn:uuid:12345-67890" {
		t.Errorf("UniqueIdentifier = %q", md.UniqueIdentifier)
	}
}

func TestCollectMetadata_TitleOrdering(t *testing.T) {
	tests := []struct {
		name  string
		metas string
		want  []string
	}{
		{"document order without display-seq", "", []string{"A", "B", "C"}},
		{"sequenced first", `<meta refines="#t3" property="display-seq">1</meta>`, []string{"C", "A", "B"}},
		{"invalid seq ignored", `<meta refines="#t1" property="display-seq">x</meta>`, []string{"A", "B", "C"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opf := `<package version="3.0" xmlns="http://www.idpf.org/2007/opf">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title id="t1">A</dc:title><dc:title id="t2">B</dc:title><dc:title id="t3">C</dc:title>
    ` + tt.metas + `
  </metadata>
</package>`
			md := collectMetadata(decodeTestPackage(t, opf))
			if !reflect.DeepEqual(md.Titles, tt.want) {
				t.Errorf("Titles = %v, want %v", md.Titles, tt.want)
			}
		})
	}
}

func TestCollectMetadata_Empty(t *testing.T) {
	md := collectMetadata(decodeTestPackage(t, `<package xmlns="http://www.idpf.org/2007/opf"><metadata/></package>`))

	if md.Version != "2.0" {
		t.Errorf("Version = %q, want default 2.0", md.Version)
	}
	if len(md.Titles) != 0 || len(md.Authors) != 0 || len(md.Language) != 0 || len(md.Identifiers) != 0 {
		t.Errorf("expected empty metadata, got %+v", md)
	}
	if md.UniqueIdentifier != "" || md.Publisher != "" {
		t.Errorf("expected empty strings, got %+v", md)
	}
}

func TestCollectMetadata_SkipsBlankValues(t *testing.T) {
	opf := `<package xmlns="http://www.idpf.org/2007/opf"><metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
  <dc:title>  </dc:title><dc:title> Real </dc:title>
  <dc:creator> </dc:creator>
  <dc:identifier></dc:identifier>
</metadata></package>`
	md := collectMetadata(decodeTestPackage(t, opf))
	if want := []string{"Real"}; !reflect.DeepEqual(md.Titles, want) {
		t.Errorf("Titles = %v, want %v", md.Titles, want)
	}
	if len(md.Authors) != 0 || len(md.Identifiers) != 0 {
		t.Errorf("blank creators/identifiers kept: %+v", md)
	}
}

func TestBookMetadata_ReturnsCopy(t *testing.T) {
	b := openTestBook(t, testBook{
		Title:   "Copy",
		Authors: []string{"A"},
		Parts:   []string{"<p>x</p>"},
	}.files())

	md := b.Metadata()
	md.Titles[0] = "changed"
	md.Authors[0].Name = "changed"

	again := b.Metadata()
	if again.Titles[0] != "Copy" || again.Authors[0].Name != "A" {
		t.Errorf("Metadata() shares state with the book: %+v", again)
	}
}
