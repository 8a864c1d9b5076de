package epubsplit

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"strings"
)

// epubMimetype is the required content of the "mimetype" entry.
const epubMimetype = "application/epub+zip"

// Book is an opened source ePub. It exposes the reading-order parts, the
// package metadata, the table of contents and the cover image.
//
// A Book is not safe for concurrent use by multiple goroutines.
type Book struct {
	zip      *zip.Reader
	entries  map[string]*zip.File // exact name
	folded   map[string]*zip.File // lower-cased name
	closer   io.Closer
	opfPath  string
	opfDir   string
	pkg      *opfPackage
	byID     map[string]opfItem
	parts    []Part
	metadata Metadata
	toc      []TOCItem
	warnings []string
}

// Open opens an ePub file at the given path.
// The caller must call Close when done reading from the book.
func Open(name string) (*Book, error) {
	zrc, err := zip.OpenReader(name)
	if err != nil {
		return nil, fmt.Errorf("epubsplit: open %s: %w: %w", name, ErrInputFormat, err)
	}
	b, err := newBook(&zrc.Reader, zrc)
	if err != nil {
		zrc.Close()
		return nil, err
	}
	return b, nil
}

// NewReader opens an ePub from r. The caller owns r; Close only releases
// internal state.
func NewReader(r io.ReaderAt, size int64) (*Book, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("epubsplit: open zip: %w: %w", ErrInputFormat, err)
	}
	return newBook(zr, nil)
}

func newBook(zr *zip.Reader, closer io.Closer) (*Book, error) {
	b := &Book{zip: zr, closer: closer}
	b.indexEntries()
	b.checkMimetype()

	opfPath, err := locatePackage(zr)
	if err != nil {
		return nil, err
	}
	b.opfPath = opfPath
	b.opfDir = path.Dir(opfPath)

	obfuscated, err := checkDRM(zr)
	if err != nil {
		return nil, err
	}
	if obfuscated {
		b.warnings = append(b.warnings, "font obfuscation detected; obfuscated fonts are not carried over")
	}

	f := b.lookup(opfPath)
	if f == nil {
		return nil, fmt.Errorf("epubsplit: OPF file %s missing from archive: %w", opfPath, ErrInputFormat)
	}
	data, err := readEntry(f)
	if err != nil {
		return nil, fmt.Errorf("epubsplit: read OPF: %w: %w", ErrInputFormat, err)
	}
	pkg, err := decodePackage(data)
	if err != nil {
		return nil, err
	}

	b.pkg = pkg
	b.byID = indexManifest(pkg.Manifest)
	b.metadata = collectMetadata(pkg)
	b.buildParts()
	b.loadTOC()
	return b, nil
}

// checkMimetype records a warning when the first entry is not a "mimetype"
// file holding application/epub+zip. Readers in the wild tolerate this, so
// neither do we reject it.
func (b *Book) checkMimetype() {
	if len(b.zip.File) == 0 {
		b.warnings = append(b.warnings, "empty ZIP archive; mimetype entry missing")
		return
	}
	first := b.zip.File[0]
	if first.Name != "mimetype" {
		b.warnings = append(b.warnings, `first ZIP entry is not "mimetype"`)
		return
	}
	data, err := readEntry(first)
	if err != nil {
		b.warnings = append(b.warnings, fmt.Sprintf("cannot read mimetype entry: %v", err))
		return
	}
	if got := strings.TrimSpace(string(data)); got != epubMimetype {
		b.warnings = append(b.warnings, fmt.Sprintf("unexpected mimetype: %q", got))
	}
}

// Close releases the underlying file when the Book came from Open.
// Close is idempotent.
func (b *Book) Close() error {
	if b.closer == nil {
		return nil
	}
	err := b.closer.Close()
	b.closer = nil
	return err
}

// ReadFile returns the contents of a ZIP entry. Lookup falls back to a
// case-insensitive match.
func (b *Book) ReadFile(name string) ([]byte, error) {
	f := b.lookup(name)
	if f == nil {
		return nil, ErrFileNotFound
	}
	return readEntry(f)
}

func (b *Book) indexEntries() {
	b.entries = make(map[string]*zip.File, len(b.zip.File))
	b.folded = make(map[string]*zip.File, len(b.zip.File))
	for _, f := range b.zip.File {
		if _, ok := b.entries[f.Name]; !ok {
			b.entries[f.Name] = f
		}
		lower := strings.ToLower(f.Name)
		if _, ok := b.folded[lower]; !ok {
			b.folded[lower] = f
		}
	}
}

func (b *Book) lookup(name string) *zip.File {
	if f, ok := b.entries[name]; ok {
		return f
	}
	return b.folded[strings.ToLower(name)]
}

// fromOPF turns a manifest href into a ZIP path.
func (b *Book) fromOPF(href string) string {
	if href == "" {
		return ""
	}
	if b.opfDir == "." {
		return href
	}
	return path.Join(b.opfDir, href)
}

// Version is the package version attribute ("2.0" when absent).
func (b *Book) Version() string {
	return b.pkg.Version
}

// Metadata returns a copy of the package metadata.
func (b *Book) Metadata() Metadata {
	return b.metadata.clone()
}

// Warnings returns the non-fatal problems noticed while opening the book.
func (b *Book) Warnings() []string {
	return append([]string(nil), b.warnings...)
}

// TOC returns a copy of the table of contents. It is empty, not nil, when
// the book has none.
func (b *Book) TOC() []TOCItem {
	return cloneTOC(b.toc)
}

// HasTOC reports whether a table of contents was found.
func (b *Book) HasTOC() bool {
	return len(b.toc) > 0
}
