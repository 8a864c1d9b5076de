package epubsplit

import (
	"archive/zip"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
)

// maxEntrySize bounds the decompressed size of a single ZIP entry so a
// crafted archive cannot exhaust memory. 256 MB.
const maxEntrySize int64 = 256 * 1024 * 1024

// lookupEntry finds a ZIP entry by name, preferring an exact match and
// falling back to a case-insensitive one. Returns nil when absent.
func lookupEntry(zr *zip.Reader, name string) *zip.File {
	var folded *zip.File
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
		if folded == nil && strings.EqualFold(f.Name, name) {
			folded = f
		}
	}
	return folded
}

// resolveHref resolves href against the directory of base. Both are
// ZIP-internal, slash separated. Absolute hrefs and results escaping the
// archive root resolve to "".
func resolveHref(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "/") {
		return ""
	}
	if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}
	p := path.Clean(path.Join(path.Dir(base), href))
	if !insideArchive(p) {
		return ""
	}
	return p
}

// insideArchive reports whether p stays within the archive root.
func insideArchive(p string) bool {
	p = path.Clean(p)
	return !strings.HasPrefix(p, "/") && p != ".." && !strings.HasPrefix(p, "../")
}

// trimBOM drops a leading UTF-8 byte order mark.
func trimBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

// readEntry reads a whole ZIP entry, bounded by maxEntrySize.
func readEntry(f *zip.File) ([]byte, error) {
	return readEntryLimit(f, maxEntrySize)
}

// readEntryLimit reads f, refusing unsafe names and anything whose declared
// or actual decompressed size exceeds limit.
func readEntryLimit(f *zip.File, limit int64) ([]byte, error) {
	if !insideArchive(f.Name) {
		return nil, fmt.Errorf("epubsplit: unsafe zip entry path: %s", f.Name)
	}
	if f.UncompressedSize64 > uint64(limit) {
		return nil, fmt.Errorf("epubsplit: zip entry %s too large: %d bytes (max %d)", f.Name, f.UncompressedSize64, limit)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("epubsplit: open zip entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	// The header size can lie; read one byte past the limit to notice.
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("epubsplit: read zip entry %s: %w", f.Name, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("epubsplit: zip entry %s exceeds %d bytes", f.Name, limit)
	}
	return data, nil
}
