package epubsplit

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"strings"
)

const (
	// containerPath is where every ePub records the location of its package document.
	containerPath = "META-INF/container.xml"

	packageMediaType = "application/oebps-package+xml"
	containerNS      = "urn:oasis:names:tc:opendocument:xmlns:container"
)

// containerDoc models META-INF/container.xml. The same struct is used to
// decode source archives and to encode rebuilt ones.
type containerDoc struct {
	XMLName   xml.Name        `xml:"container"`
	Xmlns     string          `xml:"xmlns,attr,omitempty"`
	Version   string          `xml:"version,attr,omitempty"`
	RootFiles []containerRoot `xml:"rootfiles>rootfile"`
}

type containerRoot struct {
	FullPath  string `xml:"full-path,attr"`
	MediaType string `xml:"media-type,attr"`
}

// locatePackage returns the ZIP path of the OPF package document.
//
// container.xml is authoritative when present. Archives that lack it are
// scanned for the first *.opf entry. Anything else wraps ErrInputFormat.
func locatePackage(zr *zip.Reader) (string, error) {
	if f := lookupEntry(zr, containerPath); f != nil {
		return packageFromContainer(f)
	}
	for _, f := range zr.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".opf") {
			return f.Name, nil
		}
	}
	return "", fmt.Errorf("epubsplit: no OPF file in archive: %w", ErrInputFormat)
}

func packageFromContainer(f *zip.File) (string, error) {
	data, err := readEntry(f)
	if err != nil {
		return "", fmt.Errorf("epubsplit: read container.xml: %w: %w", ErrInputFormat, err)
	}

	var c containerDoc
	if err := xml.Unmarshal(trimBOM(data), &c); err != nil {
		return "", fmt.Errorf("epubsplit: parse container.xml: %w: %w", ErrInputFormat, err)
	}

	first := ""
	for _, rf := range c.RootFiles {
		p := strings.TrimSpace(rf.FullPath)
		if p == "" {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(rf.MediaType), packageMediaType) {
			return p, nil
		}
		if first == "" {
			first = p
		}
	}
	if first == "" {
		return "", fmt.Errorf("epubsplit: container.xml names no package document: %w", ErrInputFormat)
	}
	return first, nil
}
