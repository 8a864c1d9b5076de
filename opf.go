package epubsplit

import (
	"encoding/xml"
	"fmt"
	"strings"
)

const dcNS = "http://purl.org/dc/elements/1.1/"

// opfPackage is the decoded <package> root of a source OPF file.
type opfPackage struct {
	XMLName          xml.Name    `xml:"package"`
	Version          string      `xml:"version,attr"`
	UniqueIdentifier string      `xml:"unique-identifier,attr"`
	Metadata         opfMetadata `xml:"metadata"`
	Manifest         []opfItem   `xml:"manifest>item"`
	Spine            opfSpine    `xml:"spine"`
}

// opfMetadata holds the Dublin Core elements and <meta> entries.
type opfMetadata struct {
	Titles       []dcElement `xml:"http://purl.org/dc/elements/1.1/ title"`
	Creators     []dcElement `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Languages    []dcElement `xml:"http://purl.org/dc/elements/1.1/ language"`
	Identifiers  []dcElement `xml:"http://purl.org/dc/elements/1.1/ identifier"`
	Publishers   []dcElement `xml:"http://purl.org/dc/elements/1.1/ publisher"`
	Dates        []dcElement `xml:"http://purl.org/dc/elements/1.1/ date"`
	Descriptions []dcElement `xml:"http://purl.org/dc/elements/1.1/ description"`
	Subjects     []dcElement `xml:"http://purl.org/dc/elements/1.1/ subject"`
	Rights       []dcElement `xml:"http://purl.org/dc/elements/1.1/ rights"`
	Sources      []dcElement `xml:"http://purl.org/dc/elements/1.1/ source"`
	Metas        []opfMeta   `xml:"meta"`
}

// dcElement is a Dublin Core element. ePub 2 puts file-as/role/scheme on the
// element itself; ePub 3 moves them to <meta refines="#id">.
type dcElement struct {
	Value  string `xml:",chardata"`
	ID     string `xml:"id,attr"`
	FileAs string `xml:"file-as,attr"`
	Role   string `xml:"role,attr"`
	Scheme string `xml:"scheme,attr"`
}

// opfMeta covers both <meta name content/> (ePub 2) and
// <meta property refines>value</meta> (ePub 3).
type opfMeta struct {
	Name     string `xml:"name,attr"`
	Content  string `xml:"content,attr"`
	Property string `xml:"property,attr"`
	Refines  string `xml:"refines,attr"`
	Value    string `xml:",chardata"`
}

type opfItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

// hasProperty reports whether the space separated properties list holds p.
func (it opfItem) hasProperty(p string) bool {
	for _, f := range strings.Fields(it.Properties) {
		if f == p {
			return true
		}
	}
	return false
}

type opfSpine struct {
	Toc      string       `xml:"toc,attr"`
	ItemRefs []opfItemRef `xml:"itemref"`
}

type opfItemRef struct {
	IDRef  string `xml:"idref,attr"`
	Linear string `xml:"linear,attr"`
}

// decodePackage parses OPF bytes. A missing version attribute means 2.0.
func decodePackage(data []byte) (*opfPackage, error) {
	data = trimBOM(replaceHTMLEntities(data))

	var pkg opfPackage
	if err := xml.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("epubsplit: parse OPF: %w: %w", ErrInputFormat, err)
	}
	if pkg.Version == "" {
		pkg.Version = "2.0"
	}
	return &pkg, nil
}

// indexManifest maps manifest ids to their items.
func indexManifest(items []opfItem) map[string]opfItem {
	byID := make(map[string]opfItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	return byID
}
