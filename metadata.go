package epubsplit

import (
	"sort"
	"strconv"
	"strings"
)

// Metadata is the Dublin Core metadata of a source package. An absent
// element is an empty slice or string.
type Metadata struct {
	// Version is the ePub version ("2.0", "3.0", ...).
	Version string

	// Titles holds every dc:title; the first is the primary title.
	// ePub 3 display-seq refinements decide the order.
	Titles []string

	// Authors holds every dc:creator.
	Authors []Author

	// Language holds every dc:language.
	Language []string

	// Identifiers holds every dc:identifier.
	Identifiers []Identifier

	// UniqueIdentifier is the value of the identifier named by the
	// package's unique-identifier attribute, if it resolves.
	UniqueIdentifier string

	Publisher   string
	Date        string
	Description string
	Subjects    []string
	Rights      string
	Source      string
}

// Author is a dc:creator entry.
type Author struct {
	Name   string
	FileAs string
	Role   string
}

// Identifier is a dc:identifier entry.
type Identifier struct {
	Value  string
	Scheme string
	ID     string
}

func (m Metadata) clone() Metadata {
	out := m
	out.Titles = append([]string(nil), m.Titles...)
	out.Authors = append([]Author(nil), m.Authors...)
	out.Language = append([]string(nil), m.Language...)
	out.Identifiers = append([]Identifier(nil), m.Identifiers...)
	out.Subjects = append([]string(nil), m.Subjects...)
	return out
}

// collectMetadata converts the decoded OPF metadata block.
func collectMetadata(pkg *opfPackage) Metadata {
	om := &pkg.Metadata
	refines := refinementsByID(om.Metas)

	md := Metadata{
		Version:     pkg.Version,
		Titles:      orderedTitles(om.Titles, refines),
		Authors:     creators(om.Creators, refines),
		Language:    values(om.Languages),
		Subjects:    values(om.Subjects),
		Publisher:   firstValue(om.Publishers),
		Date:        firstValue(om.Dates),
		Description: firstValue(om.Descriptions),
		Rights:      firstValue(om.Rights),
		Source:      firstValue(om.Sources),
	}

	for _, el := range om.Identifiers {
		v := strings.TrimSpace(el.Value)
		if v == "" {
			continue
		}
		id := Identifier{Value: v, Scheme: el.Scheme, ID: el.ID}
		if id.Scheme == "" && el.ID != "" {
			id.Scheme, _ = refinement(refines, el.ID, "identifier-type")
		}
		if el.ID != "" && el.ID == pkg.UniqueIdentifier && md.UniqueIdentifier == "" {
			md.UniqueIdentifier = v
		}
		md.Identifiers = append(md.Identifiers, id)
	}
	return md
}

func values(els []dcElement) []string {
	var out []string
	for _, el := range els {
		if v := strings.TrimSpace(el.Value); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func firstValue(els []dcElement) string {
	for _, el := range els {
		if v := strings.TrimSpace(el.Value); v != "" {
			return v
		}
	}
	return ""
}

// refinementsByID groups <meta refines="#id"> entries by target id.
func refinementsByID(metas []opfMeta) map[string][]opfMeta {
	m := make(map[string][]opfMeta)
	for _, meta := range metas {
		if id, ok := strings.CutPrefix(meta.Refines, "#"); ok && id != "" {
			m[id] = append(m[id], meta)
		}
	}
	return m
}

func refinement(refines map[string][]opfMeta, id, property string) (string, bool) {
	for _, m := range refines[id] {
		if m.Property != property {
			continue
		}
		if v := strings.TrimSpace(m.Value); v != "" {
			return v, true
		}
	}
	return "", false
}

// orderedTitles keeps document order unless a display-seq refinement is
// present, in which case sequenced titles come first, ascending.
func orderedTitles(els []dcElement, refines map[string][]opfMeta) []string {
	type entry struct {
		value string
		seq   int
	}
	var entries []entry
	sequenced := false
	for _, el := range els {
		v := strings.TrimSpace(el.Value)
		if v == "" {
			continue
		}
		e := entry{value: v}
		if s, ok := refinement(refines, el.ID, "display-seq"); ok && el.ID != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				e.seq = n
				sequenced = true
			}
		}
		entries = append(entries, e)
	}
	if sequenced {
		sort.SliceStable(entries, func(i, j int) bool {
			a, b := entries[i].seq, entries[j].seq
			switch {
			case a == 0:
				return false
			case b == 0:
				return true
			default:
				return a < b
			}
		})
	}

	var out []string
	for _, e := range entries {
		out = append(out, e.value)
	}
	return out
}

func creators(els []dcElement, refines map[string][]opfMeta) []Author {
	var out []Author
	for _, el := range els {
		name := strings.TrimSpace(el.Value)
		if name == "" {
			continue
		}
		a := Author{Name: name, FileAs: el.FileAs, Role: el.Role}
		if el.ID != "" {
			if a.FileAs == "" {
				a.FileAs, _ = refinement(refines, el.ID, "file-as")
			}
			if a.Role == "" {
				a.Role, _ = refinement(refines, el.ID, "role")
			}
		}
		out = append(out, a)
	}
	return out
}
