package epubsplit

import (
	"path"
	"strings"
)

// CoverImage is the cover picture of a source book.
type CoverImage struct {
	// Path is the ZIP-internal path of the image.
	Path string

	// MediaType is the image MIME type.
	MediaType string

	Data []byte
}

// Ext returns the image file extension including the dot, derived from the
// media type first and the source path second.
func (c CoverImage) Ext() string {
	switch strings.ToLower(c.MediaType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/svg+xml":
		return ".svg"
	case "image/webp":
		return ".webp"
	}
	if ext := path.Ext(c.Path); ext != "" {
		return strings.ToLower(ext)
	}
	return ".img"
}

// Cover locates the cover image. The ePub 3 cover-image property wins,
// then the ePub 2 <meta name="cover">, then an image manifest item whose id
// or href mentions "cover". Returns ErrNoCover otherwise.
func (b *Book) Cover() (CoverImage, error) {
	for _, find := range []func() (opfItem, bool){
		b.coverByProperty,
		b.coverByMeta,
		b.coverByName,
	} {
		if it, ok := find(); ok {
			p := b.fromOPF(it.Href)
			data, err := b.ReadFile(p)
			if err != nil {
				return CoverImage{}, err
			}
			return CoverImage{Path: p, MediaType: it.MediaType, Data: data}, nil
		}
	}
	return CoverImage{}, ErrNoCover
}

func (b *Book) coverByProperty() (opfItem, bool) {
	for _, it := range b.pkg.Manifest {
		if it.hasProperty("cover-image") && isImage(it.MediaType) {
			return it, true
		}
	}
	return opfItem{}, false
}

func (b *Book) coverByMeta() (opfItem, bool) {
	for _, m := range b.pkg.Metadata.Metas {
		if !strings.EqualFold(m.Name, "cover") || m.Content == "" {
			continue
		}
		if it, ok := b.byID[m.Content]; ok && isImage(it.MediaType) {
			return it, true
		}
	}
	return opfItem{}, false
}

func (b *Book) coverByName() (opfItem, bool) {
	for _, it := range b.pkg.Manifest {
		if !isImage(it.MediaType) {
			continue
		}
		if strings.Contains(strings.ToLower(it.ID), "cover") || strings.Contains(strings.ToLower(it.Href), "cover") {
			return it, true
		}
	}
	return opfItem{}, false
}

func isImage(mediaType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mediaType)), "image/")
}
