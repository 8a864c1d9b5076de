package epubsplit

import (
	"bytes"
	"fmt"
	"io"
	"path"

	goreader "github.com/taylorskalyo/goreader/epub"
)

// VerifyOutput re-opens rebuilt bytes with this package's reader and checks
// that the spine, the table of contents and sections agree one to one and
// in the same order.
func VerifyOutput(data []byte, sections []Section) error {
	b, err := NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("%w: reopen: %w", ErrVerifyFailed, err)
	}
	defer b.Close()

	parts := b.Parts()
	if len(parts) != len(sections) {
		return fmt.Errorf("%w: spine has %d items, want %d", ErrVerifyFailed, len(parts), len(sections))
	}
	for i, p := range parts {
		if path.Base(p.Href) != sections[i].FileName {
			return fmt.Errorf("%w: spine item %d is %s, want %s", ErrVerifyFailed, i, p.Href, sections[i].FileName)
		}
	}

	toc := b.TOC()
	if len(toc) != len(sections) {
		return fmt.Errorf("%w: toc has %d entries, want %d", ErrVerifyFailed, len(toc), len(sections))
	}
	for i, it := range toc {
		if it.SpineIndex != i || it.Title != sections[i].Title {
			return fmt.Errorf("%w: toc entry %d is %q (spine %d), want %q (spine %d)",
				ErrVerifyFailed, i, it.Title, it.SpineIndex, sections[i].Title, i)
		}
	}
	return nil
}

// verifyExternal opens the rebuilt bytes with goreader, an independent ePub
// reader that only accepts file paths, and reads every spine item.
func verifyExternal(stagingDir string, data []byte, sections []Section) error {
	err := withStagingFile(stagingDir, data, func(name string) error {
		rc, err := goreader.OpenReader(name)
		if err != nil {
			return err
		}
		defer rc.Close()

		if len(rc.Rootfiles) == 0 {
			return fmt.Errorf("no rootfiles")
		}
		refs := rc.Rootfiles[0].Spine.Itemrefs
		if len(refs) != len(sections) {
			return fmt.Errorf("spine has %d items, want %d", len(refs), len(sections))
		}
		for i, ref := range refs {
			if ref.Item == nil {
				return fmt.Errorf("spine item %d has no manifest entry", i)
			}
			r, err := ref.Item.Open()
			if err != nil {
				return fmt.Errorf("open spine item %d: %w", i, err)
			}
			_, err = io.Copy(io.Discard, r)
			r.Close()
			if err != nil {
				return fmt.Errorf("read spine item %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVerifyFailed, err)
	}
	return nil
}
