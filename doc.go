// Package epubsplit re-splits an ePub so that its sections follow the
// chapter headings found in its text rather than the source file layout.
//
// Many ePub files, web-novel conversions in particular, split their
// content at arbitrary points: one chapter spans several files, or one
// file holds several chapters. epubsplit reads the book, joins the text of
// every content document in spine order, finds headings such as "第12章 …"
// at line starts, and writes a new ePub 3 package with one section per
// chapter plus matching navigation.
//
// # Converting
//
// A [Converter] runs the whole pipeline:
//
//	conv, err := epubsplit.NewConverter(epubsplit.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := conv.Convert(data)
//	if err != nil {
//	    log.Fatal(epubsplit.UserMessage(err))
//	}
//	os.WriteFile("fixed_book.epub", res.Data, 0644)
//
// [Converter.Analyze] stops after segmentation and returns a [Summary]
// (title, chapter count, headings, text preview) for a dry run;
// [Analysis.Build] then produces the same bytes Convert would.
//
// # Reading
//
// [Open] and [NewReader] give access to the source package: [Book.Metadata],
// [Book.Parts] in spine order, [Book.TOC] from the nav document or NCX,
// and [Book.Cover]. DRM-protected books are rejected with an error matching
// both [ErrInputFormat] and [ErrDRMProtected].
//
// # Segmenting
//
// [Segmenter] finds marker lines with [DefaultMarkerPattern] or a custom
// expression. Text before the first marker becomes an "Intro" record when
// it holds anything but whitespace. The records cover the text exactly.
//
// # Rebuilding
//
// [Rebuild] writes the package. The output is deterministic: entries are
// written in a fixed order with zero timestamps, the identifier falls back
// to a UUID derived from the text, and dcterms:modified defaults to
// [DefaultModified]. Every output is re-opened with [VerifyOutput] before it
// is returned.
//
// # Errors
//
//   - [ErrInputFormat] – not a readable ePub
//   - [ErrDRMProtected] – the file is DRM encrypted
//   - [ErrEmptyContent] – no text was extracted
//   - [ErrNoChapters] – no marker found under [NoChaptersFail]
//   - [ErrVerifyFailed] – the rebuilt package did not read back
//
// [UserMessage] maps them to messages fit for end users.
package epubsplit
