package epubsplit

import (
	"errors"
	"strings"
)

// Sentinel errors returned by the epubsplit package.
var (
	// ErrInputFormat indicates the supplied bytes are not a readable ePub
	// (not a ZIP archive, no OPF package document, undecodable XML, DRM).
	ErrInputFormat = errors.New("epubsplit: input is not a valid ePub")

	// ErrDRMProtected indicates the ePub file is protected by DRM
	// (e.g., Adobe ADEPT, Apple FairPlay, Readium LCP) and cannot be read.
	// It is always reported together with ErrInputFormat.
	ErrDRMProtected = errors.New("epubsplit: file is DRM protected")

	// ErrEmptyContent indicates the ePub was readable but contained no
	// non-whitespace text in its document parts.
	ErrEmptyContent = errors.New("epubsplit: no extractable text")

	// ErrNoChapters indicates no chapter marker was found and the
	// converter is configured to halt in that case.
	ErrNoChapters = errors.New("epubsplit: no chapters detected")

	// ErrVerifyFailed indicates the rebuilt ePub did not pass verification.
	ErrVerifyFailed = errors.New("epubsplit: rebuilt ePub failed verification")

	// ErrInvalidPart indicates a Part handle is invalid
	// (for example, a zero-value Part without an associated Book).
	ErrInvalidPart = errors.New("epubsplit: invalid part handle")

	// ErrFileNotFound indicates the requested file does not exist
	// in the ePub archive.
	ErrFileNotFound = errors.New("epubsplit: file not found in archive")

	// ErrNoCover indicates no cover image could be detected.
	ErrNoCover = errors.New("epubsplit: no cover image found")
)

// UserMessage converts an error returned by a Converter into a message fit
// for an end user. Internal detail beyond the error kind is not exposed.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDRMProtected):
		return "This ePub is DRM protected and cannot be converted."
	case errors.Is(err, ErrInputFormat):
		return "The uploaded file is not a valid ePub."
	case errors.Is(err, ErrEmptyContent):
		return "No textual content could be extracted from the ePub."
	case errors.Is(err, ErrNoChapters):
		return "No chapter headings were detected in the text."
	case errors.Is(err, ErrVerifyFailed):
		return "The rebuilt ePub could not be verified; no file was produced."
	default:
		return "The conversion failed: " + strings.TrimPrefix(err.Error(), "epubsplit: ")
	}
}
