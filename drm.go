package epubsplit

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"strings"
)

const (
	encryptionPath = "META-INF/encryption.xml"
	// sinfPath only exists in Apple FairPlay protected books.
	sinfPath = "META-INF/sinf.xml"
)

// Font obfuscation algorithms. These scramble embedded fonts only and do
// not stop the text from being read.
var obfuscationAlgorithms = map[string]bool{
	"http://www.idpf.org/2008/embedding": true,
	"http://ns.adobe.com/pdf/enc#RC":     true,
}

type encryptionDoc struct {
	XMLName xml.Name        `xml:"encryption"`
	Data    []encryptedData `xml:"EncryptedData"`
}

type encryptedData struct {
	Method struct {
		Algorithm string `xml:"Algorithm,attr"`
	} `xml:"EncryptionMethod"`
}

// checkDRM inspects the archive for encryption. It reports true when only
// font obfuscation is present, and an error wrapping both ErrInputFormat and
// ErrDRMProtected when anything else is encrypted.
func checkDRM(zr *zip.Reader) (obfuscated bool, err error) {
	drm := fmt.Errorf("%w: %w", ErrInputFormat, ErrDRMProtected)

	if lookupEntry(zr, sinfPath) != nil {
		return false, drm
	}
	f := lookupEntry(zr, encryptionPath)
	if f == nil {
		return false, nil
	}
	data, err := readEntry(f)
	if err != nil {
		return false, fmt.Errorf("epubsplit: read encryption.xml: %w: %w", ErrInputFormat, err)
	}

	var enc encryptionDoc
	if err := xml.Unmarshal(trimBOM(data), &enc); err != nil {
		// An unreadable descriptor gives no assurance the content is clear.
		return false, drm
	}
	for _, d := range enc.Data {
		if !obfuscationAlgorithms[strings.TrimSpace(d.Method.Algorithm)] {
			return false, drm
		}
		obfuscated = true
	}
	return obfuscated, nil
}
