package encoding

import (
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	stdunicode "unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultName replaces a filename that sanitises to nothing.
const DefaultName = "upload.xlsx"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// DecodeName turns a client-supplied filename (header value or form field) into UTF-8.
// Percent-encoded names are unescaped first; non-UTF-8 bytes go through charset detection.
func DecodeName(raw string) string {
	if strings.Contains(raw, "%") {
		if unescaped, err := url.PathUnescape(raw); err == nil {
			raw = unescaped
		}
	}

	decoded, err := ToUTF8([]byte(raw))
	if err != nil {
		return raw
	}

	return decoded
}

// SanitizeFilename reduces name to a safe base name made of [A-Za-z0-9._-].
// Accented letters are folded to their ASCII base; anything else becomes '_'.
func SanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))

	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(stdunicode.Mn)), norm.NFC),
		base,
	)
	if err == nil {
		base = folded
	}

	safe := strings.Trim(unsafeChars.ReplaceAllString(base, "_"), "._")
	if safe == "" {
		return DefaultName
	}

	return safe
}
