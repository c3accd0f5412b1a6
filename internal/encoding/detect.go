package encoding

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// detect picks a decoder for buf and reports how many leading bytes to drop.
// A nil decoder means buf is already UTF-8.
//
// Detection order:
//  1. BOM (UTF-8 BOM is stripped; UTF-16 LE/BE is decoded)
//  2. valid UTF-8 is returned as-is
//  3. heuristic detection via chardet
//  4. fallback to Windows-1252, the charset browsers use for raw header bytes
func detect(buf []byte) (encoding.Encoding, int) {
	switch {
	case bytes.HasPrefix(buf, bomUTF8):
		return nil, len(bomUTF8)
	case bytes.HasPrefix(buf, bomUTF16LE):
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), 0
	case bytes.HasPrefix(buf, bomUTF16BE):
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM), 0
	}

	if utf8.Valid(buf) {
		return nil, 0
	}

	result, err := chardet.NewTextDetector().DetectBest(buf)
	if err == nil {
		switch result.Charset {
		case "UTF-8":
			return nil, 0
		case "ISO-8859-1", "windows-1252":
			return charmap.Windows1252, 0
		case "ISO-8859-9":
			return charmap.ISO8859_9, 0
		}
	}

	return charmap.Windows1252, 0
}

// ToUTF8 decodes a short byte string, such as a raw header value, to UTF-8.
func ToUTF8(b []byte) (string, error) {
	enc, skip := detect(b)
	b = b[skip:]

	if enc == nil {
		return string(b), nil
	}

	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}

	return string(out), nil
}
