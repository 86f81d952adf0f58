// Package encoding detects and converts the on-disk byte encodings of text
// documents.
//
// Documents are held in memory either as raw 8-bit bytes or as UTF-8.
// Conversion is incremental: Decode and Encode take an explicit state value
// and return the successor state, so a file can be processed chunk by chunk
// and the result is independent of where the chunk boundaries fall.
package encoding

import (
	"bytes"
	"fmt"
	"strings"
)

// Encoding represents an on-disk character encoding.
type Encoding string

const (
	// Encoding8Bit is raw bytes in an unspecified single-byte code page.
	Encoding8Bit Encoding = "8bit"

	// EncodingUTF8 is UTF-8 without BOM, detected from content.
	EncodingUTF8 Encoding = "utf-8"

	// EncodingUTF8BOM is UTF-8 encoding with BOM.
	EncodingUTF8BOM Encoding = "utf-8-bom"

	// EncodingUTF16LE is UTF-16 Little Endian with BOM.
	EncodingUTF16LE Encoding = "utf-16le"

	// EncodingUTF16BE is UTF-16 Big Endian with BOM.
	EncodingUTF16BE Encoding = "utf-16be"

	// EncodingCookie is UTF-8 without BOM, declared by a coding cookie.
	EncodingCookie Encoding = "utf-8-cookie"
)

// All lists every supported encoding.
var All = []Encoding{
	Encoding8Bit,
	EncodingUTF8,
	EncodingUTF8BOM,
	EncodingUTF16LE,
	EncodingUTF16BE,
	EncodingCookie,
}

// ParseEncoding parses an encoding name. Matching is case-insensitive.
func ParseEncoding(s string) (Encoding, error) {
	name := Encoding(strings.ToLower(strings.TrimSpace(s)))
	switch name {
	case "", "default", "8-bit":
		return Encoding8Bit, nil
	case "utf8":
		return EncodingUTF8, nil
	case "utf-8-sig", "utf8-bom":
		return EncodingUTF8BOM, nil
	case "cookie":
		return EncodingCookie, nil
	}
	for _, e := range All {
		if e == name {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown encoding %q", s)
}

// IsUnicode reports whether the in-memory text for e is UTF-8.
func (e Encoding) IsUnicode() bool {
	return e != Encoding8Bit && e != ""
}

// IsMultiByte reports whether chunk boundaries must respect UTF-8 sequences
// when storing text in this encoding.
func (e Encoding) IsMultiByte() bool {
	return e.IsUnicode()
}

// BOM returns the byte order mark written for e, or nil.
func (e Encoding) BOM() []byte {
	switch e {
	case EncodingUTF8BOM:
		return bomUTF8
	case EncodingUTF16LE:
		return bomUTF16LE
	case EncodingUTF16BE:
		return bomUTF16BE
	}
	return nil
}

// BOM (Byte Order Mark) constants
var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// SniffBOM inspects the start of a file for a byte order mark.
// It returns the encoding the BOM announces and the BOM length, or
// Encoding8Bit and 0 when there is none.
func SniffBOM(content []byte) (Encoding, int) {
	switch {
	case bytes.HasPrefix(content, bomUTF8):
		return EncodingUTF8BOM, len(bomUTF8)
	case bytes.HasPrefix(content, bomUTF16LE):
		return EncodingUTF16LE, len(bomUTF16LE)
	case bytes.HasPrefix(content, bomUTF16BE):
		return EncodingUTF16BE, len(bomUTF16BE)
	}
	return Encoding8Bit, 0
}

// mayBeBOM reports whether content is a strict prefix of some BOM, meaning
// more bytes are needed before SniffBOM can decide.
func mayBeBOM(content []byte) bool {
	if len(content) >= len(bomUTF8) {
		return false
	}
	if bytes.HasPrefix(bomUTF8, content) {
		return true
	}
	return len(content) < len(bomUTF16LE) &&
		(bytes.HasPrefix(bomUTF16LE, content) || bytes.HasPrefix(bomUTF16BE, content))
}

// LineEnding represents the line ending style.
type LineEnding string

const (
	// LineEndingLF is Unix-style line ending (\n).
	LineEndingLF LineEnding = "lf"

	// LineEndingCRLF is Windows-style line ending (\r\n).
	LineEndingCRLF LineEnding = "crlf"

	// LineEndingCR is old Mac-style line ending (\r).
	LineEndingCR LineEnding = "cr"

	// LineEndingMixed indicates mixed line endings.
	LineEndingMixed LineEnding = "mixed"
)

// DetectLineEnding detects the dominant line ending in content.
// Returns LineEndingMixed if multiple styles each account for at least a
// tenth of the line breaks.
func DetectLineEnding(content []byte) LineEnding {
	var lf, crlf, cr int

	for i := 0; i < len(content); i++ {
		if content[i] == '\r' {
			if i+1 < len(content) && content[i+1] == '\n' {
				crlf++
				i++
			} else {
				cr++
			}
		} else if content[i] == '\n' {
			lf++
		}
	}

	total := lf + crlf + cr
	if total == 0 {
		return LineEndingLF
	}

	threshold := max(total/10, 1)
	styles := 0
	for _, n := range []int{lf, crlf, cr} {
		if n >= threshold {
			styles++
		}
	}
	if styles > 1 {
		return LineEndingMixed
	}

	if crlf >= lf && crlf >= cr {
		return LineEndingCRLF
	}
	if cr > lf {
		return LineEndingCR
	}
	return LineEndingLF
}
