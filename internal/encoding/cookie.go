package encoding

import "bytes"

// CookieDetector inspects the beginning of decoded text for an explicit
// encoding declaration. It returns Encoding8Bit when none is found.
type CookieDetector func(head []byte) Encoding

// CodingCookie looks for a declaration such as "-*- coding: utf-8 -*-" or
// "# vim: set fileencoding=utf-8" in the first two lines of text.
func CodingCookie(head []byte) Encoding {
	first := extractLine(head)
	if enc := cookieValue(first); enc != Encoding8Bit {
		return enc
	}
	return cookieValue(extractLine(head[len(first):]))
}

// HasTwoLines reports whether head contains at least two complete lines,
// after which CodingCookie will not look any further.
func HasTwoLines(head []byte) bool {
	first := extractLine(head)
	if len(first) == 0 || !isEOL(first[len(first)-1]) {
		return false
	}
	second := extractLine(head[len(first):])
	return len(second) > 0 && isEOL(second[len(second)-1])
}

// extractLine returns the first line of text including its terminator.
// A CR LF pair is kept together.
func extractLine(text []byte) []byte {
	for i, c := range text {
		if isEOL(c) {
			if c == '\r' && i+1 < len(text) && text[i+1] == '\n' {
				return text[:i+2]
			}
			return text[:i+1]
		}
	}
	return text
}

func cookieValue(line []byte) Encoding {
	pos := bytes.Index(line, []byte("coding"))
	if pos < 0 {
		return Encoding8Bit
	}
	pos += len("coding")
	if pos >= len(line) || (line[pos] != ':' && line[pos] != '=') {
		return Encoding8Bit
	}
	pos++
	if pos < len(line) && (line[pos] == '"' || line[pos] == '\'') {
		pos++
	}
	for pos < len(line) && (line[pos] == ' ' || line[pos] == '\t') {
		pos++
	}
	end := pos
	for end < len(line) && isEncodingChar(line[end]) {
		end++
	}
	if bytes.EqualFold(line[pos:end], []byte("utf-8")) {
		return EncodingCookie
	}
	return Encoding8Bit
}

func isEOL(c byte) bool {
	return c == '\r' || c == '\n'
}

func isEncodingChar(c byte) bool {
	return c == '_' || c == '-' || c == '.' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}
