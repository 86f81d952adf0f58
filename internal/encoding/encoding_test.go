package encoding

import (
	"bytes"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func utf16Bytes(s string, bigEndian bool, withBOM bool) []byte {
	var out []byte
	if withBOM {
		if bigEndian {
			out = append(out, 0xFE, 0xFF)
		} else {
			out = append(out, 0xFF, 0xFE)
		}
	}
	for _, u := range utf16.Encode([]rune(s)) {
		if bigEndian {
			out = append(out, byte(u>>8), byte(u))
		} else {
			out = append(out, byte(u), byte(u>>8))
		}
	}
	return out
}

// decodeChunks feeds data to Decode in chunks of the given size.
func decodeChunks(data []byte, size int, detect bool) ([]byte, Encoding) {
	st := NewDecodeState(detect)
	var out []byte
	for len(data) > 0 {
		n := min(size, len(data))
		var text []byte
		text, st = Decode(st, data[:n], false)
		out = append(out, text...)
		data = data[n:]
	}
	text, st := Decode(st, nil, true)
	out = append(out, text...)
	return out, st.Encoding()
}

func encodeChunks(text []byte, size int, enc Encoding) []byte {
	st := NewEncodeState(enc)
	var out []byte
	for start := 0; start < len(text); {
		n := StoreChunkSize(text, start, min(size, len(text)-start))
		var b []byte
		b, st = Encode(st, text[start:start+n], false)
		out = append(out, b...)
		start += n
	}
	b, _ := Encode(st, nil, true)
	return append(out, b...)
}

func TestSniffBOM(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		want    Encoding
		n       int
	}{
		{"empty", nil, Encoding8Bit, 0},
		{"ascii", []byte("hello"), Encoding8Bit, 0},
		{"utf-8 bom", []byte{0xEF, 0xBB, 0xBF, 'a'}, EncodingUTF8BOM, 3},
		{"utf-16le bom", []byte{0xFF, 0xFE, 'a', 0}, EncodingUTF16LE, 2},
		{"utf-16be bom", []byte{0xFE, 0xFF, 0, 'a'}, EncodingUTF16BE, 2},
		{"partial utf-8 bom", []byte{0xEF, 0xBB}, Encoding8Bit, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, n := SniffBOM(tt.content)
			assert.Equal(t, tt.want, enc)
			assert.Equal(t, tt.n, n)
		})
	}
}

func TestParseEncoding(t *testing.T) {
	for _, e := range All {
		got, err := ParseEncoding(string(e))
		require.NoError(t, err)
		assert.Equal(t, e, got)
	}

	got, err := ParseEncoding("UTF-16LE")
	require.NoError(t, err)
	assert.Equal(t, EncodingUTF16LE, got)

	got, err = ParseEncoding("")
	require.NoError(t, err)
	assert.Equal(t, Encoding8Bit, got)

	_, err = ParseEncoding("ebcdic")
	assert.Error(t, err)
}

func TestCodingCookie(t *testing.T) {
	tests := []struct {
		name string
		head string
		want Encoding
	}{
		{"emacs first line", "# -*- coding: utf-8 -*-\nprint(1)\n", EncodingCookie},
		{"second line", "#!/usr/bin/python\n# coding=UTF-8\n", EncodingCookie},
		{"crlf second line", "#!/bin/sh\r\n# coding: utf-8\r\n", EncodingCookie},
		{"third line ignored", "a\nb\n# coding: utf-8\n", Encoding8Bit},
		{"other charset", "# coding: latin-1\n", Encoding8Bit},
		{"utf-8 prefix only", "# coding: utf-8x\n", Encoding8Bit},
		{"no separator", "# coding utf-8\n", Encoding8Bit},
		{"tab after colon", "# vim: set fileencoding:\tutf-8\n", EncodingCookie},
		{"empty", "", Encoding8Bit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodingCookie([]byte(tt.head)))
		})
	}
}

func TestHasTwoLines(t *testing.T) {
	assert.False(t, HasTwoLines([]byte("one line")))
	assert.False(t, HasTwoLines([]byte("one\ntwo")))
	assert.True(t, HasTwoLines([]byte("one\ntwo\n")))
	assert.True(t, HasTwoLines([]byte("one\r\ntwo\r\nthree")))
}

func TestDecode_ChunkSizeIndependent(t *testing.T) {
	text := "plain ascii, é accents, 日本語, emoji 😀 and more\nsecond line ü\n"
	inputs := map[string][]byte{
		"8bit":     []byte(text),
		"utf-8":    append([]byte{0xEF, 0xBB, 0xBF}, text...),
		"utf-16le": utf16Bytes(text, false, true),
		"utf-16be": utf16Bytes(text, true, true),
		"invalid":  {'a', 0xC3, 'b', 0xFF, 0xE2, 0x82},
		"empty":    {},
		"bom only": {0xFF, 0xFE},
	}

	for name, data := range inputs {
		t.Run(name, func(t *testing.T) {
			whole, wholeEnc := decodeChunks(data, len(data)+1, true)
			for size := 1; size <= 9; size++ {
				got, enc := decodeChunks(data, size, true)
				assert.Equal(t, whole, got, "chunk size %d", size)
				assert.Equal(t, wholeEnc, enc, "chunk size %d", size)
			}
		})
	}
}

func TestDecode_Conversions(t *testing.T) {
	text := "héllo 😀"

	got, enc := decodeChunks(utf16Bytes(text, false, true), 3, false)
	assert.Equal(t, text, string(got))
	assert.Equal(t, EncodingUTF16LE, enc)

	got, enc = decodeChunks(utf16Bytes(text, true, true), 5, false)
	assert.Equal(t, text, string(got))
	assert.Equal(t, EncodingUTF16BE, enc)

	got, enc = decodeChunks(append([]byte{0xEF, 0xBB, 0xBF}, text...), 2, false)
	assert.Equal(t, text, string(got))
	assert.Equal(t, EncodingUTF8BOM, enc)
}

func TestDecode_OutputEndsOnCodePoint(t *testing.T) {
	data := []byte("ab€")
	st := NewDecodeState(false)

	out, st := Decode(st, data[:3], false)
	assert.Equal(t, "ab", string(out))
	assert.Equal(t, 1, st.Pending())

	out, st = Decode(st, data[3:], false)
	assert.Equal(t, "€", string(out))
	assert.Equal(t, 0, st.Pending())
}

func TestDecode_DetectUTF8(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		detect bool
		want   Encoding
	}{
		{"ascii stays 8bit", []byte("abc\n"), true, Encoding8Bit},
		{"valid multibyte", []byte("naïve\n"), true, EncodingUTF8},
		{"detection off", []byte("naïve\n"), false, Encoding8Bit},
		{"invalid bytes", []byte{'a', 0xE9, 'b'}, true, Encoding8Bit},
		{"bom wins", append([]byte{0xEF, 0xBB, 0xBF}, "naïve"...), true, EncodingUTF8BOM},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, size := range []int{1, 2, 64} {
				_, enc := decodeChunks(tt.data, size, tt.detect)
				assert.Equal(t, tt.want, enc, "chunk size %d", size)
			}
		})
	}
}

func TestDecode_StateIsValue(t *testing.T) {
	st := NewDecodeState(false)
	_, st = Decode(st, []byte{'x', 0xE2}, false)

	fork := st
	a, _ := Decode(fork, []byte{0x82, 0xAC}, true)
	b, _ := Decode(st, []byte{0x82, 0xAC}, true)
	assert.Equal(t, a, b)
	assert.Equal(t, "€", string(a))
}

func TestEncode(t *testing.T) {
	text := []byte("A€")

	out := encodeChunks(text, 64, EncodingUTF16LE)
	assert.Equal(t, []byte{0xFF, 0xFE, 0x41, 0x00, 0xAC, 0x20}, out)

	out = encodeChunks(text, 64, EncodingUTF16BE)
	assert.Equal(t, []byte{0xFE, 0xFF, 0x00, 0x41, 0x20, 0xAC}, out)

	out = encodeChunks(text, 64, EncodingUTF8BOM)
	assert.Equal(t, append([]byte{0xEF, 0xBB, 0xBF}, text...), out)

	for _, enc := range []Encoding{Encoding8Bit, EncodingUTF8, EncodingCookie} {
		assert.Equal(t, text, encodeChunks(text, 64, enc), "encoding %s", enc)
	}

	assert.Equal(t, []byte{0xFF, 0xFE}, encodeChunks(nil, 64, EncodingUTF16LE))
	assert.Empty(t, encodeChunks(nil, 64, Encoding8Bit))
}

func TestEncode_SplitSequenceCarried(t *testing.T) {
	text := []byte("x😀")
	st := NewEncodeState(EncodingUTF16LE)

	var out []byte
	for i := range text {
		var b []byte
		b, st = Encode(st, text[i:i+1], false)
		out = append(out, b...)
	}
	b, _ := Encode(st, nil, true)
	out = append(out, b...)

	assert.Equal(t, utf16Bytes("x😀", false, true), out)
}

func TestRoundTrip_AllEncodings(t *testing.T) {
	text := []byte("# coding: utf-8\nline with ü and 😀\n" + string(bytes.Repeat([]byte("ab€"), 50)))

	for _, enc := range All {
		for _, size := range []int{1, 3, 7, 64, 4096} {
			stored := encodeChunks(text, size, enc)
			loaded, _ := decodeChunks(stored, size, true)
			assert.Equal(t, text, loaded, "encoding %s chunk %d", enc, size)
		}
	}
}

func TestStoreChunkSize(t *testing.T) {
	doc := []byte("abc€def") // € occupies bytes 3..5

	assert.Equal(t, 3, StoreChunkSize(doc, 0, 4), "end inside € moves back to its lead byte")
	assert.Equal(t, 3, StoreChunkSize(doc, 0, 5))
	assert.Equal(t, 6, StoreChunkSize(doc, 0, 6), "end after € is kept")
	assert.Equal(t, 3, StoreChunkSize(doc, 0, 3))
	assert.Equal(t, 7, StoreChunkSize(doc, 0, 7))
	assert.Equal(t, 9, StoreChunkSize(doc, 0, 9), "final chunk unchanged")
	assert.Equal(t, 2, StoreChunkSize(doc, 1, 3))

	run := append([]byte{'a'}, bytes.Repeat([]byte{0x80}, 8)...)
	assert.Equal(t, 7, StoreChunkSize(run, 0, 7), "malformed run longer than the window is not cut")

	short := []byte{0x80, 0x80, 'z'}
	assert.Equal(t, 1, StoreChunkSize(short, 0, 1), "never shrinks to an empty chunk")
}

func TestIsUTF8TrailByte(t *testing.T) {
	assert.True(t, IsUTF8TrailByte(0x80))
	assert.True(t, IsUTF8TrailByte(0xBF))
	assert.False(t, IsUTF8TrailByte(0x7F))
	assert.False(t, IsUTF8TrailByte(0xC0))
}

func TestDetectLineEnding(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    LineEnding
	}{
		{"empty", "", LineEndingLF},
		{"no newlines", "single line", LineEndingLF},
		{"LF only", "a\nb\nc", LineEndingLF},
		{"CRLF only", "a\r\nb\r\nc", LineEndingCRLF},
		{"CR only", "a\rb\rc", LineEndingCR},
		{"mixed", "a\nb\r\nc\nd\r\n", LineEndingMixed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLineEnding([]byte(tt.content)))
		})
	}
}
