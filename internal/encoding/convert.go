package encoding

import (
	"unicode/utf8"

	xencoding "golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// maxCarry bounds the bytes held back between chunks: an odd UTF-16 byte
// plus half a surrogate pair, or an incomplete UTF-8 sequence.
const maxCarry = 4

// carry holds bytes that could not be converted until the next chunk
// arrives. It is an array so state values never share memory.
type carry struct {
	buf [maxCarry]byte
	n   int
}

// join returns the carried bytes followed by chunk in a fresh slice.
func (c carry) join(chunk []byte) []byte {
	out := make([]byte, 0, c.n+len(chunk))
	out = append(out, c.buf[:c.n]...)
	return append(out, chunk...)
}

// hold stores rest as the new carry. Anything beyond maxCarry cannot be an
// incomplete sequence and is returned for immediate output.
func hold(rest []byte) (carry, []byte) {
	var c carry
	if len(rest) > maxCarry {
		return c, rest
	}
	c.n = copy(c.buf[:], rest)
	return c, nil
}

// DecodeState is the streaming state threaded between Decode calls.
// The zero value sniffs a BOM and does not attempt UTF-8 detection.
type DecodeState struct {
	// DetectUTF8 enables promoting a BOM-less file to EncodingUTF8 when all
	// of its content is valid UTF-8 and at least one sequence is non-ASCII.
	DetectUTF8 bool

	encoding  Encoding
	sniffed   bool
	pending   carry
	multibyte bool
	invalid   bool
}

// NewDecodeState returns the initial state for decoding a file.
func NewDecodeState(detectUTF8 bool) DecodeState {
	return DecodeState{DetectUTF8: detectUTF8}
}

// Sniffed reports whether the BOM check has been made.
func (s DecodeState) Sniffed() bool {
	return s.sniffed
}

// BOMEncoding returns the encoding established by the BOM check.
func (s DecodeState) BOMEncoding() Encoding {
	if !s.sniffed {
		return Encoding8Bit
	}
	return s.encoding
}

// Encoding returns the effective encoding seen so far.
func (s DecodeState) Encoding() Encoding {
	enc := s.BOMEncoding()
	if enc == Encoding8Bit && s.DetectUTF8 && s.multibyte && !s.invalid {
		return EncodingUTF8
	}
	return enc
}

// Pending returns the number of bytes carried over to the next call.
func (s DecodeState) Pending() int {
	return s.pending.n
}

// Decode converts one chunk of file bytes into in-memory text.
//
// The first bytes of the stream are checked for a BOM, which is stripped.
// UTF-16 is converted to UTF-8; other encodings pass through. Output always
// ends on a whole code point: an incomplete trailing sequence is carried in
// the returned state and prepended to the next chunk. Pass atEOF on the
// final call (chunk may be empty) to flush any carried bytes.
func Decode(s DecodeState, chunk []byte, atEOF bool) ([]byte, DecodeState) {
	buf := s.pending.join(chunk)
	s.pending = carry{}

	if !s.sniffed {
		if !atEOF && mayBeBOM(buf) {
			s.pending, _ = hold(buf)
			return nil, s
		}
		enc, n := SniffBOM(buf)
		buf = buf[n:]
		s.encoding = enc
		s.sniffed = true
	}

	var out, rest []byte
	switch s.encoding {
	case EncodingUTF16LE, EncodingUTF16BE:
		var consumed int
		out, consumed = transformChunk(utf16For(s.encoding).NewDecoder(), buf, atEOF)
		rest = buf[consumed:]
	default:
		cut := completePrefix(buf, atEOF)
		out, rest = buf[:cut], buf[cut:]
		if s.encoding == Encoding8Bit && s.DetectUTF8 {
			s.observe(out)
		}
	}

	var overflow []byte
	s.pending, overflow = hold(rest)
	if len(overflow) > 0 {
		out = append(out, overflow...)
	}
	return out, s
}

// observe tracks whether BOM-less content is plausibly UTF-8.
func (s *DecodeState) observe(text []byte) {
	if s.invalid {
		return
	}
	if !utf8.Valid(text) {
		s.invalid = true
		return
	}
	if !s.multibyte {
		for _, b := range text {
			if b >= utf8.RuneSelf {
				s.multibyte = true
				break
			}
		}
	}
}

// EncodeState is the streaming state threaded between Encode calls.
type EncodeState struct {
	// Encoding is the target on-disk encoding.
	Encoding Encoding

	bomDone bool
	pending carry
}

// NewEncodeState returns the initial state for writing text as enc.
func NewEncodeState(enc Encoding) EncodeState {
	return EncodeState{Encoding: enc}
}

// Encode converts one chunk of in-memory text into file bytes.
//
// The BOM for the target encoding, if any, precedes the first output. For
// UTF-16 targets an incomplete trailing UTF-8 sequence is carried to the
// next call; pass atEOF on the final call to flush it.
func Encode(s EncodeState, chunk []byte, atEOF bool) ([]byte, EncodeState) {
	var out []byte
	if !s.bomDone {
		out = append(out, s.Encoding.BOM()...)
		s.bomDone = true
	}

	switch s.Encoding {
	case EncodingUTF16LE, EncodingUTF16BE:
		buf := s.pending.join(chunk)
		converted, consumed := transformChunk(utf16For(s.Encoding).NewEncoder(), buf, atEOF)
		out = append(out, converted...)
		var overflow []byte
		s.pending, overflow = hold(buf[consumed:])
		if len(overflow) > 0 {
			// Not a partial sequence; encode what remains as-is.
			rest, _ := transformChunk(utf16For(s.Encoding).NewEncoder(), overflow, true)
			out = append(out, rest...)
		}
	default:
		out = append(out, chunk...)
	}
	return out, s
}

// completePrefix returns the length of the longest prefix of buf that does
// not end inside a UTF-8 sequence.
func completePrefix(buf []byte, atEOF bool) int {
	if atEOF {
		return len(buf)
	}
	for i := len(buf) - 1; i >= 0 && i >= len(buf)-utf8.UTFMax; i-- {
		if utf8.RuneStart(buf[i]) {
			if !utf8.FullRune(buf[i:]) {
				return i
			}
			break
		}
	}
	return len(buf)
}

func utf16For(enc Encoding) xencoding.Encoding {
	if enc == EncodingUTF16BE {
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	}
	return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
}

// transformChunk runs t over src and returns the output together with the
// number of source bytes consumed. Unconsumed bytes are an incomplete
// sequence the transformer needs more input for.
func transformChunk(t transform.Transformer, src []byte, atEOF bool) ([]byte, int) {
	dst := make([]byte, 2*len(src)+utf8.UTFMax)
	var out []byte
	consumed := 0
	for {
		nDst, nSrc, err := t.Transform(dst, src[consumed:], atEOF)
		out = append(out, dst[:nDst]...)
		consumed += nSrc
		if err == transform.ErrShortDst && (nDst > 0 || nSrc > 0) {
			continue
		}
		return out, consumed
	}
}
