package encoding

const (
	// lookbackWindow is the furthest a store chunk end is walked back over
	// UTF-8 continuation bytes. It is wider than the longest valid UTF-8
	// sequence so malformed runs are cut exactly as before.
	lookbackWindow = 6

	// maxPullback is the largest walk back that is accepted. A longer run of
	// continuation bytes is malformed and the chunk is left at full size.
	maxPullback = 5
)

// IsUTF8TrailByte reports whether b is a UTF-8 continuation byte.
func IsUTF8TrailByte(b byte) bool {
	return b >= 0x80 && b < 0x80+0x40
}

// StoreChunkSize adjusts the size of the chunk doc[start:start+size] so that
// the following chunk does not begin with a UTF-8 continuation byte.
//
// The end is walked back while the byte at the candidate end is a
// continuation byte, at most lookbackWindow bytes. The shorter size is used
// only when fewer than maxPullback bytes were walked and it leaves a
// non-empty chunk. The final chunk of doc is never adjusted.
func StoreChunkSize(doc []byte, start, size int) int {
	if start < 0 || size <= 0 || start+size >= len(doc) {
		return size
	}
	last := size
	for last > 0 && size-last < lookbackWindow && IsUTF8TrailByte(doc[start+last]) {
		last--
	}
	if size-last < maxPullback && last > 0 {
		return last
	}
	return size
}
