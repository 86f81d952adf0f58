package buffers

import (
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// caseInsensitivePaths matches the default file systems of Windows and macOS.
var caseInsensitivePaths = runtime.GOOS == "windows" || runtime.GOOS == "darwin"

// SamePath reports whether a and b name the same file. Paths are cleaned and
// compared in Unicode NFC so composed and decomposed names match; case is
// ignored where the platform's file system ignores it. Empty paths never match.
func SamePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	a, b = normalizePath(a), normalizePath(b)
	if caseInsensitivePaths {
		return strings.EqualFold(a, b)
	}
	return a == b
}

func normalizePath(p string) string {
	return norm.NFC.String(filepath.Clean(p))
}
