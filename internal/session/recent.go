package session

import "github.com/dshills/bufkeep/internal/buffers"

// DefaultRecentMax is the recent-file capacity used for non-positive sizes.
const DefaultRecentMax = 10

// RecentFiles is a fixed-capacity list of recently closed files, newest
// first. A path appears at most once.
type RecentFiles struct {
	max   int
	paths []string
}

// NewRecentFiles creates a list holding up to size paths.
func NewRecentFiles(size int) *RecentFiles {
	if size <= 0 {
		size = DefaultRecentMax
	}
	return &RecentFiles{max: size}
}

// Add puts path on top, removing an older entry for the same file. The
// oldest entry drops off when the list is full.
func (r *RecentFiles) Add(path string) {
	if path == "" {
		return
	}
	r.Remove(path)
	r.paths = append([]string{path}, r.paths...)
	if len(r.paths) > r.max {
		r.paths = r.paths[:r.max]
	}
}

// Remove deletes path from the list.
func (r *RecentFiles) Remove(path string) {
	for i, p := range r.paths {
		if buffers.SamePath(p, path) {
			r.paths = append(r.paths[:i], r.paths[i+1:]...)
			return
		}
	}
}

// Paths returns the list, newest first.
func (r *RecentFiles) Paths() []string {
	return append([]string(nil), r.paths...)
}

// Len returns the number of entries.
func (r *RecentFiles) Len() int {
	return len(r.paths)
}

// Max returns the capacity.
func (r *RecentFiles) Max() int {
	return r.max
}

// Clear empties the list.
func (r *RecentFiles) Clear() {
	r.paths = nil
}

// Restore replaces the list with paths given newest first.
func (r *RecentFiles) Restore(paths []string) {
	r.Clear()
	for i := len(paths) - 1; i >= 0; i-- {
		r.Add(paths[i])
	}
}
