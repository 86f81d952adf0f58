package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWatcher(t *testing.T, opts ...Option) *Watcher {
	t.Helper()
	w, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

func waitEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case ev, ok := <-w.Events():
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestOp(t *testing.T) {
	op := OpWrite | OpRename
	assert.True(t, op.Has(OpWrite))
	assert.False(t, op.Has(OpCreate))
	assert.True(t, op.Gone())
	assert.False(t, OpWrite.Gone())
	assert.Equal(t, "WRITE|RENAME", op.String())
	assert.Equal(t, "NONE", Op(0).String())
}

func TestAddRemove(t *testing.T) {
	w := newWatcher(t)
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")

	require.NoError(t, w.Add(a))
	require.NoError(t, w.Add(b))
	require.NoError(t, w.Add(a), "adding twice is a no-op")
	assert.True(t, w.IsWatching(a))
	assert.Equal(t, []string{a, b}, w.Files())

	stats := w.Stats()
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 1, stats.Directories, "files share their directory watch")

	require.NoError(t, w.Remove(a))
	assert.False(t, w.IsWatching(a))
	assert.ErrorIs(t, w.Remove(a), ErrNotWatching)
	require.NoError(t, w.Remove(b))
	assert.Equal(t, 0, w.Stats().Directories)

	assert.Error(t, w.Add(filepath.Join(dir, "missing", "c.txt")), "directory must exist")
}

func TestWriteIsReported(t *testing.T) {
	w := newWatcher(t, WithDebounce(20*time.Millisecond))
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("one"), 0o644))
	require.NoError(t, w.Add(path))

	require.NoError(t, os.WriteFile(path, []byte("two"), 0o644))
	ev := waitEvent(t, w)
	assert.Equal(t, path, ev.Path)
	assert.True(t, ev.Op.Has(OpWrite))
	assert.False(t, ev.Time.IsZero())
}

func TestUnwatchedSiblingsAreIgnored(t *testing.T) {
	w := newWatcher(t, WithDebounce(10*time.Millisecond))
	dir := t.TempDir()
	watched := filepath.Join(dir, "watched.txt")
	other := filepath.Join(dir, "other.txt")
	require.NoError(t, os.WriteFile(watched, nil, 0o644))
	require.NoError(t, w.Add(watched))

	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(watched, []byte("y"), 0o644))

	ev := waitEvent(t, w)
	assert.Equal(t, watched, ev.Path)
}

func TestRapidWritesCoalesce(t *testing.T) {
	w := newWatcher(t, WithDebounce(time.Hour))
	dir := t.TempDir()
	path := filepath.Join(dir, "busy.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	require.NoError(t, w.Add(path))

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte('a' + i)}, 0o644))
	}
	require.Eventually(t, func() bool { return w.Stats().Pending == 1 }, 3*time.Second, 10*time.Millisecond)

	w.Flush()
	ev := waitEvent(t, w)
	assert.Equal(t, path, ev.Path)
	assert.True(t, ev.Op.Has(OpWrite))
	assert.Equal(t, 0, w.Stats().Pending)
	assert.EqualValues(t, 1, w.Stats().Delivered)
}

func TestRemoveIsReported(t *testing.T) {
	w := newWatcher(t, WithDebounce(10*time.Millisecond))
	dir := t.TempDir()
	path := filepath.Join(dir, "doomed.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	require.NoError(t, w.Add(path))

	require.NoError(t, os.Remove(path))
	ev := waitEvent(t, w)
	assert.True(t, ev.Op.Gone())
}

func TestClose(t *testing.T) {
	w, err := New()
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "close is idempotent")

	_, ok := <-w.Events()
	assert.False(t, ok)
	assert.ErrorIs(t, w.Add(filepath.Join(t.TempDir(), "x")), ErrWatcherClosed)
}
