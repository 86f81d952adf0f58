package session

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/bufkeep/internal/buffers"
	"github.com/dshills/bufkeep/internal/document"
)

// tableOpener restores into a buffer table the way the application does.
type tableOpener struct {
	table     *buffers.Table
	capacity  int
	closeErr  error
	failPath  string
	opened    []string
	activated []int
}

func (o *tableOpener) CloseAll() error {
	if o.closeErr != nil {
		return o.closeErr
	}
	return o.table.Allocate(o.capacity)
}

func (o *tableOpener) Open(path string, position int) (int, error) {
	if path == o.failPath {
		return buffers.NotFound, errors.New("cannot load")
	}
	idx := 0
	if o.table.Len() > 1 || !o.table.Slot(0).IsUntitled() {
		idx = o.table.AddSlot()
		if idx == buffers.NotFound {
			return idx, errors.New("table full")
		}
	}
	s := o.table.Slot(idx)
	s.Path = path
	s.Selection = buffers.Selection{Anchor: position, Caret: position}
	o.table.Activate(idx)
	o.opened = append(o.opened, path)
	return idx, nil
}

func (o *tableOpener) Activate(slot int) {
	o.activated = append(o.activated, slot)
	o.table.Activate(slot)
}

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(name), 0o644))
	return p
}

func allOptions() Options {
	return Options{Recent: true, Geometry: true, Bookmarks: true, Folds: true}
}

func TestWriteFormat(t *testing.T) {
	s := Session{
		Geometry: &Geometry{Left: 10, Top: 20, Width: 800, Height: 600, Maximize: true},
		Recent:   []string{"/new.txt", "/old.txt"},
		Buffers: []BufferRecord{
			{Index: 1, Path: "/a.go", Position: 0, Bookmarks: []int{0, 9}},
			{Index: 2, Path: ""},
			{Index: 3, Path: "/c.go", Position: 41, Current: true, Folds: []int{4}},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, s))

	want := `# bufkeep session file

position.left=10
position.top=20
position.width=800
position.height=600
position.maximize=1

mru.1.path=/new.txt
mru.2.path=/old.txt

buffer.1.path=/a.go
buffer.1.position=1
buffer.1.bookmarks=1,10

buffer.3.path=/c.go
buffer.3.position=42
buffer.3.current=1
buffer.3.folds=5
`
	assert.Equal(t, want, buf.String())
}

func TestReadTolerant(t *testing.T) {
	in := `# comment
unknown.key=1
not a pair
buffer.x.path=/bad-index
position.width=wide
mru.2.path=/second
mru.1.path=/first

buffer.4.path=/d.txt
buffer.4.position=0
buffer.4.bookmarks=3, x, -2,,7
buffer.2.path=/b.txt
buffer.2.position=5
buffer.2.current=1
buffer.9.position=3
`
	s, err := Read(strings.NewReader(in))
	require.NoError(t, err)

	assert.Nil(t, s.Geometry, "no valid geometry key")
	assert.Equal(t, []string{"/first", "/second"}, s.Recent)
	require.Len(t, s.Buffers, 2, "records without a path are dropped")

	assert.Equal(t, BufferRecord{Index: 2, Path: "/b.txt", Position: 4, Current: true}, s.Buffers[0])
	assert.Equal(t, "/d.txt", s.Buffers[1].Path)
	assert.Equal(t, 0, s.Buffers[1].Position, "position clamps at zero")
	assert.Equal(t, []int{2, 6}, s.Buffers[1].Bookmarks)
	assert.Equal(t, "/b.txt", s.CurrentPath())
}

func TestWriteRead_RoundTrip(t *testing.T) {
	s := Session{
		Geometry: &Geometry{Left: -5, Top: 3, Width: 100, Height: 50},
		Recent:   []string{"/r1", "/r2", "/r3"},
		Buffers: []BufferRecord{
			{Index: 1, Path: "/p/a b.txt", Position: 7, Bookmarks: []int{1, 2}, Folds: []int{0}},
			{Index: 2, Path: "/p/c=d.txt", Position: 0, Current: true},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, s))
	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestStore_SaveRestoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	a := touch(t, dir, "a.txt")
	b := touch(t, dir, "b.txt")
	c := touch(t, dir, "c.txt")

	src := buffers.NewTable(document.NewArena())
	require.NoError(t, src.Allocate(5))
	srcOpener := &tableOpener{table: src, capacity: 5}
	for i, p := range []string{a, b, c} {
		_, err := srcOpener.Open(p, (i+1)*10)
		require.NoError(t, err)
	}
	src.AddSlot()
	src.Slot(1).Bookmarks.Add(4)
	src.Slot(2).Folds.Add(8)
	src.Activate(1)

	recent := NewRecentFiles(5)
	recent.Add("/closed/old.txt")
	recent.Add("/closed/new.txt")

	store, err := NewStore(src, recent, allOptions(), nil)
	require.NoError(t, err)

	sessionPath := filepath.Join(dir, "sessions", "main.session")
	require.NoError(t, store.SaveFile(sessionPath, &Geometry{Width: 640, Height: 480}))

	dst := buffers.NewTable(document.NewArena())
	require.NoError(t, dst.Allocate(5))
	dst.Slot(0).Path = "/previously/open.txt"
	dstRecent := NewRecentFiles(5)
	dstStore, err := NewStore(dst, dstRecent, allOptions(), nil)
	require.NoError(t, err)

	loaded, err := dstStore.LoadFile(sessionPath)
	require.NoError(t, err)
	require.NotNil(t, loaded.Geometry)
	assert.Equal(t, 640, loaded.Geometry.Width)

	opener := &tableOpener{table: dst, capacity: 5}
	result, err := dstStore.Restore(loaded, opener)
	require.NoError(t, err)
	assert.Empty(t, result.Skipped)

	assert.Equal(t, []string{a, b, c}, dst.Paths(), "previous buffers closed first")
	assert.Equal(t, 1, dst.Current())
	assert.Equal(t, b, dst.CurrentSlot().Path)
	assert.Equal(t, []int{1}, opener.activated, "current activated once, after all opens")
	for i, want := range []int{10, 20, 30} {
		assert.Equal(t, want, dst.Slot(i).Selection.Caret)
	}
	assert.Equal(t, []int{4}, dst.Slot(1).Bookmarks.Lines())
	assert.Equal(t, []int{8}, dst.Slot(2).Folds.Lines())
	assert.Equal(t, []string{"/closed/new.txt", "/closed/old.txt"}, dstRecent.Paths())

	again := dstStore.Capture(nil)
	first := store.Capture(nil)
	require.Len(t, again.Buffers, len(first.Buffers))
	for i := range first.Buffers {
		assert.Equal(t, first.Buffers[i].Path, again.Buffers[i].Path)
		assert.Equal(t, first.Buffers[i].Position, again.Buffers[i].Position)
		assert.Equal(t, first.Buffers[i].Current, again.Buffers[i].Current)
	}
}

func TestStore_RestoreSkipsUnloadable(t *testing.T) {
	dir := t.TempDir()
	ok1 := touch(t, dir, "one.txt")
	broken := touch(t, dir, "broken.txt")
	ok2 := touch(t, dir, "two.txt")

	sess := Session{Buffers: []BufferRecord{
		{Index: 1, Path: ok1},
		{Index: 2, Path: filepath.Join(dir, "gone.txt"), Current: true},
		{Index: 3, Path: broken},
		{Index: 4, Path: ok2},
	}}

	table := buffers.NewTable(nil)
	require.NoError(t, table.Allocate(4))
	store, err := NewStore(table, nil, Options{}, nil)
	require.NoError(t, err)

	opener := &tableOpener{table: table, capacity: 4, failPath: broken}
	result, err := store.Restore(sess, opener)
	require.NoError(t, err)

	assert.Equal(t, []string{ok1, ok2}, opener.opened)
	require.Len(t, result.Skipped, 2)
	assert.ErrorIs(t, result.Skipped[0].Err, os.ErrNotExist)
	assert.Equal(t, broken, result.Skipped[1].Path)
	assert.Equal(t, buffers.NotFound, result.Current, "current record was skipped")
	assert.Empty(t, opener.activated)
}

func TestStore_RestoreAbortsWhenCloseRefused(t *testing.T) {
	table := buffers.NewTable(nil)
	require.NoError(t, table.Allocate(2))
	store, err := NewStore(table, nil, Options{}, nil)
	require.NoError(t, err)

	opener := &tableOpener{table: table, capacity: 2, closeErr: errors.New("unsaved changes")}
	_, err = store.Restore(Session{Buffers: []BufferRecord{{Path: "/x"}}}, opener)
	assert.ErrorIs(t, err, ErrRestoreAborted)
	assert.Empty(t, opener.opened)
}

func TestStore_CaptureOptions(t *testing.T) {
	table := buffers.NewTable(nil)
	require.NoError(t, table.Allocate(4))
	table.Slot(0).Path = "/src/main.go"
	table.Slot(0).Bookmarks.Add(1)
	idx := table.AddSlot()
	table.Slot(idx).Path = "/tmp/scratch.tmp"
	table.AddSlot()

	store, err := NewStore(table, nil, Options{Exclude: []string{"*.tmp"}}, nil)
	require.NoError(t, err)

	s := store.Capture(&Geometry{Width: 1})
	assert.Nil(t, s.Geometry)
	assert.Nil(t, s.Recent)
	require.Len(t, s.Buffers, 1, "untitled and excluded buffers are not saved")
	assert.Equal(t, "/src/main.go", s.Buffers[0].Path)
	assert.Nil(t, s.Buffers[0].Bookmarks)
	assert.True(t, s.Buffers[0].Current)

	assert.True(t, store.Excluded("/any/where/file.tmp"))
	assert.False(t, store.Excluded("/src/main.go"))

	_, err = NewStore(table, nil, Options{Exclude: []string{"[unclosed"}}, nil)
	assert.Error(t, err)
}

func TestRecentFiles(t *testing.T) {
	r := NewRecentFiles(3)
	r.Add("/a")
	r.Add("/b")
	r.Add("/c")
	assert.Equal(t, []string{"/c", "/b", "/a"}, r.Paths())

	r.Add("/a")
	assert.Equal(t, []string{"/a", "/c", "/b"}, r.Paths(), "re-adding moves to top")

	r.Add("/d")
	assert.Equal(t, []string{"/d", "/a", "/c"}, r.Paths(), "oldest dropped at capacity")

	r.Remove("/a")
	r.Remove("/missing")
	r.Add("")
	assert.Equal(t, []string{"/d", "/c"}, r.Paths())

	r.Restore([]string{"/n1", "/n2", "/n3", "/n4"})
	assert.Equal(t, []string{"/n1", "/n2", "/n3"}, r.Paths(), "restore keeps the newest entries")
	assert.Equal(t, 3, r.Max())

	assert.Equal(t, DefaultRecentMax, NewRecentFiles(0).Max())
}

func TestStore_FoldOnOpenSkipsSavedFolds(t *testing.T) {
	dir := t.TempDir()
	p := touch(t, dir, "folded.txt")
	sess := Session{Buffers: []BufferRecord{{Index: 1, Path: p, Folds: []int{3}, Bookmarks: []int{1}}}}

	table := buffers.NewTable(nil)
	require.NoError(t, table.Allocate(2))
	opts := allOptions()
	opts.FoldOnOpen = true
	store, err := NewStore(table, nil, opts, nil)
	require.NoError(t, err)

	_, err = store.Restore(sess, &tableOpener{table: table, capacity: 2})
	require.NoError(t, err)
	assert.Equal(t, 0, table.Slot(0).Folds.Len())
	assert.Equal(t, []int{1}, table.Slot(0).Bookmarks.Lines())

	table.Slot(0).Folds.Add(6)
	assert.Equal(t, []int{6}, store.Capture(nil).Buffers[0].Folds, "folds are still saved")
}
