// Package session saves and restores the set of open buffers.
//
// A session file is plain text with one key=value pair per line:
//
//	# bufkeep session file
//
//	position.left=10
//	...
//
//	mru.1.path=/home/me/newest.txt
//	mru.2.path=/home/me/older.txt
//
//	buffer.1.path=/home/me/a.go
//	buffer.1.position=120
//	buffer.1.current=1
//	buffer.1.bookmarks=3,17
//	buffer.1.folds=40
//
// Indices are 1-based. Positions and line numbers are stored 1-based and
// held 0-based in memory.
package session

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/dshills/bufkeep/internal/logging"
)

const header = "# bufkeep session file"

// Geometry is the saved window placement.
type Geometry struct {
	Left, Top     int
	Width, Height int
	Maximize      bool
}

// BufferRecord is one saved buffer.
type BufferRecord struct {
	// Index is the 1-based slot number the buffer was saved from.
	Index    int
	Path     string
	Position int
	Current  bool

	// Bookmarks and Folds are 0-based line numbers.
	Bookmarks []int
	Folds     []int
}

// Session is the content of a session file.
type Session struct {
	Geometry *Geometry

	// Recent lists recently closed files, newest first.
	Recent []string

	Buffers []BufferRecord
}

// CurrentPath returns the path of the record marked current.
func (s Session) CurrentPath() string {
	for _, b := range s.Buffers {
		if b.Current {
			return b.Path
		}
	}
	return ""
}

// Write serializes s. Records without a path are skipped.
func Write(w io.Writer, s Session) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, header)

	if g := s.Geometry; g != nil {
		fmt.Fprintln(bw)
		fmt.Fprintf(bw, "position.left=%d\n", g.Left)
		fmt.Fprintf(bw, "position.top=%d\n", g.Top)
		fmt.Fprintf(bw, "position.width=%d\n", g.Width)
		fmt.Fprintf(bw, "position.height=%d\n", g.Height)
		fmt.Fprintf(bw, "position.maximize=%d\n", boolInt(g.Maximize))
	}

	if len(s.Recent) > 0 {
		fmt.Fprintln(bw)
		n := 0
		for _, p := range s.Recent {
			if p == "" {
				continue
			}
			n++
			fmt.Fprintf(bw, "mru.%d.path=%s\n", n, p)
		}
	}

	for i, b := range s.Buffers {
		if b.Path == "" {
			continue
		}
		n := b.Index
		if n < 1 {
			n = i + 1
		}
		fmt.Fprintf(bw, "\nbuffer.%d.path=%s\n", n, b.Path)
		fmt.Fprintf(bw, "buffer.%d.position=%d\n", n, b.Position+1)
		if b.Current {
			fmt.Fprintf(bw, "buffer.%d.current=1\n", n)
		}
		if len(b.Bookmarks) > 0 {
			fmt.Fprintf(bw, "buffer.%d.bookmarks=%s\n", n, joinLines(b.Bookmarks))
		}
		if len(b.Folds) > 0 {
			fmt.Fprintf(bw, "buffer.%d.folds=%s\n", n, joinLines(b.Folds))
		}
	}
	return bw.Flush()
}

// Read parses a session. Comments, blank lines and unknown keys are ignored.
func Read(r io.Reader) (Session, error) {
	return read(r, logging.NullLogger)
}

func read(r io.Reader, log *logging.Logger) (Session, error) {
	var (
		s       Session
		geom    Geometry
		hasGeom bool
		recent  = map[int]string{}
		records = map[int]*BufferRecord{}
	)

	record := func(n int) *BufferRecord {
		if b, ok := records[n]; ok {
			return b
		}
		b := &BufferRecord{Index: n}
		records[n] = b
		return b
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			log.Debug("session line %d: no '=' in %q", lineNo, line)
			continue
		}
		key = strings.TrimSpace(key)

		parts := strings.Split(key, ".")
		switch {
		case len(parts) == 2 && parts[0] == "position":
			v, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				log.Warn("session line %d: bad %s value %q", lineNo, key, value)
				continue
			}
			hasGeom = true
			switch parts[1] {
			case "left":
				geom.Left = v
			case "top":
				geom.Top = v
			case "width":
				geom.Width = v
			case "height":
				geom.Height = v
			case "maximize":
				geom.Maximize = v != 0
			}

		case len(parts) == 3 && (parts[0] == "mru" || parts[0] == "buffer"):
			n, err := strconv.Atoi(parts[1])
			if err != nil || n < 1 {
				log.Warn("session line %d: bad index in %q", lineNo, key)
				continue
			}
			if parts[0] == "mru" {
				if parts[2] == "path" && value != "" {
					recent[n] = value
				}
				continue
			}
			b := record(n)
			switch parts[2] {
			case "path":
				b.Path = value
			case "position":
				pos, err := strconv.Atoi(strings.TrimSpace(value))
				if err != nil {
					log.Warn("session line %d: bad position %q", lineNo, value)
					continue
				}
				b.Position = max(pos-1, 0)
			case "current":
				b.Current = strings.TrimSpace(value) != "" && strings.TrimSpace(value) != "0"
			case "bookmarks":
				b.Bookmarks = parseLines(value, log)
			case "folds":
				b.Folds = parseLines(value, log)
			}

		default:
			log.Debug("session line %d: ignoring key %q", lineNo, key)
		}
	}
	if err := sc.Err(); err != nil {
		return Session{}, fmt.Errorf("read session: %w", err)
	}

	if hasGeom {
		s.Geometry = &geom
	}
	for _, n := range sortedKeys(recent) {
		s.Recent = append(s.Recent, recent[n])
	}
	for _, n := range sortedKeys(records) {
		if b := records[n]; b.Path != "" {
			s.Buffers = append(s.Buffers, *b)
		}
	}
	return s, nil
}

// joinLines formats 0-based lines as a 1-based comma list.
func joinLines(lines []int) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, strconv.Itoa(l+1))
	}
	return strings.Join(parts, ",")
}

// parseLines reads a 1-based comma list into 0-based lines. Malformed and
// non-positive entries are skipped.
func parseLines(value string, log *logging.Logger) []int {
	var out []int
	for _, field := range strings.Split(value, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil || n < 1 {
			log.Warn("session: skipping line number %q", field)
			continue
		}
		out = append(out, n-1)
	}
	return out
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
