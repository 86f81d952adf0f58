package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	out := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(in, []byte("héllo\n"), 0o644))

	stdout, err := execute(t, "convert", in, out, "--encoding", "utf-16be")
	require.NoError(t, err)
	assert.Contains(t, stdout, "(utf-8) -> ")
	assert.Contains(t, stdout, "(utf-16be)")

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFE, 0xFF, 0x00, 'h', 0x00, 0xE9}, raw[:6])
	assert.Len(t, raw, 2+2*6)
}

func TestConvert_UnknownEncoding(t *testing.T) {
	_, err := execute(t, "convert", "a", "b", "--encoding", "ebcdic")
	assert.Error(t, err)
}

func TestOpen_ListsSlots(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(a, []byte("one\r\ntwo\r\n"), 0o644))

	stdout, err := execute(t, "open", a, filepath.Join(dir, "missing.txt"), "--metrics")
	require.NoError(t, err)
	assert.Contains(t, stdout, "a.txt")
	assert.Contains(t, stdout, "crlf")
	assert.Contains(t, stdout, "missing.txt")
	assert.Contains(t, stdout, "1 completed")
}

func TestSession_SaveShowRestore(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("bravo"), 0o644))
	sessionPath := filepath.Join(dir, "work.session")

	stdout, err := execute(t, "session", "save", sessionPath, a, b)
	require.NoError(t, err)
	assert.Contains(t, stdout, "saved 2 buffers")

	stdout, err = execute(t, "session", "show", sessionPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "1 "+a)
	assert.Contains(t, stdout, "* 2 "+b)

	stdout, err = execute(t, "session", "show", "--json", sessionPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, `"Current": true`)
	assert.Contains(t, stdout, `"Path": "`+b+`"`)

	stdout, err = execute(t, "session", "restore", sessionPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "a.txt")
	assert.Contains(t, stdout, "b.txt")
}

func TestConfig(t *testing.T) {
	stdout, err := execute(t, "--set", "buffers=7", "config", "buffers")
	require.NoError(t, err)
	assert.Equal(t, "7\n", stdout)

	_, err = execute(t, "config", "no.such.key")
	assert.Error(t, err)

	_, err = execute(t, "--set", "buffers", "config")
	assert.Error(t, err)
}
