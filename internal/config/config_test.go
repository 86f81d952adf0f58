package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/bufkeep/internal/logging"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 20, cfg.Buffers.Count)
	assert.Equal(t, 10, cfg.Recent.Max)
	assert.Equal(t, 400*time.Millisecond, cfg.ProgressInterval())
	assert.Equal(t, time.Duration(0), cfg.Delay())
	assert.True(t, cfg.RestoreFolds())
	assert.True(t, cfg.SaveFolds())
	assert.True(t, cfg.ReloadOnChange)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "bufkeep.toml", `
reload_on_change = false

[buffers]
count = 5

[session]
folds = false
exclude = ["*.tmp", "*.log"]

[worker]
chunk_size = 4096
delay_ms = 15

[log]
level = "debug"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.ReloadOnChange)
	assert.Equal(t, 5, cfg.Buffers.Count)
	assert.Equal(t, BufferMax, cfg.Buffers.Max, "unset keys keep defaults")
	assert.False(t, cfg.Session.Folds)
	assert.True(t, cfg.Session.Bookmarks)
	assert.Equal(t, []string{"*.tmp", "*.log"}, cfg.Session.Exclude)
	assert.Equal(t, 4096, cfg.Worker.ChunkSize)
	assert.Equal(t, 15*time.Millisecond, cfg.Delay())
	assert.Equal(t, logging.LogLevelDebug, cfg.LoggerConfig().Level)
	assert.False(t, cfg.RestoreFolds())
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "bufkeep.yml", `
buffers:
  count: 1
fold:
  on_open: true
recent:
  max: 3
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Buffers.Count)
	assert.Equal(t, 3, cfg.Recent.Max)
	assert.True(t, cfg.Fold.OnOpen)
	assert.False(t, cfg.RestoreFolds(), "fold on open overrides saved folds")
	assert.True(t, cfg.SaveFolds())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Buffers, cfg.Buffers)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(writeFile(t, "bufkeep.ini", "x=1"))
	assert.ErrorIs(t, err, ErrUnsupportedFile)

	_, err = Load(writeFile(t, "broken.toml", "[buffers\ncount = "))
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Contains(t, perr.Path, "broken.toml")

	_, err = Load(writeFile(t, "bad.yaml", "log:\n  level: loud\n"))
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestValidate_Clamps(t *testing.T) {
	cfg := Default()
	cfg.Buffers.Count = 500
	cfg.Recent.Max = 0
	cfg.Worker.ChunkSize = 1
	require.NoError(t, cfg.Validate())
	assert.Equal(t, BufferMax, cfg.Buffers.Count)
	assert.Equal(t, 1, cfg.Recent.Max)
	assert.Equal(t, MinChunkSize, cfg.Worker.ChunkSize)

	cfg.Buffers.Max = 4
	cfg.Buffers.Count = 0
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Buffers.Count)

	cfg.Worker.DelayMs = -1
	cfg.Log.Format = "xml"
	err := cfg.Validate()
	require.ErrorIs(t, err, ErrValidationFailed)
	assert.Contains(t, err.Error(), "worker.delay.ms")
	assert.Contains(t, err.Error(), "log.format")
}

func TestSetGet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("buffers", " 7 "))
	require.NoError(t, cfg.Set("fold.on.open", "yes"))
	require.NoError(t, cfg.Set("session.exclude", "*.bak, *.swp"))
	require.NoError(t, cfg.Set("log.format", "json"))

	v, ok := cfg.Get("buffers")
	assert.True(t, ok)
	assert.Equal(t, "7", v)
	v, _ = cfg.Get("fold.on.open")
	assert.Equal(t, "true", v)
	assert.Equal(t, []string{"*.bak", "*.swp"}, cfg.Session.Exclude)
	v, _ = cfg.Get("session.exclude")
	assert.Equal(t, "*.bak,*.swp", v)

	assert.ErrorIs(t, cfg.Set("no.such.key", "1"), ErrUnknownKey)
	assert.ErrorIs(t, cfg.Set("buffers", "many"), ErrInvalidValue)
	assert.ErrorIs(t, cfg.Set("session.save", "perhaps"), ErrInvalidValue)
	_, ok = cfg.Get("no.such.key")
	assert.False(t, ok)

	for _, key := range Keys() {
		_, ok := cfg.Get(key)
		assert.True(t, ok, key)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("BUFKEEP_BUFFERS", "3")
	t.Setenv("BUFKEEP_SESSION_BOOKMARKS", "off")
	t.Setenv("BUFKEEP_WORKER_PROGRESS_INTERVAL_MS", "0")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Buffers.Count)
	assert.False(t, cfg.Session.Bookmarks)
	assert.Equal(t, time.Duration(0), cfg.ProgressInterval())

	t.Setenv("BUFKEEP_RECENT_MAX", "lots")
	_, err = Load("")
	require.ErrorIs(t, err, ErrInvalidValue)
	assert.Contains(t, err.Error(), "BUFKEEP_RECENT_MAX")
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "BUFKEEP_FOLD_ON_OPEN", EnvName(EnvPrefix, "fold.on.open"))
}

func TestEncodeRoundTrip(t *testing.T) {
	for _, format := range []FileFormat{FormatTOML, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			src := Default()
			src.Buffers.Count = 9
			src.Session.Exclude = []string{"*.o"}
			src.Extension.Script = "/etc/bufkeep/hooks.lua"

			var buf bytes.Buffer
			require.NoError(t, src.Encode(&buf, format))

			dst := Default()
			require.NoError(t, dst.LoadReader(strings.NewReader(buf.String()), format))
			assert.Equal(t, src, dst)
		})
	}
}

func TestSessionPath(t *testing.T) {
	cfg := Default()
	cfg.Session.Path = "/var/lib/bufkeep.session"
	assert.Equal(t, "/var/lib/bufkeep.session", cfg.SessionPath())

	home, err := os.UserHomeDir()
	if err == nil {
		cfg.Session.Path = "~/bk.session"
		assert.Equal(t, filepath.Join(home, "bk.session"), cfg.SessionPath())
	}
}
