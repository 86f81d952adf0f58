// Package config holds bufkeep's settings.
//
// Settings are layered: built-in defaults, then a TOML or YAML file, then
// BUFKEEP_* environment variables. Every setting also has a dotted key
// (for example "worker.chunk.size") accepted by Set and Get.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dshills/bufkeep/internal/logging"
)

// Limits enforced by Validate.
const (
	BufferMax    = 100
	MinChunkSize = 16
)

// Errors returned by configuration operations.
var (
	ErrUnknownKey       = errors.New("unknown setting")
	ErrInvalidValue     = errors.New("invalid setting value")
	ErrUnsupportedFile  = errors.New("unsupported config file type")
	ErrValidationFailed = errors.New("validation failed")
)

// ParseError represents an error while parsing a configuration file.
type ParseError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// BuffersConfig sizes the buffer table.
type BuffersConfig struct {
	// Count is the number of buffer slots; 1 means single-document mode.
	Count int `toml:"count" yaml:"count"`

	// Max is the upper bound Count is clamped to.
	Max int `toml:"max" yaml:"max"`
}

// RecentConfig sizes the recent-file list.
type RecentConfig struct {
	Max int `toml:"max" yaml:"max"`
}

// SessionConfig controls session files.
type SessionConfig struct {
	Save      bool     `toml:"save" yaml:"save"`
	Recent    bool     `toml:"recent" yaml:"recent"`
	Position  bool     `toml:"position" yaml:"position"`
	Bookmarks bool     `toml:"bookmarks" yaml:"bookmarks"`
	Folds     bool     `toml:"folds" yaml:"folds"`
	Exclude   []string `toml:"exclude" yaml:"exclude"`
	Path      string   `toml:"path" yaml:"path"`
}

// FoldConfig controls folding.
type FoldConfig struct {
	Enabled bool `toml:"enabled" yaml:"enabled"`

	// OnOpen folds everything when a file opens, which makes saved folds
	// meaningless on restore.
	OnOpen bool `toml:"on_open" yaml:"on_open"`
}

// WorkerConfig tunes background file jobs.
type WorkerConfig struct {
	ChunkSize          int  `toml:"chunk_size" yaml:"chunk_size"`
	ProgressIntervalMs int  `toml:"progress_interval_ms" yaml:"progress_interval_ms"`
	DelayMs            int  `toml:"delay_ms" yaml:"delay_ms"`
	DetectUTF8         bool `toml:"detect_utf8" yaml:"detect_utf8"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// ExtensionConfig names the Lua extension script.
type ExtensionConfig struct {
	Script string `toml:"script" yaml:"script"`
}

// Config is the complete configuration.
type Config struct {
	ReloadOnChange bool `toml:"reload_on_change" yaml:"reload_on_change"`

	Buffers   BuffersConfig   `toml:"buffers" yaml:"buffers"`
	Recent    RecentConfig    `toml:"recent" yaml:"recent"`
	Session   SessionConfig   `toml:"session" yaml:"session"`
	Fold      FoldConfig      `toml:"fold" yaml:"fold"`
	Worker    WorkerConfig    `toml:"worker" yaml:"worker"`
	Log       LogConfig       `toml:"log" yaml:"log"`
	Extension ExtensionConfig `toml:"extension" yaml:"extension"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ReloadOnChange: true,
		Buffers:        BuffersConfig{Count: 20, Max: BufferMax},
		Recent:         RecentConfig{Max: 10},
		Session: SessionConfig{
			Save:      true,
			Recent:    true,
			Position:  true,
			Bookmarks: true,
			Folds:     true,
		},
		Fold: FoldConfig{Enabled: true},
		Worker: WorkerConfig{
			ChunkSize:          128 * 1024,
			ProgressIntervalMs: 400,
			DetectUTF8:         true,
		},
		Log: LogConfig{Level: "info", Format: string(logging.FormatText)},
	}
}

// Validate clamps numeric settings into range and rejects values that
// cannot be used.
func (c *Config) Validate() error {
	c.Buffers.Max = clamp(c.Buffers.Max, 1, BufferMax)
	c.Buffers.Count = clamp(c.Buffers.Count, 1, c.Buffers.Max)
	if c.Recent.Max < 1 {
		c.Recent.Max = 1
	}
	if c.Worker.ChunkSize < MinChunkSize {
		c.Worker.ChunkSize = MinChunkSize
	}

	var problems []string
	if c.Worker.ProgressIntervalMs < 0 {
		problems = append(problems, "worker.progress.interval.ms must not be negative")
	}
	if c.Worker.DelayMs < 0 {
		problems = append(problems, "worker.delay.ms must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		problems = append(problems, fmt.Sprintf("log.level %q is not debug, info, warn or error", c.Log.Level))
	}
	switch logging.Format(strings.ToLower(c.Log.Format)) {
	case logging.FormatText, logging.FormatJSON:
	default:
		problems = append(problems, fmt.Sprintf("log.format %q is not text or json", c.Log.Format))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidationFailed, strings.Join(problems, "; "))
	}
	return nil
}

// ProgressInterval returns the minimum time between progress reports.
func (c *Config) ProgressInterval() time.Duration {
	return time.Duration(c.Worker.ProgressIntervalMs) * time.Millisecond
}

// Delay returns the artificial per-chunk delay.
func (c *Config) Delay() time.Duration {
	return time.Duration(c.Worker.DelayMs) * time.Millisecond
}

// RestoreFolds reports whether saved folds are re-applied on restore.
func (c *Config) RestoreFolds() bool {
	return c.Fold.Enabled && !c.Fold.OnOpen && c.Session.Folds
}

// SaveFolds reports whether folds are written to sessions.
func (c *Config) SaveFolds() bool {
	return c.Fold.Enabled && c.Session.Folds
}

// SessionPath returns the session file path with a leading ~ expanded. An
// empty setting selects bufkeep/session under the user config directory.
func (c *Config) SessionPath() string {
	if c.Session.Path != "" {
		return expandHome(c.Session.Path)
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".bufkeep.session"
	}
	return filepath.Join(dir, "bufkeep", "session")
}

// LoggerConfig returns the logger settings.
func (c *Config) LoggerConfig() logging.LoggerConfig {
	cfg := logging.DefaultLoggerConfig()
	cfg.Level = logging.ParseLogLevel(c.Log.Level)
	cfg.Format = logging.Format(strings.ToLower(c.Log.Format))
	return cfg
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
