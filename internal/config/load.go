package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix starts every environment override, e.g. BUFKEEP_BUFFERS_MAX.
const EnvPrefix = "BUFKEEP_"

// FileFormat is a configuration file syntax.
type FileFormat string

const (
	FormatTOML FileFormat = "toml"
	FormatYAML FileFormat = "yaml"
)

// FormatForPath picks the file format from the extension.
func FormatForPath(path string) (FileFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
}

// Load builds a configuration from defaults, the file at path (skipped when
// path is empty or the file does not exist) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(EnvPrefix); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the settings in path. A missing file is not an error.
func (c *Config) LoadFile(path string) error {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	return c.parse(path, format, data)
}

// LoadReader overlays settings read from r in the given format.
func (c *Config) LoadReader(r io.Reader, format FileFormat) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	return c.parse("<reader>", format, data)
}

// parse decodes data over c, so keys absent from the file keep their
// current values.
func (c *Config) parse(source string, format FileFormat, data []byte) error {
	var err error
	switch format {
	case FormatTOML:
		err = toml.Unmarshal(data, c)
	case FormatYAML:
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		err = yaml.Unmarshal(data, c)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFile, format)
	}
	if err != nil {
		return &ParseError{Path: source, Err: err}
	}
	return nil
}

// Encode writes c in the given format.
func (c *Config) Encode(w io.Writer, format FileFormat) error {
	switch format {
	case FormatTOML:
		return toml.NewEncoder(w).Encode(c)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedFile, format)
}

// EnvName returns the environment variable overriding key.
func EnvName(prefix, key string) string {
	return prefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// ApplyEnv overlays every setting whose environment variable is set.
// Empty values are treated as set.
func (c *Config) ApplyEnv(prefix string) error {
	for _, key := range Keys() {
		val, ok := os.LookupEnv(EnvName(prefix, key))
		if !ok {
			continue
		}
		if err := c.Set(key, val); err != nil {
			return fmt.Errorf("environment %s: %w", EnvName(prefix, key), err)
		}
	}
	return nil
}
