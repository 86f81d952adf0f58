package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// field binds a dotted key to the Config value it controls.
type field struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

var fields = map[string]field{
	"buffers":                     intField(func(c *Config) *int { return &c.Buffers.Count }),
	"buffers.max":                 intField(func(c *Config) *int { return &c.Buffers.Max }),
	"recent.max":                  intField(func(c *Config) *int { return &c.Recent.Max }),
	"session.save":                boolField(func(c *Config) *bool { return &c.Session.Save }),
	"session.recent":              boolField(func(c *Config) *bool { return &c.Session.Recent }),
	"session.position":            boolField(func(c *Config) *bool { return &c.Session.Position }),
	"session.bookmarks":           boolField(func(c *Config) *bool { return &c.Session.Bookmarks }),
	"session.folds":               boolField(func(c *Config) *bool { return &c.Session.Folds }),
	"session.exclude":             listField(func(c *Config) *[]string { return &c.Session.Exclude }),
	"session.path":                stringField(func(c *Config) *string { return &c.Session.Path }),
	"fold":                        boolField(func(c *Config) *bool { return &c.Fold.Enabled }),
	"fold.on.open":                boolField(func(c *Config) *bool { return &c.Fold.OnOpen }),
	"worker.chunk.size":           intField(func(c *Config) *int { return &c.Worker.ChunkSize }),
	"worker.progress.interval.ms": intField(func(c *Config) *int { return &c.Worker.ProgressIntervalMs }),
	"worker.delay.ms":             intField(func(c *Config) *int { return &c.Worker.DelayMs }),
	"worker.detect.utf8":          boolField(func(c *Config) *bool { return &c.Worker.DetectUTF8 }),
	"reload.on.change":            boolField(func(c *Config) *bool { return &c.ReloadOnChange }),
	"log.level":                   stringField(func(c *Config) *string { return &c.Log.Level }),
	"log.format":                  stringField(func(c *Config) *string { return &c.Log.Format }),
	"extension.script":            stringField(func(c *Config) *string { return &c.Extension.Script }),
}

// Keys returns every dotted setting key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set assigns a setting from its string form.
func (c *Config) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if err := f.set(c, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// Get returns a setting in string form.
func (c *Config) Get(key string) (string, bool) {
	f, ok := fields[key]
	if !ok {
		return "", false
	}
	return f.get(c), true
}

func intField(ptr func(*Config) *int) field {
	return field{
		get: func(c *Config) string { return strconv.Itoa(*ptr(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, v)
			}
			*ptr(c) = n
			return nil
		},
	}
}

func boolField(ptr func(*Config) *bool) field {
	return field{
		get: func(c *Config) string { return strconv.FormatBool(*ptr(c)) },
		set: func(c *Config, v string) error {
			b, err := parseBool(v)
			if err != nil {
				return err
			}
			*ptr(c) = b
			return nil
		},
	}
}

func stringField(ptr func(*Config) *string) field {
	return field{
		get: func(c *Config) string { return *ptr(c) },
		set: func(c *Config, v string) error {
			*ptr(c) = v
			return nil
		},
	}
}

// listField reads comma or space separated values.
func listField(ptr func(*Config) *[]string) field {
	return field{
		get: func(c *Config) string { return strings.Join(*ptr(c), ",") },
		set: func(c *Config, v string) error {
			*ptr(c) = strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
			return nil
		},
	}
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off", "":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, s)
}
