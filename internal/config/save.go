package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Save writes cfg to the global config file.
func Save(cfg *Config) error {
	return SaveToFile(cfg, Path())
}

// SaveToFile writes cfg to path.
func SaveToFile(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil { //nolint:gosec // Restrictive permissions for security.
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// SetField updates a single dotted key in the global config file.
func SetField(key string, value any) error {
	return SetFieldInFile(Path(), key, value)
}

// SetFieldInFile updates a single dotted key in the file at path using sjson,
// leaving every other byte of the file alone. The result must still load.
func SetFieldInFile(path, key string, value any) error {
	//nolint:gosec // G304: path is the config file location.
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("reading config file: %w", err)
		}
		data = []byte("{}")
	}

	updated, err := sjson.SetBytes(data, key, value)
	if err != nil {
		return fmt.Errorf("setting config field %q: %w", key, err)
	}

	check := Default()
	if err := json.Unmarshal(updated, check); err != nil {
		return fmt.Errorf("setting config field %q: %w", key, err)
	}
	if err := check.Validate(); err != nil {
		return fmt.Errorf("setting config field %q: %w", key, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	//nolint:gosec // 0o600 is intentionally restrictive for security.
	if err := os.WriteFile(path, updated, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// ErrUnknownKey is returned when setting a key the config does not have.
var ErrUnknownKey = errors.New("unknown config key")

// ParseValue converts a command-line value to the JSON type of key in the
// config schema.
func ParseValue(key, raw string) (any, error) {
	defaults, err := json.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("marshaling defaults: %w", err)
	}
	r := gjson.GetBytes(defaults, key)
	if !r.Exists() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	switch r.Type {
	case gjson.True, gjson.False:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s expects true or false, got %q", key, raw)
		}
		return b, nil
	case gjson.Number:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s expects a number, got %q", key, raw)
		}
		return f, nil
	default:
		return raw, nil
	}
}

// GetField reads a dotted key from the file at path.
func GetField(path, key string) (string, bool, error) {
	//nolint:gosec // G304: path is the config file location.
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, fmt.Errorf("reading config file: %w", err)
	}
	r := gjson.GetBytes(data, key)
	return r.String(), r.Exists(), nil
}
