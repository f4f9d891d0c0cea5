package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"autopilot/internal/model"

	"gopkg.in/yaml.v3"
)

var ErrUnsupportedFormat = errors.New("unsupported script format")

// ScriptFormat is the on-disk encoding of a script file.
type ScriptFormat string

const (
	FormatJSON ScriptFormat = "json"
	FormatYAML ScriptFormat = "yaml"
)

// FormatForPath picks the encoding from the file extension.
func FormatForPath(path string) (ScriptFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func DecodeScript(b []byte, f ScriptFormat) (model.Script, error) {
	var s model.Script
	switch f {
	case FormatJSON:
		if err := json.Unmarshal(b, &s); err != nil {
			return model.Script{}, fmt.Errorf("decode json script: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(b, &s); err != nil {
			return model.Script{}, fmt.Errorf("decode yaml script: %w", err)
		}
	default:
		return model.Script{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
	return s, nil
}

func EncodeScript(s model.Script, f ScriptFormat) ([]byte, error) {
	switch f {
	case FormatJSON:
		b, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
}

func LoadScript(path string) (model.Script, error) {
	f, err := FormatForPath(path)
	if err != nil {
		return model.Script{}, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return model.Script{}, err
	}
	return DecodeScript(b, f)
}

// SaveScript writes the script atomically in the format its extension names.
func SaveScript(path string, s model.Script) error {
	f, err := FormatForPath(path)
	if err != nil {
		return err
	}
	b, err := EncodeScript(s, f)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, b)
}

// WriteFileAtomic writes b to a sibling temp file and renames it over path.
func WriteFileAtomic(path string, b []byte) error {
	path = filepath.Clean(path)
	if path == "" || path == "." {
		return errors.New("write file: missing path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
