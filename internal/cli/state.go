package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/statekit/internal/value"
)

// readState loads a YAML or JSON state file. A missing file yields
// found == false and no error.
func readState(path string) (state any, found bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read state: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, true, nil
	}

	if isJSON(path) {
		v, err := value.DecodeJSON(data)
		if err != nil {
			return nil, false, fmt.Errorf("parse state: %w", err)
		}
		return v, true, nil
	}

	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, false, fmt.Errorf("parse state: %w", err)
	}
	return state, true, nil
}

// writeState writes state in the format implied by the file extension.
// The file is replaced atomically.
func writeState(path string, state any) error {
	var buf bytes.Buffer
	if isJSON(path) {
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(state); err != nil {
			return fmt.Errorf("encode state: %w", err)
		}
	} else if err := writeYAML(&buf, state); err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".statekit-*")
	if err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// parseValue reads a YAML scalar or document from the command line.
// JSON is valid YAML, so both work.
func parseValue(s string) (any, error) {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("invalid value %q: %w", s, err)
	}
	return v, nil
}
