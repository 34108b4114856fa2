package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sasilab/sasi/pkg/types"
)

// WriteJSON encodes v with two-space indentation.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return nil
}

// WriteFile writes v as indented JSON to path, creating parent directories.
func WriteFile(path string, v any) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("report: create dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("report: write %q: %w", path, err)
	}
	return nil
}

// ReadFile parses a history report written by WriteFile.
func ReadFile(path string) ([]types.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("report: read %q: %w", path, err)
	}
	var recs []types.Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("report: parse %q: %w", path, err)
	}
	return recs, nil
}

// ReadSensitivity parses a sensitivity envelope written by WriteFile.
func ReadSensitivity(path string) (*Sensitivity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("report: read %q: %w", path, err)
	}
	var s Sensitivity
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("report: parse %q: %w", path, err)
	}
	return &s, nil
}
