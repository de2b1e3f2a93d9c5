package timetable

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// LoadCache reads a previously saved parse result. A missing or empty
// file returns fs.ErrNotExist so callers fall back to re-parsing.
func LoadCache(path string) (DB, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: cache file %s is empty", os.ErrNotExist, path)
	}

	var db DB
	if err := json.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("decode cache %s: %w", path, err)
	}
	return db, nil
}

// SaveCache writes the parse result atomically (temp file + rename) so
// an interrupted run never leaves a truncated cache behind.
func SaveCache(path string, db DB) error {
	if path == "" {
		return errors.New("cache path is empty")
	}

	data, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".ttcal-cache-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
