// Package config loads rangestore's ambient defaults: the dataset, index,
// and lock paths a CLI invocation falls back to when the matching flag is
// omitted. Config files are JSONC (JSON with comments and trailing
// commas), parsed with hujson, and persisted atomically when written
// back.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

// FileName is the config file name FindNearest looks for, starting in the
// working directory and walking up through its parents.
const FileName = "rangestore.jsonc"

// Config holds the persisted defaults for path flags. Zero values mean
// "no default": the CLI falls through to its own built-in fallback
// (deriving .idx/.lck from the dataset path).
type Config struct {
	Dataset   string `json:"dataset,omitempty"`
	IndexPath string `json:"indexPath,omitempty"`
	LockPath  string `json:"lockPath,omitempty"`
}

// Load reads and parses the JSONC config file at path. A missing file is
// not an error: it returns a zero Config, letting callers layer in
// flag/env defaults on top.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}

		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	}

	standard, err := hujson.Standardize(raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config %q: %w", path, err)
	}

	var cfg Config

	err = json.Unmarshal(standard, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("parse config %q: %w", path, err)
	}

	return cfg, nil
}

// FindNearest walks up from dir looking for FileName, mirroring a
// "nearest config wins" lookup similar to how git finds .git. Returns ""
// if none is found before reaching the filesystem root.
func FindNearest(dir string) string {
	for {
		candidate := filepath.Join(dir, FileName)

		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}

		dir = parent
	}
}

// Save writes cfg to path as indented JSON, atomically: a crash or
// concurrent read never observes a partially written file.
func Save(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	data = append(data, '\n')

	err = atomic.WriteFile(path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("write config %q: %w", path, err)
	}

	return nil
}
