package control

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

var enabledValues = map[string]bool{
	"1":    true,
	"true": true,
	"yes":  true,
	"on":   true,
}

// Flag is the persisted process-wide enable switch. A missing file reads as enabled.
type Flag struct {
	path   string
	logger *zap.Logger
}

func NewFlag(path string, logger *zap.Logger) *Flag {
	return &Flag{path: path, logger: logger}
}

func (f *Flag) Path() string {
	return f.path
}

// Enabled reads the flag. Read errors other than a missing file count as disabled.
func (f *Flag) Enabled() bool {
	enabled, err := ReadEnabled(f.path)
	if err != nil {
		f.logger.Warn("failed to read enable flag, treating as disabled",
			zap.String("path", f.path),
			zap.Error(err))
	}
	return enabled
}

// Set persists the flag
func (f *Flag) Set(on bool) error {
	return WriteEnabled(f.path, on)
}

// ReadEnabled reports whether the flag file holds an enabling token
func ReadEnabled(path string) (bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, err
	}
	return enabledValues[strings.ToLower(strings.TrimSpace(string(content)))], nil
}

// WriteEnabled writes "1" or "0", creating parent directories
func WriteEnabled(path string, on bool) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create flag directory: %w", err)
		}
	}
	value := "0"
	if on {
		value = "1"
	}
	if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
		return fmt.Errorf("failed to write enable flag: %w", err)
	}
	return nil
}
