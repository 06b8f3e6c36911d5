// Package cli provides discovery and command building for the codex binary.
//
// Discovery searches in the following order:
//  1. Explicit path in Config.CodexPath (if provided)
//  2. System PATH
//  3. Common installation directories (/usr/local/bin, /usr/bin, ~/.local/bin)
package cli

import (
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/agentwire/codex-sdk-go/internal/errors"
)

const binaryName = "codex"

// Config holds configuration for binary discovery.
type Config struct {
	// CodexPath is an explicit binary path that skips PATH search.
	CodexPath string

	// Logger is an optional logger for discovery operations.
	Logger *slog.Logger
}

// Discoverer locates the codex binary.
type Discoverer interface {
	// Discover locates the codex binary and returns its path.
	Discover() (string, error)
}

type discoverer struct {
	cfg *Config
	log *slog.Logger
}

// Compile-time verification that discoverer implements Discoverer.
var _ Discoverer = (*discoverer)(nil)

// NewDiscoverer creates a new binary discoverer with the given configuration.
func NewDiscoverer(cfg *Config) Discoverer {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
	}

	return &discoverer{cfg: cfg, log: log}
}

// Discover locates the codex binary.
func (d *discoverer) Discover() (string, error) {
	// If explicit path provided, use it and only it
	if d.cfg.CodexPath != "" {
		d.log.Debug("Using explicit codex path", "codex_path", d.cfg.CodexPath)

		if _, err := os.Stat(d.cfg.CodexPath); err == nil {
			return d.cfg.CodexPath, nil
		}

		return "", &errors.CodexNotFoundError{SearchedPaths: []string{d.cfg.CodexPath}}
	}

	searchedPaths := make([]string, 0, 4)

	if path, err := exec.LookPath(binaryName); err == nil {
		d.log.Debug("Found codex in PATH", "path", path)

		return path, nil
	}

	searchedPaths = append(searchedPaths, "$PATH")

	commonPaths := []string{
		"/usr/local/bin/" + binaryName,
		"/usr/bin/" + binaryName,
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		commonPaths = append(commonPaths, filepath.Join(homeDir, ".local/bin", binaryName))
	}

	for _, path := range commonPaths {
		searchedPaths = append(searchedPaths, path)

		if _, err := os.Stat(path); err == nil {
			d.log.Debug("Found codex at common path", "path", path)

			return path, nil
		}
	}

	d.log.Warn("Codex binary not found in any searched paths", "searched_paths", searchedPaths)

	return "", &errors.CodexNotFoundError{SearchedPaths: searchedPaths}
}
