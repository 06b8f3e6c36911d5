package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentwire/codex-sdk-go/internal/config"
	"github.com/agentwire/codex-sdk-go/internal/errors"
)

func TestDiscover_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	binary := filepath.Join(dir, "codex")
	require.NoError(t, os.WriteFile(binary, []byte("#!/bin/sh\n"), 0o755))

	discoverer := NewDiscoverer(&Config{CodexPath: binary})

	path, err := discoverer.Discover()
	require.NoError(t, err)
	require.Equal(t, binary, path)
}

func TestDiscover_ExplicitPathMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "codex")

	discoverer := NewDiscoverer(&Config{CodexPath: missing})

	_, err := discoverer.Discover()
	require.Error(t, err)

	var notFound *errors.CodexNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, []string{missing}, notFound.SearchedPaths)
}

func TestDiscover_ExplicitPathSkipsSearch(t *testing.T) {
	// Even with a binary on PATH, an explicit missing path must fail rather
	// than fall through to PATH search.
	dir := t.TempDir()
	onPath := filepath.Join(dir, "codex")
	require.NoError(t, os.WriteFile(onPath, []byte("#!/bin/sh\n"), 0o755))
	t.Setenv("PATH", dir)

	discoverer := NewDiscoverer(&Config{CodexPath: filepath.Join(dir, "nope")})

	_, err := discoverer.Discover()
	require.Error(t, err)
}

func TestDiscover_FindsBinaryOnPath(t *testing.T) {
	dir := t.TempDir()
	binary := filepath.Join(dir, "codex")
	require.NoError(t, os.WriteFile(binary, []byte("#!/bin/sh\n"), 0o755))
	t.Setenv("PATH", dir)

	discoverer := NewDiscoverer(nil)

	path, err := discoverer.Discover()
	require.NoError(t, err)
	require.Equal(t, binary, path)
}

func TestBuildArgs(t *testing.T) {
	require.Equal(t, []string{"app-server"}, BuildArgs(&config.Options{}))
}

func TestBuildEnvironment(t *testing.T) {
	env := BuildEnvironment(&config.Options{Env: []string{"CODEX_HOME=/tmp/codex"}})

	require.Contains(t, env, "CODEX_SDK_ENTRYPOINT=sdk-go")
	require.Equal(t, "CODEX_HOME=/tmp/codex", env[len(env)-1])
	require.Greater(t, len(env), 2)
}
