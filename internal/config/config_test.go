package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultHasBuiltinSanitizers(t *testing.T) {
	cfg := Default()
	require.Equal(t, 3, cfg.SymbolicLoopBound)
	require.True(t, cfg.SanitizerSet()["range_check"])
}

func TestLoadOverlaysOntoDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "analysis.yaml")
	require.NoError(t, os.WriteFile(path, []byte("symbolic_loop_bound: 5\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5, cfg.SymbolicLoopBound)
	require.True(t, cfg.SanitizerSet()["u128_checked_add"]) // untouched default survives
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}
