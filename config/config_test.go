package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "openibank.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotEmpty(t, cfg.IssuerResonatorID)
	require.NotEmpty(t, cfg.ArbiterResonatorID)
	require.NotEmpty(t, cfg.DataDir)

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestLoadReadsExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "openibank.toml")

	first, err := Load(path)
	require.NoError(t, err)

	second, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, first.IssuerResonatorID, second.IssuerResonatorID)
	require.Equal(t, first.ReserveCapUnits, second.ReserveCapUnits)
}

func TestDefaultDataRootHonorsDataDirEnv(t *testing.T) {
	t.Setenv("DATA_DIR", "/tmp/custom-data-dir")
	require.Equal(t, "/tmp/custom-data-dir", DefaultDataRoot())
}
