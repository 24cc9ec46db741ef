// Package config loads the core's TOML configuration, writing sane defaults
// on first run.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the core's static, file-backed configuration.
type Config struct {
	IssuerResonatorID string  `toml:"IssuerResonatorID"`
	ArbiterResonatorID string `toml:"ArbiterResonatorID"`
	DataDir           string  `toml:"DataDir"`
	ReserveCapUnits   uint64  `toml:"ReserveCapUnits"`
	MaxSingleMintUnits uint64 `toml:"MaxSingleMintUnits"`
	MaxSingleBurnUnits uint64 `toml:"MaxSingleBurnUnits"`
}

// Load reads the configuration at path, creating it with defaults if it
// does not yet exist.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataRoot()
	}
	if cfg.IssuerResonatorID == "" {
		cfg.IssuerResonatorID = "res_issuer_default"
	}
	if cfg.ArbiterResonatorID == "" {
		cfg.ArbiterResonatorID = "res_arbiter_default"
	}
	return cfg, nil
}

// createDefault writes a new config file at path populated with a
// deterministic issuer/arbiter identity and the resolved data root, then
// returns it.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		IssuerResonatorID:  "res_issuer_default",
		ArbiterResonatorID: "res_arbiter_default",
		DataDir:            DefaultDataRoot(),
		ReserveCapUnits:    1_000_000_00, // $1,000,000.00 in cents
		MaxSingleMintUnits: 100_000_00,
		MaxSingleBurnUnits: 100_000_00,
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultDataRoot resolves the data root per precedence: $DATA_DIR, else
// $HOME/.openibank, else the OS temp directory.
func DefaultDataRoot() string {
	if dir := os.Getenv("DATA_DIR"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".openibank")
	}
	return filepath.Join(os.TempDir(), "openibank")
}
