// Package config handles application configuration.
//
// Configuration is split into two categories:
//   - Consensus Params: defined in genesis, immutable, must match across all nodes (Consensus)
//   - Node settings: runtime configuration, can vary per node (Config)
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// =============================================================================
// Node Configuration (runtime, per-node settings)
// =============================================================================

// Config holds node-specific runtime configuration. These settings can
// vary between nodes without breaking consensus.
type Config struct {
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	Store StoreConfig
	Log   LogConfig

	// RebuildIndexes names a full re-derivation of the number→hash index
	// and epoch-index columns on startup. Not persisted. Nothing in this
	// module reads it, so setting it has no effect.
	RebuildIndexes bool
}

// StoreConfig holds the chainstore backend's operational settings
// (which are not themselves consensus rules).
type StoreConfig struct {
	Backend string `conf:"store.backend"` // "badger" or "memory"
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.ckbcore
//	macOS:   ~/Library/Application Support/ckbcore
//	Windows: %APPDATA%\ckbcore
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ckbcore"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "ckbcore")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "ckbcore")
		}
		return filepath.Join(home, "AppData", "Roaming", "ckbcore")
	default:
		return filepath.Join(home, ".ckbcore")
	}
}

// ChainDataDir returns the chain-specific data directory.
func (c *Config) ChainDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// BlocksDir returns the chainstore directory.
func (c *Config) BlocksDir() string {
	return filepath.Join(c.ChainDataDir(), "blocks")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "ckbcore.conf")
}
