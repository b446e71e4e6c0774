package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadFile loads node configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a node config value by key. Only node-operational
// settings, NOT consensus params.
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	case "network":
		cfg.Network = NetworkType(value)
	case "datadir":
		cfg.DataDir = value
	case "store.backend":
		cfg.Store.Backend = value
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)
	default:
		// Unknown keys are ignored
	}
	return nil
}

func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// WriteDefaultConfig writes a default node configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	content := `# ckbcored node configuration
#
# This file contains NODE settings only. Consensus params are fixed in
# code (config.ConsensusFor) and cannot be changed without a hard fork.

# Network: mainnet or testnet
network = ` + string(network) + `

# Data directory (default: ~/.ckbcore)
# datadir = ~/.ckbcore

# Store backend: badger or memory
store.backend = badger

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
