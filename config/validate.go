package config

import "fmt"

// Validate checks runtime node config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	switch cfg.Store.Backend {
	case "", "badger", "memory":
	default:
		return fmt.Errorf("store.backend must be badger or memory, got %q", cfg.Store.Backend)
	}
	return nil
}
