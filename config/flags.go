package config

import (
	"flag"
	"fmt"
	"os"
)

// Flags holds parsed command-line flags.
type Flags struct {
	Help    bool
	Version bool

	Network     string
	DataDir     string
	Config      string
	StoreBackend string

	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args
	Args []string
}

// ParseFlags parses os.Args[1:] into a Flags struct.
func ParseFlags(args []string) (*Flags, error) {
	fs := flag.NewFlagSet("ckbcored", flag.ContinueOnError)

	f := &Flags{}
	fs.BoolVar(&f.Help, "help", false, "show help")
	fs.BoolVar(&f.Version, "version", false, "show version")
	fs.StringVar(&f.Network, "network", "", "mainnet or testnet")
	fs.StringVar(&f.DataDir, "datadir", "", "data directory")
	fs.StringVar(&f.Config, "config", "", "path to config file")
	fs.StringVar(&f.StoreBackend, "store.backend", "", "badger or memory")
	fs.StringVar(&f.LogLevel, "log.level", "", "log level")
	fs.StringVar(&f.LogFile, "log.file", "", "log file path")
	fs.BoolVar(&f.LogJSON, "log.json", false, "emit JSON logs")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	f.Args = fs.Args()
	return f, nil
}

// Load builds a Config from defaults, a config file, and CLI flag
// overrides, in that precedence order (flags win).
func Load(args []string) (*Config, *Flags, error) {
	flags, err := ParseFlags(args)
	if err != nil {
		return nil, nil, err
	}

	network := Mainnet
	if flags.Network != "" {
		network = NetworkType(flags.Network)
	}
	cfg := Default(network)

	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}
	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := cfg.ConfigFile()
	if flags.Config != "" {
		configPath = flags.Config
	}
	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, nil, fmt.Errorf("applying config: %w", err)
	}

	if flags.StoreBackend != "" {
		cfg.Store.Backend = flags.StoreBackend
	}
	if flags.LogLevel != "" {
		cfg.Log.Level = flags.LogLevel
	}
	if flags.LogFile != "" {
		cfg.Log.File = flags.LogFile
	}
	if flags.LogJSON {
		cfg.Log.JSON = true
	}

	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, flags, nil
}

// EnsureDataDirs creates the data directory structure and a default
// config file if they don't already exist. Idempotent.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.ChainDataDir(),
		cfg.BlocksDir(),
		cfg.LogsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}

	return nil
}
