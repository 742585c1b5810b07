package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Storage backend selectors accepted by the Backend field.
const (
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
	BackendMemory  = "memory"
)

// Config holds the operator-tunable settings of a duelchain store.
type Config struct {
	DataDir              string `toml:"DataDir"`
	Backend              string `toml:"Backend"`
	GenesisFile          string `toml:"GenesisFile"`
	RevealTimeoutSeconds int64  `toml:"RevealTimeoutSeconds"`
	LogEnvironment       string `toml:"LogEnvironment"`
	LogFile              string `toml:"LogFile"`
}

func defaultConfig() *Config {
	return &Config{
		DataDir:              "./data",
		Backend:              BackendLevelDB,
		GenesisFile:          "./genesis.json",
		RevealTimeoutSeconds: 86400,
		LogEnvironment:       "dev",
	}
}

// Load loads the configuration from the given path. A missing file is
// replaced with a freshly written default configuration.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalises and checks the configuration.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil config")
	}
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	switch c.Backend {
	case "":
		c.Backend = BackendLevelDB
	case BackendLevelDB, BackendBolt, BackendMemory:
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Backend)
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	if c.RevealTimeoutSeconds <= 0 {
		return fmt.Errorf("config: RevealTimeoutSeconds must be positive")
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := defaultConfig()
	if dir := filepath.Dir(path); dir != "." && dir != "" {
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
