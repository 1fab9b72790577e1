package config

import (
	"log"
	"os"
	"path/filepath"

	"github.com/anthanhphan/gosdk/conflux"
	"github.com/anthanhphan/gosdk/logger"
)

// Config holds coordinator process configuration loaded at boot.
// Runtime-tunable search knobs live in Searcher and are managed by Store
// after startup.
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Searcher SearcherConfig `json:"searcher" yaml:"searcher"`
	Cache    CacheConfig    `json:"cache" yaml:"cache"`
	Gossip   GossipConfig   `json:"gossip" yaml:"gossip"`
	Logger   logger.Config  `json:"logger" yaml:"logger"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// CacheConfig configures the optional Redis aggregate-result cache.
type CacheConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	TTLMS    int    `json:"ttl_ms" yaml:"ttl_ms"`
}

// GossipConfig configures optional memberlist-based node discovery.
type GossipConfig struct {
	Enabled  bool     `json:"enabled" yaml:"enabled"`
	NodeID   string   `json:"node_id" yaml:"node_id"`
	BindAddr string   `json:"bind_addr" yaml:"bind_addr"`
	BindPort int      `json:"bind_port" yaml:"bind_port"`
	Seeds    []string `json:"seeds" yaml:"seeds"`
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8070",
		},
		Searcher: DefaultSearcherConfig(),
		Cache: CacheConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			TTLMS:   5000,
		},
		Gossip: GossipConfig{
			Enabled:  false,
			BindAddr: "0.0.0.0",
			BindPort: 7946,
		},
		Logger: logger.Config{
			LogLevel:    logger.LevelInfo,
			LogEncoding: logger.EncodingJSON,
		},
	}
}

// Load loads configuration from file, falling back to defaults when no
// explicit path was given.
func Load(path string) (*Config, error) {
	configPath := path
	if configPath == "" {
		env := os.Getenv("ENV")
		if env == "" {
			env = "local"
		}
		configPath = filepath.Join("internal", "coordinator", "config", env+".yaml")
	}

	cfg := DefaultConfig()

	parsedCfg, err := conflux.ParseConfig(configPath, cfg)
	if err != nil {
		log.Printf("Config file not found or failed to parse, using defaults if file not specified. Path: %s, Error: %v", configPath, err)
		if path != "" {
			return nil, err
		}
		return cfg, nil
	}

	if err := parsedCfg.Searcher.Validate(); err != nil {
		return nil, err
	}
	return parsedCfg, nil
}

// MustLoad loads configuration or exits on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}
