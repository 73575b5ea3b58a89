package coremain

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/ensdns/ensdns/mlog"
)

type Config struct {
	Log   mlog.LogConfig `yaml:"log"`
	Chain ChainConfig    `yaml:"chain"`
	Cache CacheConfig    `yaml:"cache"`
	API   APIConfig      `yaml:"api"`
}

type ChainConfig struct {
	// Endpoint is the JSON-RPC endpoint of an Ethereum node.
	Endpoint string `yaml:"endpoint"`

	// Registry overrides the root registry contract address.
	Registry string `yaml:"registry"`

	// TLD is the apex the root registry is authoritative for.
	// Default is "eth".
	TLD string `yaml:"tld"`

	// Timeout bounds one resolution request, in seconds. Default is 10.
	Timeout int `yaml:"timeout"`
}

type CacheConfig struct {
	// Size is the entry capacity of the in-memory cache.
	Size int `yaml:"size"`

	// TTL is the cache time-to-live in seconds. Default is 1800.
	TTL int `yaml:"ttl"`

	// Redis switches the cache to a shared redis backend,
	// e.g. "redis://localhost:6379/0".
	Redis string `yaml:"redis"`
}

type APIConfig struct {
	// Addr is the HTTP API listen address. Default is "127.0.0.1:8654".
	Addr string `yaml:"addr"`
}

// loadConfig loads a config from a file. If filePath is empty, it will
// automatically search and load a file which name starts with "config".
func loadConfig(filePath string) (*Config, error) {
	v := viper.New()

	if len(filePath) > 0 {
		v.SetConfigFile(filePath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	decoderOpt := func(cfg *mapstructure.DecoderConfig) {
		cfg.ErrorUnused = true
		cfg.TagName = "yaml"
		cfg.WeaklyTypedInput = true
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg, decoderOpt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}
