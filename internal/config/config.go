// Package config loads server configuration for the ingestion-and-retrieval
// core from environment variables, an optional YAML file, and hard defaults
// (in that precedence order), and provides backup/versioning helpers for the
// on-disk ontology and trigger snapshots used by C7.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config is the complete server configuration, sourced per §6's CLI/ops
// environment variables plus YAML overrides for settings with no single
// scalar env var (the search, indexing and frpei sections).
type Config struct {
	DatabaseURL    string `koanf:"database_url" json:"database_url"`
	Port           int    `koanf:"port" json:"port"`
	EmbeddingModel string `koanf:"embedding_model" json:"embedding_model"`

	WoTEnabled  bool    `koanf:"wot_enabled" json:"wot_enabled"`
	WoTProvider string  `koanf:"wot_provider" json:"wot_provider"` // external|local
	WoTWeight   float64 `koanf:"wot_weight" json:"wot_weight"`
	WoTCacheTTL time.Duration `koanf:"wot_cache_ttl" json:"wot_cache_ttl"`

	Search   SearchConfig   `koanf:"search" json:"search"`
	Indexing IndexingConfig `koanf:"indexing" json:"indexing"`
	FRPEI    FRPEIConfig    `koanf:"frpei" json:"frpei"`
}

// SearchConfig configures the hybrid fusion weights (spec.md §9 resolves the
// 0.7/0.3 vs 0.6/0.4 ambiguity at 0.7/0.3, exposed here as a tunable).
type SearchConfig struct {
	LexicalWeight float64 `koanf:"lexical_weight" json:"lexical_weight"`
	VectorWeight  float64 `koanf:"vector_weight" json:"vector_weight"`
	DefaultLimit  int     `koanf:"default_limit" json:"default_limit"`
	SearchTimeout time.Duration `koanf:"search_timeout" json:"search_timeout"`
}

// IndexingConfig configures shared connector/index behavior.
type IndexingConfig struct {
	EmbeddingDimension int `koanf:"embedding_dimension" json:"embedding_dimension"`
	MaxParallelBatches int `koanf:"max_parallel_batches" json:"max_parallel_batches"`
	SQLQueryTimeout    time.Duration `koanf:"sql_query_timeout" json:"sql_query_timeout"`
}

// FRPEIConfig configures the federated orchestrator's defaults (§4.10, §5).
type FRPEIConfig struct {
	DefaultTimeout time.Duration `koanf:"default_timeout" json:"default_timeout"`
	ResultCacheTTL time.Duration `koanf:"result_cache_ttl" json:"result_cache_ttl"`
	ResultCacheCap int           `koanf:"result_cache_cap" json:"result_cache_cap"`
}

// Default returns the hard-coded defaults, applied before env/file overrides.
func Default() Config {
	return Config{
		DatabaseURL:    "corequery.db",
		Port:           8080,
		EmbeddingModel: "all-MiniLM-L6-v2",
		WoTEnabled:     false,
		WoTProvider:    "local",
		WoTWeight:      1.0,
		WoTCacheTTL:    time.Hour,
		Search: SearchConfig{
			LexicalWeight: 0.3,
			VectorWeight:  0.7,
			DefaultLimit:  20,
			SearchTimeout: 3 * time.Second,
		},
		Indexing: IndexingConfig{
			EmbeddingDimension: 384,
			MaxParallelBatches: 4,
			SQLQueryTimeout:    60 * time.Second,
		},
		FRPEI: FRPEIConfig{
			DefaultTimeout: 5 * time.Second,
			ResultCacheTTL: 2 * time.Minute,
			ResultCacheCap: 1000,
		},
	}
}

// Load builds a Config from defaults, an optional YAML file at path (if
// non-empty and present), and environment variables prefixed COREQUERY_,
// mirroring the env-var contract of spec.md §6 (DATABASE_URL, PORT,
// EMBEDDING_MODEL, WOT_ENABLED, WOT_PROVIDER, WOT_WEIGHT, WOT_CACHE_TTL are
// accepted both bare and COREQUERY_-prefixed).
func Load(path string) (Config, error) {
	k := koanf.New(".")
	defaults := Default()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
				return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", bareEnvMapper), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}
	if err := k.Load(env.ProviderWithValue("COREQUERY_", ".", prefixedEnvMapper), nil); err != nil {
		return Config{}, fmt.Errorf("load prefixed env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// bareEnvMapper maps the legacy unprefixed env vars named in spec.md §6.
func bareEnvMapper(key, value string) (string, interface{}) {
	switch key {
	case "DATABASE_URL":
		return "database_url", value
	case "PORT":
		return "port", value
	case "EMBEDDING_MODEL":
		return "embedding_model", value
	case "WOT_ENABLED":
		return "wot_enabled", value
	case "WOT_PROVIDER":
		return "wot_provider", value
	case "WOT_WEIGHT":
		return "wot_weight", value
	case "WOT_CACHE_TTL":
		return "wot_cache_ttl", value
	default:
		return "", nil
	}
}

func prefixedEnvMapper(key, value string) (string, interface{}) {
	k, v := bareEnvMapper(strings.TrimPrefix(key, "COREQUERY_"), value)
	if k == "" {
		return "", nil
	}
	return k, v
}

