// Package config loads the YAML configuration of a vecrag deployment.
//
// A missing file yields the defaults. Secrets are not expected in the file:
// the embedding API key is read from the environment variable named by
// api_key_env, which LoadDotEnv can populate from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/vecrag/codec"
	"github.com/hupe1980/vecrag/embedding"
	"github.com/hupe1980/vecrag/persistence"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Vectorize configures chunking and the embedding pipeline.
type Vectorize struct {
	TokensPerMinute int `yaml:"tokens_per_minute"`
	ConsumerCount   int `yaml:"consumer_count"`
	MinChunkSize    int `yaml:"min_chunk_size"`
	MaxChunkSize    int `yaml:"max_chunk_size"`
	MaxBatchLines   int `yaml:"max_batch_lines"`
}

// Validate checks the pipeline parameters.
func (v Vectorize) Validate() error {
	switch {
	case v.TokensPerMinute <= 0:
		return fmt.Errorf("%w: tokens_per_minute must be positive, got %d", ErrInvalid, v.TokensPerMinute)
	case v.ConsumerCount <= 0:
		return fmt.Errorf("%w: consumer_count must be positive, got %d", ErrInvalid, v.ConsumerCount)
	case v.MinChunkSize < 0:
		return fmt.Errorf("%w: min_chunk_size must not be negative, got %d", ErrInvalid, v.MinChunkSize)
	case v.MaxChunkSize < v.MinChunkSize:
		return fmt.Errorf("%w: max_chunk_size %d is below min_chunk_size %d", ErrInvalid, v.MaxChunkSize, v.MinChunkSize)
	case v.MaxChunkSize <= 0:
		return fmt.Errorf("%w: max_chunk_size must be positive, got %d", ErrInvalid, v.MaxChunkSize)
	case v.MaxBatchLines < 1:
		return fmt.Errorf("%w: max_batch_lines must be at least 1, got %d", ErrInvalid, v.MaxBatchLines)
	}
	return nil
}

// Embedding configures the embedding provider.
type Embedding struct {
	APIKey       string `yaml:"api_key,omitempty"`
	APIKeyEnv    string `yaml:"api_key_env"`
	BaseURL      string `yaml:"base_url"`
	ModelName    string `yaml:"model_name"`
	ProviderType string `yaml:"provider_type"`
	RetryCount   int    `yaml:"retry_count"`
	// RetryDelay is the minimum backoff in seconds.
	RetryDelay  int `yaml:"retry_delay"`
	TimeoutSecs int `yaml:"timeout_secs"`
}

// ResolveAPIKey returns APIKey, or the value of the APIKeyEnv variable.
func (e Embedding) ResolveAPIKey() string {
	if e.APIKey != "" {
		return e.APIKey
	}
	if e.APIKeyEnv != "" {
		return os.Getenv(e.APIKeyEnv)
	}
	return ""
}

// ProviderConfig converts the section for embedding.Registry.New.
func (e Embedding) ProviderConfig() embedding.ProviderConfig {
	return embedding.ProviderConfig{
		APIKey:     e.ResolveAPIKey(),
		BaseURL:    e.BaseURL,
		Model:      e.ModelName,
		RetryCount: e.RetryCount,
		RetryDelay: time.Duration(e.RetryDelay) * time.Second,
		Timeout:    time.Duration(e.TimeoutSecs) * time.Second,
	}
}

// Index configures the index builder.
type Index struct {
	// Location is the index directory. Empty means <source>/../vector.
	Location      string `yaml:"location"`
	Compression   string `yaml:"compression"`
	FlatThreshold int    `yaml:"flat_threshold"`
	NumLists      int    `yaml:"num_lists"`
	NProbe        int    `yaml:"nprobe"`
	// Codec encodes id_mapping.json: "go-json" or "json".
	Codec string `yaml:"codec"`
}

// Validate checks the builder parameters.
func (i Index) Validate() error {
	if _, err := persistence.ParseCompression(i.Compression); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, ok := codec.ByName(i.Codec); !ok {
		return fmt.Errorf("%w: unknown codec %q", ErrInvalid, i.Codec)
	}
	if i.FlatThreshold < 0 || i.NumLists <= 0 || i.NProbe <= 0 {
		return fmt.Errorf("%w: flat_threshold=%d num_lists=%d nprobe=%d", ErrInvalid, i.FlatThreshold, i.NumLists, i.NProbe)
	}
	return nil
}

// Config is the root configuration.
type Config struct {
	Vectorize Vectorize `yaml:"vectorize"`
	Embedding Embedding `yaml:"embedding"`
	Index     Index     `yaml:"index"`
	Store     Store     `yaml:"store"`
}

// Default returns the default configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the configuration at path. A missing file yields Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML and applies defaults to unset fields.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Save writes cfg to path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// LoadDotEnv loads environment files without overriding variables that are
// already set. With no arguments it reads ./.env. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Vectorize.Validate(); err != nil {
		return err
	}
	if c.Embedding.ProviderType == "" {
		return fmt.Errorf("%w: embedding.provider_type is required", ErrInvalid)
	}
	if c.Embedding.RetryCount < 0 {
		return fmt.Errorf("%w: embedding.retry_count must not be negative", ErrInvalid)
	}
	if err := c.Index.Validate(); err != nil {
		return err
	}
	return c.Store.Validate()
}

func applyDefaults(cfg *Config) {
	v := &cfg.Vectorize
	if v.TokensPerMinute == 0 {
		v.TokensPerMinute = 1000
	}
	if v.ConsumerCount == 0 {
		v.ConsumerCount = 4
	}
	if v.MaxChunkSize == 0 {
		v.MaxChunkSize = 200
	}
	if v.MinChunkSize == 0 {
		v.MinChunkSize = v.MaxChunkSize / 2
	}
	if v.MaxBatchLines == 0 {
		v.MaxBatchLines = 32
	}

	e := &cfg.Embedding
	if e.ProviderType == "" {
		e.ProviderType = "siliconflow"
	}
	if e.ModelName == "" {
		e.ModelName = "Qwen/Qwen3-Embedding-8B"
	}
	if e.APIKeyEnv == "" {
		e.APIKeyEnv = "EMBEDDING_API_KEY"
	}
	if e.RetryCount == 0 {
		e.RetryCount = 3
	}
	if e.RetryDelay == 0 {
		e.RetryDelay = 1
	}
	if e.TimeoutSecs == 0 {
		e.TimeoutSecs = 30
	}

	i := &cfg.Index
	if i.FlatThreshold == 0 {
		i.FlatThreshold = 50_000
	}
	if i.NumLists == 0 {
		i.NumLists = 100
	}
	if i.NProbe == 0 {
		i.NProbe = 1
	}
	if i.Codec == "" {
		i.Codec = "go-json"
	}

	if cfg.Store.Type == "" {
		cfg.Store.Type = StoreLocal
	}
}
