// Package config provides typed application settings for mansage.
// Loads from: env vars > config.toml > built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ModelsConfig names the two models this tool talks to the local LLM server about.
type ModelsConfig struct {
	EmbeddingModel string `toml:"embedding_model"`
	LLMModel       string `toml:"llm_model"`
}

// OllamaConfig holds the local model server connection settings.
type OllamaConfig struct {
	URL string `toml:"url"`
}

// IndexConfig records the fingerprint of the last successful index build.
type IndexConfig struct {
	EmbeddingDimension int    `toml:"embedding_dimension"`
	LastEmbeddingModel string `toml:"last_embedding_model"`
}

// Config is the full typed settings document (§4.5, §6).
type Config struct {
	Models ModelsConfig `toml:"models"`
	Ollama OllamaConfig `toml:"ollama"`
	Index  IndexConfig  `toml:"index"`

	// path this config was loaded from/will be saved to; not persisted itself.
	path string `toml:"-"`
}

// legacyConfig is the flat schema a pre-migration config.toml used (§4.5).
type legacyConfig struct {
	ModelName string `toml:"model_name"`
	OllamaURL string `toml:"ollama_url"`
}

// DefaultConfig returns a Config with the built-in defaults (§6 schema example).
func DefaultConfig() *Config {
	return &Config{
		Models: ModelsConfig{
			EmbeddingModel: "nomic-embed-text",
			LLMModel:       "llama3.2:3b",
		},
		Ollama: OllamaConfig{
			URL: "http://localhost:11434",
		},
	}
}

// ConfigDir returns the per-user configuration directory.
func ConfigDir() string {
	if v := os.Getenv("MANSAGE_CONFIG_DIR"); v != "" {
		return v
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mansage")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "mansage")
}

// DataDir returns the per-user data directory (index + tracker live here).
func DataDir() string {
	if v := os.Getenv("MANSAGE_DATA_DIR"); v != "" {
		return v
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "mansage")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "mansage")
}

// FilePath returns the path to config.toml.
func FilePath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// IndexPath returns the path to the vector store database file.
func IndexPath() string {
	return filepath.Join(DataDir(), "index.db")
}

// TrackerPath returns the path to the change-tracker metadata file, which
// is required by §6 to live next to the index.
func TrackerPath() string {
	return filepath.Join(DataDir(), "index_metadata.json")
}

// Load reads config.toml, applying the legacy-schema migration (§4.5) and
// environment-variable overrides. If the file does not exist, built-in
// defaults are returned with no error.
func Load() (*Config, error) {
	path := FilePath()
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		applyEnvOverrides(cfg)
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	meta, decodeErr := toml.Decode(string(data), cfg)
	if decodeErr == nil && !hasLegacyKeys(meta) {
		cfg.path = path
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	// Either the current schema failed to parse, or toml.Decode happily
	// ignored top-level model_name/ollama_url keys it didn't recognize
	// instead of erroring on them — both mean this is a legacy document.
	var legacy legacyConfig
	if _, legacyErr := toml.Decode(string(data), &legacy); legacyErr != nil || legacy.ModelName == "" {
		if decodeErr != nil {
			return nil, fmt.Errorf("config parse error %s: %w", path, decodeErr)
		}
		return nil, fmt.Errorf("config %s matches neither the current nor legacy schema", path)
	}
	migrated := migrate(legacy)
	migrated.path = path
	if saveErr := migrated.Save(); saveErr != nil {
		return nil, fmt.Errorf("save migrated config %s: %w", path, saveErr)
	}
	applyEnvOverrides(migrated)
	return migrated, nil
}

// hasLegacyKeys reports whether decoding into the current schema left any
// of the flat legacy keys (§4.5) undecoded — BurntSushi/toml does not error
// on unmapped top-level keys by default, so a genuine legacy document
// decodes "successfully" into Config while leaving it at its defaults.
func hasLegacyKeys(meta toml.MetaData) bool {
	for _, key := range meta.Undecoded() {
		switch key.String() {
		case "model_name", "ollama_url":
			return true
		}
	}
	return false
}

// migrate converts the legacy flat {model_name, ollama_url} document into
// the current schema, zeroing the index fingerprint per §4.5.
func migrate(l legacyConfig) *Config {
	cfg := DefaultConfig()
	if l.ModelName != "" {
		cfg.Models.EmbeddingModel = l.ModelName
		cfg.Models.LLMModel = l.ModelName
	}
	if l.OllamaURL != "" {
		cfg.Ollama.URL = l.OllamaURL
	}
	cfg.Index = IndexConfig{}
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MANSAGE_EMBEDDING_MODEL"); v != "" {
		cfg.Models.EmbeddingModel = v
	}
	if v := os.Getenv("MANSAGE_LLM_MODEL"); v != "" {
		cfg.Models.LLMModel = v
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" {
		cfg.Ollama.URL = v
	}
}

// Save writes the full document to disk with mode 0600 (§4.5). No partial
// updates: the entire struct is re-serialized every time.
func (c *Config) Save() error {
	path := c.path
	if path == "" {
		path = FilePath()
		c.path = path
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename config into place: %w", err)
	}
	return nil
}

// NeedsRebuild is the derived predicate from §4.5: true iff a prior
// fingerprint exists and its model name differs from the current setting.
func (c *Config) NeedsRebuild() bool {
	if c.Index.LastEmbeddingModel == "" {
		return false
	}
	return c.Index.LastEmbeddingModel != c.Models.EmbeddingModel
}

// RecordFingerprint stamps the index fingerprint after a successful build
// (§4.7 step 5): last_embedding_model and embedding_dimension.
func (c *Config) RecordFingerprint(dimension int) {
	c.Index.EmbeddingDimension = dimension
	c.Index.LastEmbeddingModel = c.Models.EmbeddingModel
}

// Clean removes the index, tracker, and config files (§4.7 "Clean").
// Missing targets are no-ops.
func Clean() error {
	targets := []string{IndexPath(), TrackerPath(), FilePath()}
	for _, t := range targets {
		if err := os.Remove(t); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", t, err)
		}
	}
	return nil
}
