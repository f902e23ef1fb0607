// Package config handles configuration loading and memory home resolution.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/go-ports/echovault/internal/model"
)

// ---------------------------------------------------------------------------
// Config types
// ---------------------------------------------------------------------------

// EmbeddingConfig holds settings for the embedding provider.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "ollama" | "openai" | "openrouter" | "none"
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"` // #nosec G117 -- APIKey is an intentional field name for the embedding provider's authentication token
	Dimension int    `yaml:"dimension"`
	CacheSize int    `yaml:"cache_size"`
}

// ContextConfig controls how memories are retrieved for context injection.
type ContextConfig struct {
	Semantic    string `yaml:"semantic"`     // "auto" | "always" | "never"
	TopupRecent bool   `yaml:"topup_recent"` // also include recent memories
}

// ServerConfig controls the MCP server's identity and optional HTTP listener.
type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Listen  string `yaml:"listen"` // empty: stdio only; "host:port" enables HTTP JSON-RPC too
}

// SearchConfig bounds result sizes for recall.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// TTLConfig holds per-kind time-to-live overrides in hours; -1 means
// infinite (the kind never ages out by age_factor alone), 0 means "use the
// package default".
type TTLConfig struct {
	WorkingHours    int `yaml:"working_hours"`
	EpisodicHours   int `yaml:"episodic_hours"`
	SemanticHours   int `yaml:"semantic_hours"`
	ProceduralHours int `yaml:"procedural_hours"`
}

// KindTTLs converts the hour-based overrides into a model.KindTTL,
// starting from model.DefaultTTLs() and applying any non-zero override:
// -1 means infinite (stored as 0, model.KindTTL's own infinite marker),
// 0 means "use the package default" and is left untouched.
func (t TTLConfig) KindTTLs() model.KindTTL {
	out := model.DefaultTTLs()
	apply := func(k model.Kind, hours int) {
		switch {
		case hours < 0:
			out[k] = 0
		case hours > 0:
			out[k] = time.Duration(hours) * time.Hour
		}
	}
	apply(model.KindWorking, t.WorkingHours)
	apply(model.KindEpisodic, t.EpisodicHours)
	apply(model.KindSemantic, t.SemanticHours)
	apply(model.KindProcedural, t.ProceduralHours)
	return out
}

// LogConfig controls structured log output.
type LogConfig struct {
	Level string `yaml:"level"` // "debug" | "info" | "warn" | "error"
	File  string `yaml:"file"`  // empty: stderr
}

// MemoryConfig is the root per-vault configuration.
type MemoryConfig struct {
	Database  string          `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Context   ContextConfig   `yaml:"context"`
	Search    SearchConfig    `yaml:"search"`
	TTL       TTLConfig       `yaml:"ttl"`
	Log       LogConfig       `yaml:"log"`
}

// Default returns a MemoryConfig populated with sensible defaults.
func Default() *MemoryConfig {
	return &MemoryConfig{
		Database: "",
		Server: ServerConfig{
			Name:    "echovault",
			Version: "dev",
		},
		Embedding: EmbeddingConfig{
			Provider:  "ollama",
			Model:     "nomic-embed-text",
			BaseURL:   "http://localhost:11434",
			CacheSize: 1024,
		},
		Context: ContextConfig{
			Semantic:    "auto",
			TopupRecent: true,
		},
		Search: SearchConfig{
			DefaultLimit: 10,
			MaxLimit:     100,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a per-vault config.yaml from path.
// If the file does not exist it returns Default() with no error.
// Missing keys retain their default values.
func Load(path string) (*MemoryConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	// Unmarshal into a plain map so we can apply only the keys that are present.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	if emb, ok := raw["embedding"].(map[string]any); ok {
		if v, ok := emb["provider"].(string); ok && v != "" {
			cfg.Embedding.Provider = v
		}
		if v, ok := emb["model"].(string); ok && v != "" {
			cfg.Embedding.Model = v
		}
		if v, ok := emb["base_url"].(string); ok {
			cfg.Embedding.BaseURL = v
		}
		if v, ok := emb["api_key"].(string); ok {
			cfg.Embedding.APIKey = v
		}
		if v, ok := emb["dimension"].(int); ok {
			cfg.Embedding.Dimension = v
		}
		if v, ok := emb["cache_size"].(int); ok {
			cfg.Embedding.CacheSize = v
		}
	}

	if ctx, ok := raw["context"].(map[string]any); ok {
		if v, ok := ctx["semantic"].(string); ok && v != "" {
			cfg.Context.Semantic = v
		}
		if v, ok := ctx["topup_recent"].(bool); ok {
			cfg.Context.TopupRecent = v
		}
	}

	if db, ok := raw["database"].(string); ok && db != "" {
		cfg.Database = db
	}

	if srv, ok := raw["server"].(map[string]any); ok {
		if v, ok := srv["name"].(string); ok && v != "" {
			cfg.Server.Name = v
		}
		if v, ok := srv["version"].(string); ok && v != "" {
			cfg.Server.Version = v
		}
		if v, ok := srv["listen"].(string); ok {
			cfg.Server.Listen = v
		}
	}

	if srch, ok := raw["search"].(map[string]any); ok {
		if v, ok := srch["default_limit"].(int); ok && v > 0 {
			cfg.Search.DefaultLimit = v
		}
		if v, ok := srch["max_limit"].(int); ok && v > 0 {
			cfg.Search.MaxLimit = v
		}
	}

	if ttl, ok := raw["ttl"].(map[string]any); ok {
		if v, ok := ttl["working_hours"].(int); ok {
			cfg.TTL.WorkingHours = v
		}
		if v, ok := ttl["episodic_hours"].(int); ok {
			cfg.TTL.EpisodicHours = v
		}
		if v, ok := ttl["semantic_hours"].(int); ok {
			cfg.TTL.SemanticHours = v
		}
		if v, ok := ttl["procedural_hours"].(int); ok {
			cfg.TTL.ProceduralHours = v
		}
	}

	if lg, ok := raw["log"].(map[string]any); ok {
		if v, ok := lg["level"].(string); ok && v != "" {
			cfg.Log.Level = v
		}
		if v, ok := lg["file"].(string); ok {
			cfg.Log.File = v
		}
	}

	return cfg, nil
}

// ---------------------------------------------------------------------------
// Memory home resolution
// ---------------------------------------------------------------------------

// globalConfigPath returns the path to the global echovault config file.
// This file stores only memory_home (and future global settings).
func globalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "echovault", "config.yaml"), nil
}

// normalizePath expands ~ and makes the path absolute.
func normalizePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(os.ExpandEnv(path))
}

// ResolveMemoryHome returns the memory home path and the source of the resolution.
// Priority: MEMORY_HOME env → persisted global config → ~/.memory
// source is one of "env", "config", or "default".
func ResolveMemoryHome() (path, source string) {
	if env := os.Getenv("MEMORY_HOME"); env != "" {
		p, err := normalizePath(env)
		if err == nil {
			return p, "env"
		}
	}

	if persisted, ok, _ := GetPersistedMemoryHome(); ok {
		return persisted, "config"
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".memory"), "default"
}

// GetMemoryHome returns the resolved memory home path.
func GetMemoryHome() string {
	path, _ := ResolveMemoryHome()
	return path
}

// GetPersistedMemoryHome reads memory_home from the global config.
// Returns ("", false, nil) if not set.
func GetPersistedMemoryHome() (string, bool, error) {
	cfgPath, err := globalConfigPath()
	if err != nil {
		return "", false, err
	}

	data, err := os.ReadFile(cfgPath)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return "", false, nil
	}

	val, _ := raw["memory_home"].(string)
	val = strings.TrimSpace(val)
	if val == "" {
		return "", false, nil
	}

	p, err := normalizePath(val)
	if err != nil {
		return "", false, err
	}
	return p, true, nil
}

// SetPersistedMemoryHome normalizes path and persists it in the global config.
// Returns the normalized path.
func SetPersistedMemoryHome(path string) (string, error) {
	normalized, err := normalizePath(path)
	if err != nil {
		return "", err
	}

	cfgPath, err := globalConfigPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return "", err
	}

	// Read existing global config, preserving any other keys.
	var raw map[string]any
	if data, err := os.ReadFile(cfgPath); err == nil {
		_ = yaml.Unmarshal(data, &raw)
	}
	if raw == nil {
		raw = make(map[string]any)
	}
	raw["memory_home"] = normalized

	out, err := yaml.Marshal(raw)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(cfgPath, out, 0o600); err != nil {
		return "", err
	}
	return normalized, nil
}

// ClearPersistedMemoryHome removes memory_home from the global config.
// Returns true if the key was present and removed.
// If the file becomes empty after removal it is deleted.
func ClearPersistedMemoryHome() (bool, error) {
	cfgPath, err := globalConfigPath()
	if err != nil {
		return false, err
	}

	data, err := os.ReadFile(cfgPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return false, nil
	}

	if _, ok := raw["memory_home"]; !ok {
		return false, nil
	}
	delete(raw, "memory_home")

	if len(raw) == 0 {
		_ = os.Remove(cfgPath)
		return true, nil
	}

	out, err := yaml.Marshal(raw)
	if err != nil {
		return false, err
	}
	return true, os.WriteFile(cfgPath, out, 0o600)
}
