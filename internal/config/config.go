// Package config loads service configuration from defaults and REVIEWD_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

type Config struct {
	Server    ServerConfig
	AI        AIConfig
	Storage   StorageConfig
	Retrieval RetrievalConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

type AIConfig struct {
	// APIKey may be empty: the AI client then stays inert and review
	// generation fails with a service-unavailable error instead of the
	// process refusing to start.
	APIKey     string
	BaseURL    string
	ChatModel  string
	EmbedModel string
}

type StorageConfig struct {
	DataDir string
}

type RetrievalConfig struct {
	TopK int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		AI: AIConfig{
			BaseURL:    "https://api.openai.com/v1",
			ChatModel:  "gpt-4o",
			EmbedModel: "text-embedding-3-small",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Retrieval: RetrievalConfig{
			TopK: 20,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "reviewd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".local", "share", "reviewd")
}

// Load reads configuration from defaults overridden by environment variables.
// The management API token is the only hard requirement at startup.
func Load() (Config, error) {
	cfg := defaults()
	applyEnvOverrides(&cfg)

	if cfg.Server.APIToken == "" {
		return Config{}, fmt.Errorf("missing required config: set REVIEWD_API_TOKEN for the management API")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return Config{}, fmt.Errorf("invalid port %d", cfg.Server.Port)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Server.APIToken, "REVIEWD_API_TOKEN")
	setInt(&cfg.Server.Port, "REVIEWD_PORT")
	setString(&cfg.AI.APIKey, "REVIEWD_AI_API_KEY")
	setString(&cfg.AI.BaseURL, "REVIEWD_AI_BASE_URL")
	setString(&cfg.AI.ChatModel, "REVIEWD_AI_CHAT_MODEL")
	setString(&cfg.AI.EmbedModel, "REVIEWD_AI_EMBED_MODEL")
	setString(&cfg.Storage.DataDir, "REVIEWD_DATA_DIR")
	setInt(&cfg.Retrieval.TopK, "REVIEWD_RETRIEVAL_TOP_K")
	setString(&cfg.Log.Level, "REVIEWD_LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
