package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		ConnectionString string `yaml:"connection_string"`
	} `yaml:"database"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	Ollama struct {
		BaseURL   string `yaml:"base_url"`
		ChatModel string `yaml:"chat_model"`
	} `yaml:"ollama"`
	Embeddings struct {
		Model      string `yaml:"model"`
		Dimension  int    `yaml:"dimension"`
		MaxRetries int    `yaml:"max_retries"`
	} `yaml:"embeddings"`
	Indexing struct {
		ChunkMaxChars int           `yaml:"chunk_max_chars"`
		SweepInterval time.Duration `yaml:"sweep_interval"`
		SweepWorkers  int           `yaml:"sweep_workers"`
		LockTTL       time.Duration `yaml:"lock_ttl"`
		IVFFlatLists  int           `yaml:"ivfflat_lists"`
	} `yaml:"indexing"`
	Retrieval struct {
		TopK            int           `yaml:"top_k"`
		LexicalWeight   float64       `yaml:"lexical_weight"`
		CurrentJobBoost float64       `yaml:"current_job_boost"`
		QueryTimeout    time.Duration `yaml:"query_timeout"`
	} `yaml:"retrieval"`
	Chat struct {
		CharBudget   int           `yaml:"char_budget"`
		HistoryTurns int           `yaml:"history_turns"`
		IdleTimeout  time.Duration `yaml:"idle_timeout"`
	} `yaml:"chat"`
}

// Load reads configuration from path (if it exists), applies defaults, and
// lets DATABASE_URL / REDIS_URL / OLLAMA_BASE_URL env vars override the file
// so secrets stay out of it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.ConnectionString = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		cfg.Ollama.BaseURL = v
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns default configuration
func Default() *Config {
	cfg := &Config{}

	cfg.Server.Port = "8080"
	cfg.Database.ConnectionString = "postgres://postgres@localhost/jobfinder?sslmode=disable"
	cfg.Redis.URL = "redis://localhost:6379/0"
	cfg.Ollama.BaseURL = "http://localhost:11434"
	cfg.Ollama.ChatModel = ""
	cfg.Embeddings.Model = "nomic-embed-text"
	cfg.Embeddings.Dimension = 768
	cfg.Embeddings.MaxRetries = 3
	cfg.Indexing.ChunkMaxChars = 800
	cfg.Indexing.SweepInterval = 30 * time.Minute
	cfg.Indexing.SweepWorkers = 4
	cfg.Indexing.LockTTL = 5 * time.Minute
	cfg.Indexing.IVFFlatLists = 100
	cfg.Retrieval.TopK = 5
	cfg.Retrieval.LexicalWeight = 0.15
	cfg.Retrieval.CurrentJobBoost = 0.10
	cfg.Retrieval.QueryTimeout = 10 * time.Second
	cfg.Chat.CharBudget = 12000
	cfg.Chat.HistoryTurns = 10
	cfg.Chat.IdleTimeout = 30 * time.Minute

	return cfg
}

func (c *Config) validate() error {
	if c.Embeddings.Dimension <= 0 {
		return fmt.Errorf("embeddings.dimension must be positive, got %d", c.Embeddings.Dimension)
	}
	if c.Indexing.ChunkMaxChars <= 0 {
		return fmt.Errorf("indexing.chunk_max_chars must be positive, got %d", c.Indexing.ChunkMaxChars)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Chat.CharBudget <= 0 {
		return fmt.Errorf("chat.char_budget must be positive, got %d", c.Chat.CharBudget)
	}
	return nil
}
