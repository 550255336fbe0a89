package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Ollama    OllamaConfig    `mapstructure:"ollama"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Tagger    TaggerConfig    `mapstructure:"tagger"`
	Engine    EngineConfig    `mapstructure:"engine"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type OpenAIConfig struct {
	APIKey         string  `mapstructure:"api_key"`
	Model          string  `mapstructure:"model"`
	EmbeddingModel string  `mapstructure:"embedding_model"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	Temperature    float64 `mapstructure:"temperature"`
}

type OllamaConfig struct {
	URL            string `mapstructure:"url"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}

type RetrievalConfig struct {
	// HybridWeight is the semantic share of the hybrid score; the lexical
	// share is 1 - HybridWeight.
	HybridWeight float64 `mapstructure:"hybrid_weight"`
	MinScore     float64 `mapstructure:"min_score"`
	SnippetChars int     `mapstructure:"snippet_chars"`
}

type TaggerConfig struct {
	MaxTags             int     `mapstructure:"max_tags"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
}

type EngineConfig struct {
	BulkWorkers    int           `mapstructure:"bulk_workers"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  "disable",
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("openai.max_tokens", 1500)
	v.SetDefault("openai.temperature", 0.3)
	v.SetDefault("ollama.url", "http://localhost:11434")
	v.SetDefault("ollama.model", "llama3.1:8b")
	v.SetDefault("ollama.embedding_model", "nomic-embed-text")
	v.SetDefault("retrieval.hybrid_weight", 0.6)
	v.SetDefault("retrieval.min_score", 0.3)
	v.SetDefault("retrieval.snippet_chars", 240)
	v.SetDefault("tagger.max_tags", 5)
	v.SetDefault("tagger.confidence_threshold", 0.5)
	v.SetDefault("engine.bulk_workers", 4)
	v.SetDefault("engine.request_timeout", 30*time.Second)

	// Enable environment variable support
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %v", err)
		}
		config.Database = dbConfig
	}

	// Get other environment variables
	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	if ollamaURL := v.GetString("OLLAMA_URL"); ollamaURL != "" {
		config.Ollama.URL = ollamaURL
	}

	return &config, nil
}
