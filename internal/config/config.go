package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ChunkSetModeFlat        = "flat"
	ChunkSetModePerDocument = "per_document"

	DedupScopeGlobal = "global"
	DedupScopeRoom   = "room"

	HistoryRankingEmpty = "empty"
	HistoryRankingQuery = "query"
)

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres
	URL    string `yaml:"url"`
}

type RedisConfig struct {
	Addr string        `yaml:"addr"`
	TTL  time.Duration `yaml:"ttl"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// EmbeddingConfig selects the embedding backend by Type: gemini, openai, ollama or hash.
type EmbeddingConfig struct {
	Type              string  `yaml:"type"`
	Model             string  `yaml:"model"`
	BaseURL           string  `yaml:"base_url"`
	APIKey            string  `yaml:"api_key"`
	Dimensions        int     `yaml:"dimensions"`
	BatchSize         int     `yaml:"batch_size"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// GenerationConfig selects the generation backend by Type: gemini, openai, ollama, huggingface or echo.
type GenerationConfig struct {
	Type         string        `yaml:"type"`
	Model        string        `yaml:"model"`
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"api_key"`
	SystemPrompt string        `yaml:"system_prompt"`
	MaxTokens    int           `yaml:"max_tokens"`
	Temperature  float32       `yaml:"temperature"`
	Stream       bool          `yaml:"stream"`
	Timeout      time.Duration `yaml:"timeout"`
	Retries      int           `yaml:"retries"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
}

type RetrievalConfig struct {
	TopK           int    `yaml:"top_k"`
	PassageSize    int    `yaml:"passage_size"`
	PassageOverlap int    `yaml:"passage_overlap"`
	IndexDir       string `yaml:"index_dir"`
	HistoryRanking string `yaml:"history_ranking"` // empty | query
}

type Config struct {
	HTTPPort     string           `yaml:"http_port"`
	LogLevel     string           `yaml:"log_level"`
	GeminiAPIKey string           `yaml:"gemini_api_key"`
	ChunkSetMode string           `yaml:"chunk_set_mode"`
	DedupScope   string           `yaml:"turn_dedup_scope"`
	AMQPURL      string           `yaml:"amqp_url"`
	Database     DatabaseConfig   `yaml:"database"`
	Redis        RedisConfig      `yaml:"redis"`
	MinIO        MinIOConfig      `yaml:"minio"`
	Embedding    EmbeddingConfig  `yaml:"embedding"`
	Generation   GenerationConfig `yaml:"generation"`
	Retrieval    RetrievalConfig  `yaml:"retrieval"`
}

var AppConfig Config

// LoadConfig fills AppConfig from defaults, the optional YAML file at path and the environment.
func LoadConfig(path string) error {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg, err := Load(path)
	if err != nil {
		return err
	}
	AppConfig = *cfg
	return nil
}

// Load builds a Config without touching AppConfig. An empty path falls back to CHATMATE_CONFIG.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getEnv("CHATMATE_CONFIG", "")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func Default() Config {
	return Config{
		HTTPPort:     "8080",
		LogLevel:     "INFO",
		ChunkSetMode: ChunkSetModeFlat,
		DedupScope:   DedupScopeGlobal,
		Database: DatabaseConfig{
			Driver: "sqlite",
			URL:    "chatmate.db",
		},
		Redis: RedisConfig{TTL: 10 * time.Minute},
		MinIO: MinIOConfig{Bucket: "chatmate-documents"},
		Embedding: EmbeddingConfig{
			Type:       "hash",
			Dimensions: 256,
			BatchSize:  64,
		},
		Generation: GenerationConfig{
			Type:         "echo",
			SystemPrompt: "You are a helpful assistant.",
			MaxTokens:    512,
			Temperature:  0.7,
			Timeout:      60 * time.Second,
			Retries:      3,
			RetryDelay:   20 * time.Second,
		},
		Retrieval: RetrievalConfig{
			TopK:           5,
			PassageSize:    200,
			PassageOverlap: 40,
			HistoryRanking: HistoryRankingEmpty,
		},
	}
}

func applyEnv(cfg *Config) {
	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.LogLevel = strings.ToUpper(getEnv("LOG_LEVEL", cfg.LogLevel))
	cfg.GeminiAPIKey = getEnv("GEMINI_API_KEY", cfg.GeminiAPIKey)
	cfg.ChunkSetMode = getEnv("CHUNK_SET_MODE", cfg.ChunkSetMode)
	cfg.DedupScope = getEnv("TURN_DEDUP_SCOPE", cfg.DedupScope)
	cfg.AMQPURL = getEnv("AMQP_URL", cfg.AMQPURL)

	cfg.Database.Driver = getEnv("DATABASE_DRIVER", cfg.Database.Driver)
	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.TTL = getEnvAsDuration("REDIS_TTL", cfg.Redis.TTL)

	cfg.MinIO.Endpoint = getEnv("MINIO_ENDPOINT", cfg.MinIO.Endpoint)
	cfg.MinIO.AccessKey = getEnv("MINIO_ACCESS_KEY", cfg.MinIO.AccessKey)
	cfg.MinIO.SecretKey = getEnv("MINIO_SECRET_KEY", cfg.MinIO.SecretKey)
	cfg.MinIO.Bucket = getEnv("MINIO_BUCKET", cfg.MinIO.Bucket)
	cfg.MinIO.UseSSL = getEnvAsBool("MINIO_USE_SSL", cfg.MinIO.UseSSL)

	cfg.Embedding.Type = getEnv("EMBEDDING_TYPE", cfg.Embedding.Type)
	cfg.Embedding.Model = getEnv("EMBEDDING_MODEL", cfg.Embedding.Model)
	cfg.Embedding.BaseURL = getEnv("EMBEDDING_BASE_URL", cfg.Embedding.BaseURL)
	cfg.Embedding.APIKey = getEnv("EMBEDDING_API_KEY", cfg.Embedding.APIKey)
	cfg.Embedding.Dimensions = getEnvAsInt("EMBEDDING_DIMENSIONS", cfg.Embedding.Dimensions)
	cfg.Embedding.BatchSize = getEnvAsInt("EMBEDDING_BATCH_SIZE", cfg.Embedding.BatchSize)
	cfg.Embedding.RequestsPerSecond = getEnvAsFloat("EMBEDDING_REQUESTS_PER_SECOND", cfg.Embedding.RequestsPerSecond)

	cfg.Generation.Type = getEnv("GENERATION_TYPE", cfg.Generation.Type)
	cfg.Generation.Model = getEnv("GENERATION_MODEL", cfg.Generation.Model)
	cfg.Generation.BaseURL = getEnv("GENERATION_BASE_URL", cfg.Generation.BaseURL)
	cfg.Generation.APIKey = getEnv("GENERATION_API_KEY", cfg.Generation.APIKey)
	cfg.Generation.SystemPrompt = getEnv("GENERATION_SYSTEM_PROMPT", cfg.Generation.SystemPrompt)
	cfg.Generation.MaxTokens = getEnvAsInt("GENERATION_MAX_TOKENS", cfg.Generation.MaxTokens)
	cfg.Generation.Temperature = float32(getEnvAsFloat("GENERATION_TEMPERATURE", float64(cfg.Generation.Temperature)))
	cfg.Generation.Stream = getEnvAsBool("GENERATION_STREAM", cfg.Generation.Stream)
	cfg.Generation.Timeout = getEnvAsDuration("GENERATION_TIMEOUT", cfg.Generation.Timeout)
	cfg.Generation.Retries = getEnvAsInt("GENERATION_RETRIES", cfg.Generation.Retries)
	cfg.Generation.RetryDelay = getEnvAsDuration("GENERATION_RETRY_DELAY", cfg.Generation.RetryDelay)

	cfg.Retrieval.TopK = getEnvAsInt("RETRIEVAL_TOP_K", cfg.Retrieval.TopK)
	cfg.Retrieval.PassageSize = getEnvAsInt("RETRIEVAL_PASSAGE_SIZE", cfg.Retrieval.PassageSize)
	cfg.Retrieval.PassageOverlap = getEnvAsInt("RETRIEVAL_PASSAGE_OVERLAP", cfg.Retrieval.PassageOverlap)
	cfg.Retrieval.IndexDir = getEnv("RETRIEVAL_INDEX_DIR", cfg.Retrieval.IndexDir)
	cfg.Retrieval.HistoryRanking = getEnv("RETRIEVAL_HISTORY_RANKING", cfg.Retrieval.HistoryRanking)
}

// Validate rejects unknown selectors and out-of-range tuning values.
func (c *Config) Validate() error {
	switch c.ChunkSetMode {
	case ChunkSetModeFlat, ChunkSetModePerDocument:
	default:
		return fmt.Errorf("invalid chunk_set_mode %q", c.ChunkSetMode)
	}
	switch c.DedupScope {
	case DedupScopeGlobal, DedupScopeRoom:
	default:
		return fmt.Errorf("invalid turn_dedup_scope %q", c.DedupScope)
	}
	switch c.Retrieval.HistoryRanking {
	case HistoryRankingEmpty, HistoryRankingQuery:
	default:
		return fmt.Errorf("invalid retrieval.history_ranking %q", c.Retrieval.HistoryRanking)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid database.driver %q", c.Database.Driver)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be > 0")
	}
	if c.Retrieval.PassageSize <= 0 {
		return fmt.Errorf("retrieval.passage_size must be > 0")
	}
	if c.Retrieval.PassageOverlap < 0 || c.Retrieval.PassageOverlap >= c.Retrieval.PassageSize {
		return fmt.Errorf("retrieval.passage_overlap must be >= 0 and < passage_size")
	}
	if c.Generation.Timeout <= 0 {
		return fmt.Errorf("generation.timeout must be > 0")
	}
	if (c.Embedding.Type == "gemini" || c.Generation.Type == "gemini") && c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is required for the gemini backend")
	}
	return nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
