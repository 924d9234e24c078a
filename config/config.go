package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Qdrant    QdrantConfig
	Embedding EmbeddingConfig
	OpenAI    OpenAIConfig
	Lecture   LectureConfig
	AWS       AWSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all (e.g. http://localhost:3000,http://localhost:3001)
}

// DatabaseConfig holds PostgreSQL connection settings. Optional: leave
// DATABASE_URL empty to run without session/highlight persistence.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/studymate?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings. Optional: leave REDIS_ADDR
// empty to run single-node with in-process fan-out only.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT validation settings. Optional: leave JWT_SECRET empty
// to run the API unauthenticated.
type JWTConfig struct {
	Secret string
}

// QdrantConfig holds vector store connection and collection settings.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	VectorSize uint64
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider string // "huggingface" or "openai"
	HFToken  string
	Model    string
	BaseURL  string
}

// OpenAIConfig holds OpenAI keys and model choices for transcription and
// highlight classification. Optional: without an API key, audio upload is
// disabled and classification falls back to keyword rules.
type OpenAIConfig struct {
	APIKey       string
	WhisperModel string
	ChatModel    string
}

// LectureConfig holds the fragment buffer tuning.
type LectureConfig struct {
	FastWindow     time.Duration
	FastWordLimit  int
	SlowFlushCount int
	Retention      time.Duration
	SSEPing        time.Duration
}

// AWSConfig holds AWS credentials and the transcript archive bucket.
// Optional: leave the bucket empty to skip transcript archival.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	ArchiveBucket        string
	PresignExpireMinutes int
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "studymate"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
		},
		Qdrant: QdrantConfig{
			Host:       getEnv("QDRANT_HOST", "localhost"),
			Port:       getEnvInt("QDRANT_PORT", 6334),
			APIKey:     getEnv("QDRANT_API_KEY", ""),
			UseTLS:     getEnvBool("QDRANT_USE_TLS", false),
			Collection: getEnv("QDRANT_COLLECTION", "studymate_docs"),
			VectorSize: uint64(getEnvInt("QDRANT_VECTOR_SIZE", 384)),
		},
		Embedding: EmbeddingConfig{
			Provider: getEnv("EMBEDDING_PROVIDER", "huggingface"),
			HFToken:  getEnv("HF_TOKEN", ""),
			Model:    getEnv("EMBEDDING_MODEL", ""),
			BaseURL:  getEnv("EMBEDDING_BASE_URL", ""),
		},
		OpenAI: OpenAIConfig{
			APIKey:       getEnv("OPENAI_API_KEY", ""),
			WhisperModel: getEnv("OPENAI_WHISPER_MODEL", "whisper-1"),
			ChatModel:    getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		},
		Lecture: LectureConfig{
			FastWindow:     time.Duration(getEnvInt("LECTURE_FAST_WINDOW_MS", 8000)) * time.Millisecond,
			FastWordLimit:  getEnvInt("LECTURE_FAST_WORD_LIMIT", 25),
			SlowFlushCount: getEnvInt("LECTURE_SLOW_FLUSH_COUNT", 5),
			Retention:      time.Duration(getEnvInt("LECTURE_RETENTION_MIN", 15)) * time.Minute,
			SSEPing:        time.Duration(getEnvInt("SSE_PING_SEC", 15)) * time.Second,
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			ArchiveBucket:        getEnv("AWS_S3_TRANSCRIPTS_BUCKET", ""),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
