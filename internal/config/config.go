package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)
	JWTSecret          string // HMAC secret for signing session tokens

	// Database
	DatabaseURL string

	// Audio storage
	AudioDir string // Root directory for generated audio files

	// Synthesis engine
	ModelServerURL string // Local neural model server (preferred when set)
	OpenAIKey      string // OpenAI speech fallback (used when model server is not set)
	OpenAIVoice    string

	// Coordinator
	MaxConcurrentJobs int           // Fixed worker pool size
	QueueSize         int           // Job backlog capacity; Submit fails fast when full
	SynthesisTimeout  time.Duration // Per-job engine timeout (0 = unbounded)
	ResultRetention   time.Duration // How long terminal task states stay pollable

	// Delivery
	FFmpegPath string // Binary used for WAV -> MP3 transcoding

	// Misc
	DefaultLanguage string
	SentryDSN       string // Optional error reporting (empty = disabled)
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:            getEnv("API_PORT", "1010"),
		CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		AudioDir:           getEnv("AUDIO_DIR", "audio_history"),
		ModelServerURL:     getEnv("TTS_MODEL_SERVER_URL", ""),
		OpenAIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIVoice:        getEnv("OPENAI_TTS_VOICE", "alloy"),
		MaxConcurrentJobs:  getEnvInt("MAX_CONCURRENT_JOBS", 4),
		QueueSize:          getEnvInt("QUEUE_SIZE", 256),
		SynthesisTimeout:   getEnvDuration("SYNTHESIS_TIMEOUT", 2*time.Minute),
		ResultRetention:    getEnvDuration("RESULT_RETENTION", 10*time.Minute),
		FFmpegPath:         getEnv("FFMPEG_PATH", "ffmpeg"),
		DefaultLanguage:    getEnv("DEFAULT_LANGUAGE", "lez"),
		SentryDSN:          getEnv("SENTRY_DSN", ""),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	// At least one synthesis backend must be configured
	if cfg.ModelServerURL == "" && cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("either TTS_MODEL_SERVER_URL or OPENAI_API_KEY is required")
	}

	if cfg.MaxConcurrentJobs < 1 {
		return nil, fmt.Errorf("MAX_CONCURRENT_JOBS must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
