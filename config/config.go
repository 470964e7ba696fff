// Package config loads runtime configuration from the environment.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all tunables for the service.
type Config struct {
	ListenAddr   string
	DatabasePath string

	// Worker pool
	WorkerCount     int
	RateLimitMax    int
	RateLimitWindow time.Duration
	ShutdownGrace   time.Duration

	// Job queue
	MaxAttempts int
	BackoffBase time.Duration
	ClaimLease  time.Duration

	// Transcription engine
	EngineBackend      string
	EnginePython       string
	EngineScript       string
	EngineModel        string
	EngineLanguage     string
	EngineTimeoutMin   time.Duration
	EngineTimeoutMax   time.Duration
	OpenAIAPIKey       string
	TranscriptFileMode bool

	EventBufferSize int
}

// Load reads .env if present and builds a Config from environment
// variables, falling back to defaults for anything unset.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, falling back to environment variables")
	}

	return &Config{
		ListenAddr:   getEnv("LISTEN_ADDR", ":3000"),
		DatabasePath: getEnv("DATABASE_PATH", "sessionscribe.sqlite"),

		WorkerCount:     getEnvInt("WORKER_COUNT", 5),
		RateLimitMax:    getEnvInt("RATE_LIMIT_MAX", 10),
		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", 60*time.Second),
		ShutdownGrace:   getEnvDuration("SHUTDOWN_GRACE", 30*time.Second),

		MaxAttempts: getEnvInt("JOB_MAX_ATTEMPTS", 3),
		BackoffBase: getEnvDuration("JOB_BACKOFF_BASE", 2*time.Second),
		ClaimLease:  getEnvDuration("JOB_CLAIM_LEASE", 5*time.Minute),

		EngineBackend:      getEnv("ENGINE_BACKEND", "whisper"),
		EnginePython:       getEnv("ENGINE_PYTHON", "python3"),
		EngineScript:       getEnv("ENGINE_SCRIPT", "scripts/transcribe.py"),
		EngineModel:        getEnv("ENGINE_MODEL", "tiny"),
		EngineLanguage:     getEnv("ENGINE_LANGUAGE", "en"),
		EngineTimeoutMin:   getEnvDuration("ENGINE_TIMEOUT_MIN", 2*time.Minute),
		EngineTimeoutMax:   getEnvDuration("ENGINE_TIMEOUT_MAX", 30*time.Minute),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		TranscriptFileMode: getEnvBool("TRANSCRIPT_FILE_MODE", false),

		EventBufferSize: getEnvInt("EVENT_BUFFER_SIZE", 500),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %t", key, v, fallback)
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
