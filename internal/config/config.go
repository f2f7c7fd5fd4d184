package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	ServerPort string
	GinMode    string
	LogLevel   string
	LogFormat  string

	// Upstream collaborators.
	ExamSourceURL    string
	TimeAuthorityURL string
	CodeRunnerURL    string
	SubmissionURL    string

	// UpstreamTimeout bounds exam-source, time-authority and
	// submission calls. RunTimeout bounds code-execution calls, which
	// legitimately take longer (compile + run).
	UpstreamTimeout time.Duration
	RunTimeout      time.Duration

	// RedisURL enables the exam-definition cache when non-empty.
	RedisURL     string
	ExamCacheTTL time.Duration
	// PrewarmExamIDs are fetched into the cache at boot.
	PrewarmExamIDs []string
	// ExamCollection is the exam-source collection name sessions are
	// created against.
	ExamCollection string

	JWTSecret string
	// AllowedOrigins controls HTTP CORS and WebSocket origin
	// validation. Empty slice means all origins are permitted (dev
	// default).
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible
// defaults. It loads .env file if present but does not fail if
// missing.
func Load() *Config {
	_ = godotenv.Load() // .env is optional

	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		GinMode:    getEnv("GIN_MODE", "debug"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "pretty"),

		ExamSourceURL:    getEnv("EXAM_SOURCE_URL", "http://localhost:9001"),
		TimeAuthorityURL: getEnv("TIME_AUTHORITY_URL", "http://localhost:9002"),
		CodeRunnerURL:    getEnv("CODE_RUNNER_URL", "http://localhost:9003"),
		SubmissionURL:    getEnv("SUBMISSION_URL", "http://localhost:9004"),

		UpstreamTimeout: time.Duration(getEnvInt("UPSTREAM_TIMEOUT_SECONDS", 10)) * time.Second,
		RunTimeout:      time.Duration(getEnvInt("RUN_TIMEOUT_SECONDS", 30)) * time.Second,

		RedisURL:       getEnv("REDIS_URL", ""),
		ExamCacheTTL:   time.Duration(getEnvInt("EXAM_CACHE_TTL_MINUTES", 240)) * time.Minute,
		PrewarmExamIDs: splitList(getEnv("PREWARM_EXAM_IDS", "")),
		ExamCollection: getEnv("EXAM_COLLECTION", "exams"),

		JWTSecret:      getEnv("JWT_SECRET", "change-this-to-a-secure-random-string"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "")),
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
		return fallback
	}
	return n
}

// splitList splits a comma-separated string into a trimmed slice.
// Returns nil for an empty input.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
