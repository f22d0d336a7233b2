package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all agent configuration.
type Config struct {
	ServerPort string
	GinMode    string
	LogLevel   string
	LogFormat  string

	// GatewayBaseURL is the remote exam API root, e.g. "http://10.37.52.254:8000/api".
	GatewayBaseURL string
	GatewayTimeout time.Duration

	// StorePath is the SQLite file backing the local progress mirror.
	StorePath string

	// AllowedOrigins controls HTTP CORS and WebSocket origin validation for
	// the local API. Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string

	// TotalTimeSeconds caps the exam duration. The effective remaining time
	// is min(server timer, persisted remaining, this value).
	TotalTimeSeconds int

	// MaxWarnings is the free-warning budget before mark deductions begin.
	MaxWarnings int

	// ViolationDebounce collapses a burst of host events caused by a single
	// user action (alt-tab fires blur and visibilitychange) into one violation.
	ViolationDebounce time.Duration

	// FinalSubmissionWindow is the trailing portion of the exam during which
	// manual submission is permitted.
	FinalSubmissionWindow time.Duration

	// PenalizedMarks is the mark value a penalized question is reduced to.
	// Surfaced in the instruction payload only; grading happens server-side.
	PenalizedMarks float64

	// PreserveOnSubmitFailure keeps the local progress mirror when the final
	// submission POST fails, allowing a rejoin. The historical behavior is
	// false: a failed submission still clears local state.
	PreserveOnSubmitFailure bool
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // Ignore error, .env is optional

	return &Config{
		ServerPort:              getEnv("SERVER_PORT", "7466"),
		GinMode:                 getEnv("GIN_MODE", "debug"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		LogFormat:               getEnv("LOG_FORMAT", "pretty"),
		GatewayBaseURL:          strings.TrimRight(getEnv("GATEWAY_BASE_URL", "http://localhost:8000/api"), "/"),
		GatewayTimeout:          time.Duration(getEnvInt("GATEWAY_TIMEOUT_SECONDS", 15)) * time.Second,
		StorePath:               getEnv("STORE_PATH", "./proctor.db"),
		AllowedOrigins:          parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
		TotalTimeSeconds:        getEnvInt("TOTAL_TIME_SECONDS", 3600),
		MaxWarnings:             getEnvInt("MAX_WARNINGS", 5),
		ViolationDebounce:       time.Duration(getEnvInt("VIOLATION_DEBOUNCE_MS", 500)) * time.Millisecond,
		FinalSubmissionWindow:   time.Duration(getEnvInt("FINAL_SUBMISSION_WINDOW_SECONDS", 900)) * time.Second,
		PenalizedMarks:          getEnvFloat("PENALIZED_MARKS", 0.5),
		PreserveOnSubmitFailure: getEnvBool("PRESERVE_ON_SUBMIT_FAILURE", false),
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

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
