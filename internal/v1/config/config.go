package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds validated environment configuration.
type Config struct {
	// App
	AppName string
	AppEnv  string
	Debug   bool
	Host    string
	Port    uint16
	LogFile string

	// Audio
	SampleRate      uint
	FrameDurationMs uint

	// Agents
	DefaultAgentProvider string
	AgentQueueDepth      int
	PipelineStallTimeout time.Duration
	JitterBufferMs       uint

	// Protocol
	MaxEnvelopeBytes int

	// Recordings
	RecordingsDir string

	// Redis
	RedisEnabled bool
	RedisURL     string

	// Tracing (optional; empty disables)
	OTelCollectorAddr string

	// Provider credentials (opaque to the core)
	OpenAIAPIKey          string
	DeepgramAPIKey        string
	ElevenLabsAPIKey      string
	GeminiAPIKey          string
	GoogleCredentialsJSON string
	GoogleProjectID       string
}

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Load validates all environment variables and returns a Config object.
// Returns an error if any variable is present but invalid; absent variables
// take their defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []string

	cfg.AppName = getEnvOrDefault("APP_NAME", "Realtime Voice Room Server")

	cfg.AppEnv = getEnvOrDefault("APP_ENV", EnvDevelopment)
	if cfg.AppEnv != EnvDevelopment && cfg.AppEnv != EnvProduction {
		errs = append(errs, fmt.Sprintf("APP_ENV must be %q or %q (got %q)", EnvDevelopment, EnvProduction, cfg.AppEnv))
	}

	cfg.Debug = getEnvOrDefault("DEBUG", "true") == "true"
	cfg.Host = getEnvOrDefault("HOST", "0.0.0.0")

	portStr := getEnvOrDefault("PORT", "8000")
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got %q)", portStr))
	} else {
		cfg.Port = uint16(port)
	}

	cfg.LogFile = getEnvOrDefault("LOG_FILE", "server.log")

	cfg.SampleRate = parseUint(&errs, "SAMPLE_RATE", 16000)
	cfg.FrameDurationMs = parseUint(&errs, "FRAME_DURATION_MS", 20)
	if cfg.FrameDurationMs == 0 {
		errs = append(errs, "FRAME_DURATION_MS must be greater than zero")
	}

	cfg.DefaultAgentProvider = getEnvOrDefault("DEFAULT_AGENT_PROVIDER", "mock")
	switch cfg.DefaultAgentProvider {
	case "mock", "google", "echo":
	default:
		errs = append(errs, fmt.Sprintf("DEFAULT_AGENT_PROVIDER must be one of mock, google, echo (got %q)", cfg.DefaultAgentProvider))
	}

	cfg.AgentQueueDepth = int(parseUint(&errs, "AGENT_QUEUE_DEPTH", 128))
	cfg.JitterBufferMs = parseUint(&errs, "JITTER_BUFFER_MS", 60)
	cfg.MaxEnvelopeBytes = int(parseUint(&errs, "MAX_ENVELOPE_BYTES", 1<<20))

	stallStr := getEnvOrDefault("PIPELINE_STALL_TIMEOUT", "30s")
	stall, err := time.ParseDuration(stallStr)
	if err != nil || stall <= 0 {
		errs = append(errs, fmt.Sprintf("PIPELINE_STALL_TIMEOUT must be a positive duration (got %q)", stallStr))
	} else {
		cfg.PipelineStallTimeout = stall
	}

	cfg.RecordingsDir = getEnvOrDefault("RECORDINGS_DIR", "recordings")

	cfg.RedisEnabled = os.Getenv("REDIS_ENABLED") == "true"
	cfg.RedisURL = getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0")

	cfg.OTelCollectorAddr = os.Getenv("OTEL_COLLECTOR_ADDR")

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.DeepgramAPIKey = os.Getenv("DEEPGRAM_API_KEY")
	cfg.ElevenLabsAPIKey = os.Getenv("ELEVENLABS_API_KEY")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.GoogleCredentialsJSON = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON")
	cfg.GoogleProjectID = os.Getenv("GOOGLE_PROJECT_ID")

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return cfg, nil
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// FrameBytes returns the size in bytes of one PCM frame at the configured
// sample rate and duration (16-bit mono).
func (c *Config) FrameBytes() int {
	return int(c.SampleRate) * int(c.FrameDurationMs) / 1000 * 2
}

func parseUint(errs *[]string, key string, def uint) uint {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return def
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s must be an unsigned integer (got %q)", key, raw))
		return def
	}
	return uint(v)
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// RedactSecret redacts a secret by showing only the first 8 characters.
func RedactSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:8] + "***"
}
