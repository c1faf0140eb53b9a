package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Agent    AgentConfig
	Database DatabaseConfig
	Channel  ChannelConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	ChannelLogFilePath string
	CorsAllowedOrigins string
	JWTSecret          string
	NatsURL            string
	RedisURL           string
}

// AgentConfig points at the upstream agent backend: REST base for the
// request/response API, WS base for the per-session and per-interview
// channel endpoints.
type AgentConfig struct {
	HTTPBaseURL string
	WSBaseURL   string
}

type DatabaseConfig struct {
	Connection string
}

// ChannelConfig overrides the channel layer's fixed delays. Defaults match
// the agent backend's expectations; mostly useful in staging.
type ChannelConfig struct {
	InitialProbeDelay time.Duration
	ProbeInterval     time.Duration
	NudgeDelay        time.Duration
	ReconnectDelay    time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			ChannelLogFilePath: getEnv("CHANNEL_LOG_FILE_PATH", "logs/channel.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			JWTSecret:          getEnv("JWT_SECRET", ""),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Agent: AgentConfig{
			HTTPBaseURL: getEnv("AGENT_HTTP_BASE_URL", "http://localhost:8000/api"),
			WSBaseURL:   getEnv("AGENT_WS_BASE_URL", "ws://localhost:8000/ws"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Channel: ChannelConfig{
			InitialProbeDelay: getEnvAsDuration("CHANNEL_INITIAL_PROBE_DELAY", 100*time.Millisecond),
			ProbeInterval:     getEnvAsDuration("CHANNEL_PROBE_INTERVAL", 3*time.Second),
			NudgeDelay:        getEnvAsDuration("CHANNEL_NUDGE_DELAY", 500*time.Millisecond),
			ReconnectDelay:    getEnvAsDuration("CHANNEL_RECONNECT_DELAY", 5*time.Second),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
