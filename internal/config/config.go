package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Broker   BrokerConfig
	Auth     AuthConfig
	Chat     ChatConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	GatewayLogFilePath string
	CorsAllowedOrigins string
	OtelEnabled        bool
}

type DatabaseConfig struct {
	Connection string
}

type BrokerConfig struct {
	Relay        string // "none", "nats" or "redis"
	NatsURL      string
	NatsSubject  string
	RedisURL     string
	RedisChannel string
	Shards       int
}

type AuthConfig struct {
	JwtSecret string
}

type ChatConfig struct {
	MessagePageLimit int
	IdempotencyTTL   time.Duration
	SendBuffer       int // outbound frames buffered per websocket connection
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.csv"),
			GatewayLogFilePath: getEnv("WS_LOG_FILE_PATH", "logs/gateway.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			OtelEnabled:        getEnv("OTEL_ENABLED", "false") == "true",
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Broker: BrokerConfig{
			Relay:        getEnv("BROKER_RELAY", "none"),
			NatsURL:      getEnv("NATS_URL", "nats://localhost:4222"),
			NatsSubject:  getEnv("NATS_RELAY_SUBJECT", "chat.cluster.events"),
			RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
			RedisChannel: getEnv("REDIS_RELAY_CHANNEL", "chat_cluster_events"),
			Shards:       getEnvAsInt("BROKER_SHARDS", 16),
		},
		Auth: AuthConfig{
			JwtSecret: getEnv("JWT_SECRET", ""),
		},
		Chat: ChatConfig{
			MessagePageLimit: getEnvAsInt("CHAT_MESSAGE_PAGE_LIMIT", 50),
			IdempotencyTTL:   getEnvAsDuration("CHAT_IDEMPOTENCY_TTL", 10*time.Minute),
			SendBuffer:       getEnvAsInt("WS_SEND_BUFFER", 256),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings ("90s", "10m").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil && value > 0 {
		return value
	}
	return fallback
}
