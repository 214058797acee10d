package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN         string
	JWTSecret     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	HTTPPort string
	// PublicBaseURL is where the functions server is reachable; media URLs are built from it.
	PublicBaseURL string

	// Client side
	FunctionsURL   string
	SettingsPath   string
	SerializeSends bool

	// AI provider (used by the functions server)
	AIProvider        string
	OllamaBaseURL     string
	OllamaModel       string
	OpenRouterBaseURL string
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterSiteURL string
	OpenRouterAppName string
	ImageModel        string
	// UpstreamStreaming off makes the functions server ask for whole replies
	// and send each as one delta.
	UpstreamStreaming bool

	// rabbitMQ; empty URL disables activity publishing
	RabbitURL         string
	RabbitQueue       string
	WorkerConcurrency int
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "":
		return def
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func workerConcurrency() int {
	n := getIntEnv("WORKER_CONCURRENCY", 2)
	if n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

// Load reads a .env file when present and then builds the config from the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, relying on environment variables")
	}

	// DSN demo:
	// app:apppass@tcp(127.0.0.1:3306)/neta?charset=utf8mb4&parseTime=true&loc=UTC
	// sqlite:neta.db
	dsn := getEnv("DB_DSN", "sqlite:neta.db")

	port := getEnv("HTTP_PORT", "8080")

	return Config{
		DBDSN:     dsn,
		JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-me"),

		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		HTTPPort:      port,
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:"+port), "/"),

		FunctionsURL:   strings.TrimRight(getEnv("NETA_FUNCTIONS_URL", "http://localhost:"+port), "/"),
		SettingsPath:   getEnv("NETA_SETTINGS_PATH", "neta-settings.db"),
		SerializeSends: getBoolEnv("CHAT_SERIALIZE_SENDS", false),

		AIProvider:        strings.ToLower(getEnv("AI_PROVIDER", "openrouter")),
		OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:       getEnv("OLLAMA_MODEL", "llama3:latest"),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:   getEnv("OPENROUTER_MODEL", "google/gemini-3-flash-preview"),
		OpenRouterSiteURL: os.Getenv("OPENROUTER_SITE_URL"),
		OpenRouterAppName: getEnv("OPENROUTER_APP_NAME", "Neta.ai"),
		ImageModel:        getEnv("IMAGE_MODEL", "google/gemini-2.5-flash-image-preview"),
		UpstreamStreaming: getBoolEnv("AI_UPSTREAM_STREAM", true),

		RabbitURL:         os.Getenv("RABBIT_URL"),
		RabbitQueue:       getEnv("RABBIT_QUEUE", "chat_activity"),
		WorkerConcurrency: workerConcurrency(),
	}
}
