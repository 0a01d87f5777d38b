package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	GeminiAPIKey      string
	HTTPPort          string
	UploadDir         string
	EmbedCachePath    string // empty disables the embedding cache
	LogLevel          string
	MaxSessions       int
	SessionIdleTTLMin int
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		UploadDir:         getEnv("UPLOAD_DIR", "uploads"),
		EmbedCachePath:    getEnv("EMBED_CACHE_PATH", "embed_cache.db"),
		LogLevel:          getEnv("LOG_LEVEL", "INFO"),
		MaxSessions:       getEnvAsInt("MAX_SESSIONS", 100),
		SessionIdleTTLMin: getEnvAsInt("SESSION_IDLE_TTL_MIN", 30),
	}

	if AppConfig.GeminiAPIKey == "" {
		log.Fatal("GEMINI_API_KEY environment variable is required")
	}
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
