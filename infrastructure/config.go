package infrastructure

import (
	"os"
	"strconv"
)

// Config is a one-shot snapshot of the environment, read at startup.
type Config struct {
	APIKey      string
	Model       string
	ChatURL     string
	JobDesc     string
	DBDSN       string
	RabbitURL   string
	UploadDir   string
	Port        string
	WorkerCount int
}

// LoadConfig reads settings from the environment with sane defaults. Only
// the API key and the database DSN are required; main fails fast on those.
func LoadConfig() Config {
	return Config{
		APIKey:      os.Getenv("OPENROUTER_API_KEY"),
		Model:       getenv("OPENROUTER_MODEL", "x-ai/grok-4-fast:free"),
		ChatURL:     os.Getenv("OPENROUTER_BASE_URL"),
		JobDesc:     getenv("JOB_DESCRIPTION_TEXT", "Backend Product Engineer: Go, REST, RAG, LLM"),
		DBDSN:       os.Getenv("DB_DSN"),
		RabbitURL:   os.Getenv("RABBITMQ_URL"),
		UploadDir:   getenv("UPLOAD_DIR", "uploads"),
		Port:        getenv("PORT", "8080"),
		WorkerCount: getenvInt("WORKER_COUNT", 4),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
