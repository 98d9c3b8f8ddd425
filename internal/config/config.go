package config

import (
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	Port string

	// Telegram bot
	TelegramBotToken string

	// OpenAI-compatible completion API
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Durable state
	StoreBackend string // "json" or "sqlite"
	MemoryFile   string // path of the JSON state file or the sqlite database

	// Conversation context
	HistoryWindow int    // trailing history turns sent to the model
	PersonaFile   string // optional system prompt override, hot-reloaded

	// Reminder retention (0 disables pruning; fired reminders kept forever)
	ReminderRetentionDays int
	RetentionCron         string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "3001"),

		TelegramBotToken: getEnv("TELEGRAM_TOKEN", ""),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		StoreBackend: getEnv("STORE_BACKEND", "json"),
		MemoryFile:   getEnv("MEMORY_FILE", "memory.json"),

		HistoryWindow: getIntEnv("HISTORY_WINDOW", 12),
		PersonaFile:   getEnv("PERSONA_FILE", ""),

		ReminderRetentionDays: getIntEnv("REMINDER_RETENTION_DAYS", 0),
		RetentionCron:         getEnv("RETENTION_CRON", "0 4 * * *"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
