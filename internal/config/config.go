package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	TelegramBotToken string
	DatabasePath     string
	OpenFoodFactsURL string
}

// Load читает конфигурацию из .env (если есть) и переменных окружения.
func Load() (*Config, error) {
	// .env опционален: в проде переменные приходят из окружения
	_ = godotenv.Load()

	cfg := &Config{
		TelegramBotToken: os.Getenv("BOT_TOKEN"),
		DatabasePath:     getEnv("DATABASE_PATH", "fitness_bot.db"),
		OpenFoodFactsURL: getEnv("OPENFOODFACTS_URL", "https://world.openfoodfacts.org/cgi/search.pl"),
	}

	if cfg.TelegramBotToken == "" {
		return nil, fmt.Errorf("не задан BOT_TOKEN")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
