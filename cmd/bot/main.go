package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/Sandss8/Fito-bot/internal/bot"
	"github.com/Sandss8/Fito-bot/internal/config"
	"github.com/Sandss8/Fito-bot/internal/database"
	"github.com/Sandss8/Fito-bot/internal/engine"
	"github.com/Sandss8/Fito-bot/internal/openfoodfacts"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	log.Println("Загрузка конфигурации...")
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Не удалось загрузить конфигурацию: %v", err)
	}

	// Создание базы данных
	log.Println("Создание базы данных...")
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Не удалось создать базу данных: %v", err)
	}
	defer db.Close()

	lookup := openfoodfacts.NewClient(cfg.OpenFoodFactsURL)
	eng := engine.New(db, lookup)

	log.Println("Запуск бота...")
	b, err := bot.New(cfg.TelegramBotToken, eng)
	if err != nil {
		log.Fatalf("Не удалось запустить бота: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := b.Start(ctx); err != nil {
		log.Fatalf("Бот завершился с ошибкой: %v", err)
	}
	log.Println("Бот остановлен")
}
