// Package bot — Telegram-транспорт: принимает сообщения long polling'ом,
// передаёт их диалоговому движку и отправляет ответ с клавиатурой.
package bot

import (
	"context"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Sandss8/Fito-bot/internal/engine"
	"github.com/Sandss8/Fito-bot/pkg/models"
)

type Bot struct {
	api    *tgbotapi.BotAPI
	engine *engine.Engine
}

// New создает нового бота
func New(token string, eng *engine.Engine) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания бота: %w", err)
	}

	log.Printf("Авторизован как @%s", api.Self.UserName)

	return &Bot{api: api, engine: eng}, nil
}

// Start запускает обработку обновлений
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update := <-updates:
			go b.handleUpdate(ctx, update)
		}
	}
}

// handleUpdate обрабатывает одно входящее обновление. Порядок сообщений
// одного пользователя обеспечивает движок, здесь можно не ждать.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	user := models.UserInfo{
		ID:        msg.From.ID,
		Username:  msg.From.UserName,
		FirstName: msg.From.FirstName,
		LastName:  msg.From.LastName,
	}

	reply := b.engine.HandleMessage(ctx, user, msg.Text)
	b.send(msg.Chat.ID, reply)
}

func (b *Bot) send(chatID int64, reply models.Reply) {
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	switch {
	case len(reply.Keyboard) > 0:
		msg.ReplyMarkup = buildKeyboard(reply.Keyboard)
	case reply.RemoveKeyboard:
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	}

	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Ошибка отправки сообщения в чат %d: %v", chatID, err)
	}
}

func buildKeyboard(rows [][]string) tgbotapi.ReplyKeyboardMarkup {
	kbRows := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		btns := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			btns = append(btns, tgbotapi.NewKeyboardButton(label))
		}
		kbRows = append(kbRows, btns)
	}

	kb := tgbotapi.NewReplyKeyboard(kbRows...)
	kb.OneTimeKeyboard = true
	kb.ResizeKeyboard = true
	return kb
}
