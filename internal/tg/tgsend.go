package tg

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/crod-center/crod-bot/internal/observability"
)

// API — часть *tgbotapi.BotAPI, которой пользуется бот. В тестах подменяется.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// IsSystemErr: системными считаем 5xx, 429 и таймауты.
// 400-ки и типичные телеграм-валидации в Sentry не шлём.
func IsSystemErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	if strings.Contains(s, "Bad Request") ||
		strings.Contains(s, "message is not modified") ||
		strings.Contains(s, "chat not found") ||
		strings.Contains(s, "can't parse entities") {
		return false
	}
	return strings.Contains(s, "429") || strings.Contains(s, "502") || strings.Contains(s, "503") ||
		strings.Contains(s, "Too Many Requests") ||
		strings.Contains(strings.ToLower(s), "timeout") || strings.Contains(s, "deadline exceeded")
}

func Send(bot API, msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	m, err := bot.Send(msg)
	if IsSystemErr(err) {
		observability.CaptureErr(err)
	}
	return m, err
}

func Request(bot API, req tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	r, err := bot.Request(req)
	if IsSystemErr(err) {
		observability.CaptureErr(err)
	}
	return r, err
}

// HTML — сообщение с разметкой HTML.
func HTML(chatID int64, text string) tgbotapi.MessageConfig {
	m := tgbotapi.NewMessage(chatID, text)
	m.ParseMode = tgbotapi.ModeHTML
	return m
}
