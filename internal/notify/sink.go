package notify

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/crod-center/crod-bot/internal/metrics"
	"github.com/crod-center/crod-bot/internal/tg"
)

// Категории оповещений — хэштег в конце сообщения.
const (
	TagBackup  = "backup"
	TagSupport = "support"
	TagTicket  = "ticket"
)

// Sink доставляет служебные оповещения в чаты администраторов.
// Ошибки доставки логируются и не повторяются.
type Sink struct {
	bot tg.API
	ops []int64
	log *zap.Logger
}

func NewSink(bot tg.API, opsChatIDs []int64, log *zap.Logger) *Sink {
	return &Sink{bot: bot, ops: opsChatIDs, log: log}
}

// Tagged дописывает категорию хэштегом отдельной строкой.
func Tagged(text, tag string) string {
	return strings.TrimRight(text, "\n") + "\n\n#" + tag
}

func (s *Sink) Notify(ctx context.Context, chatID int64, text string) bool {
	if ctx.Err() != nil {
		return s.failed(chatID, ctx.Err())
	}
	if _, err := tg.Send(s.bot, tgbotapi.NewMessage(chatID, text)); err != nil {
		return s.failed(chatID, err)
	}
	return true
}

func (s *Sink) NotifyWithFile(ctx context.Context, chatID int64, path, caption string) bool {
	if ctx.Err() != nil {
		return s.failed(chatID, ctx.Err())
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = caption
	if _, err := tg.Send(s.bot, doc); err != nil {
		return s.failed(chatID, err)
	}
	return true
}

// Broadcast шлёт текст во все служебные чаты; возвращает число доставленных.
func (s *Sink) Broadcast(ctx context.Context, text string) int {
	delivered := 0
	for _, id := range s.ops {
		if s.Notify(ctx, id, text) {
			delivered++
		}
	}
	if len(s.ops) == 0 {
		s.log.Warn("no ops chats configured, notification dropped")
	}
	return delivered
}

func (s *Sink) failed(chatID int64, err error) bool {
	metrics.NotifyFailures.Inc()
	s.log.Warn("notification not delivered", zap.Int64("chat_id", chatID), zap.Error(err))
	return false
}
