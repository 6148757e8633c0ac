package notify

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBot struct {
	sent []tgbotapi.Chattable
	fail map[int64]error
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		if err := f.fail[m.ChatID]; err != nil {
			return tgbotapi.Message{}, err
		}
	case tgbotapi.DocumentConfig:
		if err := f.fail[m.ChatID]; err != nil {
			return tgbotapi.Message{}, err
		}
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func TestTagged(t *testing.T) {
	assert.Equal(t, "Бэкап готов\n\n#backup", Tagged("Бэкап готов\n", TagBackup))
}

func TestNotify(t *testing.T) {
	bot := &fakeBot{fail: map[int64]error{2: errors.New("Forbidden: bot was kicked")}}
	s := NewSink(bot, nil, zap.NewNop())

	assert.True(t, s.Notify(context.Background(), 1, "ok"))
	assert.False(t, s.Notify(context.Background(), 2, "fail"))
	require.Len(t, bot.sent, 1)
	assert.Equal(t, "ok", bot.sent[0].(tgbotapi.MessageConfig).Text)
}

func TestNotifyWithFile(t *testing.T) {
	bot := &fakeBot{}
	s := NewSink(bot, nil, zap.NewNop())

	assert.True(t, s.NotifyWithFile(context.Background(), 1, "/tmp/dump.sql.gz", "дамп"))
	require.Len(t, bot.sent, 1)
	doc := bot.sent[0].(tgbotapi.DocumentConfig)
	assert.Equal(t, "дамп", doc.Caption)
}

func TestNotify_CancelledContext(t *testing.T) {
	bot := &fakeBot{}
	s := NewSink(bot, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, s.Notify(ctx, 1, "late"))
	assert.Empty(t, bot.sent)
}

func TestBroadcast(t *testing.T) {
	bot := &fakeBot{fail: map[int64]error{-200: errors.New("Bad Request: chat not found")}}
	s := NewSink(bot, []int64{-100, -200, -300}, zap.NewNop())

	n := s.Broadcast(context.Background(), Tagged("Новый тикет", TagTicket))
	assert.Equal(t, 2, n)
	assert.Len(t, bot.sent, 2)
}
