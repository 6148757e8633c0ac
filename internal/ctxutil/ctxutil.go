package ctxutil

import (
	"context"
	"time"
)

// приватные ключи, чтобы исключить коллизии
type key int

const (
	keyChatID key = iota
	keyOpName
)

// WithChatID /ChatID — прокидываем chatID в контекст
func WithChatID(ctx context.Context, chatID int64) context.Context {
	return context.WithValue(ctx, keyChatID, chatID)
}

func ChatID(ctx context.Context) (int64, bool) {
	v := ctx.Value(keyChatID)
	if v == nil {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// WithOp /Op — имя операции (для логов)
func WithOp(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, keyOpName, name)
}

func Op(ctx context.Context) (string, bool) {
	v := ctx.Value(keyOpName)
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

var (
	DefaultDBTimeout  = 5 * time.Second
	DefaultNetTimeout = 15 * time.Second
)

// WithDBTimeout — стандартный таймаут для БД и Redis.
func WithDBTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return withCap(parent, DefaultDBTimeout)
}

// WithNetTimeout — таймаут для исходящих вызовов внешних сервисов.
func WithNetTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return withCap(parent, DefaultNetTimeout)
}

// если у родителя осталось меньше d — берём остаток
func withCap(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if dl, ok := parent.Deadline(); ok {
		if remain := time.Until(dl); remain < d {
			return context.WithDeadline(parent, dl)
		}
	}
	return context.WithTimeout(parent, d)
}
