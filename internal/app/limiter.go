package app

import "sync"

// ChatLimiter предотвращает одновременную обработку двух апдейтов одного чата.
// Мьютекс чата удаляется, когда его больше никто не ждёт.
type ChatLimiter struct {
	mu   sync.Mutex
	byID map[int64]*chatLock
}

type chatLock struct {
	mu   sync.Mutex
	refs int
}

func NewChatLimiter() *ChatLimiter {
	return &ChatLimiter{byID: make(map[int64]*chatLock)}
}

func (l *ChatLimiter) lock(chatID int64) func() {
	l.mu.Lock()
	c, ok := l.byID[chatID]
	if !ok {
		c = &chatLock{}
		l.byID[chatID] = c
	}
	c.refs++
	l.mu.Unlock()

	c.mu.Lock()
	return func() {
		c.mu.Unlock()
		l.mu.Lock()
		c.refs--
		if c.refs == 0 {
			delete(l.byID, chatID)
		}
		l.mu.Unlock()
	}
}

func (l *ChatLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byID)
}
