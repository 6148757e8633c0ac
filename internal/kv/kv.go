package kv

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/crod-center/crod-bot/internal/ctxutil"
	"github.com/crod-center/crod-bot/internal/models"
)

var ErrTokenNotFound = errors.New("link token not found")

const tokenPrefix = "connect:token:"

type Config struct {
	Addr     string
	Password string
	DB       int
}

func NewClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Ping(ctx context.Context, c *redis.Client) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	return c.Ping(ctx).Err()
}

// Tokens — одноразовые токены для входа в Connect по ссылке из бота.
type Tokens struct {
	c   *redis.Client
	ttl time.Duration
}

func NewTokens(c *redis.Client, ttl time.Duration) *Tokens {
	return &Tokens{c: c, ttl: ttl}
}

// Issue выпускает токен, значение — "<role>:<identity>".
func (t *Tokens) Issue(ctx context.Context, role models.Role, identity int64) (string, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	token := uuid.NewString()
	val := string(role) + ":" + strconv.FormatInt(identity, 10)
	if err := t.c.Set(ctx, tokenPrefix+token, val, t.ttl).Err(); err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// Resolve забирает токен; повторно тот же токен не сработает.
func (t *Tokens) Resolve(ctx context.Context, token string) (models.Role, int64, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	val, err := t.c.GetDel(ctx, tokenPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", 0, ErrTokenNotFound
	}
	if err != nil {
		return "", 0, fmt.Errorf("resolve token: %w", err)
	}
	role, idStr, ok := strings.Cut(val, ":")
	if !ok {
		return "", 0, fmt.Errorf("malformed token value %q", val)
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed token identity: %w", err)
	}
	return models.Role(role), id, nil
}

// Flags — короткоживущие одноразовые отметки на чат
// (например, «следующее сообщение — обращение в поддержку»).
type Flags struct {
	c *redis.Client
}

func NewFlags(c *redis.Client) *Flags { return &Flags{c: c} }

func flagKey(name string, chatID int64) string {
	return "flag:" + name + ":" + strconv.FormatInt(chatID, 10)
}

func (f *Flags) Arm(ctx context.Context, name string, chatID int64, ttl time.Duration) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	return f.c.Set(ctx, flagKey(name, chatID), "1", ttl).Err()
}

// Take снимает отметку и сообщает, была ли она.
func (f *Flags) Take(ctx context.Context, name string, chatID int64) (bool, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	n, err := f.c.Del(ctx, flagKey(name, chatID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
