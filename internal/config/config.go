package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	BotToken      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	OpsChatIDs    []int64 // куда уходят оповещения (бэкапы, тикеты)
	TaskerFile    string
	ConnectURL    string
	ConnectTTL    time.Duration
	BackupURL     string
	BackupEvery   time.Duration // 0 — периодический бэкап выключен
	SendTimeout   time.Duration
	Location      *time.Location
	HTTPAddr      string
	LogLevel      string
	Env           string // dev|prod
	SentryDSN     string
}

// Load подхватывает .env (если есть) и собирает конфиг из окружения.
func Load() (*Config, error) {
	_ = godotenv.Load()

	tz := getenv("TZ", "Europe/Moscow")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.Local
	}

	opsIDs, err := parseIDs(os.Getenv("OPS_CHAT_IDS"))
	if err != nil {
		return nil, fmt.Errorf("OPS_CHAT_IDS: %w", err)
	}
	redisDB, err := strconv.Atoi(getenv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("REDIS_DB: %w", err)
	}
	connectTTL, err := time.ParseDuration(getenv("CONNECT_TOKEN_TTL", "10m"))
	if err != nil {
		return nil, fmt.Errorf("CONNECT_TOKEN_TTL: %w", err)
	}
	backupEvery, err := time.ParseDuration(getenv("BACKUP_INTERVAL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("BACKUP_INTERVAL: %w", err)
	}
	sendTimeout, err := time.ParseDuration(getenv("SEND_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("SEND_TIMEOUT: %w", err)
	}

	cfg := &Config{
		BotToken:      mustEnv("BOT_TOKEN"),
		DatabaseURL:   mustEnv("DATABASE_URL"),
		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		OpsChatIDs:    opsIDs,
		TaskerFile:    getenv("TASKER_FILE", "tasker_users.json"),
		ConnectURL:    getenv("CONNECT_URL", "https://connect.crod.local/auth"),
		ConnectTTL:    connectTTL,
		BackupURL:     getenv("BACKUPCTL_URL", "http://pgbackup:8081"),
		BackupEvery:   backupEvery,
		SendTimeout:   sendTimeout,
		Location:      loc,
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		Env:           getenv("ENV", "dev"),
		SentryDSN:     os.Getenv("SENTRY_DSN"),
	}
	return cfg, nil
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("required env " + k + " is empty")
	}
	return v
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func parseIDs(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == ';' })
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad id %q: %w", p, err)
		}
		out = append(out, n)
	}
	return out, nil
}
