package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/crod-center/crod-bot/internal/app"
	"github.com/crod-center/crod-bot/internal/backupclient"
	"github.com/crod-center/crod-bot/internal/config"
	"github.com/crod-center/crod-bot/internal/db"
	"github.com/crod-center/crod-bot/internal/jobs"
	"github.com/crod-center/crod-bot/internal/kv"
	"github.com/crod-center/crod-bot/internal/linking"
	"github.com/crod-center/crod-bot/internal/logging"
	"github.com/crod-center/crod-bot/internal/models"
	"github.com/crod-center/crod-bot/internal/notify"
	"github.com/crod-center/crod-bot/internal/observability"
	"github.com/crod-center/crod-bot/internal/tasker"
)

const pollTimeout = 30

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	time.Local = cfg.Location

	lg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer lg.Closer()
	log := lg.Base

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, os.Getenv("RELEASE"))
	if err != nil {
		log.Warn("sentry init failed", zap.Error(err))
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Ошибка подключения к БД", zap.Error(err))
	}
	defer database.Close()

	if err := db.Migrate(ctx, database); err != nil {
		log.Fatal("Миграция не удалась", zap.Error(err))
	}

	rdb := kv.NewClient(kv.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer rdb.Close()
	if err := kv.Ping(ctx, rdb); err != nil {
		// без Redis бот работает, недоступны только Connect и поддержка
		log.Warn("redis unavailable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}

	store := db.NewStore(database)
	backends := linking.Backends{models.Tasker: tasker.NewFile(cfg.TaskerFile)}
	for _, role := range models.PersonRoles {
		backends[role] = store.Backend(role)
	}
	svc := linking.NewService(store, backends, log)

	httpClient := &http.Client{Timeout: pollTimeout*time.Second + cfg.SendTimeout}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		log.Fatal("Ошибка запуска бота", zap.Error(err))
	}
	log.Info("Бот запущен", zap.String("username", bot.Self.UserName))

	sink := notify.NewSink(bot, cfg.OpsChatIDs, log)

	runner := jobs.New(ctx, log)
	backupCtl := backupclient.New(cfg.BackupURL)
	backup := jobs.BackupJob(backupCtl, sink)
	if cfg.BackupEvery > 0 {
		runner.Every(cfg.BackupEvery, "backup", backup)
	}

	tokens := kv.NewTokens(rdb, cfg.ConnectTTL)
	disp := app.NewDispatcher(app.Deps{
		Bot:          bot,
		Linker:       svc,
		Directory:    store,
		Tokens:       tokens,
		Flags:        kv.NewFlags(rdb),
		Sink:         sink,
		Backup:       func(context.Context) error { return runner.Run("backup", backup) },
		BackupStatus: backupCtl.Status,
		ConnectURL:   cfg.ConnectURL,
		ConnectTTL:   cfg.ConnectTTL,
		Log:          log,
	})

	app.StartHTTP(ctx, cfg.HTTPAddr, app.HTTPDeps{
		PingDB: store.Ping,
		PingKV: func(ctx context.Context) error { return kv.Ping(ctx, rdb) },
		Tokens: tokens,
		Sink:   sink,
		Log:    log,
	})

	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := bot.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		bot.StopReceivingUpdates()
	}()

	for update := range updates {
		disp.Go(ctx, update)
	}
	// соединения с БД и Redis закрываются только после всех обработчиков
	disp.Wait()
	log.Info("Бот остановлен")
}
