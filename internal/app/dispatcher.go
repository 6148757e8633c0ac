package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/crod-center/crod-bot/internal/bot/menu"
	"github.com/crod-center/crod-bot/internal/ctxutil"
	"github.com/crod-center/crod-bot/internal/export"
	"github.com/crod-center/crod-bot/internal/linking"
	"github.com/crod-center/crod-bot/internal/metrics"
	"github.com/crod-center/crod-bot/internal/models"
	"github.com/crod-center/crod-bot/internal/notify"
	"github.com/crod-center/crod-bot/internal/observability"
	"github.com/crod-center/crod-bot/internal/tg"
)

const (
	flagSupport = "support"
	supportTTL  = 10 * time.Minute

	textLanding      = "👋 Это бот ЦРОД.\nЧтобы войти, отсканируйте QR-код или откройте персональную ссылку, которую вам выдали."
	textUnavail      = "⚠️ Сервис временно недоступен. Попробуйте позже."
	textUnknown      = "⚠️ Неизвестная команда. Используйте /start"
	textLinkedNoMenu = "✅ Аккаунт привязан. Меню временно недоступно, откройте его позже командой /start."
	textHelp         = "/start — главное меню\n/support — написать в поддержку\n/id — показать ваш Telegram ID"
)

type Linker interface {
	Link(ctx context.Context, role models.Role, key string, identity int64) (linking.Result, error)
	MainMenu(ctx context.Context, identity int64) (linking.Result, bool, error)
	LookupRole(ctx context.Context, identity int64) (models.Role, bool, error)
}

// Directory — то, что нужно диспетчеру для выгрузки списков групп.
type Directory interface {
	LinkedPerson(ctx context.Context, identity int64) (models.Role, int64, bool, error)
	Mentor(ctx context.Context, id int64) (*models.MentorRecord, error)
	GroupExists(ctx context.Context, groupNum int) (bool, error)
	MentorsInGroup(ctx context.Context, groupNum int) ([]models.MentorRecord, error)
	ChildrenInGroup(ctx context.Context, groupNum int) ([]models.ChildRecord, error)
}

type TokenIssuer interface {
	Issue(ctx context.Context, role models.Role, identity int64) (string, error)
}

type FlagStore interface {
	Arm(ctx context.Context, name string, chatID int64, ttl time.Duration) error
	Take(ctx context.Context, name string, chatID int64) (bool, error)
}

type Broadcaster interface {
	Broadcast(ctx context.Context, text string) int
}

type Deps struct {
	Bot          tg.API
	Linker       Linker
	Directory    Directory
	Tokens       TokenIssuer
	Flags        FlagStore
	Sink         Broadcaster
	Backup       func(ctx context.Context) error
	BackupStatus func(ctx context.Context) (string, error)
	ConnectURL   string
	ConnectTTL   time.Duration
	Log          *zap.Logger
}

// Dispatcher — точка входа всех апдейтов Telegram.
type Dispatcher struct {
	Deps
	limiter *ChatLimiter
	wg      sync.WaitGroup
}

func NewDispatcher(d Deps) *Dispatcher {
	return &Dispatcher{Deps: d, limiter: NewChatLimiter()}
}

// HandleUpdate обрабатывает один апдейт. Апдейты одного чата идут строго
// по одному; паники и ошибки дальше этой функции не уходят.
func (d *Dispatcher) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	metrics.BotUpdates.Inc()

	chatID := chatOf(upd)
	if chatID == 0 {
		// callback из inline-сообщения приходит без чата, но ответить на него всё равно нужно
		if upd.CallbackQuery != nil {
			d.answer(upd.CallbackQuery.ID)
		}
		return
	}
	unlock := d.limiter.lock(chatID)
	defer unlock()

	defer func() {
		if r := recover(); r != nil {
			metrics.HandlerErrors.Inc()
			observability.CapturePanic("update", r)
			d.Log.Error("panic in update handler", zap.Int64("chat_id", chatID), zap.Any("panic", r))
		}
	}()

	ctx = ctxutil.WithChatID(ctx, chatID)
	switch {
	case upd.CallbackQuery != nil:
		d.handleCallback(ctxutil.WithOp(ctx, "callback"), upd.CallbackQuery)
	case upd.Message != nil:
		d.handleMessage(ctxutil.WithOp(ctx, "message"), upd.Message)
	}
}

// Go запускает HandleUpdate в отдельной горутине; Wait дожидается всех
// запущенных обработчиков и фоновых бэкапов.
func (d *Dispatcher) Go(ctx context.Context, upd tgbotapi.Update) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.HandleUpdate(ctx, upd)
	}()
}

func (d *Dispatcher) Wait() { d.wg.Wait() }

func chatOf(upd tgbotapi.Update) int64 {
	switch {
	case upd.CallbackQuery != nil && upd.CallbackQuery.Message != nil && upd.CallbackQuery.Message.Chat != nil:
		return upd.CallbackQuery.Message.Chat.ID
	case upd.Message != nil && upd.Message.Chat != nil:
		return upd.Message.Chat.ID
	}
	return 0
}

func (d *Dispatcher) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			d.handleStart(ctx, msg)
		case "help":
			d.reply(ctx, chatID, textHelp)
		case "id":
			d.replyHTML(ctx, chatID, fmt.Sprintf("Ваш Telegram ID: <code>%d</code>", chatID))
		case "support":
			d.armSupport(ctx, chatID)
		case "roster":
			d.handleRosterCommand(ctx, msg)
		case "backup_status":
			d.sendBackupStatus(ctx, chatID)
		default:
			d.reply(ctx, chatID, textUnknown)
		}
		return
	}

	if msg.Text != "" && d.Flags != nil {
		armed, err := d.Flags.Take(ctx, flagSupport, chatID)
		if err != nil {
			d.Log.Warn("support flag lookup failed", zap.Int64("chat_id", chatID), zap.Error(err))
		}
		if armed {
			d.submitSupport(ctx, msg)
			return
		}
	}
	d.reply(ctx, chatID, textUnknown)
}

// handleStart: без аргумента — главное меню или приветствие для гостя;
// с deep-link — попытка привязки.
func (d *Dispatcher) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	payload := strings.TrimSpace(msg.CommandArguments())
	if payload == "" {
		d.showMainMenu(ctx, chatID)
		return
	}

	role, key, ok := ParseDeepLink(payload)
	if !ok {
		d.Log.Debug("deep link ignored", zap.Int64("chat_id", chatID), zap.String("payload", payload))
		return
	}

	res, err := d.Linker.Link(ctx, role, key, chatID)
	if err != nil && res.Outcome == models.Linked {
		// аккаунт уже привязан, не удалось только собрать приветствие
		metrics.HandlerErrors.Inc()
		d.Log.Error("welcome after link failed", zap.Int64("chat_id", chatID), zap.Error(err))
		d.reply(ctx, chatID, textLinkedNoMenu)
		return
	}
	if err != nil {
		d.fail(ctx, chatID, "link", err)
		return
	}
	switch res.Outcome {
	case models.Linked, models.AlreadyLinked:
		d.sendResult(ctx, chatID, res)
	default:
		// неверная фраза: пользователю ничего не отвечаем
	}
}

func (d *Dispatcher) showMainMenu(ctx context.Context, chatID int64) {
	res, ok, err := d.Linker.MainMenu(ctx, chatID)
	if err != nil {
		d.fail(ctx, chatID, "main menu", err)
		return
	}
	if !ok {
		d.reply(ctx, chatID, textLanding)
		return
	}
	d.sendResult(ctx, chatID, res)
}

func (d *Dispatcher) sendResult(ctx context.Context, chatID int64, res linking.Result) {
	m := tg.HTML(chatID, res.Text)
	if kb, ok := menu.ForRole(res.Role); ok {
		m.ReplyMarkup = kb
	}
	d.send(ctx, m)
}

func (d *Dispatcher) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	d.answer(cb.ID)
	chatID := cb.Message.Chat.ID

	role, ok, err := d.Linker.LookupRole(ctx, chatID)
	if err != nil {
		d.fail(ctx, chatID, "callback role", err)
		return
	}
	if !ok {
		d.reply(ctx, chatID, textLanding)
		return
	}
	if !menu.Allowed(role, cb.Data) {
		d.reply(ctx, chatID, "Это действие вам недоступно.")
		return
	}

	switch cb.Data {
	case menu.CbGroup:
		d.showMainMenu(ctx, chatID)
	case menu.CbConnect:
		d.sendConnectLink(ctx, chatID, role)
	case menu.CbRoster:
		d.sendOwnRoster(ctx, chatID)
	case menu.CbBackup:
		d.startBackup(ctx, chatID)
	case menu.CbSupport:
		d.armSupport(ctx, chatID)
	}
}

// answer снимает «часики» с нажатой кнопки.
func (d *Dispatcher) answer(callbackID string) {
	if _, err := tg.Request(d.Bot, tgbotapi.NewCallback(callbackID, "")); err != nil {
		d.Log.Debug("callback answer failed", zap.Error(err))
	}
}

func (d *Dispatcher) sendConnectLink(ctx context.Context, chatID int64, role models.Role) {
	token, err := d.Tokens.Issue(ctx, role, chatID)
	if err != nil {
		d.fail(ctx, chatID, "issue token", err)
		return
	}
	link := d.ConnectURL + "?token=" + url.QueryEscape(token)

	m := tgbotapi.NewMessage(chatID, fmt.Sprintf(
		"🔐 Одноразовая ссылка для входа в Connect. Действует %d мин.", int(d.ConnectTTL.Minutes())))
	m.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("🌐 Открыть Connect", link)),
	)
	d.send(ctx, m)
}

func (d *Dispatcher) sendOwnRoster(ctx context.Context, chatID int64) {
	role, id, ok, err := d.Directory.LinkedPerson(ctx, chatID)
	if err != nil {
		d.fail(ctx, chatID, "roster owner", err)
		return
	}
	if !ok || role != models.Mentor {
		d.reply(ctx, chatID, "Список доступен только вожатым.")
		return
	}
	mentor, err := d.Directory.Mentor(ctx, id)
	if err != nil {
		d.fail(ctx, chatID, "roster owner", err)
		return
	}
	d.sendRoster(ctx, chatID, mentor.GroupNum)
}

// /roster <номер группы> — только для администраторов.
func (d *Dispatcher) handleRosterCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	role, ok, err := d.Linker.LookupRole(ctx, chatID)
	if err != nil {
		d.fail(ctx, chatID, "roster role", err)
		return
	}
	if !ok || role != models.Admin {
		d.reply(ctx, chatID, textUnknown)
		return
	}
	groupNum, err := strconv.Atoi(strings.TrimSpace(msg.CommandArguments()))
	if err != nil || groupNum <= 0 {
		d.reply(ctx, chatID, "Укажите номер группы: /roster 3")
		return
	}
	d.sendRoster(ctx, chatID, groupNum)
}

func (d *Dispatcher) sendRoster(ctx context.Context, chatID int64, groupNum int) {
	exists, err := d.Directory.GroupExists(ctx, groupNum)
	if err != nil {
		d.fail(ctx, chatID, "roster", err)
		return
	}
	if !exists {
		d.reply(ctx, chatID, fmt.Sprintf("Группа №%d не найдена.", groupNum))
		return
	}
	mentors, err := d.Directory.MentorsInGroup(ctx, groupNum)
	if err != nil {
		d.fail(ctx, chatID, "roster", err)
		return
	}
	children, err := d.Directory.ChildrenInGroup(ctx, groupNum)
	if err != nil {
		d.fail(ctx, chatID, "roster", err)
		return
	}
	data, err := export.RosterBytes(groupNum, mentors, children)
	if err != nil {
		d.fail(ctx, chatID, "roster export", err)
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("group_%d.xlsx", groupNum),
		Bytes: data,
	})
	doc.Caption = fmt.Sprintf("📋 Группа №%d: вожатых %d, детей %d", groupNum, len(mentors), len(children))
	d.send(ctx, doc)
}

// startBackup не держит чат: бэкап может идти минутами, итог придёт в служебный чат.
func (d *Dispatcher) startBackup(ctx context.Context, chatID int64) {
	if d.Backup == nil {
		d.reply(ctx, chatID, "Резервное копирование не настроено.")
		return
	}
	d.reply(ctx, chatID, "💾 Резервное копирование запущено. Результат придёт в служебный чат.")
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.Backup(context.WithoutCancel(ctx)); err != nil {
			d.Log.Warn("manual backup failed", zap.Int64("requested_by", chatID), zap.Error(err))
		}
	}()
}

func (d *Dispatcher) sendBackupStatus(ctx context.Context, chatID int64) {
	role, ok, err := d.Linker.LookupRole(ctx, chatID)
	if err != nil {
		d.fail(ctx, chatID, "backup status role", err)
		return
	}
	if !ok || role != models.Admin || d.BackupStatus == nil {
		d.reply(ctx, chatID, textUnknown)
		return
	}
	ctx, cancel := ctxutil.WithNetTimeout(ctx)
	defer cancel()
	status, err := d.BackupStatus(ctx)
	if err != nil {
		d.Log.Warn("backup status failed", zap.Int64("chat_id", chatID), zap.Error(err))
		d.reply(ctx, chatID, "❌ Контроллер бэкапов не отвечает: "+err.Error())
		return
	}
	d.reply(ctx, chatID, "💾 Состояние бэкапов:\n"+status)
}

func (d *Dispatcher) armSupport(ctx context.Context, chatID int64) {
	if d.Flags == nil {
		d.reply(ctx, chatID, textUnavail)
		return
	}
	if err := d.Flags.Arm(ctx, flagSupport, chatID, supportTTL); err != nil {
		d.fail(ctx, chatID, "support arm", err)
		return
	}
	d.reply(ctx, chatID, "✍️ Опишите проблему одним сообщением — мы передадим его администраторам.")
}

func (d *Dispatcher) submitSupport(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	from := "неизвестно"
	if msg.From != nil {
		from = strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
		if msg.From.UserName != "" {
			from += " @" + msg.From.UserName
		}
	}
	role := "гость"
	if r, ok, err := d.Linker.LookupRole(ctx, chatID); err == nil && ok {
		role = r.Title()
	}
	text := fmt.Sprintf("🆘 Обращение в поддержку\nОт: %s (%s, chat %d)\n\n%s", from, role, chatID, msg.Text)

	if d.Sink.Broadcast(ctx, notify.Tagged(text, notify.TagSupport)) == 0 {
		d.reply(ctx, chatID, "⚠️ Не удалось отправить обращение. Попробуйте позже.")
		return
	}
	d.reply(ctx, chatID, "✅ Обращение отправлено. Мы свяжемся с вами.")
}

func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string) {
	d.send(ctx, tgbotapi.NewMessage(chatID, text))
}

func (d *Dispatcher) replyHTML(ctx context.Context, chatID int64, text string) {
	d.send(ctx, tg.HTML(chatID, text))
}

func (d *Dispatcher) send(ctx context.Context, c tgbotapi.Chattable) {
	if _, err := tg.Send(d.Bot, c); err != nil {
		metrics.HandlerErrors.Inc()
		chatID, _ := ctxutil.ChatID(ctx)
		op, _ := ctxutil.Op(ctx)
		d.Log.Warn("message not delivered", zap.Int64("chat_id", chatID), zap.String("op", op), zap.Error(err))
	}
}

// fail логирует ошибку операции и коротко сообщает пользователю.
func (d *Dispatcher) fail(ctx context.Context, chatID int64, op string, err error) {
	metrics.HandlerErrors.Inc()
	fields := []zap.Field{zap.Int64("chat_id", chatID), zap.String("op", op), zap.Error(err)}
	if errors.Is(err, linking.ErrStorageUnavailable) {
		d.Log.Error("storage unavailable", fields...)
	} else {
		d.Log.Error("operation failed", fields...)
	}
	d.reply(ctx, chatID, textUnavail)
}
