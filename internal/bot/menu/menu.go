package menu

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/crod-center/crod-bot/internal/models"
)

// Callback-данные кнопок главного меню.
const (
	CbGroup   = "menu:group"
	CbConnect = "menu:connect"
	CbRoster  = "menu:roster"
	CbBackup  = "menu:backup"
	CbSupport = "menu:support"
)

var (
	btnGroup   = tgbotapi.NewInlineKeyboardButtonData("👥 Моя группа", CbGroup)
	btnModule  = tgbotapi.NewInlineKeyboardButtonData("📚 Мой модуль", CbGroup)
	btnProfile = tgbotapi.NewInlineKeyboardButtonData("👤 Профиль", CbGroup)
	btnConnect = tgbotapi.NewInlineKeyboardButtonData("🌐 Войти в Connect", CbConnect)
	btnRoster  = tgbotapi.NewInlineKeyboardButtonData("📋 Список группы", CbRoster)
	btnBackup  = tgbotapi.NewInlineKeyboardButtonData("💾 Бэкап сейчас", CbBackup)
	btnSupport = tgbotapi.NewInlineKeyboardButtonData("🆘 Поддержка", CbSupport)
)

// ForRole возвращает inline-меню роли; для трекера меню нет.
func ForRole(role models.Role) (tgbotapi.InlineKeyboardMarkup, bool) {
	switch role {
	case models.Child:
		return tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(btnGroup),
			tgbotapi.NewInlineKeyboardRow(btnSupport),
		), true
	case models.Mentor:
		return tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(btnGroup, btnRoster),
			tgbotapi.NewInlineKeyboardRow(btnConnect),
			tgbotapi.NewInlineKeyboardRow(btnSupport),
		), true
	case models.Teacher:
		return tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(btnModule),
			tgbotapi.NewInlineKeyboardRow(btnConnect),
			tgbotapi.NewInlineKeyboardRow(btnSupport),
		), true
	case models.Admin:
		return tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(btnProfile, btnConnect),
			tgbotapi.NewInlineKeyboardRow(btnBackup),
		), true
	default:
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
}

// Allowed — доступна ли кнопка роли (защита от старых клавиатур).
func Allowed(role models.Role, cb string) bool {
	kb, ok := ForRole(role)
	if !ok {
		return false
	}
	for _, row := range kb.InlineKeyboard {
		for _, b := range row {
			if b.CallbackData != nil && *b.CallbackData == cb {
				return true
			}
		}
	}
	return false
}
