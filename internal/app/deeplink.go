package app

import (
	"strings"

	"github.com/crod-center/crod-bot/internal/models"
)

// ParseDeepLink разбирает payload команды /start вида "<тег>_<ключ>".
// Делим по первому "_": сам ключ может содержать подчёркивания.
// Неизвестный тег или пустой ключ — ok == false.
func ParseDeepLink(payload string) (models.Role, string, bool) {
	tag, key, found := strings.Cut(strings.TrimSpace(payload), "_")
	if !found || key == "" {
		return "", "", false
	}
	role, ok := models.RoleFromTag(tag)
	if !ok {
		return "", "", false
	}
	return role, key, true
}
