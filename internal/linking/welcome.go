package linking

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/crod-center/crod-bot/internal/models"
)

// Тексты размечены под ParseMode HTML; всё, что пришло из БД, экранируется.
type welcomeFunc func(ctx context.Context, c models.Claim) (string, error)

const noneYet = "пока не назначены"

func (s *Service) childWelcome(ctx context.Context, c models.Claim) (string, error) {
	child, err := s.dir.Child(ctx, c.RecordID)
	if err != nil {
		return "", err
	}
	mentors, err := s.dir.MentorsInGroup(ctx, child.GroupNum)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(mentors))
	for _, m := range mentors {
		names = append(names, m.FullName)
	}
	return fmt.Sprintf(
		"👋 Привет, <b>%s</b>!\nТы в группе №%d.\nТвои вожатые: %s",
		html.EscapeString(child.FullName), child.GroupNum, joinNames(names),
	), nil
}

func (s *Service) mentorWelcome(ctx context.Context, c models.Claim) (string, error) {
	mentor, err := s.dir.Mentor(ctx, c.RecordID)
	if err != nil {
		return "", err
	}
	count, err := s.dir.CountChildrenInGroup(ctx, mentor.GroupNum)
	if err != nil {
		return "", err
	}
	mentors, err := s.dir.MentorsInGroup(ctx, mentor.GroupNum)
	if err != nil {
		return "", err
	}
	peers := make([]string, 0, len(mentors))
	for _, m := range mentors {
		if m.ID == mentor.ID {
			continue
		}
		peers = append(peers, m.FullName)
	}
	return fmt.Sprintf(
		"👋 Здравствуйте, <b>%s</b>!\nВы вожатый группы №%d.\nДетей в группе: %d\nНапарники: %s",
		html.EscapeString(mentor.FullName), mentor.GroupNum, count, joinNames(peers),
	), nil
}

func (s *Service) teacherWelcome(ctx context.Context, c models.Claim) (string, error) {
	teacher, err := s.dir.Teacher(ctx, c.RecordID)
	if err != nil {
		return "", err
	}
	module, err := s.dir.Module(ctx, teacher.ModuleID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"👋 Здравствуйте, <b>%s</b>!\nВаш модуль: %s\nМесто проведения: %s",
		html.EscapeString(teacher.FullName), html.EscapeString(module.Name), html.EscapeString(module.Location),
	), nil
}

func (s *Service) adminWelcome(ctx context.Context, c models.Claim) (string, error) {
	admin, err := s.dir.Admin(ctx, c.RecordID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"👋 Здравствуйте, <b>%s</b>!\nВы администратор.\nПароль для Connect: <tg-spoiler>%s</tg-spoiler>",
		html.EscapeString(admin.FullName), html.EscapeString(admin.Password),
	), nil
}

func taskerWelcome(_ context.Context, c models.Claim) (string, error) {
	login := html.EscapeString(c.Key)
	if c.Outcome == models.AlreadyLinked {
		return fmt.Sprintf("ℹ️ Этот Telegram уже привязан к учётной записи трекера <b>%s</b>.", login), nil
	}
	return fmt.Sprintf("✅ Учётная запись трекера задач <b>%s</b> привязана. Уведомления о задачах будут приходить сюда.", login), nil
}

func joinNames(names []string) string {
	if len(names) == 0 {
		return noneYet
	}
	escaped := make([]string, len(names))
	for i, n := range names {
		escaped[i] = html.EscapeString(n)
	}
	return strings.Join(escaped, ", ")
}
