// Package linking привязывает Telegram-аккаунты к записям детей, вожатых,
// преподавателей, администраторов и пользователей трекера задач.
package linking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/crod-center/crod-bot/internal/metrics"
	"github.com/crod-center/crod-bot/internal/models"
)

var (
	// ErrStorageUnavailable — хранилище недоступно; повторов внутри сервиса нет.
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrUnknownRole        = errors.New("unknown role")
)

// Backend ищет запись по ключу и один раз привязывает к ней identity.
// Поиск, привязка и сохранение выполняются как один атомарный шаг.
type Backend interface {
	Claim(ctx context.Context, key string, identity int64) (models.Claim, error)
}

// Directory — чтение данных для приветствий.
type Directory interface {
	LinkedPerson(ctx context.Context, identity int64) (models.Role, int64, bool, error)
	Child(ctx context.Context, id int64) (*models.ChildRecord, error)
	Mentor(ctx context.Context, id int64) (*models.MentorRecord, error)
	Teacher(ctx context.Context, id int64) (*models.TeacherRecord, error)
	Admin(ctx context.Context, id int64) (*models.AdminRecord, error)
	Module(ctx context.Context, id int64) (*models.Module, error)
	MentorsInGroup(ctx context.Context, groupNum int) ([]models.MentorRecord, error)
	CountChildrenInGroup(ctx context.Context, groupNum int) (int, error)
}

type Backends map[models.Role]Backend

// Result — что показать пользователю после попытки привязки.
// Text пуст при InvalidCredential.
type Result struct {
	Outcome models.Outcome
	Role    models.Role
	Text    string
}

type Service struct {
	dir      Directory
	backends Backends
	welcome  map[models.Role]welcomeFunc
	log      *zap.Logger
}

func NewService(dir Directory, backends Backends, log *zap.Logger) *Service {
	s := &Service{dir: dir, backends: backends, log: log}
	s.welcome = map[models.Role]welcomeFunc{
		models.Child:   s.childWelcome,
		models.Mentor:  s.mentorWelcome,
		models.Teacher: s.teacherWelcome,
		models.Admin:   s.adminWelcome,
		models.Tasker:  taskerWelcome,
	}
	return s
}

// Link привязывает identity к записи роли role по кодовой фразе.
//
// Если identity уже привязан к какой-либо роли, привязка не выполняется:
// возвращается AlreadyLinked и главное меню существующей роли.
// Неверная или уже израсходованная фраза даёт InvalidCredential без текста.
// Если привязка прошла, а приветствие собрать не удалось, вместе с ошибкой
// возвращается Result с Outcome == Linked.
func (s *Service) Link(ctx context.Context, role models.Role, key string, identity int64) (Result, error) {
	backend, ok := s.backends[role]
	if !ok || backend == nil {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	key = strings.TrimSpace(key)
	if key == "" || identity == 0 {
		s.observe(role, models.InvalidCredential)
		return Result{Outcome: models.InvalidCredential, Role: role}, nil
	}

	claim, err := backend.Claim(ctx, key, identity)
	if err != nil {
		return Result{}, unavailable(err)
	}

	switch claim.Outcome {
	case models.Linked:
		s.observe(role, models.Linked)
		s.log.Info("identity linked",
			zap.String("role", string(claim.Role)),
			zap.Int64("identity", identity),
			zap.Int64("record_id", claim.RecordID))
		// привязка уже сохранена: без текста, но с итогом Linked
		text, err := s.welcome[claim.Role](ctx, claim)
		if err != nil {
			return Result{Outcome: models.Linked, Role: claim.Role}, unavailable(err)
		}
		return Result{Outcome: models.Linked, Role: claim.Role, Text: text}, nil
	case models.AlreadyLinked:
		return s.replay(ctx, claim.Role, claim)
	default:
		s.observe(role, models.InvalidCredential)
		s.log.Debug("invalid pass phrase", zap.String("role", string(role)), zap.Int64("identity", identity))
		return Result{Outcome: models.InvalidCredential, Role: role}, nil
	}
}

// LinkTasker привязывает identity к учётке трекера задач по логину.
func (s *Service) LinkTasker(ctx context.Context, login string, identity int64) (Result, error) {
	return s.Link(ctx, models.Tasker, login, identity)
}

// LookupRole отвечает, к какой роли уже привязан identity.
func (s *Service) LookupRole(ctx context.Context, identity int64) (models.Role, bool, error) {
	role, _, ok, err := s.dir.LinkedPerson(ctx, identity)
	if err != nil {
		return "", false, unavailable(err)
	}
	return role, ok, nil
}

// MainMenu заново собирает приветствие для уже привязанного identity.
// ok == false — identity ни к кому не привязан.
func (s *Service) MainMenu(ctx context.Context, identity int64) (Result, bool, error) {
	role, id, ok, err := s.dir.LinkedPerson(ctx, identity)
	if err != nil {
		return Result{}, false, unavailable(err)
	}
	if !ok {
		return Result{}, false, nil
	}
	text, err := s.welcome[role](ctx, models.Claim{Outcome: models.AlreadyLinked, Role: role, RecordID: id})
	if err != nil {
		return Result{}, false, unavailable(err)
	}
	return Result{Outcome: models.AlreadyLinked, Role: role, Text: text}, true, nil
}

func (s *Service) replay(ctx context.Context, role models.Role, claim models.Claim) (Result, error) {
	fn, ok := s.welcome[role]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	text, err := fn(ctx, claim)
	if err != nil {
		return Result{}, unavailable(err)
	}
	s.observe(role, models.AlreadyLinked)
	return Result{Outcome: models.AlreadyLinked, Role: role, Text: text}, nil
}

func (s *Service) observe(role models.Role, outcome models.Outcome) {
	metrics.ObserveLink(string(role), string(outcome))
}

func unavailable(err error) error {
	if errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}
