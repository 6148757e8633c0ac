package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/crod-center/crod-bot/internal/ctxutil"
	"github.com/crod-center/crod-bot/internal/models"
)

var tables = map[models.Role]string{
	models.Child:   "children",
	models.Mentor:  "mentors",
	models.Teacher: "teachers",
	models.Admin:   "admins",
}

// Порядок ord фиксирует выбор роли, если identity вдруг окажется в нескольких таблицах.
const linkedPersonQuery = `
SELECT ord, role, id FROM (
    SELECT 1 AS ord, 'child' AS role, id FROM children WHERE tg_id = $1
    UNION ALL
    SELECT 2, 'mentor', id FROM mentors WHERE tg_id = $1
    UNION ALL
    SELECT 3, 'teacher', id FROM teachers WHERE tg_id = $1
    UNION ALL
    SELECT 4, 'admin', id FROM admins WHERE tg_id = $1
) linked
ORDER BY ord
LIMIT 1`

func linkedPerson(ctx context.Context, q rowQueryer, identity int64) (models.Role, int64, bool, error) {
	var (
		ord  int
		role string
		id   int64
	)
	err := q.QueryRowContext(ctx, linkedPersonQuery, identity).Scan(&ord, &role, &id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, fmt.Errorf("linked person %d: %w", identity, err)
	}
	return models.Role(role), id, true, nil
}

// LinkedPerson ищет identity во всех таблицах ролей.
func (s *Store) LinkedPerson(ctx context.Context, identity int64) (models.Role, int64, bool, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	return linkedPerson(ctx, s.db, identity)
}

func (s *Store) Child(ctx context.Context, id int64) (*models.ChildRecord, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var c models.ChildRecord
	err := s.db.QueryRowContext(ctx, `
SELECT id, full_name, group_num, tg_id FROM children WHERE id = $1`, id).
		Scan(&c.ID, &c.FullName, &c.GroupNum, &c.TelegramID)
	if err != nil {
		return nil, fmt.Errorf("child %d: %w", id, err)
	}
	return &c, nil
}

func (s *Store) Mentor(ctx context.Context, id int64) (*models.MentorRecord, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var m models.MentorRecord
	err := s.db.QueryRowContext(ctx, `
SELECT id, full_name, group_num, tg_id FROM mentors WHERE id = $1`, id).
		Scan(&m.ID, &m.FullName, &m.GroupNum, &m.TelegramID)
	if err != nil {
		return nil, fmt.Errorf("mentor %d: %w", id, err)
	}
	return &m, nil
}

func (s *Store) Teacher(ctx context.Context, id int64) (*models.TeacherRecord, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var t models.TeacherRecord
	err := s.db.QueryRowContext(ctx, `
SELECT id, full_name, module_id, tg_id FROM teachers WHERE id = $1`, id).
		Scan(&t.ID, &t.FullName, &t.ModuleID, &t.TelegramID)
	if err != nil {
		return nil, fmt.Errorf("teacher %d: %w", id, err)
	}
	return &t, nil
}

func (s *Store) Admin(ctx context.Context, id int64) (*models.AdminRecord, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var a models.AdminRecord
	err := s.db.QueryRowContext(ctx, `
SELECT id, full_name, password, tg_id FROM admins WHERE id = $1`, id).
		Scan(&a.ID, &a.FullName, &a.Password, &a.TelegramID)
	if err != nil {
		return nil, fmt.Errorf("admin %d: %w", id, err)
	}
	return &a, nil
}

func (s *Store) Module(ctx context.Context, id int64) (*models.Module, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var m models.Module
	err := s.db.QueryRowContext(ctx, `
SELECT id, name, location FROM modules WHERE id = $1`, id).
		Scan(&m.ID, &m.Name, &m.Location)
	if err != nil {
		return nil, fmt.Errorf("module %d: %w", id, err)
	}
	return &m, nil
}

// MentorsInGroup — все вожатые группы, по имени.
func (s *Store) MentorsInGroup(ctx context.Context, groupNum int) ([]models.MentorRecord, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
SELECT id, full_name, group_num, tg_id FROM mentors WHERE group_num = $1 ORDER BY full_name, id`, groupNum)
	if err != nil {
		return nil, fmt.Errorf("mentors of group %d: %w", groupNum, err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.MentorRecord
	for rows.Next() {
		var m models.MentorRecord
		if err := rows.Scan(&m.ID, &m.FullName, &m.GroupNum, &m.TelegramID); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) ChildrenInGroup(ctx context.Context, groupNum int) ([]models.ChildRecord, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
SELECT id, full_name, group_num, tg_id FROM children WHERE group_num = $1 ORDER BY full_name, id`, groupNum)
	if err != nil {
		return nil, fmt.Errorf("children of group %d: %w", groupNum, err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.ChildRecord
	for rows.Next() {
		var c models.ChildRecord
		if err := rows.Scan(&c.ID, &c.FullName, &c.GroupNum, &c.TelegramID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CountChildrenInGroup(ctx context.Context, groupNum int) (int, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM children WHERE group_num = $1`, groupNum).Scan(&n); err != nil {
		return 0, fmt.Errorf("count children of group %d: %w", groupNum, err)
	}
	return n, nil
}

// GroupExists нужен перед выгрузкой списка группы.
func (s *Store) GroupExists(ctx context.Context, groupNum int) (bool, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var ok bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM groups WHERE group_num = $1)`, groupNum).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("group %d exists: %w", groupNum, err)
	}
	return ok, nil
}
