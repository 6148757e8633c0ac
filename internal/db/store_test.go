package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crod-center/crod-bot/internal/models"
)

func setupMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	database, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return NewStore(database), mock
}

func linkedRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"ord", "role", "id"})
}

func TestClaim_Linked(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).WithArgs(int64(999)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM children WHERE tg_id`).WithArgs(int64(999)).WillReturnRows(linkedRows())
	mock.ExpectQuery(`UPDATE mentors SET tg_id`).WithArgs(int64(999), "abc123").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectCommit()

	c, err := s.Backend(models.Mentor).Claim(context.Background(), "abc123", 999)
	require.NoError(t, err)
	assert.Equal(t, models.Claim{Outcome: models.Linked, Role: models.Mentor, RecordID: 7, Key: "abc123"}, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaim_AlreadyLinkedElsewhere(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM children WHERE tg_id`).WithArgs(int64(5)).
		WillReturnRows(linkedRows().AddRow(3, "teacher", int64(12)))
	mock.ExpectRollback()

	c, err := s.Backend(models.Child).Claim(context.Background(), "phrase", 5)
	require.NoError(t, err)
	assert.Equal(t, models.AlreadyLinked, c.Outcome)
	assert.Equal(t, models.Teacher, c.Role)
	assert.Equal(t, int64(12), c.RecordID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaim_InvalidCredential(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM children WHERE tg_id`).WillReturnRows(linkedRows())
	mock.ExpectQuery(`UPDATE admins SET tg_id`).WithArgs(int64(1), "nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	c, err := s.Backend(models.Admin).Claim(context.Background(), "nope", 1)
	require.NoError(t, err)
	assert.Equal(t, models.InvalidCredential, c.Outcome)
	assert.Equal(t, models.Admin, c.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaim_StorageError(t *testing.T) {
	s, mock := setupMockStore(t)

	boom := errors.New("connection refused")
	mock.ExpectBegin().WillReturnError(boom)

	_, err := s.Backend(models.Teacher).Claim(context.Background(), "x", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestBackend_NonPersonRole(t *testing.T) {
	s, _ := setupMockStore(t)
	assert.Nil(t, s.Backend(models.Tasker))
}

func TestLinkedPerson(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectQuery(`ORDER BY ord`).WithArgs(int64(42)).
		WillReturnRows(linkedRows().AddRow(2, "mentor", int64(3)))
	role, id, ok, err := s.LinkedPerson(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.Mentor, role)
	assert.Equal(t, int64(3), id)

	mock.ExpectQuery(`ORDER BY ord`).WithArgs(int64(43)).WillReturnRows(linkedRows())
	_, _, ok, err = s.LinkedPerson(context.Background(), 43)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMentorsInGroup(t *testing.T) {
	s, mock := setupMockStore(t)

	tg := int64(100)
	mock.ExpectQuery(`FROM mentors WHERE group_num`).WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "group_num", "tg_id"}).
			AddRow(int64(1), "Иванова О.П.", 3, tg).
			AddRow(int64(2), "Петров А.А.", 3, nil))

	ms, err := s.MentorsInGroup(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "Иванова О.П.", ms[0].FullName)
	require.NotNil(t, ms[0].TelegramID)
	assert.Equal(t, tg, *ms[0].TelegramID)
	assert.Nil(t, ms[1].TelegramID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountChildrenInGroup(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM children`).WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	n, err := s.CountChildrenInGroup(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestTeacher_NotFound(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectQuery(`FROM teachers WHERE id`).WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "module_id", "tg_id"}))

	_, err := s.Teacher(context.Background(), 9)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
