package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/crod-center/crod-bot/internal/ctxutil"
	"github.com/crod-center/crod-bot/internal/models"
)

// RoleBackend привязывает Telegram ID к записи одной таблицы ролей по кодовой фразе.
type RoleBackend struct {
	db    *sql.DB
	role  models.Role
	table string
}

// Backend возвращает backend для роли; для ролей вне БД — nil.
func (s *Store) Backend(role models.Role) *RoleBackend {
	if !role.IsPerson() {
		return nil
	}
	return &RoleBackend{db: s.db, role: role, table: tables[role]}
}

// Claim в одной транзакции проверяет, что identity ещё нигде не привязан, и
// условным UPDATE занимает строку с этой фразой. Advisory-lock по identity
// сериализует попытки одного аккаунта, блокировка строки — попытки разных
// аккаунтов на одну фразу.
func (b *RoleBackend) Claim(ctx context.Context, passPhrase string, identity int64) (models.Claim, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Claim{}, fmt.Errorf("begin claim: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, identity); err != nil {
		return models.Claim{}, fmt.Errorf("lock identity %d: %w", identity, err)
	}

	role, linkedID, linked, err := linkedPerson(ctx, tx, identity)
	if err != nil {
		return models.Claim{}, err
	}
	if linked {
		return models.Claim{Outcome: models.AlreadyLinked, Role: role, RecordID: linkedID, Key: passPhrase}, nil
	}

	var id int64
	err = tx.QueryRowContext(ctx,
		`UPDATE `+b.table+` SET tg_id = $1 WHERE pass_phrase = $2 AND tg_id IS NULL RETURNING id`,
		identity, passPhrase).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Claim{Outcome: models.InvalidCredential, Role: b.role, Key: passPhrase}, nil
	}
	if err != nil {
		return models.Claim{}, fmt.Errorf("bind %s: %w", b.table, err)
	}
	if err := tx.Commit(); err != nil {
		return models.Claim{}, fmt.Errorf("commit claim: %w", err)
	}
	return models.Claim{Outcome: models.Linked, Role: b.role, RecordID: id, Key: passPhrase}, nil
}
