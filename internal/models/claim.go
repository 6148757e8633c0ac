package models

// Outcome — итог одной попытки привязки.
type Outcome string

const (
	Linked            Outcome = "linked"
	AlreadyLinked     Outcome = "already_linked"
	InvalidCredential Outcome = "invalid_credential"
)

// Claim — результат попытки привязать identity к записи по ключу.
// При AlreadyLinked Role указывает, к какой роли identity уже привязан.
type Claim struct {
	Outcome  Outcome
	Role     Role
	RecordID int64
	Key      string
}
