package models

// Role — закрытый набор ролей, к которым можно привязать Telegram-аккаунт.
type Role string

const (
	Child   Role = "child"
	Mentor  Role = "mentor"
	Teacher Role = "teacher"
	Admin   Role = "admin"
	// Tasker — учётка трекера задач, хранится в файле, а не в БД.
	Tasker Role = "tasker"
)

// PersonRoles — роли, записи которых лежат в таблицах БД.
var PersonRoles = []Role{Child, Mentor, Teacher, Admin}

var tags = map[string]Role{
	"children": Child,
	"mentors":  Mentor,
	"teachers": Teacher,
	"admins":   Admin,
	"tasker":   Tasker,
}

// RoleFromTag переводит тег из deep-link (children, mentors, ...) в роль.
func RoleFromTag(tag string) (Role, bool) {
	r, ok := tags[tag]
	return r, ok
}

func (r Role) Valid() bool {
	_, ok := titles[r]
	return ok
}

func (r Role) IsPerson() bool {
	return r.Valid() && r != Tasker
}

var titles = map[Role]string{
	Child:   "Ребёнок",
	Mentor:  "Вожатый",
	Teacher: "Преподаватель",
	Admin:   "Администратор",
	Tasker:  "Трекер задач",
}

// Title — человекочитаемое название роли.
func (r Role) Title() string { return titles[r] }

type ChildRecord struct {
	ID         int64
	FullName   string
	GroupNum   int
	TelegramID *int64
}

type MentorRecord struct {
	ID         int64
	FullName   string
	GroupNum   int
	TelegramID *int64
}

type TeacherRecord struct {
	ID         int64
	FullName   string
	ModuleID   int64
	TelegramID *int64
}

type AdminRecord struct {
	ID         int64
	FullName   string
	Password   string
	TelegramID *int64
}

type Group struct {
	Num   int
	Title string
}

type Module struct {
	ID       int64
	Name     string
	Location string
}
