package linking

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"github.com/crod-center/crod-bot/internal/models"
)

type person struct {
	role     models.Role
	id       int64
	name     string
	group    int
	moduleID int64
	password string
	phrase   string
	tg       int64
}

// memStore — in-memory замена Postgres с той же семантикой привязки.
type memStore struct {
	mu      sync.Mutex
	people  []*person
	modules map[int64]models.Module
	failAll error
	// ломает только чтение карточки ребёнка
	failChildRead error
}

func newMemStore() *memStore {
	return &memStore{modules: map[int64]models.Module{}}
}

func (m *memStore) add(p person) *person {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.id = int64(len(m.people) + 1)
	pp := &p
	m.people = append(m.people, pp)
	return pp
}

func (m *memStore) find(role models.Role, id int64) *person {
	for _, p := range m.people {
		if p.role == role && p.id == id {
			return p
		}
	}
	return nil
}

func (m *memStore) LinkedPerson(_ context.Context, identity int64) (models.Role, int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return "", 0, false, m.failAll
	}
	for _, p := range m.people {
		if p.tg == identity {
			return p.role, p.id, true, nil
		}
	}
	return "", 0, false, nil
}

func (m *memStore) Child(_ context.Context, id int64) (*models.ChildRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failChildRead != nil {
		return nil, m.failChildRead
	}
	p := m.find(models.Child, id)
	if p == nil {
		return nil, sql.ErrNoRows
	}
	return &models.ChildRecord{ID: p.id, FullName: p.name, GroupNum: p.group}, nil
}

func (m *memStore) Mentor(_ context.Context, id int64) (*models.MentorRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.find(models.Mentor, id)
	if p == nil {
		return nil, sql.ErrNoRows
	}
	return &models.MentorRecord{ID: p.id, FullName: p.name, GroupNum: p.group}, nil
}

func (m *memStore) Teacher(_ context.Context, id int64) (*models.TeacherRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.find(models.Teacher, id)
	if p == nil {
		return nil, sql.ErrNoRows
	}
	return &models.TeacherRecord{ID: p.id, FullName: p.name, ModuleID: p.moduleID}, nil
}

func (m *memStore) Admin(_ context.Context, id int64) (*models.AdminRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.find(models.Admin, id)
	if p == nil {
		return nil, sql.ErrNoRows
	}
	return &models.AdminRecord{ID: p.id, FullName: p.name, Password: p.password}, nil
}

func (m *memStore) Module(_ context.Context, id int64) (*models.Module, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mod, ok := m.modules[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &mod, nil
}

func (m *memStore) MentorsInGroup(_ context.Context, groupNum int) ([]models.MentorRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MentorRecord
	for _, p := range m.people {
		if p.role == models.Mentor && p.group == groupNum {
			out = append(out, models.MentorRecord{ID: p.id, FullName: p.name, GroupNum: p.group})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (m *memStore) CountChildrenInGroup(_ context.Context, groupNum int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.people {
		if p.role == models.Child && p.group == groupNum {
			n++
		}
	}
	return n, nil
}

type memBackend struct {
	m    *memStore
	role models.Role
}

func (b memBackend) Claim(_ context.Context, key string, identity int64) (models.Claim, error) {
	b.m.mu.Lock()
	defer b.m.mu.Unlock()
	if b.m.failAll != nil {
		return models.Claim{}, b.m.failAll
	}
	for _, p := range b.m.people {
		if p.tg == identity {
			return models.Claim{Outcome: models.AlreadyLinked, Role: p.role, RecordID: p.id, Key: key}, nil
		}
	}
	for _, p := range b.m.people {
		if p.role == b.role && p.phrase == key && p.tg == 0 {
			p.tg = identity
			return models.Claim{Outcome: models.Linked, Role: b.role, RecordID: p.id, Key: key}, nil
		}
	}
	return models.Claim{Outcome: models.InvalidCredential, Role: b.role, Key: key}, nil
}

func (m *memStore) backends() Backends {
	out := Backends{}
	for _, r := range models.PersonRoles {
		out[r] = memBackend{m: m, role: r}
	}
	return out
}
