package tasker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/crod-center/crod-bot/internal/models"
)

// record хранит поля как есть, чтобы при перезаписи файла не терять
// то, о чём бот не знает (токены трекера, имена и т.п.).
type record map[string]json.RawMessage

func (r record) login() string {
	var s string
	_ = json.Unmarshal(r["login"], &s)
	return s
}

func (r record) tid() int64 {
	raw, ok := r["tid"]
	if !ok {
		return 0
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		v, _ := n.Int64()
		return v
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v, _ := strconv.ParseInt(s, 10, 64)
		return v
	}
	return 0
}

// File — список пользователей трекера задач в JSON-файле.
// Файл читается целиком и целиком перезаписывается при каждой привязке.
type File struct {
	mu   sync.Mutex
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

// Claim находит запись с login == key и один раз проставляет ей tid.
func (f *File) Claim(ctx context.Context, key string, identity int64) (models.Claim, error) {
	if err := ctx.Err(); err != nil {
		return models.Claim{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	recs, err := f.load()
	if err != nil {
		return models.Claim{}, err
	}
	for _, r := range recs {
		if r.tid() == identity {
			return models.Claim{Outcome: models.AlreadyLinked, Role: models.Tasker, Key: r.login()}, nil
		}
	}

	idx := findByKey(recs, key)
	if idx < 0 || recs[idx].tid() != 0 {
		return models.Claim{Outcome: models.InvalidCredential, Role: models.Tasker, Key: key}, nil
	}
	recs[idx]["tid"] = json.RawMessage(strconv.FormatInt(identity, 10))

	if err := f.persist(recs); err != nil {
		return models.Claim{}, err
	}
	return models.Claim{Outcome: models.Linked, Role: models.Tasker, RecordID: int64(idx), Key: key}, nil
}

// Users возвращает логины с привязанными tid (для проверки и отладки).
func (f *File) Users() (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	recs, err := f.load()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(recs))
	for _, r := range recs {
		out[r.login()] = r.tid()
	}
	return out, nil
}

func findByKey(recs []record, login string) int {
	for i, r := range recs {
		if r.login() == login {
			return i
		}
	}
	return -1
}

func (f *File) load() ([]record, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var recs []record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.path, err)
	}
	return recs, nil
}

// persist пишет во временный файл рядом и переименовывает, чтобы читатель
// никогда не увидел наполовину записанный список.
func (f *File) persist(recs []record) error {
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tasker users: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".tasker-*.json")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	// файл читает трекер задач: права остаются прежними
	mode := os.FileMode(0o644)
	if st, err := os.Stat(f.path); err == nil {
		mode = st.Mode().Perm()
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp: %w", err)
	}

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}
