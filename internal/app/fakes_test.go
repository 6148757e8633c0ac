package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/crod-center/crod-bot/internal/linking"
	"github.com/crod-center/crod-bot/internal/models"
)

type fakeBot struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests int
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeBot) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeBot) last() tgbotapi.Chattable {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

type linkCall struct {
	role     models.Role
	key      string
	identity int64
}

type fakeLinker struct {
	mu      sync.Mutex
	calls   []linkCall
	result  linking.Result
	err     error
	roles   map[int64]models.Role
	menu    map[int64]linking.Result
	roleErr error
	panics  bool
}

func (f *fakeLinker) Link(ctx context.Context, role models.Role, key string, identity int64) (linking.Result, error) {
	if f.panics {
		panic("boom")
	}
	f.mu.Lock()
	f.calls = append(f.calls, linkCall{role, key, identity})
	f.mu.Unlock()
	return f.result, f.err
}

func (f *fakeLinker) MainMenu(ctx context.Context, identity int64) (linking.Result, bool, error) {
	if f.roleErr != nil {
		return linking.Result{}, false, f.roleErr
	}
	res, ok := f.menu[identity]
	return res, ok, nil
}

func (f *fakeLinker) LookupRole(ctx context.Context, identity int64) (models.Role, bool, error) {
	if f.roleErr != nil {
		return "", false, f.roleErr
	}
	r, ok := f.roles[identity]
	return r, ok, nil
}

type fakeDirectory struct {
	linked   map[int64]models.MentorRecord
	groups   map[int]bool
	mentors  []models.MentorRecord
	children []models.ChildRecord
}

func (f *fakeDirectory) LinkedPerson(ctx context.Context, identity int64) (models.Role, int64, bool, error) {
	m, ok := f.linked[identity]
	if !ok {
		return "", 0, false, nil
	}
	return models.Mentor, m.ID, true, nil
}

func (f *fakeDirectory) Mentor(ctx context.Context, id int64) (*models.MentorRecord, error) {
	for _, m := range f.linked {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, errors.New("mentor not found")
}

func (f *fakeDirectory) GroupExists(ctx context.Context, groupNum int) (bool, error) {
	return f.groups[groupNum], nil
}

func (f *fakeDirectory) MentorsInGroup(ctx context.Context, groupNum int) ([]models.MentorRecord, error) {
	return f.mentors, nil
}

func (f *fakeDirectory) ChildrenInGroup(ctx context.Context, groupNum int) ([]models.ChildRecord, error) {
	return f.children, nil
}

type fakeTokens struct{}

func (fakeTokens) Issue(ctx context.Context, role models.Role, identity int64) (string, error) {
	return "tok-" + string(role), nil
}

type fakeFlags struct {
	mu    sync.Mutex
	armed map[string]bool
}

func (f *fakeFlags) Arm(ctx context.Context, name string, chatID int64, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.armed == nil {
		f.armed = map[string]bool{}
	}
	f.armed[flagID(name, chatID)] = true
	return nil
}

func (f *fakeFlags) Take(ctx context.Context, name string, chatID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := flagID(name, chatID)
	ok := f.armed[k]
	delete(f.armed, k)
	return ok, nil
}

func flagID(name string, chatID int64) string {
	return fmt.Sprintf("%s:%d", name, chatID)
}

type fakeSink struct {
	mu       sync.Mutex
	texts    []string
	delivers int
}

func (f *fakeSink) Broadcast(ctx context.Context, text string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return f.delivers
}

func (f *fakeSink) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

// command собирает апдейт с командой так, как его присылает Telegram.
func command(chatID int64, text string) tgbotapi.Update {
	name, _, _ := strings.Cut(text, " ")
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: chatID},
		From:     &tgbotapi.User{ID: chatID, FirstName: "Анна", UserName: "anna"},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}}
}

func textMsg(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{ID: chatID, FirstName: "Анна"},
		Text: text,
	}}
}

func callback(chatID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		Data:    data,
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
	}}
}

type harness struct {
	bot    *fakeBot
	linker *fakeLinker
	dir    *fakeDirectory
	flags  *fakeFlags
	sink   *fakeSink
	disp   *Dispatcher
}

func newHarness() *harness {
	h := &harness{
		bot:    &fakeBot{},
		linker: &fakeLinker{roles: map[int64]models.Role{}, menu: map[int64]linking.Result{}},
		dir:    &fakeDirectory{linked: map[int64]models.MentorRecord{}, groups: map[int]bool{}},
		flags:  &fakeFlags{},
		sink:   &fakeSink{delivers: 1},
	}
	h.disp = NewDispatcher(Deps{
		Bot:        h.bot,
		Linker:     h.linker,
		Directory:  h.dir,
		Tokens:     fakeTokens{},
		Flags:      h.flags,
		Sink:       h.sink,
		ConnectURL: "https://connect.example.org/login",
		ConnectTTL: 5 * time.Minute,
		Log:        zap.NewNop(),
	})
	return h
}
