package bot

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/projectbot/internal/marketplace"
	"github.com/m3rciful/projectbot/internal/wizard"
)

var testNow = time.Date(2024, 10, 16, 10, 30, 0, 0, time.UTC)

type sent struct {
	text   string
	markup *tele.ReplyMarkup
	mode   tele.ParseMode
	edited bool
}

// fakeContext records replies of one update.
type fakeContext struct {
	tele.Context
	msg   *tele.Message
	cb    *tele.Callback
	user  *tele.User
	store map[string]any

	mu      sync.Mutex
	out     []sent
	answers []string
}

func newContext(userID int64, msg *tele.Message) *fakeContext {
	u := &tele.User{ID: userID, FirstName: "Sara", LastName: "K"}
	if msg != nil {
		msg.Sender = u
		msg.Chat = &tele.Chat{ID: userID, Type: tele.ChatPrivate}
	}
	return &fakeContext{msg: msg, user: u, store: map[string]any{}}
}

func textMsg(userID int64, text string) *fakeContext {
	return newContext(userID, &tele.Message{ID: 10, Text: text})
}

func (f *fakeContext) Update() tele.Update {
	return tele.Update{ID: 1, Message: f.msg, Callback: f.cb}
}
func (f *fakeContext) Message() *tele.Message   { return f.msg }
func (f *fakeContext) Callback() *tele.Callback { return f.cb }
func (f *fakeContext) Sender() *tele.User       { return f.user }
func (f *fakeContext) Chat() *tele.Chat {
	if f.msg != nil && f.msg.Chat != nil {
		return f.msg.Chat
	}
	return &tele.Chat{ID: f.user.ID}
}
func (f *fakeContext) Text() string {
	if f.msg == nil {
		return ""
	}
	return f.msg.Text
}
func (f *fakeContext) Get(key string) any    { return f.store[key] }
func (f *fakeContext) Set(key string, v any) { f.store[key] = v }

func (f *fakeContext) record(what any, edited bool, opts []any) {
	s := sent{text: fmt.Sprint(what), edited: edited}
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			s.markup = so.ReplyMarkup
			s.mode = so.ParseMode
		}
	}
	f.mu.Lock()
	f.out = append(f.out, s)
	f.mu.Unlock()
}

func (f *fakeContext) Send(what any, opts ...any) error {
	f.record(what, false, opts)
	return nil
}

func (f *fakeContext) EditOrSend(what any, opts ...any) error {
	f.record(what, f.cb != nil, opts)
	return nil
}

func (f *fakeContext) Respond(resp ...*tele.CallbackResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range resp {
		f.answers = append(f.answers, r.Text)
	}
	return nil
}

func (f *fakeContext) last() sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.out) == 0 {
		return sent{}
	}
	return f.out[len(f.out)-1]
}

// replyLabels flattens the reply keyboard of the last message.
func (f *fakeContext) replyLabels() []string {
	var out []string
	m := f.last().markup
	if m == nil {
		return nil
	}
	for _, row := range m.ReplyKeyboard {
		for _, b := range row {
			out = append(out, b.Text)
		}
	}
	return out
}

type fakeMarket struct {
	mu       sync.Mutex
	users    []marketplace.UserParams
	projects []marketplace.ProjectPayload
	listed   []marketplace.ProjectFilter
	list     []marketplace.Project
	listErr  error
}

func ptr[T any](v T) *T { return &v }

func (f *fakeMarket) EnsureUser(_ context.Context, p marketplace.UserParams) (marketplace.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, p)
	return marketplace.User{ID: 900, TelegramID: p.TelegramID, Name: p.Name, Role: p.Role}, nil
}

func (f *fakeMarket) Categories(context.Context) (map[int64]marketplace.Category, error) {
	return map[int64]marketplace.Category{
		1: {ID: 1, Name: "Home", Children: []int64{2}},
		2: {ID: 2, Name: "Plumbing", ParentID: ptr(int64(1))},
	}, nil
}

func (f *fakeMarket) UploadFile(_ context.Context, u marketplace.Upload) (marketplace.FileRef, error) {
	_, _ = io.Copy(io.Discard, u.Content)
	return marketplace.FileRef{ID: 1}, nil
}

func (f *fakeMarket) CreateProject(_ context.Context, p marketplace.ProjectPayload) (marketplace.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects = append(f.projects, p)
	return marketplace.Project{ID: int64(len(f.projects)), Title: p.Title}, nil
}

func (f *fakeMarket) ListProjects(_ context.Context, flt marketplace.ProjectFilter) ([]marketplace.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed = append(f.listed, flt)
	if f.listErr != nil {
		return nil, f.listErr
	}
	lo := min(flt.Offset, len(f.list))
	hi := min(lo+flt.Limit, len(f.list))
	return f.list[lo:hi], nil
}

type fakeFiles struct{}

func (fakeFiles) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("jpeg")), nil
}

func newTestConversation(market *fakeMarket, sessions Sessions) *Conversation {
	m := wizard.NewMachine(market, fakeFiles{}, wizard.Config{Clock: func() time.Time { return testNow }})
	cv := NewConversation(m, sessions)
	cv.clock = func() time.Time { return testNow }
	cv.send = func(c tele.Context, text string, mk *tele.ReplyMarkup) error {
		return c.Send(text, &tele.SendOptions{ReplyMarkup: mk})
	}
	return cv
}
