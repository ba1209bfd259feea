package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/projectbot/core/logger"
	tghelpers "github.com/m3rciful/projectbot/core/telegram/helpers"
)

type fakeContext struct {
	tele.Context
	update tele.Update
	store  map[string]any
	sent   int
}

func newFake(userID int64, msg *tele.Message) *fakeContext {
	if msg == nil {
		msg = &tele.Message{}
	}
	if userID != 0 {
		msg.Sender = &tele.User{ID: userID}
		msg.Chat = &tele.Chat{ID: userID, Type: tele.ChatPrivate}
	}
	return &fakeContext{update: tele.Update{ID: 1, Message: msg}, store: map[string]any{}}
}

func (f *fakeContext) Update() tele.Update { return f.update }
func (f *fakeContext) Message() *tele.Message {
	return f.update.Message
}
func (f *fakeContext) Callback() *tele.Callback { return f.update.Callback }
func (f *fakeContext) Text() string {
	if f.update.Message == nil {
		return ""
	}
	return f.update.Message.Text
}
func (f *fakeContext) Chat() *tele.Chat {
	if f.update.Message == nil {
		return nil
	}
	return f.update.Message.Chat
}
func (f *fakeContext) Sender() *tele.User {
	if f.update.Message == nil {
		return nil
	}
	return f.update.Message.Sender
}
func (f *fakeContext) Get(key string) any    { return f.store[key] }
func (f *fakeContext) Set(key string, v any) { f.store[key] = v }
func (f *fakeContext) Send(any, ...any) error {
	f.sent++
	return nil
}

func ok(c tele.Context) error { return nil }

func TestAdminOnly(t *testing.T) {
	rejected := 0
	mw := AdminOnlyMiddleware(AdminOptions{AdminID: 7, OnReject: func(tele.Context) error {
		rejected++
		return nil
	}})
	called := 0
	h := mw(func(tele.Context) error { called++; return nil })

	require.NoError(t, h(newFake(7, nil)))
	require.NoError(t, h(newFake(8, nil)))
	assert.Equal(t, 1, called)
	assert.Equal(t, 1, rejected)

	open := AdminOnlyMiddleware(AdminOptions{})(func(tele.Context) error { called++; return nil })
	require.NoError(t, open(newFake(7, nil)))
	assert.Equal(t, 1, called, "no admin configured rejects everyone")
}

func TestRecoverTurnsPanicIntoError(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	err := h(newFake(1, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	assert.NoError(t, RecoverMiddleware(ok)(newFake(1, nil)))
}

func TestRateLimit(t *testing.T) {
	now := time.Date(2024, 10, 16, 10, 0, 0, 0, time.UTC)
	limited := 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Second,
		OnLimited: func(tele.Context) error { limited++; return nil },
		now:       func() time.Time { return now },
	})
	passed := 0
	h := mw(func(tele.Context) error { passed++; return nil })

	require.NoError(t, h(newFake(1, nil)))
	require.NoError(t, h(newFake(1, nil)))
	require.NoError(t, h(newFake(2, nil)))
	now = now.Add(2 * time.Second)
	require.NoError(t, h(newFake(1, nil)))

	assert.Equal(t, 3, passed)
	assert.Equal(t, 1, limited)
}

func TestRateLimitExclusions(t *testing.T) {
	now := time.Now()
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval: time.Hour,
		Exclude:  map[string]struct{}{"message": {}},
		now:      func() time.Time { return now },
	})
	passed := 0
	h := mw(func(tele.Context) error { passed++; return nil })
	for i := 0; i < 3; i++ {
		require.NoError(t, h(newFake(1, nil)))
	}
	assert.Equal(t, 3, passed)
}

func TestMessageMetricsCountsReplies(t *testing.T) {
	c := newFake(1, nil)
	h := MessageMetricsMiddleware(func(c tele.Context) error {
		if err := c.Send("a"); err != nil {
			return err
		}
		return c.Send("b", &tele.SendOptions{ReplyMarkup: &tele.ReplyMarkup{}})
	})
	require.NoError(t, h(c))
	n, kb := GetCounters(c)
	assert.Equal(t, 2, n)
	assert.True(t, kb)
	assert.Equal(t, 2, c.sent)
}

func TestLoggerMiddlewareStoresContext(t *testing.T) {
	c := newFake(9, &tele.Message{Text: "hello"})
	var ctx context.Context
	h := LoggerMiddleware(func(c tele.Context) error {
		ctx = tghelpers.BuildContext(c)
		return nil
	})
	require.NoError(t, h(c))
	require.NotNil(t, ctx)
	assert.Equal(t, logger.BuildRID(1, 9, 9), logger.RIDFrom(ctx))
}

func TestInputKind(t *testing.T) {
	cases := map[string]*tele.Message{
		"text":     {Text: "hi"},
		"location": {Location: &tele.Location{Lat: 35.7, Lng: 51.4}},
		"contact":  {Contact: &tele.Contact{PhoneNumber: "+98"}},
		"photo":    {Photo: &tele.Photo{}},
		"document": {Document: &tele.Document{}},
		"other":    {},
	}
	for want, msg := range cases {
		assert.Equal(t, want, InputKind(newFake(1, msg)), want)
	}
}

func TestInSession(t *testing.T) {
	live := map[int64]bool{1: true}
	active := func(_ context.Context, id int64) bool { return live[id] }
	idle := 0
	passed := 0
	h := InSession(active, func(tele.Context) error { idle++; return nil })(func(tele.Context) error {
		passed++
		return nil
	})

	require.NoError(t, h(newFake(1, &tele.Message{Photo: &tele.Photo{}})))
	require.NoError(t, h(newFake(2, &tele.Message{Photo: &tele.Photo{}})))
	assert.Equal(t, 1, passed)
	assert.Equal(t, 1, idle)
}
