package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/andyleap/donna/internal/models"
)

type echoHandler struct {
	profiles []models.Profile
}

func (e *echoHandler) Handle(_ context.Context, profile models.Profile, text string) string {
	e.profiles = append(e.profiles, profile)
	return "echo: " + text
}

type fakeAPI struct {
	mu   sync.Mutex
	sent []map[string]string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		w.Write([]byte(`{"ok":true,"result":{"id":99,"is_bot":true,"first_name":"Donna","username":"donna_bot"}}`))
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		r.ParseForm()
		f.mu.Lock()
		f.sent = append(f.sent, map[string]string{
			"chat_id": r.Form.Get("chat_id"),
			"text":    r.Form.Get("text"),
		})
		f.mu.Unlock()
		w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`))
	default:
		w.Write([]byte(`{"ok":true,"result":[]}`))
	}
}

func newTestBot(t *testing.T, handler Handler) (*Bot, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	bot, err := New("TOKEN", srv.URL+"/bot%s/%s", srv.Client(), handler)
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}
	return bot, api
}

func TestHandleUpdateReplies(t *testing.T) {
	handler := &echoHandler{}
	bot, api := newTestBot(t, handler)

	bot.handleUpdate(context.Background(), tgbotapi.Update{
		Message: &tgbotapi.Message{
			Text: "/today",
			Chat: &tgbotapi.Chat{ID: 42},
			From: &tgbotapi.User{ID: 7, UserName: "alice", FirstName: "Alice", LastName: "Smith"},
		},
	})

	if len(api.sent) != 1 {
		t.Fatalf("sent = %d messages, want 1", len(api.sent))
	}
	if api.sent[0]["chat_id"] != "42" || api.sent[0]["text"] != "echo: /today" {
		t.Fatalf("sent = %v", api.sent[0])
	}
	want := models.Profile{ID: 42, Username: "alice", FirstName: "Alice", LastName: "Smith"}
	if handler.profiles[0] != want {
		t.Fatalf("profile = %+v, want %+v", handler.profiles[0], want)
	}
}

func TestHandleUpdateIgnoresNonText(t *testing.T) {
	handler := &echoHandler{}
	bot, api := newTestBot(t, handler)

	bot.handleUpdate(context.Background(), tgbotapi.Update{})
	bot.handleUpdate(context.Background(), tgbotapi.Update{
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42}},
	})

	if len(api.sent) != 0 || len(handler.profiles) != 0 {
		t.Fatalf("sent = %v, handled = %v", api.sent, handler.profiles)
	}
}
