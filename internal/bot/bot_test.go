package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/andyleap/donna/internal/account"
	"github.com/andyleap/donna/internal/calendar"
	"github.com/andyleap/donna/internal/conversation"
	"github.com/andyleap/donna/internal/models"
	"github.com/andyleap/donna/internal/storage"
)

type fakeAuth struct{}

func (fakeAuth) AuthorizationTarget(userID int64) string {
	return "http://localhost:8080/start_auth?user=1"
}

type fakeFetcher struct {
	kinds []calendar.Kind
	res   calendar.Result
}

func (f *fakeFetcher) Today(_ context.Context, _ int64) (calendar.Result, error) {
	f.kinds = append(f.kinds, calendar.Today)
	return f.res, nil
}

func (f *fakeFetcher) Week(_ context.Context, _ int64) (calendar.Result, error) {
	f.kinds = append(f.kinds, calendar.Week)
	return f.res, nil
}

type fakeConversations struct {
	inputs []conversation.TurnInput
	err    error
}

func (f *fakeConversations) Turn(_ context.Context, in conversation.TurnInput) (conversation.Output, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return conversation.Output{}, f.err
	}
	return conversation.Output{Text: "reply to " + in.Text}, nil
}

func newCommands(t *testing.T) (*Commands, *account.Service, *fakeFetcher, *fakeConversations) {
	t.Helper()
	store := storage.NewMemoryStorage(0)
	t.Cleanup(func() { store.Close() })
	accounts := account.NewService(store)
	fetcher := &fakeFetcher{}
	convs := &fakeConversations{}
	return NewCommands(accounts, fakeAuth{}, fetcher, convs), accounts, fetcher, convs
}

var alice = models.Profile{ID: 1, Username: "alice", FirstName: "Alice"}

func TestStartRegistersOnce(t *testing.T) {
	c, _, _, _ := newCommands(t)
	ctx := context.Background()

	first := c.Handle(ctx, alice, "/start")
	if !strings.Contains(first, "Welcome Alice! You've been registered successfully.") {
		t.Fatalf("first reply = %q", first)
	}
	if !strings.Contains(first, "Total registered users: 1") {
		t.Fatalf("first reply missing count: %q", first)
	}

	c.Handle(ctx, models.Profile{ID: 2, Username: "bob"}, "/start")
	again := c.Handle(ctx, alice, "/start")
	if !strings.Contains(again, "Welcome back Alice!") || !strings.Contains(again, "Total registered users: 2") {
		t.Fatalf("returning reply = %q", again)
	}
}

func TestConnectCalendar(t *testing.T) {
	c, accounts, _, _ := newCommands(t)
	ctx := context.Background()

	reply := c.Handle(ctx, alice, "/connect_calendar")
	if !strings.Contains(reply, "http://localhost:8080/start_auth?user=1") {
		t.Fatalf("reply = %q, want authorization link", reply)
	}

	if err := accounts.SaveCredential(ctx, alice.ID, models.Credential{Token: "t"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if reply := c.Handle(ctx, alice, "/connect_calendar"); reply != msgAlreadyConnected {
		t.Fatalf("reply = %q, want already connected", reply)
	}
	if reply := c.Handle(ctx, alice, "/calendar_status"); !strings.Contains(reply, "Calendar Status: Connected") {
		t.Fatalf("status = %q", reply)
	}
}

func TestDisconnectCalendar(t *testing.T) {
	c, accounts, _, _ := newCommands(t)
	ctx := context.Background()

	if reply := c.Handle(ctx, alice, "/disconnect_calendar"); reply != msgNotConnected {
		t.Fatalf("reply = %q, want %q", reply, msgNotConnected)
	}
	if reply := c.Handle(ctx, alice, "/disconnect_calendar"); reply != msgNotConnected {
		t.Fatalf("second reply = %q, want %q", reply, msgNotConnected)
	}
	if connected, _ := accounts.IsConnected(ctx, alice.ID); connected {
		t.Fatal("never-connected user became connected")
	}

	accounts.SaveCredential(ctx, alice.ID, models.Credential{Token: "t"})
	if reply := c.Handle(ctx, alice, "/disconnect_calendar"); reply != msgDisconnected {
		t.Fatalf("reply = %q", reply)
	}
	if connected, _ := accounts.IsConnected(ctx, alice.ID); connected {
		t.Fatal("still connected after disconnect")
	}
	if reply := c.Handle(ctx, alice, "/calendar_status"); !strings.Contains(reply, "Not Connected") {
		t.Fatalf("status = %q", reply)
	}
}

func TestEventsCommands(t *testing.T) {
	c, _, fetcher, _ := newCommands(t)
	fetcher.res = calendar.Result{Events: []calendar.EventView{}, Message: calendar.MsgNoEventsToday}

	if reply := c.Handle(context.Background(), alice, "/today"); reply != "No events scheduled for today." {
		t.Fatalf("today = %q", reply)
	}
	c.Handle(context.Background(), alice, "/week@DonnaBot")
	if len(fetcher.kinds) != 2 || fetcher.kinds[0] != calendar.Today || fetcher.kinds[1] != calendar.Week {
		t.Fatalf("kinds = %v", fetcher.kinds)
	}
}

func TestFreeTextGoesToAssistant(t *testing.T) {
	c, _, _, convs := newCommands(t)

	reply := c.Handle(context.Background(), alice, "  hello  ")
	if reply != "reply to hello" {
		t.Fatalf("reply = %q", reply)
	}
	if convs.inputs[0].UserID != 1 || convs.inputs[0].Username != "alice" {
		t.Fatalf("input = %+v", convs.inputs[0])
	}

	convs.err = errors.New("boom")
	if reply := c.Handle(context.Background(), alice, "again"); reply != msgGenericError {
		t.Fatalf("reply = %q, want generic error", reply)
	}
}

func TestUnknownCommand(t *testing.T) {
	c, _, _, convs := newCommands(t)
	if reply := c.Handle(context.Background(), alice, "/launch"); reply != msgUnknownCommand {
		t.Fatalf("reply = %q", reply)
	}
	if len(convs.inputs) != 0 {
		t.Fatal("commands must not reach the assistant")
	}
}
