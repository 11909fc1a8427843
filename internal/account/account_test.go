package account

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/andyleap/donna/internal/apperr"
	"github.com/andyleap/donna/internal/models"
	"github.com/andyleap/donna/internal/storage"
)

type failingStorage struct {
	*storage.MemoryStorage
	saveErr error
	saves   int
}

func (f *failingStorage) SaveUser(ctx context.Context, user *models.User) error {
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.MemoryStorage.SaveUser(ctx, user)
}

func newTestService(t *testing.T) (*Service, *failingStorage) {
	t.Helper()
	mem := storage.NewMemoryStorage(0)
	t.Cleanup(func() { mem.Close() })
	store := &failingStorage{MemoryStorage: mem}
	svc := NewService(store)
	svc.now = func() time.Time { return time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC) }
	return svc, store
}

func storedCredential(t *testing.T, svc *Service, userID int64) *models.Credential {
	t.Helper()
	user, err := svc.users.GetUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user == nil || !user.CalendarConnected {
		return nil
	}
	return user.Credential
}

func testCredential() models.Credential {
	expiry := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	return models.Credential{
		Token:        "access-1",
		RefreshToken: "refresh-1",
		TokenURI:     "https://oauth2.googleapis.com/token",
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		Scopes:       []string{"calendar.readonly"},
		Expiry:       &expiry,
	}
}

func TestRegisterReportsNewUserOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	isNew, err := svc.Register(ctx, models.Profile{ID: 1, Username: "ada", FirstName: "Ada"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !isNew {
		t.Fatal("first register isNew = false, want true")
	}

	isNew, err = svc.Register(ctx, models.Profile{ID: 1, Username: "ada2", FirstName: "Ada"})
	if err != nil {
		t.Fatalf("register again: %v", err)
	}
	if isNew {
		t.Fatal("second register isNew = true, want false")
	}

	count, err := svc.CountUsers(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestRegisterAfterPlaceholderIsNotNew(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if exists, err := svc.Exists(ctx, 3); err != nil || exists {
		t.Fatalf("exists = %v, %v; want false", exists, err)
	}
	if err := svc.SaveCredential(ctx, 3, testCredential()); err != nil {
		t.Fatalf("save credential: %v", err)
	}
	if exists, err := svc.Exists(ctx, 3); err != nil || !exists {
		t.Fatalf("exists = %v, %v; want true", exists, err)
	}

	isNew, err := svc.Register(ctx, models.Profile{ID: 3, Username: "grace"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if isNew {
		t.Fatal("register over placeholder isNew = true, want false")
	}
}

func TestRegisterKeepsCredentialAndConversation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.SaveCredential(ctx, 1, testCredential()); err != nil {
		t.Fatalf("save credential: %v", err)
	}
	if err := svc.SaveConversationID(ctx, 1, "conv_1"); err != nil {
		t.Fatalf("save conversation: %v", err)
	}
	if _, err := svc.Register(ctx, models.Profile{ID: 1, Username: "ada"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	connected, err := svc.IsConnected(ctx, 1)
	if err != nil || !connected {
		t.Fatalf("connected = %v, %v; want true", connected, err)
	}
	conv, err := svc.ConversationID(ctx, 1)
	if err != nil || conv != "conv_1" {
		t.Fatalf("conversation = %q, %v; want conv_1", conv, err)
	}
}

func TestCredentialRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if got := storedCredential(t, svc, 1); got != nil {
		t.Fatalf("credential for unknown user = %+v, want none", got)
	}

	cred := testCredential()
	if err := svc.SaveCredential(ctx, 1, cred); err != nil {
		t.Fatalf("save credential: %v", err)
	}
	got := storedCredential(t, svc, 1)
	if got == nil {
		t.Fatal("credential not stored")
	}
	if !got.Equal(cred) {
		t.Fatalf("credential = %+v, want %+v", got, cred)
	}
}

func TestDisconnectNeverConnectedIsIdempotent(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if err := svc.Disconnect(ctx, 99); err != nil {
		t.Fatalf("disconnect unknown user: %v", err)
	}
	if _, err := svc.Register(ctx, models.Profile{ID: 99}); err != nil {
		t.Fatalf("register: %v", err)
	}
	saves := store.saves
	for i := 0; i < 2; i++ {
		if err := svc.Disconnect(ctx, 99); err != nil {
			t.Fatalf("disconnect #%d: %v", i, err)
		}
	}
	if store.saves != saves {
		t.Fatalf("saves = %d, want %d (no writes for a never-connected user)", store.saves, saves)
	}
	connected, err := svc.IsConnected(ctx, 99)
	if err != nil || connected {
		t.Fatalf("connected = %v, %v; want false", connected, err)
	}
}

func TestDisconnectClearsCredential(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.SaveCredential(ctx, 1, testCredential()); err != nil {
		t.Fatalf("save credential: %v", err)
	}
	if err := svc.Disconnect(ctx, 1); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if got := storedCredential(t, svc, 1); got != nil {
		t.Fatalf("credential after disconnect = %+v, want none", got)
	}
}

func TestUpdateCredentialWritesOnlyOnChange(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if err := svc.SaveCredential(ctx, 1, testCredential()); err != nil {
		t.Fatalf("save credential: %v", err)
	}
	saves := store.saves

	wrote, err := svc.UpdateCredential(ctx, 1, func(c models.Credential) (models.Credential, error) {
		return c, nil
	})
	if err != nil || wrote {
		t.Fatalf("unchanged update = %v, %v; want no write", wrote, err)
	}
	if store.saves != saves {
		t.Fatalf("saves = %d, want %d", store.saves, saves)
	}

	wrote, err = svc.UpdateCredential(ctx, 1, func(c models.Credential) (models.Credential, error) {
		c.Token = "access-2"
		return c, nil
	})
	if err != nil || !wrote {
		t.Fatalf("changed update = %v, %v; want write", wrote, err)
	}
	if got := storedCredential(t, svc, 1); got == nil || got.Token != "access-2" {
		t.Fatalf("credential = %+v, want token access-2", got)
	}
}

func TestFailedPersistIsReported(t *testing.T) {
	svc, store := newTestService(t)
	store.saveErr = errors.New("disk full")

	err := svc.SaveCredential(context.Background(), 1, testCredential())
	if !errors.Is(err, apperr.ErrStorage) {
		t.Fatalf("save err = %v, want ErrStorage", err)
	}
}

func TestConcurrentUpdatesKeepAllFields(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := svc.SaveCredential(ctx, 5, testCredential()); err != nil {
			t.Errorf("save credential: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := svc.SaveConversationID(ctx, 5, "conv_5"); err != nil {
			t.Errorf("save conversation: %v", err)
		}
	}()
	wg.Wait()

	connected, _ := svc.IsConnected(ctx, 5)
	conv, _ := svc.ConversationID(ctx, 5)
	if !connected || conv != "conv_5" {
		t.Fatalf("connected = %v, conversation = %q; want both writes kept", connected, conv)
	}
}
