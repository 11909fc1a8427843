// Package account implements the per-user operations of the token store on
// top of a storage backend: registration, credential persistence, calendar
// connection state and the conversation handle slot.
package account

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/andyleap/donna/internal/apperr"
	"github.com/andyleap/donna/internal/models"
	"github.com/andyleap/donna/internal/storage"
	"github.com/andyleap/donna/internal/userlock"
)

// Service serializes every read-modify-write of a user record through a
// per-user lock, so concurrent writers for one user never lose fields.
type Service struct {
	users storage.UserStorage
	locks *userlock.Locker
	now   func() time.Time
}

func NewService(users storage.UserStorage) *Service {
	return &Service{
		users: users,
		locks: userlock.New(),
		now:   time.Now,
	}
}

// Register creates or refreshes the identity fields of a user and reports
// whether the user was new.
func (s *Service) Register(ctx context.Context, profile models.Profile) (bool, error) {
	unlock, err := s.locks.Lock(ctx, profile.ID)
	if err != nil {
		return false, err
	}
	defer unlock()

	exists, err := s.Exists(ctx, profile.ID)
	if err != nil {
		return false, err
	}
	err = s.write(ctx, profile.ID, func(user *models.User) {
		user.Username = profile.Username
		user.FirstName = profile.FirstName
		user.LastName = profile.LastName
	})
	if err != nil {
		return false, err
	}
	isNew := !exists
	if isNew {
		slog.Info("New user registered", "user_id", profile.ID, "username", profile.Username)
	}
	return isNew, nil
}

// Exists reports whether the user has a record.
func (s *Service) Exists(ctx context.Context, userID int64) (bool, error) {
	exists, err := s.users.UserExists(ctx, userID)
	if err != nil {
		return false, apperr.Wrap(apperr.ErrStorage, err)
	}
	return exists, nil
}

// CountUsers returns the number of registered users.
func (s *Service) CountUsers(ctx context.Context) (int, error) {
	count, err := s.users.CountUsers(ctx)
	if err != nil {
		return 0, apperr.Wrap(apperr.ErrStorage, err)
	}
	return count, nil
}

// IsConnected reports whether the user has linked a calendar. Unknown
// users are not connected.
func (s *Service) IsConnected(ctx context.Context, userID int64) (bool, error) {
	user, err := s.get(ctx, userID)
	if err != nil {
		return false, err
	}
	return user != nil && user.CalendarConnected, nil
}

// SaveCredential stores cred and marks the calendar connected, creating a
// placeholder user record when the user never registered.
func (s *Service) SaveCredential(ctx context.Context, userID int64, cred models.Credential) error {
	err := s.update(ctx, userID, func(user *models.User) {
		stored := cred.Clone()
		user.Credential = &stored
		user.CalendarConnected = true
	})
	if err != nil {
		return err
	}
	slog.Info("Calendar tokens saved", "user_id", userID)
	return nil
}

// UpdateCredential runs fn against the current credential under the user's
// record lock and persists the result when it differs from the original.
// It reports whether a write happened.
func (s *Service) UpdateCredential(ctx context.Context, userID int64, fn func(models.Credential) (models.Credential, error)) (bool, error) {
	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return false, err
	}
	defer unlock()

	user, err := s.get(ctx, userID)
	if err != nil {
		return false, err
	}
	if user == nil || !user.CalendarConnected || user.Credential == nil {
		return false, fmt.Errorf("calendar tokens for user %d: %w", userID, apperr.ErrNotFound)
	}

	original := user.Credential.Clone()
	updated, err := fn(original.Clone())
	if err != nil {
		return false, err
	}
	if updated.Equal(original) {
		return false, nil
	}

	user.Credential = &updated
	user.UpdatedAt = s.now().UTC()
	if err := s.users.SaveUser(ctx, user); err != nil {
		return false, apperr.Wrap(apperr.ErrStorage, err)
	}
	return true, nil
}

// Disconnect clears the stored credential. It is idempotent and does not
// create a record for unknown users.
func (s *Service) Disconnect(ctx context.Context, userID int64) error {
	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()

	user, err := s.get(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil || (!user.CalendarConnected && user.Credential == nil) {
		return nil
	}

	user.Credential = nil
	user.CalendarConnected = false
	user.UpdatedAt = s.now().UTC()
	if err := s.users.SaveUser(ctx, user); err != nil {
		return apperr.Wrap(apperr.ErrStorage, err)
	}
	slog.Info("Calendar disconnected", "user_id", userID)
	return nil
}

// ConversationID returns the stored conversation handle, empty if none.
func (s *Service) ConversationID(ctx context.Context, userID int64) (string, error) {
	user, err := s.get(ctx, userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", nil
	}
	return user.ConversationID, nil
}

// SaveConversationID replaces the user's conversation handle.
func (s *Service) SaveConversationID(ctx context.Context, userID int64, conversationID string) error {
	return s.update(ctx, userID, func(user *models.User) {
		user.ConversationID = conversationID
	})
}

func (s *Service) get(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrStorage, err)
	}
	return user, nil
}

func (s *Service) update(ctx context.Context, userID int64, fn func(*models.User)) error {
	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()
	return s.write(ctx, userID, fn)
}

// write applies fn to the user's record and persists it. Callers hold the
// user's lock.
func (s *Service) write(ctx context.Context, userID int64, fn func(*models.User)) error {
	user, err := s.get(ctx, userID)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	if user == nil {
		user = &models.User{ID: userID}
	}
	fn(user)
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	if err := s.users.SaveUser(ctx, user); err != nil {
		return apperr.Wrap(apperr.ErrStorage, err)
	}
	return nil
}
