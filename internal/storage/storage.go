package storage

import (
	"context"

	"github.com/andyleap/donna/internal/models"
)

// UserStorage is the durable token store. GetUser returns nil, nil when the
// user has no record. Writes are last-write-wins per user ID.
type UserStorage interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	UserExists(ctx context.Context, userID int64) (bool, error)
	CountUsers(ctx context.Context) (int, error)
}

// FlowStorage holds in-progress authorization handshakes. Implementations
// must be process-local; a restart drops every pending flow.
type FlowStorage interface {
	SaveFlow(ctx context.Context, flow *models.FlowState) error
	GetFlow(ctx context.Context, state string) (*models.FlowState, error)
	DeleteFlow(ctx context.Context, state string) error
}
