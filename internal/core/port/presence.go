package port

import (
	"context"

	"github.com/Wyydra/interbot/internal/core/domain"
)

// PresenceStore mirrors the roster the coordinator maintains so other local
// processes can observe it.
type PresenceStore interface {
	Reset(ctx context.Context) error
	Put(ctx context.Context, user domain.UserInfo) error
	SetStatus(ctx context.Context, username string, status domain.Status) error
	SetCapabilities(ctx context.Context, username string, caps []domain.Capability) error
	SetProperties(ctx context.Context, username string, props map[string]any) error
	Get(ctx context.Context, username string) (domain.UserInfo, bool, error)
}
