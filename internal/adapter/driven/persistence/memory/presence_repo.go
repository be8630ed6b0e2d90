package memory

import (
	"context"
	"sync"

	"github.com/Wyydra/interbot/internal/core/domain"
)

// PresenceRepository keeps the presence mirror in process.
type PresenceRepository struct {
	mu    sync.Mutex
	users map[string]domain.UserInfo
}

func NewPresenceRepository() *PresenceRepository {
	return &PresenceRepository{
		users: make(map[string]domain.UserInfo),
	}
}

func (r *PresenceRepository) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.users)
	return nil
}

func (r *PresenceRepository) Put(ctx context.Context, user domain.UserInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.Username] = user.Clone()
	return nil
}

func (r *PresenceRepository) SetStatus(ctx context.Context, username string, status domain.Status) error {
	return r.update(username, func(u *domain.UserInfo) { u.Status = status })
}

func (r *PresenceRepository) SetCapabilities(ctx context.Context, username string, caps []domain.Capability) error {
	return r.update(username, func(u *domain.UserInfo) {
		u.Capabilities = append([]domain.Capability(nil), caps...)
	})
}

func (r *PresenceRepository) SetProperties(ctx context.Context, username string, props map[string]any) error {
	return r.update(username, func(u *domain.UserInfo) {
		u.Properties = domain.UserInfo{Properties: props}.Clone().Properties
	})
}

func (r *PresenceRepository) Get(ctx context.Context, username string) (domain.UserInfo, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[username]
	if !ok {
		return domain.UserInfo{}, false, nil
	}
	return u.Clone(), true, nil
}

// update creates the entry when it is missing.
func (r *PresenceRepository) update(username string, fn func(*domain.UserInfo)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[username]
	if !ok {
		u = domain.UserInfo{Username: username}
	}
	fn(&u)
	r.users[username] = u
	return nil
}
