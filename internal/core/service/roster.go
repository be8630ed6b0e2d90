package service

import (
	"maps"
	"slices"

	"github.com/Wyydra/interbot/internal/core/domain"
)

// Roster holds our own user info and our friends'.
type Roster struct {
	self    domain.UserInfo
	friends map[string]domain.UserInfo
}

func NewRoster(self domain.UserInfo, friends []domain.UserInfo) *Roster {
	r := &Roster{
		self:    self.Clone(),
		friends: make(map[string]domain.UserInfo, len(friends)),
	}
	for _, f := range friends {
		r.friends[f.Username] = f.Clone()
	}
	return r
}

func (r *Roster) Self() domain.UserInfo { return r.self.Clone() }

func (r *Roster) IsSelf(username string) bool {
	return username == r.self.Username
}

func (r *Roster) Friend(username string) (domain.UserInfo, bool) {
	f, ok := r.friends[username]
	if !ok {
		return domain.UserInfo{}, false
	}
	return f.Clone(), true
}

// Friends returns every friend sorted by username.
func (r *Roster) Friends() []domain.UserInfo {
	out := make([]domain.UserInfo, 0, len(r.friends))
	for _, name := range slices.Sorted(maps.Keys(r.friends)) {
		out = append(out, r.friends[name].Clone())
	}
	return out
}

// All returns self followed by the friends.
func (r *Roster) All() []domain.UserInfo {
	return append([]domain.UserInfo{r.Self()}, r.Friends()...)
}

// update applies fn to self or to the named friend and returns the result.
// Unknown users are left alone.
func (r *Roster) update(username string, fn func(*domain.UserInfo)) (domain.UserInfo, bool) {
	if r.IsSelf(username) {
		fn(&r.self)
		return r.self.Clone(), true
	}
	f, ok := r.friends[username]
	if !ok {
		return domain.UserInfo{}, false
	}
	fn(&f)
	r.friends[username] = f
	return f.Clone(), true
}
