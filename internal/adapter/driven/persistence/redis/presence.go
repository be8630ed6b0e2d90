package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Wyydra/interbot/internal/core/domain"
	"github.com/redis/go-redis/v9"
)

const (
	fieldType         = "type"
	fieldStatus       = "status"
	fieldCapabilities = "capabilities"
	fieldProperties   = "properties"
)

// PresenceStore mirrors the roster into Redis: one hash per user plus a set
// of known usernames.
type PresenceStore struct {
	rdb      *redis.Client
	prefix   string
	keyUsers string
}

// NewPresenceStore builds a store under prefix, "interbot" when empty.
func NewPresenceStore(rdb *redis.Client, prefix string) *PresenceStore {
	p := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if p == "" {
		p = "interbot"
	}
	return &PresenceStore{
		rdb:      rdb,
		prefix:   p,
		keyUsers: p + ":users",
	}
}

func (s *PresenceStore) userKey(username string) string {
	return fmt.Sprintf("%s:user:%s", s.prefix, username)
}

func (s *PresenceStore) Reset(ctx context.Context) error {
	names, err := s.rdb.SMembers(ctx, s.keyUsers).Result()
	if err != nil {
		return err
	}
	keys := []string{s.keyUsers}
	for _, n := range names {
		keys = append(keys, s.userKey(n))
	}
	return s.rdb.Del(ctx, keys...).Err()
}

func (s *PresenceStore) Put(ctx context.Context, user domain.UserInfo) error {
	fields, err := encodeUser(user)
	if err != nil {
		return err
	}
	key := s.userKey(user.Username)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		pipe.SAdd(ctx, s.keyUsers, user.Username)
		return nil
	})
	return err
}

func (s *PresenceStore) SetStatus(ctx context.Context, username string, status domain.Status) error {
	return s.set(ctx, username, fieldStatus, string(status))
}

func (s *PresenceStore) SetCapabilities(ctx context.Context, username string, caps []domain.Capability) error {
	b, err := json.Marshal(caps)
	if err != nil {
		return err
	}
	return s.set(ctx, username, fieldCapabilities, string(b))
}

func (s *PresenceStore) SetProperties(ctx context.Context, username string, props map[string]any) error {
	b, err := json.Marshal(props)
	if err != nil {
		return err
	}
	return s.set(ctx, username, fieldProperties, string(b))
}

func (s *PresenceStore) set(ctx context.Context, username, field, value string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.userKey(username), field, value)
		pipe.SAdd(ctx, s.keyUsers, username)
		return nil
	})
	return err
}

func (s *PresenceStore) Get(ctx context.Context, username string) (domain.UserInfo, bool, error) {
	fields, err := s.rdb.HGetAll(ctx, s.userKey(username)).Result()
	if err != nil {
		return domain.UserInfo{}, false, err
	}
	if len(fields) == 0 {
		return domain.UserInfo{}, false, nil
	}
	u, err := decodeUser(username, fields)
	if err != nil {
		return domain.UserInfo{}, false, err
	}
	return u, true, nil
}

func encodeUser(u domain.UserInfo) (map[string]any, error) {
	caps, err := json.Marshal(u.Capabilities)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{
		fieldType:         string(u.Type),
		fieldStatus:       string(u.Status),
		fieldCapabilities: string(caps),
	}
	if u.Properties != nil {
		props, err := json.Marshal(u.Properties)
		if err != nil {
			return nil, err
		}
		fields[fieldProperties] = string(props)
	}
	return fields, nil
}

func decodeUser(username string, fields map[string]string) (domain.UserInfo, error) {
	u := domain.UserInfo{
		Username: username,
		Type:     domain.UserType(fields[fieldType]),
		Status:   domain.Status(fields[fieldStatus]),
	}
	if v, ok := fields[fieldCapabilities]; ok && v != "" {
		if err := json.Unmarshal([]byte(v), &u.Capabilities); err != nil {
			return u, fmt.Errorf("decode capabilities of %s: %w", username, err)
		}
	}
	if v, ok := fields[fieldProperties]; ok && v != "" {
		if err := json.Unmarshal([]byte(v), &u.Properties); err != nil {
			return u, fmt.Errorf("decode properties of %s: %w", username, err)
		}
	}
	return u, nil
}
