package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Wyydra/interbot/internal/core/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestUserCodec(t *testing.T) {
	u := domain.UserInfo{
		Username:     "rob",
		Type:         domain.UserRobot,
		Status:       domain.StatusOnline,
		Capabilities: []domain.Capability{{Activity: domain.ActivityControl, Role: domain.RoleRobot}},
		Properties:   map[string]any{"battery": 42.0},
	}
	fields, err := encodeUser(u)
	require.NoError(t, err)

	strs := make(map[string]string, len(fields))
	for k, v := range fields {
		strs[k] = v.(string)
	}
	got, err := decodeUser("rob", strs)
	require.NoError(t, err)
	require.Equal(t, u, got)

	_, err = decodeUser("rob", map[string]string{fieldCapabilities: "{"})
	require.Error(t, err)
}

func TestKeys(t *testing.T) {
	s := NewPresenceStore(nil, " team: ")
	require.Equal(t, "team:users", s.keyUsers)
	require.Equal(t, "team:user:rob", s.userKey("rob"))
	require.Equal(t, "interbot:users", NewPresenceStore(nil, "").keyUsers)
}

// Runs against a real server when INTERBOT_TEST_REDIS names one.
func TestPresenceStoreRedis(t *testing.T) {
	addr := os.Getenv("INTERBOT_TEST_REDIS")
	if addr == "" {
		t.Skip("INTERBOT_TEST_REDIS not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s := NewPresenceStore(rdb, "interbot-test")
	require.NoError(t, s.Reset(ctx))
	require.NoError(t, s.Put(ctx, domain.UserInfo{Username: "rob", Type: domain.UserRobot}))
	require.NoError(t, s.SetStatus(ctx, "rob", domain.StatusOnline))

	u, ok, err := s.Get(ctx, "rob")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.StatusOnline, u.Status)

	require.NoError(t, s.Reset(ctx))
	_, ok, err = s.Get(ctx, "rob")
	require.NoError(t, err)
	require.False(t, ok)
}
