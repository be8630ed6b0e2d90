package memory

import (
	"context"
	"testing"

	"github.com/Wyydra/interbot/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func TestPresenceRepository(t *testing.T) {
	ctx := context.Background()
	r := NewPresenceRepository()

	require.NoError(t, r.Put(ctx, domain.UserInfo{Username: "rob", Type: domain.UserRobot}))
	require.NoError(t, r.SetStatus(ctx, "rob", domain.StatusOnline))
	require.NoError(t, r.SetCapabilities(ctx, "rob", []domain.Capability{{Activity: domain.ActivityControl, Role: domain.RoleRobot}}))
	props := map[string]any{"battery": 50.0}
	require.NoError(t, r.SetProperties(ctx, "rob", props))
	props["battery"] = 1.0

	u, ok, err := r.Get(ctx, "rob")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.StatusOnline, u.Status)
	require.True(t, u.CanBeControlled())
	require.Equal(t, 50.0, u.Properties["battery"])

	require.NoError(t, r.SetStatus(ctx, "bob", domain.StatusOffline))
	_, ok, err = r.Get(ctx, "bob")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, r.Reset(ctx))
	_, ok, err = r.Get(ctx, "rob")
	require.NoError(t, err)
	require.False(t, ok)
}
