package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEngine(t *testing.T) {
	f := NewFactory()
	me, err := f.NewEngine("p2p-1")
	require.NoError(t, err)
	e := me.(*Engine)

	ready := make(chan struct{})
	require.NoError(t, e.Listen(context.Background(), func() { close(ready) }))
	select {
	case <-ready:
	case <-time.After(time.Second):
		require.FailNow(t, "not ready")
	}

	require.NoError(t, e.Call(context.Background()))
	e.Hangup()

	require.True(t, e.Calling())
	require.True(t, e.HungUp())
	require.Equal(t, "p2p-1", e.Topic())
	require.Len(t, f.Engines(), 1)
}
