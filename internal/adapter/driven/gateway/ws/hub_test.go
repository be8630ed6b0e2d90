package ws

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Wyydra/interbot/internal/core/domain"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	id      string
	mu      sync.Mutex
	got     []Notification
	closed  bool
	sendErr error
}

func (c *fakeClient) ID() string { return c.id }

func (c *fakeClient) Send(n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.got = append(c.got, n)
	return nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeClient) events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, n := range c.got {
		out = append(out, n.Event)
	}
	return out
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestHubBroadcastsPresenterCalls(t *testing.T) {
	h := NewHub()
	go h.Run()
	defer h.Stop()

	ui := &fakeClient{id: "ui-1"}
	broken := &fakeClient{id: "ui-2", sendErr: errors.New("gone")}
	h.Register(ui)
	h.Register(broken)

	h.StartControl("rob")
	h.CallStatusChanged(domain.CallTransition{From: domain.CallReady, To: domain.CallReceiving, Peer: "bob"})
	h.RobotLatency(120 * time.Millisecond)
	h.Alert("robot busy")

	require.Eventually(t, func() bool { return len(ui.events()) == 4 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{EventStartControl, EventCallStatus, EventRobotLatency, EventAlert}, ui.events())
	ui.mu.Lock()
	require.Equal(t, map[string]int64{"ms": 120}, ui.got[2].Data)
	ui.mu.Unlock()
	require.True(t, broken.isClosed())
}

func TestHubUnregisterAndStop(t *testing.T) {
	h := NewHub()
	go h.Run()

	a := &fakeClient{id: "a"}
	b := &fakeClient{id: "b"}
	h.Register(a)
	h.Register(b)
	h.Unregister(a)
	require.Eventually(t, a.isClosed, time.Second, 5*time.Millisecond)

	h.Stop()
	require.Eventually(t, b.isClosed, time.Second, 5*time.Millisecond)

	late := &fakeClient{id: "late"}
	h.Register(late)
	require.Eventually(t, late.isClosed, time.Second, 5*time.Millisecond)
}
