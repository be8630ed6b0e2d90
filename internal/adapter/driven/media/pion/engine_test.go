package pion

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/Wyydra/interbot/internal/core/domain"
	"github.com/Wyydra/interbot/internal/core/port"
	"github.com/stretchr/testify/require"
)

// bus delivers every publication to every subscriber of the topic, on its own
// goroutine, like a broker would.
type bus struct {
	mu       sync.Mutex
	handlers map[string][]port.EventHandler
	sent     []domain.Signal
}

func newBus() *bus {
	return &bus{handlers: make(map[string][]port.EventHandler)}
}

// endpoint is one participant's view of the bus.
type endpoint struct {
	*bus
}

func (b *bus) endpoint() *endpoint {
	return &endpoint{bus: b}
}

func (e *endpoint) Call(context.Context, string, []any, port.ReplyFunc) {}

func (e *endpoint) Publish(topic string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	e.mu.Lock()
	if s, ok := payload.(domain.Signal); ok {
		e.sent = append(e.sent, s)
	}
	hs := append([]port.EventHandler(nil), e.handlers[topic]...)
	e.mu.Unlock()
	for _, h := range hs {
		go h(topic, raw)
	}
	return nil
}

func (e *endpoint) Subscribe(topic string, h port.EventHandler) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[topic] = append(e.handlers[topic], h)
	return nil
}

func (e *endpoint) Unsubscribe(string) error { return nil }

func (b *bus) signals(t domain.SignalType) []domain.Signal {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.Signal
	for _, s := range b.sent {
		if s.Type == t {
			out = append(out, s)
		}
	}
	return out
}

func TestFactoryNeedsTopic(t *testing.T) {
	f, err := NewFactory(newBus().endpoint(), "alice", nil)
	require.NoError(t, err)
	_, err = f.NewEngine("")
	require.ErrorIs(t, err, ErrNoTopic)
}

func TestOfferAnswerExchange(t *testing.T) {
	b := newBus()
	caller, err := NewFactory(b.endpoint(), "alice", nil)
	require.NoError(t, err)
	callee, err := NewFactory(b.endpoint(), "bob", nil)
	require.NoError(t, err)

	out, err := caller.NewEngine("p2p-1")
	require.NoError(t, err)
	in, err := callee.NewEngine("p2p-1")
	require.NoError(t, err)
	defer out.Hangup()
	defer in.Hangup()

	ready := make(chan struct{})
	require.NoError(t, in.Listen(context.Background(), func() { close(ready) }))
	select {
	case <-ready:
	case <-time.After(time.Second):
		require.FailNow(t, "listener never became ready")
	}

	require.NoError(t, out.Call(context.Background()))

	require.Eventually(t, func() bool {
		return len(b.signals(domain.SignalAnswer)) == 1
	}, 5*time.Second, 20*time.Millisecond)

	offers := b.signals(domain.SignalOffer)
	require.Len(t, offers, 1)
	require.Equal(t, "alice", offers[0].From)
	require.Equal(t, "bob", b.signals(domain.SignalAnswer)[0].From)
}

func TestHangupIsIdempotent(t *testing.T) {
	b := newBus()
	f, err := NewFactory(b.endpoint(), "alice", nil)
	require.NoError(t, err)
	e, err := f.NewEngine("p2p-2")
	require.NoError(t, err)

	e.Hangup()
	e.Hangup()
	require.Empty(t, b.signals(domain.SignalHangup))
	require.ErrorIs(t, e.Call(context.Background()), ErrHungUp)
}
