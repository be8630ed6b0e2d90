package memory

import (
	"context"
	"sync"

	"github.com/Wyydra/interbot/internal/core/port"
)

// Factory builds engines that negotiate nothing. The call is still set up on
// the server; no media flows. Used where webrtc is unavailable.
type Factory struct {
	mu      sync.Mutex
	engines []*Engine
}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) NewEngine(topic string) (port.MediaEngine, error) {
	e := &Engine{topic: topic}
	f.mu.Lock()
	f.engines = append(f.engines, e)
	f.mu.Unlock()
	return e, nil
}

// Engines returns every engine built so far.
func (f *Factory) Engines() []*Engine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Engine(nil), f.engines...)
}

type Engine struct {
	topic string

	mu      sync.Mutex
	calling bool
	hungUp  bool
}

func (e *Engine) Topic() string { return e.topic }

func (e *Engine) Call(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calling = true
	return nil
}

// Listen is ready at once.
func (e *Engine) Listen(ctx context.Context, onReady func()) error {
	go onReady()
	return nil
}

func (e *Engine) Hangup() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hungUp = true
}

func (e *Engine) Calling() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calling
}

func (e *Engine) HungUp() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hungUp
}
