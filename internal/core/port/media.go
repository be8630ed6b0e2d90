package port

import "context"

// MediaEngine negotiates the media of one webrtc call over the call's p2p topic.
type MediaEngine interface {
	// Call starts negotiation as the caller.
	Call(ctx context.Context) error
	// Listen prepares the callee side. onReady runs once the engine can receive
	// an offer, on an engine goroutine.
	Listen(ctx context.Context, onReady func()) error
	// Hangup tears the engine down. Safe to call more than once.
	Hangup()
}

type MediaFactory interface {
	NewEngine(topic string) (MediaEngine, error)
}
