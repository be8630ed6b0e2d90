package port

import (
	"context"
	"encoding/json"
)

// ReplyFunc receives the outcome of a Call. It runs exactly once, on a goroutine
// owned by the channel.
type ReplyFunc func(result json.RawMessage, err error)

// EventHandler receives events published on a subscribed topic.
type EventHandler func(topic string, event json.RawMessage)

// Channel is the session's shared RPC and publish/subscribe substrate.
type Channel interface {
	// Call issues method without waiting for the result. reply may be nil for
	// fire-and-forget calls.
	Call(ctx context.Context, method string, args []any, reply ReplyFunc)
	Publish(topic string, payload any) error
	Subscribe(topic string, handler EventHandler) error
	Unsubscribe(topic string) error
}
