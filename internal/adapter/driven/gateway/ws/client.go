package ws

// Client is one connected UI.
type Client interface {
	ID() string
	Send(n Notification) error
	Close() error
}

// Notification is what UI clients receive: {"event": ..., "data": ...}.
type Notification struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}
