package ws

import (
	"time"

	"github.com/Wyydra/interbot/internal/core/domain"
	"github.com/rs/zerolog/log"
)

const (
	EventUserCapability   = "user_capability"
	EventFriendCapability = "friend_capability"
	EventUserProperties   = "user_properties"
	EventFriendProperties = "friend_properties"
	EventStartControl     = "start_control"
	EventEndControl       = "end_control"
	EventStartVideo       = "start_video"
	EventEndVideo         = "end_video"
	EventCallStatus       = "call_status"
	EventRobotLatency     = "robot_latency"
	EventAlert            = "alert"
	EventLogout           = "logout"
)

// Hub fans presenter notifications out to every connected UI.
// implements port.Presenter
type Hub struct {
	clients    map[Client]bool
	broadcast  chan Notification
	register   chan Client
	unregister chan Client
	quit       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[Client]bool),
		broadcast:  make(chan Notification, 64),
		register:   make(chan Client),
		unregister: make(chan Client),
		quit:       make(chan struct{}),
	}
}

func (h *Hub) UpdateUserCapability(self domain.UserInfo) {
	h.notify(EventUserCapability, self)
}

func (h *Hub) UpdateFriendCapability(friend domain.UserInfo) {
	h.notify(EventFriendCapability, friend)
}

func (h *Hub) UpdateUserProperties(self domain.UserInfo) {
	h.notify(EventUserProperties, self)
}

func (h *Hub) UpdateFriendProperties(friend domain.UserInfo) {
	h.notify(EventFriendProperties, friend)
}

func (h *Hub) StartControl(robot string) {
	h.notify(EventStartControl, map[string]string{"robot": robot})
}

func (h *Hub) EndControl(remote bool) {
	h.notify(EventEndControl, map[string]bool{"remote": remote})
}

func (h *Hub) StartRobotVideo(streamURL string) {
	h.notify(EventStartVideo, map[string]string{"url": streamURL})
}

func (h *Hub) EndRobotVideo(remote bool) {
	h.notify(EventEndVideo, map[string]bool{"remote": remote})
}

func (h *Hub) CallStatusChanged(t domain.CallTransition) {
	h.notify(EventCallStatus, t)
}

func (h *Hub) RobotLatency(d time.Duration) {
	h.notify(EventRobotLatency, map[string]int64{"ms": d.Milliseconds()})
}

func (h *Hub) Alert(msg string) {
	h.notify(EventAlert, map[string]string{"message": msg})
}

func (h *Hub) SystemLogout() {
	h.notify(EventLogout, nil)
}

// notify never blocks the caller, which is the coordinator's loop.
func (h *Hub) notify(event string, data any) {
	select {
	case h.broadcast <- Notification{Event: event, Data: data}:
	default:
		log.Warn().Str("event", event).Msg("Broadcast channel full, dropping notification")
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			log.Info().Str("client_id", client.ID()).Msg("Client registered")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
				log.Info().Str("client_id", client.ID()).Msg("Client unregistered")
			}

		case n := <-h.broadcast:
			for client := range h.clients {
				if err := client.Send(n); err != nil {
					log.Error().Err(err).Str("client_id", client.ID()).Msg("Error sending notification")
					client.Close()
					delete(h.clients, client)
				}
			}
		}
	}
}

func (h *Hub) Register(c Client) {
	select {
	case h.register <- c:
	case <-h.quit:
		c.Close()
	}
}

func (h *Hub) Unregister(c Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

func (h *Hub) Stop() {
	close(h.quit)
}
