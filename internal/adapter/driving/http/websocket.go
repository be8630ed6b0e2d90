package http

import (
	"net/http"
	"sync"

	"github.com/Wyydra/interbot/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/interbot/internal/core/domain"
	"github.com/Wyydra/interbot/internal/core/service"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The agent only listens on a local address.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WSClient struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *WSClient) ID() string {
	return c.id
}

func (c *WSClient) Send(n ws.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(n)
}

func (c *WSClient) Close() error {
	return c.conn.Close()
}

type commandDTO struct {
	Type        string                    `json:"type"`
	Linear      float64                   `json:"linear"`
	Angular     float64                   `json:"angular"`
	Instruction domain.PanTiltInstruction `json:"instruction"`
}

// ServeWS pushes presenter notifications to a UI and takes its joystick
// commands.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Error while upgrading ws")
		return
	}

	client := &WSClient{
		id:   uuid.NewString(),
		conn: conn,
	}

	l := log.With().Str("client_id", client.id).Logger()
	l.Info().Msg("New client connected")

	h.Hub.Register(client)

	defer func() {
		l.Info().Msg("Client disconnected")
		h.Hub.Unregister(client)
		conn.Close()
	}()

	for {
		var cmd commandDTO
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l.Error().Err(err).Msg("Unexpected close error")
			}
			break
		}

		var fn func(*service.Coordinator) error
		switch cmd.Type {
		case "velocity":
			fn = func(c *service.Coordinator) error { return c.Move(cmd.Linear, cmd.Angular) }
		case "pantilt":
			fn = func(c *service.Coordinator) error { return c.PanTilt(cmd.Instruction) }
		default:
			l.Debug().Str("type", cmd.Type).Msg("Unknown command")
			continue
		}
		if _, err := h.do(r.Context(), fn); err != nil {
			l.Debug().Err(err).Str("type", cmd.Type).Msg("Command refused")
			if err := client.Send(ws.Notification{Event: "error", Data: map[string]string{"message": err.Error()}}); err != nil {
				break
			}
		}
	}
}
