package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Wyydra/interbot/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/interbot/internal/core/domain"
	"github.com/Wyydra/interbot/internal/core/port"
	"github.com/Wyydra/interbot/internal/core/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	Coordinator *service.Coordinator
	Loop        *service.Loop
	Hub         *ws.Hub
	Presence    port.PresenceStore
	Metrics     http.Handler
}

func NewHandler(coordinator *service.Coordinator, loop *service.Loop, hub *ws.Hub, presence port.PresenceStore, metrics http.Handler) *Handler {
	return &Handler{
		Coordinator: coordinator,
		Loop:        loop,
		Hub:         hub,
		Presence:    presence,
		Metrics:     metrics,
	}
}

func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/status", h.status)
	if h.Presence != nil {
		r.Get("/presence/{username}", h.presence)
	}

	r.Post("/control/{username}", h.begin((*service.Coordinator).BeginControl))
	r.Delete("/control", h.action((*service.Coordinator).EndControl))
	r.Post("/video/{username}", h.begin((*service.Coordinator).BeginRobotVideo))
	r.Delete("/video", h.action((*service.Coordinator).EndRobotVideo))
	r.Post("/call/accept", h.action((*service.Coordinator).AcceptCall))
	r.Post("/call/reject", h.action((*service.Coordinator).RejectCall))
	r.Post("/call/{username}", h.begin((*service.Coordinator).BeginCall))
	r.Delete("/call", h.action((*service.Coordinator).EndCall))
	r.Delete("/activities", h.action((*service.Coordinator).EndAllActivities))

	r.Post("/robot/velocity", h.velocity)
	r.Post("/robot/pantilt", h.panTilt)

	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}
	r.Get("/ws", h.ServeWS)

	return r
}

type doResult struct {
	snap service.Snapshot
	err  error
}

// do runs fn on the coordinator's loop and returns the state it left behind.
// Nothing is shared with the task if the caller gives up while it is queued.
func (h *Handler) do(ctx context.Context, fn func(*service.Coordinator) error) (service.Snapshot, error) {
	res := make(chan doResult, 1)
	if err := h.Loop.Do(ctx, func() {
		err := fn(h.Coordinator)
		res <- doResult{snap: h.Coordinator.Snapshot(), err: err}
	}); err != nil {
		return service.Snapshot{}, err
	}
	r := <-res
	return r.snap, r.err
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	snap, err := h.do(r.Context(), func(*service.Coordinator) error { return nil })
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// begin starts a negotiation with the {username} peer. It answers before the
// peer does.
func (h *Handler) begin(fn func(*service.Coordinator, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := chi.URLParam(r, "username")
		snap, err := h.do(r.Context(), func(c *service.Coordinator) error { return fn(c, username) })
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, snap)
	}
}

func (h *Handler) action(fn func(*service.Coordinator) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := h.do(r.Context(), fn)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// presence serves a user as the presence mirror holds it, which may lag the
// coordinator by the writes still queued.
func (h *Handler) presence(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	user, ok, err := h.Presence.Get(r.Context(), username)
	if err != nil {
		log.Error().Err(err).Str("user", username).Msg("Failed to read presence")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown user"})
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type velocityRequest struct {
	Linear  float64 `json:"linear"`
	Angular float64 `json:"angular"`
}

func (h *Handler) velocity(w http.ResponseWriter, r *http.Request) {
	var req velocityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid velocity", http.StatusBadRequest)
		return
	}
	if _, err := h.do(r.Context(), func(c *service.Coordinator) error { return c.Move(req.Linear, req.Angular) }); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type panTiltRequest struct {
	Instruction domain.PanTiltInstruction `json:"instruction"`
}

func (h *Handler) panTilt(w http.ResponseWriter, r *http.Request) {
	var req panTiltRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid instruction", http.StatusBadRequest)
		return
	}
	if _, err := h.do(r.Context(), func(c *service.Coordinator) error { return c.PanTilt(req.Instruction) }); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrClosed), errors.Is(err, service.ErrLoopStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrUnknownPeer), errors.Is(err, service.ErrNoActivity), errors.Is(err, service.ErrNoInvitation):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotCapable), errors.Is(err, service.ErrSlotOccupied),
		errors.Is(err, service.ErrCallStatus), errors.Is(err, service.ErrRobotInactive):
		return http.StatusConflict
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, service.ErrInvalidInstruction):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.Error().Err(err).Msg("Request failed")
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}
