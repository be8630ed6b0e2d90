package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Wyydra/interbot/internal/core/domain"
	"github.com/Wyydra/interbot/internal/core/port"
	"github.com/rs/zerolog/log"
)

func (c *Coordinator) postEvent(_ string, raw json.RawMessage) {
	c.loop.Post(func() { c.HandleEvent(raw) })
}

func (c *Coordinator) postPing(string, json.RawMessage) {
	c.loop.Post(c.onSessionPing)
}

func (c *Coordinator) onSessionPing() {
	if !c.open {
		return
	}
	if err := c.channel.Publish(domain.TopicSessionPong, c.sess.id); err != nil {
		log.Warn().Err(err).Msg("Failed to answer session ping")
	}
}

// HandleEvent applies one user event. Malformed and unexpected events are
// logged and dropped.
func (c *Coordinator) HandleEvent(raw json.RawMessage) {
	if !c.open {
		return
	}
	ev, typ, err := domain.DecodeEvent(raw)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, domain.ErrUnknownEvent) {
			reason = "unknown"
		}
		log.Debug().Err(err).Msg("Dropping user event")
		c.metrics.EventDropped(typ, reason)
		return
	}
	c.metrics.EventReceived(typ)

	switch e := ev.(type) {
	case domain.StatusUpdate:
		c.onStatusUpdate(e)
	case domain.CapabilityUpdate:
		c.onCapabilityUpdate(e)
	case domain.PropertyUpdate:
		c.onPropertyUpdate(e)
	case domain.ActivityInvitation:
		c.onActivityInvitation(e)
	case domain.InvitationReply:
		c.onInvitationReply(e)
	case domain.CancelInvitation:
		c.onCancelInvitation(e)
	case domain.JoinActivity:
		log.Debug().Str("user", e.Username).Msg("Peer joined activity")
	case domain.ExitActivity:
		c.onExitActivity(e)
	case domain.SystemLogout:
		log.Info().Msg("Logged out by the server")
		c.Close()
		c.presenter.SystemLogout()
	}
}

func (c *Coordinator) drop(ev domain.Event, reason string) {
	log.Debug().Str("type", string(ev.Type())).Str("user", ev.Subject()).Str("reason", reason).Msg("Dropping user event")
	c.metrics.EventDropped(ev.Type(), reason)
}

func (c *Coordinator) onStatusUpdate(e domain.StatusUpdate) {
	if _, ok := c.roster.update(e.Username, func(u *domain.UserInfo) { u.Status = e.Status }); !ok {
		c.drop(e, "unknown user")
		return
	}
	c.mirror(func(ctx context.Context, store port.PresenceStore) error {
		return store.SetStatus(ctx, e.Username, e.Status)
	})
}

func (c *Coordinator) onCapabilityUpdate(e domain.CapabilityUpdate) {
	u, ok := c.roster.update(e.Username, func(u *domain.UserInfo) { u.Capabilities = e.Capabilities })
	if !ok {
		c.drop(e, "unknown user")
		return
	}
	if c.roster.IsSelf(e.Username) {
		c.presenter.UpdateUserCapability(u)
	} else {
		c.presenter.UpdateFriendCapability(u)
	}
	c.mirror(func(ctx context.Context, store port.PresenceStore) error {
		return store.SetCapabilities(ctx, e.Username, e.Capabilities)
	})
}

func (c *Coordinator) onPropertyUpdate(e domain.PropertyUpdate) {
	u, ok := c.roster.update(e.Username, func(u *domain.UserInfo) { u.Properties = e.Properties })
	if !ok {
		c.drop(e, "unknown user")
		return
	}
	if c.roster.IsSelf(e.Username) {
		c.presenter.UpdateUserProperties(u)
	} else {
		c.presenter.UpdateFriendProperties(u)
	}
	c.mirror(func(ctx context.Context, store port.PresenceStore) error {
		return store.SetProperties(ctx, e.Username, e.Properties)
	})
}

// onActivityInvitation takes an incoming call when we are free for one and
// rejects every other invitation.
func (c *Coordinator) onActivityInvitation(e domain.ActivityInvitation) {
	inv := newInvitation(c.sess, e)
	_, known := c.roster.Friend(e.Username)

	var reason string
	switch {
	case !e.IsWebRTCCallee():
		reason = "unsupported invitation"
	case !known:
		reason = "unknown user"
	case c.invitation != nil:
		reason = "invitation outstanding"
		if c.invitation.From() == e.Username {
			log.Warn().Str("user", e.Username).Msg("Second call invitation from the same peer")
		}
	case c.slots.get(domain.KindCall) != nil || c.status.Status() != domain.CallReady:
		reason = "busy"
	}
	if reason != "" {
		c.drop(e, reason)
		inv.Reject()
		return
	}

	if err := c.status.ReceiveCall(e.Username); err != nil {
		log.Error().Err(err).Msg("Failed to move call status")
		inv.Reject()
		return
	}
	c.invitation = inv
	c.p2pTopic = e.Topic
	log.Info().Str("user", e.Username).Str("invitation", e.InvitationID.String()).Msg("Incoming call")
}

// onInvitationReply completes a negotiation left pending by the peer.
func (c *Coordinator) onInvitationReply(e domain.InvitationReply) {
	for _, kind := range domain.ActivityKinds() {
		act := c.slots.get(kind)
		if act == nil || !act.ReceiveInvitationResponse(e.InvitationID) {
			continue
		}
		c.metrics.ActivityOutcome(kind.Descriptor().Name, replyOutcome(e.Accepted))
		if e.Accepted {
			c.activate(kind, e.Username, e.Topic)
			return
		}
		log.Info().Str("kind", kind.String()).Str("user", e.Username).Msg("Invitation declined")
		if kind != domain.KindCall {
			c.presenter.Alert(e.Username + " declined.")
		}
		c.teardown(kind, true)
		return
	}
	c.drop(e, "no matching invitation")
}

func replyOutcome(accepted bool) domain.OutcomeKind {
	if accepted {
		return domain.OutcomeAccepted
	}
	return domain.OutcomeRejected
}

func (c *Coordinator) onCancelInvitation(e domain.CancelInvitation) {
	if c.invitation == nil || c.invitation.ID() != e.InvitationID {
		c.drop(e, "no matching invitation")
		return
	}
	log.Info().Str("user", e.Username).Msg("Call cancelled by caller")
	c.dropInvitation(true)
}

func (c *Coordinator) onExitActivity(e domain.ExitActivity) {
	for _, kind := range domain.ActivityKinds() {
		act := c.slots.get(kind)
		if act == nil || act.ID() == "" || act.ID() != e.ActivityID {
			continue
		}
		c.teardown(kind, true)
		return
	}
	c.drop(e, "no matching activity")
}
