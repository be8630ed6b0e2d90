package service

import "github.com/Wyydra/interbot/internal/core/domain"

type ActivityView struct {
	Name          domain.ActivityName   `json:"name"`
	Role          domain.RoleName       `json:"role"`
	ActivityID    domain.ActivityID     `json:"activityId,omitempty"`
	ParticipantID domain.ParticipantID  `json:"participantId,omitempty"`
	Started       bool                  `json:"started"`
	Pending       []domain.InvitationID `json:"pending,omitempty"`
}

type InvitationView struct {
	ID    domain.InvitationID `json:"id"`
	From  string              `json:"from"`
	Topic string              `json:"topic,omitempty"`
}

// Snapshot is a read-only copy of the coordinator state.
type Snapshot struct {
	Open        bool                    `json:"open"`
	Session     domain.SessionID        `json:"session"`
	CallStatus  domain.CallStatus       `json:"callStatus"`
	CallPeer    string                  `json:"callPeer,omitempty"`
	Activities  map[string]ActivityView `json:"activities"`
	Invitation  *InvitationView         `json:"invitation,omitempty"`
	P2PTopic    string                  `json:"p2pTopic,omitempty"`
	Controlling bool                    `json:"controlling"`
	Self        domain.UserInfo         `json:"self"`
	Friends     []domain.UserInfo       `json:"friends"`
}

func (c *Coordinator) Snapshot() Snapshot {
	s := Snapshot{
		Open:        c.open,
		Session:     c.sess.id,
		CallStatus:  c.status.Status(),
		CallPeer:    c.status.Peer(),
		Activities:  make(map[string]ActivityView, len(c.slots)),
		P2PTopic:    c.p2pTopic,
		Controlling: c.robot != nil,
		Self:        c.roster.Self(),
		Friends:     c.roster.Friends(),
	}
	for kind, act := range c.slots {
		s.Activities[kind.String()] = ActivityView{
			Name:          act.Name(),
			Role:          act.Role(),
			ActivityID:    act.ID(),
			ParticipantID: act.ParticipantID(),
			Started:       act.Started(),
			Pending:       act.PendingInvitations(),
		}
	}
	if inv := c.invitation; inv != nil {
		s.Invitation = &InvitationView{ID: inv.ID(), From: inv.From(), Topic: inv.Topic()}
	}
	return s
}
