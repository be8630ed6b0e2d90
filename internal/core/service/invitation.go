package service

import (
	"github.com/Wyydra/interbot/internal/core/domain"
)

// Invitation is an inbound invitation. Either Accept or Reject may be called,
// once; later calls do nothing.
type Invitation struct {
	sess     *session
	id       domain.InvitationID
	from     string
	activity domain.ActivityName
	role     domain.RoleName
	topic    string
	answered bool
}

func newInvitation(sess *session, ev domain.ActivityInvitation) *Invitation {
	return &Invitation{
		sess:     sess,
		id:       ev.InvitationID,
		from:     ev.Username,
		activity: ev.Activity,
		role:     ev.Role,
		topic:    ev.Topic,
	}
}

func (i *Invitation) ID() domain.InvitationID { return i.id }
func (i *Invitation) From() string            { return i.from }
func (i *Invitation) Topic() string           { return i.topic }
func (i *Invitation) Answered() bool          { return i.answered }

// Accept replies yes and returns the activity we join. The activity has no
// ids until the reply resolves; joined, if set, runs on the loop then.
func (i *Invitation) Accept(joined func(error)) *Activity {
	if i.answered {
		return nil
	}
	i.answered = true
	act := newActivity(i.sess)
	act.name, act.role = i.activity, i.role
	act.join(MethodInvitationReply, []any{i.sess.id, i.id, true}, func(err error) {
		if joined != nil {
			joined(err)
		}
	})
	return act
}

func (i *Invitation) Reject() {
	if i.answered {
		return
	}
	i.answered = true
	i.sess.notify(MethodInvitationReply, i.sess.id, i.id, false)
}
