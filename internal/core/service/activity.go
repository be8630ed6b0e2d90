package service

import (
	"encoding/json"
	"slices"

	"github.com/Wyydra/interbot/internal/core/domain"
	"github.com/rs/zerolog/log"
)

// Activity is our participation in one server-side activity. It is started
// once, either by Start or by accepting an invitation, and exited once.
type Activity struct {
	sess *session

	name          domain.ActivityName
	role          domain.RoleName
	activityID    domain.ActivityID
	participantID domain.ParticipantID
	invitations   []domain.InvitationID

	exited bool
}

func newActivity(sess *session) *Activity {
	return &Activity{sess: sess}
}

func (a *Activity) Name() domain.ActivityName { return a.name }
func (a *Activity) Role() domain.RoleName     { return a.role }
func (a *Activity) ID() domain.ActivityID     { return a.activityID }

func (a *Activity) ParticipantID() domain.ParticipantID { return a.participantID }

// Started reports whether the server has assigned both ids.
func (a *Activity) Started() bool {
	return a.activityID != "" && a.participantID != ""
}

func (a *Activity) PendingInvitations() []domain.InvitationID {
	return slices.Clone(a.invitations)
}

// Start asks the server for a new activity. done runs on the loop once the
// ids are assigned or the call failed.
func (a *Activity) Start(name domain.ActivityName, role domain.RoleName, done func(error)) {
	a.name, a.role = name, role
	a.join(MethodStartActivity, []any{a.sess.id, name, role}, done)
}

// join issues method, whose result is a StartInfo, and records the ids.
func (a *Activity) join(method string, args []any, done func(error)) {
	if a.exited {
		done(ErrActivityAbandoned)
		return
	}
	a.sess.call(method, args, func(res json.RawMessage, err error) {
		if err == nil {
			var info domain.StartInfo
			info, err = decodeResult[domain.StartInfo](method, res)
			if err == nil && !info.Valid() {
				err = ErrActivityNotStarted
			}
			if err == nil {
				a.activityID, a.participantID = info.ActivityID, info.ParticipantID
			}
		}
		if err != nil {
			done(err)
			return
		}
		if a.exited {
			// Exit came first; leave what the server just created for us.
			log.Debug().Str("activity", a.activityID.String()).Msg("Activity started after exit, leaving")
			a.leave()
			done(ErrActivityAbandoned)
			return
		}
		done(nil)
	})
}

// Invite invites peer into the started activity. Without ids it fails with
// ErrActivityNotStarted and nothing is sent.
func (a *Activity) Invite(peer string, peerRole domain.RoleName, done func(domain.Outcome)) {
	if !a.Started() || a.exited {
		done(domain.Failed(ErrActivityNotStarted))
		return
	}
	a.sess.call(MethodInvite, []any{a.sess.id, a.participantID, peer, peerRole}, func(res json.RawMessage, err error) {
		if err != nil {
			done(domain.Failed(err))
			return
		}
		r, err := decodeResult[domain.InviteResult](MethodInvite, res)
		if err != nil {
			done(domain.Failed(err))
			return
		}
		if a.exited {
			done(domain.Failed(ErrActivityAbandoned))
			return
		}
		out := r.Outcome()
		if out.Kind == domain.OutcomePending {
			a.invitations = append(a.invitations, out.InvitationID)
		}
		done(out)
	})
}

// StartWithUser starts the activity and invites peer into it. An activity
// whose invitation is rejected or fails is exited before done runs.
func (a *Activity) StartWithUser(name domain.ActivityName, role domain.RoleName, peer string, peerRole domain.RoleName, done func(domain.Outcome)) {
	a.Start(name, role, func(err error) {
		if err != nil {
			done(domain.Failed(err))
			return
		}
		a.Invite(peer, peerRole, func(out domain.Outcome) {
			switch out.Kind {
			case domain.OutcomeRejected, domain.OutcomeFailed:
				a.Exit()
			}
			done(out)
		})
	})
}

// ReceiveInvitationResponse consumes a pending invitation id. It reports
// false for ids this activity never issued or already consumed.
func (a *Activity) ReceiveInvitationResponse(id domain.InvitationID) bool {
	i := slices.Index(a.invitations, id)
	if i < 0 {
		return false
	}
	a.invitations = slices.Delete(a.invitations, i, i+1)
	return true
}

// Exit leaves the activity. Exiting before the start resolved marks the
// activity abandoned; it is left as soon as the ids arrive.
func (a *Activity) Exit() {
	if a.exited {
		return
	}
	a.exited = true
	a.invitations = nil
	if a.Started() {
		a.leave()
	}
}

func (a *Activity) leave() {
	a.sess.notify(MethodExitActivity, a.sess.id, a.participantID)
	a.activityID, a.participantID = "", ""
}
