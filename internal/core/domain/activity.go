package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

type ActivityName string

const (
	ActivityControl     ActivityName = "control"
	ActivityVideoStream ActivityName = "videostream"
	ActivityWebRTC      ActivityName = "webrtc"
)

type RoleName string

const (
	RoleController RoleName = "controller"
	RoleRobot      RoleName = "robot"
	RoleReceiver   RoleName = "receiver"
	RoleSender     RoleName = "sender"
	RoleCaller     RoleName = "caller"
	RoleCallee     RoleName = "callee"
)

// ActivityKind names one of the coordinator's activity slots. The declaration
// order is the teardown order.
type ActivityKind int

const (
	KindCall ActivityKind = iota
	KindVideo
	KindControl

	kindCount
)

// ActivityKinds lists every slot in teardown order: call, video, control.
func ActivityKinds() []ActivityKind {
	return []ActivityKind{KindCall, KindVideo, KindControl}
}

func (k ActivityKind) Valid() bool {
	return k >= 0 && k < kindCount
}

func (k ActivityKind) String() string {
	switch k {
	case KindCall:
		return "call"
	case KindVideo:
		return "video"
	case KindControl:
		return "control"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Descriptor is what a slot negotiates: the activity, our role and the role we
// invite the peer into.
type Descriptor struct {
	Name     ActivityName
	Role     RoleName
	PeerRole RoleName
}

func (k ActivityKind) Descriptor() Descriptor {
	switch k {
	case KindCall:
		return Descriptor{Name: ActivityWebRTC, Role: RoleCaller, PeerRole: RoleCallee}
	case KindVideo:
		return Descriptor{Name: ActivityVideoStream, Role: RoleReceiver, PeerRole: RoleSender}
	case KindControl:
		return Descriptor{Name: ActivityControl, Role: RoleController, PeerRole: RoleRobot}
	}
	return Descriptor{}
}

// StartInfo is returned by the start-activity and invitation-reply calls.
type StartInfo struct {
	ActivityID    ActivityID    `json:"activityId"`
	ParticipantID ParticipantID `json:"participantId"`
}

// Valid reports whether both ids were assigned. The server answers a reply to an
// unknown invitation with empty ids.
func (s StartInfo) Valid() bool {
	return s.ActivityID != "" && s.ParticipantID != ""
}

type InviteResponse string

const (
	InviteAccept  InviteResponse = "Accept"
	InvitePending InviteResponse = "Pending"
	InviteReject  InviteResponse = "Reject"
)

// InviteResult is the server's answer to an invite call.
type InviteResult struct {
	Response     InviteResponse  `json:"response"`
	InvitationID InvitationID    `json:"invitationId"`
	Reason       string          `json:"reason"`
	Extra        json.RawMessage `json:"extra"`
}

var ErrUnknownInviteResponse = errors.New("unknown invite response")

func (r InviteResult) Outcome() Outcome {
	switch r.Response {
	case InviteAccept:
		return Accepted(r.Extra)
	case InvitePending:
		return Pending(r.InvitationID)
	case InviteReject:
		return Rejected(r.Reason)
	}
	return Failed(fmt.Errorf("%w: %q", ErrUnknownInviteResponse, r.Response))
}

type OutcomeKind int

const (
	OutcomeAccepted OutcomeKind = iota
	OutcomePending
	OutcomeRejected
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAccepted:
		return "accepted"
	case OutcomePending:
		return "pending"
	case OutcomeRejected:
		return "rejected"
	case OutcomeFailed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(k))
}

// Outcome is the result of negotiating an activity with a peer. Only the fields
// belonging to Kind are set.
type Outcome struct {
	Kind         OutcomeKind
	Extra        json.RawMessage
	InvitationID InvitationID
	Reason       string
	Err          error
}

func Accepted(extra json.RawMessage) Outcome {
	return Outcome{Kind: OutcomeAccepted, Extra: extra}
}

func Pending(id InvitationID) Outcome {
	return Outcome{Kind: OutcomePending, InvitationID: id}
}

func Rejected(reason string) Outcome {
	return Outcome{Kind: OutcomeRejected, Reason: reason}
}

func Failed(err error) Outcome {
	return Outcome{Kind: OutcomeFailed, Err: err}
}

// ExtraString renders the accept payload, e.g. a video channel handle, as a string.
func (o Outcome) ExtraString() string {
	s, err := decodeOpaque(o.Extra)
	if err != nil {
		return string(o.Extra)
	}
	return s
}
