package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMalformedEvent = errors.New("malformed user event")
	ErrUnknownEvent   = errors.New("unknown user event")
)

type EventType string

const (
	EventStatusUpdate       EventType = "StatusUpdate"
	EventCapabilityUpdate   EventType = "CapabilityUpdate"
	EventPropertyUpdate     EventType = "PropertyUpdate"
	EventActivityInvitation EventType = "ActivityInvitation"
	EventInvitationReply    EventType = "InvitationReply"
	EventCancelInvitation   EventType = "CancelInvitation"
	EventJoinActivity       EventType = "JoinActivity"
	EventExitActivity       EventType = "ExitActivity"
	EventSystemLogout       EventType = "SystemLogout"
)

// Event is one server pushed user event. The set of implementations is closed;
// handlers switch over the concrete types.
type Event interface {
	Type() EventType
	Subject() string
	isEvent()
}

type StatusUpdate struct {
	Username string
	Status   Status
}

type CapabilityUpdate struct {
	Username     string
	Capabilities []Capability
}

type PropertyUpdate struct {
	Username   string
	Properties map[string]any
}

// ActivityInvitation invites us into an activity. Arity is the length of the
// event's data; only a four element webrtc/callee invitation can be served.
type ActivityInvitation struct {
	Username     string
	Activity     ActivityName
	Role         RoleName
	InvitationID InvitationID
	Topic        string
	Arity        int
}

func (e ActivityInvitation) IsWebRTCCallee() bool {
	return e.Arity == 4 && e.Activity == ActivityWebRTC && e.Role == RoleCallee
}

type InvitationReply struct {
	Username     string
	InvitationID InvitationID
	Accepted     bool
	Topic        string
}

type CancelInvitation struct {
	Username     string
	InvitationID InvitationID
}

type JoinActivity struct {
	Username string
}

type ExitActivity struct {
	Username      string
	ActivityID    ActivityID
	ParticipantID ParticipantID
}

type SystemLogout struct {
	Username string
}

func (StatusUpdate) Type() EventType       { return EventStatusUpdate }
func (CapabilityUpdate) Type() EventType   { return EventCapabilityUpdate }
func (PropertyUpdate) Type() EventType     { return EventPropertyUpdate }
func (ActivityInvitation) Type() EventType { return EventActivityInvitation }
func (InvitationReply) Type() EventType    { return EventInvitationReply }
func (CancelInvitation) Type() EventType   { return EventCancelInvitation }
func (JoinActivity) Type() EventType       { return EventJoinActivity }
func (ExitActivity) Type() EventType       { return EventExitActivity }
func (SystemLogout) Type() EventType       { return EventSystemLogout }

func (e StatusUpdate) Subject() string       { return e.Username }
func (e CapabilityUpdate) Subject() string   { return e.Username }
func (e PropertyUpdate) Subject() string     { return e.Username }
func (e ActivityInvitation) Subject() string { return e.Username }
func (e InvitationReply) Subject() string    { return e.Username }
func (e CancelInvitation) Subject() string   { return e.Username }
func (e JoinActivity) Subject() string       { return e.Username }
func (e ExitActivity) Subject() string       { return e.Username }
func (e SystemLogout) Subject() string       { return e.Username }

func (StatusUpdate) isEvent()       {}
func (CapabilityUpdate) isEvent()   {}
func (PropertyUpdate) isEvent()     {}
func (ActivityInvitation) isEvent() {}
func (InvitationReply) isEvent()    {}
func (CancelInvitation) isEvent()   {}
func (JoinActivity) isEvent()       {}
func (ExitActivity) isEvent()       {}
func (SystemLogout) isEvent()       {}

type wireEvent struct {
	Type     EventType         `json:"type"`
	Username string            `json:"username"`
	Data     []json.RawMessage `json:"data"`
}

// DecodeEvent parses a user event payload. Payloads with the wrong arity or
// element types fail with ErrMalformedEvent, unknown tags with ErrUnknownEvent.
// The returned type is usable for logging even on error.
func DecodeEvent(raw []byte) (Event, EventType, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	ev, err := w.decode()
	return ev, w.Type, err
}

func (w wireEvent) decode() (Event, error) {
	switch w.Type {
	case EventStatusUpdate:
		if len(w.Data) < 1 {
			return nil, w.malformed("missing status")
		}
		var status Status
		if err := json.Unmarshal(w.Data[0], &status); err != nil {
			return nil, w.malformed("status: %v", err)
		}
		return StatusUpdate{Username: w.Username, Status: status}, nil

	case EventCapabilityUpdate:
		caps := make([]Capability, 0, len(w.Data))
		for i, d := range w.Data {
			var c Capability
			if err := json.Unmarshal(d, &c); err != nil {
				return nil, w.malformed("capability %d: %v", i, err)
			}
			caps = append(caps, c)
		}
		return CapabilityUpdate{Username: w.Username, Capabilities: caps}, nil

	case EventPropertyUpdate:
		if len(w.Data) < 1 {
			return nil, w.malformed("missing properties")
		}
		var props map[string]any
		if err := json.Unmarshal(w.Data[0], &props); err != nil {
			return nil, w.malformed("properties: %v", err)
		}
		return PropertyUpdate{Username: w.Username, Properties: props}, nil

	case EventActivityInvitation:
		if len(w.Data) < 3 {
			return nil, w.malformed("invitation has %d elements", len(w.Data))
		}
		var id InvitationID
		if err := json.Unmarshal(w.Data[2], &id); err != nil {
			return nil, w.malformed("invitation id: %v", err)
		}
		// A wrong shape still yields an invitation so it can be rejected.
		ev := ActivityInvitation{
			Username:     w.Username,
			Activity:     ActivityName(lenientString(w.Data[0])),
			Role:         RoleName(lenientString(w.Data[1])),
			InvitationID: id,
			Arity:        len(w.Data),
		}
		if len(w.Data) > 3 {
			ev.Topic = lenientString(w.Data[3])
		}
		return ev, nil

	case EventInvitationReply:
		if len(w.Data) != 3 {
			return nil, w.malformed("reply has %d elements", len(w.Data))
		}
		var id InvitationID
		if err := json.Unmarshal(w.Data[0], &id); err != nil {
			return nil, w.malformed("invitation id: %v", err)
		}
		var accepted bool
		if err := json.Unmarshal(w.Data[1], &accepted); err != nil {
			return nil, w.malformed("accepted flag: %v", err)
		}
		return InvitationReply{
			Username:     w.Username,
			InvitationID: id,
			Accepted:     accepted,
			Topic:        lenientString(w.Data[2]),
		}, nil

	case EventCancelInvitation:
		if len(w.Data) < 1 {
			return nil, w.malformed("missing invitation id")
		}
		var id InvitationID
		if err := json.Unmarshal(w.Data[0], &id); err != nil {
			return nil, w.malformed("invitation id: %v", err)
		}
		return CancelInvitation{Username: w.Username, InvitationID: id}, nil

	case EventJoinActivity:
		return JoinActivity{Username: w.Username}, nil

	case EventExitActivity:
		if len(w.Data) != 2 {
			return nil, w.malformed("exit has %d elements", len(w.Data))
		}
		ev := ExitActivity{Username: w.Username}
		if err := json.Unmarshal(w.Data[0], &ev.ActivityID); err != nil {
			return nil, w.malformed("activity id: %v", err)
		}
		if err := json.Unmarshal(w.Data[1], &ev.ParticipantID); err != nil {
			return nil, w.malformed("participant id: %v", err)
		}
		return ev, nil

	case EventSystemLogout:
		return SystemLogout{Username: w.Username}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, w.Type)
}

func (w wireEvent) malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformedEvent, w.Type, fmt.Sprintf(format, args...))
}

// lenientString returns the JSON string in b or "" for any other value.
func lenientString(b json.RawMessage) string {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ""
	}
	return s
}
