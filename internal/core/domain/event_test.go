package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeEvent_InvitationReply(t *testing.T) {
	ev, typ, err := DecodeEvent([]byte(`{"type":"InvitationReply","username":"bob","data":[99,true,"topicX"]}`))
	require.NoError(t, err)
	require.Equal(t, EventInvitationReply, typ)
	require.Equal(t, InvitationReply{
		Username:     "bob",
		InvitationID: "99",
		Accepted:     true,
		Topic:        "topicX",
	}, ev)
}

func TestDecodeEvent_InvitationReplyArity(t *testing.T) {
	_, _, err := DecodeEvent([]byte(`{"type":"InvitationReply","username":"bob","data":[99,true]}`))
	require.ErrorIs(t, err, ErrMalformedEvent)

	_, _, err = DecodeEvent([]byte(`{"type":"InvitationReply","username":"bob","data":[99,"yes","t"]}`))
	require.ErrorIs(t, err, ErrMalformedEvent)
}

func TestDecodeEvent_ActivityInvitationShapes(t *testing.T) {
	ev, _, err := DecodeEvent([]byte(`{"type":"ActivityInvitation","username":"alice","data":["webrtc","callee","7","event:webrtc/p2pabc"]}`))
	require.NoError(t, err)
	inv := ev.(ActivityInvitation)
	require.True(t, inv.IsWebRTCCallee())
	require.Equal(t, InvitationID("7"), inv.InvitationID)
	require.Equal(t, "event:webrtc/p2pabc", inv.Topic)

	ev, _, err = DecodeEvent([]byte(`{"type":"ActivityInvitation","username":"alice","data":["control","robot",8]}`))
	require.NoError(t, err)
	inv = ev.(ActivityInvitation)
	require.False(t, inv.IsWebRTCCallee())
	require.Equal(t, 3, inv.Arity)
	require.Equal(t, InvitationID("8"), inv.InvitationID)

	_, _, err = DecodeEvent([]byte(`{"type":"ActivityInvitation","username":"alice","data":["webrtc","callee"]}`))
	require.ErrorIs(t, err, ErrMalformedEvent)
}

func TestDecodeEvent_ExitActivity(t *testing.T) {
	ev, _, err := DecodeEvent([]byte(`{"type":"ExitActivity","username":"r1","data":["12","34"]}`))
	require.NoError(t, err)
	require.Equal(t, ExitActivity{Username: "r1", ActivityID: "12", ParticipantID: "34"}, ev)

	_, _, err = DecodeEvent([]byte(`{"type":"ExitActivity","username":"r1","data":["12"]}`))
	require.ErrorIs(t, err, ErrMalformedEvent)
}

func TestDecodeEvent_Updates(t *testing.T) {
	ev, _, err := DecodeEvent([]byte(`{"type":"CapabilityUpdate","username":"r1","data":[{"activity":"control","role":"robot"}]}`))
	require.NoError(t, err)
	require.Equal(t, []Capability{{Activity: ActivityControl, Role: RoleRobot}}, ev.(CapabilityUpdate).Capabilities)

	ev, _, err = DecodeEvent([]byte(`{"type":"PropertyUpdate","username":"r1","data":[{"battery":0.5}]}`))
	require.NoError(t, err)
	require.Equal(t, 0.5, ev.(PropertyUpdate).Properties["battery"])

	_, _, err = DecodeEvent([]byte(`{"type":"StatusUpdate","username":"r1","data":[]}`))
	require.ErrorIs(t, err, ErrMalformedEvent)
}

func TestDecodeEvent_Unknown(t *testing.T) {
	_, typ, err := DecodeEvent([]byte(`{"type":"Teleport","username":"r1","data":[]}`))
	require.ErrorIs(t, err, ErrUnknownEvent)
	require.Equal(t, EventType("Teleport"), typ)

	_, _, err = DecodeEvent([]byte(`not json`))
	require.ErrorIs(t, err, ErrMalformedEvent)
}
