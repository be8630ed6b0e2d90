package domain

import (
	"errors"
	"fmt"
)

// CallStatus is the presentation state of the webrtc call slot.
type CallStatus string

const (
	CallReady      CallStatus = "ready"
	CallConnecting CallStatus = "connecting"
	CallReceiving  CallStatus = "receiving"
	CallInCall     CallStatus = "incall"
)

var ErrInvalidCallTransition = errors.New("invalid call status transition")

var callTransitions = map[CallStatus][]CallStatus{
	CallReady:      {CallConnecting, CallReceiving},
	CallConnecting: {CallInCall, CallReady},
	CallReceiving:  {CallInCall, CallReady},
	CallInCall:     {CallReady},
}

func (s CallStatus) CanTransition(to CallStatus) bool {
	for _, next := range callTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// CallTransition is reported to the presenter on every status change.
type CallTransition struct {
	From   CallStatus `json:"from"`
	To     CallStatus `json:"to"`
	Peer   string     `json:"peer,omitempty"`
	Remote bool       `json:"remote"`
}

func NewCallTransition(from, to CallStatus, peer string, remote bool) (CallTransition, error) {
	if !from.CanTransition(to) {
		return CallTransition{}, fmt.Errorf("%w: %s -> %s", ErrInvalidCallTransition, from, to)
	}
	return CallTransition{From: from, To: to, Peer: peer, Remote: remote}, nil
}
