package service

import (
	"testing"

	"github.com/Wyydra/interbot/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func TestCallStatusProjector(t *testing.T) {
	ui := &recordingPresenter{}
	p := NewCallStatusProjector(ui, nil)
	require.Equal(t, domain.CallReady, p.Status())

	p.Hangup(false)
	require.Empty(t, ui.transitions)

	require.ErrorIs(t, p.StartCall(), domain.ErrInvalidCallTransition)
	require.NoError(t, p.ReceiveCall("bob"))
	require.ErrorIs(t, p.MakeCall("rob"), domain.ErrInvalidCallTransition)
	require.Equal(t, "bob", p.Peer())
	require.NoError(t, p.StartCall())
	p.Hangup(true)

	require.Equal(t, domain.CallReady, p.Status())
	require.Empty(t, p.Peer())
	require.Equal(t, []domain.CallTransition{
		{From: domain.CallReady, To: domain.CallReceiving, Peer: "bob"},
		{From: domain.CallReceiving, To: domain.CallInCall, Peer: "bob"},
		{From: domain.CallInCall, To: domain.CallReady, Peer: "bob", Remote: true},
	}, ui.transitions)
}
