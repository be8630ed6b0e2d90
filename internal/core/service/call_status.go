package service

import (
	"github.com/Wyydra/interbot/internal/core/domain"
	"github.com/Wyydra/interbot/internal/core/port"
)

// CallStatusProjector tracks the call state machine and reports every
// transition to the presenter.
type CallStatusProjector struct {
	status    domain.CallStatus
	peer      string
	presenter port.Presenter
	metrics   port.Metrics
}

func NewCallStatusProjector(presenter port.Presenter, metrics port.Metrics) *CallStatusProjector {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &CallStatusProjector{
		status:    domain.CallReady,
		presenter: presenter,
		metrics:   metrics,
	}
}

func (p *CallStatusProjector) Status() domain.CallStatus { return p.status }
func (p *CallStatusProjector) Peer() string              { return p.peer }

func (p *CallStatusProjector) MakeCall(peer string) error {
	return p.move(domain.CallConnecting, peer, false)
}

func (p *CallStatusProjector) ReceiveCall(peer string) error {
	return p.move(domain.CallReceiving, peer, false)
}

func (p *CallStatusProjector) StartCall() error {
	return p.move(domain.CallInCall, p.peer, false)
}

// Hangup returns to ready. It does nothing when already ready.
func (p *CallStatusProjector) Hangup(remote bool) {
	if p.status == domain.CallReady {
		return
	}
	_ = p.move(domain.CallReady, p.peer, remote)
	p.peer = ""
}

func (p *CallStatusProjector) move(to domain.CallStatus, peer string, remote bool) error {
	t, err := domain.NewCallTransition(p.status, to, peer, remote)
	if err != nil {
		return err
	}
	p.status, p.peer = to, peer
	p.presenter.CallStatusChanged(t)
	p.metrics.CallStatus(to)
	return nil
}
