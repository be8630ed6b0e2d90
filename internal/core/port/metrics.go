package port

import "github.com/Wyydra/interbot/internal/core/domain"

type Metrics interface {
	EventReceived(t domain.EventType)
	EventDropped(t domain.EventType, reason string)
	ActivityOutcome(name domain.ActivityName, kind domain.OutcomeKind)
	RPCFailed(method string)
	CallStatus(status domain.CallStatus)
}
