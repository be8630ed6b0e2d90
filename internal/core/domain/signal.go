package domain

type SignalType string

const (
	SignalOffer     SignalType = "offer"
	SignalAnswer    SignalType = "answer"
	SignalCandidate SignalType = "candidate"
	SignalHangup    SignalType = "hangup"
)

// Signal is exchanged by the two media engines over the call's p2p topic. Both
// ends are subscribed to the topic, so From is used to skip our own messages.
type Signal struct {
	Type    SignalType `json:"type"`
	From    string     `json:"from"`
	Payload string     `json:"payload,omitempty"`
}

func NewSignal(t SignalType, from, payload string) Signal {
	return Signal{
		Type:    t,
		From:    from,
		Payload: payload,
	}
}
