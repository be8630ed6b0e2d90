package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Wyydra/interbot/internal/core/domain"
	"github.com/Wyydra/interbot/internal/core/port"
	"github.com/rs/zerolog/log"
)

const (
	MethodStartActivity   = "rpc:user_service/startActivity"
	MethodExitActivity    = "rpc:user_service/exitActivity"
	MethodInvite          = "rpc:user_service/invite"
	MethodInvitationReply = "rpc:user_service/invitationReply"
)

// session is what activities and invitations share: the session id and a way
// to reach the server whose replies come back on the loop.
type session struct {
	ctx     context.Context
	id      domain.SessionID
	channel port.Channel
	loop    *Loop
	metrics port.Metrics
}

// call issues method; done runs on the loop.
func (s *session) call(method string, args []any, done func(json.RawMessage, error)) {
	s.channel.Call(s.ctx, method, args, func(res json.RawMessage, err error) {
		if err != nil {
			s.metrics.RPCFailed(method)
		}
		if !s.loop.Post(func() { done(res, err) }) {
			log.Debug().Str("method", method).Msg("Reply after loop stopped, discarded")
		}
	})
}

// notify issues method without waiting for its result. Failures are only logged.
func (s *session) notify(method string, args ...any) {
	s.channel.Call(s.ctx, method, args, func(_ json.RawMessage, err error) {
		if err != nil {
			s.metrics.RPCFailed(method)
			log.Warn().Err(err).Str("method", method).Msg("Notification failed")
		}
	})
}

func decodeResult[T any](method string, res json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(res, &v); err != nil {
		return v, fmt.Errorf("decode %s result: %w", method, err)
	}
	return v, nil
}

type nopMetrics struct{}

func (nopMetrics) EventReceived(domain.EventType)                         {}
func (nopMetrics) EventDropped(domain.EventType, string)                  {}
func (nopMetrics) ActivityOutcome(domain.ActivityName, domain.OutcomeKind) {}
func (nopMetrics) RPCFailed(string)                                       {}
func (nopMetrics) CallStatus(domain.CallStatus)                           {}
