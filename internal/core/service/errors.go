package service

import "errors"

var (
	ErrClosed             = errors.New("coordinator closed")
	ErrUnknownPeer        = errors.New("unknown peer")
	ErrNotCapable         = errors.New("peer lacks capability")
	ErrSlotOccupied       = errors.New("activity slot occupied")
	ErrNoActivity         = errors.New("no such activity")
	ErrNoInvitation       = errors.New("no pending invitation")
	ErrCallStatus         = errors.New("call status does not allow this")
	ErrActivityNotStarted = errors.New("activity not started")
	ErrActivityAbandoned  = errors.New("activity abandoned")
	ErrRobotInactive      = errors.New("robot link inactive")
	ErrRateLimited        = errors.New("command rate limited")
	ErrLoopStopped        = errors.New("loop stopped")
	ErrInvalidInstruction = errors.New("invalid pan-tilt instruction")
)
