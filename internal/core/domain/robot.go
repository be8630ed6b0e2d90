package domain

import "time"

// Velocity is a normalized base velocity. +1 linear is full speed forward, +1
// angular is a full speed counter clockwise turn.
type Velocity struct {
	LinearSpeed  float64 `json:"linearSpeed"`
	AngularSpeed float64 `json:"angularSpeed"`
}

func NewVelocity(linear, angular float64) Velocity {
	return Velocity{LinearSpeed: clampUnit(linear), AngularSpeed: clampUnit(angular)}
}

func (v Velocity) IsStop() bool {
	return v.LinearSpeed == 0 && v.AngularSpeed == 0
}

func clampUnit(f float64) float64 {
	switch {
	case f > 1:
		return 1
	case f < -1:
		return -1
	case f != f: // NaN
		return 0
	}
	return f
}

type VelocityCommand struct {
	Timestamp int64    `json:"timestamp"`
	Velocity  Velocity `json:"velocity"`
}

type PanTiltInstruction string

const (
	PanTiltRight  PanTiltInstruction = "Right"
	PanTiltLeft   PanTiltInstruction = "Left"
	PanTiltUp     PanTiltInstruction = "Up"
	PanTiltDown   PanTiltInstruction = "Down"
	PanTiltCenter PanTiltInstruction = "Center"
)

func (i PanTiltInstruction) Valid() bool {
	switch i {
	case PanTiltRight, PanTiltLeft, PanTiltUp, PanTiltDown, PanTiltCenter:
		return true
	}
	return false
}

type PanTiltCommand struct {
	Timestamp   int64              `json:"timestamp"`
	Instruction PanTiltInstruction `json:"instruction"`
}

// ControlPing is published while a control activity is live and echoed back by
// the robot. A robot that misses pings ignores velocity commands.
type ControlPing struct {
	Timestamp int64 `json:"timestamp"`
}

// Latency is half the ping round trip.
func (p ControlPing) Latency(now time.Time) time.Duration {
	return time.Duration(now.UnixMilli()-p.Timestamp) * time.Millisecond / 2
}
