package service

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/Wyydra/interbot/internal/core/domain"
	"github.com/Wyydra/interbot/internal/core/port"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

type RobotConfig struct {
	PingInterval time.Duration
	CommandRate  float64
	CommandBurst int
}

func DefaultRobotConfig() RobotConfig {
	return RobotConfig{
		PingInterval: 2 * time.Second,
		CommandRate:  20,
		CommandBurst: 5,
	}
}

// RobotLink drives a robot we control: it keeps the control ping going,
// reports latency and publishes velocity and pan-tilt commands.
type RobotLink struct {
	channel   port.Channel
	loop      *Loop
	presenter port.Presenter
	cfg       RobotConfig
	limiter   *rate.Limiter
	now       func() time.Time

	mu     sync.Mutex
	active bool
	stop   chan struct{}
}

func NewRobotLink(channel port.Channel, loop *Loop, presenter port.Presenter, cfg RobotConfig) *RobotLink {
	def := DefaultRobotConfig()
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.CommandRate <= 0 {
		cfg.CommandRate = def.CommandRate
	}
	if cfg.CommandBurst <= 0 {
		cfg.CommandBurst = def.CommandBurst
	}
	return &RobotLink{
		channel:   channel,
		loop:      loop,
		presenter: presenter,
		cfg:       cfg,
		limiter:   rate.NewLimiter(rate.Limit(cfg.CommandRate), cfg.CommandBurst),
		now:       time.Now,
	}
}

// Begin subscribes to pongs and starts pinging.
func (r *RobotLink) Begin() error {
	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return nil
	}
	if err := r.channel.Subscribe(domain.TopicControlPong, r.onPong); err != nil {
		r.mu.Unlock()
		return err
	}
	r.active = true
	r.stop = make(chan struct{})
	go r.pingLoop(r.stop)
	r.mu.Unlock()

	r.ping()
	return nil
}

// End stops the robot and the pings.
func (r *RobotLink) End() {
	if !r.isActive() {
		return
	}
	if err := r.publishVelocity(domain.Velocity{}); err != nil {
		log.Warn().Err(err).Msg("Failed to stop robot")
	}

	r.mu.Lock()
	r.active = false
	close(r.stop)
	r.mu.Unlock()

	if err := r.channel.Unsubscribe(domain.TopicControlPong); err != nil {
		log.Warn().Err(err).Msg("Failed to unsubscribe from control pong")
	}
}

// Move sends a velocity command. Commands over the rate limit are dropped,
// except stop which always goes out.
func (r *RobotLink) Move(linear, angular float64) error {
	if !r.isActive() {
		return ErrRobotInactive
	}
	v := domain.NewVelocity(linear, angular)
	if !v.IsStop() && !r.limiter.Allow() {
		return ErrRateLimited
	}
	return r.publishVelocity(v)
}

func (r *RobotLink) PanTilt(instruction domain.PanTiltInstruction) error {
	if !r.isActive() {
		return ErrRobotInactive
	}
	if !instruction.Valid() {
		return ErrInvalidInstruction
	}
	return r.channel.Publish(domain.TopicVideoPanTilt, domain.PanTiltCommand{
		Timestamp:   r.now().UnixMilli(),
		Instruction: instruction,
	})
}

func (r *RobotLink) publishVelocity(v domain.Velocity) error {
	return r.channel.Publish(domain.TopicBaseVelocity, domain.VelocityCommand{
		Timestamp: r.now().UnixMilli(),
		Velocity:  v,
	})
}

func (r *RobotLink) isActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *RobotLink) pingLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(r.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.ping()
		}
	}
}

func (r *RobotLink) ping() {
	if !r.isActive() {
		return
	}
	p := domain.ControlPing{Timestamp: r.now().UnixMilli()}
	if err := r.channel.Publish(domain.TopicControlPing, p); err != nil {
		log.Warn().Err(err).Msg("Failed to publish control ping")
	}
}

func (r *RobotLink) onPong(_ string, raw json.RawMessage) {
	var p domain.ControlPing
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Debug().Err(err).Msg("Malformed control pong")
		return
	}
	latency := p.Latency(r.now())
	r.loop.Post(func() {
		if r.isActive() {
			r.presenter.RobotLatency(latency)
		}
	})
}
