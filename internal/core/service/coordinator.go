package service

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/Wyydra/interbot/internal/core/domain"
	"github.com/Wyydra/interbot/internal/core/port"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Session   domain.SessionID
	Self      domain.UserInfo
	Friends   []domain.UserInfo
	Channel   port.Channel
	Presenter port.Presenter
	Loop      *Loop

	// Optional. A nil Media disables webrtc media; calls are still negotiated.
	Media    port.MediaFactory
	Presence port.PresenceStore
	Metrics  port.Metrics

	Robot        RobotConfig
	VideoBaseURL string
}

// Coordinator owns one user's activities: at most one control, one robot video
// and one call at a time. NewCoordinator may be called from any goroutine;
// every other method must run on the coordinator's loop.
type Coordinator struct {
	ctx       context.Context
	sess      *session
	loop      *Loop
	channel   port.Channel
	presenter port.Presenter
	media     port.MediaFactory
	metrics   port.Metrics
	robotCfg  RobotConfig
	videoURL  string

	roster *Roster
	status *CallStatusProjector
	slots  slots

	invitation *Invitation
	p2pTopic   string
	engine     port.MediaEngine
	robot      *RobotLink

	mirrorOps  chan mirrorOp
	mirrorDone chan struct{}

	open bool
}

func NewCoordinator(ctx context.Context, opts Options) (*Coordinator, error) {
	if opts.Channel == nil || opts.Presenter == nil || opts.Loop == nil {
		return nil, fmt.Errorf("coordinator needs a channel, a presenter and a loop")
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	c := &Coordinator{
		ctx: ctx,
		sess: &session{
			ctx:     ctx,
			id:      opts.Session,
			channel: opts.Channel,
			loop:    opts.Loop,
			metrics: metrics,
		},
		loop:      opts.Loop,
		channel:   opts.Channel,
		presenter: opts.Presenter,
		media:     opts.Media,
		metrics:   metrics,
		robotCfg:  opts.Robot,
		videoURL:  opts.VideoBaseURL,
		roster:    NewRoster(opts.Self, opts.Friends),
		status:    NewCallStatusProjector(opts.Presenter, metrics),
		slots:     make(slots),
		open:      true,
	}

	c.mirrorDone = make(chan struct{})
	if opts.Presence != nil {
		c.mirrorOps = make(chan mirrorOp, mirrorQueue)
		go c.runMirror(opts.Presence, c.mirrorOps, c.mirrorDone)
	} else {
		close(c.mirrorDone)
	}

	// Queued before any event can be, so the reset never lands on top of an update.
	users := c.roster.All()
	c.mirror(func(ctx context.Context, store port.PresenceStore) error {
		if err := store.Reset(ctx); err != nil {
			return err
		}
		for _, u := range users {
			if err := store.Put(ctx, u); err != nil {
				return err
			}
		}
		return nil
	})

	if err := c.channel.Subscribe(domain.TopicUserEvent, c.postEvent); err != nil {
		c.stopMirror()
		return nil, fmt.Errorf("subscribe user events: %w", err)
	}
	if err := c.channel.Subscribe(domain.TopicSessionPing, c.postPing); err != nil {
		_ = c.channel.Unsubscribe(domain.TopicUserEvent)
		c.stopMirror()
		return nil, fmt.Errorf("subscribe session ping: %w", err)
	}

	log.Info().Str("session", opts.Session.String()).Str("user", opts.Self.Username).Int("friends", len(opts.Friends)).Msg("Coordinator started")
	return c, nil
}

// slots holds the live activity of each kind.
type slots map[domain.ActivityKind]*Activity

func (s slots) get(kind domain.ActivityKind) *Activity {
	return s[kind]
}

func (s slots) claim(kind domain.ActivityKind, act *Activity) error {
	if s[kind] != nil {
		return fmt.Errorf("%w: %s", ErrSlotOccupied, kind)
	}
	s[kind] = act
	return nil
}

// release empties the slot if it still holds act.
func (s slots) release(kind domain.ActivityKind, act *Activity) bool {
	if s[kind] != act {
		return false
	}
	delete(s, kind)
	return true
}

func (c *Coordinator) BeginControl(username string) error {
	return c.begin(domain.KindControl, username)
}

func (c *Coordinator) BeginRobotVideo(username string) error {
	return c.begin(domain.KindVideo, username)
}

func (c *Coordinator) BeginCall(username string) error {
	return c.begin(domain.KindCall, username)
}

func (c *Coordinator) EndControl() error {
	return c.end(domain.KindControl)
}

func (c *Coordinator) EndRobotVideo() error {
	return c.end(domain.KindVideo)
}

func (c *Coordinator) EndCall() error {
	return c.end(domain.KindCall)
}

func (c *Coordinator) begin(kind domain.ActivityKind, username string) error {
	if !c.open {
		return ErrClosed
	}
	friend, ok := c.roster.Friend(username)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPeer, username)
	}
	if !friend.CanJoin(kind) {
		return fmt.Errorf("%w: %s cannot join %s", ErrNotCapable, username, kind)
	}
	if kind == domain.KindCall && c.status.Status() != domain.CallReady {
		return fmt.Errorf("%w: %s", ErrCallStatus, c.status.Status())
	}

	act := newActivity(c.sess)
	if err := c.slots.claim(kind, act); err != nil {
		return err
	}
	d := kind.Descriptor()
	log.Info().Str("kind", kind.String()).Str("peer", username).Msg("Starting activity")
	act.StartWithUser(d.Name, d.Role, username, d.PeerRole, func(out domain.Outcome) {
		c.onNegotiated(kind, act, username, out)
	})
	return nil
}

func (c *Coordinator) end(kind domain.ActivityKind) error {
	if !c.open {
		return ErrClosed
	}
	if c.slots.get(kind) == nil {
		return fmt.Errorf("%w: %s", ErrNoActivity, kind)
	}
	c.teardown(kind, false)
	return nil
}

func (c *Coordinator) onNegotiated(kind domain.ActivityKind, act *Activity, peer string, out domain.Outcome) {
	c.metrics.ActivityOutcome(kind.Descriptor().Name, out.Kind)
	if c.slots.get(kind) != act {
		log.Debug().Str("kind", kind.String()).Str("outcome", out.Kind.String()).Msg("Stale negotiation result dropped")
		return
	}

	switch out.Kind {
	case domain.OutcomeAccepted:
		if kind == domain.KindCall {
			if err := c.status.MakeCall(peer); err != nil {
				log.Error().Err(err).Msg("Failed to move call status")
			}
		}
		c.activate(kind, peer, out.ExtraString())

	case domain.OutcomePending:
		log.Info().Str("kind", kind.String()).Str("peer", peer).Str("invitation", out.InvitationID.String()).Msg("Invitation pending")
		if kind == domain.KindCall {
			if err := c.status.MakeCall(peer); err != nil {
				log.Error().Err(err).Msg("Failed to move call status")
			}
		}

	case domain.OutcomeRejected:
		log.Info().Str("kind", kind.String()).Str("peer", peer).Str("reason", out.Reason).Msg("Invitation rejected")
		c.slots.release(kind, act)
		c.presenter.Alert(out.Reason)

	case domain.OutcomeFailed:
		log.Error().Err(out.Err).Str("kind", kind.String()).Str("peer", peer).Msg("Failed to start activity")
		c.slots.release(kind, act)
		c.presenter.Alert(fmt.Sprintf("Cannot start %s with %s.", kind.Descriptor().Name, peer))
	}
}

// activate brings up the local side of an activity the peer joined. extra is
// the p2p topic for a call and the video channel for robot video.
func (c *Coordinator) activate(kind domain.ActivityKind, peer, extra string) {
	switch kind {
	case domain.KindControl:
		link := NewRobotLink(c.channel, c.loop, c.presenter, c.robotCfg)
		if err := link.Begin(); err != nil {
			log.Error().Err(err).Str("robot", peer).Msg("Failed to open robot link")
			c.presenter.Alert(fmt.Sprintf("Cannot control %s.", peer))
			c.teardown(kind, false)
			return
		}
		c.robot = link
		if robot, ok := c.roster.Friend(peer); ok {
			log.Info().Str("robot", peer).Str("local_ip", domain.RobotLocalIP(robot.Properties)).Msg("Controlling robot")
		}
		c.presenter.StartControl(peer)

	case domain.KindVideo:
		c.presenter.StartRobotVideo(c.videoStreamURL(extra))

	case domain.KindCall:
		c.p2pTopic = extra
		if err := c.status.StartCall(); err != nil {
			log.Error().Err(err).Msg("Failed to move call status")
		}
		if c.media == nil {
			return
		}
		engine, err := c.media.NewEngine(extra)
		if err == nil {
			err = engine.Call(c.ctx)
		}
		if err != nil {
			log.Error().Err(err).Str("peer", peer).Msg("Failed to start call media")
			if engine != nil {
				engine.Hangup()
			}
			c.presenter.Alert(fmt.Sprintf("Cannot call %s.", peer))
			c.teardown(kind, false)
			return
		}
		c.engine = engine
	}
}

// teardown ends the live activity of kind, if any.
func (c *Coordinator) teardown(kind domain.ActivityKind, remote bool) {
	act := c.slots.get(kind)
	if act == nil {
		return
	}
	log.Info().Str("kind", kind.String()).Bool("remote", remote).Msg("Ending activity")

	switch kind {
	case domain.KindCall:
		if c.engine != nil {
			c.engine.Hangup()
			c.engine = nil
		}
		act.Exit()
		c.slots.release(kind, act)
		c.p2pTopic = ""
		c.status.Hangup(remote)

	case domain.KindVideo:
		act.Exit()
		c.slots.release(kind, act)
		c.presenter.EndRobotVideo(remote)

	case domain.KindControl:
		if c.robot != nil {
			c.robot.End()
			c.robot = nil
		}
		act.Exit()
		c.slots.release(kind, act)
		c.presenter.EndControl(remote)
	}
}

// AcceptCall answers the pending inbound call. With media enabled the
// invitation is only accepted once the engine is ready for the caller's offer.
func (c *Coordinator) AcceptCall() error {
	if !c.open {
		return ErrClosed
	}
	if c.status.Status() != domain.CallReceiving {
		return fmt.Errorf("%w: %s", ErrCallStatus, c.status.Status())
	}
	inv := c.invitation
	if inv == nil {
		return ErrNoInvitation
	}
	if c.slots.get(domain.KindCall) != nil {
		return fmt.Errorf("%w: %s", ErrSlotOccupied, domain.KindCall)
	}
	if c.media == nil {
		if err := c.status.StartCall(); err != nil {
			return err
		}
		c.joinCall(inv)
		return nil
	}

	engine, err := c.media.NewEngine(c.p2pTopic)
	if err == nil {
		err = engine.Listen(c.ctx, func() {
			c.loop.Post(func() { c.onMediaReady(engine, inv) })
		})
		if err != nil {
			engine.Hangup()
		}
	}
	if err != nil {
		log.Error().Err(err).Str("peer", inv.From()).Msg("Failed to prepare call media")
		c.dropInvitation(false)
		return fmt.Errorf("prepare media: %w", err)
	}
	c.engine = engine
	if err := c.status.StartCall(); err != nil {
		return err
	}
	return nil
}

func (c *Coordinator) onMediaReady(engine port.MediaEngine, inv *Invitation) {
	if !c.open || c.engine != engine || c.invitation != inv {
		log.Debug().Msg("Media ready for a call that is gone")
		engine.Hangup()
		return
	}
	c.joinCall(inv)
}

func (c *Coordinator) joinCall(inv *Invitation) {
	c.invitation = nil
	var act *Activity
	act = inv.Accept(func(err error) {
		if err != nil && c.slots.get(domain.KindCall) == act {
			log.Error().Err(err).Str("peer", inv.From()).Msg("Failed to join call")
			c.presenter.Alert(fmt.Sprintf("Cannot join the call with %s.", inv.From()))
			c.teardown(domain.KindCall, false)
		}
	})
	if act == nil {
		return
	}
	if err := c.slots.claim(domain.KindCall, act); err != nil {
		log.Error().Err(err).Msg("Call slot taken while joining")
		act.Exit()
	}
}

// RejectCall declines the pending inbound call.
func (c *Coordinator) RejectCall() error {
	if !c.open {
		return ErrClosed
	}
	if c.status.Status() != domain.CallReceiving {
		return fmt.Errorf("%w: %s", ErrCallStatus, c.status.Status())
	}
	if c.invitation == nil {
		return ErrNoInvitation
	}
	c.dropInvitation(false)
	return nil
}

// dropInvitation rejects the pending inbound invitation and resets the call.
func (c *Coordinator) dropInvitation(remote bool) {
	if c.invitation == nil {
		return
	}
	if !remote {
		c.invitation.Reject()
	}
	c.invitation = nil
	if c.slots.get(domain.KindCall) == nil {
		if c.engine != nil {
			c.engine.Hangup()
			c.engine = nil
		}
		c.p2pTopic = ""
	}
	c.status.Hangup(remote)
}

func (c *Coordinator) EndAllActivities() error {
	if !c.open {
		return ErrClosed
	}
	c.endAll()
	return nil
}

func (c *Coordinator) endAll() {
	for _, kind := range domain.ActivityKinds() {
		c.teardown(kind, false)
	}
}

// Close ends everything, stops listening and makes every later action a no-op.
func (c *Coordinator) Close() {
	if !c.open {
		return
	}
	c.endAll()
	c.dropInvitation(false)
	for _, topic := range []string{domain.TopicUserEvent, domain.TopicSessionPing} {
		if err := c.channel.Unsubscribe(topic); err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("Failed to unsubscribe")
		}
	}
	c.stopMirror()
	c.open = false
	log.Info().Str("session", c.sess.id.String()).Msg("Coordinator closed")
}

func (c *Coordinator) Closed() bool { return !c.open }

func (c *Coordinator) Move(linear, angular float64) error {
	if !c.open {
		return ErrClosed
	}
	if c.robot == nil {
		return fmt.Errorf("%w: %s", ErrNoActivity, domain.KindControl)
	}
	return c.robot.Move(linear, angular)
}

func (c *Coordinator) PanTilt(instruction domain.PanTiltInstruction) error {
	if !c.open {
		return ErrClosed
	}
	if c.robot == nil {
		return fmt.Errorf("%w: %s", ErrNoActivity, domain.KindControl)
	}
	return c.robot.PanTilt(instruction)
}

func (c *Coordinator) videoStreamURL(channel string) string {
	q := url.Values{}
	q.Set("session_id", c.sess.id.String())
	q.Set("channel", channel)
	return c.videoURL + "?" + q.Encode()
}

type mirrorOp func(context.Context, port.PresenceStore) error

const (
	mirrorQueue   = 256
	mirrorTimeout = 2 * time.Second
)

// mirror queues fn for the presence writer. Writes reach the store in the
// order they were queued. The loop blocks while the queue is full.
func (c *Coordinator) mirror(fn mirrorOp) {
	if c.mirrorOps == nil {
		return
	}
	c.mirrorOps <- fn
}

func (c *Coordinator) runMirror(store port.PresenceStore, ops <-chan mirrorOp, done chan<- struct{}) {
	defer close(done)
	base := context.WithoutCancel(c.ctx)
	for op := range ops {
		ctx, cancel := context.WithTimeout(base, mirrorTimeout)
		if err := op(ctx, store); err != nil {
			log.Warn().Err(err).Msg("Failed to mirror presence")
		}
		cancel()
	}
}

// stopMirror lets the writer finish the queued writes and exit.
func (c *Coordinator) stopMirror() {
	if c.mirrorOps == nil {
		return
	}
	close(c.mirrorOps)
	c.mirrorOps = nil
}

// Mirrored is closed once every presence write queued before Close is done.
func (c *Coordinator) Mirrored() <-chan struct{} {
	return c.mirrorDone
}
