package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Wyydra/interbot/internal/core/domain"
	"github.com/Wyydra/interbot/internal/core/port"
	"github.com/stretchr/testify/require"
)

type fakeCall struct {
	method string
	args   []any
	reply  port.ReplyFunc
	done   bool
}

func (c *fakeCall) resolve(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	c.done = true
	c.reply(b, nil)
}

func (c *fakeCall) fail(err error) {
	c.done = true
	c.reply(nil, err)
}

type publication struct {
	topic   string
	payload json.RawMessage
}

type fakeChannel struct {
	mu           sync.Mutex
	calls        []*fakeCall
	published    []publication
	handlers     map[string]port.EventHandler
	subscribeErr error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{handlers: make(map[string]port.EventHandler)}
}

func (f *fakeChannel) Call(_ context.Context, method string, args []any, reply port.ReplyFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, &fakeCall{method: method, args: args, reply: reply})
}

func (f *fakeChannel) Publish(topic string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publication{topic: topic, payload: b})
	return nil
}

func (f *fakeChannel) Subscribe(topic string, handler port.EventHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.handlers[topic] = handler
	return nil
}

func (f *fakeChannel) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, topic)
	return nil
}

func (f *fakeChannel) subscribed(topic string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.handlers[topic]
	return ok
}

func (f *fakeChannel) emit(topic string, payload []byte) {
	f.mu.Lock()
	h := f.handlers[topic]
	f.mu.Unlock()
	if h != nil {
		h(topic, payload)
	}
}

// take returns the oldest unanswered call to method.
func (f *fakeChannel) take(t *testing.T, method string) *fakeCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c.method == method && !c.done {
			return c
		}
	}
	require.FailNow(t, "no pending call", "method %s", method)
	return nil
}

func (f *fakeChannel) callsTo(method string) []*fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*fakeCall
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeChannel) publishedTo(topic string) []json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []json.RawMessage
	for _, p := range f.published {
		if p.topic == topic {
			out = append(out, p.payload)
		}
	}
	return out
}

func (f *fakeChannel) pendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if !c.done {
			n++
		}
	}
	return n
}

type recordingPresenter struct {
	mu          sync.Mutex
	log         []string
	alerts      []string
	transitions []domain.CallTransition
	latencies   []time.Duration
	users       []domain.UserInfo
}

func (p *recordingPresenter) record(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log = append(p.log, fmt.Sprintf(format, args...))
}

func (p *recordingPresenter) UpdateUserCapability(u domain.UserInfo) {
	p.record("self capability %s", u.Username)
	p.mu.Lock()
	p.users = append(p.users, u)
	p.mu.Unlock()
}

func (p *recordingPresenter) UpdateFriendCapability(u domain.UserInfo) {
	p.record("friend capability %s", u.Username)
	p.mu.Lock()
	p.users = append(p.users, u)
	p.mu.Unlock()
}

func (p *recordingPresenter) UpdateUserProperties(u domain.UserInfo) {
	p.record("self properties %s", u.Username)
}

func (p *recordingPresenter) UpdateFriendProperties(u domain.UserInfo) {
	p.record("friend properties %s", u.Username)
	p.mu.Lock()
	p.users = append(p.users, u)
	p.mu.Unlock()
}

func (p *recordingPresenter) StartControl(robot string)  { p.record("start control %s", robot) }
func (p *recordingPresenter) EndControl(remote bool)     { p.record("end control remote=%t", remote) }
func (p *recordingPresenter) StartRobotVideo(url string) { p.record("start video %s", url) }
func (p *recordingPresenter) EndRobotVideo(remote bool)  { p.record("end video remote=%t", remote) }
func (p *recordingPresenter) SystemLogout()              { p.record("logout") }

func (p *recordingPresenter) CallStatusChanged(t domain.CallTransition) {
	p.record("call %s->%s remote=%t", t.From, t.To, t.Remote)
	p.mu.Lock()
	p.transitions = append(p.transitions, t)
	p.mu.Unlock()
}

func (p *recordingPresenter) RobotLatency(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latencies = append(p.latencies, d)
}

func (p *recordingPresenter) Alert(msg string) {
	p.record("alert %s", msg)
	p.mu.Lock()
	p.alerts = append(p.alerts, msg)
	p.mu.Unlock()
}

func (p *recordingPresenter) entries() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.log...)
}

type fakeEngine struct {
	topic    string
	called   bool
	listened bool
	hungUp   int
	onReady  func()
	callErr  error
}

func (e *fakeEngine) Call(context.Context) error {
	e.called = true
	return e.callErr
}

func (e *fakeEngine) Listen(_ context.Context, onReady func()) error {
	e.listened = true
	e.onReady = onReady
	return nil
}

func (e *fakeEngine) Hangup() { e.hungUp++ }

type fakeMedia struct {
	engines []*fakeEngine
	err     error
	callErr error
}

func (m *fakeMedia) NewEngine(topic string) (port.MediaEngine, error) {
	if m.err != nil {
		return nil, m.err
	}
	e := &fakeEngine{topic: topic, callErr: m.callErr}
	m.engines = append(m.engines, e)
	return e, nil
}

func (m *fakeMedia) last(t *testing.T) *fakeEngine {
	t.Helper()
	require.NotEmpty(t, m.engines)
	return m.engines[len(m.engines)-1]
}

type recordingMetrics struct {
	outcomes map[string]int
	dropped  map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{outcomes: map[string]int{}, dropped: map[string]int{}}
}

func (m *recordingMetrics) EventReceived(domain.EventType) {}
func (m *recordingMetrics) EventDropped(t domain.EventType, reason string) {
	m.dropped[string(t)+"/"+reason]++
}
func (m *recordingMetrics) ActivityOutcome(name domain.ActivityName, kind domain.OutcomeKind) {
	m.outcomes[string(name)+"/"+kind.String()]++
}
func (m *recordingMetrics) RPCFailed(string)             {}
func (m *recordingMetrics) CallStatus(domain.CallStatus) {}

var (
	selfUser = domain.UserInfo{
		Username: "alice",
		Type:     domain.UserHuman,
		Status:   domain.StatusOnline,
		Capabilities: []domain.Capability{
			{Activity: domain.ActivityControl, Role: domain.RoleController},
			{Activity: domain.ActivityWebRTC, Role: domain.RoleCallee},
		},
	}
	robotFriend = domain.UserInfo{
		Username: "rob",
		Type:     domain.UserRobot,
		Status:   domain.StatusOnline,
		Capabilities: []domain.Capability{
			{Activity: domain.ActivityControl, Role: domain.RoleRobot},
			{Activity: domain.ActivityVideoStream, Role: domain.RoleSender},
		},
	}
	humanFriend = domain.UserInfo{
		Username: "bob",
		Type:     domain.UserHuman,
		Status:   domain.StatusOnline,
		Capabilities: []domain.Capability{
			{Activity: domain.ActivityWebRTC, Role: domain.RoleCallee},
			{Activity: domain.ActivityWebRTC, Role: domain.RoleCaller},
		},
	}
)

type harness struct {
	t       *testing.T
	ch      *fakeChannel
	ui      *recordingPresenter
	loop    *Loop
	media   *fakeMedia
	metrics *recordingMetrics
	coord   *Coordinator
}

func newHarness(t *testing.T, configure ...func(*Options)) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		ch:      newFakeChannel(),
		ui:      &recordingPresenter{},
		loop:    NewLoop(64),
		metrics: newRecordingMetrics(),
	}
	opts := Options{
		Session:      "s1",
		Self:         selfUser,
		Friends:      []domain.UserInfo{robotFriend, humanFriend},
		Channel:      h.ch,
		Presenter:    h.ui,
		Loop:         h.loop,
		Metrics:      h.metrics,
		Robot:        RobotConfig{PingInterval: time.Hour, CommandRate: 1000, CommandBurst: 1000},
		VideoBaseURL: "http://video.local/stream",
	}
	for _, fn := range configure {
		fn(&opts)
	}
	if m, ok := opts.Media.(*fakeMedia); ok {
		h.media = m
	}
	coord, err := NewCoordinator(context.Background(), opts)
	require.NoError(t, err)
	h.coord = coord
	return h
}

func withMedia(m *fakeMedia) func(*Options) {
	return func(o *Options) { o.Media = m }
}

// event pushes a user event through the channel and runs the loop.
func (h *harness) event(typ domain.EventType, user string, data ...any) {
	h.t.Helper()
	if data == nil {
		data = []any{}
	}
	raw, err := json.Marshal(map[string]any{"type": typ, "username": user, "data": data})
	require.NoError(h.t, err)
	h.ch.emit(domain.TopicUserEvent, raw)
	h.loop.Drain()
}

func (h *harness) resolve(method string, v any) *fakeCall {
	h.t.Helper()
	c := h.ch.take(h.t, method)
	c.resolve(v)
	h.loop.Drain()
	return c
}

func (h *harness) fail(method string, err error) {
	h.t.Helper()
	h.ch.take(h.t, method).fail(err)
	h.loop.Drain()
}

func startInfo(activity, participant string) domain.StartInfo {
	return domain.StartInfo{ActivityID: domain.ActivityID(activity), ParticipantID: domain.ParticipantID(participant)}
}

func pending(id string) domain.InviteResult {
	return domain.InviteResult{Response: domain.InvitePending, InvitationID: domain.InvitationID(id)}
}
