package pion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/Wyydra/interbot/internal/core/domain"
	"github.com/Wyydra/interbot/internal/core/port"
	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoTopic = errors.New("call has no p2p topic")
	ErrHungUp  = errors.New("engine hung up")
)

// Factory builds one Engine per call. Engines exchange offer, answer and
// candidate signals over the call's p2p topic.
type Factory struct {
	api     *webrtc.API
	config  webrtc.Configuration
	channel port.Channel
	self    string
}

func NewFactory(channel port.Channel, self string, iceServers []webrtc.ICEServer) (*Factory, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, err
	}
	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(registry),
	)
	return &Factory{
		api:     api,
		config:  webrtc.Configuration{ICEServers: iceServers},
		channel: channel,
		self:    self,
	}, nil
}

func (f *Factory) NewEngine(topic string) (port.MediaEngine, error) {
	if topic == "" {
		return nil, ErrNoTopic
	}
	return &Engine{
		api:     f.api,
		config:  f.config,
		channel: f.channel,
		topic:   topic,
		self:    f.self,
	}, nil
}

type Engine struct {
	api     *webrtc.API
	config  webrtc.Configuration
	channel port.Channel
	topic   string
	self    string

	mu         sync.Mutex
	pc         *webrtc.PeerConnection
	candidates []webrtc.ICECandidateInit
	closed     bool
}

// Call opens the peer connection and sends the offer.
func (e *Engine) Call(ctx context.Context) error {
	pc, err := e.open()
	if err != nil {
		return err
	}
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return err
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return err
	}
	return e.send(domain.SignalOffer, offer.SDP)
}

// Listen opens the peer connection and waits for the caller's offer.
func (e *Engine) Listen(ctx context.Context, onReady func()) error {
	if _, err := e.open(); err != nil {
		return err
	}
	go onReady()
	return nil
}

func (e *Engine) Hangup() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	pc := e.pc
	e.mu.Unlock()

	if pc == nil {
		return
	}
	if err := e.send(domain.SignalHangup, ""); err != nil {
		log.Debug().Err(err).Str("topic", e.topic).Msg("Failed to send hangup")
	}
	if err := e.channel.Unsubscribe(e.topic); err != nil {
		log.Debug().Err(err).Str("topic", e.topic).Msg("Failed to unsubscribe from p2p topic")
	}
	if err := pc.Close(); err != nil {
		log.Error().Err(err).Str("topic", e.topic).Msg("Failed to close peer connection")
	}
}

func (e *Engine) open() (*webrtc.PeerConnection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrHungUp
	}
	if e.pc != nil {
		return e.pc, nil
	}

	pc, err := e.api.NewPeerConnection(e.config)
	if err != nil {
		return nil, err
	}
	// Receive-only: the robot or the browser provides the media.
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			_ = pc.Close()
			return nil, err
		}
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		b, err := json.Marshal(c.ToJSON())
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal candidate")
			return
		}
		if err := e.send(domain.SignalCandidate, string(b)); err != nil {
			log.Warn().Err(err).Str("topic", e.topic).Msg("Failed to send candidate")
		}
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("topic", e.topic).Str("state", s.String()).Msg("Call connection state changed")
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Debug().Str("kind", track.Kind().String()).Str("topic", e.topic).Msg("Received remote track")
		go e.consume(pc, track)
	})

	if err := e.channel.Subscribe(e.topic, e.onSignal); err != nil {
		_ = pc.Close()
		return nil, err
	}
	e.pc = pc
	return pc, nil
}

// consume drains a remote track and asks for a keyframe every few seconds
// until the track ends.
func (e *Engine) consume(pc *webrtc.PeerConnection, track *webrtc.TrackRemote) {
	done := make(chan struct{})
	defer close(done)

	if track.Kind() == webrtc.RTPCodecTypeVideo {
		go func() {
			ticker := time.NewTicker(3 * time.Second)
			defer ticker.Stop()
			for {
				if err := pc.WriteRTCP([]rtcp.Packet{
					&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())},
				}); err != nil {
					return
				}
				select {
				case <-done:
					return
				case <-ticker.C:
				}
			}
		}()
	}

	buf := make([]byte, 1500)
	for {
		if _, _, err := track.Read(buf); err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug().Err(err).Str("topic", e.topic).Msg("Track read stopped")
			}
			return
		}
	}
}

func (e *Engine) send(t domain.SignalType, payload string) error {
	return e.channel.Publish(e.topic, domain.NewSignal(t, e.self, payload))
}

func (e *Engine) onSignal(_ string, raw json.RawMessage) {
	var s domain.Signal
	if err := json.Unmarshal(raw, &s); err != nil {
		log.Debug().Err(err).Str("topic", e.topic).Msg("Malformed signal")
		return
	}
	if s.From == e.self {
		return
	}

	e.mu.Lock()
	pc, closed := e.pc, e.closed
	e.mu.Unlock()
	if pc == nil || closed {
		return
	}

	var err error
	switch s.Type {
	case domain.SignalOffer:
		err = e.answer(pc, s.Payload)
	case domain.SignalAnswer:
		err = e.setRemote(pc, webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: s.Payload})
	case domain.SignalCandidate:
		err = e.addCandidate(pc, s.Payload)
	case domain.SignalHangup:
		log.Info().Str("topic", e.topic).Str("from", s.From).Msg("Peer hung up")
		err = pc.Close()
	}
	if err != nil {
		log.Error().Err(err).Str("type", string(s.Type)).Str("topic", e.topic).Msg("Failed to handle signal")
	}
}

func (e *Engine) answer(pc *webrtc.PeerConnection, sdp string) error {
	if err := e.setRemote(pc, webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}); err != nil {
		return err
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return err
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		return err
	}
	return e.send(domain.SignalAnswer, answer.SDP)
}

// setRemote applies sdp and then the candidates that arrived before it.
func (e *Engine) setRemote(pc *webrtc.PeerConnection, sdp webrtc.SessionDescription) error {
	if err := pc.SetRemoteDescription(sdp); err != nil {
		return err
	}
	e.mu.Lock()
	queued := e.candidates
	e.candidates = nil
	e.mu.Unlock()
	for _, c := range queued {
		if err := pc.AddICECandidate(c); err != nil {
			log.Warn().Err(err).Str("topic", e.topic).Msg("Failed to add queued candidate")
		}
	}
	return nil
}

func (e *Engine) addCandidate(pc *webrtc.PeerConnection, payload string) error {
	var c webrtc.ICECandidateInit
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return err
	}
	if pc.RemoteDescription() == nil {
		e.mu.Lock()
		e.candidates = append(e.candidates, c)
		e.mu.Unlock()
		return nil
	}
	return pc.AddICECandidate(c)
}
