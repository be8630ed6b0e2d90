package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Wyydra/interbot/internal/adapter/driven/channel/wamp"
	"github.com/Wyydra/interbot/internal/adapter/driven/gateway/ws"
	mediamemory "github.com/Wyydra/interbot/internal/adapter/driven/media/memory"
	"github.com/Wyydra/interbot/internal/adapter/driven/media/pion"
	"github.com/Wyydra/interbot/internal/adapter/driven/metrics/prometheus"
	repo "github.com/Wyydra/interbot/internal/adapter/driven/persistence/memory"
	redisrepo "github.com/Wyydra/interbot/internal/adapter/driven/persistence/redis"
	handler "github.com/Wyydra/interbot/internal/adapter/driving/http"
	"github.com/Wyydra/interbot/internal/config"
	"github.com/Wyydra/interbot/internal/core/domain"
	"github.com/Wyydra/interbot/internal/core/port"
	"github.com/Wyydra/interbot/internal/core/service"
	"github.com/pion/webrtc/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	setupLogger(cfg.Log)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	client, err := wamp.Dial(dialCtx, cfg.Server.URL, wamp.Options{
		Prefixes:    cfg.Server.Prefixes,
		CallTimeout: cfg.Server.CallTimeout,
	})
	cancel()
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.Server.URL).Msg("Failed to connect to server")
	}
	log.Info().Str("url", cfg.Server.URL).Str("wamp_session", client.Session()).Msg("Connected")

	metrics := prometheus.NewMetrics()
	hub := ws.NewHub()
	loop := service.NewLoop(0)

	media, err := newMedia(cfg, client)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up media")
	}

	presence := newPresence(ctx, cfg.Redis)

	go hub.Run()
	go loop.Run()

	// The coordinator outlives the signal so Close can still exit activities.
	coordCtx, coordCancel := context.WithCancel(context.Background())
	defer coordCancel()

	coord, err := service.NewCoordinator(coordCtx, service.Options{
		Session:   domain.SessionID(cfg.Server.SessionID),
		Self:      cfg.SelfInfo(),
		Friends:   cfg.Friends,
		Channel:   client,
		Presenter: hub,
		Loop:      loop,
		Media:     media,
		Presence:  presence,
		Metrics:   metrics,
		Robot: service.RobotConfig{
			PingInterval: cfg.Robot.PingInterval,
			CommandRate:  cfg.Robot.CommandRate,
			CommandBurst: cfg.Robot.CommandBurst,
		},
		VideoBaseURL: cfg.Video.BaseURL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start coordinator")
	}

	h := handler.NewHandler(coord, loop, hub, presence, metrics.Handler())

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: h.NewRouter(),
	}

	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("Starting local api")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down agent...")
	case <-client.Done():
		log.Warn().Msg("Server connection lost, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := loop.Do(shutdownCtx, coord.Close); err != nil {
		log.Error().Err(err).Msg("Failed to close coordinator")
	}
	select {
	case <-coord.Mirrored():
	case <-shutdownCtx.Done():
		log.Warn().Msg("Presence mirror not flushed")
	}
	loop.Stop()
	hub.Stop()
	if err := client.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close server connection")
	}
	log.Info().Msg("Agent exited")
}

func setupLogger(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var l zerolog.Logger
	if cfg.Console {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	} else {
		l = zerolog.New(os.Stdout)
	}
	log.Logger = l.With().Timestamp().Caller().Logger()
}

// newMedia returns nil when media is disabled; calls are then negotiated
// without a media session.
func newMedia(cfg config.Config, channel port.Channel) (port.MediaFactory, error) {
	switch cfg.Media.Engine {
	case config.MediaPion:
		servers := make([]webrtc.ICEServer, 0, len(cfg.Media.ICEServers))
		for _, s := range cfg.Media.ICEServers {
			servers = append(servers, webrtc.ICEServer{
				URLs:       s.URLs,
				Username:   s.Username,
				Credential: s.Credential,
			})
		}
		f, err := pion.NewFactory(channel, cfg.Server.Username, servers)
		if err != nil {
			return nil, err
		}
		return f, nil
	case config.MediaMemory:
		return mediamemory.NewFactory(), nil
	}
	return nil, nil
}

// newPresence mirrors the roster to Redis when it is reachable and keeps it
// in memory otherwise. Either way it backs GET /presence/{username}.
func newPresence(ctx context.Context, cfg config.RedisConfig) port.PresenceStore {
	if cfg.Addr == "" {
		return repo.NewPresenceRepository()
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Addr).Msg("Redis unreachable, keeping presence in memory")
		_ = rdb.Close()
		return repo.NewPresenceRepository()
	}
	log.Info().Str("addr", cfg.Addr).Msg("Mirroring presence to redis")
	return redisrepo.NewPresenceStore(rdb, cfg.Prefix)
}
