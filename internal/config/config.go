package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/Wyydra/interbot/internal/core/domain"
	"gopkg.in/yaml.v3"
)

const (
	MediaPion   = "pion"
	MediaMemory = "memory"
	MediaNone   = "none"
)

type Config struct {
	Server  ServerConfig      `yaml:"server"`
	HTTP    HTTPConfig        `yaml:"http"`
	Media   MediaConfig       `yaml:"media"`
	Robot   RobotConfig       `yaml:"robot"`
	Video   VideoConfig       `yaml:"video"`
	Redis   RedisConfig       `yaml:"redis"`
	Log     LogConfig         `yaml:"log"`
	Self    SelfConfig        `yaml:"self"`
	Friends []domain.UserInfo `yaml:"friends"`
}

type ServerConfig struct {
	URL         string            `yaml:"url"`
	SessionID   string            `yaml:"session_id"`
	Username    string            `yaml:"username"`
	UserType    domain.UserType   `yaml:"user_type"`
	CallTimeout time.Duration     `yaml:"call_timeout"`
	Prefixes    map[string]string `yaml:"prefixes"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type MediaConfig struct {
	Engine     string      `yaml:"engine"`
	ICEServers []ICEServer `yaml:"ice_servers"`
}

type ICEServer struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username"`
	Credential string   `yaml:"credential"`
}

type RobotConfig struct {
	PingInterval time.Duration `yaml:"ping_interval"`
	CommandRate  float64       `yaml:"command_rate"`
	CommandBurst int           `yaml:"command_burst"`
}

type VideoConfig struct {
	BaseURL string `yaml:"base_url"`
}

type RedisConfig struct {
	Addr   string `yaml:"addr"`
	Prefix string `yaml:"prefix"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

type SelfConfig struct {
	Capabilities []domain.Capability `yaml:"capabilities"`
	Properties   map[string]any      `yaml:"properties"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			UserType:    domain.UserHuman,
			CallTimeout: 10 * time.Second,
		},
		HTTP: HTTPConfig{Addr: ":8080"},
		Media: MediaConfig{
			Engine: MediaPion,
			ICEServers: []ICEServer{
				{URLs: []string{"stun:stun.l.google.com:19302"}},
			},
		},
		Robot: RobotConfig{
			PingInterval: 2 * time.Second,
			CommandRate:  20,
			CommandBurst: 5,
		},
		Redis: RedisConfig{Prefix: "interbot"},
		Log:   LogConfig{Level: "info", Console: true},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if len(cfg.Server.Prefixes) == 0 {
		cfg.Server.Prefixes = DefaultPrefixes(cfg.Server.Username)
	}
	return cfg, cfg.Validate()
}

// DefaultPrefixes maps the event and rpc CURIEs to the user's home on the
// server.
func DefaultPrefixes(username string) map[string]string {
	return map[string]string{
		"event": "wamp://" + username + "@general.ai/events/",
		"rpc":   "wamp://general.ai/rpc/",
	}
}

func getenv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func applyEnv(cfg *Config) error {
	cfg.Server.URL = getenv("INTERBOT_SERVER_URL", cfg.Server.URL)
	cfg.Server.SessionID = getenv("INTERBOT_SESSION_ID", cfg.Server.SessionID)
	cfg.Server.Username = getenv("INTERBOT_USERNAME", cfg.Server.Username)
	cfg.HTTP.Addr = getenv("INTERBOT_HTTP_ADDR", cfg.HTTP.Addr)
	cfg.Redis.Addr = getenv("INTERBOT_REDIS_ADDR", cfg.Redis.Addr)
	cfg.Media.Engine = strings.ToLower(getenv("INTERBOT_MEDIA_ENGINE", cfg.Media.Engine))
	cfg.Log.Level = getenv("INTERBOT_LOG_LEVEL", cfg.Log.Level)

	stun := splitAndClean(os.Getenv("STUN_URLS"))
	turn := splitAndClean(os.Getenv("TURN_URLS"))
	if len(stun) == 0 && len(turn) == 0 {
		return nil
	}
	var servers []ICEServer
	if len(stun) > 0 {
		servers = append(servers, ICEServer{URLs: stun})
	}
	if len(turn) > 0 {
		user := strings.TrimSpace(os.Getenv("TURN_USERNAME"))
		pass := strings.TrimSpace(os.Getenv("TURN_PASSWORD"))
		if user == "" || pass == "" {
			return errors.New("TURN_URLS needs TURN_USERNAME and TURN_PASSWORD")
		}
		servers = append(servers, ICEServer{URLs: turn, Username: user, Credential: pass})
	}
	cfg.Media.ICEServers = servers
	return nil
}

func splitAndClean(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c Config) Validate() error {
	var errs []error
	if c.Server.URL == "" {
		errs = append(errs, errors.New("server.url is required"))
	} else if u, err := url.Parse(c.Server.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		errs = append(errs, fmt.Errorf("server.url %q is not a ws:// or wss:// url", c.Server.URL))
	}
	if c.Server.SessionID == "" {
		errs = append(errs, errors.New("server.session_id is required"))
	}
	if c.Server.Username == "" {
		errs = append(errs, errors.New("server.username is required"))
	}
	if c.Server.UserType != domain.UserHuman && c.Server.UserType != domain.UserRobot {
		errs = append(errs, fmt.Errorf("server.user_type %q is not human or robot", c.Server.UserType))
	}
	if c.Server.CallTimeout <= 0 {
		errs = append(errs, errors.New("server.call_timeout must be positive"))
	}
	switch c.Media.Engine {
	case MediaPion, MediaMemory, MediaNone:
	default:
		errs = append(errs, fmt.Errorf("media.engine %q is not pion, memory or none", c.Media.Engine))
	}
	if c.Robot.PingInterval <= 0 || c.Robot.CommandRate <= 0 || c.Robot.CommandBurst <= 0 {
		errs = append(errs, errors.New("robot settings must be positive"))
	}
	seen := make(map[string]bool, len(c.Friends))
	for _, f := range c.Friends {
		switch {
		case f.Username == "":
			errs = append(errs, errors.New("friend without username"))
		case f.Username == c.Server.Username:
			errs = append(errs, fmt.Errorf("friend %q is the logged in user", f.Username))
		case seen[f.Username]:
			errs = append(errs, fmt.Errorf("friend %q listed twice", f.Username))
		}
		seen[f.Username] = true
	}
	return errors.Join(errs...)
}

// SelfInfo is the logged in user as the coordinator starts with it.
func (c Config) SelfInfo() domain.UserInfo {
	return domain.UserInfo{
		Username:     c.Server.Username,
		Type:         c.Server.UserType,
		Status:       domain.StatusOnline,
		Capabilities: c.Self.Capabilities,
		Properties:   c.Self.Properties,
	}
}
