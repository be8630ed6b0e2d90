package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Wyydra/interbot/internal/core/domain"
	"github.com/stretchr/testify/require"
)

const sample = `
server:
  url: wss://general.ai/wamp
  session_id: s-1
  username: alice
  call_timeout: 3s
media:
  engine: memory
robot:
  ping_interval: 500ms
self:
  capabilities:
    - activity: webrtc
      role: caller
friends:
  - username: rob
    type: robot
    status: Online
    capabilities:
      - activity: control
        role: robot
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileOverDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	require.Equal(t, "wss://general.ai/wamp", cfg.Server.URL)
	require.Equal(t, 3*time.Second, cfg.Server.CallTimeout)
	require.Equal(t, MediaMemory, cfg.Media.Engine)
	require.Equal(t, 500*time.Millisecond, cfg.Robot.PingInterval)
	require.Equal(t, 20.0, cfg.Robot.CommandRate)
	require.Equal(t, ":8080", cfg.HTTP.Addr)
	require.Equal(t, DefaultPrefixes("alice"), cfg.Server.Prefixes)

	require.Len(t, cfg.Friends, 1)
	require.Equal(t, domain.UserRobot, cfg.Friends[0].Type)
	require.Equal(t, domain.ActivityName("control"), cfg.Friends[0].Capabilities[0].Activity)

	self := cfg.SelfInfo()
	require.Equal(t, "alice", self.Username)
	require.Equal(t, domain.UserHuman, self.Type)
	require.Equal(t, domain.StatusOnline, self.Status)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("INTERBOT_SERVER_URL", "ws://localhost:9000/wamp")
	t.Setenv("INTERBOT_SESSION_ID", "env-session")
	t.Setenv("INTERBOT_USERNAME", "carol")
	t.Setenv("INTERBOT_MEDIA_ENGINE", "NONE")
	t.Setenv("INTERBOT_HTTP_ADDR", "127.0.0.1:7000")
	t.Setenv("STUN_URLS", "stun:a:3478, stun:b:3478,")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "ws://localhost:9000/wamp", cfg.Server.URL)
	require.Equal(t, "env-session", cfg.Server.SessionID)
	require.Equal(t, MediaNone, cfg.Media.Engine)
	require.Equal(t, "127.0.0.1:7000", cfg.HTTP.Addr)
	require.Equal(t, []ICEServer{{URLs: []string{"stun:a:3478", "stun:b:3478"}}}, cfg.Media.ICEServers)
	require.Equal(t, "wamp://carol@general.ai/events/", cfg.Server.Prefixes["event"])
}

func TestTurnNeedsCredentials(t *testing.T) {
	t.Setenv("TURN_URLS", "turn:relay:3478")
	_, err := Load(writeConfig(t, sample))
	require.ErrorContains(t, err, "TURN_USERNAME")

	t.Setenv("TURN_USERNAME", "u")
	t.Setenv("TURN_PASSWORD", "p")
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	require.Equal(t, []ICEServer{{URLs: []string{"turn:relay:3478"}, Username: "u", Credential: "p"}}, cfg.Media.ICEServers)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.ErrorContains(t, err, "server.url is required")
	require.ErrorContains(t, err, "server.session_id is required")
	require.ErrorContains(t, err, "server.username is required")

	cfg.Server.URL = "http://example.com"
	cfg.Server.SessionID = "s"
	cfg.Server.Username = "alice"
	cfg.Media.Engine = "gstreamer"
	cfg.Friends = []domain.UserInfo{{Username: "rob"}, {Username: "rob"}, {Username: "alice"}}
	err = cfg.Validate()
	require.ErrorContains(t, err, "not a ws:// or wss:// url")
	require.ErrorContains(t, err, `media.engine "gstreamer"`)
	require.ErrorContains(t, err, `friend "rob" listed twice`)
	require.ErrorContains(t, err, `friend "alice" is the logged in user`)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorContains(t, err, "read config")
}
