package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, DefaultDomain, cfg.Domain)
	assert.Equal(t, "wss://"+DefaultDomain+"/ws", cfg.WebSocketURL)
	assert.Equal(t, DefaultHeartbeatInterval, cfg.HeartbeatInterval)
	assert.Equal(t, DefaultLivenessWindow, cfg.LivenessWindow)
	assert.Equal(t, DefaultDedupWindow, cfg.DedupWindow)
}

func TestFlagsBeatEnvironment(t *testing.T) {
	t.Setenv("DOMAIN", "env.example.com")
	t.Setenv("HEARTBEAT_INTERVAL", "9s")

	cfg, err := Load(Options{Domain: "flag.example.com"})
	require.NoError(t, err)

	assert.Equal(t, "flag.example.com", cfg.Domain)
	assert.Equal(t, 9*time.Second, cfg.HeartbeatInterval)
}

func TestLivenessMustExceedHeartbeat(t *testing.T) {
	_, err := Load(Options{
		HeartbeatInterval: 10 * time.Second,
		LivenessWindow:    5 * time.Second,
	})
	assert.Error(t, err)
}

func TestTURNServerExpansion(t *testing.T) {
	cfg, err := Load(Options{TURNServer: "turn:turn.example.com"})
	require.NoError(t, err)

	servers := cfg.GetTURNServers()
	require.Len(t, servers, 3)
	assert.Contains(t, servers[0], "transport=udp")

	empty, err := Load(Options{})
	require.NoError(t, err)
	assert.Nil(t, empty.GetTURNServers())
}
