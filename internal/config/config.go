package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Default configuration values (production)
const (
	DefaultDomain   = "shadowwhisper.qzz.io"
	DefaultSTUN     = "stun:stun.l.google.com:19302"
	DefaultTURN     = "" // Optional, empty by default
	DefaultTURNUser = ""
	DefaultTURNPass = ""

	// Coordinator timing defaults. All of these are tunable via flags or
	// environment; the defaults are sized for small rooms on consumer links.
	DefaultHeartbeatInterval = 5 * time.Second
	DefaultLivenessWindow    = 15 * time.Second
	DefaultRejoinLockout     = 30 * time.Second
	DefaultStateSyncInterval = 30 * time.Second
	DefaultDedupWindow       = 512
)

// Config holds application configuration
type Config struct {
	// Domain is the rendezvous relay domain
	Domain string

	// WebSocketURL is constructed from domain
	WebSocketURL string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool

	// HeartbeatInterval is how often the coordinator pings each peer link.
	HeartbeatInterval time.Duration

	// LivenessWindow is how long a peer may stay silent before it is
	// treated as departed. Must be larger than HeartbeatInterval.
	LivenessWindow time.Duration

	// RejoinLockout is how long a kicked participant is barred from
	// rejoining the same room code.
	RejoinLockout time.Duration

	// StateSyncInterval is how often the room creator rebroadcasts the
	// authoritative roster.
	StateSyncInterval time.Duration

	// DedupWindow is how many recently applied message identities the
	// coordinator remembers for duplicate suppression.
	DedupWindow int
}

// Options for loading config with CLI flag overrides
type Options struct {
	Domain     string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool

	HeartbeatInterval time.Duration
	LivenessWindow    time.Duration
	RejoinLockout     time.Duration
	DedupWindow       int
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	domain := stringValue(opts.Domain, "DOMAIN", DefaultDomain)
	stunServer := stringValue(opts.STUNServer, "STUN_SERVER", DefaultSTUN)
	turnServer := stringValue(opts.TURNServer, "TURN_SERVER", DefaultTURN)
	turnUser := stringValue(opts.TURNUser, "TURN_USERNAME", DefaultTURNUser)
	turnPass := stringValue(opts.TURNPass, "TURN_PASSWORD", DefaultTURNPass)

	heartbeat := durationValue(opts.HeartbeatInterval, "HEARTBEAT_INTERVAL", DefaultHeartbeatInterval)
	liveness := durationValue(opts.LivenessWindow, "LIVENESS_WINDOW", DefaultLivenessWindow)
	lockout := durationValue(opts.RejoinLockout, "REJOIN_LOCKOUT", DefaultRejoinLockout)
	dedup := intValue(opts.DedupWindow, "DEDUP_WINDOW", DefaultDedupWindow)

	if liveness <= heartbeat {
		return nil, fmt.Errorf("liveness window (%s) must exceed heartbeat interval (%s)", liveness, heartbeat)
	}

	return &Config{
		Domain:            domain,
		WebSocketURL:      fmt.Sprintf("wss://%s/ws", domain),
		STUNServer:        stunServer,
		TURNServer:        turnServer,
		TURNUser:          turnUser,
		TURNPass:          turnPass,
		ForceRelay:        opts.ForceRelay,
		HeartbeatInterval: heartbeat,
		LivenessWindow:    liveness,
		RejoinLockout:     lockout,
		StateSyncInterval: DefaultStateSyncInterval,
		DedupWindow:       dedup,
	}, nil
}

func stringValue(flag, env, fallback string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return fallback
}

func durationValue(flag time.Duration, env string, fallback time.Duration) time.Duration {
	if flag > 0 {
		return flag
	}
	if v := os.Getenv(env); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func intValue(flag int, env string, fallback int) int {
	if flag > 0 {
		return flag
	}
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
		fmt.Sprintf("turns:%s:5349?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
