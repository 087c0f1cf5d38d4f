// Package config loads the overlay-wide settings every node must agree on:
// the multicast pair, the TCP port range, and the three protocol timers.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Overlay-wide defaults.
const (
	DefaultMulticastGroup = "224.1.1.1"
	DefaultMulticastPort  = 5007
	DefaultTCPPortBase    = 10000

	DefaultHeartbeatInterval = Duration(5 * time.Second)
	DefaultHeartbeatTimeout  = Duration(15 * time.Second)
	DefaultElectionTimeout   = Duration(5 * time.Second)
)

// Duration is a time.Duration that unmarshals from YAML as a duration
// string ("5s", "250ms") instead of yaml.v3's default of raw
// nanoseconds, so a hand-written config file can use the same notation
// as the CHAT_* environment overrides.
type Duration time.Duration

// UnmarshalYAML accepts either a duration string or a plain integer
// (nanoseconds), so existing numeric config files keep working.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\" or an integer of nanoseconds")
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// Config carries every constant that all nodes in one overlay must agree
// on to interoperate. Loose agreement on the timers is tolerable; the
// multicast pair must match exactly.
type Config struct {
	MulticastGroup string `yaml:"multicast_group"`
	MulticastPort  int    `yaml:"multicast_port"`
	TCPPortBase    int    `yaml:"tcp_port_base"`

	HeartbeatInterval Duration `yaml:"heartbeat_interval"`
	HeartbeatTimeout  Duration `yaml:"heartbeat_timeout"`
	ElectionTimeout   Duration `yaml:"election_timeout"`
}

// Default returns the compile-time overlay defaults.
func Default() Config {
	return Config{
		MulticastGroup:    DefaultMulticastGroup,
		MulticastPort:     DefaultMulticastPort,
		TCPPortBase:       DefaultTCPPortBase,
		HeartbeatInterval: DefaultHeartbeatInterval,
		HeartbeatTimeout:  DefaultHeartbeatTimeout,
		ElectionTimeout:   DefaultElectionTimeout,
	}
}

// Load reads a YAML config file, falling back to defaults for any field the
// file omits, then applies environment variable overrides on top. An empty
// path skips the file and just applies defaults + environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.HeartbeatTimeout <= 2*cfg.HeartbeatInterval {
		return Config{}, fmt.Errorf("heartbeat_timeout (%s) must exceed 2x heartbeat_interval (%s)",
			cfg.HeartbeatTimeout, cfg.HeartbeatInterval)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CHAT_MULTICAST_GROUP"); v != "" {
		cfg.MulticastGroup = v
	}
	if v := os.Getenv("CHAT_MULTICAST_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MulticastPort = n
		}
	}
	if v := os.Getenv("CHAT_TCP_PORT_BASE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TCPPortBase = n
		}
	}
	if v := os.Getenv("CHAT_HEARTBEAT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HeartbeatInterval = Duration(d)
		}
	}
	if v := os.Getenv("CHAT_HEARTBEAT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HeartbeatTimeout = Duration(d)
		}
	}
	if v := os.Getenv("CHAT_ELECTION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ElectionTimeout = Duration(d)
		}
	}
}

// TCPPortRange returns the inclusive [low, high] range a node picks its
// direct-channel listener port from.
func (c Config) TCPPortRange() (low, high int) {
	return c.TCPPortBase + 100, c.TCPPortBase + 999
}
