package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distribuidos-chat/chatnode/internal/config"
)

func TestDefaultMatchesSpecConstants(t *testing.T) {
	cfg := config.Default()

	assert.Equal(t, config.DefaultMulticastGroup, cfg.MulticastGroup)
	assert.Equal(t, config.DefaultMulticastPort, cfg.MulticastPort)
	assert.Equal(t, config.DefaultTCPPortBase, cfg.TCPPortBase)

	low, high := cfg.TCPPortRange()
	assert.Equal(t, config.DefaultTCPPortBase+100, low)
	assert.Equal(t, config.DefaultTCPPortBase+999, high)
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overlay.yaml")
	content := []byte("multicast_group: 224.2.2.2\nmulticast_port: 6000\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "224.2.2.2", cfg.MulticastGroup)
	assert.Equal(t, 6000, cfg.MulticastPort)
	// Unset fields keep their defaults.
	assert.Equal(t, config.DefaultHeartbeatInterval, cfg.HeartbeatInterval)
}

func TestLoadFromYAMLFileParsesDurationStrings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overlay.yaml")
	content := []byte("heartbeat_interval: 2s\nheartbeat_timeout: 8s\nelection_timeout: 1500ms\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, config.Duration(2*time.Second), cfg.HeartbeatInterval)
	assert.Equal(t, config.Duration(8*time.Second), cfg.HeartbeatTimeout)
	assert.Equal(t, config.Duration(1500*time.Millisecond), cfg.ElectionTimeout)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("multicast_port: 6000\n"), 0o600))
	t.Setenv("CHAT_MULTICAST_PORT", "7000")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.MulticastPort)
}

func TestLoadRejectsInvalidTimerRelationship(t *testing.T) {
	t.Setenv("CHAT_HEARTBEAT_TIMEOUT", "1s")
	t.Setenv("CHAT_HEARTBEAT_INTERVAL", "5s")

	_, err := config.Load("")
	assert.Error(t, err)
}
