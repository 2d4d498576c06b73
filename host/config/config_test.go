package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greendot/core"
)

func TestParseFull(t *testing.T) {
	cfg, err := Parse([]byte(`
profile: base
monitor:
  device: /dev/ttyACM1
  baud: 115200
  read_timeout_ms: 50
  poll_interval_ms: 250
probe:
  port: /dev/spidev0.0
  speed_hz: 500000
  mode: 0
  filler: 0xFF
`))
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))

	assert.Equal(t, "base", cfg.Profile)
	assert.Equal(t, "/dev/ttyACM1", cfg.Monitor.Device)
	assert.Equal(t, 115200, cfg.Monitor.Baud)
	assert.Equal(t, 50*time.Millisecond, cfg.Monitor.ReadTimeout())
	assert.Equal(t, 250*time.Millisecond, cfg.Monitor.PollInterval())
	assert.Equal(t, "/dev/spidev0.0", cfg.Probe.Port)
	assert.Equal(t, int64(500000), cfg.Probe.SpeedHz)
	assert.Equal(t, 0, cfg.Probe.SPIMode())
	assert.Equal(t, uint8(0xFF), cfg.Probe.Filler)
}

func TestDefaults(t *testing.T) {
	cfg, err := Parse([]byte(""))
	require.NoError(t, err)

	assert.Equal(t, core.ExtendedProfile.Name, cfg.Profile)
	assert.Equal(t, "/dev/ttyACM0", cfg.Monitor.Device)
	assert.Equal(t, 250000, cfg.Monitor.Baud)
	assert.Equal(t, 100*time.Millisecond, cfg.Monitor.ReadTimeout())
	assert.Equal(t, time.Second, cfg.Monitor.PollInterval())
	assert.Equal(t, int64(1000000), cfg.Probe.SpeedHz)
	assert.Equal(t, 3, cfg.Probe.SPIMode())

	assert.Equal(t, Default(), cfg)
}

func TestUnknownKeyRejected(t *testing.T) {
	_, err := Parse([]byte("monitor:\n  devcie: /dev/ttyACM0\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Profile = "gold"
	assert.ErrorIs(t, Validate(cfg), core.ErrUnknownProfile)

	cfg = Default()
	mode := 5
	cfg.Probe.Mode = &mode
	assert.Error(t, Validate(cfg))

	cfg = Default()
	cfg.Monitor.PollIntervalMs = -1
	assert.Error(t, Validate(cfg))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "greendot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profile: extended\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "extended", cfg.Profile)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
