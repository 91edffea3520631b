package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestDefaultRepeatSuppressOutlastsHold(t *testing.T) {
	scanner := Default().Scanner
	assert.Greater(t, scanner.RepeatSuppress, scanner.Hold)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	t.Setenv("HOME", dir)

	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)

	assert.Empty(t, cfg.Network.Candidates)
	cfg.Network.Candidates = nil
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "porter.yaml")
	content := `
broker:
  url: tcp://10.56.202.215
  protocol: "3.1.1"
  retry_delay: 1s
network:
  station: nmcli
  interface: wlan0
  candidates:
    - ssid: MORPHEUS
      password: secret
    - ssid: backup
scanner:
  hold: 3s
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))

	cfg, err := Load(NewViper(), file)
	require.NoError(t, err)

	assert.Equal(t, ProtocolV3, cfg.Broker.Protocol)
	assert.Equal(t, time.Second, cfg.Broker.RetryDelay)
	assert.Equal(t, StationNMCLI, cfg.Network.Station)
	assert.Equal(t, []Candidate{
		{SSID: "MORPHEUS", Password: "secret"},
		{SSID: "backup"},
	}, cfg.Network.Candidates)
	assert.Equal(t, 3*time.Second, cfg.Scanner.Hold)
	assert.Equal(t, 50*time.Millisecond, cfg.Scanner.IdleDelay, "unset keys keep their defaults")

	serverURL, err := cfg.Broker.ServerURL()
	require.NoError(t, err)
	assert.Equal(t, "10.56.202.215:1883", serverURL.Host)
}

func TestLoadMissingNamedFile(t *testing.T) {
	_, err := Load(NewViper(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("MQTT_URI", "mqtt://broker.local:1884")
	t.Setenv("RFID_SCANNER_HOLD", "500ms")
	t.Setenv("DB_CONNECTION_URI", "user:pass@tcp(db:3306)/rfid")

	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)

	assert.Equal(t, "mqtt://broker.local:1884", cfg.Broker.URL)
	assert.Equal(t, 500*time.Millisecond, cfg.Scanner.Hold)
	assert.Equal(t, "user:pass@tcp(db:3306)/rfid", cfg.Database.DSN)
}

func TestValidate(t *testing.T) {
	tcs := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad scheme", func(c *Config) { c.Broker.URL = "http://broker:1883" }},
		{"missing host", func(c *Config) { c.Broker.URL = "mqtt://:1883" }},
		{"bad protocol", func(c *Config) { c.Broker.Protocol = "4" }},
		{"bad station", func(c *Config) { c.Network.Station = "wpa" }},
		{"candidate without ssid", func(c *Config) { c.Network.Candidates = []Candidate{{Password: "x"}} }},
		{"bad hardware", func(c *Config) { c.Hardware.Driver = "arduino" }},
		{"zero retry delay", func(c *Config) { c.Broker.RetryDelay = 0 }},
		{"zero tick", func(c *Config) { c.Node.Tick = 0 }},
		{"negative suppress", func(c *Config) { c.Scanner.RepeatSuppress = -time.Second }},
		{"empty queue", func(c *Config) { c.Broker.QueueSize = 0 }},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestClientIDOr(t *testing.T) {
	assert.Equal(t, "rfid_scanner", BrokerConfig{}.ClientIDOr("rfid_scanner"))
	assert.Equal(t, "door-1", BrokerConfig{ClientID: "door-1"}.ClientIDOr("rfid_scanner"))
}

func TestRenderRoundTrip(t *testing.T) {
	out, err := Render(NewViper())
	require.NoError(t, err)

	var settings map[string]any
	require.NoError(t, yaml.Unmarshal(out, &settings))
	assert.Equal(t, "5s", settings["broker"].(map[string]any)["retry_delay"])

	file := filepath.Join(t.TempDir(), "porter.yaml")
	require.NoError(t, os.WriteFile(file, out, 0o600))

	cfg, err := Load(NewViper(), file)
	require.NoError(t, err)
	assert.Equal(t, Default().Scanner, cfg.Scanner)
}
