package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix = "RFID"

	ProtocolV5   = "5"
	ProtocolV3   = "3.1.1"
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite3"

	StationHost  = "host"
	StationNMCLI = "nmcli"

	HardwarePeriph    = "periph"
	HardwareSimulated = "simulated"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
)

type Config struct {
	Broker   BrokerConfig   `mapstructure:"broker"`
	Network  NetworkConfig  `mapstructure:"network"`
	Hardware HardwareConfig `mapstructure:"hardware"`
	Node     NodeConfig     `mapstructure:"node"`
	Scanner  ScannerConfig  `mapstructure:"scanner"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type BrokerConfig struct {
	URL            string        `mapstructure:"url"`
	Protocol       string        `mapstructure:"protocol"`
	ClientID       string        `mapstructure:"client_id"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	KeepAlive      time.Duration `mapstructure:"keep_alive"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	QueueSize      int           `mapstructure:"queue_size"`
}

// NetworkConfig describes how a node gets onto the network before it dials
// the broker. Candidates are tried in order, the first one that joins wins.
type NetworkConfig struct {
	Station       string        `mapstructure:"station"`
	Interface     string        `mapstructure:"interface"`
	Candidates    []Candidate   `mapstructure:"candidates"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
	JoinTimeout   time.Duration `mapstructure:"join_timeout"`
}

type Candidate struct {
	SSID     string `mapstructure:"ssid"`
	Password string `mapstructure:"password"`
}

type HardwareConfig struct {
	Driver      string        `mapstructure:"driver"`
	SPIPort     string        `mapstructure:"spi_port"`
	ResetPin    string        `mapstructure:"reset_pin"`
	IRQPin      string        `mapstructure:"irq_pin"`
	RelayPin    string        `mapstructure:"relay_pin"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

type NodeConfig struct {
	Tick            time.Duration `mapstructure:"tick"`
	CheckInInterval time.Duration `mapstructure:"check_in_interval"`
}

type ScannerConfig struct {
	IdleDelay      time.Duration `mapstructure:"idle_delay"`
	Hold           time.Duration `mapstructure:"hold"`
	RepeatSuppress time.Duration `mapstructure:"repeat_suppress"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
	Path   string `mapstructure:"path"`
}

// Default carries the firmware timings:
// 5s between broker attempts, 1s between network attempts, 50ms idle poll and
// a 2s hold after a card was read. The same card is dropped for 5s, longer
// than the hold.
func Default() Config {
	return Config{
		Broker: BrokerConfig{
			URL:            "mqtt://127.0.0.1:1883",
			Protocol:       ProtocolV5,
			KeepAlive:      20 * time.Second,
			ConnectTimeout: 10 * time.Second,
			RetryDelay:     5 * time.Second,
			QueueSize:      32,
		},
		Network: NetworkConfig{
			Station:       StationHost,
			RetryDelay:    time.Second,
			CheckInterval: 10 * time.Second,
			JoinTimeout:   30 * time.Second,
		},
		Hardware: HardwareConfig{
			Driver:      HardwarePeriph,
			ResetPin:    "GPIO25",
			IRQPin:      "GPIO24",
			RelayPin:    "GPIO23",
			ReadTimeout: 100 * time.Millisecond,
		},
		Node: NodeConfig{
			Tick:            10 * time.Millisecond,
			CheckInInterval: 2 * time.Minute,
		},
		Scanner: ScannerConfig{
			IdleDelay:      50 * time.Millisecond,
			Hold:           2 * time.Second,
			RepeatSuppress: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          DriverMySQL,
			ConnMaxLifetime: 3 * time.Minute,
			MaxOpenConns:    1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
	}
}

// SetDefaults registers every key of Default with v. Keys viper does not
// know about are invisible to AutomaticEnv during Unmarshal, so every field
// is listed.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("broker.url", d.Broker.URL)
	v.SetDefault("broker.protocol", d.Broker.Protocol)
	v.SetDefault("broker.client_id", d.Broker.ClientID)
	v.SetDefault("broker.username", d.Broker.Username)
	v.SetDefault("broker.password", d.Broker.Password)
	v.SetDefault("broker.keep_alive", d.Broker.KeepAlive)
	v.SetDefault("broker.connect_timeout", d.Broker.ConnectTimeout)
	v.SetDefault("broker.retry_delay", d.Broker.RetryDelay)
	v.SetDefault("broker.queue_size", d.Broker.QueueSize)

	v.SetDefault("network.station", d.Network.Station)
	v.SetDefault("network.interface", d.Network.Interface)
	v.SetDefault("network.candidates", []map[string]string{})
	v.SetDefault("network.retry_delay", d.Network.RetryDelay)
	v.SetDefault("network.check_interval", d.Network.CheckInterval)
	v.SetDefault("network.join_timeout", d.Network.JoinTimeout)

	v.SetDefault("hardware.driver", d.Hardware.Driver)
	v.SetDefault("hardware.spi_port", d.Hardware.SPIPort)
	v.SetDefault("hardware.reset_pin", d.Hardware.ResetPin)
	v.SetDefault("hardware.irq_pin", d.Hardware.IRQPin)
	v.SetDefault("hardware.relay_pin", d.Hardware.RelayPin)
	v.SetDefault("hardware.read_timeout", d.Hardware.ReadTimeout)

	v.SetDefault("node.tick", d.Node.Tick)
	v.SetDefault("node.check_in_interval", d.Node.CheckInInterval)

	v.SetDefault("scanner.idle_delay", d.Scanner.IdleDelay)
	v.SetDefault("scanner.hold", d.Scanner.Hold)
	v.SetDefault("scanner.repeat_suppress", d.Scanner.RepeatSuppress)

	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("database.conn_max_lifetime", d.Database.ConnMaxLifetime)
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("metrics.listen", d.Metrics.Listen)
	v.SetDefault("metrics.path", d.Metrics.Path)
}

// NewViper returns a viper instance with defaults and environment bindings.
// RFID_BROKER_URL style variables work for every key; the door controller
// tooling names (MQTT_URI, MQTT_USER, MQTT_PASSWORD, DB_CONNECTION_URI) are
// honoured as well.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("broker.url", EnvPrefix+"_BROKER_URL", "MQTT_URI")
	v.BindEnv("broker.username", EnvPrefix+"_BROKER_USERNAME", "MQTT_USER")
	v.BindEnv("broker.password", EnvPrefix+"_BROKER_PASSWORD", "MQTT_PASSWORD")
	v.BindEnv("database.dsn", EnvPrefix+"_DATABASE_DSN", "DB_CONNECTION_URI")

	return v
}

// Load reads cfgFile (or searches the default locations when empty), decodes
// the merged settings and validates them. A missing file is only an error
// when it was named explicitly.
func Load(v *viper.Viper, cfgFile string) (Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("porter")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/porter")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config"))
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (cfg Config) Validate() error {
	if _, err := cfg.Broker.ServerURL(); err != nil {
		return err
	}

	switch cfg.Broker.Protocol {
	case ProtocolV5, ProtocolV3:
	default:
		return fmt.Errorf("%w: broker.protocol must be %q or %q, got %q",
			ErrInvalidConfig, ProtocolV5, ProtocolV3, cfg.Broker.Protocol)
	}

	switch cfg.Network.Station {
	case StationHost, StationNMCLI:
	default:
		return fmt.Errorf("%w: network.station must be %q or %q, got %q",
			ErrInvalidConfig, StationHost, StationNMCLI, cfg.Network.Station)
	}

	for idx, candidate := range cfg.Network.Candidates {
		if candidate.SSID == "" {
			return fmt.Errorf("%w: network.candidates[%d] is missing ssid", ErrInvalidConfig, idx)
		}
	}

	switch cfg.Hardware.Driver {
	case HardwarePeriph, HardwareSimulated:
	default:
		return fmt.Errorf("%w: hardware.driver must be %q or %q, got %q",
			ErrInvalidConfig, HardwarePeriph, HardwareSimulated, cfg.Hardware.Driver)
	}

	positive := map[string]time.Duration{
		"broker.connect_timeout": cfg.Broker.ConnectTimeout,
		"broker.retry_delay":     cfg.Broker.RetryDelay,
		"network.retry_delay":    cfg.Network.RetryDelay,
		"network.check_interval": cfg.Network.CheckInterval,
		"node.tick":              cfg.Node.Tick,
		"scanner.idle_delay":     cfg.Scanner.IdleDelay,
		"scanner.hold":           cfg.Scanner.Hold,
	}
	for key, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidConfig, key, value)
		}
	}

	if cfg.Scanner.RepeatSuppress < 0 || cfg.Node.CheckInInterval < 0 {
		return fmt.Errorf("%w: scanner.repeat_suppress and node.check_in_interval cannot be negative", ErrInvalidConfig)
	}

	if cfg.Broker.QueueSize < 1 {
		return fmt.Errorf("%w: broker.queue_size must be at least 1", ErrInvalidConfig)
	}

	return nil
}

// ServerURL parses the broker url. mqtt:// and tcp:// are equivalent, the
// port defaults to 1883.
func (broker BrokerConfig) ServerURL() (*url.URL, error) {
	serverURL, err := url.Parse(broker.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: broker.url: %w", ErrInvalidConfig, err)
	}

	switch serverURL.Scheme {
	case "mqtt", "tcp":
	default:
		return nil, fmt.Errorf("%w: broker.url scheme must be mqtt or tcp, got %q", ErrInvalidConfig, serverURL.Scheme)
	}

	if serverURL.Hostname() == "" {
		return nil, fmt.Errorf("%w: broker.url is missing a host", ErrInvalidConfig)
	}

	if serverURL.Port() == "" {
		serverURL.Host = net.JoinHostPort(serverURL.Hostname(), "1883")
	}

	return serverURL, nil
}

// ClientIDOr returns the configured client id or fallback when none is set.
func (broker BrokerConfig) ClientIDOr(fallback string) string {
	if broker.ClientID != "" {
		return broker.ClientID
	}
	return fallback
}

// Render returns the settings known to v as YAML. Durations are written in
// their string form so the output can be fed back as a config file.
func Render(v *viper.Viper) ([]byte, error) {
	return yaml.Marshal(readable(v.AllSettings()))
}

func readable(value any) any {
	switch value := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(value))
		for key, nested := range value {
			out[key] = readable(nested)
		}
		return out
	case []any:
		out := make([]any, len(value))
		for idx, nested := range value {
			out[idx] = readable(nested)
		}
		return out
	case time.Duration:
		return value.String()
	default:
		return value
	}
}
