package cli_commands

import (
	"os"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"metamakers.org/rfid-access-mqtt/config"
	"metamakers.org/rfid-access-mqtt/logging"
)

var rootCmd = &cobra.Command{
	Use:              "porter",
	Short:            "RFID scanner and relay nodes plus their MQTT tooling",
	Long:             "RFID scanner and relay nodes that talk over MQTT, and the services and tools around them",
	PersistentPreRun: loadConfig,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var (
	settings = config.NewViper()
	cfg      config.Config
)

var cfgFile string
var username string
var password string
var mqttUri string
var clientID string
var protocol string
var logLevel string
var logFormat string

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "Config file (default: porter.yaml in /etc/porter, ~/.config or .)")
	flags.StringVarP(&username, "username", "u", "", "Username used to authenicate with the MQTT Broker")
	flags.StringVarP(&password, "password", "p", "", "Password used to authenicate with the MQTT Broker")
	flags.StringVarP(&mqttUri, "mqtt_uri", "m", "", "Uri used to connect to the mqtt broker")
	flags.StringVar(&clientID, "client_id", "", "Client id presented to the MQTT broker")
	flags.StringVar(&protocol, "protocol", "", "MQTT protocol version used by the nodes, 5 or 3.1.1")
	flags.StringVar(&logLevel, "log_level", "", "Log level: trace, debug, info, warn, error")
	flags.StringVar(&logFormat, "log_format", "", "Log format: console or json")

	settings.BindPFlag("broker.username", flags.Lookup("username"))
	settings.BindPFlag("broker.password", flags.Lookup("password"))
	settings.BindPFlag("broker.url", flags.Lookup("mqtt_uri"))
	settings.BindPFlag("broker.client_id", flags.Lookup("client_id"))
	settings.BindPFlag("broker.protocol", flags.Lookup("protocol"))
	settings.BindPFlag("log.level", flags.Lookup("log_level"))
	settings.BindPFlag("log.format", flags.Lookup("log_format"))
}

func loadConfig(cmd *cobra.Command, args []string) {
	loaded, err := config.Load(settings, cfgFile)
	if err != nil {
		logging.Setup(settings.GetString("log.level"), settings.GetString("log.format"))
		log.Error().
			Str("error", err.Error()).
			Str("event", "LoadConfig").
			Msg("Failed to load configuration")
		syscall.Exit(2)
		return
	}
	cfg = loaded
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	log.Debug().
		Str("event", "LoadConfig").
		Str("config_file", settings.ConfigFileUsed()).
		Str("broker", cfg.Broker.URL).
		Str("protocol", cfg.Broker.Protocol).
		Msg("Configuration loaded")
}
