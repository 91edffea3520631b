package cli_commands

import (
	"io"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"metamakers.org/rfid-access-mqtt/config"
	"metamakers.org/rfid-access-mqtt/hardware"
	"metamakers.org/rfid-access-mqtt/logging"
	"metamakers.org/rfid-access-mqtt/metrics"
	"metamakers.org/rfid-access-mqtt/relay"
)

const defaultRelayClientID = "ESP32_Relay_Client"

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Drives the relay pin from RFID_LOGIN",
	Long:  "Runs a relay node: subscribes to RFID_LOGIN and sets the relay pin high on \"1\" and low on \"0\"",
	Run:   runRelay,
}

var simulateRelay bool

func init() {
	rootCmd.AddCommand(relayCmd)

	relayCmd.Flags().BoolVarP(&simulateRelay, "simulate", "s", false, "Log pin levels instead of driving GPIO")
}

func runRelay(cmd *cobra.Command, args []string) {
	hardwareConfig := cfg.Hardware
	if simulateRelay {
		hardwareConfig.Driver = config.HardwareSimulated
	}

	pin, err := hardware.OpenRelayPin(hardwareConfig, logging.Component("pin"))
	if err != nil {
		log.Error().
			Str("error", err.Error()).
			Str("event", "OpenRelayPin").
			Str("driver", hardwareConfig.Driver).
			Str("pin", hardwareConfig.RelayPin).
			Msg("Failed to open the relay pin")
		syscall.Exit(4)
		return
	}
	if closer, ok := pin.(io.Closer); ok {
		defer closeQuietly(closer, "pin")
	}

	handler, err := relay.New(pin, func(signal relay.Signal) {
		metrics.SignalsApplied.WithLabelValues(signal.String()).Inc()
	}, logging.Component("relay"))
	if err != nil {
		log.Error().
			Str("error", err.Error()).
			Str("event", "RelayInit").
			Msg("Failed to drive the relay low")
		syscall.Exit(4)
		return
	}

	runNode(cmd.Context(), cfg.Broker.ClientIDOr(defaultRelayClientID), handler)
}
