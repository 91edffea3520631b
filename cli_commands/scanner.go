package cli_commands

import (
	"io"
	"os"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"metamakers.org/rfid-access-mqtt/card"
	"metamakers.org/rfid-access-mqtt/config"
	"metamakers.org/rfid-access-mqtt/hardware"
	"metamakers.org/rfid-access-mqtt/logging"
	"metamakers.org/rfid-access-mqtt/metrics"
	"metamakers.org/rfid-access-mqtt/scanner"
)

const defaultScannerClientID = "ESP32_Scanner_Client"

var scannerCmd = &cobra.Command{
	Use:   "scanner",
	Short: "Publishes every presented card on RFID_SCAN",
	Long:  "Runs a scanner node: reads cards from the MFRC522 (or stdin when simulated) and publishes each uid on RFID_SCAN",
	Run:   runScanner,
}

var simulateScanner bool

func init() {
	rootCmd.AddCommand(scannerCmd)

	scannerCmd.Flags().BoolVarP(&simulateScanner, "simulate", "s", false, "Read hex uids from stdin instead of the card reader")
}

func runScanner(cmd *cobra.Command, args []string) {
	hardwareConfig := cfg.Hardware
	if simulateScanner {
		hardwareConfig.Driver = config.HardwareSimulated
	}

	reader, err := hardware.OpenReader(hardwareConfig, os.Stdin, logging.Component("reader"))
	if err != nil {
		log.Error().
			Str("error", err.Error()).
			Str("event", "OpenReader").
			Str("driver", hardwareConfig.Driver).
			Msg("Failed to open the card reader")
		syscall.Exit(4)
		return
	}
	defer closeQuietly(reader, "reader")

	handler := scanner.New(scanner.Options{
		Reader:         reader,
		IdleDelay:      cfg.Scanner.IdleDelay,
		Hold:           cfg.Scanner.Hold,
		RepeatSuppress: cfg.Scanner.RepeatSuppress,
		OnScan: func(uid card.UID) {
			metrics.ScansPublished.Inc()
		},
		Log: logging.Component("scanner"),
	})

	runNode(cmd.Context(), cfg.Broker.ClientIDOr(defaultScannerClientID), handler)
}

func closeQuietly(closer io.Closer, what string) {
	if err := closer.Close(); err != nil {
		log.Warn().
			Str("error", err.Error()).
			Str("event", "Close").
			Str("resource", what).
			Msg("Failed to close")
	}
}
