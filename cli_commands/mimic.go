package cli_commands

import (
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"metamakers.org/rfid-access-mqtt/models"
)

const defaultMimicClientID = "RFID_Mimic"

var mimicCmd = &cobra.Command{
	Use:   "mimic",
	Short: "Mimics the scanner, relay and authorizer for easier testing",
	Long:  "Mimics what the scanner, relay and authorizer would publish for easier testing",
	Run:   runMimic,
}

func init() {
	rootCmd.AddCommand(mimicCmd)
}

func runMimic(cmd *cobra.Command, args []string) {
	model, err := models.InitMimicModel(cmd.Context(), cfg.Broker, cfg.Broker.ClientIDOr(defaultMimicClientID))
	if err != nil {
		log.Error().
			Str("error", err.Error()).
			Str("event", "TerminalSize").
			Msg("Mimic needs a terminal")
		syscall.Exit(1)
		return
	}

	// The log would draw over the alt screen.
	zerolog.SetGlobalLevel(zerolog.Disabled)

	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		log.Error().
			Str("error", err.Error()).
			Str("event", "TUI").
			Msg("Error running TUI")
		syscall.Exit(1)
	}
}
