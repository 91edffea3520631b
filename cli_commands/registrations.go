package cli_commands

import (
	"errors"
	"fmt"
	"strconv"
	"syscall"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"metamakers.org/rfid-access-mqtt/authorizer"
	"metamakers.org/rfid-access-mqtt/card"
)

var registrationsCmd = &cobra.Command{
	Use:              "registrations",
	Short:            "Prints every registered card",
	Long:             "Prints every card in the registration table with its status",
	PersistentPreRun: loadDatabaseConfig,
	Run:              runRegistrations,
}

var registrationsToggleCmd = &cobra.Command{
	Use:              "toggle <uid>",
	Short:            "Flips the status of a registered card",
	Long:             "Flips a registered card between active and inactive without a scan. Nothing is published and no scan is logged",
	Args:             cobra.ExactArgs(1),
	PersistentPreRun: loadDatabaseConfig,
	Run:              runRegistrationsToggle,
}

func init() {
	rootCmd.AddCommand(registrationsCmd)
	registrationsCmd.AddCommand(registrationsToggleCmd)

	addDatabaseFlags(registrationsCmd)
	addDatabaseFlags(registrationsToggleCmd)
}

func statusName(status int) string {
	if status == authorizer.StatusActive {
		return "active"
	}
	return "inactive"
}

func runRegistrations(cmd *cobra.Command, args []string) {
	store := openStore(cmd.Context())
	defer store.Close()

	registrations, err := store.Registrations(cmd.Context())
	if err != nil {
		log.Error().
			Str("error", err.Error()).
			Str("event", "DatabaseQuery").
			Msg(fmt.Sprintf("Failed to query database: %v", err))
		syscall.Exit(1)
		return
	}

	listing := table.New().Headers("UID", "STATUS", "")
	for _, registration := range registrations {
		listing.Row(
			registration.RFIDData,
			strconv.Itoa(registration.RFIDStatus),
			statusName(registration.RFIDStatus),
		)
	}
	fmt.Fprintln(cmd.OutOrStdout(), listing.Render())
}

func runRegistrationsToggle(cmd *cobra.Command, args []string) {
	uid, err := card.ParseUID(args[0])
	if err != nil {
		log.Error().
			Str("error", err.Error()).
			Str("event", "InvalidUID").
			Msg(fmt.Sprintf("Failed to parse card uid: %v", err))
		syscall.Exit(1)
		return
	}

	store := openStore(cmd.Context())
	defer store.Close()

	registration, err := authorizer.Toggle(cmd.Context(), store, uid.String())
	if errors.Is(err, authorizer.ErrNotRegistered) {
		log.Warn().
			Str("uid", uid.String()).
			Str("event", "ToggleUnknownCard").
			Msg(fmt.Sprintf("Card %s is not registered", uid))
		syscall.Exit(1)
		return
	}
	if err != nil {
		log.Error().
			Str("error", err.Error()).
			Str("event", "DatabaseUpdate").
			Msg(fmt.Sprintf("Failed to toggle %s: %v", uid, err))
		syscall.Exit(1)
		return
	}

	log.Info().
		Str("uid", registration.RFIDData).
		Int("status", registration.RFIDStatus).
		Str("event", "CardToggled").
		Msg(fmt.Sprintf("Card %s is now %s", registration.RFIDData, statusName(registration.RFIDStatus)))
}
