package cli_commands

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"metamakers.org/rfid-access-mqtt/config"
	"metamakers.org/rfid-access-mqtt/logging"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Shows or writes the porter configuration",
	Long:  "Shows the effective configuration, or writes the defaults to a file to start from",
	// Showing a broken configuration is the point, so it is not validated.
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(settings.GetString("log.level"), settings.GetString("log.format"))
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Prints the effective configuration as YAML",
	Run:   runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Writes the default configuration as YAML",
	Args:  cobra.MaximumNArgs(1),
	Run:   runConfigInit,
}

var overwriteConfig bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd)

	configInitCmd.Flags().BoolVarP(&overwriteConfig, "force", "f", false, "Overwrite an existing file")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	if _, err := config.Load(settings, cfgFile); err != nil {
		log.Warn().
			Str("error", err.Error()).
			Str("event", "LoadConfig").
			Msg("Configuration is not usable as is")
	}

	rendered, err := config.Render(settings)
	if err != nil {
		log.Error().
			Str("error", err.Error()).
			Str("event", "RenderConfig").
			Msg("Failed to render configuration")
		syscall.Exit(1)
		return
	}
	fmt.Fprint(cmd.OutOrStdout(), string(rendered))
}

func runConfigInit(cmd *cobra.Command, args []string) {
	defaults := config.NewViper()
	rendered, err := config.Render(defaults)
	if err != nil {
		log.Error().
			Str("error", err.Error()).
			Str("event", "RenderConfig").
			Msg("Failed to render configuration")
		syscall.Exit(1)
		return
	}

	if len(args) == 0 {
		fmt.Fprint(cmd.OutOrStdout(), string(rendered))
		return
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if overwriteConfig {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	file, err := os.OpenFile(args[0], flags, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			log.Error().
				Str("file", args[0]).
				Str("event", "WriteConfig").
				Msg("File exists, pass --force to overwrite it")
		} else {
			log.Error().
				Str("error", err.Error()).
				Str("file", args[0]).
				Str("event", "WriteConfig").
				Msg("Failed to open config file")
		}
		syscall.Exit(1)
		return
	}
	defer file.Close()

	if _, err := file.Write(rendered); err != nil {
		log.Error().
			Str("error", err.Error()).
			Str("file", args[0]).
			Str("event", "WriteConfig").
			Msg("Failed to write config file")
		syscall.Exit(1)
		return
	}

	log.Info().
		Str("file", args[0]).
		Str("event", "WriteConfig").
		Msg("Default configuration written")
}
