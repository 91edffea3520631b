package cli_commands

import (
	"fmt"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:              "history",
	Short:            "Prints the most recent scans",
	Long:             "Prints the most recent scans the authorizer logged, newest first",
	PersistentPreRun: loadDatabaseConfig,
	Run:              runHistory,
}

var historyLimit int

func init() {
	rootCmd.AddCommand(historyCmd)

	addDatabaseFlags(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of scans to print")
}

func runHistory(cmd *cobra.Command, args []string) {
	store := openStore(cmd.Context())
	defer store.Close()

	entries, err := store.RecentLogs(cmd.Context(), historyLimit)
	if err != nil {
		log.Error().
			Str("error", err.Error()).
			Str("event", "DatabaseQuery").
			Msg(fmt.Sprintf("Failed to query database: %v", err))
		syscall.Exit(1)
		return
	}

	history := table.New().Headers("TIME", "UID", "STATUS")
	for _, entry := range entries {
		history.Row(
			entry.TimeLog.Local().Format(time.DateTime),
			entry.RFIDData,
			strconv.Itoa(entry.RFIDStatus),
		)
	}
	fmt.Fprintln(cmd.OutOrStdout(), history.Render())
}
