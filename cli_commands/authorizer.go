package cli_commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"metamakers.org/rfid-access-mqtt/authorizer"
	"metamakers.org/rfid-access-mqtt/logging"
	"metamakers.org/rfid-access-mqtt/metrics"
	"metamakers.org/rfid-access-mqtt/mqtt"
)

const defaultAuthorizerClientID = "RFID_Authorizer"

var authorizerCmd = &cobra.Command{
	Use:              "authorizer",
	Short:            "Answers every RFID_SCAN with a decision on RFID_LOGIN",
	Long:             "Answers every card scanned on RFID_SCAN from the registration table and publishes the decision on RFID_LOGIN",
	PersistentPreRun: loadDatabaseConfig,
	Run:              runAuthorizer,
}

var dbUri string
var dbDriver string

func init() {
	rootCmd.AddCommand(authorizerCmd)

	addDatabaseFlags(authorizerCmd)
}

func addDatabaseFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&dbUri, "db_uri", "d", "", "Uri used to connect to the database")
	cmd.Flags().StringVar(&dbDriver, "db_driver", "", "Database driver: mysql or sqlite3")
}

// loadDatabaseConfig binds the database flags of the running command before
// the configuration is loaded; the flags exist on more than one command.
func loadDatabaseConfig(cmd *cobra.Command, args []string) {
	settings.BindPFlag("database.dsn", cmd.Flags().Lookup("db_uri"))
	settings.BindPFlag("database.driver", cmd.Flags().Lookup("db_driver"))
	loadConfig(cmd, args)
}

func openStore(ctx context.Context) *authorizer.SQLStore {
	store, err := authorizer.OpenStore(cfg.Database)
	if err != nil {
		log.Error().
			Str("error", err.Error()).
			Str("event", "DatabaseConnection").
			Str("driver", cfg.Database.Driver).
			Msg(fmt.Sprintf("Failed to open %s database: %v", cfg.Database.Driver, err))
		syscall.Exit(1)
		return nil
	}

	if err := store.Migrate(ctx); err != nil {
		log.Error().
			Str("error", err.Error()).
			Str("event", "DatabaseMigration").
			Msg(fmt.Sprintf("Failed to create tables: %v", err))
		store.Close()
		syscall.Exit(1)
		return nil
	}

	return store
}

func runAuthorizer(cmd *cobra.Command, args []string) {
	// App will run until cancelled by user (e.g. ctrl-c)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := openStore(ctx)
	defer store.Close()

	scans := make(chan []byte, cfg.Broker.QueueSize)
	serverConnection, err := mqtt.DialManaged(ctx, mqtt.ManagedOptions{
		Broker:        cfg.Broker,
		ClientID:      defaultAuthorizerClientID,
		Subscriptions: []string{mqtt.ScanTopic},
		QoS:           1,
		OnMessage: func(received mqtt.Received) {
			if received.Topic != mqtt.ScanTopic {
				return
			}
			select {
			case scans <- received.Payload:
			default:
				log.Warn().
					Str("event", "ScanDropped").
					Str("payload", string(received.Payload)).
					Msg("Scan queue is full")
			}
		},
		Log: logging.Component("mqtt"),
	})
	if err != nil {
		log.Error().
			Str("error", err.Error()).
			Str("event", "NewConnection").
			Msg(fmt.Sprintf("New connection start interrupted: %v", err))
		syscall.Exit(3)
		return
	}

	var wg sync.WaitGroup
	metrics.Serve(ctx, &wg, metrics.ServerOpts{
		Addr: cfg.Metrics.Listen,
		Path: cfg.Metrics.Path,
	}, logging.Component("metrics"))

	decider := authorizer.New(store, func(decision authorizer.Decision) {
		metrics.Decisions.WithLabelValues(decision.Outcome.String()).Inc()
	}, logging.Component("authorizer"))

	wg.Add(1)
	go func() {
		defer wg.Done()
		decider.Serve(ctx, scans, serverConnection)
	}()

	if notifyFailed(notifyReady()) {
		stop()
	}

	select {
	case <-ctx.Done():
		log.Info().
			Str("event", "stopping").
			Msg("Termination signal received")
		notifyStopping()
		serverConnection.Disconnect(context.Background())
	case <-serverConnection.Done():
		log.Info().
			Str("event", "ConnectionClosed").
			Msg("MQTT server connection closed")
		stop()
	}

	<-serverConnection.Done()
	wg.Wait()
}
