package cli_commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"metamakers.org/rfid-access-mqtt/config"
	"metamakers.org/rfid-access-mqtt/health"
	"metamakers.org/rfid-access-mqtt/logging"
	"metamakers.org/rfid-access-mqtt/metrics"
	"metamakers.org/rfid-access-mqtt/mqtt"
	"metamakers.org/rfid-access-mqtt/relay"
)

const defaultDiaryClientID = "RFID_Diary"

var diaryCmd = &cobra.Command{
	Use:   "diary",
	Short: "Collects & aggregates messages from the RFID nodes",
	Long:  "Logs every scan, login signal and check-in, and reports nodes that stop checking in",
	Run:   runDiaryCmd,
}

var unhealthyDuration time.Duration

func init() {
	rootCmd.AddCommand(diaryCmd)

	diaryCmd.Flags().DurationVar(&unhealthyDuration, "unhealthy_after", health.UnhealthyDuration, "Silence after which a node is reported unhealthy")
}

func diaryLogEvent(received mqtt.Received) *zerolog.Event {
	switch received.Topic {
	case mqtt.LoginTopic:
		if relay.ParseSignal(received.Payload) == relay.Deny {
			return log.Warn()
		}
		return log.Info()
	case mqtt.ScanTopic:
		return log.Info()
	default:
		return log.Debug()
	}
}

func dialDiary(ctx context.Context, broker config.BrokerConfig, tracker *health.Tracker) (*mqtt.Managed, error) {
	return mqtt.DialManaged(ctx, mqtt.ManagedOptions{
		Broker:   broker,
		ClientID: defaultDiaryClientID,
		Subscriptions: []string{
			mqtt.ScanTopic,
			mqtt.LoginTopic,
			mqtt.CheckInTopic + "/#",
		},
		QoS: 1,
		OnMessage: func(received mqtt.Received) {
			event := diaryLogEvent(received)
			if clientID, ok := mqtt.ClientIDFromTopic(received.Topic); ok {
				// Any message received from a client should bump
				// its last seen value
				tracker.Seen(clientID, time.Now())
				event = event.Str("client_id", clientID)
			}

			event.
				Str("event", "PublishHandler").
				Uint16("packet_id", received.PacketID).
				Bool("duplicate", received.Duplicate).
				Bool("retain", received.Retain).
				Uint8("qos", received.QoS).
				Str("topic", received.Topic).
				Str("payload", string(received.Payload)).
				Msg("Publish payload was handled")
		},
		Log: logging.Component("mqtt"),
	})
}

func logTransition(transition health.Transition, now time.Time) {
	switch transition.To.State {
	case health.Unhealthy:
		metrics.ClientsUnhealthy.Inc()
		log.Error().
			Str("event", "Unhealthy").
			Str("client_id", transition.ClientID).
			Str("from", transition.From.State.String()).
			Str("to", transition.To.State.String()).
			Str("last_seen", transition.To.LastSeen.String()).
			Str("unhealthy_after", transition.To.UnhealthyAfter.String()).
			Str("unhealthy_at", now.String()).
			Msg(fmt.Sprintf("Client %s is now unhealthy", transition.ClientID))
	case health.Healthy:
		metrics.ClientsUnhealthy.Dec()
		log.Info().
			Str("event", "Healthy").
			Str("client_id", transition.ClientID).
			Str("from", transition.From.State.String()).
			Str("to", transition.To.State.String()).
			Str("last_seen", transition.To.LastSeen.String()).
			Str("unhealthy_after", transition.To.UnhealthyAfter.String()).
			Msg(fmt.Sprintf("Client %s is now healthy", transition.ClientID))
	}
}

func runDiaryCmd(cmd *cobra.Command, _ []string) {
	// App will run until cancelled by user (e.g. ctrl-c)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGUSR1, syscall.SIGTERM)
	defer stop()

	// Reload on SIGHUP
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	defer signal.Stop(reload)

	tracker := health.NewTracker(unhealthyDuration)
	diaryClientID := cfg.Broker.ClientIDOr(defaultDiaryClientID)

	serverConnection, err := dialDiary(ctx, cfg.Broker, tracker)
	if err != nil {
		log.Warn().
			Str("error", err.Error()).
			Str("event", "NewConnection").
			Msg(fmt.Sprintf("New connection start interrupted: %v", err))
		syscall.Exit(1)
		return
	}

	if notifyFailed(notifyReady()) {
		stop()
	}

	checkHealthTicker := time.NewTicker(health.CheckHealthDuration)
	defer checkHealthTicker.Stop()

	var checkIn <-chan time.Time
	if cfg.Node.CheckInInterval > 0 {
		checkInTicker := time.NewTicker(cfg.Node.CheckInInterval)
		defer checkInTicker.Stop()
		checkIn = checkInTicker.C
	}

	for {
		select {
		case now := <-checkHealthTicker.C:
			for _, transition := range tracker.Check(now) {
				logTransition(transition, now)
			}

		case <-checkIn:
			topic := mqtt.CheckInTopicFor(diaryClientID)
			if err := serverConnection.Publish(ctx, topic, []byte(diaryClientID)); err != nil {
				if ctx.Err() == nil {
					log.Error().
						Str("error", err.Error()).
						Str("event", "MQTTPublish").
						Str("topic", topic).
						Msg(fmt.Sprintf("Failed to publish: %v", err))
				}
				continue
			}
			log.Debug().
				Str("event", "CheckIn").
				Str("topic", topic).
				Msg("Check-in sent")

		case <-reload:
			if notifyFailed(notifyReloading()) {
				stop()
				continue
			}

			reloaded, err := config.Load(settings, cfgFile)
			if err != nil {
				log.Error().
					Str("error", err.Error()).
					Str("event", "ReloadConfig").
					Msg("Keeping the previous configuration")
				reloaded = cfg
			}
			cfg = reloaded
			logging.Setup(cfg.Log.Level, cfg.Log.Format)

			serverConnection.Disconnect(ctx)
			<-serverConnection.Done()

			serverConnection, err = dialDiary(ctx, cfg.Broker, tracker)
			if err != nil {
				log.Warn().
					Str("error", err.Error()).
					Str("event", "NewConnection").
					Msg(fmt.Sprintf("New connection start interrupted: %v", err))
				syscall.Exit(1)
				return
			}

			if err = serverConnection.AwaitConnection(ctx); err != nil {
				log.Warn().
					Str("error", err.Error()).
					Str("event", "AwaitConnection").
					Msg(fmt.Sprintf("Server await connection error: %v", err))
				syscall.Exit(3)
				return
			}

			if notifyFailed(notifyReady()) {
				stop()
			}

		case <-ctx.Done():
			log.Info().
				Str("event", "ContextCancelled").
				Msg("Termination signal received")
			notifyStopping()
			serverConnection.Disconnect(context.Background())
			<-serverConnection.Done()
			return

		case <-serverConnection.Done():
			log.Info().
				Str("event", "ConnectionClosed").
				Msg("MQTT server connection closed")
			return
		}
	}
}
