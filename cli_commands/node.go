package cli_commands

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"

	"metamakers.org/rfid-access-mqtt/logging"
	"metamakers.org/rfid-access-mqtt/metrics"
	"metamakers.org/rfid-access-mqtt/mqtt"
	"metamakers.org/rfid-access-mqtt/network"
	"metamakers.org/rfid-access-mqtt/node"
)

// runNode keeps handler on the broker as nodeClientID until SIGINT or
// SIGTERM.
func runNode(parent context.Context, nodeClientID string, handler node.Handler) {
	// App will run until cancelled by user (e.g. ctrl-c)
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	station, err := network.NewStation(cfg.Network)
	if err != nil {
		log.Error().
			Str("error", err.Error()).
			Str("event", "NewStation").
			Msg("Failed to set up the network station")
		syscall.Exit(3)
		return
	}

	dialer, err := mqtt.NewDialer(cfg.Broker, nodeClientID, logging.Component("mqtt"))
	if err != nil {
		log.Error().
			Str("error", err.Error()).
			Str("event", "NewDialer").
			Msg("Failed to set up the broker dialer")
		syscall.Exit(3)
		return
	}

	runner := node.New(node.Options{
		ClientID: nodeClientID,
		Associator: &network.Associator{
			Station:       station,
			Candidates:    cfg.Network.Candidates,
			CheckInterval: cfg.Network.CheckInterval,
			Log:           logging.Component("network"),
		},
		Dialer:          dialer,
		Handler:         handler,
		NetworkRetry:    cfg.Network.RetryDelay,
		JoinTimeout:     cfg.Network.JoinTimeout,
		BrokerRetry:     cfg.Broker.RetryDelay,
		ConnectTimeout:  cfg.Broker.ConnectTimeout,
		QueueSize:       cfg.Broker.QueueSize,
		Tick:            cfg.Node.Tick,
		CheckInInterval: cfg.Node.CheckInInterval,
		OnState:         metrics.ObserveLink,
		Log:             logging.Component("node"),
	})

	var wg sync.WaitGroup
	metrics.Serve(ctx, &wg, metrics.ServerOpts{
		Addr: cfg.Metrics.Listen,
		Path: cfg.Metrics.Path,
	}, logging.Component("metrics"))

	if notifyFailed(notifyReady()) {
		stop()
	}

	log.Info().
		Str("event", "NodeStarted").
		Str("client_id", nodeClientID).
		Str("broker", cfg.Broker.URL).
		Msg("Node running")

	if err := runner.Run(ctx); err != nil {
		log.Error().
			Str("error", err.Error()).
			Str("event", "NodeStopped").
			Msg("Node stopped with an error")
	}

	notifyStopping()
	stop()
	wg.Wait()

	log.Info().
		Str("event", "stopping").
		Msg("Termination signal received")
}
