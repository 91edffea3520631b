package node

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"metamakers.org/rfid-access-mqtt/link"
	"metamakers.org/rfid-access-mqtt/mqtt"
	"metamakers.org/rfid-access-mqtt/network"
)

// Handler is the role a node plays once it is on the broker.
type Handler interface {
	// Connected runs after every successful broker connection, before the
	// node reports Connected. Subscriptions belong here.
	Connected(ctx context.Context, session mqtt.Session) error
	// Handle receives each inbound message, in arrival order, on the ticking
	// goroutine.
	Handle(ctx context.Context, message mqtt.Message)
	// Poll runs once per tick while the broker is connected.
	Poll(ctx context.Context, session mqtt.Session, now time.Time)
}

type Options struct {
	ClientID   string
	Associator *network.Associator
	Dialer     mqtt.Dialer
	Handler    Handler

	NetworkRetry    time.Duration
	JoinTimeout     time.Duration
	BrokerRetry     time.Duration
	ConnectTimeout  time.Duration
	QueueSize       int
	Tick            time.Duration
	CheckInInterval time.Duration

	OnState func(name string, state link.State)
	Log     zerolog.Logger
}

// Node owns everything a device needs to stay on the broker: the network
// association, the broker session and the inbound queue. Nothing is global.
type Node struct {
	clientID string
	handler  Handler
	queue    *mqtt.Queue
	network  *link.Machine[*network.Association]
	broker   *link.Machine[mqtt.Session]

	tick            time.Duration
	checkInInterval time.Duration
	nextCheckIn     time.Time

	log zerolog.Logger
}

func New(opts Options) *Node {
	node := &Node{
		clientID:        opts.ClientID,
		handler:         opts.Handler,
		queue:           mqtt.NewQueue(opts.QueueSize),
		tick:            opts.Tick,
		checkInInterval: opts.CheckInInterval,
		log:             opts.Log,
	}
	if node.tick <= 0 {
		node.tick = 10 * time.Millisecond
	}

	node.network = link.New(link.Config[*network.Association]{
		Name:    "network",
		Connect: opts.Associator.Connect,
		Policy:  backoff.NewConstantBackOff(opts.NetworkRetry),
		Timeout: opts.JoinTimeout,
		OnState: opts.OnState,
		Log:     opts.Log,
	})

	node.broker = link.New(link.Config[mqtt.Session]{
		Name: "broker",
		Connect: func(ctx context.Context) (mqtt.Session, error) {
			return opts.Dialer.Dial(ctx, node.queue)
		},
		OnUp:    node.connected,
		Policy:  backoff.NewConstantBackOff(opts.BrokerRetry),
		Timeout: opts.ConnectTimeout,
		OnState: opts.OnState,
		Log:     opts.Log,
	})

	return node
}

func (node *Node) connected(ctx context.Context, session mqtt.Session) error {
	if err := node.handler.Connected(ctx, session); err != nil {
		return err
	}
	node.checkIn(ctx, session)
	return nil
}

func (node *Node) checkIn(ctx context.Context, session mqtt.Session) {
	if err := session.Publish(ctx, mqtt.CheckInTopicFor(node.clientID), []byte(node.clientID)); err != nil {
		node.log.Warn().
			Str("event", "CheckInFailed").
			Err(err).
			Msg("Could not publish check-in")
		return
	}
	node.log.Debug().
		Str("event", "CheckIn").
		Str("client_id", node.clientID).
		Msg("Checked in")
}

func (node *Node) NetworkState() link.State {
	return node.network.State()
}

func (node *Node) BrokerState() link.State {
	return node.broker.State()
}

// Tick runs one pass of the node. It never waits on the network.
func (node *Node) Tick(ctx context.Context, now time.Time) {
	if node.network.Tick(ctx, now) != link.Connected {
		if node.broker.State() != link.Disconnected {
			node.broker.Close()
		}
		node.drain(ctx)
		return
	}

	previous := node.broker.State()
	state := node.broker.Tick(ctx, now)
	if state == link.Connected && previous != link.Connected {
		node.nextCheckIn = now.Add(node.checkInInterval)
	}

	node.drain(ctx)

	session, ok := node.broker.Current()
	if !ok {
		return
	}

	node.handler.Poll(ctx, session, now)

	if node.checkInInterval > 0 && !now.Before(node.nextCheckIn) {
		node.checkIn(ctx, session)
		node.nextCheckIn = now.Add(node.checkInInterval)
	}
}

func (node *Node) drain(ctx context.Context) {
	node.queue.Drain(func(message mqtt.Message) {
		node.handler.Handle(ctx, message)
	})
}

// Run ticks until ctx is cancelled, then closes the broker session and the
// network association.
func (node *Node) Run(ctx context.Context) error {
	ticker := time.NewTicker(node.tick)
	defer ticker.Stop()

	node.log.Info().
		Str("event", "NodeStarted").
		Str("client_id", node.clientID).
		Dur("tick", node.tick).
		Msg("Node running")

	node.Tick(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			node.Close()
			node.log.Info().
				Str("event", "NodeStopped").
				Str("client_id", node.clientID).
				Msg("Node stopped")
			return nil
		case now := <-ticker.C:
			node.Tick(ctx, now)
		}
	}
}

func (node *Node) Close() error {
	brokerErr := node.broker.Close()
	networkErr := node.network.Close()
	if brokerErr != nil {
		return brokerErr
	}
	return networkErr
}
