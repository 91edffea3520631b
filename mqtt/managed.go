package mqtt

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/rs/zerolog"

	"metamakers.org/rfid-access-mqtt/config"
)

var ErrDisconnected = errors.New("disconnected from MQTT broker")

// Received is an inbound publish with the delivery details the broker-side
// tools log.
type Received struct {
	Message
	QoS       byte
	Retain    bool
	Duplicate bool
	PacketID  uint16
}

type ManagedOptions struct {
	Broker   config.BrokerConfig
	ClientID string
	// Subscriptions are (re)established on every connection.
	Subscriptions []string
	// QoS is used for subscriptions and publishes.
	QoS       byte
	OnMessage func(Received)
	OnUp      func()
	OnDown    func(err error)
	Log       zerolog.Logger
}

// Managed is a broker connection for the long-running services. autopaho
// keeps it up; it is never used by the nodes.
type Managed struct {
	connection *autopaho.ConnectionManager
	qos        byte
	log        zerolog.Logger
}

func DialManaged(ctx context.Context, opts ManagedOptions) (*Managed, error) {
	serverURL, err := opts.Broker.ServerURL()
	if err != nil {
		return nil, err
	}

	managed := &Managed{qos: opts.QoS, log: opts.Log}
	down := func(err error) {
		if opts.OnDown != nil {
			opts.OnDown(err)
		}
	}

	clientConfig := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{serverURL},
		ConnectUsername:               opts.Broker.Username,
		ConnectPassword:               []byte(opts.Broker.Password),
		KeepAlive:                     keepAliveSeconds(opts.Broker.KeepAlive.Seconds()),
		ConnectRetryDelay:             opts.Broker.RetryDelay,
		ConnectTimeout:                opts.Broker.ConnectTimeout,
		CleanStartOnInitialConnection: true,
		SessionExpiryInterval:         60,
		OnConnectionUp: func(connectionManager *autopaho.ConnectionManager, connectionAck *paho.Connack) {
			response := ""
			if connectionAck.Properties != nil {
				response = connectionAck.Properties.ResponseInfo
			}
			opts.Log.Info().
				Str("event", "OnConnectionUp").
				Str("response", response).
				Msg("Connected to MQTT broker")

			if len(opts.Subscriptions) > 0 {
				subscriptions := make([]paho.SubscribeOptions, 0, len(opts.Subscriptions))
				for _, topic := range opts.Subscriptions {
					subscriptions = append(subscriptions, paho.SubscribeOptions{Topic: topic, QoS: opts.QoS})
				}
				if _, err := connectionManager.Subscribe(ctx, &paho.Subscribe{
					Subscriptions: subscriptions,
				}); err != nil {
					opts.Log.Error().
						Str("error", err.Error()).
						Str("event", "MQTTSubscribe").
						Msg(fmt.Sprintf("MQTT failed to subscribe: %v", err))
				}
			}

			if opts.OnUp != nil {
				opts.OnUp()
			}
		},
		OnConnectError: func(err error) {
			opts.Log.Error().
				Str("error", err.Error()).
				Str("event", "OnConnectError").
				Msg(fmt.Sprintf("MQTT Connection error: %v", err))
			down(err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: opts.Broker.ClientIDOr(opts.ClientID),
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(received paho.PublishReceived) (bool, error) {
					if opts.OnMessage == nil {
						return true, nil
					}
					publish := received.Packet
					opts.OnMessage(Received{
						Message:   Message{Topic: publish.Topic, Payload: publish.Payload},
						QoS:       publish.QoS,
						Retain:    publish.Retain,
						Duplicate: publish.Duplicate(),
						PacketID:  publish.PacketID,
					})
					return true, nil
				},
			},
			OnClientError: func(err error) {
				opts.Log.Error().
					Str("error", err.Error()).
					Str("event", "OnClientError").
					Msg(fmt.Sprintf("MQTT Client error: %v", err))
				down(err)
			},
			OnServerDisconnect: func(disconnect *paho.Disconnect) {
				event := opts.Log.Warn().
					Str("error", ErrDisconnected.Error()).
					Str("event", "OnServerDisconnect")
				if disconnect.Properties != nil {
					event = event.Str("reason", disconnect.Properties.ReasonString)
				}
				event.Msg(fmt.Sprintf("MQTT client disconnect: %v", ErrDisconnected))
				down(ErrDisconnected)
			},
		},
	}

	connection, err := autopaho.NewConnection(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("starting connection manager: %w", err)
	}
	managed.connection = connection

	return managed, nil
}

func (managed *Managed) Publish(ctx context.Context, topic string, payload []byte) error {
	if _, err := managed.connection.Publish(ctx, &paho.Publish{
		QoS:     managed.qos,
		Topic:   topic,
		Payload: payload,
	}); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

func (managed *Managed) AwaitConnection(ctx context.Context) error {
	return managed.connection.AwaitConnection(ctx)
}

func (managed *Managed) Disconnect(ctx context.Context) error {
	return managed.connection.Disconnect(ctx)
}

func (managed *Managed) Done() <-chan struct{} {
	return managed.connection.Done()
}
