package mqtt

import (
	"context"
	"fmt"
	"net/url"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const v3DisconnectQuiesce = 250 // milliseconds

// V3Dialer opens MQTT 3.1.1 connections with paho.mqtt.golang. Auto-reconnect
// stays off; the caller redials.
type V3Dialer struct {
	ServerURL      *url.URL
	ClientID       string
	Username       string
	Password       string
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	Log            zerolog.Logger
}

func (dialer V3Dialer) options(inbound *Queue, done *closer) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions().
		AddBroker("tcp://" + dialer.ServerURL.Host).
		SetClientID(dialer.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetOrderMatters(true)

	if dialer.Username != "" {
		opts.SetUsername(dialer.Username)
		opts.SetPassword(dialer.Password)
	}
	if dialer.KeepAlive > 0 {
		opts.SetKeepAlive(dialer.KeepAlive)
	}
	if dialer.ConnectTimeout > 0 {
		opts.SetConnectTimeout(dialer.ConnectTimeout)
	}

	opts.SetDefaultPublishHandler(func(_ pahomqtt.Client, msg pahomqtt.Message) {
		message := Message{Topic: msg.Topic(), Payload: msg.Payload()}
		if err := inbound.Push(message); err != nil {
			dialer.Log.Warn().
				Str("event", "InboundDropped").
				Str("topic", message.Topic).
				Msg(err.Error())
		}
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		done.close(err)
	})

	return opts
}

func (dialer V3Dialer) Dial(ctx context.Context, inbound *Queue) (Session, error) {
	done := newCloser()
	client := pahomqtt.NewClient(dialer.options(inbound, done))

	if err := wait(ctx, client.Connect()); err != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	return &v3Session{client: client, done: done}, nil
}

func wait(ctx context.Context, token pahomqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

type v3Session struct {
	client pahomqtt.Client
	done   *closer
}

func (session *v3Session) Publish(ctx context.Context, topic string, payload []byte) error {
	if session.done.closed() || !session.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	if err := wait(ctx, session.client.Publish(topic, 0, false, payload)); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers topic with a nil handler so deliveries go through the
// default publish handler onto the inbound queue.
func (session *v3Session) Subscribe(ctx context.Context, topic string) error {
	if session.done.closed() || !session.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	if err := wait(ctx, session.client.Subscribe(topic, 0, nil)); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	return nil
}

func (session *v3Session) Done() <-chan struct{} {
	return session.done.done
}

func (session *v3Session) Err() error {
	return session.done.reason()
}

func (session *v3Session) Close() error {
	if session.done.closed() {
		return nil
	}
	session.client.Disconnect(v3DisconnectQuiesce)
	session.done.close(nil)
	return nil
}
