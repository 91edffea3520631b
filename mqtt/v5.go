package mqtt

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/eclipse/paho.golang/paho"
	"github.com/rs/zerolog"
)

var ErrConnectFailed = errors.New("mqtt connect failed")

// V5Dialer opens single MQTT 5 connections with paho.golang. There is no
// connection manager underneath: a dropped session stays dropped.
type V5Dialer struct {
	ServerURL *url.URL
	ClientID  string
	Username  string
	Password  string
	KeepAlive uint16
	Log       zerolog.Logger
}

func (dialer V5Dialer) Dial(ctx context.Context, inbound *Queue) (Session, error) {
	var netDialer net.Dialer
	conn, err := netDialer.DialContext(ctx, "tcp", dialer.ServerURL.Host)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	done := newCloser()
	client := paho.NewClient(paho.ClientConfig{
		ClientID: dialer.ClientID,
		Conn:     conn,
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){
			func(received paho.PublishReceived) (bool, error) {
				message := Message{
					Topic:   received.Packet.Topic,
					Payload: received.Packet.Payload,
				}
				if err := inbound.Push(message); err != nil {
					dialer.Log.Warn().
						Str("event", "InboundDropped").
						Str("topic", message.Topic).
						Msg(err.Error())
				}
				return true, nil
			},
		},
		OnClientError: func(err error) {
			done.close(err)
		},
		OnServerDisconnect: func(disconnect *paho.Disconnect) {
			reason := ""
			if disconnect.Properties != nil {
				reason = disconnect.Properties.ReasonString
			}
			done.close(fmt.Errorf("server requested disconnect: code %d %s", disconnect.ReasonCode, reason))
		},
	})

	connect := &paho.Connect{
		ClientID:   dialer.ClientID,
		KeepAlive:  dialer.KeepAlive,
		CleanStart: true,
	}
	if dialer.Username != "" {
		connect.Username = dialer.Username
		connect.UsernameFlag = true
		connect.Password = []byte(dialer.Password)
		connect.PasswordFlag = true
	}

	connack, err := client.Connect(ctx, connect)
	if err != nil {
		conn.Close()
		if connack != nil {
			return nil, fmt.Errorf("%w: reason code %d: %w", ErrConnectFailed, connack.ReasonCode, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	if connack.ReasonCode != 0 {
		conn.Close()
		return nil, fmt.Errorf("%w: reason code %d", ErrConnectFailed, connack.ReasonCode)
	}

	return &v5Session{client: client, done: done}, nil
}

type v5Session struct {
	client *paho.Client
	done   *closer
}

func (session *v5Session) Publish(ctx context.Context, topic string, payload []byte) error {
	if session.done.closed() {
		return ErrNotConnected
	}
	if _, err := session.client.Publish(ctx, &paho.Publish{
		QoS:     0,
		Topic:   topic,
		Payload: payload,
	}); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

func (session *v5Session) Subscribe(ctx context.Context, topic string) error {
	if session.done.closed() {
		return ErrNotConnected
	}
	suback, err := session.client.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{
			{Topic: topic, QoS: 0},
		},
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	for _, reason := range suback.Reasons {
		if reason >= 0x80 {
			return fmt.Errorf("subscribing to %s: broker refused with reason code %d", topic, reason)
		}
	}
	return nil
}

func (session *v5Session) Done() <-chan struct{} {
	return session.done.done
}

func (session *v5Session) Err() error {
	return session.done.reason()
}

func (session *v5Session) Close() error {
	if session.done.closed() {
		return nil
	}
	err := session.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
	session.done.close(nil)
	return err
}
