package commands

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"metamakers.org/rfid-access-mqtt/config"
	"metamakers.org/rfid-access-mqtt/messages"
	"metamakers.org/rfid-access-mqtt/mqtt"
)

var ErrNoConnection = errors.New("no connection to the MQTT broker")

// Subscriptions are everything the mimic shows in its log.
var Subscriptions = []string{
	mqtt.ScanTopic,
	mqtt.LoginTopic,
	mqtt.CheckInTopic + "/#",
}

func Init(broker config.BrokerConfig, clientID string) tea.Cmd {
	return func() tea.Msg {
		return messages.MqttCredentials{
			Broker:   broker,
			ClientID: clientID,
		}
	}
}

func InitConnection(
	ctx context.Context,
	mqttConnectionStatus chan messages.MqttStatus,
	mqttMessages chan messages.MqttMessage,
	credentials messages.MqttCredentials,
) tea.Cmd {
	return func() tea.Msg {
		serverConnection, err := mqtt.DialManaged(ctx, mqtt.ManagedOptions{
			Broker:        credentials.Broker,
			ClientID:      credentials.ClientID,
			Subscriptions: Subscriptions,
			QoS:           1,
			OnMessage: func(received mqtt.Received) {
				mqttMessages <- messages.MqttMessage{
					Topic:   received.Topic,
					Payload: string(received.Payload),
				}
			},
			OnUp: func() {
				mqttConnectionStatus <- messages.MqttStatus{Connected: true}
			},
			OnDown: func(err error) {
				mqttConnectionStatus <- messages.MqttStatus{Connected: false, Err: err}
			},
			Log: zerolog.Nop(),
		})
		return messages.MqttServerConnection{
			Connection: serverConnection,
			Err:        err,
		}
	}
}

func WaitForMessage(mqttMessages chan messages.MqttMessage) tea.Cmd {
	return func() tea.Msg {
		return <-mqttMessages
	}
}

func WaitForStatus(mqttConnectionStatus chan messages.MqttStatus) tea.Cmd {
	return func() tea.Msg {
		return <-mqttConnectionStatus
	}
}

func publishMessage(serverConnection *mqtt.Managed, ctx context.Context, topic string, payload string) tea.Cmd {
	return func() tea.Msg {
		if serverConnection == nil {
			return messages.PublishMessage{Topic: topic, Payload: payload, Err: ErrNoConnection}
		}
		if err := serverConnection.Publish(ctx, topic, []byte(payload)); err != nil {
			return messages.PublishMessage{Topic: topic, Payload: payload, Err: err}
		}
		return messages.PublishMessage{Topic: topic, Payload: payload, Err: nil}
	}
}

// PublishSignal publishes an authorization result, as the authorizer would.
func PublishSignal(serverConnection *mqtt.Managed, ctx context.Context, payload string) tea.Cmd {
	return publishMessage(serverConnection, ctx, mqtt.LoginTopic, payload)
}

// PublishScan publishes a card uid, as a scanner node would.
func PublishScan(serverConnection *mqtt.Managed, ctx context.Context, uid string) tea.Cmd {
	return publishMessage(serverConnection, ctx, mqtt.ScanTopic, uid)
}

func CheckIn(serverConnection *mqtt.Managed, ctx context.Context, clientID string) tea.Cmd {
	return publishMessage(serverConnection, ctx, mqtt.CheckInTopicFor(clientID), clientID)
}
