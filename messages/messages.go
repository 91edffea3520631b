package messages

import (
	"metamakers.org/rfid-access-mqtt/config"
	"metamakers.org/rfid-access-mqtt/mqtt"
)

type MqttMessage struct {
	Topic   string
	Payload string
}

type MqttStatus struct {
	Err       error
	Connected bool
}

type MqttServerConnection struct {
	Connection *mqtt.Managed
	Err        error
}

type MqttCredentials struct {
	Broker   config.BrokerConfig
	ClientID string
}

type PublishMessage struct {
	Payload string
	Topic   string
	Err     error
}

type ResponseOptionsSelectionMessage map[string]bool
type SignalSelectionMessage map[string]bool

// SignalRequest asks for a one-shot authorization result to be published.
type SignalRequest struct {
	Payload string
}

// ScanRequest asks for a fake card scan to be published.
type ScanRequest struct {
	UID string
}
