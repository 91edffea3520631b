package relay

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"metamakers.org/rfid-access-mqtt/hardware"
	"metamakers.org/rfid-access-mqtt/mqtt"
)

type Signal int

const (
	Unknown Signal = iota
	Grant
	Deny
)

func (signal Signal) String() string {
	switch signal {
	case Grant:
		return "grant"
	case Deny:
		return "deny"
	default:
		return "unknown"
	}
}

// Payload is the wire form of the signal, "" for Unknown.
func (signal Signal) Payload() string {
	switch signal {
	case Grant:
		return "1"
	case Deny:
		return "0"
	default:
		return ""
	}
}

// ParseSignal matches the payload exactly: "1" grants, "0" denies, anything
// else, "10" and "" included, is Unknown.
func ParseSignal(payload []byte) Signal {
	switch string(payload) {
	case "1":
		return Grant
	case "0":
		return Deny
	default:
		return Unknown
	}
}

// Relay drives one output pin from RFID_LOGIN. The pin's last written level
// is its only state.
type Relay struct {
	pin      hardware.OutputPin
	onSignal func(Signal)
	log      zerolog.Logger
}

// New drives the pin Low before returning so the relay starts off.
func New(pin hardware.OutputPin, onSignal func(Signal), log zerolog.Logger) (*Relay, error) {
	if err := pin.Out(hardware.Low); err != nil {
		return nil, err
	}
	return &Relay{pin: pin, onSignal: onSignal, log: log}, nil
}

func (relay *Relay) Connected(ctx context.Context, session mqtt.Session) error {
	if err := session.Subscribe(ctx, mqtt.LoginTopic); err != nil {
		return err
	}
	relay.log.Info().
		Str("event", "Subscribed").
		Str("topic", mqtt.LoginTopic).
		Msg("Listening for authorization results")
	return nil
}

func (relay *Relay) Handle(ctx context.Context, message mqtt.Message) {
	if message.Topic != mqtt.LoginTopic {
		return
	}

	signal := ParseSignal(message.Payload)
	var level hardware.Level
	switch signal {
	case Grant:
		level = hardware.High
	case Deny:
		level = hardware.Low
	default:
		relay.log.Debug().
			Str("event", "UnknownSignal").
			Str("payload", string(message.Payload)).
			Msg("Ignoring payload")
		return
	}

	if err := relay.pin.Out(level); err != nil {
		relay.log.Error().
			Str("event", "PinWriteFailed").
			Stringer("signal", signal).
			Err(err).
			Msg("Could not drive relay")
		return
	}

	relay.log.Info().
		Str("event", "RelaySet").
		Stringer("signal", signal).
		Stringer("level", level).
		Msg("Relay driven")

	if relay.onSignal != nil {
		relay.onSignal(signal)
	}
}

func (relay *Relay) Poll(ctx context.Context, session mqtt.Session, now time.Time) {}

func (relay *Relay) Level() hardware.Level {
	return relay.pin.Read()
}
