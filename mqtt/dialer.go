package mqtt

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"metamakers.org/rfid-access-mqtt/config"
)

// NewDialer builds the dialer for the configured protocol version.
func NewDialer(broker config.BrokerConfig, clientID string, log zerolog.Logger) (Dialer, error) {
	serverURL, err := broker.ServerURL()
	if err != nil {
		return nil, err
	}

	switch broker.Protocol {
	case config.ProtocolV5:
		return V5Dialer{
			ServerURL: serverURL,
			ClientID:  clientID,
			Username:  broker.Username,
			Password:  broker.Password,
			KeepAlive: keepAliveSeconds(broker.KeepAlive.Seconds()),
			Log:       log,
		}, nil
	case config.ProtocolV3:
		return V3Dialer{
			ServerURL:      serverURL,
			ClientID:       clientID,
			Username:       broker.Username,
			Password:       broker.Password,
			KeepAlive:      broker.KeepAlive,
			ConnectTimeout: broker.ConnectTimeout,
			Log:            log,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVersion, broker.Protocol)
	}
}

func keepAliveSeconds(seconds float64) uint16 {
	if seconds <= 0 {
		return 0
	}
	if seconds > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(seconds)
}
