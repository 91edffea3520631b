package hardware

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"metamakers.org/rfid-access-mqtt/config"
)

// OpenReader opens the card reader for the configured driver. The simulated
// driver reads uids from input.
func OpenReader(cfg config.HardwareConfig, input io.Reader, log zerolog.Logger) (CardReader, error) {
	switch cfg.Driver {
	case config.HardwarePeriph:
		reader, err := OpenMFRC522(cfg.SPIPort, cfg.ResetPin, cfg.IRQPin, log)
		if err != nil {
			return nil, err
		}
		return NewPoller(reader, cfg.ReadTimeout), nil
	case config.HardwareSimulated:
		return NewLineReader(input, log), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func OpenRelayPin(cfg config.HardwareConfig, log zerolog.Logger) (OutputPin, error) {
	switch cfg.Driver {
	case config.HardwarePeriph:
		pin, err := OpenPeriphPin(cfg.RelayPin)
		if err != nil {
			return nil, err
		}
		return pin, nil
	case config.HardwareSimulated:
		return &MemoryPin{Log: log}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
