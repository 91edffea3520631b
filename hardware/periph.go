package hardware

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/mfrc522"
	"periph.io/x/host/v3"
)

func initHost() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("initialising periph host drivers: %w", err)
	}
	return nil
}

func pinByName(name string) (gpio.PinIO, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("%w: %s", ErrPinNotFound, name)
	}
	return pin, nil
}

// MFRC522 is an SPI attached MFRC522 reader.
type MFRC522 struct {
	port spi.PortCloser
	dev  *mfrc522.Dev
	log  zerolog.Logger
}

func OpenMFRC522(spiPort, resetPin, irqPin string, log zerolog.Logger) (*MFRC522, error) {
	if err := initHost(); err != nil {
		return nil, err
	}

	reset, err := pinByName(resetPin)
	if err != nil {
		return nil, err
	}
	irq, err := pinByName(irqPin)
	if err != nil {
		return nil, err
	}

	port, err := spireg.Open(spiPort)
	if err != nil {
		return nil, fmt.Errorf("opening spi port %q: %w", spiPort, err)
	}

	dev, err := mfrc522.NewSPI(port, reset, irq)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("initialising mfrc522: %w", err)
	}

	return &MFRC522{port: port, dev: dev, log: log}, nil
}

// ReadUID reports a failed read as no card. The driver returns an error for
// a timeout as well as for a garbled anticollision frame, and the next poll
// retries either way.
func (reader *MFRC522) ReadUID(timeout time.Duration) ([]byte, error) {
	uid, err := reader.dev.ReadUID(timeout)
	if err != nil {
		reader.log.Trace().Err(err).Msg("No card read")
		return nil, nil
	}
	return uid, nil
}

func (reader *MFRC522) Halt() error {
	return reader.dev.Halt()
}

func (reader *MFRC522) Close() error {
	return reader.port.Close()
}

// PeriphPin drives a GPIO line through periph.
type PeriphPin struct {
	pin gpio.PinIO
}

func OpenPeriphPin(name string) (*PeriphPin, error) {
	if err := initHost(); err != nil {
		return nil, err
	}
	pin, err := pinByName(name)
	if err != nil {
		return nil, err
	}
	return &PeriphPin{pin: pin}, nil
}

func (pin *PeriphPin) Out(level Level) error {
	if err := pin.pin.Out(gpio.Level(level)); err != nil {
		return fmt.Errorf("driving %s %s: %w", pin.pin.Name(), level, err)
	}
	return nil
}

func (pin *PeriphPin) Read() Level {
	return Level(pin.pin.Read())
}
