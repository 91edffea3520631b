package hardware

import (
	"context"
	"errors"
	"time"

	"metamakers.org/rfid-access-mqtt/card"
)

var (
	ErrUnknownDriver = errors.New("unknown hardware driver")
	ErrPinNotFound   = errors.New("gpio pin not found")
)

type Level bool

const (
	Low  Level = false
	High Level = true
)

func (level Level) String() string {
	if level {
		return "high"
	}
	return "low"
}

// OutputPin is a single digital output, the relay coil.
type OutputPin interface {
	Out(level Level) error
	Read() Level
}

// CardReader is polled once per tick. ReadCard never blocks: it reports
// false while no card is present or a read is still in progress.
type CardReader interface {
	ReadCard(ctx context.Context) (card.UID, bool, error)
	// Halt ends the session with the card that was just read.
	Halt() error
	Close() error
}

// UIDReader is a blocking reader. An empty uid with a nil error means no
// card answered before the timeout.
type UIDReader interface {
	ReadUID(timeout time.Duration) ([]byte, error)
	Halt() error
}
