package hardware

import (
	"context"
	"io"
	"time"

	"metamakers.org/rfid-access-mqtt/card"
)

type readResult struct {
	uid []byte
	err error
}

// Poller turns a blocking UIDReader into a CardReader. At most one read is in
// flight; its result is picked up by whichever ReadCard call comes after it
// finishes.
type Poller struct {
	reader   UIDReader
	timeout  time.Duration
	results  chan readResult
	inFlight bool
}

func NewPoller(reader UIDReader, timeout time.Duration) *Poller {
	return &Poller{
		reader:  reader,
		timeout: timeout,
		results: make(chan readResult, 1),
	}
}

func (poller *Poller) ReadCard(ctx context.Context) (card.UID, bool, error) {
	if !poller.inFlight {
		poller.inFlight = true
		go func() {
			uid, err := poller.reader.ReadUID(poller.timeout)
			poller.results <- readResult{uid: uid, err: err}
		}()
	}

	select {
	case res := <-poller.results:
		poller.inFlight = false
		if res.err != nil {
			return nil, false, res.err
		}
		if len(res.uid) == 0 {
			return nil, false, nil
		}
		return card.UID(res.uid), true, nil
	default:
		return nil, false, nil
	}
}

// Halt is a no-op while a read is in flight; the reader is busy and there is
// no selected card.
func (poller *Poller) Halt() error {
	if poller.inFlight {
		return nil
	}
	return poller.reader.Halt()
}

// Close waits out any read in flight before releasing the reader.
func (poller *Poller) Close() error {
	if poller.inFlight {
		<-poller.results
		poller.inFlight = false
	}
	if closer, ok := poller.reader.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
