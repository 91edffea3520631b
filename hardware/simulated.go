package hardware

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"metamakers.org/rfid-access-mqtt/card"
)

// LineReader presents one card per line of hex read from r, for running a
// scanner node without a reader attached. Blank and unparsable lines are
// skipped.
type LineReader struct {
	uids chan card.UID
	done chan struct{}
	once sync.Once
}

func NewLineReader(r io.Reader, log zerolog.Logger) *LineReader {
	reader := &LineReader{
		uids: make(chan card.UID, 16),
		done: make(chan struct{}),
	}

	go func() {
		defer close(reader.uids)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			uid, err := card.ParseUID(line)
			if err != nil {
				log.Warn().Str("event", "BadLine").Err(err).Msg("Skipping line")
				continue
			}
			select {
			case reader.uids <- uid:
			case <-reader.done:
				return
			}
		}
	}()

	return reader
}

func (reader *LineReader) ReadCard(ctx context.Context) (card.UID, bool, error) {
	select {
	case uid, ok := <-reader.uids:
		if !ok {
			return nil, false, nil
		}
		return uid, true, nil
	default:
		return nil, false, nil
	}
}

func (reader *LineReader) Halt() error {
	return nil
}

func (reader *LineReader) Close() error {
	reader.once.Do(func() { close(reader.done) })
	return nil
}

// MemoryPin is an OutputPin that only remembers what it was told.
type MemoryPin struct {
	mu     sync.Mutex
	level  Level
	writes []Level
	Log    zerolog.Logger
}

func (pin *MemoryPin) Out(level Level) error {
	pin.mu.Lock()
	defer pin.mu.Unlock()
	pin.level = level
	pin.writes = append(pin.writes, level)
	pin.Log.Info().Str("event", "PinWrite").Stringer("level", level).Msg("Relay pin written")
	return nil
}

func (pin *MemoryPin) Read() Level {
	pin.mu.Lock()
	defer pin.mu.Unlock()
	return pin.level
}

// Writes returns every level written so far, oldest first.
func (pin *MemoryPin) Writes() []Level {
	pin.mu.Lock()
	defer pin.mu.Unlock()
	return append([]Level(nil), pin.writes...)
}
