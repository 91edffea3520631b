package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metamakers.org/rfid-access-mqtt/card"
	"metamakers.org/rfid-access-mqtt/mqtt"
	"metamakers.org/rfid-access-mqtt/mqtt/mqtttest"
)

// fakeReader reports present while a card lies on it.
type fakeReader struct {
	present card.UID
	err     error
	reads   int
	halts   int
}

func (reader *fakeReader) ReadCard(ctx context.Context) (card.UID, bool, error) {
	reader.reads++
	if reader.err != nil {
		return nil, false, reader.err
	}
	if reader.present == nil {
		return nil, false, nil
	}
	return reader.present, true, nil
}

func (reader *fakeReader) Halt() error {
	reader.halts++
	return nil
}

func (reader *fakeReader) Close() error { return nil }

func newTestScanner(reader *fakeReader, suppress time.Duration) *Scanner {
	return New(Options{
		Reader:         reader,
		IdleDelay:      50 * time.Millisecond,
		Hold:           2 * time.Second,
		RepeatSuppress: suppress,
		Log:            zerolog.Nop(),
	})
}

// run polls every 10ms from start for the given duration.
func run(scanner *Scanner, session mqtt.Session, start time.Time, duration time.Duration) time.Time {
	now := start
	for end := start.Add(duration); now.Before(end); now = now.Add(10 * time.Millisecond) {
		scanner.Poll(context.Background(), session, now)
	}
	return now
}

func TestScannerPublishesUppercaseHex(t *testing.T) {
	reader := &fakeReader{present: card.UID{0x12, 0x34, 0xAB}}
	session := mqtttest.NewSession(nil)
	var scanned []string
	scanner := newTestScanner(reader, 0)
	scanner.onScan = func(uid card.UID) { scanned = append(scanned, uid.String()) }

	scanner.Poll(context.Background(), session, time.Unix(1000, 0))

	assert.Equal(t, []string{"1234AB"}, session.PublishedOn(mqtt.ScanTopic))
	assert.Equal(t, []string{"1234AB"}, scanned)
	assert.Equal(t, 1, reader.halts)
}

func TestScannerDebouncesWithinHold(t *testing.T) {
	reader := &fakeReader{present: card.UID{0x04, 0xA1}}
	session := mqtttest.NewSession(nil)
	scanner := newTestScanner(reader, 0)
	start := time.Unix(1000, 0)

	run(scanner, session, start, 1990*time.Millisecond)
	assert.Equal(t, []string{"04A1"}, session.PublishedOn(mqtt.ScanTopic))
	assert.Equal(t, 1, reader.reads)

	run(scanner, session, start.Add(2*time.Second), 10*time.Millisecond)
	assert.Equal(t, []string{"04A1", "04A1"}, session.PublishedOn(mqtt.ScanTopic))
}

func TestScannerIdlePollInterval(t *testing.T) {
	reader := &fakeReader{}
	session := mqtttest.NewSession(nil)
	scanner := newTestScanner(reader, 0)

	run(scanner, session, time.Unix(1000, 0), time.Second)

	assert.Equal(t, 20, reader.reads)
	assert.Empty(t, session.Published())
	assert.Zero(t, reader.halts)
}

func TestScannerRepeatSuppression(t *testing.T) {
	reader := &fakeReader{present: card.UID{0x04, 0xA1}}
	session := mqtttest.NewSession(nil)
	scanner := newTestScanner(reader, 5*time.Second)
	start := time.Unix(1000, 0)

	run(scanner, session, start, 4990*time.Millisecond)
	assert.Equal(t, []string{"04A1"}, session.PublishedOn(mqtt.ScanTopic))
	assert.Equal(t, 3, reader.halts, "suppressed reads still halt the card")

	reader.present = card.UID{0x12, 0x34, 0xAB}
	run(scanner, session, start.Add(6*time.Second), 10*time.Millisecond)
	assert.Equal(t, []string{"04A1", "1234AB"}, session.PublishedOn(mqtt.ScanTopic))
}

func TestScannerPublishFailureIsNotRetried(t *testing.T) {
	reader := &fakeReader{present: card.UID{0x04, 0xA1}}
	session := mqtttest.NewSession(nil)
	session.PublishErr = mqtt.ErrNotConnected
	scanner := newTestScanner(reader, 0)

	run(scanner, session, time.Unix(1000, 0), time.Second)

	assert.Equal(t, 1, reader.reads)
	assert.Empty(t, session.Published())
}

func TestScannerReadErrorWaitsIdleDelay(t *testing.T) {
	reader := &fakeReader{err: errors.New("crc")}
	session := mqtttest.NewSession(nil)
	scanner := newTestScanner(reader, 0)

	run(scanner, session, time.Unix(1000, 0), 100*time.Millisecond)

	assert.Equal(t, 2, reader.reads)
	assert.Empty(t, session.Published())
}

func TestScannerIgnoresInbound(t *testing.T) {
	scanner := newTestScanner(&fakeReader{}, 0)
	session := mqtttest.NewSession(nil)

	require.NoError(t, scanner.Connected(context.Background(), session))
	scanner.Handle(context.Background(), mqtt.Message{Topic: mqtt.LoginTopic, Payload: []byte("1")})

	assert.Empty(t, session.Subscriptions())
	assert.Empty(t, session.Published())
}

func TestRepeatFilter(t *testing.T) {
	type trial struct {
		message  string
		key      string
		at       time.Duration
		expected bool
	}

	tcs := []struct {
		name   string
		period time.Duration
		trials []trial
	}{
		{
			name:   "100ms-period",
			period: 100 * time.Millisecond,
			trials: []trial{
				{"should accept first", "a", 0, true},
				{"should deny second within 10ms", "a", 10 * time.Millisecond, false},
				{"other keys are independent", "b", 10 * time.Millisecond, true},
				{"should allow after period", "a", 101 * time.Millisecond, true},
				{"shouldn't burst", "a", 111 * time.Millisecond, false},
			},
		},
		{
			name:   "disabled",
			period: 0,
			trials: []trial{
				{"should accept first", "a", 0, true},
				{"should accept repeat", "a", 0, true},
			},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			filter := NewRepeatFilter(tc.period)
			start := time.Unix(1000, 0)
			for _, trial := range tc.trials {
				assert.Equal(t, trial.expected, filter.Accept(trial.key, start.Add(trial.at)), trial.message)
			}
		})
	}
}

func TestRepeatFilterPrunes(t *testing.T) {
	filter := NewRepeatFilter(time.Second)
	start := time.Unix(1000, 0)

	for i := 0; i < pruneAbove; i++ {
		require.True(t, filter.Accept(card.UID{byte(i)}.String(), start))
	}
	require.Len(t, filter.keys, pruneAbove)

	assert.True(t, filter.Accept("NEW", start.Add(2*time.Second)))
	assert.Len(t, filter.keys, 1)
}
