package scanner

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"metamakers.org/rfid-access-mqtt/card"
	"metamakers.org/rfid-access-mqtt/hardware"
	"metamakers.org/rfid-access-mqtt/mqtt"
)

type Options struct {
	Reader hardware.CardReader
	// IdleDelay is the wait between polls while no card is present.
	IdleDelay time.Duration
	// Hold is the wait after a card was read. Presentations inside it are
	// never seen.
	Hold time.Duration
	// RepeatSuppress drops the same card read again within the period. Zero
	// disables it.
	RepeatSuppress time.Duration
	// OnScan is called for every uid published.
	OnScan func(uid card.UID)
	Log    zerolog.Logger
}

// Scanner publishes the uid of every card presented to its reader on
// RFID_SCAN. It subscribes to nothing.
type Scanner struct {
	reader    hardware.CardReader
	idleDelay time.Duration
	hold      time.Duration
	repeats   *RepeatFilter
	onScan    func(uid card.UID)
	nextPoll  time.Time
	log       zerolog.Logger
}

func New(opts Options) *Scanner {
	return &Scanner{
		reader:    opts.Reader,
		idleDelay: opts.IdleDelay,
		hold:      opts.Hold,
		repeats:   NewRepeatFilter(opts.RepeatSuppress),
		onScan:    opts.OnScan,
		log:       opts.Log,
	}
}

func (scanner *Scanner) Connected(ctx context.Context, session mqtt.Session) error {
	return nil
}

func (scanner *Scanner) Handle(ctx context.Context, message mqtt.Message) {}

func (scanner *Scanner) Poll(ctx context.Context, session mqtt.Session, now time.Time) {
	if now.Before(scanner.nextPoll) {
		return
	}

	uid, present, err := scanner.reader.ReadCard(ctx)
	if err != nil {
		scanner.log.Warn().
			Str("event", "ReadFailed").
			Err(err).
			Msg("Card read failed")
	}
	if !present {
		scanner.nextPoll = now.Add(scanner.idleDelay)
		return
	}

	scanner.nextPoll = now.Add(scanner.hold)
	defer scanner.halt()

	payload := uid.String()
	if !scanner.repeats.Accept(payload, now) {
		scanner.log.Debug().
			Str("event", "RepeatSuppressed").
			Str("uid", payload).
			Msg("Same card presented again, not publishing")
		return
	}

	if err := session.Publish(ctx, mqtt.ScanTopic, []byte(payload)); err != nil {
		scanner.log.Warn().
			Str("event", "PublishFailed").
			Str("uid", payload).
			Err(err).
			Msg("Could not publish scan")
		return
	}

	scanner.log.Info().
		Str("event", "CardScanned").
		Str("topic", mqtt.ScanTopic).
		Str("uid", payload).
		Msg("Published card uid")

	if scanner.onScan != nil {
		scanner.onScan(uid)
	}
}

func (scanner *Scanner) halt() {
	if err := scanner.reader.Halt(); err != nil {
		scanner.log.Debug().Err(err).Msg("Halt failed")
	}
}
