package authorizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"metamakers.org/rfid-access-mqtt/card"
	"metamakers.org/rfid-access-mqtt/mqtt"
	"metamakers.org/rfid-access-mqtt/relay"
)

var ErrNotRegistered = errors.New("card is not registered")

type Outcome int

const (
	Toggled Outcome = iota
	Enrolled
	Rejected
)

var outcomeNames = map[Outcome]string{
	Toggled:  "toggled",
	Enrolled: "enrolled",
	Rejected: "rejected",
}

func (outcome Outcome) String() string {
	return outcomeNames[outcome]
}

type Decision struct {
	UID     string
	Status  int
	Outcome Outcome
	Signal  relay.Signal
}

type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Authorizer answers scans from its registration table. A registered card
// flips between active and inactive on every scan. The very first card ever
// scanned enrols itself; after that unknown cards are refused.
type Authorizer struct {
	store     Store
	now       func() time.Time
	onDecided func(Decision)
	log       zerolog.Logger
}

func New(store Store, onDecided func(Decision), log zerolog.Logger) *Authorizer {
	return &Authorizer{store: store, now: time.Now, onDecided: onDecided, log: log}
}

func (authorizer *Authorizer) Decide(ctx context.Context, uid string) (Decision, error) {
	registration, found, err := authorizer.store.Lookup(ctx, uid)
	if err != nil {
		return Decision{}, err
	}

	decision := Decision{UID: uid}
	switch {
	case found:
		decision.Outcome = Toggled
		decision.Status = flipped(registration.RFIDStatus)
		if err := authorizer.store.SetStatus(ctx, uid, decision.Status); err != nil {
			return Decision{}, err
		}
	default:
		count, err := authorizer.store.CountRegistrations(ctx)
		if err != nil {
			return Decision{}, err
		}
		if count == 0 {
			decision.Outcome = Enrolled
			decision.Status = StatusActive
			if err := authorizer.store.Register(ctx, Registration{RFIDData: uid, RFIDStatus: StatusActive}); err != nil {
				return Decision{}, err
			}
		} else {
			decision.Outcome = Rejected
			decision.Status = StatusInactive
		}
	}

	if err := authorizer.store.AppendLog(ctx, LogEntry{
		TimeLog:    authorizer.now(),
		RFIDData:   uid,
		RFIDStatus: decision.Status,
	}); err != nil {
		return Decision{}, err
	}

	decision.Signal = relay.Deny
	if decision.Status == StatusActive {
		decision.Signal = relay.Grant
	}
	return decision, nil
}

func flipped(status int) int {
	if status == StatusActive {
		return StatusInactive
	}
	return StatusActive
}

// Toggle flips the status of a registered card by hand, without a scan. It
// publishes nothing and logs no scan.
func Toggle(ctx context.Context, store Store, uid string) (Registration, error) {
	registration, found, err := store.Lookup(ctx, uid)
	if err != nil {
		return Registration{}, err
	}
	if !found {
		return Registration{}, fmt.Errorf("toggling %s: %w", uid, ErrNotRegistered)
	}

	registration.RFIDStatus = flipped(registration.RFIDStatus)
	if err := store.SetStatus(ctx, uid, registration.RFIDStatus); err != nil {
		return Registration{}, err
	}
	return registration, nil
}

// Serve answers every scan payload from scans until ctx is done or scans is
// closed. Malformed payloads and store failures are logged and skipped; no
// signal is published for them.
func (authorizer *Authorizer) Serve(ctx context.Context, scans <-chan []byte, publisher Publisher) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-scans:
			if !ok {
				return
			}
			authorizer.handle(ctx, payload, publisher)
		}
	}
}

func (authorizer *Authorizer) handle(ctx context.Context, payload []byte, publisher Publisher) {
	uid, err := card.ParseUID(string(payload))
	if err != nil {
		authorizer.log.Warn().
			Str("event", "BadScan").
			Str("payload", string(payload)).
			Err(err).
			Msg("Ignoring scan")
		return
	}

	decision, err := authorizer.Decide(ctx, uid.String())
	if err != nil {
		authorizer.log.Error().
			Str("event", "DecisionFailed").
			Str("uid", uid.String()).
			Err(err).
			Msg("Could not decide on scan")
		return
	}

	authorizer.log.Info().
		Str("event", "Decided").
		Str("uid", decision.UID).
		Stringer("outcome", decision.Outcome).
		Int("rfid_status", decision.Status).
		Stringer("signal", decision.Signal).
		Msg("Scan decided")

	if err := publisher.Publish(ctx, mqtt.LoginTopic, []byte(decision.Signal.Payload())); err != nil {
		if ctx.Err() == nil {
			authorizer.log.Error().
				Str("error", err.Error()).
				Str("event", "MQTTPublish").
				Str("topic", mqtt.LoginTopic).
				Msg("Failed to publish decision")
		}
		return
	}

	if authorizer.onDecided != nil {
		authorizer.onDecided(decision)
	}
}
