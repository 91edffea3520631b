package network

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultCheckInterval = 10 * time.Second

// Associator joins the first reachable network from an ordered candidate list.
type Associator struct {
	Station       Station
	Candidates    []Candidate
	CheckInterval time.Duration
	Log           zerolog.Logger
}

// Connect returns at once if the station is already associated. Otherwise
// every candidate is tried in order and the first successful join wins.
func (associator *Associator) Connect(ctx context.Context) (*Association, error) {
	associated, err := associator.Station.Associated(ctx)
	if err != nil {
		associator.Log.Debug().
			Str("event", "AssociationCheckFailed").
			Err(err).
			Msg("Could not query station")
	}
	if associated {
		return associator.watch(), nil
	}

	if len(associator.Candidates) == 0 {
		return nil, fmt.Errorf("station not associated: %w", ErrNoCandidates)
	}

	var errs []error
	for _, candidate := range associator.Candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		associator.Log.Info().
			Str("event", "Joining").
			Str("ssid", candidate.SSID).
			Msg("Joining network")

		if err := associator.Station.Join(ctx, candidate); err != nil {
			associator.Log.Warn().
				Str("event", "JoinFailed").
				Str("ssid", candidate.SSID).
				Err(err).
				Msg("Could not join network")
			errs = append(errs, err)
			continue
		}

		associator.Log.Info().
			Str("event", "Joined").
			Str("ssid", candidate.SSID).
			Msg("Joined network")
		return associator.watch(), nil
	}

	return nil, errors.Join(errs...)
}

func (associator *Associator) watch() *Association {
	interval := associator.CheckInterval
	if interval <= 0 {
		interval = defaultCheckInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	association := &Association{
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go association.watch(ctx, associator.Station, interval)
	return association
}

// Association is one period of network membership. Done is closed once a
// periodic check finds the station no longer associated.
type Association struct {
	done   chan struct{}
	once   sync.Once
	cancel context.CancelFunc
}

func (association *Association) watch(ctx context.Context, station Station, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			associated, err := station.Associated(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil || !associated {
				association.markDone()
				return
			}
		}
	}
}

func (association *Association) markDone() {
	association.once.Do(func() { close(association.done) })
}

func (association *Association) Done() <-chan struct{} {
	return association.done
}

func (association *Association) Close() error {
	association.cancel()
	association.markDone()
	return nil
}
