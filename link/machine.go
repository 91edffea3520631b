package link

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (state State) String() string {
	switch state {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Conn is anything a Machine can hold open. Done is closed when the
// connection is lost.
type Conn interface {
	Done() <-chan struct{}
	Close() error
}

type Config[C Conn] struct {
	// Name labels log lines and state callbacks, e.g. "network" or "broker".
	Name string
	// Connect opens one connection. It may block; it is always called off the
	// ticking goroutine with a context bounded by Timeout.
	Connect func(ctx context.Context) (C, error)
	// OnUp runs after every successful Connect, on the same goroutine and
	// under the same deadline. An error closes the connection and counts as a
	// failed attempt.
	OnUp func(ctx context.Context, conn C) error
	// Policy is consulted after each failure. Defaults to a constant 5s.
	Policy  backoff.BackOff
	Timeout time.Duration
	// OnState is called from Tick on every state change.
	OnState func(name string, state State)
	Log     zerolog.Logger
}

type result[C Conn] struct {
	conn C
	err  error
}

// Machine reconnects one link forever. Tick is the only driver and never
// blocks: attempts run in their own goroutine and are collected by a later
// tick. A Machine is not safe for concurrent use.
type Machine[C Conn] struct {
	config Config[C]

	state       State
	current     C
	attempt     int
	nextAttempt time.Time
	pending     chan result[C]
	cancel      context.CancelFunc
}

func New[C Conn](config Config[C]) *Machine[C] {
	if config.Policy == nil {
		config.Policy = backoff.NewConstantBackOff(5 * time.Second)
	}
	return &Machine[C]{config: config}
}

func (machine *Machine[C]) State() State {
	return machine.state
}

// Current returns the open connection while Connected.
func (machine *Machine[C]) Current() (C, bool) {
	if machine.state != Connected {
		var zero C
		return zero, false
	}
	return machine.current, true
}

// Tick advances the machine and returns the resulting state.
func (machine *Machine[C]) Tick(ctx context.Context, now time.Time) State {
	switch machine.state {
	case Connected:
		select {
		case <-machine.current.Done():
			machine.lost(now)
		default:
		}
	case Disconnected:
		if !now.Before(machine.nextAttempt) {
			machine.start(ctx)
		}
	case Connecting:
		select {
		case res := <-machine.pending:
			machine.finish(now, res)
		default:
		}
	}
	return machine.state
}

func (machine *Machine[C]) start(ctx context.Context) {
	machine.attempt++
	machine.config.Log.Info().
		Str("event", "Connecting").
		Str("link", machine.config.Name).
		Int("attempt", machine.attempt).
		Msg("Attempting connection")

	attemptCtx, cancel := ctx, context.CancelFunc(func() {})
	if machine.config.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, machine.config.Timeout)
	}
	machine.cancel = cancel

	pending := make(chan result[C], 1)
	machine.pending = pending
	connect := machine.config.Connect
	onUp := machine.config.OnUp

	go func() {
		conn, err := connect(attemptCtx)
		if err == nil && onUp != nil {
			if err = onUp(attemptCtx, conn); err != nil {
				conn.Close()
			}
		}
		pending <- result[C]{conn: conn, err: err}
	}()

	machine.setState(Connecting)
}

func (machine *Machine[C]) finish(now time.Time, res result[C]) {
	machine.cancel()
	machine.pending = nil

	if res.err != nil {
		delay := machine.config.Policy.NextBackOff()
		if delay == backoff.Stop {
			machine.config.Log.Warn().
				Str("event", "RetryPolicyExhausted").
				Str("link", machine.config.Name).
				Msg("Retry policy stopped, starting over")
			machine.config.Policy.Reset()
			delay = machine.config.Policy.NextBackOff()
		}
		machine.nextAttempt = now.Add(delay)

		machine.config.Log.Warn().
			Str("event", "ConnectFailed").
			Str("link", machine.config.Name).
			Int("attempt", machine.attempt).
			Dur("retry_in", delay).
			Err(res.err).
			Msg("Connection attempt failed")

		machine.setState(Disconnected)
		return
	}

	machine.config.Policy.Reset()
	machine.current = res.conn
	machine.config.Log.Info().
		Str("event", "Connected").
		Str("link", machine.config.Name).
		Int("attempt", machine.attempt).
		Msg("Connection established")
	machine.attempt = 0

	machine.setState(Connected)
}

// lost schedules an immediate retry; only failed attempts wait on the policy.
func (machine *Machine[C]) lost(now time.Time) {
	machine.config.Log.Warn().
		Str("event", "ConnectionLost").
		Str("link", machine.config.Name).
		Msg("Connection lost, reconnecting")

	machine.current.Close()
	var zero C
	machine.current = zero
	machine.nextAttempt = now
	machine.setState(Disconnected)
}

func (machine *Machine[C]) setState(state State) {
	if machine.state == state {
		return
	}
	machine.state = state
	if machine.config.OnState != nil {
		machine.config.OnState(machine.config.Name, state)
	}
}

// Close abandons any attempt in flight and closes the open connection.
func (machine *Machine[C]) Close() error {
	var err error

	switch machine.state {
	case Connecting:
		machine.cancel()
		pending := machine.pending
		go func() {
			if res := <-pending; res.err == nil {
				res.conn.Close()
			}
		}()
		machine.pending = nil
	case Connected:
		err = machine.current.Close()
		var zero C
		machine.current = zero
	}

	machine.setState(Disconnected)
	return err
}
