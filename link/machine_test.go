package link

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	done   chan struct{}
	once   sync.Once
	closed atomic.Bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{done: make(chan struct{})}
}

func (conn *fakeConn) Done() <-chan struct{} { return conn.done }

func (conn *fakeConn) drop() {
	conn.once.Do(func() { close(conn.done) })
}

func (conn *fakeConn) Close() error {
	conn.closed.Store(true)
	conn.drop()
	return nil
}

// script hands out one outcome per Connect call; after it runs out every
// call succeeds.
type script struct {
	mu       sync.Mutex
	failures []error
	calls    int
	conns    []*fakeConn
}

func (s *script) connect(ctx context.Context) (*fakeConn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		if err != nil {
			return nil, err
		}
	}
	conn := newFakeConn()
	s.conns = append(s.conns, conn)
	return conn, nil
}

func (s *script) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *script) last() *fakeConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns[len(s.conns)-1]
}

func tickUntil(t *testing.T, machine *Machine[*fakeConn], now time.Time, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return machine.Tick(context.Background(), now) == want
	}, time.Second, time.Millisecond)
}

func newTestMachine(s *script, retry time.Duration) *Machine[*fakeConn] {
	return New(Config[*fakeConn]{
		Name:    "broker",
		Connect: s.connect,
		Policy:  backoff.NewConstantBackOff(retry),
		Timeout: time.Second,
		Log:     zerolog.Nop(),
	})
}

func TestMachineConnects(t *testing.T) {
	s := &script{}
	machine := newTestMachine(s, 5*time.Second)
	now := time.Unix(1000, 0)

	assert.Equal(t, Disconnected, machine.State())
	_, ok := machine.Current()
	assert.False(t, ok)

	assert.Equal(t, Connecting, machine.Tick(context.Background(), now))
	tickUntil(t, machine, now, Connected)

	conn, ok := machine.Current()
	require.True(t, ok)
	assert.Same(t, s.last(), conn)
	assert.Equal(t, 1, s.callCount())
}

func TestMachineWaitsRetryDelayAfterFailure(t *testing.T) {
	s := &script{failures: []error{errors.New("refused"), errors.New("refused")}}
	machine := newTestMachine(s, 5*time.Second)
	now := time.Unix(1000, 0)

	machine.Tick(context.Background(), now)
	tickUntil(t, machine, now, Disconnected)
	assert.Equal(t, 1, s.callCount())

	assert.Equal(t, Disconnected, machine.Tick(context.Background(), now.Add(4*time.Second)))
	assert.Equal(t, 1, s.callCount())

	now = now.Add(5 * time.Second)
	assert.Equal(t, Connecting, machine.Tick(context.Background(), now))
	tickUntil(t, machine, now, Disconnected)
	assert.Equal(t, 2, s.callCount())

	assert.Equal(t, Disconnected, machine.Tick(context.Background(), now.Add(4999*time.Millisecond)))

	now = now.Add(5 * time.Second)
	machine.Tick(context.Background(), now)
	tickUntil(t, machine, now, Connected)
	assert.Equal(t, 3, s.callCount())
}

func TestMachineRetriesImmediatelyAfterDrop(t *testing.T) {
	s := &script{}
	machine := newTestMachine(s, time.Hour)
	now := time.Unix(1000, 0)

	machine.Tick(context.Background(), now)
	tickUntil(t, machine, now, Connected)
	first := s.last()

	first.drop()
	assert.Equal(t, Disconnected, machine.Tick(context.Background(), now))
	assert.True(t, first.closed.Load())

	assert.Equal(t, Connecting, machine.Tick(context.Background(), now))
	tickUntil(t, machine, now, Connected)
	assert.Equal(t, 2, s.callCount())
	assert.NotSame(t, first, s.last())
}

func TestMachineRunsOnUpForEveryConnection(t *testing.T) {
	s := &script{}
	var ups atomic.Int32
	machine := New(Config[*fakeConn]{
		Name:    "broker",
		Connect: s.connect,
		OnUp: func(ctx context.Context, conn *fakeConn) error {
			ups.Add(1)
			return nil
		},
		Policy: backoff.NewConstantBackOff(time.Second),
		Log:    zerolog.Nop(),
	})
	now := time.Unix(1000, 0)

	for i := 1; i <= 3; i++ {
		machine.Tick(context.Background(), now)
		tickUntil(t, machine, now, Connected)
		assert.Equal(t, int32(i), ups.Load())
		s.last().drop()
		machine.Tick(context.Background(), now)
	}
}

func TestMachineOnUpFailureCountsAsFailedAttempt(t *testing.T) {
	s := &script{}
	var fail atomic.Bool
	fail.Store(true)
	machine := New(Config[*fakeConn]{
		Name:    "broker",
		Connect: s.connect,
		OnUp: func(ctx context.Context, conn *fakeConn) error {
			if fail.Load() {
				return errors.New("subscribe refused")
			}
			return nil
		},
		Policy: backoff.NewConstantBackOff(time.Second),
		Log:    zerolog.Nop(),
	})
	now := time.Unix(1000, 0)

	machine.Tick(context.Background(), now)
	tickUntil(t, machine, now, Disconnected)
	assert.True(t, s.last().closed.Load())

	fail.Store(false)
	now = now.Add(time.Second)
	machine.Tick(context.Background(), now)
	tickUntil(t, machine, now, Connected)
}

func TestMachineStopPolicyStartsOver(t *testing.T) {
	s := &script{failures: []error{errors.New("down"), errors.New("down")}}
	machine := New(Config[*fakeConn]{
		Name:    "network",
		Connect: s.connect,
		Policy:  backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Second), 1),
		Log:     zerolog.Nop(),
	})
	now := time.Unix(1000, 0)

	machine.Tick(context.Background(), now)
	tickUntil(t, machine, now, Disconnected)
	now = now.Add(time.Second)
	machine.Tick(context.Background(), now)
	tickUntil(t, machine, now, Disconnected)

	now = now.Add(time.Second)
	machine.Tick(context.Background(), now)
	tickUntil(t, machine, now, Connected)
}

func TestMachineReportsStateChanges(t *testing.T) {
	s := &script{}
	var mu sync.Mutex
	var states []State
	machine := New(Config[*fakeConn]{
		Name:    "broker",
		Connect: s.connect,
		OnState: func(name string, state State) {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, "broker", name)
			states = append(states, state)
		},
		Log: zerolog.Nop(),
	})
	now := time.Unix(1000, 0)

	machine.Tick(context.Background(), now)
	tickUntil(t, machine, now, Connected)
	require.NoError(t, machine.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{Connecting, Connected, Disconnected}, states)
}

func TestMachineCloseClosesCurrent(t *testing.T) {
	s := &script{}
	machine := newTestMachine(s, time.Second)
	now := time.Unix(1000, 0)

	machine.Tick(context.Background(), now)
	tickUntil(t, machine, now, Connected)

	require.NoError(t, machine.Close())
	assert.True(t, s.last().closed.Load())
	assert.Equal(t, Disconnected, machine.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "unknown", State(9).String())
}
