package authorizer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metamakers.org/rfid-access-mqtt/config"
	"metamakers.org/rfid-access-mqtt/mqtt"
	"metamakers.org/rfid-access-mqtt/relay"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	store, err := OpenStore(config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		DSN:          ":memory:",
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func newTestAuthorizer(t *testing.T) (*Authorizer, *SQLStore) {
	t.Helper()
	store := openTestStore(t)
	authorizer := New(store, nil, zerolog.Nop())
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	authorizer.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return authorizer, store
}

func TestFirstCardEnrols(t *testing.T) {
	authorizer, store := newTestAuthorizer(t)
	ctx := context.Background()

	decision, err := authorizer.Decide(ctx, "04A1")
	require.NoError(t, err)
	assert.Equal(t, Enrolled, decision.Outcome)
	assert.Equal(t, relay.Grant, decision.Signal)

	registration, found, err := store.Lookup(ctx, "04A1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, StatusActive, registration.RFIDStatus)
}

func TestUnknownCardRejectedOnceEnrolled(t *testing.T) {
	authorizer, store := newTestAuthorizer(t)
	ctx := context.Background()

	_, err := authorizer.Decide(ctx, "04A1")
	require.NoError(t, err)

	decision, err := authorizer.Decide(ctx, "1234AB")
	require.NoError(t, err)
	assert.Equal(t, Rejected, decision.Outcome)
	assert.Equal(t, relay.Deny, decision.Signal)

	_, found, err := store.Lookup(ctx, "1234AB")
	require.NoError(t, err)
	assert.False(t, found)

	count, err := store.CountRegistrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRegisteredCardToggles(t *testing.T) {
	authorizer, _ := newTestAuthorizer(t)
	ctx := context.Background()

	expected := []relay.Signal{relay.Grant, relay.Deny, relay.Grant, relay.Deny}
	for idx, signal := range expected {
		decision, err := authorizer.Decide(ctx, "04A1")
		require.NoError(t, err)
		assert.Equal(t, signal, decision.Signal, "scan %d", idx)
	}
}

func TestEveryScanIsLogged(t *testing.T) {
	authorizer, store := newTestAuthorizer(t)
	ctx := context.Background()

	for _, uid := range []string{"04A1", "1234AB", "04A1"} {
		_, err := authorizer.Decide(ctx, uid)
		require.NoError(t, err)
	}

	entries, err := store.RecentLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "04A1", entries[0].RFIDData)
	assert.Equal(t, StatusInactive, entries[0].RFIDStatus)
	assert.Equal(t, "1234AB", entries[1].RFIDData)
	assert.Equal(t, StatusInactive, entries[1].RFIDStatus)
	assert.Equal(t, "04A1", entries[2].RFIDData)
	assert.Equal(t, StatusActive, entries[2].RFIDStatus)
	assert.True(t, entries[0].TimeLog.After(entries[2].TimeLog))

	limited, err := store.RecentLogs(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRegistrationsListed(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	registrations, err := store.Registrations(ctx)
	require.NoError(t, err)
	assert.Empty(t, registrations)

	require.NoError(t, store.Register(ctx, Registration{RFIDData: "1234AB", RFIDStatus: StatusInactive}))
	require.NoError(t, store.Register(ctx, Registration{RFIDData: "04A1", RFIDStatus: StatusActive}))

	registrations, err = store.Registrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Registration{
		{RFIDData: "04A1", RFIDStatus: StatusActive},
		{RFIDData: "1234AB", RFIDStatus: StatusInactive},
	}, registrations)
}

func TestOperatorToggle(t *testing.T) {
	authorizer, store := newTestAuthorizer(t)
	ctx := context.Background()

	_, err := authorizer.Decide(ctx, "04A1")
	require.NoError(t, err)

	registration, err := Toggle(ctx, store, "04A1")
	require.NoError(t, err)
	assert.Equal(t, Registration{RFIDData: "04A1", RFIDStatus: StatusInactive}, registration)

	stored, found, err := store.Lookup(ctx, "04A1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, StatusInactive, stored.RFIDStatus)

	registration, err = Toggle(ctx, store, "04A1")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, registration.RFIDStatus)

	// A hand toggle is not a scan.
	entries, err := store.RecentLogs(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = Toggle(ctx, store, "FFFF")
	assert.ErrorIs(t, err, ErrNotRegistered)

	count, err := store.CountRegistrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []mqtt.Message
	err      error
}

func (publisher *recordingPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	if publisher.err != nil {
		return publisher.err
	}
	publisher.messages = append(publisher.messages, mqtt.Message{Topic: topic, Payload: payload})
	return nil
}

func (publisher *recordingPublisher) payloads() []string {
	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	var payloads []string
	for _, message := range publisher.messages {
		payloads = append(payloads, message.Topic+"="+string(message.Payload))
	}
	return payloads
}

func TestServePublishesDecisions(t *testing.T) {
	store := openTestStore(t)
	var decisions []Decision
	authorizer := New(store, func(decision Decision) { decisions = append(decisions, decision) }, zerolog.Nop())
	publisher := &recordingPublisher{}

	scans := make(chan []byte, 4)
	scans <- []byte("04a1")
	scans <- []byte("not a uid")
	scans <- []byte("1234AB")
	scans <- []byte("04A1")
	close(scans)

	authorizer.Serve(context.Background(), scans, publisher)

	assert.Equal(t, []string{"RFID_LOGIN=1", "RFID_LOGIN=0", "RFID_LOGIN=0"}, publisher.payloads())
	require.Len(t, decisions, 3)
	assert.Equal(t, "04A1", decisions[0].UID)
	assert.Equal(t, Toggled, decisions[2].Outcome)
}

func TestServeSkipsFailedPublish(t *testing.T) {
	store := openTestStore(t)
	called := false
	authorizer := New(store, func(Decision) { called = true }, zerolog.Nop())
	publisher := &recordingPublisher{err: errors.New("offline")}

	scans := make(chan []byte, 1)
	scans <- []byte("04A1")
	close(scans)

	authorizer.Serve(context.Background(), scans, publisher)
	assert.False(t, called)
}

func TestServeStopsOnCancel(t *testing.T) {
	authorizer := New(openTestStore(t), nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		authorizer.Serve(ctx, make(chan []byte), &recordingPublisher{})
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Serve did not stop")
	}
}

func TestOpenStoreRejectsUnknownDriver(t *testing.T) {
	_, err := OpenStore(config.DatabaseConfig{Driver: "postgres"})
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "enrolled", Enrolled.String())
	assert.Equal(t, "toggled", Toggled.String())
	assert.Equal(t, "rejected", Rejected.String())
}
