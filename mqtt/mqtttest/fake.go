// Package mqtttest provides in-memory sessions for testing code that talks to
// the broker.
package mqtttest

import (
	"context"
	"errors"
	"sync"

	"metamakers.org/rfid-access-mqtt/mqtt"
)

var ErrDialRefused = errors.New("dial refused")

type Session struct {
	mu            sync.Mutex
	inbound       *mqtt.Queue
	published     []mqtt.Message
	subscriptions []string
	done          chan struct{}
	once          sync.Once
	closed        bool

	PublishErr   error
	SubscribeErr error
}

func NewSession(inbound *mqtt.Queue) *Session {
	if inbound == nil {
		inbound = mqtt.NewQueue(32)
	}
	return &Session{inbound: inbound, done: make(chan struct{})}
}

func (session *Session) Publish(ctx context.Context, topic string, payload []byte) error {
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.PublishErr != nil {
		return session.PublishErr
	}
	session.published = append(session.published, mqtt.Message{Topic: topic, Payload: append([]byte(nil), payload...)})
	return nil
}

func (session *Session) Subscribe(ctx context.Context, topic string) error {
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.SubscribeErr != nil {
		return session.SubscribeErr
	}
	session.subscriptions = append(session.subscriptions, topic)
	return nil
}

func (session *Session) Done() <-chan struct{} {
	return session.done
}

func (session *Session) Err() error {
	return nil
}

func (session *Session) Close() error {
	session.mu.Lock()
	session.closed = true
	session.mu.Unlock()
	session.Drop()
	return nil
}

// Drop simulates the broker going away.
func (session *Session) Drop() {
	session.once.Do(func() { close(session.done) })
}

// Deliver pushes a message as if the broker had sent it on a subscription.
func (session *Session) Deliver(topic, payload string) error {
	return session.inbound.Push(mqtt.Message{Topic: topic, Payload: []byte(payload)})
}

func (session *Session) Published() []mqtt.Message {
	session.mu.Lock()
	defer session.mu.Unlock()
	return append([]mqtt.Message(nil), session.published...)
}

// PublishedOn returns the payloads published on topic, as strings.
func (session *Session) PublishedOn(topic string) []string {
	var payloads []string
	for _, message := range session.Published() {
		if message.Topic == topic {
			payloads = append(payloads, string(message.Payload))
		}
	}
	return payloads
}

func (session *Session) Subscriptions() []string {
	session.mu.Lock()
	defer session.mu.Unlock()
	return append([]string(nil), session.subscriptions...)
}

func (session *Session) Closed() bool {
	session.mu.Lock()
	defer session.mu.Unlock()
	return session.closed
}

// Dialer hands out a fresh Session per Dial. The first Failures calls are
// refused.
type Dialer struct {
	mu       sync.Mutex
	sessions []*Session
	calls    int

	Failures int
}

func (dialer *Dialer) Dial(ctx context.Context, inbound *mqtt.Queue) (mqtt.Session, error) {
	dialer.mu.Lock()
	defer dialer.mu.Unlock()
	dialer.calls++
	if dialer.Failures > 0 {
		dialer.Failures--
		return nil, ErrDialRefused
	}
	session := NewSession(inbound)
	dialer.sessions = append(dialer.sessions, session)
	return session, nil
}

func (dialer *Dialer) Calls() int {
	dialer.mu.Lock()
	defer dialer.mu.Unlock()
	return dialer.calls
}

func (dialer *Dialer) Sessions() []*Session {
	dialer.mu.Lock()
	defer dialer.mu.Unlock()
	return append([]*Session(nil), dialer.sessions...)
}

// Last returns the most recently dialed session, nil before the first.
func (dialer *Dialer) Last() *Session {
	dialer.mu.Lock()
	defer dialer.mu.Unlock()
	if len(dialer.sessions) == 0 {
		return nil
	}
	return dialer.sessions[len(dialer.sessions)-1]
}
