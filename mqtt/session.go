package mqtt

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrNotConnected   = errors.New("mqtt session is not connected")
	ErrQueueFull      = errors.New("inbound queue is full")
	ErrUnknownVersion = errors.New("unknown mqtt protocol version")
)

type Message struct {
	Topic   string
	Payload []byte
}

// Session is one broker connection. It does not reconnect on its own: once
// Done is closed the session is dead and a new one has to be dialed.
type Session interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) error
	Done() <-chan struct{}
	// Err reports why Done was closed, nil while the session is alive or
	// after a local Close.
	Err() error
	Close() error
}

// Dialer opens sessions. Messages received on the session's subscriptions are
// pushed onto inbound.
type Dialer interface {
	Dial(ctx context.Context, inbound *Queue) (Session, error)
}

// Queue buffers inbound messages between the client's receive goroutine and
// the node's scheduling tick.
type Queue struct {
	messages chan Message
}

func NewQueue(size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{messages: make(chan Message, size)}
}

// Push never blocks. A full queue drops the message and reports ErrQueueFull.
func (queue *Queue) Push(message Message) error {
	select {
	case queue.messages <- message:
		return nil
	default:
		return ErrQueueFull
	}
}

// Drain hands every message queued so far to handle and returns how many were
// handled. Messages pushed while draining wait for the next call.
func (queue *Queue) Drain(handle func(Message)) int {
	pending := len(queue.messages)
	for i := 0; i < pending; i++ {
		select {
		case message := <-queue.messages:
			handle(message)
		default:
			return i
		}
	}
	return pending
}

func (queue *Queue) Len() int {
	return len(queue.messages)
}

// closer closes a done channel exactly once, whichever of the client's
// error callbacks fires first.
type closer struct {
	once sync.Once
	done chan struct{}
	err  error
	mu   sync.Mutex
}

func newCloser() *closer {
	return &closer{done: make(chan struct{})}
}

func (c *closer) close(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *closer) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *closer) reason() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
